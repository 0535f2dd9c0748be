package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// OneSignalClient posts notifications to the OneSignal REST API.
type OneSignalClient struct {
	appID  string
	apiKey string
	apiURL string
	client *http.Client
}

// NewOneSignalClient returns nil when OneSignal is not configured.
func NewOneSignalClient(appID, apiKey, apiURL string) *OneSignalClient {
	if appID == "" || apiKey == "" {
		return nil
	}
	if apiURL == "" {
		apiURL = "https://api.onesignal.com/notifications"
	}
	return &OneSignalClient{
		appID:  appID,
		apiKey: apiKey,
		apiURL: apiURL,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type oneSignalPayload struct {
	AppID                  string                 `json:"app_id"`
	Headings               map[string]string      `json:"headings"`
	Contents               map[string]string      `json:"contents"`
	Data                   map[string]interface{} `json:"data,omitempty"`
	IncludeExternalUserIDs []string               `json:"include_external_user_ids,omitempty"`
	IncludedSegments       []string               `json:"included_segments,omitempty"`
}

// Send targets externalUserIDs, or the "Subscribed Users" segment when none are given.
func (c *OneSignalClient) Send(ctx context.Context, title, body string, data map[string]interface{}, externalUserIDs ...string) error {
	if c == nil {
		return nil
	}
	payload := oneSignalPayload{
		AppID:    c.appID,
		Headings: map[string]string{"en": title},
		Contents: map[string]string{"en": body},
		Data:     data,
	}
	if len(externalUserIDs) > 0 {
		payload.IncludeExternalUserIDs = externalUserIDs
	} else {
		payload.IncludedSegments = []string{"Subscribed Users"}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Basic "+c.apiKey)
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("onesignal: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("onesignal: status %d: %s", resp.StatusCode, body)
	}
	return nil
}
