package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HitPayClient calls the HitPay payment-request API.
type HitPayClient struct {
	BaseURL string
	APIKey  string
	client  *http.Client
}

func NewHitPayClient(baseURL, apiKey string, timeout time.Duration) *HitPayClient {
	if baseURL == "" {
		baseURL = "https://api.sandbox.hit-pay.com/v1"
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HitPayClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
	}
}

type hitPayCreateReq struct {
	Amount                string   `json:"amount"`
	Currency              string   `json:"currency"`
	PaymentMethods        []string `json:"payment_methods"`
	GenerateQR            bool     `json:"generate_qr"`
	ReferenceNumber       string   `json:"reference_number,omitempty"`
	Webhook               string   `json:"webhook"`
	RedirectURL           string   `json:"redirect_url,omitempty"`
	Name                  string   `json:"name,omitempty"`
	Email                 string   `json:"email,omitempty"`
	Phone                 string   `json:"phone,omitempty"`
	Purpose               string   `json:"purpose,omitempty"`
	ExpiryDate            string   `json:"expiry_date,omitempty"`
	AllowRepeatedPayments bool     `json:"allow_repeated_payments,omitempty"`
}

// CreatePaymentRequest POSTs /payment-requests. A webhook URL is required.
func (c *HitPayClient) CreatePaymentRequest(ctx context.Context, req CreateRequest) (*ProviderResponse, error) {
	if strings.TrimSpace(req.WebhookURL) == "" {
		return nil, ErrWebhookNotConfigured
	}
	payload := hitPayCreateReq{
		Amount:                req.Amount,
		Currency:              strings.ToLower(req.Currency),
		PaymentMethods:        req.PaymentMethods,
		GenerateQR:            req.GenerateQR,
		ReferenceNumber:       req.ReferenceNumber,
		Webhook:               req.WebhookURL,
		RedirectURL:           req.RedirectURL,
		Name:                  req.Name,
		Email:                 req.Email,
		Phone:                 req.Phone,
		Purpose:               req.Purpose,
		ExpiryDate:            req.ExpiryDate,
		AllowRepeatedPayments: req.AllowRepeatedPayments,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	slog.Info("hitpay create payment request", "reference_number", req.ReferenceNumber, "amount", req.Amount, "currency", payload.Currency)
	respBody, err := c.do(ctx, http.MethodPost, c.BaseURL+"/payment-requests", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	out, err := parseResponse(respBody)
	if err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, ErrEmptyPaymentID
	}
	return out, nil
}

// GetPaymentRequest GETs /payment-requests/{id}.
func (c *HitPayClient) GetPaymentRequest(ctx context.Context, paymentID string) (*ProviderResponse, error) {
	if paymentID == "" {
		return nil, ErrEmptyPaymentID
	}
	respBody, err := c.do(ctx, http.MethodGet, c.BaseURL+"/payment-requests/"+url.PathEscape(paymentID), nil)
	if err != nil {
		return nil, err
	}
	return parseResponse(respBody)
}

func (c *HitPayClient) do(ctx context.Context, method, endpoint string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-BUSINESS-API-KEY", c.APIKey)
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("hitpay %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Warn("hitpay non-2xx response", "method", method, "status", resp.StatusCode)
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}
	return respBody, nil
}
