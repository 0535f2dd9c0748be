package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrWebhookNotConfigured means no webhook URL is set; payment requests are
	// never created without one.
	ErrWebhookNotConfigured = errors.New("payment: webhook url is not configured")
	ErrEmptyPaymentID       = errors.New("payment: empty payment request id")
	ErrAPIKeyNotConfigured  = errors.New("payment: HITPAY_API_KEY is not configured")
)

// CreateRequest is the body of a provider payment request.
type CreateRequest struct {
	Amount                string
	Currency              string
	PaymentMethods        []string
	GenerateQR            bool
	ReferenceNumber       string
	WebhookURL            string
	RedirectURL           string
	Name                  string
	Email                 string
	Phone                 string
	Purpose               string
	ExpiryDate            string
	AllowRepeatedPayments bool
}

// ProviderResponse is the provider's opaque payload plus the fields we read.
type ProviderResponse struct {
	ID     string
	Status string
	Raw    map[string]interface{}
}

// RawJSON returns the provider payload for audit storage.
func (r *ProviderResponse) RawJSON() []byte {
	if r == nil || r.Raw == nil {
		return []byte("{}")
	}
	b, err := json.Marshal(r.Raw)
	if err != nil {
		return []byte("{}")
	}
	return b
}

// QRCode returns the raw QR payload found in the response, before normalization.
func (r *ProviderResponse) QRCode() string {
	if r == nil {
		return ""
	}
	return ExtractQRCode(r.Raw)
}

// APIError is a non-2xx answer from the provider.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payment provider returned %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Gateway is a payment-request API.
type Gateway interface {
	CreatePaymentRequest(ctx context.Context, req CreateRequest) (*ProviderResponse, error)
	GetPaymentRequest(ctx context.Context, paymentID string) (*ProviderResponse, error)
}

func parseResponse(body []byte) (*ProviderResponse, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("payment: decode response: %w", err)
	}
	return &ProviderResponse{
		ID:     stringField(raw, "id"),
		Status: stringField(raw, "status"),
		Raw:    raw,
	}, nil
}

func stringField(m map[string]interface{}, key string) string {
	if m == nil {
		return ""
	}
	switch v := m[key].(type) {
	case string:
		return v
	case float64:
		return fmt.Sprintf("%.0f", v)
	default:
		return ""
	}
}
