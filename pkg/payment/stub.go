package payment

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// StubGateway is an in-memory gateway for development and tests. Payment
// requests stay "pending" until SetStatus is called.
type StubGateway struct {
	mu       sync.Mutex
	requests map[string]*ProviderResponse
	// Err, when set, is returned from every call.
	Err error
	// Created records every request passed to CreatePaymentRequest.
	Created []CreateRequest
}

func NewStubGateway() *StubGateway {
	return &StubGateway{requests: make(map[string]*ProviderResponse)}
}

func (s *StubGateway) CreatePaymentRequest(ctx context.Context, req CreateRequest) (*ProviderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	if strings.TrimSpace(req.WebhookURL) == "" {
		return nil, ErrWebhookNotConfigured
	}
	s.Created = append(s.Created, req)
	id := "stub_" + uuid.NewString()
	resp := &ProviderResponse{
		ID:     id,
		Status: "pending",
		Raw: map[string]interface{}{
			"id":               id,
			"status":           "pending",
			"amount":           req.Amount,
			"currency":         req.Currency,
			"reference_number": req.ReferenceNumber,
			"url":              fmt.Sprintf("https://stub.local/checkout/%s", id),
			"qr_code_data":     map[string]interface{}{"qr_code": "c3R1Yi1xcg=="},
		},
	}
	s.requests[id] = resp
	return resp, nil
}

func (s *StubGateway) GetPaymentRequest(ctx context.Context, paymentID string) (*ProviderResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	resp, ok := s.requests[paymentID]
	if !ok {
		return nil, &APIError{StatusCode: 404, Body: `{"message":"not found"}`}
	}
	cp := *resp
	return &cp, nil
}

// SetStatus simulates the provider moving a payment request to status.
func (s *StubGateway) SetStatus(paymentID, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if resp, ok := s.requests[paymentID]; ok {
		resp.Status = status
		resp.Raw["status"] = status
	}
}
