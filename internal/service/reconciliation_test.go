package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bmr/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapProviderStatus(t *testing.T) {
	cases := map[string]string{
		"completed": domain.PaymentStatusPaid,
		"succeeded": domain.PaymentStatusPaid,
		"COMPLETED": domain.PaymentStatusPaid,
		"pending":   domain.PaymentStatusCreated,
		"failed":    domain.PaymentStatusFailed,
		"cancelled": domain.PaymentStatusCancelled,
		"canceled":  domain.PaymentStatusCancelled,
	}
	for in, want := range cases {
		got, ok := MapProviderStatus(in)
		assert.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	for _, in := range []string{"", "refunded", "expired"} {
		_, ok := MapProviderStatus(in)
		assert.False(t, ok, in)
	}
}

func TestCanMove(t *testing.T) {
	assert.True(t, canMove(domain.PaymentStatusCreated, domain.PaymentStatusPaid))
	assert.True(t, canMove(domain.PaymentStatusCreated, domain.PaymentStatusFailed))
	assert.True(t, canMove(domain.PaymentStatusPending, domain.PaymentStatusPaid))
	assert.True(t, canMove(domain.PaymentStatusFailed, domain.PaymentStatusPaid))
	assert.True(t, canMove(domain.PaymentStatusCancelled, domain.PaymentStatusPaid))
	assert.False(t, canMove(domain.PaymentStatusFailed, domain.PaymentStatusCreated))
	assert.False(t, canMove(domain.PaymentStatusCancelled, domain.PaymentStatusFailed))
	assert.False(t, canMove(domain.PaymentStatusPaid, domain.PaymentStatusFailed))
	assert.False(t, canMove(domain.PaymentStatusPaid, domain.PaymentStatusPaid))
}

func TestWebhookMarksPaidAndAdvances(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, p := h.submitted(t)

	res, err := h.recon.HandleWebhook(ctx, WebhookPayload{
		ExternalID: p.ExternalRef(),
		Status:     "completed",
		Raw:        []byte(`{"status":"completed"}`),
	})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.True(t, res.BecamePaid)
	assert.Equal(t, domain.PaymentStatusPaid, res.Payment.Status)
	require.NotNil(t, res.Payment.PaidAt)
	assert.JSONEq(t, `{"status":"completed"}`, string(res.Payment.RawResponse))

	got, err := h.store.Memberships().ByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, got.WorkflowStatus.StatusCode)

	assert.Equal(t, 1, h.notifier.paidCount())
	assert.Equal(t, []string{m.UUID}, h.notifier.paidFor)
	assert.Contains(t, h.events.types(), EventPaymentPaid)
	assert.NotEmpty(t, h.broadcaster.sent[applicant.UserID])

	audits, err := h.store.Audits().ListByMembership(ctx, m.ID)
	require.NoError(t, err)
	last := audits[len(audits)-1]
	assert.Equal(t, domain.StatusPendingPayment, last.FromCode)
	assert.Equal(t, domain.StatusPendingApproval, last.ToCode)
	assert.Equal(t, domain.SourceWebhook, last.Source)
	assert.Nil(t, last.ActorID)
}

func TestWebhookReplayIsNoop(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, p := h.submitted(t)
	in := WebhookPayload{ExternalID: p.ExternalRef(), Status: "completed"}

	first, err := h.recon.HandleWebhook(ctx, in)
	require.NoError(t, err)
	paidAt := *first.Payment.PaidAt
	audits := h.store.AuditCount()
	events := len(h.events.types())

	for i := 0; i < 3; i++ {
		again, err := h.recon.HandleWebhook(ctx, in)
		require.NoError(t, err)
		assert.False(t, again.Changed)
		assert.False(t, again.BecamePaid)
		assert.True(t, paidAt.Equal(*again.Payment.PaidAt))
	}
	assert.Equal(t, 1, h.notifier.paidCount())
	assert.Equal(t, audits, h.store.AuditCount())
	assert.Len(t, h.events.types(), events)
}

func TestWebhookAndPollRace(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, p := h.submitted(t)
	h.gateway.SetStatus(p.ExternalRef(), "completed")

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: p.ExternalRef(), Status: "completed"})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := h.payments.PaymentStatus(ctx, applicant, p.ExternalRef(), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.notifier.paidCount())
	paid := 0
	for _, ty := range h.events.types() {
		if ty == EventPaymentPaid {
			paid++
		}
	}
	assert.Equal(t, 1, paid)
}

func TestWebhookErrors(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: "  ", Status: "completed"})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)

	_, err = h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: "unknown", Status: "completed"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWebhookIgnoresUnknownStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, p := h.submitted(t)

	res, err := h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: p.ExternalRef(), Status: "refunded"})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, domain.PaymentStatusCreated, res.Payment.Status)
}

func TestFailedPaymentOnlyMovesToPaid(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, p := h.submitted(t)

	res, err := h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: p.ExternalRef(), Status: "failed"})
	require.NoError(t, err)
	assert.True(t, res.Changed)
	assert.Equal(t, domain.PaymentStatusFailed, res.Payment.Status)
	assert.Equal(t, 0, h.notifier.paidCount())

	res, err = h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: p.ExternalRef(), Status: "pending"})
	require.NoError(t, err)
	assert.False(t, res.Changed)
	assert.Equal(t, domain.PaymentStatusFailed, res.Payment.Status)

	res, err = h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: p.ExternalRef(), Status: "completed"})
	require.NoError(t, err)
	assert.True(t, res.BecamePaid)

	got, err := h.store.Memberships().ByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, got.WorkflowStatus.StatusCode)
}

func TestPaidAfterApprovalLeavesStatus(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, p := h.submitted(t)
	h.store.SetStatus(t, m.ID, domain.StatusApproved)

	res, err := h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: p.ExternalRef(), Status: "completed"})
	require.NoError(t, err)
	assert.True(t, res.BecamePaid)

	got, err := h.store.Memberships().ByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.WorkflowStatus.StatusCode)
}

func TestNotifierFailureDoesNotFailWebhook(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, p := h.submitted(t)
	h.notifier.err = errors.New("push service down")

	res, err := h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: p.ExternalRef(), Status: "completed"})
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, res.Payment.Status)
}

func TestRefreshGatewayErrorIsGeneric(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, p := h.submitted(t)
	h.gateway.Err = errors.New("hitpay returned 500: internal details")

	_, err := h.recon.Refresh(ctx, p, domain.SourcePoll)
	assert.ErrorIs(t, err, ErrStatusCheck)
	assert.NotContains(t, err.Error(), "internal details")
}

func TestConfirmOffline(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m := h.completed(t)
	p, err := h.payments.CreateOfflinePayment(ctx, applicant, OfflinePaymentInput{Method: domain.PaymentMethodBankTransfer, ReferenceNo: "TRX-1"}, "")
	require.NoError(t, err)

	_, err = h.recon.ConfirmOffline(ctx, applicant, p.UUID)
	assert.ErrorIs(t, err, ErrForbidden)

	res, err := h.recon.ConfirmOffline(ctx, staff, p.UUID)
	require.NoError(t, err)
	assert.True(t, res.BecamePaid)
	assert.Equal(t, 1, h.notifier.paidCount())
	assert.Equal(t, []string{m.UUID}, h.notifier.paidFor)

	res, err = h.recon.ConfirmOffline(ctx, staff, p.UUID)
	require.NoError(t, err)
	assert.False(t, res.Changed)

	_, err = h.recon.ConfirmOffline(ctx, staff, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
