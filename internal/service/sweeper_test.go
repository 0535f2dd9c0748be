package service

import (
	"context"
	"testing"
	"time"

	"bmr/config"
	"bmr/internal/domain"
	"bmr/internal/models"
	"bmr/pkg/payment"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepSettlesStalePayments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, p := h.submitted(t)
	sweeper := NewPaymentSweeper(h.store, h.recon, config.SweeperConfig{MinAge: 0, Batch: 10})

	assert.Equal(t, 0, sweeper.Sweep(ctx))

	h.gateway.SetStatus(p.ExternalRef(), "completed")
	assert.Equal(t, 1, sweeper.Sweep(ctx))
	assert.Equal(t, 0, sweeper.Sweep(ctx))

	got, err := h.store.Memberships().ByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, got.WorkflowStatus.StatusCode)
	assert.Equal(t, 1, h.notifier.paidCount())

	audits, err := h.store.Audits().ListByMembership(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SourceSweeper, audits[len(audits)-1].Source)
}

func TestSweepSkipsFreshPayments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, p := h.submitted(t)
	h.gateway.SetStatus(p.ExternalRef(), "completed")

	sweeper := NewPaymentSweeper(h.store, h.recon, config.SweeperConfig{MinAge: time.Hour, Batch: 10})
	assert.Equal(t, 0, sweeper.Sweep(ctx))
}

// stalePayment stores an open online payment the provider knows about.
func (h *harness) stalePayment(t *testing.T, membershipID uint, createdAt time.Time) *models.MembershipPayment {
	t.Helper()
	ctx := context.Background()
	resp, err := h.gateway.CreatePaymentRequest(ctx, payment.CreateRequest{Amount: "50.00", Currency: "SGD", WebhookURL: "https://example.com/hook"})
	require.NoError(t, err)
	provider := domain.ProviderHitPay
	p := &models.MembershipPayment{
		MembershipID: membershipID,
		Method:       domain.PaymentMethodHitPay,
		Provider:     &provider,
		Status:       domain.PaymentStatusCreated,
		ExternalID:   &resp.ID,
		Amount:       decimal.NewFromInt(50),
		Currency:     "SGD",
		CreatedAt:    createdAt,
	}
	require.NoError(t, h.store.Payments().Create(ctx, p))
	return p
}

func TestSweepRotatesThroughBacklog(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, first := h.submitted(t)
	var newest *models.MembershipPayment
	for i := 0; i < 3; i++ {
		newest = h.stalePayment(t, m.ID, time.Now())
	}
	sweeper := NewPaymentSweeper(h.store, h.recon, config.SweeperConfig{MinAge: 0, Batch: 2})

	assert.Equal(t, 0, sweeper.Sweep(ctx))
	got, err := h.store.Payments().ByUUID(ctx, first.UUID)
	require.NoError(t, err)
	assert.NotNil(t, got.LastCheckedAt)
	got, err = h.store.Payments().ByUUID(ctx, newest.UUID)
	require.NoError(t, err)
	assert.Nil(t, got.LastCheckedAt)

	h.gateway.SetStatus(newest.ExternalRef(), "completed")
	assert.Equal(t, 1, sweeper.Sweep(ctx))
	got, err = h.store.Payments().ByUUID(ctx, newest.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, got.Status)
}

func TestSweepSkipsAbandonedPayments(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, _ := h.submitted(t)
	old := h.stalePayment(t, m.ID, time.Now().Add(-30*24*time.Hour))
	h.gateway.SetStatus(old.ExternalRef(), "completed")

	sweeper := NewPaymentSweeper(h.store, h.recon, config.SweeperConfig{MinAge: 0, MaxAge: 7 * 24 * time.Hour, Batch: 10})
	assert.Equal(t, 0, sweeper.Sweep(ctx))
	got, err := h.store.Payments().ByUUID(ctx, old.UUID)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCreated, got.Status)
	assert.Nil(t, got.LastCheckedAt)
}

func TestSweeperStartRejectsBadSchedule(t *testing.T) {
	h := newHarness(t)
	sweeper := NewPaymentSweeper(h.store, h.recon, config.SweeperConfig{Schedule: "not a schedule"})
	assert.Error(t, sweeper.Start())
	sweeper.Stop()
}
