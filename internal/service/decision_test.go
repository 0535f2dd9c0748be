package service

import (
	"context"
	"testing"

	"bmr/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecideApprove(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, p := h.submitted(t)
	_, err := h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: p.ExternalRef(), Status: "completed"})
	require.NoError(t, err)

	got, err := h.decisions.Decide(ctx, staff, m.UUID, DecisionInput{Action: domain.ActionApprove, Comment: "welcome"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusApproved, got.WorkflowStatus.StatusCode)
	assert.Equal(t, "welcome", got.Reason)
	assert.Contains(t, h.notifier.changed, domain.StatusApproved)

	history, err := h.decisions.History(ctx, staff, m.UUID)
	require.NoError(t, err)
	last := history[len(history)-1]
	assert.Equal(t, domain.StatusPendingApproval, last.FromCode)
	assert.Equal(t, domain.StatusApproved, last.ToCode)
	require.NotNil(t, last.ActorID)
	assert.Equal(t, staff.UserID, *last.ActorID)
}

func TestDecideByManagementGroup(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
	require.NoError(t, err)

	manager := Actor{UserID: 2, IsManagement: true}
	got, err := h.decisions.Decide(ctx, manager, m.UUID, DecisionInput{StatusCode: domain.StatusRejected, Comment: "incomplete"})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRejected, got.WorkflowStatus.StatusCode)
}

func TestDecideForbidden(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
	require.NoError(t, err)

	_, err = h.decisions.Decide(ctx, applicant, m.UUID, DecisionInput{Action: domain.ActionApprove})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = h.decisions.History(ctx, applicant, m.UUID)
	assert.ErrorIs(t, err, ErrForbidden)

	got, err := h.store.Memberships().ByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.WorkflowStatus.StatusCode)
	assert.Equal(t, 0, h.store.AuditCount())
}

func TestDecideInvalidTargetWritesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
	require.NoError(t, err)

	for _, in := range []DecisionInput{
		{Action: "escalate"},
		{StatusCode: domain.StatusRoot},
		{StatusID: 31337},
		{},
	} {
		_, err := h.decisions.Decide(ctx, staff, m.UUID, in)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr, "%+v", in)
	}
	got, err := h.store.Memberships().ByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, got.WorkflowStatus.StatusCode)
	assert.Equal(t, 0, h.store.AuditCount())
	assert.Empty(t, h.notifier.changed)
}

func TestDecideUnknownMembership(t *testing.T) {
	h := newHarness(t)
	_, err := h.decisions.Decide(context.Background(), staff, "missing", DecisionInput{Action: domain.ActionApprove})
	assert.ErrorIs(t, err, ErrNotFound)
}
