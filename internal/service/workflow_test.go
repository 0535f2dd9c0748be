package service

import (
	"context"
	"testing"

	"bmr/internal/domain"
	"bmr/internal/models"
	"bmr/internal/repository"
	"bmr/internal/repository/repotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanEdit(t *testing.T) {
	for code, want := range map[string]bool{
		domain.StatusRoot:            false,
		domain.StatusDraft:           true,
		domain.StatusPendingPayment:  true,
		domain.StatusPendingApproval: true,
		domain.StatusRevise:          true,
		domain.StatusRejected:        false,
		domain.StatusTerminated:      false,
		domain.StatusApproved:        false,
		"99":                         false,
	} {
		assert.Equal(t, want, CanEdit(code), code)
	}
}

func TestResolveTarget(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewStore()
	approved, err := store.Statuses().ByCode(ctx, domain.StatusApproved)
	require.NoError(t, err)
	root, err := store.Statuses().ByCode(ctx, domain.StatusRoot)
	require.NoError(t, err)

	t.Run("action table", func(t *testing.T) {
		for action, code := range domain.ActionTargets {
			st, err := ResolveTarget(ctx, store.Statuses(), 0, "", action)
			require.NoError(t, err)
			assert.Equal(t, code, st.StatusCode)
		}
		st, err := ResolveTarget(ctx, store.Statuses(), 0, "", "  Approve ")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, st.StatusCode)
	})

	t.Run("status id wins over code and action", func(t *testing.T) {
		st, err := ResolveTarget(ctx, store.Statuses(), approved.ID, domain.StatusRejected, domain.ActionRevise)
		require.NoError(t, err)
		assert.Equal(t, domain.StatusApproved, st.StatusCode)
	})

	t.Run("status code", func(t *testing.T) {
		st, err := ResolveTarget(ctx, store.Statuses(), 0, domain.StatusRevise, "")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusRevise, st.StatusCode)
	})

	invalid := []struct {
		name   string
		id     uint
		code   string
		action string
		field  string
	}{
		{"nothing given", 0, "", "", "action"},
		{"unknown action", 0, "", "archive", "action"},
		{"unknown id", 424242, "", "", "status_id"},
		{"unknown code", 0, "77", "", "status_code"},
		{"root by code", 0, domain.StatusRoot, "", "status"},
		{"root by id", root.ID, "", "", "status"},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ResolveTarget(ctx, store.Statuses(), tc.id, tc.code, tc.action)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestTransitionWritesAudit(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
	require.NoError(t, err)

	var change *StatusChange
	err = h.store.Tx(ctx, func(tx repository.Store) error {
		locked, err := tx.Memberships().LockByID(ctx, m.ID)
		require.NoError(t, err)
		change, err = TransitionTo(ctx, tx, locked, domain.StatusRevise, "missing documents", staff, domain.SourceStaff)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, change.From)
	assert.Equal(t, domain.StatusRevise, change.To.StatusCode)

	got, err := h.store.Memberships().ByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRevise, got.WorkflowStatus.StatusCode)
	assert.Equal(t, "missing documents", got.Reason)

	audits, err := h.store.Audits().ListByMembership(ctx, m.ID)
	require.NoError(t, err)
	require.Len(t, audits, 1)
	assert.Equal(t, domain.StatusDraft, audits[0].FromCode)
	assert.Equal(t, domain.StatusRevise, audits[0].ToCode)
	assert.Equal(t, domain.SourceStaff, audits[0].Source)
	require.NotNil(t, audits[0].ActorID)
	assert.Equal(t, staff.UserID, *audits[0].ActorID)
}

func TestTransitionRejectsRoot(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
	require.NoError(t, err)

	err = h.store.Tx(ctx, func(tx repository.Store) error {
		_, err := TransitionTo(ctx, tx, m, domain.StatusRoot, "", staff, domain.SourceStaff)
		return err
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, 0, h.store.AuditCount())
}

func TestAdvanceOnPayment(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		from string
		want string
		move bool
	}{
		{domain.StatusDraft, domain.StatusPendingApproval, true},
		{domain.StatusPendingPayment, domain.StatusPendingApproval, true},
		{domain.StatusPendingApproval, domain.StatusPendingApproval, false},
		{domain.StatusRevise, domain.StatusRevise, false},
		{domain.StatusApproved, domain.StatusApproved, false},
		{domain.StatusRejected, domain.StatusRejected, false},
	}
	for _, tc := range cases {
		t.Run(tc.from, func(t *testing.T) {
			h := newHarness(t)
			m, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
			require.NoError(t, err)
			h.store.SetStatus(t, m.ID, tc.from)

			var change *StatusChange
			err = h.store.Tx(ctx, func(tx repository.Store) error {
				locked, err := tx.Memberships().LockByID(ctx, m.ID)
				require.NoError(t, err)
				change, err = AdvanceOnPayment(ctx, tx, locked, SystemActor, domain.SourceWebhook)
				return err
			})
			require.NoError(t, err)
			assert.Equal(t, tc.move, change != nil)

			got, err := h.store.Memberships().ByID(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got.WorkflowStatus.StatusCode)
		})
	}
}

func TestCalculateFee(t *testing.T) {
	ctx := context.Background()
	store := repotest.NewStore()

	_, err := CalculateFee(ctx, store.Lookups(), &models.Membership{})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "membership_type", verr.Field)

	id := uint(100)
	fee, err := CalculateFee(ctx, store.Lookups(), &models.Membership{MembershipTypeID: &id})
	require.NoError(t, err)
	assert.Equal(t, "50.00", fee.StringFixed(2))

	missing := uint(999)
	_, err = CalculateFee(ctx, store.Lookups(), &models.Membership{MembershipTypeID: &missing})
	require.ErrorAs(t, err, &verr)
}
