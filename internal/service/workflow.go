package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"bmr/internal/domain"
	"bmr/internal/models"
	"bmr/internal/repository"

	"github.com/shopspring/decimal"
)

// CanEdit reports whether the applicant may still change an application in this status.
func CanEdit(statusCode string) bool {
	return domain.EditableStatuses[statusCode]
}

// StatusChange describes a committed transition, for events and notifications.
type StatusChange struct {
	MembershipID   uint
	MembershipUUID string
	UserID         uint
	From           string
	To             *models.Status
	Reason         string
	Source         string
	ActorID        *uint
}

func (c *StatusChange) event() Event {
	return Event{
		Type:           EventStatusChanged,
		MembershipUUID: c.MembershipUUID,
		UserID:         c.UserID,
		Data: map[string]interface{}{
			"from":   c.From,
			"to":     c.To.StatusCode,
			"reason": c.Reason,
			"source": c.Source,
		},
		OccurredAt: time.Now().UTC(),
	}
}

// statusCode returns the current code, loading the status row when m was read
// without it.
func statusCode(ctx context.Context, tx repository.Store, m *models.Membership) (string, error) {
	if m.WorkflowStatus.ID == m.WorkflowStatusID && m.WorkflowStatus.StatusCode != "" {
		return m.WorkflowStatus.StatusCode, nil
	}
	st, err := tx.Statuses().ByID(ctx, m.WorkflowStatusID)
	if err != nil {
		return "", err
	}
	m.WorkflowStatus = *st
	return st.StatusCode, nil
}

// Transition is the only writer of a membership's workflow status. It sets
// status and reason and appends an audit row, all inside tx.
func Transition(ctx context.Context, tx repository.Store, m *models.Membership, target *models.Status, reason string, actor Actor, source string) (*StatusChange, error) {
	if target == nil || target.StatusCode == domain.StatusRoot {
		return nil, NewValidationError("status", "Status cannot be assigned to a membership")
	}
	from, err := statusCode(ctx, tx, m)
	if err != nil {
		return nil, err
	}
	m.WorkflowStatusID = target.ID
	m.WorkflowStatus = *target
	m.Reason = reason
	if err := tx.Memberships().Save(ctx, m); err != nil {
		return nil, err
	}
	audit := &models.WorkflowAudit{
		MembershipID: m.ID,
		FromCode:     from,
		ToCode:       target.StatusCode,
		ActorID:      actor.id(),
		Source:       source,
		Reason:       reason,
	}
	if err := tx.Audits().Create(ctx, audit); err != nil {
		return nil, err
	}
	return &StatusChange{
		MembershipID:   m.ID,
		MembershipUUID: m.UUID,
		UserID:         m.UserID,
		From:           from,
		To:             target,
		Reason:         reason,
		Source:         source,
		ActorID:        audit.ActorID,
	}, nil
}

// TransitionTo looks up code and transitions to it.
func TransitionTo(ctx context.Context, tx repository.Store, m *models.Membership, code, reason string, actor Actor, source string) (*StatusChange, error) {
	target, err := tx.Statuses().ByCode(ctx, code)
	if err != nil {
		return nil, notFound("status "+code, err)
	}
	return Transition(ctx, tx, m, target, reason, actor, source)
}

// AdvanceOnPayment moves draft or pending-payment memberships to pending
// approval. Any other status is left alone, so replays are no-ops.
func AdvanceOnPayment(ctx context.Context, tx repository.Store, m *models.Membership, actor Actor, source string) (*StatusChange, error) {
	code, err := statusCode(ctx, tx, m)
	if err != nil {
		return nil, err
	}
	if code != domain.StatusDraft && code != domain.StatusPendingPayment {
		return nil, nil
	}
	return TransitionTo(ctx, tx, m, domain.StatusPendingApproval, "", actor, source)
}

// ResolveTarget picks the decision target: explicit status id, then status
// code, then the action table. Nothing is mutated.
func ResolveTarget(ctx context.Context, statuses repository.StatusRepo, statusID uint, code, action string) (*models.Status, error) {
	var (
		st  *models.Status
		err error
	)
	switch {
	case statusID != 0:
		st, err = statuses.ByID(ctx, statusID)
		if err != nil {
			return nil, unresolved("status_id", "Unknown status", err)
		}
	case strings.TrimSpace(code) != "":
		st, err = statuses.ByCode(ctx, strings.TrimSpace(code))
		if err != nil {
			return nil, unresolved("status_code", "Unknown status code", err)
		}
	case strings.TrimSpace(action) != "":
		target, ok := domain.ActionTargets[strings.ToLower(strings.TrimSpace(action))]
		if !ok {
			return nil, NewValidationError("action", "Unknown action. Use approve, reject or revise")
		}
		st, err = statuses.ByCode(ctx, target)
		if err != nil {
			return nil, unresolved("action", "Target status is not configured", err)
		}
	default:
		return nil, NewValidationError("action", "Provide an action, status_id or status_code")
	}
	if st.StatusCode == domain.StatusRoot {
		return nil, NewValidationError("status", "Status cannot be assigned to a membership")
	}
	return st, nil
}

func unresolved(field, message string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return NewValidationError(field, message)
	}
	return err
}

// CalculateFee is the amount of the membership's type.
func CalculateFee(ctx context.Context, lookups repository.LookupRepo, m *models.Membership) (decimal.Decimal, error) {
	if m.MembershipTypeID == nil {
		return decimal.Zero, NewValidationError("membership_type", "Membership type is required to calculate the fee")
	}
	if m.MembershipType != nil && m.MembershipType.ID == *m.MembershipTypeID {
		return m.MembershipType.Amount, nil
	}
	t, err := lookups.MembershipType(ctx, *m.MembershipTypeID)
	if err != nil {
		return decimal.Zero, unresolved("membership_type", "Membership type not found", err)
	}
	return t.Amount, nil
}
