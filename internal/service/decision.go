package service

import (
	"context"
	"log/slog"

	"bmr/internal/domain"
	"bmr/internal/models"
	"bmr/internal/repository"
)

type DecisionInput struct {
	Action     string
	StatusID   uint
	StatusCode string
	Comment    string
}

// DecisionService applies management decisions to applications.
type DecisionService struct {
	store    repository.Store
	notifier Notifier
	events   EventPublisher
}

func NewDecisionService(store repository.Store, notifier Notifier, events EventPublisher) *DecisionService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &DecisionService{store: store, notifier: notifier, events: events}
}

// Decide moves the membership to the resolved target and records the comment
// as its reason. The target is resolved before anything is written.
func (s *DecisionService) Decide(ctx context.Context, actor Actor, membershipUUID string, in DecisionInput) (*models.Membership, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}
	target, err := ResolveTarget(ctx, s.store.Statuses(), in.StatusID, in.StatusCode, in.Action)
	if err != nil {
		return nil, err
	}
	current, err := s.store.Memberships().ByUUID(ctx, membershipUUID)
	if err != nil {
		return nil, notFound("membership", err)
	}
	var change *StatusChange
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		m, err := tx.Memberships().LockByID(ctx, current.ID)
		if err != nil {
			return notFound("membership", err)
		}
		change, err = Transition(ctx, tx, m, target, in.Comment, actor, domain.SourceStaff)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("workflow decision", "membership", membershipUUID, "from", change.From, "to", target.StatusCode, "actor", actor.UserID)
	publishAll(ctx, s.events, change.event())
	if s.notifier != nil {
		if err := s.notifier.NotifyStatusChanged(ctx, change.UserID, change.MembershipUUID, target, in.Comment); err != nil {
			slog.Warn("status notification failed", "membership", membershipUUID, "err", err)
		}
	}
	return s.store.Memberships().ByID(ctx, current.ID)
}

// History returns the audit trail of a membership.
func (s *DecisionService) History(ctx context.Context, actor Actor, membershipUUID string) ([]models.WorkflowAudit, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}
	m, err := s.store.Memberships().ByUUID(ctx, membershipUUID)
	if err != nil {
		return nil, notFound("membership", err)
	}
	return s.store.Audits().ListByMembership(ctx, m.ID)
}
