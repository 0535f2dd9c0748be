package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"bmr/internal/domain"
	"bmr/internal/models"
	"bmr/internal/repository"
	"bmr/pkg/payment"

	"gorm.io/datatypes"
)

// Notifier delivers applicant-facing notifications.
type Notifier interface {
	NotifyPaymentReceived(ctx context.Context, userID uint, membershipUUID string, p *models.MembershipPayment) error
	NotifyStatusChanged(ctx context.Context, userID uint, membershipUUID string, st *models.Status, reason string) error
}

// Broadcaster pushes live updates to a user's open websocket connections.
type Broadcaster interface {
	BroadcastToUser(userID uint, payload interface{})
}

// MapProviderStatus maps a provider status onto a payment status. ok is false
// for statuses we do not act on.
func MapProviderStatus(providerStatus string) (status string, ok bool) {
	switch strings.ToLower(strings.TrimSpace(providerStatus)) {
	case "succeeded", "completed":
		return domain.PaymentStatusPaid, true
	case "pending":
		return domain.PaymentStatusCreated, true
	case "failed":
		return domain.PaymentStatusFailed, true
	case "cancelled", "canceled":
		return domain.PaymentStatusCancelled, true
	}
	return "", false
}

// canMove guards payment status changes: paid is final, failed and
// cancelled may only become paid.
func canMove(from, to string) bool {
	switch {
	case from == to:
		return false
	case from == domain.PaymentStatusPaid:
		return false
	case from == domain.PaymentStatusFailed, from == domain.PaymentStatusCancelled:
		return to == domain.PaymentStatusPaid
	}
	return true
}

// WebhookPayload is a provider notification reduced to what reconciliation needs.
type WebhookPayload struct {
	ExternalID string
	Status     string
	Raw        []byte
}

type ReconcileResult struct {
	Payment    *models.MembershipPayment
	Changed    bool
	BecamePaid bool
}

type ReconciliationService struct {
	store       repository.Store
	gateway     payment.Gateway
	locker      Locker
	notifier    Notifier
	events      EventPublisher
	broadcaster Broadcaster
}

func NewReconciliationService(store repository.Store, gateway payment.Gateway, locker Locker, notifier Notifier, events EventPublisher, broadcaster Broadcaster) *ReconciliationService {
	if locker == nil {
		locker = NoopLocker{}
	}
	if events == nil {
		events = NoopPublisher{}
	}
	return &ReconciliationService{
		store:       store,
		gateway:     gateway,
		locker:      locker,
		notifier:    notifier,
		events:      events,
		broadcaster: broadcaster,
	}
}

// HandleWebhook applies a provider notification. Deliveries may repeat or
// race with polling; the outcome is the same either way.
func (s *ReconciliationService) HandleWebhook(ctx context.Context, in WebhookPayload) (*ReconcileResult, error) {
	externalID := strings.TrimSpace(in.ExternalID)
	if externalID == "" {
		return nil, NewValidationError("id", "Missing payment request id")
	}
	p, err := s.store.Payments().ByExternalID(ctx, externalID)
	if err != nil {
		return nil, notFound("payment "+externalID, err)
	}
	target, ok := MapProviderStatus(in.Status)
	if !ok {
		slog.Info("webhook status ignored", "external_id", externalID, "status", in.Status)
		return &ReconcileResult{Payment: p}, nil
	}
	return s.apply(ctx, p.ID, externalID, target, in.Raw, SystemActor, domain.SourceWebhook)
}

// Refresh polls the provider for an online payment and applies the result.
// Paid and offline payments are returned as they are.
func (s *ReconciliationService) Refresh(ctx context.Context, p *models.MembershipPayment, source string) (*ReconcileResult, error) {
	if p.Status == domain.PaymentStatusPaid || p.Method != domain.PaymentMethodHitPay || p.ExternalRef() == "" {
		return &ReconcileResult{Payment: p}, nil
	}
	resp, err := s.gateway.GetPaymentRequest(ctx, p.ExternalRef())
	if err != nil {
		slog.Error("payment status check failed", "external_id", p.ExternalRef(), "err", err)
		return nil, ErrStatusCheck
	}
	target, ok := MapProviderStatus(resp.Status)
	if !ok {
		return &ReconcileResult{Payment: p}, nil
	}
	return s.apply(ctx, p.ID, p.ExternalRef(), target, resp.RawJSON(), SystemActor, source)
}

// ConfirmOffline marks a pending bank transfer or cash payment as paid.
func (s *ReconciliationService) ConfirmOffline(ctx context.Context, actor Actor, paymentUUID string) (*ReconcileResult, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}
	p, err := s.store.Payments().ByUUID(ctx, paymentUUID)
	if err != nil {
		return nil, notFound("payment", err)
	}
	if p.Method == domain.PaymentMethodHitPay {
		return nil, NewValidationError("method", "Online payments are confirmed by the payment provider")
	}
	return s.apply(ctx, p.ID, p.UUID, domain.PaymentStatusPaid, nil, actor, domain.SourceStaff)
}

func (s *ReconciliationService) apply(ctx context.Context, paymentID uint, lockKey, target string, raw []byte, actor Actor, source string) (*ReconcileResult, error) {
	release, err := s.locker.Acquire(ctx, "payment:"+lockKey)
	if err != nil {
		return nil, fmt.Errorf("acquire payment lock: %w", err)
	}
	defer release()

	res := &ReconcileResult{}
	var (
		change     *StatusChange
		membership *models.Membership
	)
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		p, err := tx.Payments().LockByID(ctx, paymentID)
		if err != nil {
			return notFound("payment", err)
		}
		res.Payment = p
		if !canMove(p.Status, target) {
			return nil
		}
		p.Status = target
		if raw != nil {
			p.RawResponse = datatypes.JSON(raw)
		}
		if target == domain.PaymentStatusPaid && p.PaidAt == nil {
			now := time.Now()
			p.PaidAt = &now
		}
		if err := tx.Payments().Save(ctx, p); err != nil {
			return err
		}
		res.Changed = true
		if target != domain.PaymentStatusPaid {
			return nil
		}
		res.BecamePaid = true

		m, err := tx.Memberships().LockByID(ctx, p.MembershipID)
		if err != nil {
			return notFound("membership", err)
		}
		membership = m
		flagChanged := !m.IsPaymentGenerated
		m.IsPaymentGenerated = true
		change, err = AdvanceOnPayment(ctx, tx, m, actor, source)
		if err != nil {
			return err
		}
		if change == nil && flagChanged {
			return tx.Memberships().Save(ctx, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Changed {
		slog.Info("payment reconciled", "payment", res.Payment.UUID, "status", res.Payment.Status, "source", source)
		s.afterCommit(ctx, res, membership, change)
	}
	return res, nil
}

// afterCommit runs side effects that must not roll back the payment.
func (s *ReconciliationService) afterCommit(ctx context.Context, res *ReconcileResult, m *models.Membership, change *StatusChange) {
	p := res.Payment
	if m == nil {
		if owner, err := s.store.Memberships().ByID(ctx, p.MembershipID); err == nil {
			m = owner
		}
	}
	userID, membershipUUID := uint(0), ""
	if m != nil {
		userID, membershipUUID = m.UserID, m.UUID
	}
	if s.broadcaster != nil && userID != 0 {
		msg := map[string]interface{}{
			"type":        "payment_status",
			"payment_id":  p.UUID,
			"external_id": p.ExternalRef(),
			"status":      p.Status,
		}
		if change != nil {
			msg["membership_status"] = change.To.StatusCode
		}
		s.broadcaster.BroadcastToUser(userID, msg)
	}
	if !res.BecamePaid {
		return
	}
	if s.notifier != nil {
		if err := s.notifier.NotifyPaymentReceived(ctx, userID, membershipUUID, p); err != nil {
			slog.Warn("payment notification failed", "payment", p.UUID, "err", err)
		}
	}
	events := []Event{{
		Type:           EventPaymentPaid,
		MembershipUUID: membershipUUID,
		UserID:         userID,
		Data: map[string]interface{}{
			"payment_id":  p.UUID,
			"external_id": p.ExternalRef(),
			"amount":      p.Amount.StringFixed(2),
			"currency":    p.Currency,
			"method":      p.Method,
		},
		OccurredAt: time.Now().UTC(),
	}}
	if change != nil {
		events = append(events, change.event())
	}
	publishAll(ctx, s.events, events...)
}
