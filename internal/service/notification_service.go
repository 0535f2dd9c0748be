package service

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"

	"bmr/internal/domain"
	"bmr/internal/models"
	"bmr/internal/repository"

	"gorm.io/datatypes"
)

type NotificationService struct {
	store     repository.Store
	fcm       *FCMService
	oneSignal *OneSignalClient
}

func NewNotificationService(store repository.Store, fcm *FCMService, oneSignal *OneSignalClient) *NotificationService {
	return &NotificationService{store: store, fcm: fcm, oneSignal: oneSignal}
}

// Notify stores an in-app notification and pushes it. Push failures are logged only.
func (s *NotificationService) Notify(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) error {
	n := &models.Notification{UserID: userID, Type: notifType, Title: title, Body: body}
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			return err
		}
		n.Data = datatypes.JSON(b)
		n.MembershipUUID, _ = data["membership_id"].(string)
	}
	err := s.store.Notifications().Create(ctx, n)
	if err != nil {
		return err
	}
	s.sendPush(ctx, userID, notifType, title, body, data)
	return nil
}

func (s *NotificationService) sendPush(ctx context.Context, userID uint, notifType, title, body string, data map[string]interface{}) {
	if s.fcm != nil {
		u, err := s.store.Users().ByID(ctx, userID)
		if err == nil && u.FCMToken != "" {
			if err := s.fcm.SendToUser(ctx, u.FCMToken, notifType, title, body, data); err != nil {
				slog.Warn("fcm push failed", "user_id", userID, "err", err)
			}
		}
	}
	if s.oneSignal != nil {
		if err := s.oneSignal.Send(ctx, title, body, data, strconv.FormatUint(uint64(userID), 10)); err != nil {
			slog.Warn("onesignal push failed", "user_id", userID, "err", err)
		}
	}
}

// NotifyPaymentReceived tells the applicant their fee was received.
func (s *NotificationService) NotifyPaymentReceived(ctx context.Context, userID uint, membershipUUID string, p *models.MembershipPayment) error {
	return s.Notify(ctx, userID, domain.NotificationTypePayment, "Payment received",
		"Your membership payment of "+p.Currency+" "+p.Amount.StringFixed(2)+" has been received.",
		map[string]interface{}{
			"type":          domain.NotificationTypePayment,
			"membership_id": membershipUUID,
			"status":        p.Status,
			"payment_id":    p.UUID,
			"external_id":   p.ExternalRef(),
		})
}

// NotifyStatusChanged tells the applicant about a management decision.
func (s *NotificationService) NotifyStatusChanged(ctx context.Context, userID uint, membershipUUID string, st *models.Status, reason string) error {
	body := "Your membership application is now " + st.ExternalStatus + "."
	if reason != "" {
		body += " " + reason
	}
	return s.Notify(ctx, userID, domain.NotificationTypeStatus, "Membership update", body, map[string]interface{}{
		"membership_id": membershipUUID,
		"status_code":   st.StatusCode,
	})
}

func (s *NotificationService) List(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.store.Notifications().ListByUserID(ctx, userID, limit, offset)
}

func (s *NotificationService) MarkRead(ctx context.Context, userID, id uint) error {
	return notFound("notification", s.store.Notifications().MarkRead(ctx, id, userID))
}
