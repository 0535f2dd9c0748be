package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"bmr/config"
	"bmr/internal/domain"
	"bmr/internal/models"
	"bmr/internal/repository"
	"bmr/pkg/cloudinary"
	"bmr/pkg/payment"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type OnlinePaymentInput struct {
	Amount      *decimal.Decimal `json:"amount"`
	Currency    string           `json:"currency" binding:"omitempty,len=3"`
	PeriodYear  int              `json:"period_year" binding:"omitempty,min=2000,max=2100"`
	Description string           `json:"description" binding:"max=500"`
}

type OfflinePaymentInput struct {
	Method      string           `json:"method" form:"method" binding:"required,oneof=bank_transfer cash"`
	Amount      *decimal.Decimal `json:"amount" form:"-"`
	Currency    string           `json:"currency" form:"currency" binding:"omitempty,len=3"`
	PeriodYear  int              `json:"period_year" form:"period_year" binding:"omitempty,min=2000,max=2100"`
	ReferenceNo string           `json:"reference_no" form:"reference_no" binding:"max=100"`
	Description string           `json:"description" form:"description" binding:"max=500"`
}

// PaymentService creates membership payments and answers status queries.
type PaymentService struct {
	store    repository.Store
	gateway  payment.Gateway
	recon    *ReconciliationService
	uploader cloudinary.Client
	hitpay   config.HitPayConfig
	folder   string
	events   EventPublisher
}

func NewPaymentService(store repository.Store, gateway payment.Gateway, recon *ReconciliationService, uploader cloudinary.Client, hitpay config.HitPayConfig, folder string, events EventPublisher) *PaymentService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &PaymentService{
		store:    store,
		gateway:  gateway,
		recon:    recon,
		uploader: uploader,
		hitpay:   hitpay,
		folder:   folder,
		events:   events,
	}
}

func (s *PaymentService) currency(in string) string {
	c := strings.ToUpper(strings.TrimSpace(in))
	if c == "" {
		c = strings.ToUpper(s.hitpay.Currency)
	}
	if c == "" {
		c = domain.DefaultCurrency
	}
	return c
}

// amount uses the explicit amount or falls back to the membership fee. A
// membership type is required either way.
func (s *PaymentService) amount(ctx context.Context, m *models.Membership, explicit *decimal.Decimal) (decimal.Decimal, error) {
	if m.MembershipTypeID == nil {
		return decimal.Zero, NewValidationError("membership_type", "Membership type is required to create a payment")
	}
	if explicit != nil {
		if !explicit.IsPositive() {
			return decimal.Zero, NewValidationError("amount", "Amount must be greater than zero")
		}
		return explicit.Round(2), nil
	}
	fee, err := CalculateFee(ctx, s.store.Lookups(), m)
	if err != nil {
		return decimal.Zero, err
	}
	if !fee.IsPositive() {
		return decimal.Zero, NewValidationError("amount", "Unable to determine membership fee amount")
	}
	return fee, nil
}

func (s *PaymentService) editableMembership(ctx context.Context, actor Actor) (*models.Membership, error) {
	m, err := s.store.Memberships().ByUserID(ctx, actor.UserID)
	if err != nil {
		return nil, notFound("membership", err)
	}
	if !CanEdit(m.WorkflowStatus.StatusCode) {
		return nil, errNotEditable()
	}
	if err := readyForPayment(m); err != nil {
		return nil, err
	}
	return m, nil
}

// readyForPayment requires both application pages to be complete.
func readyForPayment(m *models.Membership) error {
	if !m.PageOneComplete() {
		return NewValidationError("page1", "Please complete Page 1 (Profile & Contact Info) first")
	}
	if !m.IsEducationCompleted || !m.IsWorkCompleted {
		return NewValidationError("page2", "Please complete Page 2 (Education & Work Info) first")
	}
	return nil
}

// CreateOnlinePayment requests a QR payment from the provider. An open request
// for the same amount is reused. Nothing is stored unless the provider accepted it.
func (s *PaymentService) CreateOnlinePayment(ctx context.Context, actor Actor, in OnlinePaymentInput) (*models.MembershipPayment, error) {
	m, err := s.editableMembership(ctx, actor)
	if err != nil {
		return nil, err
	}
	amount, err := s.amount(ctx, m, in.Amount)
	if err != nil {
		return nil, err
	}
	currency := s.currency(in.Currency)
	periodYear := in.PeriodYear
	if periodYear == 0 {
		periodYear = time.Now().Year()
	}
	description := strings.TrimSpace(in.Description)
	if description == "" {
		description = "Membership application payment - " + m.ReferenceNo
	}

	if open, err := s.store.Payments().OpenOnline(ctx, m.ID); err == nil {
		if open.Amount.Equal(amount) && open.Currency == currency {
			return open, nil
		}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	req := payment.CreateRequest{
		Amount:          amount.StringFixed(2),
		Currency:        currency,
		PaymentMethods:  s.hitpay.PaymentMethods,
		GenerateQR:      true,
		ReferenceNumber: fmt.Sprintf("membership_%d", m.ID),
		WebhookURL:      s.hitpay.WebhookURL,
		RedirectURL:     s.hitpay.RedirectURL,
		Purpose:         description,
	}
	if u, err := s.store.Users().ByID(ctx, m.UserID); err == nil {
		req.Name = u.FullName()
		req.Email = u.Email
	}
	resp, err := s.gateway.CreatePaymentRequest(ctx, req)
	if err != nil {
		slog.Error("payment request creation failed", "membership", m.UUID, "err", err)
		return nil, ErrPaymentCreation
	}

	provider := domain.ProviderHitPay
	externalID := resp.ID
	p := &models.MembershipPayment{
		MembershipID: m.ID,
		Method:       domain.PaymentMethodHitPay,
		Provider:     &provider,
		Status:       domain.PaymentStatusCreated,
		ExternalID:   &externalID,
		ReferenceNo:  req.ReferenceNumber,
		Description:  description,
		Amount:       amount,
		Currency:     currency,
		PeriodYear:   periodYear,
		QRCode:       resp.QRCode(),
		RawResponse:  datatypes.JSON(resp.RawJSON()),
	}
	var change *StatusChange
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		locked, err := tx.Memberships().LockByID(ctx, m.ID)
		if err != nil {
			return err
		}
		if !CanEdit(locked.WorkflowStatus.StatusCode) {
			return errNotEditable()
		}
		if err := readyForPayment(locked); err != nil {
			return err
		}
		if err := tx.Payments().Create(ctx, p); err != nil {
			return err
		}
		locked.IsPaymentGenerated = true
		if locked.WorkflowStatus.StatusCode != domain.StatusDraft {
			return tx.Memberships().Save(ctx, locked)
		}
		change, err = TransitionTo(ctx, tx, locked, domain.StatusPendingPayment, "", actor, domain.SourceApplicant)
		return err
	})
	if err != nil {
		slog.Error("payment request created but not stored", "membership", m.UUID, "external_id", externalID, "err", err)
		return nil, err
	}
	slog.Info("payment request created", "membership", m.UUID, "payment", p.UUID, "external_id", externalID, "amount", req.Amount)
	if change != nil {
		publishAll(ctx, s.events, change.event())
	}
	return p, nil
}

// CreateOfflinePayment records a bank transfer or cash payment awaiting staff
// confirmation and moves the application on to pending approval.
func (s *PaymentService) CreateOfflinePayment(ctx context.Context, actor Actor, in OfflinePaymentInput, receiptImage string) (*models.MembershipPayment, error) {
	if in.Method != domain.PaymentMethodBankTransfer && in.Method != domain.PaymentMethodCash {
		return nil, NewValidationError("method", "Method must be bank_transfer or cash")
	}
	m, err := s.editableMembership(ctx, actor)
	if err != nil {
		return nil, err
	}
	amount, err := s.amount(ctx, m, in.Amount)
	if err != nil {
		return nil, err
	}
	periodYear := in.PeriodYear
	if periodYear == 0 {
		periodYear = time.Now().Year()
	}
	p := &models.MembershipPayment{
		MembershipID: m.ID,
		Method:       in.Method,
		Status:       domain.PaymentStatusPending,
		ReferenceNo:  strings.TrimSpace(in.ReferenceNo),
		Description:  strings.TrimSpace(in.Description),
		Amount:       amount,
		Currency:     s.currency(in.Currency),
		PeriodYear:   periodYear,
		ReceiptImage: receiptImage,
	}
	var change *StatusChange
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		locked, err := tx.Memberships().LockByID(ctx, m.ID)
		if err != nil {
			return err
		}
		if !CanEdit(locked.WorkflowStatus.StatusCode) {
			return errNotEditable()
		}
		if err := readyForPayment(locked); err != nil {
			return err
		}
		if err := tx.Payments().Create(ctx, p); err != nil {
			return err
		}
		change, err = AdvanceOnPayment(ctx, tx, locked, actor, domain.SourceApplicant)
		return err
	})
	if err != nil {
		return nil, err
	}
	slog.Info("offline payment recorded", "membership", m.UUID, "payment", p.UUID, "method", p.Method)
	if change != nil {
		publishAll(ctx, s.events, change.event())
	}
	return p, nil
}

// UploadPaymentSlip stores the receipt and records the offline payment.
func (s *PaymentService) UploadPaymentSlip(ctx context.Context, actor Actor, in OfflinePaymentInput, slip io.Reader) (*models.MembershipPayment, error) {
	if s.uploader == nil {
		return nil, NewValidationError("receipt_image", "File uploads are not configured")
	}
	if _, err := s.editableMembership(ctx, actor); err != nil {
		return nil, err
	}
	url, err := s.uploader.UploadDocument(ctx, slip, s.folder+"/payment-slips", "")
	if err != nil {
		slog.Error("payment slip upload failed", "user_id", actor.UserID, "err", err)
		return nil, fmt.Errorf("upload payment slip: %w", err)
	}
	return s.CreateOfflinePayment(ctx, actor, in, url)
}

// PaymentStatus finds a payment by external id or UUID and refreshes online
// payments that are not yet paid. Applicants only see their own payments.
func (s *PaymentService) PaymentStatus(ctx context.Context, actor Actor, externalID, paymentUUID string) (*models.MembershipPayment, error) {
	var (
		p   *models.MembershipPayment
		err error
	)
	switch {
	case strings.TrimSpace(externalID) != "":
		p, err = s.store.Payments().ByExternalID(ctx, strings.TrimSpace(externalID))
	case strings.TrimSpace(paymentUUID) != "":
		p, err = s.store.Payments().ByUUID(ctx, strings.TrimSpace(paymentUUID))
	default:
		return nil, NewValidationError("external_id", "Provide external_id or payment_uuid")
	}
	if err != nil {
		return nil, notFound("payment", err)
	}
	if !actor.Privileged() {
		m, err := s.store.Memberships().ByUserID(ctx, actor.UserID)
		if err != nil || m.ID != p.MembershipID {
			return nil, fmt.Errorf("payment: %w", ErrNotFound)
		}
	}
	res, err := s.recon.Refresh(ctx, p, domain.SourcePoll)
	if err != nil {
		return nil, err
	}
	return res.Payment, nil
}

// ListPayments returns the caller's payments, newest first.
func (s *PaymentService) ListPayments(ctx context.Context, actor Actor) ([]models.MembershipPayment, error) {
	m, err := s.store.Memberships().ByUserID(ctx, actor.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return []models.MembershipPayment{}, nil
	}
	if err != nil {
		return nil, err
	}
	return s.store.Payments().ListByMembership(ctx, m.ID)
}

// MembershipPayments lists payments of any membership for management.
func (s *PaymentService) MembershipPayments(ctx context.Context, actor Actor, membershipID uint) ([]models.MembershipPayment, error) {
	if !actor.Privileged() {
		return nil, ErrForbidden
	}
	return s.store.Payments().ListByMembership(ctx, membershipID)
}
