package repository

import (
	"context"
	"time"

	"bmr/internal/domain"
	"bmr/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.MembershipPayment) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Create(p).Error)
}

func (r *PaymentRepository) Save(ctx context.Context, p *models.MembershipPayment) error {
	return translate(r.db.WithContext(ctx).Omit(clause.Associations).Save(p).Error)
}

func (r *PaymentRepository) ByUUID(ctx context.Context, uuid string) (*models.MembershipPayment, error) {
	var p models.MembershipPayment
	if err := r.db.WithContext(ctx).Where("uuid = ?", uuid).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PaymentRepository) ByExternalID(ctx context.Context, externalID string) (*models.MembershipPayment, error) {
	var p models.MembershipPayment
	if err := r.db.WithContext(ctx).Where("external_id = ?", externalID).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PaymentRepository) LockByID(ctx context.Context, id uint) (*models.MembershipPayment, error) {
	var p models.MembershipPayment
	err := r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).First(&p, id).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PaymentRepository) ListByMembership(ctx context.Context, membershipID uint) ([]models.MembershipPayment, error) {
	var list []models.MembershipPayment
	err := r.db.WithContext(ctx).Where("membership_id = ?", membershipID).Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

func (r *PaymentRepository) OpenOnline(ctx context.Context, membershipID uint) (*models.MembershipPayment, error) {
	var p models.MembershipPayment
	err := r.db.WithContext(ctx).
		Where("membership_id = ? AND method = ? AND status IN ?", membershipID, domain.PaymentMethodHitPay,
			[]string{domain.PaymentStatusCreated, domain.PaymentStatusPending}).
		Where("external_id IS NOT NULL").
		Order("created_at DESC, id DESC").
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *PaymentRepository) HasPaid(ctx context.Context, membershipID uint) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.MembershipPayment{}).
		Where("membership_id = ? AND status = ?", membershipID, domain.PaymentStatusPaid).
		Count(&n).Error
	return n > 0, err
}

func (r *PaymentRepository) StaleOnline(ctx context.Context, after, before time.Time, limit int) ([]models.MembershipPayment, error) {
	var list []models.MembershipPayment
	q := r.db.WithContext(ctx).
		Where("method = ? AND status = ? AND external_id IS NOT NULL AND created_at < ?",
			domain.PaymentMethodHitPay, domain.PaymentStatusCreated, before)
	if !after.IsZero() {
		q = q.Where("created_at >= ?", after)
	}
	q = q.Order("COALESCE(last_checked_at, created_at) ASC").Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&list).Error
	return list, err
}

func (r *PaymentRepository) MarkChecked(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).Model(&models.MembershipPayment{}).
		Where("id = ?", id).
		UpdateColumn("last_checked_at", at).Error
}
