package repository

import (
	"context"

	"bmr/internal/models"

	"gorm.io/gorm"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Create(ctx context.Context, a *models.WorkflowAudit) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *AuditRepository) ListByMembership(ctx context.Context, membershipID uint) ([]models.WorkflowAudit, error) {
	var list []models.WorkflowAudit
	err := r.db.WithContext(ctx).Where("membership_id = ?", membershipID).Order("id ASC").Find(&list).Error
	return list, err
}
