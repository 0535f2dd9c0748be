package repository

import (
	"context"

	"bmr/internal/models"

	"gorm.io/gorm"
)

type StatusRepository struct {
	db *gorm.DB
}

func NewStatusRepository(db *gorm.DB) *StatusRepository {
	return &StatusRepository{db: db}
}

func (r *StatusRepository) ByCode(ctx context.Context, code string) (*models.Status, error) {
	var s models.Status
	if err := r.db.WithContext(ctx).Where("status_code = ?", code).First(&s).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *StatusRepository) ByID(ctx context.Context, id uint) (*models.Status, error) {
	var s models.Status
	if err := r.db.WithContext(ctx).First(&s, id).Error; err != nil {
		return nil, translate(err)
	}
	return &s, nil
}

func (r *StatusRepository) List(ctx context.Context) ([]models.Status, error) {
	var list []models.Status
	err := r.db.WithContext(ctx).Order("status_code + 0 ASC").Find(&list).Error
	return list, err
}
