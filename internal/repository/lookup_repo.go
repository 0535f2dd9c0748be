package repository

import (
	"context"

	"bmr/internal/models"

	"gorm.io/gorm"
)

type LookupRepository struct {
	db *gorm.DB
}

func NewLookupRepository(db *gorm.DB) *LookupRepository {
	return &LookupRepository{db: db}
}

func (r *LookupRepository) MembershipType(ctx context.Context, id uint) (*models.MembershipType, error) {
	var t models.MembershipType
	if err := r.db.WithContext(ctx).Where("is_active = ?", true).First(&t, id).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *LookupRepository) MembershipTypes(ctx context.Context) ([]models.MembershipType, error) {
	var list []models.MembershipType
	err := r.db.WithContext(ctx).Where("is_active = ?", true).Order("name ASC").Find(&list).Error
	return list, err
}

func (r *LookupRepository) EducationLevel(ctx context.Context, id uint) (*models.EducationLevel, error) {
	var l models.EducationLevel
	if err := r.db.WithContext(ctx).First(&l, id).Error; err != nil {
		return nil, translate(err)
	}
	return &l, nil
}

func (r *LookupRepository) EducationLevels(ctx context.Context) ([]models.EducationLevel, error) {
	var list []models.EducationLevel
	err := r.db.WithContext(ctx).Order("id ASC").Find(&list).Error
	return list, err
}

func (r *LookupRepository) Institution(ctx context.Context, id uint) (*models.Institution, error) {
	var i models.Institution
	if err := r.db.WithContext(ctx).First(&i, id).Error; err != nil {
		return nil, translate(err)
	}
	return &i, nil
}

func (r *LookupRepository) Institutions(ctx context.Context) ([]models.Institution, error) {
	var list []models.Institution
	err := r.db.WithContext(ctx).Order("name ASC").Find(&list).Error
	return list, err
}
