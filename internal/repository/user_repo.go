package repository

import (
	"context"

	"bmr/internal/models"

	"gorm.io/gorm"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) ByID(ctx context.Context, id uint) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Preload("Groups").First(&u, id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// UserInGroup matches the group name case-insensitively.
func (r *UserRepository) UserInGroup(ctx context.Context, userID uint, group string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Table("user_groups").
		Joins("JOIN `groups` ON `groups`.id = user_groups.group_id").
		Where("user_groups.user_id = ? AND LOWER(`groups`.name) = LOWER(?)", userID, group).
		Count(&n).Error
	return n > 0, err
}
