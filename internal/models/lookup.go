package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type MembershipType struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Name        string          `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Amount      decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Description string          `gorm:"type:text" json:"description"`
	IsActive    bool            `gorm:"default:true" json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

func (MembershipType) TableName() string {
	return "membership_types"
}

type EducationLevel struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:100;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
}

func (EducationLevel) TableName() string {
	return "education_levels"
}

type Institution struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:191;uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
}

func (Institution) TableName() string {
	return "institutions"
}
