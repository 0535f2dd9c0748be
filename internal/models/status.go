package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Status is a node of the workflow status tree.
type Status struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	UUID           string    `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	StatusCode     string    `gorm:"size:16;uniqueIndex;not null" json:"status_code"`
	InternalStatus string    `gorm:"size:100;not null" json:"internal_status"`
	ExternalStatus string    `gorm:"size:100" json:"external_status"`
	Description    string    `gorm:"type:text" json:"description"`
	ParentID       *uint     `gorm:"index" json:"parent_id"`
	ParentCode     string    `gorm:"size:16" json:"parent_code"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func (Status) TableName() string {
	return "statuses"
}

func (s *Status) BeforeCreate(tx *gorm.DB) error {
	if s.UUID == "" {
		s.UUID = uuid.NewString()
	}
	if s.ExternalStatus == "" {
		s.ExternalStatus = s.InternalStatus
	}
	return nil
}
