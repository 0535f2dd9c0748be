package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is the in-app copy of a push sent to an applicant.
type Notification struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UserID         uint           `gorm:"not null;index:idx_notifications_user_read,priority:1" json:"user_id"`
	Type           string         `gorm:"size:50;not null" json:"type"`
	MembershipUUID string         `gorm:"type:char(36);index" json:"membership_uuid,omitempty"`
	Title          string         `gorm:"size:255" json:"title"`
	Body           string         `gorm:"type:text" json:"body"`
	Data           datatypes.JSON `json:"data"`
	ReadAt         *time.Time     `gorm:"index:idx_notifications_user_read,priority:2" json:"read_at"`
	CreatedAt      time.Time      `json:"created_at"`
}
