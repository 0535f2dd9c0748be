package models

import "time"

// WorkflowAudit records every membership status transition.
type WorkflowAudit struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	MembershipID uint      `gorm:"not null;index" json:"membership_id"`
	FromCode     string    `gorm:"size:16" json:"from_code"`
	ToCode       string    `gorm:"size:16;not null" json:"to_code"`
	ActorID      *uint     `gorm:"index" json:"actor_id"` // nil for system transitions
	Source       string    `gorm:"size:20;not null" json:"source"`
	Reason       string    `gorm:"type:text" json:"reason"`
	CreatedAt    time.Time `json:"created_at"`
}

func (WorkflowAudit) TableName() string {
	return "membership_workflow_audits"
}
