package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MembershipPayment struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	UUID          string          `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	MembershipID  uint            `gorm:"index;not null" json:"membership_id"`
	Method        string          `gorm:"size:20;not null" json:"method"` // hitpay | bank_transfer | cash
	Provider      *string         `gorm:"size:50" json:"provider"`
	Status        string          `gorm:"size:20;not null;index" json:"status"`
	ExternalID    *string         `gorm:"size:255;uniqueIndex" json:"external_id"` // nil for offline payments
	ReferenceNo   string          `gorm:"size:100" json:"reference_no"`
	Description   string          `gorm:"type:text" json:"description"`
	Amount        decimal.Decimal `gorm:"type:decimal(10,2);not null" json:"amount"`
	Currency      string          `gorm:"size:3;default:'SGD'" json:"currency"`
	PeriodYear    int             `json:"period_year"`
	DueDate       *time.Time      `gorm:"type:date" json:"due_date"`
	QRCode        string          `gorm:"type:longtext" json:"-"`
	RawResponse   datatypes.JSON  `json:"-"`
	ReceiptImage  string          `gorm:"size:512" json:"receipt_image"`
	PaidAt        *time.Time      `json:"paid_at"`
	// LastCheckedAt is the last provider poll by the sweeper.
	LastCheckedAt *time.Time      `gorm:"index" json:"-"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`

	Membership Membership `gorm:"foreignKey:MembershipID" json:"-"`
}

func (MembershipPayment) TableName() string {
	return "membership_payments"
}

func (p *MembershipPayment) BeforeCreate(tx *gorm.DB) error {
	if p.UUID == "" {
		p.UUID = uuid.NewString()
	}
	return nil
}

func (p *MembershipPayment) ExternalRef() string {
	if p.ExternalID == nil {
		return ""
	}
	return *p.ExternalID
}
