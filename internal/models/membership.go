package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Membership is the single application of a user. user_id is unique.
type Membership struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	UUID                 string     `gorm:"type:char(36);uniqueIndex;not null" json:"uuid"`
	ReferenceNo          string     `gorm:"size:32;uniqueIndex;not null" json:"reference_no"`
	UserID               uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	MembershipTypeID     *uint      `gorm:"index" json:"membership_type_id"`
	WorkflowStatusID     uint       `gorm:"index;not null" json:"workflow_status_id"`
	Reason               string     `gorm:"type:text" json:"reason"`
	ProfilePicture       string     `gorm:"size:512" json:"profile_picture"`
	MembershipNumber     *string    `gorm:"size:32;uniqueIndex" json:"membership_number"`
	AppliedDate          time.Time  `json:"applied_date"`
	SubmittedAt          *time.Time `json:"submitted_at"`
	IsProfileCompleted   bool       `gorm:"default:false" json:"is_profile_completed"`
	IsContactCompleted   bool       `gorm:"default:false" json:"is_contact_completed"`
	IsEducationCompleted bool       `gorm:"default:false" json:"is_education_completed"`
	IsWorkCompleted      bool       `gorm:"default:false" json:"is_work_completed"`
	IsPaymentGenerated   bool       `gorm:"default:false" json:"is_payment_generated"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`

	User           User            `gorm:"foreignKey:UserID" json:"-"`
	MembershipType *MembershipType `gorm:"foreignKey:MembershipTypeID" json:"membership_type,omitempty"`
	WorkflowStatus Status          `gorm:"foreignKey:WorkflowStatusID" json:"workflow_status"`
	PersonalInfo   *PersonalInfo   `gorm:"foreignKey:MembershipID" json:"-"`
	ContactInfo    *ContactInfo    `gorm:"foreignKey:MembershipID" json:"-"`
	EducationInfo  *EducationInfo  `gorm:"foreignKey:MembershipID" json:"-"`
	WorkInfo       *WorkInfo       `gorm:"foreignKey:MembershipID" json:"-"`
}

func (Membership) TableName() string {
	return "memberships"
}

func (m *Membership) BeforeCreate(tx *gorm.DB) error {
	if m.UUID == "" {
		m.UUID = uuid.NewString()
	}
	if m.ReferenceNo == "" {
		m.ReferenceNo = NewReferenceNo(time.Now())
	}
	if m.AppliedDate.IsZero() {
		m.AppliedDate = time.Now()
	}
	return nil
}

// NewReferenceNo returns MBR-YYYY-XXXXXXXX.
func NewReferenceNo(t time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:8]
	return fmt.Sprintf("MBR-%d-%s", t.Year(), suffix)
}

// PageOneComplete reports whether profile and contact were submitted.
func (m *Membership) PageOneComplete() bool {
	return m.IsProfileCompleted && m.IsContactCompleted
}

type PersonalInfo struct {
	ID             uint       `gorm:"primaryKey" json:"id"`
	MembershipID   uint       `gorm:"uniqueIndex;not null" json:"membership_id"`
	FullName       string     `gorm:"size:255" json:"full_name"`
	DateOfBirth    *time.Time `gorm:"type:date" json:"date_of_birth"`
	Gender         string     `gorm:"size:20" json:"gender"`
	CountryOfBirth string     `gorm:"size:100" json:"country_of_birth"`
	CityOfBirth    string     `gorm:"size:100" json:"city_of_birth"`
	Citizenship    string     `gorm:"size:100" json:"citizenship"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func (PersonalInfo) TableName() string {
	return "membership_personal_infos"
}

// ContactInfo holds ciphertext in the *Enc columns.
type ContactInfo struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	MembershipID        uint      `gorm:"uniqueIndex;not null" json:"membership_id"`
	NRICFINEnc          string    `gorm:"column:nric_fin_enc;type:text" json:"-"`
	PrimaryContactEnc   string    `gorm:"type:text" json:"-"`
	SecondaryContactEnc string    `gorm:"type:text" json:"-"`
	ResidentialStatus   string    `gorm:"size:50" json:"residential_status"`
	PostalCode          string    `gorm:"size:20" json:"postal_code"`
	Address             string    `gorm:"type:text" json:"address"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func (ContactInfo) TableName() string {
	return "membership_contact_infos"
}

type EducationInfo struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	MembershipID     uint      `gorm:"uniqueIndex;not null" json:"membership_id"`
	EducationLevelID *uint     `json:"education_level_id"`
	InstitutionID    *uint     `json:"institution_id"`
	OtherSocieties   string    `gorm:"type:text" json:"other_societies"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`

	EducationLevel *EducationLevel `gorm:"foreignKey:EducationLevelID" json:"education_level,omitempty"`
	Institution    *Institution    `gorm:"foreignKey:InstitutionID" json:"institution,omitempty"`
}

func (EducationInfo) TableName() string {
	return "membership_education_infos"
}

// WorkInfo holds ciphertext in CompanyContactEnc.
type WorkInfo struct {
	ID                uint      `gorm:"primaryKey" json:"id"`
	MembershipID      uint      `gorm:"uniqueIndex;not null" json:"membership_id"`
	Occupation        string    `gorm:"size:255" json:"occupation"`
	CompanyName       string    `gorm:"size:255" json:"company_name"`
	CompanyAddress    string    `gorm:"type:text" json:"company_address"`
	CompanyPostalCode string    `gorm:"size:20" json:"company_postal_code"`
	CompanyContactEnc string    `gorm:"type:text" json:"-"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func (WorkInfo) TableName() string {
	return "membership_work_infos"
}
