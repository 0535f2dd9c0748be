package service

import (
	"fmt"
	"time"

	"bmr/internal/models"
	"bmr/pkg/fieldcrypt"
	"bmr/pkg/payment"
)

// FieldCodec encrypts sensitive columns at the service boundary.
type FieldCodec interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}

type StatusView struct {
	UUID           string `json:"uuid"`
	StatusCode     string `json:"status_code"`
	InternalStatus string `json:"internal_status"`
	ExternalStatus string `json:"external_status"`
	Description    string `json:"description"`
	ParentCode     string `json:"parent_code,omitempty"`
}

type PersonalView struct {
	FullName       string `json:"full_name"`
	DateOfBirth    string `json:"date_of_birth,omitempty"`
	Gender         string `json:"gender"`
	CountryOfBirth string `json:"country_of_birth"`
	CityOfBirth    string `json:"city_of_birth"`
	Citizenship    string `json:"citizenship"`
}

// ContactView carries full values only for the owner and staff; masks always.
type ContactView struct {
	NRICFINFull            *string `json:"nric_fin_full"`
	NRICFINMasked          string  `json:"nric_fin_masked"`
	PrimaryContactFull     *string `json:"primary_contact_full"`
	PrimaryContactMasked   string  `json:"primary_contact_masked"`
	SecondaryContactFull   *string `json:"secondary_contact_full"`
	SecondaryContactMasked string  `json:"secondary_contact_masked"`
	ResidentialStatus      string  `json:"residential_status"`
	PostalCode             string  `json:"postal_code"`
	Address                string  `json:"address"`
}

type EducationView struct {
	Education       *uint  `json:"education"`
	EducationName   string `json:"education_name"`
	Institution     *uint  `json:"institution"`
	InstitutionName string `json:"institution_name"`
	OtherSocieties  string `json:"other_societies"`
}

type WorkView struct {
	Occupation           string  `json:"occupation"`
	CompanyName          string  `json:"company_name"`
	CompanyAddress       string  `json:"company_address"`
	CompanyPostalCode    string  `json:"company_postal_code"`
	CompanyContactFull   *string `json:"company_contact_full"`
	CompanyContactMasked string  `json:"company_contact_masked"`
}

type MembershipView struct {
	UUID                 string         `json:"uuid"`
	ReferenceNo          string         `json:"reference_no"`
	UserID               uint           `json:"user_id"`
	ProfilePicture       string         `json:"profile_picture"`
	AppliedDate          time.Time      `json:"applied_date"`
	MembershipType       *uint          `json:"membership_type"`
	MembershipTypeName   string         `json:"membership_type_name"`
	MembershipNumber     *string        `json:"membership_number"`
	ProfileInfo          *PersonalView  `json:"profile_info"`
	ContactInfo          *ContactView   `json:"contact_info"`
	EducationInfo        *EducationView `json:"education_info"`
	WorkInfo             *WorkView      `json:"work_info"`
	WorkflowStatus       StatusView     `json:"workflow_status"`
	WorkflowStatusName   string         `json:"workflow_status_name"`
	Reason               string         `json:"reason"`
	IsProfileCompleted   bool           `json:"is_profile_completed"`
	IsContactCompleted   bool           `json:"is_contact_completed"`
	IsEducationCompleted bool           `json:"is_education_completed"`
	IsWorkCompleted      bool           `json:"is_work_completed"`
	IsPaymentGenerated   bool           `json:"is_payment_generated"`
	SubmittedAt          *time.Time     `json:"submitted_at"`
	CanEdit              bool           `json:"can_edit"`
}

type PaymentView struct {
	UUID         string     `json:"uuid"`
	Method       string     `json:"method"`
	Provider     *string    `json:"provider"`
	Status       string     `json:"status"`
	ExternalID   *string    `json:"external_id"`
	ReferenceNo  string     `json:"reference_no"`
	Description  string     `json:"description"`
	Amount       string     `json:"amount"`
	Currency     string     `json:"currency"`
	PeriodYear   int        `json:"period_year"`
	QRCode       string     `json:"qr_code"`
	ReceiptImage string     `json:"receipt_image"`
	PaidAt       *time.Time `json:"paid_at"`
	CreatedAt    time.Time  `json:"created_at"`
}

// Presenter builds API views. Decryption failures are returned, never shown as blanks.
type Presenter struct {
	codec FieldCodec
}

func NewPresenter(codec FieldCodec) *Presenter {
	return &Presenter{codec: codec}
}

func StatusViewOf(s *models.Status) StatusView {
	return StatusView{
		UUID:           s.UUID,
		StatusCode:     s.StatusCode,
		InternalStatus: s.InternalStatus,
		ExternalStatus: s.ExternalStatus,
		Description:    s.Description,
		ParentCode:     s.ParentCode,
	}
}

func (p *Presenter) Membership(m *models.Membership, viewer Actor) (*MembershipView, error) {
	full := viewer.Privileged() || viewer.UserID == m.UserID
	v := &MembershipView{
		UUID:                 m.UUID,
		ReferenceNo:          m.ReferenceNo,
		UserID:               m.UserID,
		ProfilePicture:       m.ProfilePicture,
		AppliedDate:          m.AppliedDate,
		MembershipType:       m.MembershipTypeID,
		MembershipNumber:     m.MembershipNumber,
		WorkflowStatus:       StatusViewOf(&m.WorkflowStatus),
		WorkflowStatusName:   m.WorkflowStatus.InternalStatus,
		Reason:               m.Reason,
		IsProfileCompleted:   m.IsProfileCompleted,
		IsContactCompleted:   m.IsContactCompleted,
		IsEducationCompleted: m.IsEducationCompleted,
		IsWorkCompleted:      m.IsWorkCompleted,
		IsPaymentGenerated:   m.IsPaymentGenerated,
		SubmittedAt:          m.SubmittedAt,
		CanEdit:              CanEdit(m.WorkflowStatus.StatusCode),
	}
	if m.MembershipType != nil {
		v.MembershipTypeName = m.MembershipType.Name
	}
	if pi := m.PersonalInfo; pi != nil {
		v.ProfileInfo = &PersonalView{
			FullName:       pi.FullName,
			Gender:         pi.Gender,
			CountryOfBirth: pi.CountryOfBirth,
			CityOfBirth:    pi.CityOfBirth,
			Citizenship:    pi.Citizenship,
		}
		if pi.DateOfBirth != nil {
			v.ProfileInfo.DateOfBirth = pi.DateOfBirth.Format("2006-01-02")
		}
	}
	if ci := m.ContactInfo; ci != nil {
		cv := &ContactView{ResidentialStatus: ci.ResidentialStatus, PostalCode: ci.PostalCode, Address: ci.Address}
		var err error
		if cv.NRICFINFull, cv.NRICFINMasked, err = p.reveal(ci.NRICFINEnc, full); err != nil {
			return nil, fmt.Errorf("contact nric_fin: %w", err)
		}
		if cv.PrimaryContactFull, cv.PrimaryContactMasked, err = p.reveal(ci.PrimaryContactEnc, full); err != nil {
			return nil, fmt.Errorf("contact primary_contact: %w", err)
		}
		if cv.SecondaryContactFull, cv.SecondaryContactMasked, err = p.reveal(ci.SecondaryContactEnc, full); err != nil {
			return nil, fmt.Errorf("contact secondary_contact: %w", err)
		}
		v.ContactInfo = cv
	}
	if ei := m.EducationInfo; ei != nil {
		ev := &EducationView{Education: ei.EducationLevelID, Institution: ei.InstitutionID, OtherSocieties: ei.OtherSocieties}
		if ei.EducationLevel != nil {
			ev.EducationName = ei.EducationLevel.Name
		}
		if ei.Institution != nil {
			ev.InstitutionName = ei.Institution.Name
		}
		v.EducationInfo = ev
	}
	if wi := m.WorkInfo; wi != nil {
		wv := &WorkView{
			Occupation:        wi.Occupation,
			CompanyName:       wi.CompanyName,
			CompanyAddress:    wi.CompanyAddress,
			CompanyPostalCode: wi.CompanyPostalCode,
		}
		var err error
		if wv.CompanyContactFull, wv.CompanyContactMasked, err = p.reveal(wi.CompanyContactEnc, full); err != nil {
			return nil, fmt.Errorf("work company_contact: %w", err)
		}
		v.WorkInfo = wv
	}
	return v, nil
}

// reveal decrypts a stored column. A never-written column is not an error.
func (p *Presenter) reveal(ciphertext string, full bool) (*string, string, error) {
	if ciphertext == "" {
		return nil, "", nil
	}
	plain, err := p.codec.Decrypt(ciphertext)
	if err != nil {
		return nil, "", err
	}
	masked := fieldcrypt.Mask(plain)
	if !full {
		return nil, masked, nil
	}
	return &plain, masked, nil
}

func PaymentViewOf(p *models.MembershipPayment) PaymentView {
	return PaymentView{
		UUID:         p.UUID,
		Method:       p.Method,
		Provider:     p.Provider,
		Status:       p.Status,
		ExternalID:   p.ExternalID,
		ReferenceNo:  p.ReferenceNo,
		Description:  p.Description,
		Amount:       p.Amount.StringFixed(2),
		Currency:     p.Currency,
		PeriodYear:   p.PeriodYear,
		QRCode:       payment.NormalizeQRCode(p.QRCode),
		ReceiptImage: p.ReceiptImage,
		PaidAt:       p.PaidAt,
		CreatedAt:    p.CreatedAt,
	}
}

func PaymentViews(list []models.MembershipPayment) []PaymentView {
	out := make([]PaymentView, 0, len(list))
	for i := range list {
		out = append(out, PaymentViewOf(&list[i]))
	}
	return out
}
