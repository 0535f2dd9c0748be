package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"bmr/internal/domain"
	"bmr/internal/models"
	"bmr/internal/repository"
	"bmr/pkg/cloudinary"
)

type PersonalInput struct {
	FullName       string `json:"full_name" binding:"required,max=255"`
	DateOfBirth    string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Gender         string `json:"gender" binding:"max=20"`
	CountryOfBirth string `json:"country_of_birth" binding:"max=100"`
	CityOfBirth    string `json:"city_of_birth" binding:"max=100"`
	Citizenship    string `json:"citizenship" binding:"max=100"`
}

type ContactInput struct {
	NRICFIN           string `json:"nric_fin" binding:"required,nric"`
	PrimaryContact    string `json:"primary_contact" binding:"required,max=25"`
	SecondaryContact  string `json:"secondary_contact" binding:"max=25"`
	ResidentialStatus string `json:"residential_status" binding:"max=50"`
	PostalCode        string `json:"postal_code" binding:"max=20"`
	Address           string `json:"address"`
}

type Page1Input struct {
	ProfileInfo    PersonalInput `json:"profile_info"`
	ContactInfo    ContactInput  `json:"contact_info"`
	MembershipType uint          `json:"membership_type" binding:"required"`
}

type EducationInput struct {
	Education      *uint  `json:"education"`
	Institution    *uint  `json:"institution"`
	OtherSocieties string `json:"other_societies"`
}

type WorkInput struct {
	Occupation        string `json:"occupation" binding:"max=255"`
	CompanyName       string `json:"company_name" binding:"max=255"`
	CompanyAddress    string `json:"company_address"`
	CompanyPostalCode string `json:"company_postal_code" binding:"max=20"`
	CompanyContact    string `json:"company_contact" binding:"max=25"`
}

type Page2Input struct {
	EducationInfo EducationInput `json:"education_info"`
	WorkInfo      WorkInput      `json:"work_info"`
}

// Page2Result is the submitted membership and, when one was generated, its payment.
type Page2Result struct {
	Membership *models.Membership
	Payment    *models.MembershipPayment
}

// MembershipService runs the applicant side of the application workflow.
type MembershipService struct {
	store    repository.Store
	codec    FieldCodec
	payments *PaymentService
	uploader cloudinary.Client
	folder   string
	events   EventPublisher
}

func NewMembershipService(store repository.Store, codec FieldCodec, payments *PaymentService, uploader cloudinary.Client, folder string, events EventPublisher) *MembershipService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &MembershipService{store: store, codec: codec, payments: payments, uploader: uploader, folder: folder, events: events}
}

// GetOrCreate returns the user's membership, creating a draft on first touch.
// A concurrent first touch loses on the unique user index and re-reads.
func (s *MembershipService) GetOrCreate(ctx context.Context, userID uint) (*models.Membership, error) {
	m, err := s.store.Memberships().ByUserID(ctx, userID)
	if err == nil {
		return m, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}
	draft, err := s.store.Statuses().ByCode(ctx, domain.StatusDraft)
	if err != nil {
		return nil, fmt.Errorf("draft status: %w", err)
	}
	m = &models.Membership{UserID: userID, WorkflowStatusID: draft.ID}
	if err := s.store.Memberships().Create(ctx, m); err != nil && !errors.Is(err, repository.ErrDuplicate) {
		return nil, err
	} else if err == nil {
		slog.Info("membership drafted", "membership", m.UUID, "user_id", userID)
	}
	return s.store.Memberships().ByUserID(ctx, userID)
}

// Get returns a membership by UUID; applicants only see their own.
func (s *MembershipService) Get(ctx context.Context, actor Actor, membershipUUID string) (*models.Membership, error) {
	m, err := s.store.Memberships().ByUUID(ctx, membershipUUID)
	if err != nil {
		return nil, notFound("membership", err)
	}
	if !actor.Privileged() && m.UserID != actor.UserID {
		return nil, fmt.Errorf("membership: %w", ErrNotFound)
	}
	return m, nil
}

// List returns the caller's membership, or all of them for staff.
func (s *MembershipService) List(ctx context.Context, actor Actor, f repository.MembershipFilter) ([]models.Membership, int64, error) {
	if !actor.Privileged() {
		f.UserID = actor.UserID
	}
	return s.store.Memberships().List(ctx, f)
}

// SubmitPage1 stores profile and contact details and the chosen membership type.
func (s *MembershipService) SubmitPage1(ctx context.Context, actor Actor, in Page1Input) (*models.Membership, error) {
	m, err := s.GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !CanEdit(m.WorkflowStatus.StatusCode) {
		return nil, errNotEditable()
	}
	mt, err := s.store.Lookups().MembershipType(ctx, in.MembershipType)
	if err != nil {
		return nil, unresolved("membership_type", "Invalid membership type", err)
	}
	personal := &models.PersonalInfo{
		FullName:       strings.TrimSpace(in.ProfileInfo.FullName),
		Gender:         in.ProfileInfo.Gender,
		CountryOfBirth: in.ProfileInfo.CountryOfBirth,
		CityOfBirth:    in.ProfileInfo.CityOfBirth,
		Citizenship:    in.ProfileInfo.Citizenship,
	}
	if in.ProfileInfo.DateOfBirth != "" {
		dob, err := time.Parse("2006-01-02", in.ProfileInfo.DateOfBirth)
		if err != nil {
			return nil, NewValidationError("profile_info.date_of_birth", "Date must be YYYY-MM-DD")
		}
		personal.DateOfBirth = &dob
	}
	contact := &models.ContactInfo{
		ResidentialStatus: in.ContactInfo.ResidentialStatus,
		PostalCode:        in.ContactInfo.PostalCode,
		Address:           in.ContactInfo.Address,
	}
	if err := s.encryptAll(
		sealed{&contact.NRICFINEnc, strings.ToUpper(strings.TrimSpace(in.ContactInfo.NRICFIN))},
		sealed{&contact.PrimaryContactEnc, strings.TrimSpace(in.ContactInfo.PrimaryContact)},
		sealed{&contact.SecondaryContactEnc, strings.TrimSpace(in.ContactInfo.SecondaryContact)},
	); err != nil {
		return nil, err
	}

	err = s.store.Tx(ctx, func(tx repository.Store) error {
		locked, err := tx.Memberships().LockByID(ctx, m.ID)
		if err != nil {
			return err
		}
		if !CanEdit(locked.WorkflowStatus.StatusCode) {
			return errNotEditable()
		}
		personal.MembershipID = locked.ID
		contact.MembershipID = locked.ID
		if err := tx.Memberships().UpsertPersonal(ctx, personal); err != nil {
			return err
		}
		if err := tx.Memberships().UpsertContact(ctx, contact); err != nil {
			return err
		}
		locked.MembershipTypeID = &mt.ID
		locked.IsProfileCompleted = true
		locked.IsContactCompleted = true
		return tx.Memberships().Save(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Memberships().ByID(ctx, m.ID)
}

// SubmitPage2 stores education and work details, submits the application and
// generates the online payment when none has been generated yet.
func (s *MembershipService) SubmitPage2(ctx context.Context, actor Actor, in Page2Input) (*Page2Result, error) {
	m, err := s.GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !CanEdit(m.WorkflowStatus.StatusCode) {
		return nil, errNotEditable()
	}
	if !m.PageOneComplete() {
		return nil, NewValidationError("page1", "Please complete Page 1 (Profile & Contact Info) first")
	}
	if in.EducationInfo.Education != nil {
		if _, err := s.store.Lookups().EducationLevel(ctx, *in.EducationInfo.Education); err != nil {
			return nil, unresolved("education_info.education", "Invalid education level", err)
		}
	}
	if in.EducationInfo.Institution != nil {
		if _, err := s.store.Lookups().Institution(ctx, *in.EducationInfo.Institution); err != nil {
			return nil, unresolved("education_info.institution", "Invalid institution", err)
		}
	}
	education := &models.EducationInfo{
		EducationLevelID: in.EducationInfo.Education,
		InstitutionID:    in.EducationInfo.Institution,
		OtherSocieties:   in.EducationInfo.OtherSocieties,
	}
	work := &models.WorkInfo{
		Occupation:        in.WorkInfo.Occupation,
		CompanyName:       in.WorkInfo.CompanyName,
		CompanyAddress:    in.WorkInfo.CompanyAddress,
		CompanyPostalCode: in.WorkInfo.CompanyPostalCode,
	}
	if err := s.encryptAll(sealed{&work.CompanyContactEnc, strings.TrimSpace(in.WorkInfo.CompanyContact)}); err != nil {
		return nil, err
	}

	var change *StatusChange
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		locked, err := tx.Memberships().LockByID(ctx, m.ID)
		if err != nil {
			return err
		}
		code := locked.WorkflowStatus.StatusCode
		if !CanEdit(code) {
			return errNotEditable()
		}
		education.MembershipID = locked.ID
		work.MembershipID = locked.ID
		if err := tx.Memberships().UpsertEducation(ctx, education); err != nil {
			return err
		}
		if err := tx.Memberships().UpsertWork(ctx, work); err != nil {
			return err
		}
		now := time.Now()
		locked.IsEducationCompleted = true
		locked.IsWorkCompleted = true
		locked.SubmittedAt = &now

		paid, err := tx.Payments().HasPaid(ctx, locked.ID)
		if err != nil {
			return err
		}
		// a resubmission never falls back behind a fee that was already received
		target := domain.StatusPendingPayment
		if paid || code == domain.StatusPendingApproval {
			target = domain.StatusPendingApproval
		}
		if code == target {
			return tx.Memberships().Save(ctx, locked)
		}
		change, err = TransitionTo(ctx, tx, locked, target, "", actor, domain.SourceApplicant)
		return err
	})
	if err != nil {
		return nil, err
	}
	if change != nil {
		publishAll(ctx, s.events, change.event())
	}

	res := &Page2Result{}
	if res.Membership, err = s.store.Memberships().ByID(ctx, m.ID); err != nil {
		return nil, err
	}
	if !res.Membership.IsPaymentGenerated && res.Membership.WorkflowStatus.StatusCode == domain.StatusPendingPayment {
		p, err := s.payments.CreateOnlinePayment(ctx, actor, OnlinePaymentInput{})
		if err != nil {
			return res, err
		}
		res.Payment = p
		if res.Membership, err = s.store.Memberships().ByID(ctx, m.ID); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// UpdateProfilePicture uploads the image and stores its URL.
func (s *MembershipService) UpdateProfilePicture(ctx context.Context, actor Actor, file io.Reader) (*models.Membership, error) {
	if s.uploader == nil {
		return nil, NewValidationError("profile_picture", "File uploads are not configured")
	}
	m, err := s.GetOrCreate(ctx, actor.UserID)
	if err != nil {
		return nil, err
	}
	if !CanEdit(m.WorkflowStatus.StatusCode) {
		return nil, errNotEditable()
	}
	url, _, err := s.uploader.UploadImage(ctx, file, s.folder+"/profile", "profile_"+m.UUID)
	if err != nil {
		slog.Error("profile picture upload failed", "membership", m.UUID, "err", err)
		return nil, fmt.Errorf("upload profile picture: %w", err)
	}
	err = s.store.Tx(ctx, func(tx repository.Store) error {
		locked, err := tx.Memberships().LockByID(ctx, m.ID)
		if err != nil {
			return err
		}
		if !CanEdit(locked.WorkflowStatus.StatusCode) {
			return errNotEditable()
		}
		locked.ProfilePicture = url
		return tx.Memberships().Save(ctx, locked)
	})
	if err != nil {
		return nil, err
	}
	return s.store.Memberships().ByID(ctx, m.ID)
}

type sealed struct {
	dst   *string
	plain string
}

func (s *MembershipService) encryptAll(fields ...sealed) error {
	for _, f := range fields {
		ct, err := s.codec.Encrypt(f.plain)
		if err != nil {
			return fmt.Errorf("encrypt field: %w", err)
		}
		*f.dst = ct
	}
	return nil
}
