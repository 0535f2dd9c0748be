package repository

import (
	"context"
	"errors"
	"time"

	"bmr/internal/models"

	"gorm.io/gorm"
)

var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the repositories over one connection or transaction.
type Store interface {
	// Tx runs fn in a transaction; fn's Store is bound to it.
	Tx(ctx context.Context, fn func(tx Store) error) error
	Statuses() StatusRepo
	Lookups() LookupRepo
	Users() UserRepo
	Memberships() MembershipRepo
	Payments() PaymentRepo
	Audits() AuditRepo
	Notifications() NotificationRepo
}

type StatusRepo interface {
	ByCode(ctx context.Context, code string) (*models.Status, error)
	ByID(ctx context.Context, id uint) (*models.Status, error)
	List(ctx context.Context) ([]models.Status, error)
}

type LookupRepo interface {
	MembershipType(ctx context.Context, id uint) (*models.MembershipType, error)
	MembershipTypes(ctx context.Context) ([]models.MembershipType, error)
	EducationLevel(ctx context.Context, id uint) (*models.EducationLevel, error)
	EducationLevels(ctx context.Context) ([]models.EducationLevel, error)
	Institution(ctx context.Context, id uint) (*models.Institution, error)
	Institutions(ctx context.Context) ([]models.Institution, error)
}

type UserRepo interface {
	ByID(ctx context.Context, id uint) (*models.User, error)
	UserInGroup(ctx context.Context, userID uint, group string) (bool, error)
}

// MembershipFilter narrows List. Zero values match everything.
type MembershipFilter struct {
	UserID     uint
	StatusCode string
	Limit      int
	Offset     int
}

type MembershipRepo interface {
	Create(ctx context.Context, m *models.Membership) error
	Save(ctx context.Context, m *models.Membership) error
	ByID(ctx context.Context, id uint) (*models.Membership, error)
	ByUUID(ctx context.Context, uuid string) (*models.Membership, error)
	ByUserID(ctx context.Context, userID uint) (*models.Membership, error)
	// LockByID reads the row with SELECT ... FOR UPDATE.
	LockByID(ctx context.Context, id uint) (*models.Membership, error)
	List(ctx context.Context, f MembershipFilter) ([]models.Membership, int64, error)
	UpsertPersonal(ctx context.Context, p *models.PersonalInfo) error
	UpsertContact(ctx context.Context, c *models.ContactInfo) error
	UpsertEducation(ctx context.Context, e *models.EducationInfo) error
	UpsertWork(ctx context.Context, w *models.WorkInfo) error
}

type PaymentRepo interface {
	Create(ctx context.Context, p *models.MembershipPayment) error
	Save(ctx context.Context, p *models.MembershipPayment) error
	ByUUID(ctx context.Context, uuid string) (*models.MembershipPayment, error)
	ByExternalID(ctx context.Context, externalID string) (*models.MembershipPayment, error)
	// LockByID reads the row with SELECT ... FOR UPDATE.
	LockByID(ctx context.Context, id uint) (*models.MembershipPayment, error)
	ListByMembership(ctx context.Context, membershipID uint) ([]models.MembershipPayment, error)
	// OpenOnline returns the newest online payment still awaiting the provider.
	OpenOnline(ctx context.Context, membershipID uint) (*models.MembershipPayment, error)
	HasPaid(ctx context.Context, membershipID uint) (bool, error)
	// StaleOnline lists online payments in "created" created between after and
	// before, least recently checked first. A zero after has no lower bound.
	StaleOnline(ctx context.Context, after, before time.Time, limit int) ([]models.MembershipPayment, error)
	// MarkChecked records a sweeper poll without touching updated_at.
	MarkChecked(ctx context.Context, id uint, at time.Time) error
}

type AuditRepo interface {
	Create(ctx context.Context, a *models.WorkflowAudit) error
	ListByMembership(ctx context.Context, membershipID uint) ([]models.WorkflowAudit, error)
}

type NotificationRepo interface {
	Create(ctx context.Context, n *models.Notification) error
	ListByUserID(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error)
	MarkRead(ctx context.Context, id, userID uint) error
}

// GormStore is the MySQL-backed Store.
type GormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Tx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Statuses() StatusRepo            { return NewStatusRepository(s.db) }
func (s *GormStore) Lookups() LookupRepo             { return NewLookupRepository(s.db) }
func (s *GormStore) Users() UserRepo                 { return NewUserRepository(s.db) }
func (s *GormStore) Memberships() MembershipRepo     { return NewMembershipRepository(s.db) }
func (s *GormStore) Payments() PaymentRepo           { return NewPaymentRepository(s.db) }
func (s *GormStore) Audits() AuditRepo               { return NewAuditRepository(s.db) }
func (s *GormStore) Notifications() NotificationRepo { return NewNotificationRepository(s.db) }

// translate maps gorm errors onto the package sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicate
	default:
		return err
	}
}
