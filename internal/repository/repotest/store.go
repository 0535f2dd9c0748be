// Package repotest provides an in-memory repository.Store for tests.
package repotest

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"bmr/internal/domain"
	"bmr/internal/models"
	"bmr/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Store is an in-memory repository.Store seeded with the status tree and a
// few lookups and users. Tx serializes callers and rolls back on error by
// restoring a snapshot.
type Store struct {
	txMu sync.Mutex
	mu   sync.Mutex
	seq  uint

	statuses      map[uint]models.Status
	types         map[uint]models.MembershipType
	levels        map[uint]models.EducationLevel
	institutions  map[uint]models.Institution
	users         map[uint]models.User
	memberships   map[uint]models.Membership
	personal      map[uint]models.PersonalInfo
	contact       map[uint]models.ContactInfo
	education     map[uint]models.EducationInfo
	work          map[uint]models.WorkInfo
	payments      map[uint]models.MembershipPayment
	audits        []models.WorkflowAudit
	notifications []models.Notification
}

// NewStore seeds membership types 100 (50.00) and 101 (free), education
// level 200, institution 300, applicants 1 and 2, and staff user 9.
func NewStore() *Store {
	s := &Store{
		statuses:     map[uint]models.Status{},
		types:        map[uint]models.MembershipType{},
		levels:       map[uint]models.EducationLevel{},
		institutions: map[uint]models.Institution{},
		users:        map[uint]models.User{},
		memberships:  map[uint]models.Membership{},
		personal:     map[uint]models.PersonalInfo{},
		contact:      map[uint]models.ContactInfo{},
		education:    map[uint]models.EducationInfo{},
		work:         map[uint]models.WorkInfo{},
		payments:     map[uint]models.MembershipPayment{},
	}
	for _, seed := range domain.StatusTree {
		id := s.id()
		ext := seed.External
		if ext == "" {
			ext = seed.Internal
		}
		s.statuses[id] = models.Status{ID: id, UUID: "status-" + seed.Code, StatusCode: seed.Code,
			InternalStatus: seed.Internal, ExternalStatus: ext, ParentCode: seed.ParentCode}
	}
	s.types[100] = models.MembershipType{ID: 100, Name: "Ordinary", Amount: decimal.NewFromInt(50), IsActive: true}
	s.types[101] = models.MembershipType{ID: 101, Name: "Honorary", Amount: decimal.Zero, IsActive: true}
	s.levels[200] = models.EducationLevel{ID: 200, Name: "Bachelor's Degree"}
	s.institutions[300] = models.Institution{ID: 300, Name: "NUS"}
	s.users[1] = models.User{ID: 1, Username: "applicant", Email: "applicant@example.com", FirstName: "Tan", LastName: "Ah Kow"}
	s.users[2] = models.User{ID: 2, Username: "other", Email: "other@example.com"}
	s.users[9] = models.User{ID: 9, Username: "staff", IsStaff: true}
	return s
}

func (s *Store) id() uint {
	s.seq++
	return s.seq + 1000
}

func (s *Store) Tx(ctx context.Context, fn func(tx repository.Store) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	if err := fn(s); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s *Store) snapshot() *Store {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &Store{
		seq:           s.seq,
		memberships:   copyMap(s.memberships),
		personal:      copyMap(s.personal),
		contact:       copyMap(s.contact),
		education:     copyMap(s.education),
		work:          copyMap(s.work),
		payments:      copyMap(s.payments),
		audits:        append([]models.WorkflowAudit(nil), s.audits...),
		notifications: append([]models.Notification(nil), s.notifications...),
	}
}

func (s *Store) restore(snap *Store) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq = snap.seq
	s.memberships = snap.memberships
	s.personal = snap.personal
	s.contact = snap.contact
	s.education = snap.education
	s.work = snap.work
	s.payments = snap.payments
	s.audits = snap.audits
	s.notifications = snap.notifications
}

func (s *Store) Statuses() repository.StatusRepo            { return statusRepo{s} }
func (s *Store) Lookups() repository.LookupRepo             { return lookupRepo{s} }
func (s *Store) Users() repository.UserRepo                 { return userRepo{s} }
func (s *Store) Memberships() repository.MembershipRepo     { return membershipRepo{s} }
func (s *Store) Payments() repository.PaymentRepo           { return paymentRepo{s} }
func (s *Store) Audits() repository.AuditRepo               { return auditRepo{s} }
func (s *Store) Notifications() repository.NotificationRepo { return notificationRepo{s} }

type statusRepo struct{ s *Store }

func (r statusRepo) ByCode(ctx context.Context, code string) (*models.Status, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, st := range r.s.statuses {
		if st.StatusCode == code {
			st := st
			return &st, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r statusRepo) ByID(ctx context.Context, id uint) (*models.Status, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	st, ok := r.s.statuses[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &st, nil
}

func (r statusRepo) List(ctx context.Context) ([]models.Status, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Status
	for _, st := range r.s.statuses {
		out = append(out, st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type lookupRepo struct{ s *Store }

func (r lookupRepo) MembershipType(ctx context.Context, id uint) (*models.MembershipType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.types[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &t, nil
}

func (r lookupRepo) MembershipTypes(ctx context.Context) ([]models.MembershipType, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.MembershipType
	for _, t := range r.s.types {
		if t.IsActive {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r lookupRepo) EducationLevel(ctx context.Context, id uint) (*models.EducationLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	l, ok := r.s.levels[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &l, nil
}

func (r lookupRepo) EducationLevels(ctx context.Context) ([]models.EducationLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.EducationLevel
	for _, l := range r.s.levels {
		out = append(out, l)
	}
	return out, nil
}

func (r lookupRepo) Institution(ctx context.Context, id uint) (*models.Institution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	i, ok := r.s.institutions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &i, nil
}

func (r lookupRepo) Institutions(ctx context.Context) ([]models.Institution, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Institution
	for _, i := range r.s.institutions {
		out = append(out, i)
	}
	return out, nil
}

type userRepo struct{ s *Store }

func (r userRepo) ByID(ctx context.Context, id uint) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (r userRepo) UserInGroup(ctx context.Context, userID uint, group string) (bool, error) {
	u, err := r.ByID(ctx, userID)
	if err != nil {
		return false, nil
	}
	return u.InGroup(group), nil
}

type membershipRepo struct{ s *Store }

// load fills associations the way the gorm repository preloads them. Caller holds mu.
func (r membershipRepo) load(m models.Membership) *models.Membership {
	m.WorkflowStatus = r.s.statuses[m.WorkflowStatusID]
	if m.MembershipTypeID != nil {
		if t, ok := r.s.types[*m.MembershipTypeID]; ok {
			m.MembershipType = &t
		}
	}
	if v, ok := r.s.personal[m.ID]; ok {
		m.PersonalInfo = &v
	}
	if v, ok := r.s.contact[m.ID]; ok {
		m.ContactInfo = &v
	}
	if v, ok := r.s.education[m.ID]; ok {
		if v.EducationLevelID != nil {
			l := r.s.levels[*v.EducationLevelID]
			v.EducationLevel = &l
		}
		if v.InstitutionID != nil {
			i := r.s.institutions[*v.InstitutionID]
			v.Institution = &i
		}
		m.EducationInfo = &v
	}
	if v, ok := r.s.work[m.ID]; ok {
		m.WorkInfo = &v
	}
	return &m
}

func strip(m *models.Membership) models.Membership {
	c := *m
	c.User = models.User{}
	c.MembershipType = nil
	c.WorkflowStatus = models.Status{}
	c.PersonalInfo, c.ContactInfo, c.EducationInfo, c.WorkInfo = nil, nil, nil, nil
	return c
}

func (r membershipRepo) Create(ctx context.Context, m *models.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.memberships {
		if existing.UserID == m.UserID {
			return repository.ErrDuplicate
		}
	}
	_ = m.BeforeCreate(nil)
	m.ID = r.s.id()
	m.CreatedAt = time.Now()
	r.s.memberships[m.ID] = strip(m)
	return nil
}

func (r membershipRepo) Save(ctx context.Context, m *models.Membership) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.memberships[m.ID] = strip(m)
	return nil
}

func (r membershipRepo) ByID(ctx context.Context, id uint) (*models.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memberships[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.load(m), nil
}

func (r membershipRepo) ByUUID(ctx context.Context, uuid string) (*models.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.memberships {
		if m.UUID == uuid {
			return r.load(m), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r membershipRepo) ByUserID(ctx context.Context, userID uint) (*models.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.memberships {
		if m.UserID == userID {
			return r.load(m), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r membershipRepo) LockByID(ctx context.Context, id uint) (*models.Membership, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.memberships[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	m.WorkflowStatus = r.s.statuses[m.WorkflowStatusID]
	return &m, nil
}

func (r membershipRepo) List(ctx context.Context, f repository.MembershipFilter) ([]models.Membership, int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.Membership
	for _, m := range r.s.memberships {
		if f.UserID != 0 && m.UserID != f.UserID {
			continue
		}
		if f.StatusCode != "" && r.s.statuses[m.WorkflowStatusID].StatusCode != f.StatusCode {
			continue
		}
		out = append(out, *r.load(m))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r membershipRepo) UpsertPersonal(ctx context.Context, p *models.PersonalInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.personal[p.MembershipID] = *p
	return nil
}

func (r membershipRepo) UpsertContact(ctx context.Context, c *models.ContactInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.contact[c.MembershipID] = *c
	return nil
}

func (r membershipRepo) UpsertEducation(ctx context.Context, e *models.EducationInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.education[e.MembershipID] = *e
	return nil
}

func (r membershipRepo) UpsertWork(ctx context.Context, w *models.WorkInfo) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.work[w.MembershipID] = *w
	return nil
}

type paymentRepo struct{ s *Store }

func (r paymentRepo) Create(ctx context.Context, p *models.MembershipPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if ref := p.ExternalRef(); ref != "" {
		for _, existing := range r.s.payments {
			if existing.ExternalRef() == ref {
				return repository.ErrDuplicate
			}
		}
	}
	_ = p.BeforeCreate(nil)
	p.ID = r.s.id()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	r.s.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) Save(ctx context.Context, p *models.MembershipPayment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[p.ID] = *p
	return nil
}

func (r paymentRepo) find(match func(models.MembershipPayment) bool) (*models.MembershipPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.payments {
		if match(p) {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r paymentRepo) ByUUID(ctx context.Context, uuid string) (*models.MembershipPayment, error) {
	return r.find(func(p models.MembershipPayment) bool { return p.UUID == uuid })
}

func (r paymentRepo) ByExternalID(ctx context.Context, externalID string) (*models.MembershipPayment, error) {
	return r.find(func(p models.MembershipPayment) bool { return p.ExternalRef() == externalID })
}

func (r paymentRepo) LockByID(ctx context.Context, id uint) (*models.MembershipPayment, error) {
	return r.find(func(p models.MembershipPayment) bool { return p.ID == id })
}

func (r paymentRepo) ListByMembership(ctx context.Context, membershipID uint) ([]models.MembershipPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.MembershipPayment{}
	for _, p := range r.s.payments {
		if p.MembershipID == membershipID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r paymentRepo) OpenOnline(ctx context.Context, membershipID uint) (*models.MembershipPayment, error) {
	list, _ := r.ListByMembership(ctx, membershipID)
	for _, p := range list {
		if p.Method == domain.PaymentMethodHitPay && p.ExternalRef() != "" &&
			(p.Status == domain.PaymentStatusCreated || p.Status == domain.PaymentStatusPending) {
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r paymentRepo) HasPaid(ctx context.Context, membershipID uint) (bool, error) {
	list, _ := r.ListByMembership(ctx, membershipID)
	for _, p := range list {
		if p.Status == domain.PaymentStatusPaid {
			return true, nil
		}
	}
	return false, nil
}

func (r paymentRepo) StaleOnline(ctx context.Context, after, before time.Time, limit int) ([]models.MembershipPayment, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.MembershipPayment
	for _, p := range r.s.payments {
		if p.Method != domain.PaymentMethodHitPay || p.Status != domain.PaymentStatusCreated || p.ExternalRef() == "" {
			continue
		}
		if !p.CreatedAt.Before(before) || (!after.IsZero() && p.CreatedAt.Before(after)) {
			continue
		}
		out = append(out, p)
	}
	checked := func(p models.MembershipPayment) time.Time {
		if p.LastCheckedAt != nil {
			return *p.LastCheckedAt
		}
		return p.CreatedAt
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := checked(out[i]), checked(out[j])
		if !a.Equal(b) {
			return a.Before(b)
		}
		return out[i].ID < out[j].ID
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r paymentRepo) MarkChecked(ctx context.Context, id uint, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	p.LastCheckedAt = &at
	r.s.payments[id] = p
	return nil
}

type auditRepo struct{ s *Store }

func (r auditRepo) Create(ctx context.Context, a *models.WorkflowAudit) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a.ID = r.s.id()
	a.CreatedAt = time.Now()
	r.s.audits = append(r.s.audits, *a)
	return nil
}

func (r auditRepo) ListByMembership(ctx context.Context, membershipID uint) ([]models.WorkflowAudit, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []models.WorkflowAudit
	for _, a := range r.s.audits {
		if a.MembershipID == membershipID {
			out = append(out, a)
		}
	}
	return out, nil
}

type notificationRepo struct{ s *Store }

func (r notificationRepo) Create(ctx context.Context, n *models.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	n.ID = r.s.id()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r notificationRepo) ListByUserID(ctx context.Context, userID uint, limit, offset int) ([]models.Notification, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := []models.Notification{}
	for _, n := range r.s.notifications {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (r notificationRepo) MarkRead(ctx context.Context, id, userID uint) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i, n := range r.s.notifications {
		if n.ID == id && n.UserID == userID && n.ReadAt == nil {
			now := time.Now()
			r.s.notifications[i].ReadAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Store) PaymentCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.payments)
}

func (s *Store) AuditCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.audits)
}

// SetStatus forces a membership into code, bypassing the workflow.
func (s *Store) SetStatus(t *testing.T, membershipID uint, code string) {
	t.Helper()
	st, err := s.Statuses().ByCode(context.Background(), code)
	require.NoError(t, err)
	s.mu.Lock()
	defer s.mu.Unlock()
	m := s.memberships[membershipID]
	m.WorkflowStatusID = st.ID
	s.memberships[membershipID] = m
}

// ClearMembershipType unsets the membership's type.
func (s *Store) ClearMembershipType(t *testing.T, membershipID uint) {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.memberships[membershipID]
	require.True(t, ok, "membership %d", membershipID)
	m.MembershipTypeID = nil
	m.MembershipType = nil
	s.memberships[membershipID] = m
}

// AddUser inserts or replaces a user.
func (s *Store) AddUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}
