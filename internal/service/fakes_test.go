package service

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"bmr/config"
	"bmr/internal/models"
	"bmr/internal/repository/repotest"
	"bmr/pkg/fieldcrypt"
	"bmr/pkg/payment"

	"github.com/stretchr/testify/require"
)

type fakeNotifier struct {
	mu      sync.Mutex
	paid    []string
	paidFor []string
	changed []string
	err     error
}

func (n *fakeNotifier) NotifyPaymentReceived(ctx context.Context, userID uint, membershipUUID string, p *models.MembershipPayment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paid = append(n.paid, p.UUID)
	n.paidFor = append(n.paidFor, membershipUUID)
	return n.err
}

func (n *fakeNotifier) NotifyStatusChanged(ctx context.Context, userID uint, membershipUUID string, st *models.Status, reason string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.changed = append(n.changed, st.StatusCode)
	return n.err
}

func (n *fakeNotifier) paidCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.paid)
}

type fakeEvents struct {
	mu     sync.Mutex
	events []Event
}

func (f *fakeEvents) Publish(ctx context.Context, ev Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}

func (f *fakeEvents) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, ev := range f.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeUploader struct {
	mu      sync.Mutex
	uploads int
}

func (u *fakeUploader) UploadImage(ctx context.Context, file io.Reader, folder, publicID string) (string, string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads++
	return "https://res.cloudinary.com/demo/" + publicID + ".jpg", "https://res.cloudinary.com/demo/thumb.jpg", nil
}

func (u *fakeUploader) UploadDocument(ctx context.Context, file io.Reader, folder, publicID string) (string, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.uploads++
	return "https://res.cloudinary.com/demo/slip.pdf", nil
}

type fakeBroadcaster struct {
	mu   sync.Mutex
	sent map[uint][]interface{}
}

func (b *fakeBroadcaster) BroadcastToUser(userID uint, payload interface{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sent == nil {
		b.sent = map[uint][]interface{}{}
	}
	b.sent[userID] = append(b.sent[userID], payload)
}

// harness wires the services over one in-memory store.
type harness struct {
	store       *repotest.Store
	gateway     *payment.StubGateway
	notifier    *fakeNotifier
	events      *fakeEvents
	broadcaster *fakeBroadcaster
	codec       *fieldcrypt.Codec
	recon       *ReconciliationService
	payments    *PaymentService
	memberships *MembershipService
	decisions   *DecisionService
	presenter   *Presenter
}

var (
	applicant = Actor{UserID: 1}
	stranger  = Actor{UserID: 2}
	staff     = Actor{UserID: 9, IsStaff: true}
)

func newHarness(t *testing.T) *harness {
	t.Helper()
	codec, err := fieldcrypt.New("service-test-key")
	require.NoError(t, err)
	h := &harness{
		store:       repotest.NewStore(),
		gateway:     payment.NewStubGateway(),
		notifier:    &fakeNotifier{},
		events:      &fakeEvents{},
		broadcaster: &fakeBroadcaster{},
		codec:       codec,
	}
	hitpay := config.HitPayConfig{
		WebhookURL:     "https://api.example.com/api/v1/memberships/payments/webhooks/hitpay",
		PaymentMethods: []string{"paynow_online"},
		Currency:       "SGD",
	}
	h.recon = NewReconciliationService(h.store, h.gateway, nil, h.notifier, h.events, h.broadcaster)
	h.payments = NewPaymentService(h.store, h.gateway, h.recon, nil, hitpay, "test", h.events)
	h.memberships = NewMembershipService(h.store, codec, h.payments, nil, "test", h.events)
	h.decisions = NewDecisionService(h.store, h.notifier, h.events)
	h.presenter = NewPresenter(codec)
	return h
}

// withUploader rebuilds the upload-aware services over a fake uploader.
func (h *harness) withUploader() *fakeUploader {
	up := &fakeUploader{}
	h.payments = NewPaymentService(h.store, h.gateway, h.recon, up, h.payments.hitpay, "test", h.events)
	h.memberships = NewMembershipService(h.store, h.codec, h.payments, up, "test", h.events)
	return up
}

func validPage1() Page1Input {
	return Page1Input{
		ProfileInfo: PersonalInput{FullName: "Tan Ah Kow", DateOfBirth: "1990-05-17", Gender: "male", Citizenship: "Singaporean"},
		ContactInfo: ContactInput{
			NRICFIN:        "s1234567d",
			PrimaryContact: "+6591234567",
			PostalCode:     "123456",
			Address:        "1 Main Street",
		},
		MembershipType: 100,
	}
}

func validPage2() Page2Input {
	level, inst := uint(200), uint(300)
	return Page2Input{
		EducationInfo: EducationInput{Education: &level, Institution: &inst},
		WorkInfo:      WorkInput{Occupation: "Engineer", CompanyName: "Acme", CompanyContact: "+6567654321"},
	}
}

// submitted returns a membership that went through both pages and has a created payment.
func (h *harness) submitted(t *testing.T) (*models.Membership, *models.MembershipPayment) {
	t.Helper()
	ctx := context.Background()
	_, err := h.memberships.SubmitPage1(ctx, applicant, validPage1())
	require.NoError(t, err)
	res, err := h.memberships.SubmitPage2(ctx, applicant, validPage2())
	require.NoError(t, err)
	require.NotNil(t, res.Payment)
	return res.Membership, res.Payment
}

// completed returns a membership with both pages done whose automatic payment
// request failed, so it waits in pending payment with no payment rows.
func (h *harness) completed(t *testing.T) *models.Membership {
	t.Helper()
	ctx := context.Background()
	_, err := h.memberships.SubmitPage1(ctx, applicant, validPage1())
	require.NoError(t, err)
	h.gateway.Err = errors.New("provider unavailable")
	res, err := h.memberships.SubmitPage2(ctx, applicant, validPage2())
	h.gateway.Err = nil
	require.ErrorIs(t, err, ErrPaymentCreation)
	require.Equal(t, 0, h.store.PaymentCount())
	return res.Membership
}
