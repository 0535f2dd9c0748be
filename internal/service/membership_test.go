package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"bmr/internal/domain"
	"bmr/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateDraftsOnce(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	m, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, m.WorkflowStatus.StatusCode)
	assert.NotEmpty(t, m.UUID)
	assert.True(t, strings.HasPrefix(m.ReferenceNo, "MBR-"))

	again, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, again.ID)
}

func TestGetOrCreateConcurrentFirstTouch(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	var wg sync.WaitGroup
	ids := make([]uint, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			m, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
			if assert.NoError(t, err) {
				ids[i] = m.ID
			}
		}(i)
	}
	wg.Wait()

	list, total, err := h.store.Memberships().List(ctx, repository.MembershipFilter{UserID: applicant.UserID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	for _, id := range ids {
		assert.Equal(t, list[0].ID, id)
	}
}

func TestSubmitPage1(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	m, err := h.memberships.SubmitPage1(ctx, applicant, validPage1())
	require.NoError(t, err)
	assert.True(t, m.IsProfileCompleted)
	assert.True(t, m.IsContactCompleted)
	assert.False(t, m.IsEducationCompleted)
	require.NotNil(t, m.MembershipTypeID)
	assert.EqualValues(t, 100, *m.MembershipTypeID)
	assert.Equal(t, domain.StatusDraft, m.WorkflowStatus.StatusCode)

	require.NotNil(t, m.ContactInfo)
	assert.NotContains(t, m.ContactInfo.NRICFINEnc, "1234567")
	assert.NotContains(t, m.ContactInfo.PrimaryContactEnc, "91234567")
	nric, err := h.codec.Decrypt(m.ContactInfo.NRICFINEnc)
	require.NoError(t, err)
	assert.Equal(t, "S1234567D", nric)

	require.NotNil(t, m.PersonalInfo)
	require.NotNil(t, m.PersonalInfo.DateOfBirth)
	assert.Equal(t, "1990-05-17", m.PersonalInfo.DateOfBirth.Format("2006-01-02"))
}

func TestSubmitPage1InvalidMembershipType(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	in := validPage1()
	in.MembershipType = 999
	_, err := h.memberships.SubmitPage1(ctx, applicant, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "membership_type", verr.Field)

	m, err := h.store.Memberships().ByUserID(ctx, applicant.UserID)
	require.NoError(t, err)
	assert.False(t, m.IsProfileCompleted)
	assert.Nil(t, m.ContactInfo)
}

func TestSubmitPage2RequiresPage1(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	_, err := h.memberships.SubmitPage2(ctx, applicant, validPage2())
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "page1", verr.Field)
	assert.Equal(t, 0, h.store.PaymentCount())
}

func TestSubmitPage2GeneratesOnePayment(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)

	m, p := h.submitted(t)
	assert.Equal(t, domain.StatusPendingPayment, m.WorkflowStatus.StatusCode)
	assert.True(t, m.IsPaymentGenerated)
	assert.True(t, m.IsEducationCompleted)
	assert.True(t, m.IsWorkCompleted)
	assert.NotNil(t, m.SubmittedAt)

	assert.Equal(t, domain.PaymentStatusCreated, p.Status)
	assert.Equal(t, domain.PaymentMethodHitPay, p.Method)
	assert.Equal(t, "50.00", p.Amount.StringFixed(2))
	assert.Equal(t, "SGD", p.Currency)
	assert.NotEmpty(t, p.ExternalRef())
	assert.NotEmpty(t, p.QRCode)
	require.Len(t, h.gateway.Created, 1)
	assert.Equal(t, fmt.Sprintf("membership_%d", m.ID), h.gateway.Created[0].ReferenceNumber)
	assert.True(t, h.gateway.Created[0].GenerateQR)

	// resubmitting while pending payment keeps the single payment
	res, err := h.memberships.SubmitPage2(ctx, applicant, validPage2())
	require.NoError(t, err)
	assert.Nil(t, res.Payment)
	assert.Equal(t, 1, h.store.PaymentCount())
	assert.Len(t, h.gateway.Created, 1)
	assert.Contains(t, h.events.types(), EventStatusChanged)
}

func TestSubmitPage2InvalidLookups(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.memberships.SubmitPage1(ctx, applicant, validPage1())
	require.NoError(t, err)

	in := validPage2()
	bad := uint(4242)
	in.EducationInfo.Institution = &bad
	_, err = h.memberships.SubmitPage2(ctx, applicant, in)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "education_info.institution", verr.Field)

	m, err := h.store.Memberships().ByUserID(ctx, applicant.UserID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusDraft, m.WorkflowStatus.StatusCode)
	assert.Nil(t, m.EducationInfo)
}

func TestSubmitPage2PaymentFailureKeepsSubmission(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.memberships.SubmitPage1(ctx, applicant, validPage1())
	require.NoError(t, err)

	h.gateway.Err = errors.New("connection refused")
	res, err := h.memberships.SubmitPage2(ctx, applicant, validPage2())
	require.ErrorIs(t, err, ErrPaymentCreation)
	require.NotNil(t, res)
	assert.Equal(t, domain.StatusPendingPayment, res.Membership.WorkflowStatus.StatusCode)
	assert.False(t, res.Membership.IsPaymentGenerated)
	assert.Equal(t, 0, h.store.PaymentCount())
}

func TestResubmitAfterRevisionWithPaidFee(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, p := h.submitted(t)

	_, err := h.recon.HandleWebhook(ctx, WebhookPayload{ExternalID: p.ExternalRef(), Status: "completed"})
	require.NoError(t, err)
	_, err = h.decisions.Decide(ctx, staff, m.UUID, DecisionInput{Action: domain.ActionRevise, Comment: "update employer"})
	require.NoError(t, err)

	res, err := h.memberships.SubmitPage2(ctx, applicant, validPage2())
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPendingApproval, res.Membership.WorkflowStatus.StatusCode)
	assert.Nil(t, res.Payment)
	assert.Equal(t, 1, h.store.PaymentCount())
}

func TestEditsBlockedAfterDecision(t *testing.T) {
	ctx := context.Background()
	for _, code := range []string{domain.StatusRejected, domain.StatusTerminated, domain.StatusApproved} {
		t.Run(code, func(t *testing.T) {
			h := newHarness(t)
			up := h.withUploader()
			m := h.completed(t)
			h.store.SetStatus(t, m.ID, code)
			before := h.store.AuditCount()

			in := validPage1()
			in.ProfileInfo.FullName = "Someone Else"
			_, err := h.memberships.SubmitPage1(ctx, applicant, in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "workflow_status", verr.Field)

			_, err = h.memberships.SubmitPage2(ctx, applicant, validPage2())
			require.ErrorAs(t, err, &verr)

			_, err = h.payments.CreateOnlinePayment(ctx, applicant, OnlinePaymentInput{})
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "workflow_status", verr.Field)

			offline := OfflinePaymentInput{Method: domain.PaymentMethodCash}
			_, err = h.payments.CreateOfflinePayment(ctx, applicant, offline, "")
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "workflow_status", verr.Field)

			_, err = h.payments.UploadPaymentSlip(ctx, applicant, offline, strings.NewReader("%PDF"))
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "workflow_status", verr.Field)

			_, err = h.memberships.UpdateProfilePicture(ctx, applicant, strings.NewReader("img"))
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "workflow_status", verr.Field)

			got, err := h.store.Memberships().ByID(ctx, m.ID)
			require.NoError(t, err)
			assert.Equal(t, "Tan Ah Kow", got.PersonalInfo.FullName)
			assert.Equal(t, code, got.WorkflowStatus.StatusCode)
			require.NotNil(t, got.WorkInfo)
			assert.Equal(t, "Acme", got.WorkInfo.CompanyName)
			assert.Empty(t, got.ProfilePicture)
			assert.Zero(t, up.uploads)
			assert.Empty(t, h.gateway.Created)
			assert.Equal(t, 0, h.store.PaymentCount())
			assert.Equal(t, before, h.store.AuditCount())
		})
	}
}

func TestGetHidesOtherApplicants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	m, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
	require.NoError(t, err)

	_, err = h.memberships.Get(ctx, stranger, m.UUID)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := h.memberships.Get(ctx, staff, m.UUID)
	require.NoError(t, err)
	assert.Equal(t, m.ID, got.ID)

	_, err = h.memberships.Get(ctx, staff, "no-such-uuid")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListScopesApplicants(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	_, err := h.memberships.GetOrCreate(ctx, applicant.UserID)
	require.NoError(t, err)
	_, err = h.memberships.GetOrCreate(ctx, stranger.UserID)
	require.NoError(t, err)

	own, total, err := h.memberships.List(ctx, applicant, repository.MembershipFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, applicant.UserID, own[0].UserID)

	_, total, err = h.memberships.List(ctx, staff, repository.MembershipFilter{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)

	_, total, err = h.memberships.List(ctx, staff, repository.MembershipFilter{StatusCode: domain.StatusApproved})
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}

func TestUpdateProfilePictureWithoutUploader(t *testing.T) {
	h := newHarness(t)
	_, err := h.memberships.UpdateProfilePicture(context.Background(), applicant, strings.NewReader("img"))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "profile_picture", verr.Field)
}
