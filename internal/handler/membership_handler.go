package handler

import (
	"errors"
	"net/http"

	"bmr/internal/middleware"
	"bmr/internal/models"
	"bmr/internal/repository"
	"bmr/internal/service"

	"github.com/gin-gonic/gin"
)

type MembershipHandler struct {
	memberships *service.MembershipService
	presenter   *service.Presenter
	access      Access
}

func NewMembershipHandler(memberships *service.MembershipService, presenter *service.Presenter, access Access) *MembershipHandler {
	return &MembershipHandler{memberships: memberships, presenter: presenter, access: access}
}

func (h *MembershipHandler) render(c *gin.Context, status int, m *models.Membership) {
	v, err := h.presenter.Membership(m, h.access.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(status, v)
}

// MyMembership returns the caller's application, drafting one on first call.
func (h *MembershipHandler) MyMembership(c *gin.Context) {
	m, err := h.memberships.GetOrCreate(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	h.render(c, http.StatusOK, m)
}

func (h *MembershipHandler) SubmitPage1(c *gin.Context) {
	var in service.Page1Input
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	m, err := h.memberships.SubmitPage1(c.Request.Context(), h.access.Actor(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	h.render(c, http.StatusOK, m)
}

// SubmitPage2 answers with the membership and, when one was generated, the
// payment with its QR code.
func (h *MembershipHandler) SubmitPage2(c *gin.Context) {
	var in service.Page2Input
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	actor := h.access.Actor(c)
	res, err := h.memberships.SubmitPage2(c.Request.Context(), actor, in)
	if err != nil {
		if errors.Is(err, service.ErrPaymentCreation) && res != nil && res.Membership != nil {
			// the application itself was saved; the applicant can retry the payment
			v, verr := h.presenter.Membership(res.Membership, actor)
			if verr == nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": "Payment creation failed. Please try again later.", "membership": v})
				return
			}
		}
		writeError(c, err)
		return
	}
	v, err := h.presenter.Membership(res.Membership, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	out := gin.H{"membership": v, "payment": nil, "qr_code_url": nil, "payment_amount": nil, "payment_currency": nil}
	if res.Payment != nil {
		pv := service.PaymentViewOf(res.Payment)
		out["payment"] = pv
		out["qr_code_url"] = pv.QRCode
		out["payment_amount"] = pv.Amount
		out["payment_currency"] = pv.Currency
	}
	c.JSON(http.StatusOK, out)
}

func (h *MembershipHandler) Get(c *gin.Context) {
	m, err := h.memberships.Get(c.Request.Context(), h.access.Actor(c), c.Param("uuid"))
	if err != nil {
		writeError(c, err)
		return
	}
	h.render(c, http.StatusOK, m)
}

// List returns the caller's own membership, or every membership for management.
func (h *MembershipHandler) List(c *gin.Context) {
	limit, offset := paging(c, 20)
	actor := h.access.Actor(c)
	list, total, err := h.memberships.List(c.Request.Context(), actor, repository.MembershipFilter{
		StatusCode: c.Query("status"),
		Limit:      limit,
		Offset:     offset,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]*service.MembershipView, 0, len(list))
	for i := range list {
		v, err := h.presenter.Membership(&list[i], actor)
		if err != nil {
			writeError(c, err)
			return
		}
		views = append(views, v)
	}
	c.JSON(http.StatusOK, gin.H{"count": total, "results": views})
}
