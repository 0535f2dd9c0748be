package handler

import (
	"net/http"
	"strings"

	"bmr/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const maxUploadBytes = 10 << 20

// UploadHandler accepts the multipart endpoints: profile pictures and payment slips.
type UploadHandler struct {
	memberships *service.MembershipService
	payments    *service.PaymentService
	presenter   *service.Presenter
	access      Access
}

func NewUploadHandler(memberships *service.MembershipService, payments *service.PaymentService, presenter *service.Presenter, access Access) *UploadHandler {
	return &UploadHandler{memberships: memberships, payments: payments, presenter: presenter, access: access}
}

func (h *UploadHandler) ProfilePicture(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	file, err := c.FormFile("profile_picture")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "profile_picture file required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	actor := h.access.Actor(c)
	m, err := h.memberships.UpdateProfilePicture(c.Request.Context(), actor, f)
	if err != nil {
		writeError(c, err)
		return
	}
	v, err := h.presenter.Membership(m, actor)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

// PaymentSlip records an offline payment with its uploaded receipt.
func (h *UploadHandler) PaymentSlip(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	var in service.OfflinePaymentInput
	if err := c.ShouldBind(&in); err != nil {
		bindError(c, err)
		return
	}
	if raw := strings.TrimSpace(c.PostForm("amount")); raw != "" {
		amount, err := decimal.NewFromString(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid amount", "fields": gin.H{"amount": []string{"A valid number is required."}}})
			return
		}
		in.Amount = &amount
	}
	file, err := c.FormFile("receipt_image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "receipt_image file required"})
		return
	}
	f, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "could not read file"})
		return
	}
	defer f.Close()

	p, err := h.payments.UploadPaymentSlip(c.Request.Context(), h.access.Actor(c), in, f)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": service.PaymentViewOf(p)})
}
