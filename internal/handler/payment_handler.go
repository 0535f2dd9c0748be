package handler

import (
	"net/http"

	"bmr/internal/models"
	"bmr/internal/service"

	"github.com/gin-gonic/gin"
)

type PaymentHandler struct {
	payments *service.PaymentService
	access   Access
}

func NewPaymentHandler(payments *service.PaymentService, access Access) *PaymentHandler {
	return &PaymentHandler{payments: payments, access: access}
}

func paymentResponse(p *models.MembershipPayment) gin.H {
	v := service.PaymentViewOf(p)
	return gin.H{
		"payment":          v,
		"qr_code_url":      v.QRCode,
		"payment_amount":   v.Amount,
		"payment_currency": v.Currency,
	}
}

// CreatePayment requests an online QR payment. The body is optional; the
// membership fee is used when no amount is given.
func (h *PaymentHandler) CreatePayment(c *gin.Context) {
	var in service.OnlinePaymentInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&in); err != nil {
			bindError(c, err)
			return
		}
	}
	p, err := h.payments.CreateOnlinePayment(c.Request.Context(), h.access.Actor(c), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, paymentResponse(p))
}

func (h *PaymentHandler) OfflinePayment(c *gin.Context) {
	var in service.OfflinePaymentInput
	if err := c.ShouldBindJSON(&in); err != nil {
		bindError(c, err)
		return
	}
	p, err := h.payments.CreateOfflinePayment(c.Request.Context(), h.access.Actor(c), in, "")
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"payment": service.PaymentViewOf(p)})
}

func (h *PaymentHandler) ListPayments(c *gin.Context) {
	list, err := h.payments.ListPayments(c.Request.Context(), h.access.Actor(c))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": service.PaymentViews(list)})
}

// PaymentStatus looks a payment up by ?external_id= or ?payment_uuid= and
// refreshes it from the provider when still open.
func (h *PaymentHandler) PaymentStatus(c *gin.Context) {
	p, err := h.payments.PaymentStatus(c.Request.Context(), h.access.Actor(c), c.Query("external_id"), c.Query("payment_uuid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": p.Status, "payment": service.PaymentViewOf(p)})
}
