package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"bmr/internal/service"
	"bmr/pkg/payment"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "Hitpay-Signature"

type PaymentWebhookHandler struct {
	recon *service.ReconciliationService
	salt  string
}

func NewPaymentWebhookHandler(recon *service.ReconciliationService, salt string) *PaymentWebhookHandler {
	return &PaymentWebhookHandler{recon: recon, salt: salt}
}

// HitPay accepts form-encoded webhooks signed with an hmac field and JSON
// webhooks signed over the raw body. Signatures are only checked when a salt is configured.
func (h *PaymentWebhookHandler) HitPay(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid body"})
		return
	}
	var in service.WebhookPayload
	if c.ContentType() == "application/x-www-form-urlencoded" {
		form, err := url.ParseQuery(string(body))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}
		if h.salt != "" && !payment.VerifyFormSignature(h.salt, form) {
			slog.Warn("hitpay webhook rejected: bad signature", "ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		in.ExternalID = firstNonEmpty(form.Get("id"), form.Get("payment_request_id"))
		in.Status = form.Get("status")
		flat := make(map[string]string, len(form))
		for k := range form {
			if k != "hmac" {
				flat[k] = form.Get(k)
			}
		}
		in.Raw, _ = json.Marshal(flat)
	} else {
		if h.salt != "" && !payment.VerifyBodySignature(h.salt, body, c.GetHeader(signatureHeader)) {
			slog.Warn("hitpay webhook rejected: bad signature", "ip", c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid signature"})
			return
		}
		var payload map[string]interface{}
		if err := json.Unmarshal(body, &payload); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
			return
		}
		in.ExternalID = firstNonEmpty(stringOf(payload["id"]), stringOf(payload["payment_request_id"]))
		in.Status = stringOf(payload["status"])
		in.Raw = body
	}

	res, err := h.recon.HandleWebhook(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true, "status": res.Payment.Status})
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

func stringOf(v interface{}) string {
	s, _ := v.(string)
	return s
}
