package handler

import (
	"net/http"
	"strings"

	"bmr/internal/service"

	"github.com/gin-gonic/gin"
)

type decisionRequest struct {
	Action     string `json:"action"`
	StatusID   uint   `json:"status_id"`
	StatusCode string `json:"status_code" binding:"max=16"`
	Comment    string `json:"comment"`
}

// ManagementHandler serves the staff side of the workflow.
type ManagementHandler struct {
	memberships *service.MembershipService
	decisions   *service.DecisionService
	recon       *service.ReconciliationService
	payments    *service.PaymentService
	access      Access
}

func NewManagementHandler(memberships *service.MembershipService, decisions *service.DecisionService, recon *service.ReconciliationService, payments *service.PaymentService, access Access) *ManagementHandler {
	return &ManagementHandler{memberships: memberships, decisions: decisions, recon: recon, payments: payments, access: access}
}

// Decide applies {action|status_id|status_code, comment} to the membership.
func (h *ManagementHandler) Decide(c *gin.Context) {
	var req decisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}
	m, err := h.decisions.Decide(c.Request.Context(), h.access.Actor(c), c.Param("uuid"), service.DecisionInput{
		Action:     strings.TrimSpace(req.Action),
		StatusID:   req.StatusID,
		StatusCode: strings.TrimSpace(req.StatusCode),
		Comment:    strings.TrimSpace(req.Comment),
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"uuid":            m.UUID,
		"workflow_status": service.StatusViewOf(&m.WorkflowStatus),
		"reason":          m.Reason,
	})
}

func (h *ManagementHandler) History(c *gin.Context) {
	list, err := h.decisions.History(c.Request.Context(), h.access.Actor(c), c.Param("uuid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": list})
}

// ConfirmPayment marks an offline payment as received.
func (h *ManagementHandler) ConfirmPayment(c *gin.Context) {
	res, err := h.recon.ConfirmOffline(c.Request.Context(), h.access.Actor(c), c.Param("uuid"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"changed": res.Changed, "payment": service.PaymentViewOf(res.Payment)})
}

func (h *ManagementHandler) Payments(c *gin.Context) {
	actor := h.access.Actor(c)
	m, err := h.memberships.Get(c.Request.Context(), actor, c.Param("uuid"))
	if err != nil {
		writeError(c, err)
		return
	}
	list, err := h.payments.MembershipPayments(c.Request.Context(), actor, m.ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payments": service.PaymentViews(list)})
}
