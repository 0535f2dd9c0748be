package handler

import (
	"net/http"

	"bmr/internal/domain"
	"bmr/internal/repository"
	"bmr/internal/service"

	"github.com/gin-gonic/gin"
)

// LookupHandler serves the public reference data the application form needs.
type LookupHandler struct {
	store repository.Store
}

func NewLookupHandler(store repository.Store) *LookupHandler {
	return &LookupHandler{store: store}
}

func (h *LookupHandler) MembershipTypes(c *gin.Context) {
	list, err := h.store.Lookups().MembershipTypes(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]gin.H, 0, len(list))
	for _, t := range list {
		out = append(out, gin.H{"id": t.ID, "name": t.Name, "amount": t.Amount.StringFixed(2), "description": t.Description})
	}
	c.JSON(http.StatusOK, gin.H{"results": out})
}

func (h *LookupHandler) EducationLevels(c *gin.Context) {
	list, err := h.store.Lookups().EducationLevels(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": list})
}

func (h *LookupHandler) Institutions(c *gin.Context) {
	list, err := h.store.Lookups().Institutions(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": list})
}

// Meta describes the workflow: statuses, decision actions and payment methods.
func (h *LookupHandler) Meta(c *gin.Context) {
	statuses, err := h.store.Statuses().List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	views := make([]service.StatusView, 0, len(statuses))
	editable := []string{}
	for i := range statuses {
		views = append(views, service.StatusViewOf(&statuses[i]))
		if service.CanEdit(statuses[i].StatusCode) {
			editable = append(editable, statuses[i].StatusCode)
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"statuses":          views,
		"editable_statuses": editable,
		"actions":           domain.ActionTargets,
		"payment_methods":   []string{domain.PaymentMethodHitPay, domain.PaymentMethodBankTransfer, domain.PaymentMethodCash},
		"default_currency":  domain.DefaultCurrency,
	})
}
