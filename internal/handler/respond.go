package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"bmr/internal/middleware"
	"bmr/internal/service"
	"bmr/pkg/fieldcrypt"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const forbiddenMessage = "You do not have permission to perform this action."

var nricPattern = regexp.MustCompile(`^[STFG]\d{7}[A-Z]$`)

// RegisterValidators adds the nric tag to gin's validator and reports field
// errors by their JSON names.
func RegisterValidators() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin validator is not go-playground/validator")
	}
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v.RegisterValidation("nric", func(fl validator.FieldLevel) bool {
		return nricPattern.MatchString(strings.ToUpper(strings.TrimSpace(fl.Field().String())))
	})
}

// Access turns the authenticated request into a service.Actor.
type Access struct {
	ManagementGroup string
	Lookup          middleware.GroupLookup
}

func (a Access) Actor(c *gin.Context) service.Actor {
	return service.Actor{
		UserID:       middleware.GetUserID(c),
		IsStaff:      middleware.GetIsStaff(c),
		IsManagement: middleware.IsManagement(c, a.ManagementGroup, a.Lookup),
	}
}

// writeError maps service errors onto status codes. Provider and decryption
// details are logged, never returned.
func writeError(c *gin.Context, err error) {
	var verr *service.ValidationError
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{
			"error":  verr.Message,
			"fields": gin.H{verr.Field: []string{verr.Message}},
		})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": forbiddenMessage})
	case errors.Is(err, service.ErrPaymentCreation):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Payment creation failed. Please try again later."})
	case errors.Is(err, service.ErrStatusCheck):
		c.JSON(http.StatusBadGateway, gin.H{"error": "Unable to check payment status. Please try again later."})
	case errors.Is(err, fieldcrypt.ErrDecrypt):
		slog.Error("sensitive field could not be decrypted", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stored data could not be read"})
	default:
		slog.Error("request failed", "path", c.FullPath(), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

// bindError reports binding failures per field.
func bindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	fields := gin.H{}
	for _, fe := range verrs {
		fields[fieldPath(fe)] = []string{fieldMessage(fe)}
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "fields": fields})
}

// fieldPath drops the root struct name: Page1Input.contact_info.nric_fin -> contact_info.nric_fin.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "nric":
		return "Enter a valid NRIC/FIN."
	case "max":
		return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
	case "len":
		return fmt.Sprintf("Ensure this field has exactly %s characters.", fe.Param())
	case "datetime":
		return "Date must be YYYY-MM-DD."
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ") + "."
	case "min":
		return fmt.Sprintf("Ensure this value is at least %s.", fe.Param())
	}
	return "Invalid value."
}

// paging reads limit and offset with the given default and a cap of 100.
func paging(c *gin.Context, def int) (limit, offset int) {
	limit, _ = strconv.Atoi(c.Query("limit"))
	offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
