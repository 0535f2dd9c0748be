package router

import (
	"log/slog"

	"bmr/config"
	"bmr/internal/handler"
	"bmr/internal/middleware"
	"bmr/internal/repository"
	"bmr/internal/service"
	"bmr/internal/ws"
	"bmr/pkg/cloudinary"
	"bmr/pkg/payment"

	"github.com/gin-gonic/gin"
)

// Deps are the external collaborators the services are built from. Uploader,
// Locker and Events may be nil.
type Deps struct {
	Store         repository.Store
	Codec         service.FieldCodec
	Gateway       payment.Gateway
	Uploader      cloudinary.Client
	Locker        service.Locker
	Events        service.EventPublisher
	Notifications *service.NotificationService
	Hub           *ws.Hub
}

// NewGateway returns the HitPay client, or the stub gateway outside production
// when no API key is configured.
func NewGateway(cfg *config.Config) (payment.Gateway, error) {
	if cfg.HitPay.APIKey != "" {
		return payment.NewHitPayClient(cfg.HitPay.APIURL, cfg.HitPay.APIKey, cfg.HitPay.Timeout), nil
	}
	if cfg.IsProduction() {
		return nil, payment.ErrAPIKeyNotConfigured
	}
	slog.Warn("HITPAY_API_KEY not set; using stub payment gateway")
	return payment.NewStubGateway(), nil
}

type Services struct {
	Memberships   *service.MembershipService
	Payments      *service.PaymentService
	Recon         *service.ReconciliationService
	Decisions     *service.DecisionService
	Notifications *service.NotificationService
	Presenter     *service.Presenter
}

func NewServices(cfg *config.Config, d Deps) *Services {
	notifications := d.Notifications
	if notifications == nil {
		notifications = service.NewNotificationService(d.Store, nil, nil)
	}
	var broadcaster service.Broadcaster
	if d.Hub != nil {
		broadcaster = d.Hub
	}
	recon := service.NewReconciliationService(d.Store, d.Gateway, d.Locker, notifications, d.Events, broadcaster)
	payments := service.NewPaymentService(d.Store, d.Gateway, recon, d.Uploader, cfg.HitPay, cfg.Cloudinary.Folder, d.Events)
	return &Services{
		Memberships:   service.NewMembershipService(d.Store, d.Codec, payments, d.Uploader, cfg.Cloudinary.Folder, d.Events),
		Payments:      payments,
		Recon:         recon,
		Decisions:     service.NewDecisionService(d.Store, notifications, d.Events),
		Notifications: notifications,
		Presenter:     service.NewPresenter(d.Codec),
	}
}

// Limiters are the request limiters installed by Setup.
type Limiters struct {
	API     *middleware.InMemoryRateLimiter
	Webhook *middleware.InMemoryRateLimiter
}

// Stop ends the limiters' cleanup goroutines.
func (l *Limiters) Stop() {
	l.API.Stop()
	l.Webhook.Stop()
}

// Setup builds the engine. The caller stops the returned limiters on shutdown.
func Setup(cfg *config.Config, store repository.Store, svc *Services, hub *ws.Hub) (*gin.Engine, *Limiters) {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := handler.RegisterValidators(); err != nil {
		slog.Error("validator registration failed", "err", err)
	}
	limiters := &Limiters{
		API:     middleware.NewInMemoryRateLimiter(cfg.Server.RateLimit, cfg.Server.RateWindow),
		Webhook: middleware.NewInMemoryRateLimiter(60, cfg.Server.RateWindow),
	}
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())
	r.Use(middleware.RateLimit(limiters.API))

	access := handler.Access{ManagementGroup: cfg.Workflow.ManagementGroup, Lookup: store.Users()}

	lookupHandler := handler.NewLookupHandler(store)
	membershipHandler := handler.NewMembershipHandler(svc.Memberships, svc.Presenter, access)
	paymentHandler := handler.NewPaymentHandler(svc.Payments, access)
	uploadHandler := handler.NewUploadHandler(svc.Memberships, svc.Payments, svc.Presenter, access)
	webhookHandler := handler.NewPaymentWebhookHandler(svc.Recon, cfg.HitPay.WebhookSalt)
	managementHandler := handler.NewManagementHandler(svc.Memberships, svc.Decisions, svc.Recon, svc.Payments, access)
	notificationHandler := handler.NewNotificationHandler(svc.Notifications)

	authMw := middleware.AuthRequired(&cfg.JWT)
	managementMw := middleware.ManagementRequired(cfg.Workflow.ManagementGroup, store.Users())
	webhookLimit := middleware.RateLimit(limiters.Webhook)

	api := r.Group("/api/v1")
	{
		memberships := api.Group("/memberships")
		{
			memberships.GET("/membership-types", lookupHandler.MembershipTypes)
			memberships.GET("/education-levels", lookupHandler.EducationLevels)
			memberships.GET("/institutions", lookupHandler.Institutions)
			memberships.GET("/meta", lookupHandler.Meta)
			memberships.POST("/payments/webhooks/hitpay", webhookLimit, webhookHandler.HitPay)
		}

		applicant := api.Group("/memberships")
		applicant.Use(authMw)
		{
			applicant.GET("", membershipHandler.List)
			applicant.GET("/my-membership", membershipHandler.MyMembership)
			applicant.POST("/submit-page1", membershipHandler.SubmitPage1)
			applicant.POST("/submit-page2", membershipHandler.SubmitPage2)
			applicant.POST("/create-payment", paymentHandler.CreatePayment)
			applicant.POST("/offline-payment", paymentHandler.OfflinePayment)
			applicant.POST("/upload-payment-slip", uploadHandler.PaymentSlip)
			applicant.POST("/profile-picture", uploadHandler.ProfilePicture)
			applicant.GET("/payments", paymentHandler.ListPayments)
			applicant.GET("/payment-status", paymentHandler.PaymentStatus)
			applicant.GET("/:uuid", membershipHandler.Get)
		}

		management := api.Group("/memberships/management")
		management.Use(authMw, managementMw)
		{
			management.GET("", membershipHandler.List)
			management.POST("/:uuid/workflow-decision", managementHandler.Decide)
			management.GET("/:uuid/history", managementHandler.History)
			management.GET("/:uuid/payments", managementHandler.Payments)
			management.POST("/payments/:uuid/confirm", managementHandler.ConfirmPayment)
		}

		notifications := api.Group("/notifications")
		notifications.Use(authMw)
		{
			notifications.GET("", notificationHandler.List)
			notifications.PUT("/:id/read", notificationHandler.MarkRead)
		}
	}

	if hub != nil {
		r.GET("/ws/payments", ws.UpgradePaymentsWS(&cfg.JWT, hub))
	}
	return r, limiters
}
