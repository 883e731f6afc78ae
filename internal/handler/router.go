package handler

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/middleware"
	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/config"
	"github.com/noah-isme/hris-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/hris-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/hris-api/pkg/middleware/requestid"
)

// Request-level audit actions for endpoints that have no workflow event.
const (
	AuditActionEmailRelay       = "EMAIL_RELAY"
	AuditActionDocumentGenerate = "DOCUMENT_GENERATE"
	AuditActionBenefitExport    = "BENEFIT_EXPORT"
	AuditActionOutboxRetry      = "OUTBOX_RETRY"
)

// Handlers bundles every HTTP handler mounted by the router.
type Handlers struct {
	Auth          *AuthHandler
	Users         *UserHandler
	Employees     *EmployeeHandler
	Benefits      *BenefitHandler
	PANs          *PANHandler
	Assets        *AssetHandler
	Helpdesk      *HelpdeskHandler
	Notifications *NotificationHandler
	Audit         *AuditHandler
	Announcements *AnnouncementHandler
	Attachments   *AttachmentHandler
	Email         *EmailHandler
	Outbox        *OutboxHandler
	Metrics       *MetricsHandler
}

// RouterDeps carries the cross-cutting collaborators of the router.
type RouterDeps struct {
	Tokens   middleware.TokenValidator
	Audit    middleware.AuditWriter
	Observer middleware.RequestObserver
	Logger   *zap.Logger
}

// NewRouter builds the gin engine with global middleware and every route
// mounted under cfg.APIPrefix.
func NewRouter(cfg *config.Config, deps RouterDeps, h Handlers) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Observer))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if !cfg.IsProduction() {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(cfg.APIPrefix)
	audit := func(action, entity string) gin.HandlerFunc {
		return middleware.Audit(deps.Audit, log, action, entity)
	}
	hr := middleware.RequireRoles(models.RoleHR)

	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.GET("/files/:token", h.Attachments.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(deps.Tokens))

	secured.POST("/auth/logout", h.Auth.Logout)
	secured.POST("/auth/change-password", h.Auth.ChangePassword)
	secured.GET("/auth/me", h.Auth.Me)

	users := secured.Group("/users", middleware.RequireRoles(models.RoleSuperAdmin))
	users.GET("", h.Users.List)
	users.POST("", h.Users.Create)
	users.GET("/:id", h.Users.Get)
	users.PUT("/:id", h.Users.Update)
	users.DELETE("/:id", h.Users.Delete)

	employees := secured.Group("/employees")
	employees.GET("", middleware.RequireRoles(models.RoleHR, models.RoleManager), h.Employees.List)
	employees.GET("/me", h.Employees.Me)
	employees.POST("", hr, h.Employees.Create)
	employees.GET("/:id", h.Employees.Get)
	employees.PUT("/:id", hr, h.Employees.Update)
	employees.POST("/:id/separate", hr, h.Employees.Separate)
	employees.GET("/:id/coe", audit(AuditActionDocumentGenerate, models.EntityEmployee), h.Employees.COE)

	benefitTypes := secured.Group("/benefit-types")
	benefitTypes.GET("", h.Benefits.ListTypes)
	benefitTypes.GET("/:id", h.Benefits.GetType)
	benefitTypes.POST("", hr, h.Benefits.CreateType)
	benefitTypes.PATCH("/:id", hr, h.Benefits.UpdateType)

	benefits := secured.Group("/benefit-requests")
	benefits.GET("", h.Benefits.List)
	benefits.POST("", h.Benefits.Submit)
	benefits.GET("/export", hr, audit(AuditActionBenefitExport, models.EntityBenefitRequest), h.Benefits.Export)
	benefits.GET("/:id", h.Benefits.Get)
	benefits.POST("/:id/hr-approve", hr, h.Benefits.HRApprove)
	benefits.POST("/:id/bod-approve", middleware.RequireRoles(models.RoleBoard), h.Benefits.BODApprove)
	benefits.POST("/:id/reject", middleware.RequireRoles(models.RoleHR, models.RoleBoard), h.Benefits.Reject)
	benefits.POST("/:id/cancel", h.Benefits.Cancel)
	benefits.POST("/:id/fulfill", hr, h.Benefits.Fulfill)

	pans := secured.Group("/pans")
	pans.GET("", h.PANs.List)
	pans.POST("", hr, h.PANs.Create)
	pans.GET("/:id", h.PANs.Get)
	pans.PUT("/:id", hr, h.PANs.Update)
	pans.POST("/:id/submit", hr, h.PANs.Submit)
	pans.POST("/:id/steps/:stepId/approve", h.PANs.ApproveStep)
	pans.POST("/:id/steps/:stepId/decline", h.PANs.DeclineStep)
	pans.POST("/:id/acknowledge", h.PANs.Acknowledge)
	pans.GET("/:id/certificate", audit(AuditActionDocumentGenerate, models.EntityPAN), h.PANs.Certificate)

	assets := secured.Group("/assets")
	assets.GET("", hr, h.Assets.List)
	assets.POST("", hr, h.Assets.Create)
	assets.GET("/:id", h.Assets.Get)
	assets.POST("/:id/assign", hr, h.Assets.Assign)
	assets.POST("/:id/return", hr, h.Assets.Return)
	assets.POST("/:id/repair", hr, h.Assets.Repair)
	assets.POST("/:id/repair/complete", hr, h.Assets.CompleteRepair)
	assets.POST("/:id/retire", hr, h.Assets.Retire)

	assignments := secured.Group("/asset-assignments")
	assignments.GET("/me", h.Assets.MyAssignments)
	assignments.POST("/:id/acknowledge", h.Assets.AcknowledgeAssignment)

	assetRequests := secured.Group("/asset-requests")
	assetRequests.GET("", h.Assets.ListRequests)
	assetRequests.POST("", h.Assets.SubmitRequest)
	assetRequests.GET("/:id", h.Assets.GetRequest)
	assetRequests.POST("/:id/approve", hr, h.Assets.ApproveRequest)
	assetRequests.POST("/:id/reject", hr, h.Assets.RejectRequest)

	tickets := secured.Group("/tickets")
	tickets.GET("", h.Helpdesk.List)
	tickets.POST("", h.Helpdesk.Create)
	tickets.GET("/:id", h.Helpdesk.Get)
	tickets.POST("/:id/assign", hr, h.Helpdesk.Assign)
	tickets.POST("/:id/resolve", hr, h.Helpdesk.Resolve)
	tickets.POST("/:id/close", h.Helpdesk.Close)
	tickets.POST("/:id/reopen", h.Helpdesk.Reopen)

	notifications := secured.Group("/notifications")
	notifications.GET("", h.Notifications.List)
	notifications.GET("/unread-count", h.Notifications.UnreadCount)
	notifications.POST("/read-all", h.Notifications.MarkAllRead)
	notifications.POST("/:id/read", h.Notifications.MarkRead)

	secured.GET("/audit-logs", hr, h.Audit.List)

	announcements := secured.Group("/announcements")
	announcements.GET("", h.Announcements.List)
	announcements.GET("/:id", h.Announcements.Get)
	announcements.POST("", hr, h.Announcements.Create)
	announcements.PUT("/:id", hr, h.Announcements.Update)
	announcements.DELETE("/:id", hr, h.Announcements.Delete)

	secured.POST("/attachments", h.Attachments.Upload)
	secured.GET("/attachments/:id/url", h.Attachments.SignedURL)

	secured.POST("/email/send", hr, audit(AuditActionEmailRelay, "email"), h.Email.Send)

	ops := secured.Group("", middleware.RequireRoles(models.RoleHR))
	ops.GET("/system/metrics", h.Metrics.Snapshot)
	ops.GET("/outbox/stats", h.Outbox.Stats)
	ops.GET("/outbox/failed", h.Outbox.Failed)
	ops.POST("/outbox/:id/retry", audit(AuditActionOutboxRetry, "outbox_event"), h.Outbox.Retry)

	return r
}
