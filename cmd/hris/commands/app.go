package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/repository"
	"github.com/noah-isme/hris-api/internal/service"
	"github.com/noah-isme/hris-api/pkg/cache"
	"github.com/noah-isme/hris-api/pkg/config"
	"github.com/noah-isme/hris-api/pkg/database"
	"github.com/noah-isme/hris-api/pkg/export"
	"github.com/noah-isme/hris-api/pkg/jobs"
	"github.com/noah-isme/hris-api/pkg/mailer"
	"github.com/noah-isme/hris-api/pkg/storage"
)

// app holds every long-lived component shared by serve and dispatch.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	db     *sqlx.DB
	redis  *redis.Client

	metrics    *service.MetricsService
	cache      *service.CacheService
	emailQueue *jobs.Queue

	users         *repository.UserRepository
	employees     *repository.EmployeeRepository
	outbox        *repository.OutboxRepository
	audit         *repository.AuditRepository
	attachments   *repository.AttachmentRepository
	benefitRepo   *repository.BenefitRepository
	panRepo       *repository.PANRepository
	assetRepo     *repository.AssetRepository
	helpdeskRepo  *repository.HelpdeskRepository
	templates     *repository.DocumentTemplateRepository
	announcements *repository.AnnouncementRepository
	notifications *repository.NotificationRepository

	auth            *service.AuthService
	userSvc         *service.UserService
	employeeSvc     *service.EmployeeService
	benefitSvc      *service.BenefitService
	panSvc          *service.PANService
	assetSvc        *service.AssetService
	helpdeskSvc     *service.HelpdeskService
	notificationSvc *service.NotificationService
	auditSvc        *service.AuditService
	announcementSvc *service.AnnouncementService
	attachmentSvc   *service.AttachmentService
	documentSvc     *service.DocumentService
	exportSvc       *service.ExportService
	emailSvc        *service.EmailService
	outboxSvc       *service.OutboxService
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	a := &app{cfg: cfg, logger: logger, db: db, metrics: service.NewMetricsService()}

	var cacheRepo service.CacheRepository
	if client, err := cache.NewRedis(ctx, cfg.Redis); err != nil {
		logger.Warn("redis unavailable, caching disabled", zap.Error(err))
	} else {
		a.redis = client
		cacheRepo = repository.NewCacheRepository(client, logger)
	}
	a.cache = service.NewCacheService(cacheRepo, a.metrics, cfg.Workflow.BenefitTypeCacheTTL, logger, cacheRepo != nil)

	a.users = repository.NewUserRepository(db)
	a.employees = repository.NewEmployeeRepository(db)
	a.outbox = repository.NewOutboxRepository(db)
	a.audit = repository.NewAuditRepository(db)
	a.attachments = repository.NewAttachmentRepository(db)
	a.benefitRepo = repository.NewBenefitRepository(db)
	a.panRepo = repository.NewPANRepository(db)
	a.assetRepo = repository.NewAssetRepository(db)
	a.helpdeskRepo = repository.NewHelpdeskRepository(db)
	a.templates = repository.NewDocumentTemplateRepository(db)
	a.announcements = repository.NewAnnouncementRepository(db)
	a.notifications = repository.NewNotificationRepository(db)

	validate := validator.New()
	pdf := export.NewPDFExporter()

	a.auth = service.NewAuthService(a.users, a.employees, validate, logger, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "hris-api",
		Audience:           []string{"hris"},
	})
	a.userSvc = service.NewUserService(a.users, a.employees, validate, logger)
	a.employeeSvc = service.NewEmployeeService(a.employees, a.users, validate, logger)

	a.benefitSvc = service.NewBenefitService(a.benefitRepo, a.employees, a.users, validate, logger,
		service.WithBenefitTypeCache(a.cache, cfg.Workflow.BenefitTypeCacheTTL),
		service.WithBenefitMetrics(a.metrics),
	)
	a.panSvc = service.NewPANService(a.panRepo, a.employees, a.users, a.attachments, validate, logger,
		service.WithSequentialRouting(cfg.Workflow.PANSequentialRouting),
		service.WithPANMetrics(a.metrics),
	)
	a.assetSvc = service.NewAssetService(a.assetRepo, a.employees, a.users, validate, logger,
		service.WithAssetMetrics(a.metrics),
		service.WithAssetAttachments(a.attachments),
	)
	a.helpdeskSvc = service.NewHelpdeskService(a.helpdeskRepo, a.employees, a.users, validate, logger,
		service.WithHelpdeskMetrics(a.metrics),
	)

	a.notificationSvc = service.NewNotificationService(a.notifications, a.cache, cfg.Workflow.UnreadCountCacheTTL, logger)
	a.auditSvc = service.NewAuditService(a.audit)
	a.announcementSvc = service.NewAnnouncementService(a.announcements, a.employees, validate, logger)
	a.outboxSvc = service.NewOutboxService(a.outbox)

	files, err := storage.NewLocalStorage(cfg.Storage.Dir)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("init storage: %w", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Storage.SignedURLSecret, cfg.Storage.SignedURLTTL)
	a.attachmentSvc = service.NewAttachmentService(a.attachments, files, signer, cfg.Storage, cfg.APIPrefix+"/files", logger)

	a.documentSvc = service.NewDocumentService(a.templates, a.employees, a.panRepo, pdf, logger)
	a.exportSvc = service.NewExportService(a.benefitRepo, logger, export.NewCSVExporter(), pdf)

	a.emailSvc = service.NewEmailService(mailer.NewSMTPMailer(cfg.Mail), cfg.Mail.RelayEnabled, validate, logger)
	deliver := func(ctx context.Context, job jobs.Job) error {
		if err := a.emailSvc.HandleJob(ctx, job); err != nil {
			return err
		}
		a.metrics.ObserveEmailJob(service.EmailResultSent)
		return nil
	}
	a.emailQueue = jobs.NewQueue("email", deliver, jobs.QueueConfig{
		Workers:    2,
		BufferSize: 256,
		MaxRetries: 3,
		RetryDelay: 5 * time.Second,
		Logger:     logger,
		DeadLetter: func(job jobs.Job, err error) {
			a.metrics.ObserveEmailJob(service.EmailResultDropped)
			logger.Error("email job dropped", zap.String("job_id", job.ID), zap.Error(err))
		},
	})

	return a, nil
}

func (a *app) dispatcher() *service.OutboxDispatcher {
	opts := []service.DispatcherOption{
		service.WithDispatcherMetrics(a.metrics),
		service.WithUnreadInvalidation(a.notificationSvc),
	}
	if a.cfg.Mail.NotificationsEnabled {
		opts = append(opts, service.WithEmailFanout(a.users, a.emailQueue))
	}
	return service.NewOutboxDispatcher(a.outbox, a.cfg.Outbox, a.logger, opts...)
}

func (a *app) close() {
	if a.emailQueue != nil {
		a.emailQueue.Stop()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
	if a.db != nil {
		_ = a.db.Close()
	}
}
