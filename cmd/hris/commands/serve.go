package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/handler"
	"github.com/noah-isme/hris-api/pkg/config"
	"github.com/noah-isme/hris-api/pkg/telemetry"
)

func NewServeCmd() *cobra.Command {
	var withDispatcher bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(withDispatcher)
		},
	}

	cmd.Flags().BoolVar(&withDispatcher, "dispatcher", true, "Run the outbox dispatcher in-process when OUTBOX_ENABLED is set")
	return cmd
}

func runServe(withDispatcher bool) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing := telemetry.Setup(ctx, cfg.Telemetry, logr)
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Warn("tracer shutdown", zap.Error(err))
		}
	}()

	a, err := newApp(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer a.close()

	a.emailQueue.Start(ctx)

	if withDispatcher && cfg.Outbox.Enabled {
		go a.dispatcher().Run(ctx)
	}

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handler.NewRouter(cfg, handler.RouterDeps{
		Tokens:   a.auth,
		Audit:    a.users,
		Observer: a.metrics,
		Logger:   logr,
	}, handler.Handlers{
		Auth:          handler.NewAuthHandler(a.auth),
		Users:         handler.NewUserHandler(a.userSvc),
		Employees:     handler.NewEmployeeHandler(a.employeeSvc, a.documentSvc),
		Benefits:      handler.NewBenefitHandler(a.benefitSvc, a.exportSvc),
		PANs:          handler.NewPANHandler(a.panSvc, a.documentSvc),
		Assets:        handler.NewAssetHandler(a.assetSvc),
		Helpdesk:      handler.NewHelpdeskHandler(a.helpdeskSvc),
		Notifications: handler.NewNotificationHandler(a.notificationSvc),
		Audit:         handler.NewAuditHandler(a.auditSvc),
		Announcements: handler.NewAnnouncementHandler(a.announcementSvc),
		Attachments:   handler.NewAttachmentHandler(a.attachmentSvc),
		Email:         handler.NewEmailHandler(a.emailSvc),
		Outbox:        handler.NewOutboxHandler(a.outboxSvc),
		Metrics:       handler.NewMetricsHandler(a.metrics, a.db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           telemetry.WrapHandler(router, "hris-api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}
