package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
	"github.com/noah-isme/hris-api/pkg/jobs"
	"github.com/noah-isme/hris-api/pkg/mailer"
)

// JobTypeNotificationEmail is the job type carrying a NotificationEmail.
const JobTypeNotificationEmail = "notification_email"

// NotificationEmail is the payload of a notification email job.
type NotificationEmail struct {
	To      string
	Name    string
	Title   string
	Message string
}

// EmailService relays ad-hoc messages and delivers notification emails.
type EmailService struct {
	sender    mailer.Sender
	enabled   bool
	validator *validator.Validate
	logger    *zap.Logger
}

// NewEmailService constructs the service. When relayEnabled is false the
// relay endpoint refuses every request; notification jobs still deliver.
func NewEmailService(sender mailer.Sender, relayEnabled bool, validate *validator.Validate, logger *zap.Logger) *EmailService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EmailService{sender: sender, enabled: relayEnabled, validator: validate, logger: logger}
}

// Enabled reports whether the relay accepts requests.
func (s *EmailService) Enabled() bool {
	return s.enabled
}

// Send relays a message with optional base64 attachments.
func (s *EmailService) Send(ctx context.Context, req dto.SendEmailRequest, actor *models.JWTClaims) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if !s.enabled {
		return appErrors.Clone(appErrors.ErrServiceUnavailable, "email relay is disabled")
	}
	if err := s.validator.Struct(req); err != nil {
		return validationFailure(err)
	}
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.HTML) == "" {
		return appErrors.Clone(appErrors.ErrValidation, "message or html body is required")
	}

	msg := mailer.Message{To: req.To, Subject: req.Subject, Text: req.Message, HTML: req.HTML}
	for _, att := range req.Attachments {
		content, err := base64.StdEncoding.DecodeString(att.Content)
		if err != nil {
			return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("attachment %s is not valid base64", att.Filename))
		}
		contentType := att.ContentType
		if contentType == "" {
			contentType = mime.TypeByExtension(filepath.Ext(att.Filename))
		}
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		msg.Attachments = append(msg.Attachments, mailer.Attachment{
			Filename:    filepath.Base(att.Filename),
			ContentType: contentType,
			Content:     content,
		})
	}

	if err := s.sender.Send(ctx, msg); err != nil {
		if errors.Is(err, mailer.ErrNoRecipients) {
			return appErrors.Clone(appErrors.ErrValidation, err.Error())
		}
		s.logger.Warn("email relay failed", zap.Strings("to", req.To), zap.Error(err))
		return appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "failed to send email")
	}
	s.logger.Info("email relayed", zap.String("user_id", actor.UserID), zap.Int("recipients", len(req.To)), zap.Int("attachments", len(msg.Attachments)))
	return nil
}

// HandleJob delivers a queued notification email.
func (s *EmailService) HandleJob(ctx context.Context, job jobs.Job) error {
	note, ok := job.Payload.(NotificationEmail)
	if !ok {
		s.logger.Error("unexpected email job payload", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
	greeting := "Hello"
	if note.Name != "" {
		greeting += " " + note.Name
	}
	return s.sender.Send(ctx, mailer.Message{
		To:      []string{note.To},
		Subject: note.Title,
		Text:    fmt.Sprintf("%s,\n\n%s\n", greeting, note.Message),
	})
}
