package service

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
	"github.com/noah-isme/hris-api/pkg/jobs"
	"github.com/noah-isme/hris-api/pkg/mailer"
)

type recordingSender struct {
	sent []mailer.Message
	err  error
}

func (r *recordingSender) Send(ctx context.Context, msg mailer.Message) error {
	if r.err != nil {
		return r.err
	}
	r.sent = append(r.sent, msg)
	return nil
}

func TestEmailSendDecodesAttachments(t *testing.T) {
	sender := &recordingSender{}
	svc := NewEmailService(sender, true, nil, zap.NewNop())

	err := svc.Send(context.Background(), dto.SendEmailRequest{
		To:      []string{"ana@example.com"},
		Subject: "Offer letter",
		Message: "Please find the offer attached.",
		Attachments: []dto.EmailAttachment{
			{Filename: "offer.pdf", Content: base64.StdEncoding.EncodeToString([]byte("%PDF-1.4"))},
		},
	}, actorFor("u-hr", models.RoleHR))
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	require.Len(t, msg.Attachments, 1)
	assert.Equal(t, []byte("%PDF-1.4"), msg.Attachments[0].Content)
	assert.Equal(t, "application/pdf", msg.Attachments[0].ContentType)
}

func TestEmailSendGuards(t *testing.T) {
	sender := &recordingSender{}
	actor := actorFor("u-hr", models.RoleHR)
	req := dto.SendEmailRequest{To: []string{"ana@example.com"}, Subject: "Hi", Message: "Body"}

	err := NewEmailService(sender, false, nil, zap.NewNop()).Send(context.Background(), req, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrServiceUnavailable))

	svc := NewEmailService(sender, true, nil, zap.NewNop())
	err = svc.Send(context.Background(), dto.SendEmailRequest{To: []string{"not-an-email"}, Subject: "Hi", Message: "Body"}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	err = svc.Send(context.Background(), dto.SendEmailRequest{To: []string{"ana@example.com"}, Subject: "Hi"}, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	sender.err = errors.New("connection refused")
	err = svc.Send(context.Background(), req, actor)
	assert.True(t, appErrors.Is(err, appErrors.ErrServiceUnavailable))
	assert.Empty(t, sender.sent)
}

func TestEmailHandleJob(t *testing.T) {
	sender := &recordingSender{}
	svc := NewEmailService(sender, false, nil, zap.NewNop())

	err := svc.HandleJob(context.Background(), jobs.Job{ID: "j-1", Type: JobTypeNotificationEmail, Payload: NotificationEmail{
		To: "ana@example.com", Name: "Ana", Title: "Benefit approved", Message: "Your request was approved.",
	}})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "Benefit approved", sender.sent[0].Subject)
	assert.Contains(t, sender.sent[0].Text, "Hello Ana")
}
