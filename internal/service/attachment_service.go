package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/pkg/config"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
	"github.com/noah-isme/hris-api/pkg/storage"
)

type attachmentStore interface {
	Create(ctx context.Context, a *models.Attachment) error
	Get(ctx context.Context, id string) (*models.Attachment, error)
}

type objectStore interface {
	Put(bucket, key string, r io.Reader) (string, int64, error)
	Open(rel string) (*os.File, error)
	Delete(rel string) error
}

type urlSigner interface {
	Sign(objectID, relPath string) (string, time.Time, error)
	Verify(token string) (objectID, relPath string, err error)
}

// UploadInput describes one multipart file.
type UploadInput struct {
	Bucket      string
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

var imageMIMEs = map[string]struct{}{"image/png": {}, "image/jpeg": {}}

// AttachmentService validates uploads, stores them and issues signed download links.
type AttachmentService struct {
	repo     attachmentStore
	store    objectStore
	signer   urlSigner
	maxBytes int64
	allowed  map[string]struct{}
	baseURL  string
	logger   *zap.Logger
	now      func() time.Time
}

// NewAttachmentService constructs the service. baseURL prefixes generated
// download links, e.g. "/api/v1/files".
func NewAttachmentService(repo attachmentStore, store objectStore, signer urlSigner, cfg config.StorageConfig, baseURL string, logger *zap.Logger) *AttachmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedMIMEs))
	for _, m := range cfg.AllowedMIMEs {
		allowed[strings.ToLower(m)] = struct{}{}
	}
	return &AttachmentService{
		repo:     repo,
		store:    store,
		signer:   signer,
		maxBytes: cfg.MaxFileSizeBytes,
		allowed:  allowed,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores a file in a user-facing bucket and returns it with a signed URL.
func (s *AttachmentService) Upload(ctx context.Context, in UploadInput, actor *models.JWTClaims) (*models.SignedAttachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	switch in.Bucket {
	case storage.BucketResumes, storage.BucketSignatures, storage.BucketAttachments:
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "bucket must be resumes, signatures or attachments")
	}
	if s.maxBytes > 0 && in.Size > s.maxBytes {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the upload size limit")
	}

	limit := s.maxBytes
	if limit <= 0 {
		limit = 10 << 20
	}
	content, err := io.ReadAll(io.LimitReader(in.Body, limit+1))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read upload")
	}
	if int64(len(content)) > limit {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file exceeds the upload size limit")
	}
	if len(content) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}

	mimeType, err := s.detectMIME(content, in.ContentType)
	if err != nil {
		return nil, err
	}
	if in.Bucket == storage.BucketSignatures {
		if _, ok := imageMIMEs[mimeType]; !ok {
			return nil, appErrors.Clone(appErrors.ErrValidation, "signatures must be PNG or JPEG images")
		}
	}

	id := uuid.NewString()
	rel, size, err := s.store.Put(in.Bucket, id+extensionFor(in.Filename, mimeType), bytes.NewReader(content))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	att := &models.Attachment{
		ID:           id,
		Bucket:       in.Bucket,
		FilePath:     rel,
		OriginalName: filepath.Base(in.Filename),
		MimeType:     mimeType,
		SizeBytes:    size,
		UploadedBy:   actor.UserID,
		UploadedAt:   s.now(),
	}
	if err := s.repo.Create(ctx, att); err != nil {
		if delErr := s.store.Delete(rel); delErr != nil {
			s.logger.Warn("remove orphaned upload", zap.String("path", rel), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save attachment")
	}
	s.logger.Info("attachment uploaded", zap.String("attachment_id", id), zap.String("bucket", in.Bucket), zap.Int64("size", size))
	return s.sign(att)
}

// detectMIME classifies the upload from its bytes alone. The client's
// Content-Type is only logged when it disagrees.
func (s *AttachmentService) detectMIME(content []byte, declared string) (string, error) {
	detected := mimetype.Detect(content)
	resolved, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		resolved = detected.String()
	}
	resolved = strings.ToLower(resolved)
	if declared, _, err := mime.ParseMediaType(declared); err == nil && !strings.EqualFold(declared, resolved) {
		s.logger.Debug("declared content type ignored", zap.String("declared", declared), zap.String("detected", resolved))
	}
	if len(s.allowed) > 0 {
		if _, ok := s.allowed[resolved]; !ok {
			return "", appErrors.Clone(appErrors.ErrValidation, "file type "+resolved+" is not allowed")
		}
	}
	return resolved, nil
}

func extensionFor(filename, mimeType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" && len(ext) <= 6 {
		return ext
	}
	if exts, err := mime.ExtensionsByType(mimeType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ""
}

// SignedURL re-signs a stored attachment for its uploader or HR.
func (s *AttachmentService) SignedURL(ctx context.Context, id string, actor *models.JWTClaims) (*models.SignedAttachment, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	att, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, loadFailure(err, "attachment")
	}
	if att.UploadedBy != actor.UserID && !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	return s.sign(att)
}

func (s *AttachmentService) sign(att *models.Attachment) (*models.SignedAttachment, error) {
	token, expiresAt, err := s.signer.Sign(att.ID, att.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &models.SignedAttachment{Attachment: *att, URL: s.baseURL + "/" + token, ExpiresAt: expiresAt}, nil
}

// Open resolves a signed token into the attachment and an open file handle.
// The caller closes the file.
func (s *AttachmentService) Open(ctx context.Context, token string) (*models.Attachment, *os.File, error) {
	objectID, rel, err := s.signer.Verify(token)
	switch {
	case errors.Is(err, storage.ErrTokenExpired):
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
	case err != nil:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	att, err := s.repo.Get(ctx, objectID)
	if err != nil {
		return nil, nil, loadFailure(err, "attachment")
	}
	if att.FilePath != rel {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "invalid download link")
	}
	file, err := s.store.Open(rel)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return att, file, nil
}
