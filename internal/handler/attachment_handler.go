package handler

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/hris-api/internal/models"
	"github.com/noah-isme/hris-api/internal/service"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
	"github.com/noah-isme/hris-api/pkg/response"
)

type attachmentService interface {
	Upload(ctx context.Context, in service.UploadInput, actor *models.JWTClaims) (*models.SignedAttachment, error)
	SignedURL(ctx context.Context, id string, actor *models.JWTClaims) (*models.SignedAttachment, error)
	Open(ctx context.Context, token string) (*models.Attachment, *os.File, error)
}

// AttachmentHandler exposes uploads and signed downloads.
type AttachmentHandler struct {
	service attachmentService
}

// NewAttachmentHandler constructs the handler.
func NewAttachmentHandler(svc attachmentService) *AttachmentHandler {
	return &AttachmentHandler{service: svc}
}

// Upload godoc
// @Summary Upload a file
// @Tags Attachments
// @Accept multipart/form-data
// @Produce json
// @Param bucket formData string true "resumes|signatures|attachments"
// @Param file formData file true "File"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attachments [post]
func (h *AttachmentHandler) Upload(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "file is required"))
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "unreadable upload"))
		return
	}
	defer file.Close()

	att, err := h.service.Upload(c.Request.Context(), service.UploadInput{
		Bucket:      c.PostForm("bucket"),
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}, claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, att)
}

// SignedURL godoc
// @Summary Re-sign a download link
// @Tags Attachments
// @Produce json
// @Param id path string true "Attachment ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /attachments/{id}/url [get]
func (h *AttachmentHandler) SignedURL(c *gin.Context) {
	claims := requireClaims(c)
	if claims == nil {
		return
	}
	att, err := h.service.SignedURL(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, att, nil)
}

// Download godoc
// @Summary Download via signed token
// @Tags Attachments
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Router /files/{token} [get]
func (h *AttachmentHandler) Download(c *gin.Context) {
	att, file, err := h.service.Open(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Cache-Control", "private, no-store")
	c.Header("Content-Type", att.MimeType)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.OriginalName))
	http.ServeContent(c.Writer, c.Request, att.OriginalName, att.UploadedAt, file)
}
