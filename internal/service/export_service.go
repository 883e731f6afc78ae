package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
	"github.com/noah-isme/hris-api/pkg/export"
)

// Export formats.
const (
	FormatCSV  = "csv"
	FormatPDF  = "pdf"
	FormatHTML = "html"
)

type benefitExportSource interface {
	ListRequestsForExport(ctx context.Context, filter models.BenefitRequestFilter) ([]models.BenefitRequest, error)
}

type csvRenderer interface {
	Render(table export.Table) ([]byte, error)
}

type pdfRenderer interface {
	Render(table export.Table, title string) ([]byte, error)
}

// ExportService renders benefit request reports for HR.
type ExportService struct {
	benefits benefitExportSource
	csv      csvRenderer
	pdf      pdfRenderer
	logger   *zap.Logger
	now      func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(benefits benefitExportSource, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		benefits: benefits,
		csv:      csv,
		pdf:      pdf,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

var benefitColumns = []export.Column{
	{Key: "submitted", Label: "Submitted", Width: 1.2},
	{Key: "requester", Label: "Requester", Width: 1.6},
	{Key: "benefit", Label: "Benefit", Width: 1.6},
	{Key: "amount", Label: "Amount", Width: 1},
	{Key: "status", Label: "Status", Width: 1.1},
	{Key: "voucher", Label: "Voucher", Width: 1},
}

// BenefitRequests renders every request matching query as CSV or PDF.
func (s *ExportService) BenefitRequests(ctx context.Context, query dto.BenefitRequestQuery, format string, actor *models.JWTClaims) (*models.RenderedDocument, error) {
	if !hasRole(actor, models.RoleHR) {
		return nil, appErrors.ErrForbidden
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = FormatCSV
	}
	if format != FormatCSV && format != FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	filter := models.BenefitRequestFilter{Status: query.Status, BenefitTypeID: query.BenefitTypeID}
	rows, err := s.benefits.ListRequestsForExport(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load benefit requests")
	}

	table := export.Table{Columns: benefitColumns, Rows: make([]map[string]string, 0, len(rows))}
	for _, r := range rows {
		table.Rows = append(table.Rows, map[string]string{
			"submitted": r.SubmissionDate.Format("2006-01-02"),
			"requester": r.RequesterName,
			"benefit":   r.BenefitTypeName,
			"amount":    strconv.FormatInt(r.Amount, 10),
			"status":    string(r.Status),
			"voucher":   derefString(r.VoucherCode),
		})
	}

	var payload []byte
	contentType := "text/csv"
	switch format {
	case FormatCSV:
		payload, err = s.csv.Render(table)
	case FormatPDF:
		contentType = "application/pdf"
		payload, err = s.pdf.Render(table, "Benefit Requests")
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	s.logger.Info("benefit export rendered", zap.String("format", format), zap.Int("rows", len(rows)), zap.String("user_id", actor.UserID))
	return &models.RenderedDocument{
		Filename:    fmt.Sprintf("benefit_requests_%s.%s", s.now().Format("20060102_150405"), format),
		ContentType: contentType,
		Content:     payload,
	}, nil
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '-', r == '.':
			return r
		}
		return -1
	}, replacer.Replace(raw))
	if result == "" {
		return "na"
	}
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
