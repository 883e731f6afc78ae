package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
	"github.com/noah-isme/hris-api/pkg/export"
)

type templateStore interface {
	GetByKind(ctx context.Context, kind models.DocumentKind) (*models.DocumentTemplate, error)
}

type panReader interface {
	Get(ctx context.Context, id string) (*models.PANDetail, error)
}

type documentRenderer interface {
	RenderDocument(doc export.Document) ([]byte, error)
}

// Built-in templates used until HR stores its own.
var defaultTemplates = map[models.DocumentKind]models.DocumentTemplate{
	models.DocumentCOE: {
		Kind:  models.DocumentCOE,
		Title: "Certificate of Employment",
		Body: "This is to certify that {{employee_name}} (employee no. {{employee_no}}) has been employed " +
			"as {{position}} in the {{department}} department since {{date_hired}}.\n\n" +
			"Current employment status: {{employment_status}}.\n\n" +
			"This certificate is issued on {{date_issued}} upon the request of the employee for whatever legal purpose it may serve.",
	},
	models.DocumentPAN: {
		Kind:  models.DocumentPAN,
		Title: "Personnel Action Notice",
		Body: "Employee: {{employee_name}}\n\nAction: {{action_type}} effective {{effective_date}}.\n\n" +
			"Current: {{current_details}}\n\nProposed: {{proposed_details}}\n\nRemarks: {{remarks}}\n\n" +
			"Approved by: {{approvers}}\n\nAcknowledged by: {{acknowledged_name}}",
	},
}

// DocumentService fills printable templates for employees and PANs.
type DocumentService struct {
	templates templateStore
	employees employeeLookup
	pans      panReader
	pdf       documentRenderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewDocumentService constructs the service. A nil renderer uses the gofpdf exporter.
func NewDocumentService(templates templateStore, employees employeeLookup, pans panReader, pdf documentRenderer, logger *zap.Logger) *DocumentService {
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DocumentService{
		templates: templates,
		employees: employees,
		pans:      pans,
		pdf:       pdf,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// COE renders a certificate of employment. HR may print any, employees only their own.
func (s *DocumentService) COE(ctx context.Context, employeeID, format string, actor *models.JWTClaims) (*models.RenderedDocument, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	format, err := documentFormat(format)
	if err != nil {
		return nil, err
	}
	emp, err := s.employees.FindByID(ctx, employeeID)
	if err != nil {
		return nil, loadFailure(err, "employee")
	}
	if !hasRole(actor, models.RoleHR) && derefString(emp.UserID) != actor.UserID {
		return nil, appErrors.ErrForbidden
	}
	values := map[string]string{
		"employee_name":     emp.FullName(),
		"employee_no":       emp.EmployeeNo,
		"position":          emp.Position,
		"department":        emp.Department,
		"date_hired":        emp.DateHired.Format("January 2, 2006"),
		"employment_status": string(emp.EmploymentStatus),
		"date_issued":       s.now().Format("January 2, 2006"),
	}
	return s.render(ctx, models.DocumentCOE, values, format, "coe_"+emp.FullName())
}

// PANCertificate renders a PAN once routing has finished.
func (s *DocumentService) PANCertificate(ctx context.Context, panID, format string, actor *models.JWTClaims) (*models.RenderedDocument, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	format, err := documentFormat(format)
	if err != nil {
		return nil, err
	}
	detail, err := s.pans.Get(ctx, panID)
	if err != nil {
		return nil, loadFailure(err, "PAN")
	}
	if !canViewPAN(detail, actor) {
		return nil, appErrors.ErrForbidden
	}
	if detail.Status != models.PANStatusPendingEmployee && detail.Status != models.PANStatusCompleted {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "PAN certificate is available once routing is complete")
	}

	var approvers []string
	for _, step := range detail.Steps {
		if step.Role != models.RoutingRoleAcknowledger && step.Status == models.StepStatusApproved {
			approvers = append(approvers, fmt.Sprintf("%s (%s)", step.UserName, strings.ToLower(string(step.Role))))
		}
	}
	values := map[string]string{
		"employee_name":     detail.EmployeeName,
		"action_type":       strings.ReplaceAll(string(detail.ActionType), "_", " "),
		"effective_date":    detail.EffectiveDate.Format("January 2, 2006"),
		"current_details":   flattenDetails(detail.CurrentDetails),
		"proposed_details":  flattenDetails(detail.ProposedDetails),
		"remarks":           detail.Remarks,
		"approvers":         strings.Join(approvers, ", "),
		"acknowledged_name": derefString(detail.AcknowledgedName),
	}
	return s.render(ctx, models.DocumentPAN, values, format, "pan_"+detail.EmployeeName)
}

func (s *DocumentService) render(ctx context.Context, kind models.DocumentKind, values map[string]string, format, name string) (*models.RenderedDocument, error) {
	tpl, err := s.templates.GetByKind(ctx, kind)
	if errors.Is(err, sql.ErrNoRows) {
		def := defaultTemplates[kind]
		tpl, err = &def, nil
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load document template")
	}

	paragraphs := splitParagraphs(tpl.Body)
	filename := sanitizeFilename(strings.ToLower(name)) + "." + format
	if format == FormatHTML {
		var b strings.Builder
		title := html.EscapeString(tpl.Title)
		fmt.Fprintf(&b, "<!DOCTYPE html>\n<html><head><meta charset=\"utf-8\"><title>%s</title></head><body>\n<h1>%s</h1>\n", title, title)
		for _, p := range paragraphs {
			fmt.Fprintf(&b, "<p>%s</p>\n", export.Fill(html.EscapeString(p), values, true))
		}
		b.WriteString("</body></html>\n")
		return &models.RenderedDocument{Filename: filename, ContentType: "text/html; charset=utf-8", Content: []byte(b.String())}, nil
	}

	doc := export.Document{Title: tpl.Title, Footer: "Generated " + s.now().Format(time.RFC1123)}
	for _, p := range paragraphs {
		doc.Paragraphs = append(doc.Paragraphs, export.Fill(p, values, false))
	}
	payload, err := s.pdf.RenderDocument(doc)
	if err != nil {
		s.logger.Error("render document", zap.String("kind", string(kind)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render document")
	}
	return &models.RenderedDocument{Filename: filename, ContentType: "application/pdf", Content: payload}, nil
}

func documentFormat(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", FormatHTML:
		return FormatHTML, nil
	case FormatPDF:
		return FormatPDF, nil
	}
	return "", appErrors.Clone(appErrors.ErrValidation, "format must be html or pdf")
}

func splitParagraphs(body string) []string {
	raw := strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// flattenDetails renders a JSON object as "key: value; key: value" in key order.
func flattenDetails(raw []byte) string {
	var fields map[string]interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil || len(fields) == 0 {
		return "-"
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %v", strings.ReplaceAll(k, "_", " "), fields[k]))
	}
	return strings.Join(parts, "; ")
}
