package service

import (
	"bytes"
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type stubTemplates map[models.DocumentKind]*models.DocumentTemplate

func (s stubTemplates) GetByKind(ctx context.Context, kind models.DocumentKind) (*models.DocumentTemplate, error) {
	if tpl, ok := s[kind]; ok {
		return tpl, nil
	}
	return nil, sql.ErrNoRows
}

type stubPANReader map[string]*models.PANDetail

func (s stubPANReader) Get(ctx context.Context, id string) (*models.PANDetail, error) {
	if d, ok := s[id]; ok {
		return d, nil
	}
	return nil, sql.ErrNoRows
}

func newDocumentFixture(templates stubTemplates) *DocumentService {
	userID := "u-emp"
	employees := &stubEmployees{byID: map[string]*models.Employee{
		"e-1": {
			ID: "e-1", UserID: &userID, EmployeeNo: "EMP-0001", FirstName: "Ana", LastName: "<Cruz>",
			Position: "Analyst", Department: "Finance", EmploymentStatus: models.EmploymentRegular,
			DateHired: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		},
	}}
	acknowledged := "Ana Cruz"
	pans := stubPANReader{
		"pan-1": {
			PAN: models.PAN{
				ID: "pan-1", EmployeeID: "e-1", EmployeeUserID: &userID, EmployeeName: "Ana Cruz",
				ActionType: models.PANActionSalaryAdjustment, EffectiveDate: time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
				CurrentDetails: types.JSONText(`{"salary": 40000}`), ProposedDetails: types.JSONText(`{"salary": 45000}`),
				Status: models.PANStatusCompleted, AcknowledgedName: &acknowledged,
			},
			Steps: []models.PANRoutingStep{
				{ID: "s-1", StepOrder: 1, Role: models.RoutingRoleApprover, UserID: "u-mgr", UserName: "Mia Santos", Status: models.StepStatusApproved},
				{ID: "s-2", StepOrder: 2, Role: models.RoutingRoleAcknowledger, UserID: "u-emp", UserName: "Ana Cruz", Status: models.StepStatusApproved},
			},
		},
		"pan-draft": {PAN: models.PAN{ID: "pan-draft", EmployeeUserID: &userID, Status: models.PANStatusDraft}},
	}
	svc := NewDocumentService(templates, employees, pans, nil, zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC) }
	return svc
}

func TestCOEDefaultTemplateEscapesHTML(t *testing.T) {
	svc := newDocumentFixture(stubTemplates{})

	doc, err := svc.COE(context.Background(), "e-1", "html", actorFor("u-hr", models.RoleHR))
	require.NoError(t, err)
	body := string(doc.Content)
	assert.Equal(t, "text/html; charset=utf-8", doc.ContentType)
	assert.Contains(t, body, "Ana &lt;Cruz&gt;")
	assert.NotContains(t, body, "<Cruz>")
	assert.Contains(t, body, "since June 1, 2021")
	assert.Contains(t, body, "issued on May 4, 2026")
}

func TestCOEStoredTemplateKeepsUnknownTokens(t *testing.T) {
	svc := newDocumentFixture(stubTemplates{
		models.DocumentCOE: {Kind: models.DocumentCOE, Title: "COE", Body: "{{employee_no}} works in {{department}}. {{signatory}}"},
	})
	doc, err := svc.COE(context.Background(), "e-1", "", actorFor("u-emp", models.RoleEmployee))
	require.NoError(t, err)
	assert.Contains(t, string(doc.Content), "EMP-0001 works in Finance. {{signatory}}")
}

func TestCOEVisibility(t *testing.T) {
	svc := newDocumentFixture(stubTemplates{})
	_, err := svc.COE(context.Background(), "e-1", "html", actorFor("u-other", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.COE(context.Background(), "missing", "html", actorFor("u-hr", models.RoleHR))
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.COE(context.Background(), "e-1", "docx", actorFor("u-hr", models.RoleHR))
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestCOEPDF(t *testing.T) {
	svc := newDocumentFixture(stubTemplates{})
	doc, err := svc.COE(context.Background(), "e-1", "pdf", actorFor("u-emp", models.RoleEmployee))
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", doc.ContentType)
	assert.True(t, bytes.HasPrefix(doc.Content, []byte("%PDF")))
	assert.Equal(t, "coe_ana_cruz.pdf", doc.Filename)
}

func TestPANCertificate(t *testing.T) {
	svc := newDocumentFixture(stubTemplates{})

	doc, err := svc.PANCertificate(context.Background(), "pan-1", "html", actorFor("u-mgr", models.RoleManager))
	require.NoError(t, err)
	body := string(doc.Content)
	assert.Contains(t, body, "SALARY ADJUSTMENT effective April 1, 2026")
	assert.Contains(t, body, "Current: salary: 40000")
	assert.Contains(t, body, "Proposed: salary: 45000")
	assert.Contains(t, body, "Approved by: Mia Santos (approver)")
	assert.NotContains(t, body, "Ana Cruz (acknowledger)")

	_, err = svc.PANCertificate(context.Background(), "pan-draft", "html", actorFor("u-hr", models.RoleHR))
	assert.True(t, appErrors.Is(err, appErrors.ErrPreconditionFailed))

	_, err = svc.PANCertificate(context.Background(), "pan-1", "html", actorFor("u-stranger", models.RoleEmployee))
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}
