package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-api/internal/dto"
	"github.com/noah-isme/hris-api/internal/middleware"
	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type fakeBenefitSrv struct {
	benefitService
	lastQuery  dto.BenefitRequestQuery
	lastHRBody dto.HRApproveBenefitRequest
	submitted  *dto.SubmitBenefitRequest
	err        error
}

func (f *fakeBenefitSrv) Submit(ctx context.Context, req dto.SubmitBenefitRequest, actor *models.JWTClaims) (*models.BenefitRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.submitted = &req
	return &models.BenefitRequest{ID: "br-1", Status: models.BenefitStatusPendingHR, Amount: req.Amount}, nil
}

func (f *fakeBenefitSrv) List(ctx context.Context, query dto.BenefitRequestQuery, actor *models.JWTClaims) ([]models.BenefitRequest, *models.Pagination, error) {
	f.lastQuery = query
	return []models.BenefitRequest{}, &models.Pagination{Page: query.Page, PageSize: query.PageSize}, nil
}

func (f *fakeBenefitSrv) HRApprove(ctx context.Context, id string, body dto.HRApproveBenefitRequest, actor *models.JWTClaims) (*models.BenefitRequest, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.lastHRBody = body
	return &models.BenefitRequest{ID: id, Status: models.BenefitStatusPendingBOD}, nil
}

type fakeExporter struct{}

func (fakeExporter) BenefitRequests(ctx context.Context, query dto.BenefitRequestQuery, format string, actor *models.JWTClaims) (*models.RenderedDocument, error) {
	return &models.RenderedDocument{Filename: "benefit_requests.csv", ContentType: "text/csv; charset=utf-8", Content: []byte("a,b\n")}, nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestBenefitHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeBenefitSrv{}
	h := NewBenefitHandler(svc, fakeExporter{})

	payload, _ := json.Marshal(dto.SubmitBenefitRequest{BenefitTypeID: "bt-1", Amount: 50000})
	c, w := newGinContext(http.MethodPost, "/benefit-requests", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleEmployee})

	h.Submit(c)

	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, svc.submitted)
	assert.EqualValues(t, 50000, svc.submitted.Amount)
}

func TestBenefitHandlerRequiresClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBenefitHandler(&fakeBenefitSrv{}, fakeExporter{})

	c, w := newGinContext(http.MethodPost, "/benefit-requests", []byte(`{}`))
	h.Submit(c)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestBenefitHandlerMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBenefitHandler(&fakeBenefitSrv{}, fakeExporter{})

	c, w := newGinContext(http.MethodPost, "/benefit-requests", []byte(`{"amount":`))
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: models.RoleEmployee})
	h.Submit(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestBenefitHandlerListParsesFilters(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeBenefitSrv{}
	h := NewBenefitHandler(svc, fakeExporter{})

	c, w := newGinContext(http.MethodGet, "/benefit-requests?scope=all&status=pending_hr,PENDING_BOD&page=2&page_size=5", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-hr", Role: models.RoleHR})
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "all", svc.lastQuery.Scope)
	assert.Equal(t, []models.BenefitStatus{models.BenefitStatusPendingHR, models.BenefitStatusPendingBOD}, svc.lastQuery.Status)
	assert.Equal(t, 2, svc.lastQuery.Page)
	assert.Equal(t, 5, svc.lastQuery.PageSize)
}

func TestBenefitHandlerHRApproveOptionalBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeBenefitSrv{}
	h := NewBenefitHandler(svc, fakeExporter{})

	c, w := newGinContext(http.MethodPost, "/benefit-requests/br-1/hr-approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "br-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-hr", Role: models.RoleHR})
	h.HRApprove(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newGinContext(http.MethodPost, "/benefit-requests/br-1/hr-approve", []byte(`{"board_member_ids":["u-b1"]}`))
	c.Params = gin.Params{{Key: "id", Value: "br-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-hr", Role: models.RoleHR})
	h.HRApprove(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"u-b1"}, svc.lastHRBody.BoardMemberIDs)
}

func TestBenefitHandlerTransitionConflict(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := &fakeBenefitSrv{err: appErrors.Clone(appErrors.ErrAlreadyProcessed, "benefit request already processed")}
	h := NewBenefitHandler(svc, fakeExporter{})

	c, w := newGinContext(http.MethodPost, "/benefit-requests/br-1/hr-approve", nil)
	c.Params = gin.Params{{Key: "id", Value: "br-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-hr", Role: models.RoleHR})
	h.HRApprove(c)

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "ALREADY_PROCESSED")
}

func TestBenefitHandlerExport(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewBenefitHandler(&fakeBenefitSrv{}, fakeExporter{})

	c, w := newGinContext(http.MethodGet, "/benefit-requests/export?format=csv", nil)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "u-hr", Role: models.RoleHR})
	h.Export(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="benefit_requests.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())
}
