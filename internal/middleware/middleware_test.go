package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/hris-api/internal/models"
	appErrors "github.com/noah-isme/hris-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

func withClaims(claims *models.JWTClaims) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}
}

func serve(router *gin.Engine, method, path string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestJWT(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(JWT(stubValidator{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleEmployee}}))
	router.GET("/me", func(c *gin.Context) {
		claims := c.MustGet(ContextUserKey).(*models.JWTClaims)
		c.String(http.StatusOK, claims.UserID)
	})

	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", map[string]string{"Authorization": "Basic abc"}).Code)
	assert.Equal(t, http.StatusUnauthorized, serve(router, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer bad"}).Code)

	rec := serve(router, http.MethodGet, "/me", map[string]string{"Authorization": "Bearer good"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u-1", rec.Body.String())
}

func TestRequireRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cases := []struct {
		name   string
		claims *models.JWTClaims
		want   int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"employee", &models.JWTClaims{UserID: "u-1", Role: models.RoleEmployee}, http.StatusForbidden},
		{"hr", &models.JWTClaims{UserID: "u-2", Role: models.RoleHR}, http.StatusNoContent},
		{"superadmin", &models.JWTClaims{UserID: "u-3", Role: models.RoleSuperAdmin}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			router := gin.New()
			router.Use(withClaims(tc.claims))
			router.GET("/hr", RequireRoles(models.RoleHR), func(c *gin.Context) { c.Status(http.StatusNoContent) })
			assert.Equal(t, tc.want, serve(router, http.MethodGet, "/hr", nil).Code)
		})
	}
}

func TestRBACSelf(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(withClaims(&models.JWTClaims{UserID: "u-1", Role: models.RoleEmployee}))
	router.GET("/users/:id", RBAC(string(models.RoleHR), "SELF"), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	assert.Equal(t, http.StatusNoContent, serve(router, http.MethodGet, "/users/u-1", nil).Code)
	assert.Equal(t, http.StatusForbidden, serve(router, http.MethodGet, "/users/u-2", nil).Code)
}

type recordingAuditWriter struct {
	logs []models.AuditLog
	err  error
}

func (r *recordingAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.logs = append(r.logs, *log)
	return r.err
}

func TestAuditRecordsSuccessfulRequests(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &recordingAuditWriter{}
	router := gin.New()
	router.Use(withClaims(&models.JWTClaims{UserID: "u-hr", Role: models.RoleHR}))
	router.GET("/employees/:id/coe", Audit(writer, nil, "DOCUMENT_GENERATE", "employee"), func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/fail/:id", Audit(writer, nil, "DOCUMENT_GENERATE", "employee"), func(c *gin.Context) { c.Status(http.StatusForbidden) })

	serve(router, http.MethodGet, "/employees/e-1/coe", nil)
	serve(router, http.MethodGet, "/fail/e-1", nil)

	require.Len(t, writer.logs, 1)
	entry := writer.logs[0]
	assert.Equal(t, "DOCUMENT_GENERATE", entry.Action)
	assert.Equal(t, "employee", entry.Resource)
	require.NotNil(t, entry.ResourceID)
	assert.Equal(t, "e-1", *entry.ResourceID)
	require.NotNil(t, entry.UserID)
	assert.Equal(t, "u-hr", *entry.UserID)
	assert.Contains(t, string(entry.NewValues), "/employees/:id/coe")
}

func TestAuditFailureDoesNotAffectResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)
	writer := &recordingAuditWriter{err: errors.New("db down")}
	router := gin.New()
	router.POST("/email/send", Audit(writer, nil, "EMAIL_RELAY", "email"), func(c *gin.Context) { c.Status(http.StatusAccepted) })

	assert.Equal(t, http.StatusAccepted, serve(router, http.MethodPost, "/email/send", nil).Code)
	assert.Len(t, writer.logs, 1)
}

type recordingObserver struct {
	paths []string
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.paths = append(r.paths, method+" "+path)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	observer := &recordingObserver{}
	router := gin.New()
	router.Use(Metrics(observer))
	router.GET("/pans/:id", func(c *gin.Context) { c.Status(http.StatusOK) })

	serve(router, http.MethodGet, "/pans/p-1", nil)
	serve(router, http.MethodGet, "/nope/123", nil)

	assert.Equal(t, []string{"GET /pans/:id", "GET unmatched"}, observer.paths)
}

func TestResponseMetaCacheHit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta())
	var meta map[string]interface{}
	router.GET("/count", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	serve(router, http.MethodGet, "/count", nil)
	assert.Equal(t, true, meta["cache_hit"])
}
