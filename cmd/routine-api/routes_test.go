package main

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/campus-routine-api/internal/handler"
	"github.com/noah-isme/campus-routine-api/internal/models"
	"github.com/noah-isme/campus-routine-api/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.TokenService) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens := service.NewTokenService(service.TokenConfig{Secret: "secret", Issuer: "campus", Expiry: time.Hour})
	r := gin.New()
	registerRoutes(r, routeDeps{
		APIPrefix: "/api/v1",
		Tokens:    tokens,
		Routines:  handler.NewRoutineHandler(nil),
		Imports:   handler.NewImportHandler(nil, service.TemplateCSV, 0),
		Reports:   handler.NewReportHandler(nil, nil),
		Metrics:   handler.NewMetricsHandler(service.NewMetricsService(), nil),
	})
	return r, tokens
}

func bearer(t *testing.T, tokens *service.TokenService, role models.UserRole) string {
	t.Helper()
	token, _, err := tokens.IssueToken("u-1", "Dr. Khan", "", role)
	require.NoError(t, err)
	return "Bearer " + token
}

func TestRoutesHealthIsPublic(t *testing.T) {
	r, _ := newTestRouter(t)
	for _, path := range []string{"/health", "/ready"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}
}

func TestRoutesRequireToken(t *testing.T) {
	r, _ := newTestRouter(t)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/routines", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRoutesEnforceRoles(t *testing.T) {
	r, tokens := newTestRouter(t)
	cases := []struct {
		method string
		path   string
		role   models.UserRole
	}{
		{http.MethodPost, "/api/v1/routines", models.RoleTeacher},
		{http.MethodPost, "/api/v1/routines/import", models.RoleStudent},
		{http.MethodDelete, "/api/v1/routines/e1", models.RoleModerator},
		{http.MethodGet, "/api/v1/routines/reports/rooms", models.RoleStudent},
		{http.MethodGet, "/api/v1/metrics/summary", models.RoleModerator},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(tc.method, tc.path, nil)
		req.Header.Set("Authorization", bearer(t, tokens, tc.role))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusForbidden, w.Code, "%s %s as %s", tc.method, tc.path, tc.role)
	}
}

func TestRoutesTemplateDownload(t *testing.T) {
	r, tokens := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/routines/import/template", nil)
	req.Header.Set("Authorization", bearer(t, tokens, models.RoleModerator))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), "routine_import_template.csv")
	assert.Contains(t, w.Body.String(), "CourseCode,Section,Day")
}

func TestRoutesMetricsSummaryForAdmin(t *testing.T) {
	r, tokens := newTestRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/api/v1/metrics/summary", nil)
	req.Header.Set("Authorization", bearer(t, tokens, models.RoleAdmin))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
