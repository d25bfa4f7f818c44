package router_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/config"
	"github.com/pandeptwidyaop/deploy-manager/internal/database"
	"github.com/pandeptwidyaop/deploy-manager/internal/metrics"
	"github.com/pandeptwidyaop/deploy-manager/internal/router"
	"github.com/pandeptwidyaop/deploy-manager/internal/services"
	"github.com/pandeptwidyaop/deploy-manager/internal/validation"
)

func newTestRouter(t *testing.T, mutate func(*config.Config)) *router.Router {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := database.New(":memory:")
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.Migrate(); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	cfg := config.Default()
	cfg.Auth.Token = "secret"
	if mutate != nil {
		mutate(cfg)
	}

	m := metrics.New()
	instances := services.NewInstanceService(db, validation.New())
	executor := services.NewExecutorService(db, cfg, m)
	r := router.New(cfg, router.Services{
		Instances: instances,
		Rest:      services.NewRestService(db, validation.New(), services.NewRepositoryService()),
		Deploy:    services.NewDeployService(instances, services.NewRepositoryService(), services.NewBackupService(), executor),
		Executor:  executor,
		Audit:     services.NewAuditService(db),
		Metrics:   m,
	})
	t.Cleanup(r.Close)
	return r
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_VersionIsPublic(t *testing.T) {
	r := newTestRouter(t, nil)

	w := serve(r, http.MethodGet, "/manage/api/version", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

func TestRouter_APIRequiresToken(t *testing.T) {
	r := newTestRouter(t, nil)

	if w := serve(r, http.MethodGet, "/manage/api/instances", ""); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 without token, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/manage/api/instances", "wrong"); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 with wrong token, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/manage/api/instances", "secret"); w.Code != http.StatusOK {
		t.Errorf("expected 200 with token, got %d", w.Code)
	}
}

func TestRouter_PathPrefix(t *testing.T) {
	r := newTestRouter(t, func(cfg *config.Config) { cfg.Server.PathPrefix = "/ops" })

	if w := serve(r, http.MethodGet, "/ops/api/version", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200 under custom prefix, got %d", w.Code)
	}
	if w := serve(r, http.MethodGet, "/manage/api/version", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 under default prefix, got %d", w.Code)
	}

	w := serve(r, http.MethodGet, "/", "")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/ops/api/version" {
		t.Errorf("expected redirect to prefix, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestRouter_Metrics(t *testing.T) {
	r := newTestRouter(t, nil)

	serve(r, http.MethodGet, "/manage/api/version", "")

	w := serve(r, http.MethodGet, "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `deploy_manager_http_requests_total{code="200",method="GET",route="/manage/api/version"}`) {
		t.Errorf("expected request counter in metrics output")
	}
}

func TestRouter_MetricsDisabled(t *testing.T) {
	disabled := false
	r := newTestRouter(t, func(cfg *config.Config) { cfg.Metrics.Enabled = &disabled })

	if w := serve(r, http.MethodGet, "/metrics", ""); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 with metrics disabled, got %d", w.Code)
	}
}

func TestRouter_SecurityHeaders(t *testing.T) {
	r := newTestRouter(t, nil)

	w := serve(r, http.MethodGet, "/manage/api/version", "")
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Errorf("expected nosniff header, got %q", w.Header().Get("X-Content-Type-Options"))
	}
}
