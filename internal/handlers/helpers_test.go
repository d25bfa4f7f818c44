package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/pandeptwidyaop/deploy-manager/internal/config"
	"github.com/pandeptwidyaop/deploy-manager/internal/database"
	"github.com/pandeptwidyaop/deploy-manager/internal/handlers"
	"github.com/pandeptwidyaop/deploy-manager/internal/services"
	"github.com/pandeptwidyaop/deploy-manager/internal/validation"
)

type testServer struct {
	engine    *gin.Engine
	instances *services.InstanceService
	rest      *services.RestService
	executor  *services.ExecutorService
	audit     *services.AuditService
}

// newTestServer mounts every handler on a bare engine. Jobs run through echo,
// so a build succeeds and its output is the command line.
func newTestServer(t *testing.T) *testServer {
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

	cfg := &config.Config{Execution: config.ExecutionConfig{Shell: "echo", TimeoutSeconds: 10}}

	instances := services.NewInstanceService(db, validation.New())
	executor := services.NewExecutorService(db, cfg, nil)
	audit := services.NewAuditService(db)
	repos := services.NewRepositoryService()
	rest := services.NewRestService(db, validation.New(), repos)
	deploy := services.NewDeployService(instances, repos, services.NewBackupService(), executor)

	instanceHandler := handlers.NewInstanceHandler(instances, audit)
	restHandler := handlers.NewRestHandler(rest, audit)
	deployHandler := handlers.NewDeployHandler(deploy, audit)
	jobHandler := handlers.NewJobHandler(executor)
	streamHandler := handlers.NewStreamHandler(executor)
	auditHandler := handlers.NewAuditHandler(audit)
	versionHandler := handlers.NewVersionHandler()

	r := gin.New()
	r.GET("/api/instances", instanceHandler.List)
	r.POST("/api/instances", instanceHandler.Create)
	r.GET("/api/instances/:name", instanceHandler.Get)
	r.PUT("/api/instances/:name", instanceHandler.Update)
	r.DELETE("/api/instances/:name", instanceHandler.Delete)
	r.GET("/api/instances/:name/build", deployHandler.Status)
	r.POST("/api/instances/:name/build", deployHandler.Build)
	r.GET("/api/instances/:name/backups", deployHandler.Backups)
	r.POST("/api/instances/:name/restore", deployHandler.Restore)
	r.GET("/api/rest", restHandler.List)
	r.POST("/api/rest", restHandler.Create)
	r.GET("/api/rest/:name", restHandler.Get)
	r.PUT("/api/rest/:name", restHandler.Update)
	r.DELETE("/api/rest/:name", restHandler.Delete)
	r.GET("/api/rest/:name/build", restHandler.Status)
	r.GET("/api/jobs", jobHandler.List)
	r.GET("/api/jobs/:id", jobHandler.Get)
	r.GET("/api/jobs/:id/stream", streamHandler.Stream)
	r.GET("/api/audit", auditHandler.List)
	r.GET("/api/version", versionHandler.Get)

	return &testServer{engine: r, instances: instances, rest: rest, executor: executor, audit: audit}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), v); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

type errorBody struct {
	Code   int        `json:"code"`
	Error  string     `json:"error"`
	Fields [][]string `json:"fields"`
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	if w.Code != status {
		t.Fatalf("expected status %d, got %d: %s", status, w.Code, w.Body.String())
	}
}
