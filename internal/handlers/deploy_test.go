package handlers_test

import (
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/pandeptwidyaop/deploy-manager/internal/manage"
	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

// createInstance stores an instance with a backups directory holding two
// backups and returns that directory.
func createInstance(t *testing.T, s *testServer, record models.InstanceDescriptor) string {
	t.Helper()

	backups := t.TempDir()
	for _, id := range []string{"2025-03-01T08:00:00", "2025-03-02T08:00:00"} {
		if err := os.Mkdir(filepath.Join(backups, id), 0755); err != nil {
			t.Fatalf("failed to create backup: %v", err)
		}
	}
	record.BackupsDir = backups

	if _, err := s.instances.Create("portal", record); err != nil {
		t.Fatalf("failed to create instance: %v", err)
	}
	return backups
}

// initRepo creates a repository on main with one commit and the extra local
// branches.
func initRepo(t *testing.T, branches ...string) string {
	t.Helper()

	dir := t.TempDir()
	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html></html>"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := wt.Add("index.html"); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}
	hash, err := wt.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	for _, b := range branches {
		if err := repo.Storer.SetReference(plumbing.NewHashReference(plumbing.NewBranchReferenceName(b), hash)); err != nil {
			t.Fatalf("failed to create branch %s: %v", b, err)
		}
	}
	return dir
}

func TestDeployHandler_Build(t *testing.T) {
	s := newTestServer(t)
	record := portalRecord()
	record.Path = initRepo(t, "develop")
	record.Git.CheckoutAllowed = true
	createInstance(t, s, record)

	req := models.BuildRequest{Name: "portal", BuildOptions: models.BuildOptions{Clear: true, Checkout: models.Some("develop")}}
	w := s.do(t, http.MethodPost, "/api/instances/portal/build", req)
	expectStatus(t, w, http.StatusOK)

	var result models.JobResult
	decode(t, w, &result)

	steps := strings.Split(result.Commands, " && ")
	if steps[0] != "cd "+record.Path || steps[2] != "git checkout ." || steps[3] != "git checkout develop" {
		t.Errorf("unexpected leading steps %v", steps)
	}
	// Backup defaults to on when the instance has a backups directory.
	if !strings.Contains(result.Commands, "mv /var/www/portal ") {
		t.Errorf("expected a backup step, got %q", result.Commands)
	}
	if strings.TrimSpace(result.Output) != result.Commands {
		t.Errorf("expected echoed commands, got %q", result.Output)
	}

	w = s.do(t, http.MethodGet, "/api/jobs?instance=portal", nil)
	expectStatus(t, w, http.StatusOK)
	var jobs []models.Job
	decode(t, w, &jobs)
	if len(jobs) != 1 || jobs[0].Kind != models.JobBuild || jobs[0].Status != models.StatusSuccess {
		t.Fatalf("expected one successful build job, got %+v", jobs)
	}

	w = s.do(t, http.MethodGet, "/api/jobs/"+jobs[0].ID, nil)
	expectStatus(t, w, http.StatusOK)
	var job models.Job
	decode(t, w, &job)
	if job.Commands != result.Commands {
		t.Errorf("expected stored commands %q, got %q", result.Commands, job.Commands)
	}
}

func TestDeployHandler_BuildNoBackup(t *testing.T) {
	s := newTestServer(t)
	createInstance(t, s, portalRecord())

	req := models.BuildRequest{Name: "portal", BuildOptions: models.BuildOptions{Backup: models.Some(false)}}
	w := s.do(t, http.MethodPost, "/api/instances/portal/build", req)
	expectStatus(t, w, http.StatusOK)

	var result models.JobResult
	decode(t, w, &result)
	if strings.Contains(result.Commands, "mv ") {
		t.Errorf("expected no backup step, got %q", result.Commands)
	}
}

func TestDeployHandler_BuildCheckoutNotAllowed(t *testing.T) {
	s := newTestServer(t)
	createInstance(t, s, portalRecord())

	req := models.BuildRequest{Name: "portal", BuildOptions: models.BuildOptions{Checkout: models.Some("develop")}}
	w := s.do(t, http.MethodPost, "/api/instances/portal/build", req)
	expectStatus(t, w, http.StatusBadRequest)

	var body errorBody
	decode(t, w, &body)
	if body.Code != manage.CodeBadRequest {
		t.Errorf("expected code %d, got %d", manage.CodeBadRequest, body.Code)
	}
}

func TestDeployHandler_BuildUnknownBranch(t *testing.T) {
	s := newTestServer(t)
	record := portalRecord()
	record.Path = initRepo(t)
	record.Git.CheckoutAllowed = true
	createInstance(t, s, record)

	for _, branch := range []string{"develop", "--detach"} {
		req := models.BuildRequest{Name: "portal", BuildOptions: models.BuildOptions{Checkout: models.Some(branch)}}
		w := s.do(t, http.MethodPost, "/api/instances/portal/build", req)
		expectStatus(t, w, http.StatusBadRequest)

		var body errorBody
		decode(t, w, &body)
		if body.Code != manage.CodeDataFields || len(body.Fields) != 1 || body.Fields[0][0] != "checkout" {
			t.Errorf("%s: expected a checkout field error, got %+v", branch, body)
		}
	}

	w := s.do(t, http.MethodGet, "/api/jobs?instance=portal", nil)
	var jobs []models.Job
	decode(t, w, &jobs)
	if len(jobs) != 0 {
		t.Errorf("expected no job for a rejected build, got %d", len(jobs))
	}
}

func TestDeployHandler_BuildUnknownInstance(t *testing.T) {
	s := newTestServer(t)

	w := s.do(t, http.MethodPost, "/api/instances/missing/build", models.BuildRequest{Name: "missing"})
	expectStatus(t, w, http.StatusNotFound)
}

func TestDeployHandler_Backups(t *testing.T) {
	s := newTestServer(t)
	createInstance(t, s, portalRecord())

	w := s.do(t, http.MethodGet, "/api/instances/portal/backups", nil)
	expectStatus(t, w, http.StatusOK)

	var ids []string
	decode(t, w, &ids)
	want := []string{"2025-03-02T08:00:00", "2025-03-01T08:00:00"}
	if !reflect.DeepEqual(ids, want) {
		t.Errorf("expected %v, got %v", want, ids)
	}
}

func TestDeployHandler_Restore(t *testing.T) {
	s := newTestServer(t)
	backups := createInstance(t, s, portalRecord())

	req := models.RestoreRequest{Name: "portal", RestoreOptions: models.RestoreOptions{Backup: "2025-03-01T08:00:00"}}
	w := s.do(t, http.MethodPost, "/api/instances/portal/restore", req)
	expectStatus(t, w, http.StatusOK)

	var result models.JobResult
	decode(t, w, &result)
	want := "rm -rf /var/www/portal && cp -r " + backups + "/2025-03-01T08:00:00 /var/www/portal"
	if result.Commands != want {
		t.Errorf("expected %q, got %q", want, result.Commands)
	}
}

func TestDeployHandler_RestoreUnknownBackup(t *testing.T) {
	s := newTestServer(t)
	createInstance(t, s, portalRecord())

	req := models.RestoreRequest{Name: "portal", RestoreOptions: models.RestoreOptions{Backup: "2024-01-01T00:00:00"}}
	w := s.do(t, http.MethodPost, "/api/instances/portal/restore", req)
	expectStatus(t, w, http.StatusNotFound)
}

func TestDeployHandler_Status(t *testing.T) {
	s := newTestServer(t)

	record := portalRecord()
	record.Path = initRepo(t)
	if _, err := s.instances.Create("portal", record); err != nil {
		t.Fatalf("failed to create instance: %v", err)
	}

	w := s.do(t, http.MethodGet, "/api/instances/portal/build", nil)
	expectStatus(t, w, http.StatusOK)

	var st models.InstanceStatus
	decode(t, w, &st)
	if st.CurrentBranch != "main" {
		t.Errorf("expected branch main, got %q", st.CurrentBranch)
	}
	if !reflect.DeepEqual(st.AvailableBranches, []string{"main"}) {
		t.Errorf("expected [main], got %v", st.AvailableBranches)
	}
}

func TestDeployHandler_StatusNotRepository(t *testing.T) {
	s := newTestServer(t)

	record := portalRecord()
	record.Path = t.TempDir()
	if _, err := s.instances.Create("portal", record); err != nil {
		t.Fatalf("failed to create instance: %v", err)
	}

	w := s.do(t, http.MethodGet, "/api/instances/portal/build", nil)
	expectStatus(t, w, http.StatusUnprocessableEntity)
}
