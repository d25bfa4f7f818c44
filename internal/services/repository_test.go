package services_test

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/pandeptwidyaop/deploy-manager/internal/services"
)

// initRepo creates a repository on branch main with one commit.
func initRepo(t *testing.T) (string, *git.Repository) {
	t.Helper()
	dir := t.TempDir()

	repo, err := git.PlainInitWithOptions(dir, &git.PlainInitOptions{
		InitOptions: git.InitOptions{DefaultBranch: plumbing.NewBranchReferenceName("main")},
	})
	if err != nil {
		t.Fatalf("failed to init repository: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"portal"}`), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w, err := repo.Worktree()
	if err != nil {
		t.Fatalf("failed to get worktree: %v", err)
	}
	if _, err := w.Add("package.json"); err != nil {
		t.Fatalf("failed to add file: %v", err)
	}
	_, err = w.Commit("initial commit", &git.CommitOptions{
		Author: &object.Signature{Name: "Test", Email: "test@example.com", When: time.Now()},
	})
	if err != nil {
		t.Fatalf("failed to commit: %v", err)
	}
	return dir, repo
}

func TestRepositoryService_Status(t *testing.T) {
	dir, repo := initRepo(t)

	head, err := repo.Head()
	if err != nil {
		t.Fatalf("failed to read HEAD: %v", err)
	}
	// A local and a remote tracking branch; origin/develop collapses to develop.
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName("develop"),
		plumbing.NewRemoteReferenceName("origin", "develop"),
		plumbing.NewRemoteReferenceName("origin", "release"),
	} {
		if err := repo.Storer.SetReference(plumbing.NewHashReference(name, head.Hash())); err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
	}
	if _, err := repo.CreateRemote(&config.RemoteConfig{Name: "origin", URLs: []string{"https://example.com/portal.git"}}); err != nil {
		t.Fatalf("failed to create remote: %v", err)
	}

	st, err := services.NewRepositoryService().Status(dir)
	if err != nil {
		t.Fatalf("failed to read status: %v", err)
	}

	if st.CurrentBranch != "main" {
		t.Errorf("expected current branch 'main', got %q", st.CurrentBranch)
	}
	want := []string{"develop", "main", "release"}
	if !reflect.DeepEqual(st.AvailableBranches, want) {
		t.Errorf("expected branches %v, got %v", want, st.AvailableBranches)
	}
	if !strings.Contains(st.Status, "On branch main") {
		t.Errorf("expected status to name the branch, got %q", st.Status)
	}
	if !strings.Contains(st.Status, "working tree clean") {
		t.Errorf("expected clean worktree, got %q", st.Status)
	}
}

func TestRepositoryService_StatusDirty(t *testing.T) {
	dir, _ := initRepo(t)

	if err := os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"changed"}`), 0644); err != nil {
		t.Fatalf("failed to modify file: %v", err)
	}

	st, err := services.NewRepositoryService().Status(dir)
	if err != nil {
		t.Fatalf("failed to read status: %v", err)
	}
	if strings.Contains(st.Status, "working tree clean") {
		t.Errorf("expected dirty worktree, got %q", st.Status)
	}
	if !strings.Contains(st.Status, "package.json") {
		t.Errorf("expected modified file in status, got %q", st.Status)
	}
}

func TestRepositoryService_NotRepository(t *testing.T) {
	_, err := services.NewRepositoryService().Status(t.TempDir())
	if !errors.Is(err, services.ErrNotRepository) {
		t.Errorf("expected ErrNotRepository, got %v", err)
	}
}
