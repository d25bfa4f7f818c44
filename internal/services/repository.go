package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

// ErrNotRepository indicates the instance path is not a git repository.
var ErrNotRepository = errors.New("instance path is not a git repository")

// RepositoryService reads the git state of instance checkouts.
type RepositoryService struct{}

// NewRepositoryService creates a new RepositoryService instance.
func NewRepositoryService() *RepositoryService {
	return &RepositoryService{}
}

// Status reports the worktree status, the checked out branch and the branches
// a build could switch to. Remote tracking branches are listed by their short
// name, so "origin/develop" appears as "develop".
func (s *RepositoryService) Status(path string) (*models.InstanceStatus, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		if errors.Is(err, git.ErrRepositoryNotExists) {
			return nil, fmt.Errorf("%w: %s", ErrNotRepository, path)
		}
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	st := &models.InstanceStatus{}

	head, err := repo.Head()
	switch {
	case err == nil && head.Name().IsBranch():
		st.CurrentBranch = head.Name().Short()
	case err == nil:
		// Detached HEAD.
	case errors.Is(err, plumbing.ErrReferenceNotFound):
		// Unborn branch: no commit yet.
	default:
		return nil, fmt.Errorf("read HEAD: %w", err)
	}

	branches, err := listBranches(repo)
	if err != nil {
		return nil, err
	}
	if st.CurrentBranch != "" && !contains(branches, st.CurrentBranch) {
		branches = append(branches, st.CurrentBranch)
		sort.Strings(branches)
	}
	st.AvailableBranches = branches

	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("open worktree: %w", err)
	}
	status, err := wt.Status()
	if err != nil {
		return nil, fmt.Errorf("read worktree status: %w", err)
	}
	st.Status = describeStatus(st.CurrentBranch, head, status)

	return st, nil
}

func listBranches(repo *git.Repository) ([]string, error) {
	refs, err := repo.References()
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	defer refs.Close()

	seen := map[string]bool{}
	err = refs.ForEach(func(ref *plumbing.Reference) error {
		name := ref.Name()
		switch {
		case name.IsBranch():
			seen[name.Short()] = true
		case name.IsRemote():
			short := name.Short()
			if i := strings.IndexByte(short, '/'); i >= 0 {
				short = short[i+1:]
			}
			if short != "HEAD" {
				seen[short] = true
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	branches := make([]string, 0, len(seen))
	for b := range seen {
		branches = append(branches, b)
	}
	sort.Strings(branches)
	return branches, nil
}

func describeStatus(branch string, head *plumbing.Reference, status git.Status) string {
	var b strings.Builder
	switch {
	case branch != "":
		fmt.Fprintf(&b, "On branch %s\n", branch)
	case head != nil:
		fmt.Fprintf(&b, "HEAD detached at %s\n", head.Hash().String()[:7])
	default:
		b.WriteString("No commits yet\n")
	}

	if status.IsClean() {
		b.WriteString("nothing to commit, working tree clean\n")
		return b.String()
	}
	b.WriteString(status.String())
	return b.String()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
