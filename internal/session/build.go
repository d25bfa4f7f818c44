package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
	"github.com/pandeptwidyaop/deploy-manager/internal/plan"
)

var (
	// ErrCheckoutNotAllowed is returned when the instance does not allow switching branches.
	ErrCheckoutNotAllowed = errors.New("instance does not allow switching branches")
	// ErrUnknownBranch is returned for a branch the remote did not report.
	ErrUnknownBranch = errors.New("branch is not available")
	// ErrNoBackups is returned for backup options on an instance without a backups directory.
	ErrNoBackups = errors.New("instance has no backups directory")
)

// BuildRemote is the part of the management API a build session uses.
type BuildRemote interface {
	InstanceStatus(ctx context.Context, name string) (*models.InstanceStatus, error)
	Build(ctx context.Context, req *models.BuildRequest) (*models.JobResult, error)
}

// BuildSnapshot is a copy of the visible state of a build session.
type BuildSnapshot struct {
	State     State
	Details   *models.InstanceStatus
	Options   models.BuildOptions
	Preview   plan.Plan
	Result    *ResultView
	Err       error
	CanSubmit bool
}

// BuildSession coordinates one build of an instance.
type BuildSession struct {
	lifecycle
	remote  BuildRemote
	desc    models.InstanceDescriptor
	details *models.InstanceStatus
	options models.BuildOptions
	preview plan.Plan
	result  *ResultView
}

// NewBuildSession creates an idle build session for desc.
func NewBuildSession(remote BuildRemote, desc models.InstanceDescriptor, opts ...Option) *BuildSession {
	return &BuildSession{
		lifecycle: lifecycle{cfg: newConfig(opts)},
		remote:    remote,
		desc:      desc,
	}
}

// Open discards everything from a previous opening and fetches the instance
// status. The session becomes ready when the status arrives, or failed if the
// fetch fails.
func (s *BuildSession) Open(ctx context.Context) {
	s.mu.Lock()
	gen := s.restart(StateFetching)
	s.details = nil
	s.preview = nil
	s.result = nil
	s.options = models.BuildOptions{}
	if s.desc.HasBackups() {
		s.options.Backup = models.Some(true)
	}
	s.claim("status")
	name := s.desc.Name
	s.mu.Unlock()

	s.changed()

	start(&s.lifecycle, gen, name, task[*models.InstanceStatus]{
		op:   "status",
		call: func() (*models.InstanceStatus, error) { return s.remote.InstanceStatus(ctx, name) },
		done: func(st *models.InstanceStatus) {
			if st == nil {
				st = &models.InstanceStatus{}
			}
			s.details = st
			s.state = StateReady
			s.recompute()
		},
		failed: func() { s.state = StateFailed },
	})
}

// SetCheckoutBranch selects the branch to pull. Selecting the branch that is
// already checked out removes the override.
func (s *BuildSession) SetCheckoutBranch(branch string) error {
	return s.update(func() error {
		if !s.desc.Git.CheckoutAllowed {
			return ErrCheckoutNotAllowed
		}
		if branch == s.details.CurrentBranch {
			s.options.Checkout = models.None[string]()
			return nil
		}
		if !s.details.HasBranch(branch) {
			return fmt.Errorf("%w: %s", ErrUnknownBranch, branch)
		}
		s.options.Checkout = models.Some(branch)
		return nil
	})
}

// SetClear sets whether local changes are discarded before pulling.
func (s *BuildSession) SetClear(clear bool) error {
	return s.update(func() error {
		s.options.Clear = clear
		return nil
	})
}

// SetBackup sets whether the current web root is moved to the backups
// directory before deploying.
func (s *BuildSession) SetBackup(backup bool) error {
	return s.update(func() error {
		if !s.desc.HasBackups() {
			return ErrNoBackups
		}
		s.options.Backup = models.Some(backup)
		return nil
	})
}

func (s *BuildSession) update(fn func() error) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNotReady
	}
	if err := fn(); err != nil {
		s.mu.Unlock()
		return err
	}
	s.recompute()
	s.mu.Unlock()

	s.changed()
	return nil
}

// recompute refreshes the preview plan. Callers hold mu.
func (s *BuildSession) recompute() {
	s.preview = plan.CompileBuild(s.desc, s.options, s.cfg.now())
}

// Submit requests the build with the current options. On failure the session
// returns to ready with its options intact.
func (s *BuildSession) Submit(ctx context.Context) error {
	s.mu.Lock()
	if err := s.submittable(); err != nil {
		s.mu.Unlock()
		return err
	}
	gen := s.gen
	s.state = StateSubmitting
	s.result = nil
	s.err = nil
	s.claim("build")
	req := &models.BuildRequest{Name: s.desc.Name, BuildOptions: s.options}
	s.mu.Unlock()

	s.changed()

	start(&s.lifecycle, gen, req.Name, task[*models.JobResult]{
		op:   "build",
		call: func() (*models.JobResult, error) { return s.remote.Build(ctx, req) },
		done: func(r *models.JobResult) {
			s.result = newResultView(r)
			s.state = StateCompleted
		},
		failed: func() { s.state = StateReady },
	})
	return nil
}

// SelectTab switches the displayed part of the job result.
func (s *BuildSession) SelectTab(tab Tab) error {
	s.mu.Lock()
	if s.result == nil {
		s.mu.Unlock()
		return ErrNoResult
	}
	s.result.Tab = tab
	s.mu.Unlock()

	s.changed()
	return nil
}

// Close discards all session state. A response still in flight is ignored
// when it arrives.
func (s *BuildSession) Close() {
	s.mu.Lock()
	s.restart(StateIdle)
	s.details = nil
	s.options = models.BuildOptions{}
	s.preview = nil
	s.result = nil
	s.mu.Unlock()

	s.changed()
}

// Snapshot returns a copy of the session state.
func (s *BuildSession) Snapshot() BuildSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := BuildSnapshot{
		State:     s.state,
		Options:   s.options,
		Err:       s.err,
		CanSubmit: s.submittable() == nil,
	}
	if s.details != nil {
		d := *s.details
		d.AvailableBranches = append([]string(nil), s.details.AvailableBranches...)
		snap.Details = &d
	}
	if s.preview != nil {
		snap.Preview = append(plan.Plan(nil), s.preview...)
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}

// State returns the current state.
func (s *BuildSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
