package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

var (
	// ErrUnknownBackup is returned when selecting a backup the remote did not list.
	ErrUnknownBackup = errors.New("backup is not available")
	// ErrNoBackupSelected is returned by Submit before a backup was chosen.
	ErrNoBackupSelected = errors.New("no backup selected")
)

// RestoreRemote is the part of the management API a restore session uses.
type RestoreRemote interface {
	Backups(ctx context.Context, name string) ([]string, error)
	Restore(ctx context.Context, req *models.RestoreRequest) (*models.JobResult, error)
}

// RestoreSnapshot is a copy of the visible state of a restore session.
type RestoreSnapshot struct {
	State     State
	Backups   []string
	Options   models.RestoreOptions
	Result    *ResultView
	Err       error
	CanSubmit bool
}

// RestoreSession coordinates one restore of an instance from a backup. Unlike a
// build, the commands of a restore are only known once the worker reports them.
type RestoreSession struct {
	lifecycle
	remote  RestoreRemote
	name    string
	backups []string
	options models.RestoreOptions
	result  *ResultView
}

// NewRestoreSession creates an idle restore session for the named instance.
func NewRestoreSession(remote RestoreRemote, name string, opts ...Option) *RestoreSession {
	return &RestoreSession{
		lifecycle: lifecycle{cfg: newConfig(opts)},
		remote:    remote,
		name:      name,
	}
}

// Open discards everything from a previous opening and fetches the backup list.
func (s *RestoreSession) Open(ctx context.Context) {
	s.mu.Lock()
	gen := s.restart(StateFetching)
	s.backups = nil
	s.options = models.RestoreOptions{}
	s.result = nil
	s.claim("backups")
	s.mu.Unlock()

	s.changed()

	start(&s.lifecycle, gen, s.name, task[[]string]{
		op:   "backups",
		call: func() ([]string, error) { return s.remote.Backups(ctx, s.name) },
		done: func(ids []string) {
			s.backups = ids
			s.state = StateReady
		},
		failed: func() { s.state = StateFailed },
	})
}

// SelectBackup chooses the backup to restore. An empty id clears the selection.
func (s *RestoreSession) SelectBackup(id string) error {
	return s.update(func() error {
		if id != "" && !contains(s.backups, id) {
			return fmt.Errorf("%w: %s", ErrUnknownBackup, id)
		}
		s.options.Backup = id
		return nil
	})
}

// SetBackupCurrent sets whether the current web root is backed up before it is
// replaced.
func (s *RestoreSession) SetBackupCurrent(backup bool) error {
	return s.update(func() error {
		if backup {
			s.options.BackupCurrent = models.Some(true)
		} else {
			s.options.BackupCurrent = models.None[bool]()
		}
		return nil
	})
}

func (s *RestoreSession) update(fn func() error) error {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return ErrNotReady
	}
	err := fn()
	s.mu.Unlock()

	if err != nil {
		return err
	}
	s.changed()
	return nil
}

func (s *RestoreSession) submittable() error {
	if err := s.lifecycle.submittable(); err != nil {
		return err
	}
	if s.options.Backup == "" {
		return ErrNoBackupSelected
	}
	return nil
}

// Submit requests the restore of the selected backup. On failure the session
// returns to ready with the selection intact.
func (s *RestoreSession) Submit(ctx context.Context) error {
	s.mu.Lock()
	if err := s.submittable(); err != nil {
		s.mu.Unlock()
		return err
	}
	gen := s.gen
	s.state = StateSubmitting
	s.result = nil
	s.err = nil
	s.claim("restore")
	req := &models.RestoreRequest{Name: s.name, RestoreOptions: s.options}
	s.mu.Unlock()

	s.changed()

	start(&s.lifecycle, gen, s.name, task[*models.JobResult]{
		op:   "restore",
		call: func() (*models.JobResult, error) { return s.remote.Restore(ctx, req) },
		done: func(r *models.JobResult) {
			s.result = newResultView(r)
			s.state = StateCompleted
		},
		failed: func() { s.state = StateReady },
	})
	return nil
}

// SelectTab switches the displayed part of the job result.
func (s *RestoreSession) SelectTab(tab Tab) error {
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

// Close discards all session state.
func (s *RestoreSession) Close() {
	s.mu.Lock()
	s.restart(StateIdle)
	s.backups = nil
	s.options = models.RestoreOptions{}
	s.result = nil
	s.mu.Unlock()

	s.changed()
}

// Snapshot returns a copy of the session state.
func (s *RestoreSession) Snapshot() RestoreSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := RestoreSnapshot{
		State:     s.state,
		Backups:   append([]string(nil), s.backups...),
		Options:   s.options,
		Err:       s.err,
		CanSubmit: s.submittable() == nil,
	}
	if s.result != nil {
		r := *s.result
		snap.Result = &r
	}
	return snap
}

// State returns the current state.
func (s *RestoreSession) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
