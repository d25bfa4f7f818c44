package session

import (
	"context"
	"errors"
	"sync"

	"github.com/pandeptwidyaop/deploy-manager/internal/models"
)

var errRemote = errors.New("remote unavailable")

// reply is a pending remote call answered by the test.
type reply struct {
	status  *models.InstanceStatus
	backups []string
	result  *models.JobResult
	err     error
}

// fakeRemote answers immediately from its fields, or, when gated, blocks each
// call until the test answers it through the call's channel.
type fakeRemote struct {
	mu sync.Mutex

	gated bool
	calls []chan reply

	status    *models.InstanceStatus
	statusErr error
	backups   []string
	backupErr error
	result    *models.JobResult
	submitErr error

	statusCalls int
	backupCalls int
	builds      []*models.BuildRequest
	restores    []*models.RestoreRequest
}

func (f *fakeRemote) wait() reply {
	ch := make(chan reply)
	f.mu.Lock()
	f.calls = append(f.calls, ch)
	f.mu.Unlock()
	return <-ch
}

func (f *fakeRemote) pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeRemote) answer(i int, r reply) {
	f.mu.Lock()
	ch := f.calls[i]
	f.mu.Unlock()
	ch <- r
}

func (f *fakeRemote) InstanceStatus(ctx context.Context, name string) (*models.InstanceStatus, error) {
	f.mu.Lock()
	f.statusCalls++
	gated := f.gated
	f.mu.Unlock()
	if gated {
		r := f.wait()
		return r.status, r.err
	}
	return f.status, f.statusErr
}

func (f *fakeRemote) Build(ctx context.Context, req *models.BuildRequest) (*models.JobResult, error) {
	f.mu.Lock()
	f.builds = append(f.builds, req)
	gated := f.gated
	f.mu.Unlock()
	if gated {
		r := f.wait()
		return r.result, r.err
	}
	return f.result, f.submitErr
}

func (f *fakeRemote) Backups(ctx context.Context, name string) ([]string, error) {
	f.mu.Lock()
	f.backupCalls++
	gated := f.gated
	f.mu.Unlock()
	if gated {
		r := f.wait()
		return r.backups, r.err
	}
	return f.backups, f.backupErr
}

func (f *fakeRemote) Restore(ctx context.Context, req *models.RestoreRequest) (*models.JobResult, error) {
	f.mu.Lock()
	f.restores = append(f.restores, req)
	gated := f.gated
	f.mu.Unlock()
	if gated {
		r := f.wait()
		return r.result, r.err
	}
	return f.result, f.submitErr
}

func (f *fakeRemote) buildCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.builds)
}

func inline(task func()) { task() }

// errorLog collects errors passed to the session error handler.
type errorLog struct {
	mu   sync.Mutex
	errs []error
}

func (l *errorLog) handle(err error) {
	l.mu.Lock()
	l.errs = append(l.errs, err)
	l.mu.Unlock()
}

func (l *errorLog) all() []error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]error(nil), l.errs...)
}
