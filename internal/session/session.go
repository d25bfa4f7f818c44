// Package session drives the build and restore workflows of one instance: it
// fetches the remote state, holds the operator's choices, submits the job and
// keeps the reported result until the session is closed.
//
// Remote calls run in the background. Every Open and Close starts a new
// generation, and a response belonging to an older generation is dropped, so a
// late reply can never land in a closed or reopened session.
package session

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// State is the position of a session in its workflow.
type State int

const (
	// StateIdle is a session that is not open.
	StateIdle State = iota
	// StateFetching waits for the initial remote fetch (status or backup list).
	StateFetching
	// StateReady accepts option changes and Submit.
	StateReady
	// StateSubmitting waits for the job request to return.
	StateSubmitting
	// StateCompleted holds the job result.
	StateCompleted
	// StateFailed is terminal for the session; only Close and Open leave it.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateReady:
		return "ready"
	case StateSubmitting:
		return "submitting"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrNotReady is returned by operations that need the session in StateReady.
	ErrNotReady = errors.New("session is not ready")
	// ErrSubmitInFlight is returned by Submit while a request is outstanding.
	ErrSubmitInFlight = errors.New("a request is already in flight")
	// ErrNoResult is returned when selecting a result tab before a job completed.
	ErrNoResult = errors.New("no job result")
)

// RemoteFailure is a failed status fetch, backup listing or submission.
type RemoteFailure struct {
	Op   string
	Name string
	Err  error
}

func (e *RemoteFailure) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Name, e.Err)
}

func (e *RemoteFailure) Unwrap() error {
	return e.Err
}

// MissingHandlerFault is the panic value raised when a remote call fails and no
// ErrorHandler was configured.
type MissingHandlerFault struct {
	Failure *RemoteFailure
}

func (f MissingHandlerFault) Error() string {
	return "session: no error handler for " + f.Failure.Error()
}

// ErrorHandler receives every RemoteFailure of a session.
type ErrorHandler func(err error)

type config struct {
	onError ErrorHandler
	notify  func()
	now     func() time.Time
	spawn   func(func())
}

// Option configures a session.
type Option func(*config)

// WithErrorHandler sets the callback that receives remote failures.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) { c.onError = h }
}

// WithNotify sets a callback run after every state change.
func WithNotify(f func()) Option {
	return func(c *config) { c.notify = f }
}

// WithClock overrides the clock used to stamp backup names in previews.
func WithClock(now func() time.Time) Option {
	return func(c *config) { c.now = now }
}

// WithRunner overrides how background tasks are started. The default runs each
// task in its own goroutine.
func WithRunner(run func(task func())) Option {
	return func(c *config) { c.spawn = run }
}

func newConfig(opts []Option) config {
	c := config{
		now:   time.Now,
		spawn: func(task func()) { go task() },
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// request occupies the single in-flight slot of a session.
type request struct {
	op string
}

type lifecycle struct {
	mu       sync.Mutex
	cfg      config
	gen      uint64
	state    State
	inflight *request
	err      error
}

// restart begins a new generation in state. Callers hold mu.
func (l *lifecycle) restart(state State) uint64 {
	l.gen++
	l.state = state
	l.inflight = nil
	l.err = nil
	return l.gen
}

// submittable reports why a submission cannot start, if it cannot. Callers hold mu.
func (l *lifecycle) submittable() error {
	if l.inflight != nil || l.state == StateSubmitting {
		return ErrSubmitInFlight
	}
	if l.state != StateReady {
		return ErrNotReady
	}
	return nil
}

func (l *lifecycle) changed() {
	if l.cfg.notify != nil {
		l.cfg.notify()
	}
}

func (l *lifecycle) report(f *RemoteFailure) {
	log.Warn().Err(f.Err).Str("instance", f.Name).Str("op", f.Op).Msg("remote call failed")
	if l.cfg.onError == nil {
		panic(MissingHandlerFault{Failure: f})
	}
	l.cfg.onError(f)
}

// task is one remote call whose outcome is applied to the session.
type task[T any] struct {
	op     string
	call   func() (T, error)
	done   func(T)
	failed func()
}

// claim takes the in-flight slot for op. Callers hold mu.
func (l *lifecycle) claim(op string) {
	l.inflight = &request{op: op}
}

// start runs t in the background for generation gen. The caller must have
// claimed the slot for t.op under mu and released mu before calling start.
// done and failed run with mu held, and only if gen is still current when the
// call returns.
func start[T any](l *lifecycle, gen uint64, name string, t task[T]) {
	l.cfg.spawn(func() {
		v, err := t.call()

		l.mu.Lock()
		if l.gen != gen {
			l.mu.Unlock()
			log.Debug().Str("instance", name).Str("op", t.op).Uint64("generation", gen).Msg("dropping stale response")
			return
		}
		l.inflight = nil
		if err != nil {
			l.err = err
			t.failed()
		} else {
			t.done(v)
		}
		l.mu.Unlock()

		l.changed()
		if err != nil {
			l.report(&RemoteFailure{Op: t.op, Name: name, Err: err})
		}
	})
}
