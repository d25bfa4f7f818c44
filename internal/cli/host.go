package cli

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/pandeptwidyaop/deploy-manager/internal/session"
)

// host observes a session from the command line. The session reports every
// state change through notify; wait blocks until the state leaves pending.
type host struct {
	changes chan struct{}
}

func newHost() *host {
	return &host{changes: make(chan struct{}, 1)}
}

func (h *host) options() []session.Option {
	return []session.Option{
		session.WithNotify(h.notify),
		// Failures are read back from the snapshot; the handler only logs.
		session.WithErrorHandler(func(err error) {
			log.Debug().Err(err).Msg("session reported a failure")
		}),
	}
}

func (h *host) notify() {
	select {
	case h.changes <- struct{}{}:
	default:
	}
}

// wait returns the first state for which pending is false.
func (h *host) wait(ctx context.Context, current func() session.State, pending ...session.State) (session.State, error) {
	for {
		st := current()
		if !isOneOf(st, pending) {
			return st, nil
		}
		select {
		case <-h.changes:
		case <-ctx.Done():
			return st, ctx.Err()
		}
	}
}

func isOneOf(st session.State, list []session.State) bool {
	for _, s := range list {
		if s == st {
			return true
		}
	}
	return false
}
