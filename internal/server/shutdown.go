// Package server owns process lifecycle: draining the HTTP listener and
// releasing resources on termination signals, with a hard deadline so a hung
// connection can never keep the process alive indefinitely.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Coordinator states. Transitions are one-way: running → draining →
// terminated.
const (
	stateRunning int32 = iota
	stateDraining
	stateTerminated
)

// Exit codes reported by Trigger.
const (
	// ExitClean: all in-flight work drained and every closer succeeded.
	ExitClean = 0
	// ExitError: draining finished but a closer or the listener reported an
	// error.
	ExitError = 1
	// ExitForced: the drain deadline elapsed with work still in flight.
	ExitForced = 2
)

// forceGrace is how long past the drain deadline the backstop waits before
// killing the process outright.
const forceGrace = 5 * time.Second

// shutdowner abstracts http.Server's graceful stop.
type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type closer struct {
	name string
	fn   func(context.Context) error
}

// Coordinator drains the HTTP server and runs registered closers exactly once,
// no matter how many termination signals arrive. A backstop timer force-exits
// the process if draining overruns the deadline plus a small grace period, the
// same guarantee a supervisor's SIGKILL would provide, but with an exit code
// that names the cause.
type Coordinator struct {
	srv     shutdowner
	timeout time.Duration
	grace   time.Duration
	log     zerolog.Logger
	closers []closer

	state atomic.Int32
	code  atomic.Int32
	done  chan struct{}

	exitFn func(int) // test seam
}

// NewCoordinator builds a Coordinator for srv with the given drain deadline.
func NewCoordinator(srv *http.Server, timeout time.Duration, log zerolog.Logger) *Coordinator {
	c := &Coordinator{
		timeout: timeout,
		grace:   forceGrace,
		log:     log,
		done:    make(chan struct{}),
		exitFn:  os.Exit,
	}
	if srv != nil {
		c.srv = srv
	}
	return c
}

// OnShutdown registers a named cleanup step run after the listener drains.
// Closers run in registration order and receive whatever time remains of the
// drain deadline. Not safe to call after Trigger.
func (c *Coordinator) OnShutdown(name string, fn func(context.Context) error) {
	c.closers = append(c.closers, closer{name: name, fn: fn})
}

// Trigger starts the drain and returns the process exit code. The first call
// wins; concurrent or repeated calls block until the drain completes and
// return the same code.
func (c *Coordinator) Trigger(reason string) int {
	if !c.state.CompareAndSwap(stateRunning, stateDraining) {
		<-c.done
		return int(c.code.Load())
	}

	c.log.Info().Str("reason", reason).Dur("deadline", c.timeout).Msg("shutdown initiated")

	// Backstop: if draining hangs past deadline+grace, kill the process.
	backstop := time.AfterFunc(c.timeout+c.grace, func() {
		c.log.Error().Msg("shutdown deadline overrun, forcing exit")
		c.exitFn(ExitForced)
	})
	defer backstop.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	code := ExitClean
	if c.srv != nil {
		if err := c.srv.Shutdown(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				c.log.Error().Msg("listener did not drain before the deadline")
				code = ExitForced
			} else {
				c.log.Error().Err(err).Msg("error draining listener")
				code = ExitError
			}
		} else {
			c.log.Info().Msg("listener drained")
		}
	}

	for _, cl := range c.closers {
		if err := cl.fn(ctx); err != nil {
			c.log.Error().Err(err).Str("closer", cl.name).Msg("shutdown step failed")
			if code == ExitClean {
				code = ExitError
			}
			continue
		}
		c.log.Debug().Str("closer", cl.name).Msg("shutdown step done")
	}

	c.code.Store(int32(code))
	c.state.Store(stateTerminated)
	close(c.done)
	c.log.Info().Int("exit_code", code).Msg("shutdown complete")
	return code
}

// Wait blocks until a triggered drain has completed.
func (c *Coordinator) Wait() {
	<-c.done
}

// Draining reports whether shutdown has been initiated.
func (c *Coordinator) Draining() bool {
	return c.state.Load() != stateRunning
}
