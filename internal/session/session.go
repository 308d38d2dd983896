// Package session wraps repeated executor passes with an overall status and
// lifecycle policy: input-change detection and restart, a permanent error
// latch, and post-completion polling.
//
// The controller is a cooperative pull model. The embedding program calls
// Advance repeatedly with its current inputs; every call returns one
// observation. The first call only starts the engine.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vk/moleculego/internal/cell"
	"github.com/vk/moleculego/internal/ctxlog"
	"github.com/vk/moleculego/internal/executor"
	"github.com/vk/moleculego/internal/molecule"
)

// DefaultPollInterval is the delay between a clean completion and the next
// automatic pass when the inputs do not change.
const DefaultPollInterval = 30 * time.Second

// ErrClosed is returned by Advance after Close. Advancing a released
// controller is caller error.
var ErrClosed = errors.New("session: controller is closed")

// Status is the overall state of the session.
type Status int

const (
	// StatusExecuting means a pass is in progress.
	StatusExecuting Status = iota
	// StatusInvalidating means the inputs changed and the current pass is
	// being discarded before a restart.
	StatusInvalidating
	// StatusError means a pass ended with a failed cell. The session stays
	// here until the input reference changes.
	StatusError
	// StatusFinished means a pass completed every stage without failure.
	StatusFinished
)

// String returns the lowercase name of the status for logs.
func (s Status) String() string {
	switch s {
	case StatusExecuting:
		return "executing"
	case StatusInvalidating:
		return "invalidating"
	case StatusError:
		return "error"
	case StatusFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// Inputs is the caller-supplied input snapshot. The pointer itself is the
// generation token: the controller compares references, not values, so a
// value-equal but newly allocated Inputs counts as a change. Reuse the same
// pointer across Advance calls to mean "nothing changed".
type Inputs struct {
	Values map[string]any
}

// Observation is one emitted (status, props) pair.
type Observation struct {
	Status Status
	Props  cell.Bag
}

// Option configures a Controller.
type Option func(*Controller)

// WithPollInterval overrides the post-completion poll delay.
func WithPollInterval(d time.Duration) Option {
	return func(c *Controller) { c.poll = d }
}

// Controller drives executor passes over one molecule.
type Controller struct {
	mol  molecule.Molecule
	poll time.Duration

	exec    *executor.Executor
	bag     cell.Bag
	status  Status
	lastIn  *Inputs
	started bool
	passID  string

	timer     *time.Timer
	closed    chan struct{}
	closeOnce sync.Once
}

// New creates a controller for the given molecule.
func New(m molecule.Molecule, opts ...Option) (*Controller, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	c := &Controller{
		mol:    m,
		poll:   DefaultPollInterval,
		closed: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Advance moves the session forward by one observation. It blocks while the
// current stage's operations are outstanding and, after a Finished or Error
// observation, until the poll delay elapses. A context error aborts the
// wait without changing session state.
func (c *Controller) Advance(ctx context.Context, in *Inputs) (Observation, error) {
	select {
	case <-c.closed:
		return Observation{}, ErrClosed
	default:
	}
	logger := ctxlog.FromContext(ctx)

	if !c.started {
		c.started = true
		c.lastIn = in
		c.startPass(ctx, nil)
		c.status = StatusExecuting
		return Observation{Status: StatusExecuting, Props: c.bag.Clone()}, nil
	}

	if in != c.lastIn {
		logger.Debug("Input reference changed, restarting pass.", "pass", c.passID)
		c.lastIn = in
		c.stopTimer()
		var seed cell.Bag
		if c.status != StatusError {
			// Carried Resolved values surface as Refreshing on the next
			// dispatch. A failed pass restarts cold.
			seed = carrySeed(c.bag)
		}
		c.startPass(ctx, seed)
		c.status = StatusExecuting
		return Observation{Status: StatusInvalidating, Props: c.bag.Clone()}, nil
	}

	switch c.status {
	case StatusError:
		// Latched until the input reference changes. Re-emits are paced at
		// the poll interval so a driving loop does not spin; cancellation
		// and Close break the wait.
		delay := time.NewTimer(c.poll)
		defer delay.Stop()
		select {
		case <-delay.C:
		case <-c.closed:
			return Observation{}, ErrClosed
		case <-ctx.Done():
			return Observation{}, ctx.Err()
		}
		return Observation{Status: StatusError, Props: c.bag.Clone()}, nil
	case StatusFinished:
		select {
		case <-c.timer.C:
		case <-c.closed:
			return Observation{}, ErrClosed
		case <-ctx.Done():
			return Observation{}, ctx.Err()
		}
		logger.Debug("Poll interval elapsed, starting new pass.")
		c.startPass(ctx, carrySeed(c.bag))
		c.status = StatusExecuting
	}

	// Operations dispatched below log with the pass they belong to.
	step, err := c.exec.Next(ctxlog.With(ctx, "pass", c.passID), c.lastIn.Values)
	if err != nil {
		return Observation{}, err
	}
	c.bag = step.Props

	switch {
	case step.Kind == executor.StepSettled && step.Failed:
		logger.Debug("Pass ended in failure.", "pass", c.passID, "stage", step.Stage)
		c.status = StatusError
	case step.Final:
		logger.Debug("Pass finished.", "pass", c.passID)
		c.status = StatusFinished
		c.timer = time.NewTimer(c.poll)
	default:
		c.status = StatusExecuting
	}

	return Observation{Status: c.status, Props: step.Props}, nil
}

// Close releases the controller: the poll timer stops and every later
// Advance returns ErrClosed. Operations already in flight keep running in
// the background; their results are never observed.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		c.stopTimer()
	})
	return nil
}

// startPass discards the previous executor, if any, and begins a fresh pass
// over a new independent bag. Abandoned operations cannot touch the new bag.
func (c *Controller) startPass(ctx context.Context, seed cell.Bag) {
	c.passID = uuid.NewString()
	c.exec = executor.New(c.mol, seed)
	c.bag = c.exec.Bag()
	ctxlog.FromContext(ctx).Debug("Pass started.", "pass", c.passID, "stages", len(c.mol))
}

func (c *Controller) stopTimer() {
	if c.timer != nil {
		c.timer.Stop()
	}
}

// carrySeed normalizes a carried-forward bag for a restart. Settled values
// stay (a Refreshing cell falls back to its previous value); in-flight and
// failed cells are dropped so nothing from the abandoned pass leaks in.
func carrySeed(bag cell.Bag) cell.Bag {
	seed := cell.Bag{}
	for name, c := range bag {
		if v, ok := c.BestValue(); ok {
			seed[name] = cell.NewResolved(v)
		}
	}
	return seed
}
