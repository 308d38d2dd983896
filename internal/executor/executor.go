// Package executor runs one pass of a molecule: every stage in order, atoms
// within a stage concurrently, with two observable snapshots per stage.
//
// The executor is a resumable state machine rather than a goroutine. Each
// Next call advances exactly one segment — dispatching a stage and yielding
// the in-flight snapshot, or joining the stage and yielding the settled
// snapshot — so the session controller owns the only externally visible
// suspension point.
package executor

import (
	"context"
	"errors"
	"sort"

	"github.com/vk/moleculego/internal/cell"
	"github.com/vk/moleculego/internal/ctxlog"
	"github.com/vk/moleculego/internal/molecule"
)

// ErrPassComplete is returned by Next once the pass has ended, either by
// settling the last stage or by short-circuiting on a failure.
var ErrPassComplete = errors.New("executor: pass already complete")

// StepKind distinguishes the two snapshots a stage produces.
type StepKind int

const (
	// StepInFlight is the snapshot taken right after dispatch, with the
	// stage's cells in Pending or Refreshing state.
	StepInFlight StepKind = iota
	// StepSettled is the snapshot taken once every cell dispatched in the
	// stage has settled.
	StepSettled
)

// Step is one observable segment of a pass.
type Step struct {
	// Props is an immutable snapshot of the bag after this segment.
	Props cell.Bag
	Kind  StepKind
	// Stage is the zero-based index of the stage this segment belongs to.
	Stage int
	// Failed is set on a settled step when any cell of the stage failed.
	// The pass stops here; later stages are not run.
	Failed bool
	// Final is set on the settled step of the last stage of a clean pass.
	Final bool
}

// Executor drives one pass over a molecule. It exclusively owns its bag
// while the pass is running; observers only ever see clones.
type Executor struct {
	stages     molecule.Molecule
	bag        cell.Bag
	pos        int
	settling   bool
	dispatched []string
	done       bool
}

// New creates an executor for one pass, seeded with carried-forward cells.
// A nil seed starts from an empty bag.
func New(m molecule.Molecule, seed cell.Bag) *Executor {
	bag := cell.Bag{}
	if seed != nil {
		bag = seed.Clone()
	}
	return &Executor{
		stages: m,
		bag:    bag,
		done:   len(m) == 0,
	}
}

// Next advances the pass by one segment. The latest externally supplied
// inputs are merged over carried-forward outputs first; an external key
// always wins over a stale engine output of the same name. Next returns
// ErrPassComplete once the pass has ended and a context error if the caller
// stops waiting mid-settle.
func (e *Executor) Next(ctx context.Context, inputs map[string]any) (Step, error) {
	if e.done {
		return Step{}, ErrPassComplete
	}
	e.mergeInputs(inputs)

	if !e.settling {
		return e.dispatch(ctx)
	}
	return e.settle(ctx)
}

// Bag returns a snapshot of the current bag.
func (e *Executor) Bag() cell.Bag {
	return e.bag.Clone()
}

func (e *Executor) mergeInputs(inputs map[string]any) {
	for name, v := range inputs {
		e.bag[name] = cell.NewResolved(v)
	}
}

// dispatch runs the first half of a stage: settle carry-over cells, invoke
// every atom of the stage, and yield the in-flight snapshot.
func (e *Executor) dispatch(ctx context.Context) (Step, error) {
	logger := ctxlog.FromContext(ctx)
	stage := e.stages[e.pos]

	if err := e.settleCarryOver(ctx, stage); err != nil {
		return Step{}, err
	}

	// Snapshot props before mutating any stage cell so every atom in the
	// stage sees the same view and none sees a sibling's in-flight state.
	props := molecule.NewProps(e.bag.Values())

	names := make([]string, 0, len(stage))
	for name := range stage {
		names = append(names, name)
	}
	sort.Strings(names)

	e.dispatched = e.dispatched[:0]
	for _, name := range names {
		cur := e.bag.Lookup(name)
		if cur.IsFailed() {
			// A failed slot is never re-invoked within the same run; the
			// error stays verbatim until the next full restart.
			logger.Debug("Skipping failed atom.", "atom", name, "stage", e.pos)
			continue
		}

		op := stage[name](ctx, props)
		if op == nil {
			logger.Debug("Atom reported absent inputs.", "atom", name, "stage", e.pos)
			e.bag[name] = cell.NewAbsent()
			continue
		}

		if cur.IsResolved() {
			prev, _ := cur.BestValue()
			e.bag[name] = cell.NewRefreshing(prev, op)
		} else {
			e.bag[name] = cell.NewPending(op)
		}
		e.dispatched = append(e.dispatched, name)
	}
	logger.Debug("Stage dispatched.", "stage", e.pos, "inFlight", len(e.dispatched))

	e.settling = true
	return Step{Props: e.bag.Clone(), Kind: StepInFlight, Stage: e.pos}, nil
}

// settle runs the second half of a stage: join every dispatched operation,
// record outcomes, and yield the settled snapshot.
func (e *Executor) settle(ctx context.Context) (Step, error) {
	logger := ctxlog.FromContext(ctx)
	stage := e.stages[e.pos]

	failed := false
	for _, name := range e.dispatched {
		op := e.bag.Lookup(name).Op()
		if op == nil {
			continue
		}
		select {
		case <-op.Done():
		case <-ctx.Done():
			return Step{}, ctx.Err()
		}
		value, err, _ := op.TryResult()
		switch {
		case err != nil:
			logger.Debug("Atom failed.", "atom", name, "stage", e.pos, "error", err)
			e.bag[name] = cell.NewFailed(err)
			failed = true
		case value == nil:
			e.bag[name] = cell.NewAbsent()
		default:
			e.bag[name] = cell.NewResolved(value)
		}
	}
	// A slot that was already Failed before dispatch still fails the stage.
	for name := range stage {
		if e.bag.Lookup(name).IsFailed() {
			failed = true
		}
	}

	settled := e.pos
	final := settled == len(e.stages)-1
	e.pos++
	e.settling = false
	e.dispatched = nil
	if failed || final {
		e.done = true
	}
	logger.Debug("Stage settled.", "stage", settled, "failed", failed, "final", final)

	return Step{
		Props:  e.bag.Clone(),
		Kind:   StepSettled,
		Stage:  settled,
		Failed: failed,
		Final:  final && !failed,
	}, nil
}

// settleCarryOver finishes leftover in-flight cells that this stage does not
// own before dispatch. Refreshing cells are awaited to a plain value or
// error; a refresh failure discards the previous value. Pending cells with
// no previous value are external inputs still in flight and are left alone.
func (e *Executor) settleCarryOver(ctx context.Context, stage molecule.Stage) error {
	for name, c := range e.bag {
		if _, owned := stage[name]; owned {
			continue
		}
		if !c.IsRefreshing() {
			continue
		}
		op := c.Op()
		select {
		case <-op.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
		value, err, _ := op.TryResult()
		switch {
		case err != nil:
			e.bag[name] = cell.NewFailed(err)
		case value == nil:
			e.bag[name] = cell.NewAbsent()
		default:
			e.bag[name] = cell.NewResolved(value)
		}
	}
	return nil
}
