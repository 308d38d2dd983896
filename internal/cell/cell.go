// Package cell defines the five-state value cell that tracks one named
// result through its lifecycle, and the props bag that maps names to cells.
//
// A cell is a small immutable value; every transition produces a new cell
// that overwrites the previous one in the bag. Consumers classify a cell
// with the Is* helpers and read its best-known value with BestValue.
package cell

import (
	"github.com/vk/moleculego/internal/future"
)

// State enumerates the lifecycle of a named result.
type State int

const (
	// Absent means the owning atom was not invoked because a required
	// input is missing, or reported no value.
	Absent State = iota
	// Pending means the atom's operation is outstanding with no previous
	// value to fall back on.
	Pending
	// Refreshing means the atom was re-invoked while a previous resolved
	// value is still known; that value stays readable until settlement.
	Refreshing
	// Resolved means the operation completed with a value.
	Resolved
	// Failed means the operation failed; the error is kept verbatim.
	Failed
)

// String returns the lowercase name of the state for logs.
func (s State) String() string {
	switch s {
	case Absent:
		return "absent"
	case Pending:
		return "pending"
	case Refreshing:
		return "refreshing"
	case Resolved:
		return "resolved"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Cell is one named slot of the props bag.
type Cell struct {
	state State
	value any
	prev  any
	err   error
	op    *future.Future
}

// NewAbsent returns a cell for a slot whose atom was not invoked.
func NewAbsent() Cell {
	return Cell{state: Absent}
}

// NewPending returns a cell for a freshly dispatched operation.
func NewPending(op *future.Future) Cell {
	return Cell{state: Pending, op: op}
}

// NewRefreshing returns a cell for a re-dispatched operation that still
// carries the previous resolved value.
func NewRefreshing(prev any, op *future.Future) Cell {
	return Cell{state: Refreshing, prev: prev, op: op}
}

// NewResolved returns a settled cell carrying v.
func NewResolved(v any) Cell {
	return Cell{state: Resolved, value: v}
}

// NewFailed returns a settled cell carrying err.
func NewFailed(err error) Cell {
	return Cell{state: Failed, err: err}
}

// State returns the cell's lifecycle state.
func (c Cell) State() State { return c.state }

// IsPending reports whether an operation is outstanding for this cell.
// Both Pending and Refreshing cells count as in flight.
func (c Cell) IsPending() bool { return c.state == Pending || c.state == Refreshing }

// IsRefreshing reports whether the cell is in flight with a previous value.
func (c Cell) IsRefreshing() bool { return c.state == Refreshing }

// IsResolved reports whether the cell settled with a value.
func (c Cell) IsResolved() bool { return c.state == Resolved }

// IsFailed reports whether the cell settled with an error.
func (c Cell) IsFailed() bool { return c.state == Failed }

// BestValue returns the most useful value known for the cell: the settled
// value once resolved, the previous value while refreshing, and nothing in
// every other state.
func (c Cell) BestValue() (any, bool) {
	switch c.state {
	case Resolved:
		return c.value, true
	case Refreshing:
		return c.prev, true
	default:
		return nil, false
	}
}

// Err returns the failure for a Failed cell, nil otherwise.
func (c Cell) Err() error {
	if c.state == Failed {
		return c.err
	}
	return nil
}

// Op returns the outstanding operation for an in-flight cell, nil otherwise.
func (c Cell) Op() *future.Future {
	if c.IsPending() {
		return c.op
	}
	return nil
}
