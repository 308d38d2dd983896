// Package molecule defines the graph model the engine executes: named
// asynchronous atoms grouped into stages, and the ordered sequence of
// stages that forms a molecule.
package molecule

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/moleculego/internal/future"
)

// Atom starts one named fetch operation. It receives a read-only view of the
// best-known props and returns a handle to the started operation, or nil
// when a required input is missing and the operation cannot run yet. Atoms
// must tolerate being invoked repeatedly with different props snapshots and
// must not mutate their input.
type Atom func(ctx context.Context, props Props) *future.Future

// Stage is an unordered group of independent atoms dispatched concurrently.
type Stage map[string]Atom

// Molecule is the ordered sequence of stages. Stage i+1 may read any value
// produced in stages 0..i; ordering is the only dependency mechanism.
type Molecule []Stage

// Names returns every atom name in the molecule, sorted.
func (m Molecule) Names() []string {
	var names []string
	for _, stage := range m {
		for name := range stage {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Validate rejects molecules that reuse an atom name across stages. Two
// atoms writing the same slot would race on the bag, which is caller error.
func (m Molecule) Validate() error {
	seen := make(map[string]int)
	for i, stage := range m {
		for name := range stage {
			if prev, ok := seen[name]; ok {
				return fmt.Errorf("atom %q defined in both stage %d and stage %d", name, prev, i)
			}
			seen[name] = i
		}
	}
	return nil
}

// Props is the read-only view of best-known values an atom is invoked with.
type Props struct {
	values map[string]any
}

// NewProps builds a props view over the given values.
func NewProps(values map[string]any) Props {
	return Props{values: values}
}

// Value returns the best-known value for name. ok is false when the slot is
// absent, still in flight without a previous value, or failed.
func (p Props) Value(name string) (any, bool) {
	v, ok := p.values[name]
	return v, ok
}

// Has reports whether a best-known value exists for name.
func (p Props) Has(name string) bool {
	_, ok := p.values[name]
	return ok
}

// Names returns the names that currently carry a value, sorted.
func (p Props) Names() []string {
	names := make([]string, 0, len(p.values))
	for name := range p.values {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
