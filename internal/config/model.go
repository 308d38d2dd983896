// Package config holds the format-agnostic representation of a molecule
// file: ordered stages of named atoms, static inputs, and session settings.
// Argument expressions stay unevaluated here; they are evaluated on every
// atom invocation against the current props.
package config

import (
	"time"

	"github.com/hashicorp/hcl/v2"
)

// Model is the unified representation of everything loaded from disk.
type Model struct {
	Session *Session
	// Inputs are the caller-supplied input attributes of the molecule file.
	// They are constant expressions, evaluated once at startup.
	Inputs map[string]hcl.Expression
	Stages []*Stage
}

// Session carries session-level settings.
type Session struct {
	// PollInterval is the delay between a clean completion and the next
	// automatic pass. Zero means the engine default.
	PollInterval time.Duration
}

// Stage is one `stage` block: a group of atoms dispatched concurrently.
type Stage struct {
	Atoms []*Atom
	// DefRange points at the block for error messages.
	DefRange hcl.Range
}

// Atom is one `atom` block inside a stage.
type Atom struct {
	// Name is the block label; it becomes the props key of the result.
	Name string
	// Runner names the registered handler that performs the fetch.
	Runner string
	// Arguments maps argument names to their unevaluated expressions.
	// Expressions may reference earlier results through the props object.
	Arguments map[string]hcl.Expression
	DefRange  hcl.Range
}
