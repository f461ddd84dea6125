// Package soulerr defines the error taxonomy shared across the Soul
// Engine's subsystems: transient, validation, integrity, fatal and
// external failures each get distinct propagation policy upstream.
package soulerr

import "errors"

// Kind classifies a failure so callers can decide how to react without
// string-matching error messages.
type Kind int

const (
	// Transient failures may succeed on retry: network hiccups, generator
	// 5xx responses, a file briefly busy.
	Transient Kind = iota
	// Validation failures mean a rewritten identity document no longer
	// satisfies its structural invariants; the caller should recover from
	// history rather than persist it.
	Validation
	// Integrity failures mean an event payload or on-disk artifact is
	// malformed; the caller should drop it and log, not crash.
	Integrity
	// Fatal failures mean the process cannot usefully continue, e.g. no
	// identity document exists at startup.
	Fatal
	// External failures mean an adapter or collaborator is unavailable;
	// the caller should degrade and retry on demand.
	External
)

func (k Kind) String() string {
	switch k {
	case Transient:
		return "transient"
	case Validation:
		return "validation"
	case Integrity:
		return "integrity"
	case Fatal:
		return "fatal"
	case External:
		return "external"
	default:
		return "unknown"
	}
}

// Error wraps an underlying error with a Kind.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Op != "" {
		return e.Kind.String() + ": " + e.Op + ": " + e.Err.Error()
	}
	return e.Kind.String() + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

// New wraps err with the given kind and operation label. Returns nil if
// err is nil, so it can be used in a direct return-and-wrap idiom.
func New(kind Kind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

// Is reports whether err carries the given Kind.
func Is(err error, kind Kind) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}
