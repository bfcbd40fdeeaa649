package catalog

import (
	"errors"
	"fmt"
)

// Sentinel errors for structural invariant violations.
var (
	ErrEmptyID             = errors.New("entry id is empty")
	ErrDuplicateID         = errors.New("duplicate entry id")
	ErrEmptyRawText        = errors.New("entry raw text is empty")
	ErrEmptyLabel          = errors.New("criterion label is empty")
	ErrMissingEvidenceHint = errors.New("leaf criterion has no evidence hint")
	ErrUnknownCombinator   = errors.New("unknown combinator")
	ErrUnsatisfiable       = errors.New("combinator cannot be satisfied by its sub-criteria")
)

// SchemaError reports a catalog that fails a structural invariant. Loading
// must not succeed when one is returned; serving never starts on a bad
// catalog.
type SchemaError struct {
	EntryID string
	Path    string // criterion label path, empty for entry-level faults
	Wrapped error
}

func (e *SchemaError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("catalog: entry %q: %s", e.EntryID, e.Wrapped)
	}
	return fmt.Sprintf("catalog: entry %q criterion %q: %s", e.EntryID, e.Path, e.Wrapped)
}

func (e *SchemaError) Unwrap() error { return e.Wrapped }

// NotFoundError reports a lookup for an unknown entry id.
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("catalog: entry %q not found", e.ID)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
