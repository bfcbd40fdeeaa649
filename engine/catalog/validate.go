package catalog

import "strings"

// validateEntry checks one entry against the structural invariants.
func validateEntry(e Entry) error {
	if strings.TrimSpace(e.ID) == "" {
		return &SchemaError{EntryID: e.ID, Wrapped: ErrEmptyID}
	}
	if strings.TrimSpace(e.RawText) == "" {
		return &SchemaError{EntryID: e.ID, Wrapped: ErrEmptyRawText}
	}
	for _, c := range e.Criteria {
		if err := validateCriterion(e.ID, c.Label, c); err != nil {
			return err
		}
	}
	return nil
}

// validateCriterion checks a criterion node and its subtree. path is the
// label path from the entry root, used in error reporting.
func validateCriterion(entryID, path string, c Criterion) error {
	if strings.TrimSpace(c.Label) == "" {
		return &SchemaError{EntryID: entryID, Path: path, Wrapped: ErrEmptyLabel}
	}

	if c.Leaf() {
		if strings.TrimSpace(c.EvidenceHint) == "" {
			return &SchemaError{EntryID: entryID, Path: path, Wrapped: ErrMissingEvidenceHint}
		}
		return nil
	}

	if !ValidCombinators[c.Combinator] {
		return &SchemaError{EntryID: entryID, Path: path, Wrapped: ErrUnknownCombinator}
	}
	if c.Combinator == AtLeastN {
		if c.MinRequired < 1 || c.MinRequired > len(c.Sub) {
			return &SchemaError{EntryID: entryID, Path: path, Wrapped: ErrUnsatisfiable}
		}
	}

	for _, sub := range c.Sub {
		if err := validateCriterion(entryID, path+"."+sub.Label, sub); err != nil {
			return err
		}
	}
	return nil
}
