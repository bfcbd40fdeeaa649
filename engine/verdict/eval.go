package verdict

import "github.com/ListingLensAI/listinglens-mvp/engine/catalog"

// EntryOutcome is the combinator rollup of one entry's criterion tree
// against the parsed statuses.
type EntryOutcome struct {
	EntryID string `json:"entry_id"`
	Status  Status `json:"status"`
}

// Evaluate rolls the parsed leaf statuses up through an entry's
// criterion tree. A leaf the judgment never classified counts as
// UNCLEAR: absence of a classification is not evidence either way.
// Top-level criteria combine as ALL. An entry without a criterion
// tree is UNCLEAR: there is nothing to satisfy, so nothing is met.
func Evaluate(e catalog.Entry, statuses []CriterionStatus) EntryOutcome {
	if len(e.Criteria) == 0 {
		return EntryOutcome{EntryID: e.ID, Status: StatusUnclear}
	}
	byLabel := make(map[string]Status)
	for _, cs := range statuses {
		if cs.EntryID == e.ID {
			byLabel[cs.Label] = cs.Status
		}
	}
	return EntryOutcome{EntryID: e.ID, Status: combineAll(e.Criteria, byLabel)}
}

func evalCriterion(c catalog.Criterion, byLabel map[string]Status) Status {
	if c.Leaf() {
		if s, ok := byLabel[c.Label]; ok {
			return s
		}
		return StatusUnclear
	}
	switch c.Combinator {
	case catalog.Any:
		return combineAny(c.Sub, byLabel)
	case catalog.AtLeastN:
		return combineAtLeast(c.Sub, byLabel, c.MinRequired)
	default:
		return combineAll(c.Sub, byLabel)
	}
}

// combineAll is MET only when every child is MET, MISSING as soon as
// one child is MISSING, UNCLEAR otherwise.
func combineAll(cs []catalog.Criterion, byLabel map[string]Status) Status {
	out := StatusMet
	for _, c := range cs {
		switch evalCriterion(c, byLabel) {
		case StatusMissing:
			return StatusMissing
		case StatusUnclear:
			out = StatusUnclear
		}
	}
	return out
}

// combineAny is MET as soon as one child is MET, MISSING only when
// every child is MISSING, UNCLEAR otherwise.
func combineAny(cs []catalog.Criterion, byLabel map[string]Status) Status {
	out := StatusMissing
	for _, c := range cs {
		switch evalCriterion(c, byLabel) {
		case StatusMet:
			return StatusMet
		case StatusUnclear:
			out = StatusUnclear
		}
	}
	return out
}

// combineAtLeast needs n MET children. It is MISSING once too few
// children could still be MET, UNCLEAR while unclassified children
// could tip it either way.
func combineAtLeast(cs []catalog.Criterion, byLabel map[string]Status, n int) Status {
	met, unclear := 0, 0
	for _, c := range cs {
		switch evalCriterion(c, byLabel) {
		case StatusMet:
			met++
		case StatusUnclear:
			unclear++
		}
	}
	if met >= n {
		return StatusMet
	}
	if met+unclear < n {
		return StatusMissing
	}
	return StatusUnclear
}
