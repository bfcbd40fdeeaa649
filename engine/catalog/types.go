// Package catalog defines the structured representation of the rule catalog:
// entries, their criterion trees, and category introductions. It acts as the
// validation gate at load time and is the single source of truth for rule text.
package catalog

// Combinator governs how a criterion's sub-criteria combine.
type Combinator string

const (
	// All requires every sub-criterion to be satisfied.
	All Combinator = "ALL"
	// Any requires at least one sub-criterion to be satisfied.
	Any Combinator = "ANY"
	// AtLeastN requires MinRequired sub-criteria to be satisfied.
	AtLeastN Combinator = "AT_LEAST_N"
)

// ValidCombinators is the set of recognised combinators.
var ValidCombinators = map[Combinator]bool{
	All: true, Any: true, AtLeastN: true,
}

// Criterion is a single node in an entry's criterion tree. A criterion with
// no sub-criteria is a leaf and must carry an evidence hint; a composite
// criterion combines its children according to Combinator. One node shape
// covers both cases so the tree can be walked uniformly.
type Criterion struct {
	Label        string      `json:"label"`
	Description  string      `json:"description"`
	Combinator   Combinator  `json:"combinator,omitempty"`
	MinRequired  int         `json:"min_required,omitempty"` // only meaningful for AT_LEAST_N
	Sub          []Criterion `json:"sub,omitempty"`
	EvidenceHint string      `json:"evidence_hint,omitempty"`
}

// Leaf reports whether the criterion has no sub-criteria.
func (c Criterion) Leaf() bool { return len(c.Sub) == 0 }

// Entry is one top-level rule: a numbered listing with verbatim source text
// and a structured criterion tree. RawText is never rewritten after ingestion.
type Entry struct {
	ID        string      `json:"id"`
	Title     string      `json:"title"`
	Category  string      `json:"category"`
	RawText   string      `json:"raw_text"`
	Summary   string      `json:"summary,omitempty"`
	SourceURL string      `json:"source_url,omitempty"`
	Criteria  []Criterion `json:"criteria,omitempty"`
}

// CriterionLabels returns every criterion label in the entry, depth-first.
func (e Entry) CriterionLabels() []string {
	var labels []string
	var walk func(cs []Criterion)
	walk = func(cs []Criterion) {
		for _, c := range cs {
			labels = append(labels, c.Label)
			walk(c.Sub)
		}
	}
	walk(e.Criteria)
	return labels
}

// CategoryIntro is the evaluation guidance that prefaces a category of
// entries (e.g. a body system's general evaluation rules). Indexed alongside
// entries so general guidance accompanies listing text at judgment time.
type CategoryIntro struct {
	ID        string `json:"id"`
	Category  string `json:"category"`
	IntroText string `json:"intro_text"`
	SourceURL string `json:"source_url,omitempty"`
}

// Ref is a lightweight entry reference for listings pages.
type Ref struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Category string `json:"category"`
}
