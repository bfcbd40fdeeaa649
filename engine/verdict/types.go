// Package verdict parses the judgment engine's semi-structured response
// into a typed verdict and renders it for display. Parsing is purely
// pattern-based and deterministic; a response whose structure cannot be
// recognized degrades to verbatim rendering instead of failing.
package verdict

// Status classifies one criterion against the findings.
type Status string

const (
	StatusMet     Status = "MET"
	StatusUnclear Status = "UNCLEAR"
	StatusMissing Status = "MISSING"
)

// Strength rates the overall case for an entry.
type Strength string

const (
	StrengthStrong   Strength = "STRONG"
	StrengthModerate Strength = "MODERATE"
	StrengthWeak     Strength = "WEAK"
)

// CriterionStatus is one parsed criterion classification.
type CriterionStatus struct {
	EntryID       string
	Label         string
	Status        Status
	CitedEvidence string
	Strength      Strength
}

// SectionKind identifies one of the expected report sections.
type SectionKind string

const (
	SectionMatches  SectionKind = "matching_listings"
	SectionCriteria SectionKind = "criteria_analysis"
	SectionGaps     SectionKind = "evidence_gaps"
	SectionStrength SectionKind = "strength_assessment"
	SectionOther    SectionKind = "other"
)

// Section is one delimited block of the response.
type Section struct {
	Kind  SectionKind
	Title string
	Body  string
}

// Verdict is the immutable parse result for one query. It is
// constructed once per query and discarded after rendering.
type Verdict struct {
	MatchedEntries []string
	Statuses       []CriterionStatus
	Sections       []Section
	Degraded       bool
	DegradedReason string
	Warnings       []string
	Raw            string
}
