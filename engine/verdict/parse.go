package verdict

import (
	"regexp"
	"strings"
)

var (
	// listingNumRe matches catalog entry numbers like "1.15" or "12.04".
	listingNumRe = regexp.MustCompile(`\b(\d{1,2}\.\d{2})\b`)

	// headerRe matches numbered or #-prefixed section headers.
	headerRe = regexp.MustCompile(`^\s*(?:#{1,4}\s+|\d{1,2}[.)]\s+)(.+?)\s*$`)

	// Status markers: a checkmark-class symbol adjacent to the keyword,
	// or the exact-case keyword standing alone. Deliberately narrow;
	// phrasing drift fails the match rather than being guessed at.
	metRe     = regexp.MustCompile(`(?:\x{2705}|\x{2713}|\x{2714})\s*MET\b|\bMET\b`)
	unclearRe = regexp.MustCompile(`\x{2753}\s*UNCLEAR\b|\bUNCLEAR\b`)
	missingRe = regexp.MustCompile(`(?:\x{274c}|\x{2717}|\x{2718})\s*MISSING\b|\bMISSING\b`)

	// markerSymbolRe flags lines that look like criterion lines even
	// when no status keyword resolves.
	markerSymbolRe = regexp.MustCompile(`\x{2705}|\x{2713}|\x{2714}|\x{2753}|\x{274c}|\x{2717}|\x{2718}`)

	// Strength keywords match as whole words only, so "STRONGLY" or
	// "WEAKNESS" never count.
	strongRe   = regexp.MustCompile(`\bSTRONG\b`)
	moderateRe = regexp.MustCompile(`\bMODERATE\b`)
	weakRe     = regexp.MustCompile(`\bWEAK\b`)

	// labelRe captures a criterion label like "A", "B.2", "K", or
	// "D.2.a": any single capital letter optionally followed by
	// numeric or lowercase sub-segments, as the catalog schema allows.
	labelRe = regexp.MustCompile(`(?:[Cc]riterion\s+)?\b([A-Z](?:\.(?:\d{1,2}|[a-z]))*)\b\s*[.:)\-]`)
)

var sectionKeywords = []struct {
	kind SectionKind
	key  string
}{
	{SectionMatches, "MATCHING LISTINGS"},
	{SectionCriteria, "CRITERIA ANALYSIS"},
	{SectionGaps, "EVIDENCE GAPS"},
	{SectionStrength, "STRENGTH ASSESSMENT"},
}

// Parse converts a raw judgment response into a Verdict. It never
// fails: unrecognizable structure degrades to a verdict that carries
// the raw text with the degraded flag set.
func Parse(raw string) *Verdict {
	v := &Verdict{Raw: raw}
	if strings.TrimSpace(raw) == "" {
		v.Degraded = true
		v.DegradedReason = "empty response"
		return v
	}

	v.Sections = splitSections(raw)
	seenKinds := make(map[SectionKind]bool)
	for _, s := range v.Sections {
		seenKinds[s.Kind] = true
	}
	var missing []string
	for _, sk := range sectionKeywords {
		if !seenKinds[sk.kind] {
			missing = append(missing, strings.ToLower(sk.key))
		}
	}
	if len(missing) > 0 {
		v.Degraded = true
		v.DegradedReason = "missing sections: " + strings.Join(missing, ", ")
	}

	v.MatchedEntries = extractListingNumbers(raw)
	v.parseCriteria()
	return v
}

// splitSections walks the response line by line, starting a new section
// at every recognized header. Text before the first header becomes an
// untitled other section.
func splitSections(raw string) []Section {
	var sections []Section
	current := Section{Kind: SectionOther}
	var body []string

	flush := func() {
		current.Body = strings.TrimSpace(strings.Join(body, "\n"))
		if current.Title != "" || current.Body != "" {
			sections = append(sections, current)
		}
		body = nil
	}

	for _, line := range strings.Split(raw, "\n") {
		m := headerRe.FindStringSubmatch(line)
		if m == nil {
			body = append(body, line)
			continue
		}
		title := m[1]
		flush()
		current = Section{Kind: classifyHeader(title), Title: title}
	}
	flush()
	return sections
}

func classifyHeader(title string) SectionKind {
	upper := strings.ToUpper(title)
	for _, sk := range sectionKeywords {
		if strings.Contains(upper, sk.key) {
			return sk.kind
		}
	}
	return SectionOther
}

// extractListingNumbers returns every listing number in the text,
// deduplicated, in order of first appearance.
func extractListingNumbers(text string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, m := range listingNumRe.FindAllString(text, -1) {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// parseCriteria scans the criteria analysis section for status lines.
// The current entry context follows the most recent listing number
// seen. A line carrying a marker symbol whose status cannot be resolved
// is skipped and degrades the parse.
func (v *Verdict) parseCriteria() {
	var section *Section
	for i := range v.Sections {
		if v.Sections[i].Kind == SectionCriteria {
			section = &v.Sections[i]
			break
		}
	}
	if section == nil {
		return
	}

	currentEntry := ""
	for _, line := range strings.Split(section.Body, "\n") {
		if m := listingNumRe.FindString(line); m != "" {
			currentEntry = m
		}

		status, rest, ok := matchStatus(line)
		if !ok {
			if markerSymbolRe.MatchString(line) {
				v.Degraded = true
				if v.DegradedReason == "" {
					v.DegradedReason = "unrecognized status marker"
				}
				continue
			}
			continue
		}

		cs := CriterionStatus{
			EntryID:       currentEntry,
			Status:        status,
			CitedEvidence: cleanEvidence(rest),
			Strength:      matchStrength(line),
		}
		if lm := labelRe.FindStringSubmatch(line); lm != nil {
			cs.Label = lm[1]
		}
		v.Statuses = append(v.Statuses, cs)
	}
}

// matchStatus resolves a line's status marker and returns the text
// after the marker. MISSING and UNCLEAR are checked before MET so the
// bare-word fallback of one cannot shadow another.
func matchStatus(line string) (Status, string, bool) {
	type marker struct {
		re     *regexp.Regexp
		status Status
	}
	var best *marker
	bestLoc := []int{-1, -1}
	for _, p := range []marker{
		{missingRe, StatusMissing},
		{unclearRe, StatusUnclear},
		{metRe, StatusMet},
	} {
		loc := p.re.FindStringIndex(line)
		if loc == nil {
			continue
		}
		if best == nil || loc[0] < bestLoc[0] {
			pp := p
			best = &pp
			bestLoc = loc
		}
	}
	if best == nil {
		return "", "", false
	}
	return best.status, line[bestLoc[1]:], true
}

// cleanEvidence strips leading separators from the text that follows a
// status marker.
func cleanEvidence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, ":-–— ")
	return strings.TrimSpace(s)
}

func matchStrength(line string) Strength {
	switch {
	case strongRe.MatchString(line):
		return StrengthStrong
	case moderateRe.MatchString(line):
		return StrengthModerate
	case weakRe.MatchString(line):
		return StrengthWeak
	}
	return ""
}
