// Package judge assembles the bounded, grounding-constrained request
// sent to the judgment engine. It performs no inference itself: its only
// job is a complete, unambiguous request built from verbatim rule text.
package judge

import (
	"fmt"
	"strings"

	"github.com/ListingLensAI/listinglens-mvp/engine/catalog"
	"github.com/ListingLensAI/listinglens-mvp/engine/semantic"
)

// MinFindingsLength is the minimum query length worth a judgment call.
const MinFindingsLength = 20

// introTruncateLimit bounds category intro text in the request.
const introTruncateLimit = 3000

const truncationMarker = "\n[... truncated for brevity ...]"

// NoEvidenceError means the findings text is empty or too short to
// analyze. User-correctable; no judgment engine call is made.
type NoEvidenceError struct {
	Length int
}

func (e *NoEvidenceError) Error() string {
	if e.Length == 0 {
		return "judge: findings text is empty"
	}
	return fmt.Sprintf("judge: findings text too short (%d chars, need at least %d)", e.Length, MinFindingsLength)
}

// systemPrompt is the fixed instruction template. It constrains the
// judgment engine to criteria literally present in the supplied rule
// text, requires a citation for every MET classification, and directs
// ambiguous evidence to UNCLEAR rather than invention.
const systemPrompt = `You are a rule-catalog analysis assistant for disability attorneys. You help lawyers understand how a client's factual findings map to the catalog entries supplied below.

IMPORTANT DISCLAIMERS:
- This is a research aid, not legal advice
- All analysis must be verified by the attorney

CRITICAL RULES:
- Only reference criteria that literally appear in the rule text supplied to you. Never invent or paraphrase criteria that are not present.
- Classify EVERY leaf criterion into exactly one of MET, UNCLEAR, or MISSING.
- Never mark a criterion MET without quoting or closely paraphrasing the specific finding that satisfies it.
- If the evidence for a criterion is ambiguous or partial, classify it UNCLEAR. Do not guess.

SSA AGE CLASSIFICATIONS (use these exact categories, no exceptions):
- "Younger individual": under age 50
- "Closely approaching advanced age": age 50-54
- "Advanced age": age 55 and older
- "Closely approaching retirement age": age 60-64

Given the catalog entries below and the client's findings, provide:

1. POTENTIALLY MATCHING LISTINGS
   For each entry that could apply: its number, title, and why it might apply.

2. CRITERIA ANALYSIS
   For each potentially matching entry, go through EACH criterion and state:
   - ` + "✅" + ` MET - the findings clearly support this criterion (cite the specific evidence)
   - ` + "❓" + ` UNCLEAR - partial evidence but not enough to confirm
   - ` + "❌" + ` MISSING - no evidence was provided for this criterion

3. EVIDENCE GAPS
   List what additional evidence should be obtained, which criterion it would satisfy, and what it should show.

4. STRENGTH ASSESSMENT
   Rate the case for each entry: STRONG (most criteria clearly met), MODERATE (some criteria met, gaps obtainable), or WEAK (significant criteria missing).

5. SOURCES
   List each entry you referenced as: Listing X.XX - Title - URL, using the source URLs provided.

Cite criteria by letter (A, B, C) and sub-criteria by number. Do NOT hallucinate criteria.`

// Request is the complete judgment request: verbatim rule text plus the
// unmodified findings under a fixed instruction template.
type Request struct {
	Findings string
	Entries  []catalog.Entry
	Intros   []catalog.CategoryIntro
	System   string
	User     string
}

// Build assembles a Request from the findings and the retrieval results,
// resolving verbatim entry text from the catalog. It fails with
// NoEvidenceError when the findings are empty or under MinFindingsLength
// characters.
func Build(findings string, retrieved []semantic.SearchResult, cat *catalog.Catalog) (*Request, error) {
	trimmed := strings.TrimSpace(findings)
	if len(trimmed) < MinFindingsLength {
		return nil, &NoEvidenceError{Length: len(trimmed)}
	}

	req := &Request{Findings: trimmed, System: systemPrompt}

	seenEntry := make(map[string]bool)
	seenIntro := make(map[string]bool)
	for _, res := range retrieved {
		switch res.DocType {
		case semantic.DocTypeEntry:
			if seenEntry[res.EntryID] {
				continue
			}
			entry, err := cat.Lookup(res.EntryID)
			if err != nil {
				return nil, fmt.Errorf("judge: resolve retrieved entry %q: %w", res.EntryID, err)
			}
			seenEntry[res.EntryID] = true
			req.Entries = append(req.Entries, entry)
		case semantic.DocTypeCategoryIntro:
			if seenIntro[res.Category] {
				continue
			}
			intro, ok := cat.IntroFor(res.Category)
			if !ok {
				continue
			}
			seenIntro[res.Category] = true
			req.Intros = append(req.Intros, intro)
		}
	}

	req.User = buildUserPrompt(trimmed, req.Entries, req.Intros)
	return req, nil
}

func buildUserPrompt(findings string, entries []catalog.Entry, intros []catalog.CategoryIntro) string {
	var b strings.Builder
	rule := strings.Repeat("-", 60)
	thin := strings.Repeat("-", 40)

	if len(entries) > 0 {
		b.WriteString("CATALOG ENTRIES (retrieved from database):\n")
		b.WriteString(rule + "\n")
		for _, e := range entries {
			fmt.Fprintf(&b, "Listing %s - %s (%s)\n", e.ID, e.Title, e.Category)
			if e.SourceURL != "" {
				fmt.Fprintf(&b, "Source: %s\n", e.SourceURL)
			}
			b.WriteString(e.RawText)
			b.WriteString("\n" + thin + "\n")
		}
		b.WriteString("\n")
	}

	if len(intros) > 0 {
		b.WriteString("EVALUATION GUIDELINES (from relevant category sections):\n")
		b.WriteString(rule + "\n")
		for _, in := range intros {
			fmt.Fprintf(&b, "Section: %s\n", in.Category)
			text := in.IntroText
			if len(text) > introTruncateLimit {
				text = text[:introTruncateLimit] + truncationMarker
			}
			b.WriteString(text)
			b.WriteString("\n" + thin + "\n")
		}
		b.WriteString("\n")
	}

	b.WriteString("CLIENT'S FINDINGS:\n")
	b.WriteString(rule + "\n")
	b.WriteString(findings)
	b.WriteString("\n" + rule + "\n\n")
	b.WriteString("Please analyze these findings against the catalog entries above.")
	return b.String()
}

// Covers reports whether the request's rule text contains the given
// criterion label for the given entry. Used to verify that a verdict
// only references criteria it was actually shown.
func (r *Request) Covers(entryID, label string) bool {
	for _, e := range r.Entries {
		if e.ID != entryID {
			continue
		}
		for _, known := range e.CriterionLabels() {
			if known == label {
				return true
			}
		}
	}
	return false
}

// EntryIDs returns the ids of all entries included in the request.
func (r *Request) EntryIDs() []string {
	ids := make([]string, len(r.Entries))
	for i, e := range r.Entries {
		ids[i] = e.ID
	}
	return ids
}
