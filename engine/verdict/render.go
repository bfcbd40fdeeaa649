package verdict

import (
	"fmt"
	"html"
	"regexp"
	"strings"
)

// Markup substitutions run on escaped text only. Every pattern here
// must match its escaped form, never raw input.
var (
	escMetRe     = regexp.MustCompile(`(?:\x{2705}|\x{2713}|\x{2714})\s*MET\b|\bMET\b`)
	escUnclearRe = regexp.MustCompile(`\x{2753}\s*UNCLEAR\b|\bUNCLEAR\b`)
	escMissingRe = regexp.MustCompile(`(?:\x{274c}|\x{2717}|\x{2718})\s*MISSING\b|\bMISSING\b`)
	escStrongRe  = regexp.MustCompile(`\bSTRONG\b`)
	escModRe     = regexp.MustCompile(`\bMODERATE\b`)
	escWeakRe    = regexp.MustCompile(`\bWEAK\b`)
	escListingRe = regexp.MustCompile(`\b\d{1,2}\.\d{2}\b`)
)

// Render converts a verdict into display HTML. All input text is
// HTML-escaped before any structural markup is substituted, so content
// from the judgment engine or the original query can never introduce
// foreign markup.
func Render(v *Verdict) string {
	var b strings.Builder
	b.WriteString(`<div class="verdict">` + "\n")

	if v.Degraded {
		fmt.Fprintf(&b, `<div class="degraded-banner">Partial parse: %s. Displaying best-effort output.</div>`+"\n",
			html.EscapeString(v.DegradedReason))
	}

	for _, w := range v.Warnings {
		fmt.Fprintf(&b, `<div class="warning">%s</div>`+"\n", html.EscapeString(w))
	}

	if len(v.Sections) == 0 {
		// Nothing recognized at all; verbatim fallback.
		fmt.Fprintf(&b, `<pre class="raw-response">%s</pre>`+"\n", html.EscapeString(v.Raw))
		b.WriteString(`</div>`)
		return b.String()
	}

	for _, s := range v.Sections {
		if s.Title != "" {
			fmt.Fprintf(&b, `<h3 class="section-%s">%s</h3>`+"\n", s.Kind, html.EscapeString(s.Title))
		}
		if s.Body == "" {
			continue
		}
		b.WriteString(`<div class="section-body">` + "\n")
		for _, line := range strings.Split(s.Body, "\n") {
			if strings.TrimSpace(line) == "" {
				continue
			}
			fmt.Fprintf(&b, "<p>%s</p>\n", markupLine(line))
		}
		b.WriteString(`</div>` + "\n")
	}

	b.WriteString(`</div>`)
	return b.String()
}

// markupLine escapes the line, then wraps recognized markers in styled
// spans. The escape must come first; this ordering is the safety
// invariant of the renderer.
func markupLine(line string) string {
	out := html.EscapeString(line)
	out = escMetRe.ReplaceAllStringFunc(out, spanWrap("status status-met"))
	out = escUnclearRe.ReplaceAllStringFunc(out, spanWrap("status status-unclear"))
	out = escMissingRe.ReplaceAllStringFunc(out, spanWrap("status status-missing"))
	out = escStrongRe.ReplaceAllStringFunc(out, spanWrap("strength strength-strong"))
	out = escModRe.ReplaceAllStringFunc(out, spanWrap("strength strength-moderate"))
	out = escWeakRe.ReplaceAllStringFunc(out, spanWrap("strength strength-weak"))
	out = escListingRe.ReplaceAllStringFunc(out, spanWrap("listing-ref"))
	return out
}

func spanWrap(class string) func(string) string {
	return func(match string) string {
		return `<span class="` + class + `">` + match + `</span>`
	}
}
