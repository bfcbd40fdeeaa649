package verdict

import (
	"regexp"
	"strings"
	"testing"
)

func TestRenderStatusSpans(t *testing.T) {
	out := Render(Parse(sampleResponse))
	for _, want := range []string{
		`<span class="status status-met">`,
		`<span class="status status-unclear">`,
		`<span class="status status-missing">`,
		`<span class="strength strength-moderate">`,
		`<span class="listing-ref">1.15</span>`,
		`<h3 class="section-criteria_analysis">`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

// tagRe matches only the markup Render itself inserts.
var tagRe = regexp.MustCompile(`</?(?:div|h3|p|pre|span)(?:\s[^>]*)?>`)

func assertEscaped(t *testing.T, out string) {
	t.Helper()
	stripped := tagRe.ReplaceAllString(out, "")
	if strings.ContainsAny(stripped, "<>") {
		t.Fatalf("unescaped markup characters outside structural tags:\n%s", stripped)
	}
	// Raw ampersands must only appear as entities.
	cleaned := strings.ReplaceAll(stripped, "&amp;", "")
	cleaned = strings.ReplaceAll(cleaned, "&lt;", "")
	cleaned = strings.ReplaceAll(cleaned, "&gt;", "")
	cleaned = strings.ReplaceAll(cleaned, "&quot;", "")
	cleaned = strings.ReplaceAll(cleaned, "&#34;", "")
	cleaned = strings.ReplaceAll(cleaned, "&#39;", "")
	if strings.Contains(cleaned, "&") {
		t.Fatalf("raw ampersand leaked:\n%s", stripped)
	}
}

func TestRenderEscapesHostileResponse(t *testing.T) {
	hostile := `1. POTENTIALLY MATCHING LISTINGS
<script>alert("x")</script> & listing 1.15
2. CRITERIA ANALYSIS
` + "\u2705" + ` MET - A. "quoted" <b>evidence</b> & more.
3. EVIDENCE GAPS
<img src=x onerror=alert(1)>
4. STRENGTH ASSESSMENT
STRONG & <i>weak</i>.
`
	out := Render(Parse(hostile))
	if strings.Contains(out, "<script>") || strings.Contains(out, "<img") || strings.Contains(out, "<b>") {
		t.Fatalf("hostile markup survived:\n%s", out)
	}
	assertEscaped(t, out)
}

func TestRenderDegradedBanner(t *testing.T) {
	v := Parse("unstructured text with a <tag> inside")
	out := Render(v)
	if !strings.Contains(out, `<div class="degraded-banner">`) {
		t.Fatal("degraded banner missing")
	}
	if strings.Contains(out, "<tag>") {
		t.Fatal("input markup survived in degraded render")
	}
	if !strings.Contains(out, "&lt;tag&gt;") {
		t.Fatal("input not escaped in degraded render")
	}
}

func TestRenderEmptyVerdictFallsBackToRaw(t *testing.T) {
	v := &Verdict{Raw: "a & b", Degraded: true, DegradedReason: "empty response"}
	out := Render(v)
	if !strings.Contains(out, `<pre class="raw-response">a &amp; b</pre>`) {
		t.Fatalf("raw fallback missing:\n%s", out)
	}
}

func TestRenderWarnings(t *testing.T) {
	v := Parse(sampleResponse)
	v.Warnings = []string{`AGE ERROR: check <category>`}
	out := Render(v)
	if !strings.Contains(out, `<div class="warning">AGE ERROR: check &lt;category&gt;</div>`) {
		t.Fatalf("warning not rendered escaped:\n%s", out)
	}
}
