package verdict

import (
	"fmt"
	"regexp"
	"strings"
)

// Review cross-checks a parsed analysis against the findings it was
// generated from and returns advisory warnings. Warnings never fail the
// request; they are attached to the verdict for the attorney to weigh.
func Review(analysis, findings string) []string {
	var warnings []string
	warnings = append(warnings, checkSections(analysis)...)
	warnings = append(warnings, checkAgeCategory(analysis, findings)...)
	warnings = append(warnings, checkVision(analysis, findings)...)
	return warnings
}

var requiredSections = []struct {
	keyword string
	label   string
}{
	{"MATCHING LISTINGS", "listing identification section"},
	{"CRITERIA ANALYSIS", "criteria analysis section"},
	{"EVIDENCE GAPS", "evidence gaps section"},
	{"STRENGTH ASSESSMENT", "strength assessment section"},
	{"SOURCES", "sources section with listing links"},
}

func checkSections(analysis string) []string {
	upper := strings.ToUpper(analysis)
	var warnings []string
	for _, s := range requiredSections {
		if !strings.Contains(upper, s.keyword) {
			warnings = append(warnings, "Missing section: "+s.label)
		}
	}
	return warnings
}

// ageRe matches "age 55", "aged 55", "55-year-old", and "55 year old".
var ageRe = regexp.MustCompile(`(?:aged?)\s*[:\s]\s*(\d{2})|(\d{2})\s*(?:-year-old|\s+year\s+old)`)

// AgeCategory returns the SSA age classification for an age.
func AgeCategory(age int) string {
	switch {
	case age < 50:
		return "younger individual"
	case age < 55:
		return "closely approaching advanced age"
	case age < 60:
		return "advanced age"
	case age < 65:
		return "closely approaching retirement age"
	default:
		return "retirement age"
	}
}

func checkAgeCategory(analysis, findings string) []string {
	m := ageRe.FindStringSubmatch(strings.ToLower(findings))
	if m == nil {
		return nil
	}
	ageStr := m[1]
	if ageStr == "" {
		ageStr = m[2]
	}
	var age int
	fmt.Sscanf(ageStr, "%d", &age)

	lower := strings.ToLower(analysis)
	correct := AgeCategory(age)
	var warnings []string
	if age >= 55 && strings.Contains(lower, "closely approaching advanced age") {
		warnings = append(warnings, fmt.Sprintf(
			"AGE ERROR: claimant is %d years old = %q. Analysis says \"closely approaching advanced age\" (ages 50-54 only).",
			age, correct))
	}
	if age >= 50 && age < 55 &&
		strings.Contains(lower, "advanced age") &&
		!strings.Contains(lower, "closely approaching advanced age") {
		warnings = append(warnings, fmt.Sprintf(
			"AGE ERROR: claimant is %d years old = %q. Analysis may use the wrong age category.",
			age, correct))
	}
	return warnings
}

var visionKeywords = []string{
	"visual acuity", "snellen", "retinopathy", "visual field",
	"vision loss", "macular", "optic",
}

var hearingContaminants = []string{
	"audiologist", "audiometric", "otoscopic",
	"hearing evaluation", "cochlear", "audiological",
}

func checkVision(analysis, findings string) []string {
	findingsLower := strings.ToLower(findings)
	hasVision := false
	for _, kw := range visionKeywords {
		if strings.Contains(findingsLower, kw) {
			hasVision = true
			break
		}
	}
	if !hasVision {
		return nil
	}

	var warnings []string
	analysisLower := strings.ToLower(analysis)
	if strings.Contains(analysisLower, "cannot be calculated") ||
		strings.Contains(analysisLower, "cannot be determined") {
		warnings = append(warnings,
			"CALCULATION GAP: analysis says values cannot be calculated despite visual acuity data being available.")
	}

	var found []string
	for _, term := range hearingContaminants {
		if strings.Contains(analysisLower, term) {
			found = append(found, term)
		}
	}
	if len(found) > 0 {
		warnings = append(warnings,
			"CONTAMINATION WARNING: vision case contains hearing-related recommendations: "+strings.Join(found, ", ")+".")
	}
	return warnings
}
