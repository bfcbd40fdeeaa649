package retrieve

import (
	"regexp"
	"strings"
)

// conditionFamily maps trigger keywords found in the findings text to a
// focused sub-query covering that body system's listings.
type conditionFamily struct {
	keywords []string
	query    string
}

var conditionFamilies = []conditionFamily{
	{
		[]string{"visual acuity", "vision loss", "visual field", "retinopathy", "macular", "blindness", "optic", "glaucoma", "cataract"},
		"loss of central visual acuity visual field contraction visual efficiency impairment",
	},
	{
		[]string{"hearing loss", "deaf", "audiometric", "cochlear", "tinnitus"},
		"hearing loss audiometric cochlear implant speech recognition",
	},
	{
		[]string{"back pain", "spine", "disc", "herniation", "stenosis", "lumbar", "cervical", "nerve root", "radiculopathy"},
		"disorders of the spine nerve root compression lumbar cervical",
	},
	{
		[]string{"neuropathy", "peripheral neuropathy", "decreased sensation", "numbness", "tingling", "nerve damage"},
		"peripheral neuropathy disorganization of motor function sensory disturbance",
	},
	{
		[]string{"diabetes", "diabetic", "a1c", "insulin", "endocrine", "thyroid"},
		"endocrine disorders diabetes complications multiple body systems",
	},
	{
		[]string{"ckd", "kidney", "renal", "egfr", "dialysis", "transplant", "creatinine"},
		"chronic kidney disease renal impairment genitourinary",
	},
	{
		[]string{"heart", "cardiac", "coronary", "hypertension", "heart failure", "arrhythmia"},
		"chronic heart failure ischemic heart disease cardiovascular",
	},
	{
		[]string{"copd", "asthma", "pulmonary", "lung", "breathing", "oxygen", "fev1"},
		"chronic pulmonary insufficiency asthma respiratory disorders",
	},
	{
		[]string{"depression", "anxiety", "ptsd", "bipolar", "schizophrenia", "mental", "psychiatric", "psychological"},
		"depressive disorders anxiety disorders mental disorders cognitive limitations",
	},
	{
		[]string{"seizure", "epilepsy", "stroke", "multiple sclerosis", "parkinsons", "cerebral", "brain injury"},
		"epilepsy cerebral palsy central nervous system vascular accident neurological",
	},
	{
		[]string{"cancer", "tumor", "malignant", "chemotherapy", "radiation", "oncology", "carcinoma", "lymphoma", "leukemia"},
		"neoplastic diseases malignant cancer treatment effects",
	},
	{
		[]string{"hiv", "lupus", "autoimmune", "immune", "rheumatoid", "inflammatory bowel"},
		"immune system disorders systemic lupus inflammatory arthritis",
	},
	{
		[]string{"dermatitis", "skin lesions", "burns", "psoriasis", "skin disorder"},
		"skin disorders dermatitis burns ichthyosis",
	},
}

var keywordPatterns = compileKeywordPatterns()

func compileKeywordPatterns() []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, len(conditionFamilies))
	for i, fam := range conditionFamilies {
		escaped := make([]string, len(fam.keywords))
		for j, kw := range fam.keywords {
			escaped[j] = regexp.QuoteMeta(kw)
		}
		// Word boundaries so "disc" does not match "discrimination".
		patterns[i] = regexp.MustCompile(`\b(?:` + strings.Join(escaped, "|") + `)\b`)
	}
	return patterns
}

// expandQuery returns one focused sub-query per condition family whose
// keywords appear in the findings. Each condition gets its own
// semantic search instead of diluting the signal in one big query.
func expandQuery(findings string) []string {
	lower := strings.ToLower(findings)
	var out []string
	for i, fam := range conditionFamilies {
		if keywordPatterns[i].MatchString(lower) {
			out = append(out, fam.query)
		}
	}
	return out
}
