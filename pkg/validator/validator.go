package validator

import (
	"log"
	"math"
	"strings"

	"github.com/onramp-ai/onramp/pkg/models"
)

// Thresholds for quality and groundedness scoring.
const (
	minResponseLen    = 50
	maxResponseLen    = 2000
	structureLenFloor = 300
	minSentenceLen    = 20
	overlapFraction   = 0.2
	lowGrounding      = 0.3
)

// Validator checks responses for safety, quality, and groundedness, and
// rewrites dangerous wording. It never blocks a response.
type Validator struct{}

// New creates a Validator.
func New() *Validator {
	return &Validator{}
}

// Validate runs every check in order and returns the result carrying both
// the original and final text. sourceSnippets may be empty, in which case
// groundedness is skipped.
func (v *Validator) Validate(query, response string, sourceSnippets []string) models.ValidationResult {
	res := models.ValidationResult{
		OriginalText:    response,
		FinalText:       response,
		IsSafe:          true,
		ConfidenceScore: 1.0,
	}

	lower := strings.ToLower(response)

	// 1. Dangerous absolute claims: flag and rewrite.
	for _, phrase := range dangerousPhrases {
		if strings.Contains(lower, phrase) {
			res.IsSafe = false
			res.Warnings = append(res.Warnings, "dangerous_claim: "+phrase)
		}
	}
	if !res.IsSafe {
		res.FinalText = hedgeText(res.FinalText)
		log.Printf("validator: toned down dangerous claims")
	}

	// 2. Direct financial advice: flag only.
	for _, phrase := range advicePhrases {
		if strings.Contains(lower, phrase) {
			res.NeedsDisclaimer = true
			res.Warnings = append(res.Warnings, "financial_advice: "+phrase)
		}
	}

	// 3. Disclaimer trigger.
	for _, trigger := range disclaimerTriggers {
		if strings.Contains(lower, trigger) {
			res.NeedsDisclaimer = true
			res.FinalText += disclaimer
			break
		}
	}

	// 4. Quality.
	res.QualityScore = qualityScore(query, response)
	if res.QualityScore < 0.5 {
		res.Warnings = append(res.Warnings, "low_quality_response")
	}

	// 5. Groundedness, only with sources.
	if len(sourceSnippets) > 0 {
		res.GroundingScore = groundingScore(response, sourceSnippets)
		if res.GroundingScore < lowGrounding {
			res.Warnings = append(res.Warnings, "weak_source_attribution")
			res.ConfidenceScore *= 0.8
		}
	}

	// 6. Contradictions.
	if containsContradiction(lower) {
		res.Warnings = append(res.Warnings, "potential_contradictions")
		res.ConfidenceScore *= 0.7
	}

	res.ConfidenceScore = round2(res.ConfidenceScore)
	return res
}

// hedgeText substitutes absolute terms with cautious equivalents in a
// fixed order, so rewriting is deterministic.
func hedgeText(text string) string {
	for _, h := range hedges {
		text = h.pattern.ReplaceAllString(text, h.replacement)
	}
	return text
}

func qualityScore(query, response string) float64 {
	score := 1.0

	if len(response) < minResponseLen {
		score *= 0.7
	} else if len(response) > maxResponseLen {
		score *= 0.9
	}

	queryWords := wordSet(query)
	responseWords := wordSet(response)
	overlap := 0
	for w := range queryWords {
		if responseWords[w] {
			overlap++
		}
	}
	if float64(overlap) < float64(len(queryWords))*overlapFraction {
		score *= 0.8
	}

	if len(response) > structureLenFloor && !hasStructure(response) {
		score *= 0.9
	}

	return round2(score)
}

func hasStructure(response string) bool {
	for _, marker := range structureMarkers {
		if strings.Contains(response, marker) {
			return true
		}
	}
	return false
}

// groundingScore is the fraction of meaningful sentences with at least
// one long word appearing in some source snippet.
func groundingScore(response string, snippets []string) float64 {
	lowered := make([]string, len(snippets))
	for i, s := range snippets {
		lowered[i] = strings.ToLower(s)
	}

	total, grounded := 0, 0
	for _, sentence := range strings.Split(response, ".") {
		sentence = strings.TrimSpace(sentence)
		if len(sentence) < minSentenceLen {
			continue
		}
		total++
		if sentenceGrounded(strings.ToLower(sentence), lowered) {
			grounded++
		}
	}
	if total == 0 {
		return 0.5
	}
	return round2(float64(grounded) / float64(total))
}

func sentenceGrounded(sentence string, snippets []string) bool {
	for _, word := range strings.Fields(sentence) {
		if len(word) <= 4 {
			continue
		}
		for _, snippet := range snippets {
			if strings.Contains(snippet, word) {
				return true
			}
		}
	}
	return false
}

func containsContradiction(lower string) bool {
	for _, pair := range contradictionPairs {
		if anyContained(lower, pair.positive) && anyContained(lower, pair.negative) {
			return true
		}
	}
	return false
}

func anyContained(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func wordSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(s)) {
		set[w] = true
	}
	return set
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
