package models

// ValidationResult carries the outcome of response validation. FinalText is
// the possibly rewritten response; OriginalText is always preserved.
// Validation never blocks delivery, it only rewrites wording and
// downgrades confidence.
type ValidationResult struct {
	OriginalText    string   `json:"-"`
	FinalText       string   `json:"-"`
	IsSafe          bool     `json:"is_safe"`
	NeedsDisclaimer bool     `json:"needs_disclaimer"`
	ConfidenceScore float64  `json:"confidence_score"`
	QualityScore    float64  `json:"quality_score"`
	GroundingScore  float64  `json:"grounding_score,omitempty"`
	Warnings        []string `json:"warnings,omitempty"`
}
