package privacy

import "regexp"

// piiClass is one detectable PII pattern class with its redaction
// placeholder. Classes are matched independently, in declaration order.
type piiClass struct {
	name        string
	pattern     *regexp.Regexp
	placeholder string
}

// Placeholders contain no digits and no "@", so no class can match
// already-redacted text; redaction is idempotent.
var piiClasses = []piiClass{
	{
		name:        "email",
		pattern:     regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
		placeholder: "[email redacted]",
	},
	{
		name:        "phone",
		pattern:     regexp.MustCompile(`\b(?:\+?1[-.]?)?\(?[0-9]{3}\)?[-.]?[0-9]{3}[-.]?[0-9]{4}\b`),
		placeholder: "[phone redacted]",
	},
	{
		name:        "chain_address",
		pattern:     regexp.MustCompile(`\b0x[a-fA-F0-9]{40}\b`),
		placeholder: "[wallet address]",
	},
	{
		name:        "payment_card",
		pattern:     regexp.MustCompile(`\b[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}[-\s]?[0-9]{4}\b`),
		placeholder: "[card number redacted]",
	},
	{
		name:        "national_id",
		pattern:     regexp.MustCompile(`\b[0-9]{3}-[0-9]{2}-[0-9]{4}\b`),
		placeholder: "[ssn redacted]",
	},
}

// Detection reports how many matches one class produced.
type Detection struct {
	Class string `json:"class"`
	Count int    `json:"count"`
}

// Detect reports PII matches per class, in class order, without modifying
// the text.
func Detect(text string) []Detection {
	var found []Detection
	for _, c := range piiClasses {
		if n := len(c.pattern.FindAllStringIndex(text, -1)); n > 0 {
			found = append(found, Detection{Class: c.name, Count: n})
		}
	}
	return found
}

// Redact replaces every match of every class with its placeholder and
// returns the cleaned text plus what was found.
func Redact(text string) (string, []Detection) {
	cleaned := text
	var found []Detection
	for _, c := range piiClasses {
		if n := len(c.pattern.FindAllStringIndex(cleaned, -1)); n > 0 {
			cleaned = c.pattern.ReplaceAllString(cleaned, c.placeholder)
			found = append(found, Detection{Class: c.name, Count: n})
		}
	}
	return cleaned, found
}
