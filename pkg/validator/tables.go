package validator

import "regexp"

// Tables below are data, not code: swapping entries changes behavior
// without touching control flow.

// dangerousPhrases are absolute/no-risk claims that mark a response
// unsafe.
var dangerousPhrases = []string{
	"guaranteed returns",
	"guaranteed profit",
	"no risk",
	"risk-free",
	"definitely safe",
	"can't lose",
	"cannot lose",
	"100% safe",
	"zero risk",
	"free money",
	"get rich quick",
}

// hedge rewrites absolute terms with cautious language. Applied in order;
// longer phrases come first so their substrings are not rewritten away
// underneath them.
type hedge struct {
	pattern     *regexp.Regexp
	replacement string
}

var hedges = []hedge{
	{regexp.MustCompile(`(?i)can't lose`), "lower risk of loss"},
	{regexp.MustCompile(`(?i)cannot lose`), "lower risk of loss"},
	{regexp.MustCompile(`(?i)risk-free`), "lower risk"},
	{regexp.MustCompile(`(?i)no risk`), "reduced risk"},
	{regexp.MustCompile(`(?i)zero risk`), "reduced risk"},
	{regexp.MustCompile(`(?i)guaranteed`), "potentially possible"},
	{regexp.MustCompile(`(?i)definitely`), "possibly"},
	{regexp.MustCompile(`(?i)always`), "often"},
	{regexp.MustCompile(`(?i)never`), "rarely"},
	{regexp.MustCompile(`(?i)100%`), "high"},
}

// advicePhrases are direct financial advice; they require a disclaimer
// but are not rewritten.
var advicePhrases = []string{
	"you should invest",
	"i recommend investing",
	"buy this token",
	"sell your",
	"you should buy",
	"you should sell",
}

// disclaimerTriggers are finance-adjacent keywords that append the
// standard educational disclaimer.
var disclaimerTriggers = []string{
	"invest", "trading", "profit", "returns", "gains",
	"financial", "money", "price", "value",
}

const disclaimer = "\n\nDisclaimer: This information is for educational purposes only " +
	"and should not be considered financial advice. Always do your own research " +
	"and consult with a qualified financial advisor before making investment decisions."

// contradictionPairs are opposite-polarity word groups whose co-occurrence
// suggests an internally inconsistent answer.
var contradictionPairs = []struct {
	positive []string
	negative []string
}{
	{[]string{"always", "never"}, []string{"sometimes", "occasionally"}},
	{[]string{"safe", "secure"}, []string{"risky", "dangerous", "unsafe"}},
	{[]string{"recommended", "should"}, []string{"not recommended", "should not"}},
	{[]string{"increase", "gain"}, []string{"decrease", "loss"}},
}

// structureMarkers indicate a long response is organized rather than a
// wall of text.
var structureMarkers = []string{"\n", "1.", "2.", "•", "- "}
