package llm

import "strings"

const (
	maxComplexity       = 10
	technicalTermWeight = 2
)

// technicalTerms is the fixed domain vocabulary; each occurrence raises
// the complexity score by technicalTermWeight.
var technicalTerms = []string{
	"smart contract", "defi", "liquidity pool", "impermanent loss",
	"yield farming", "staking rewards", "gas fees", "slippage",
	"bridge", "cross-chain", "validator", "consensus",
	"rollup", "zk rollup", "optimistic rollup", "zero-knowledge",
	"security",
}

// complexityWords indicate questions that need explanation rather than a
// lookup.
var complexityWords = []string{"how", "why", "explain", "compare", "difference"}

// ComplexityScore estimates query difficulty on a 1..10 scale. The score
// is monotonically non-decreasing in trigger-term occurrences.
func ComplexityScore(query string) int {
	score := 1

	if len(query) > 200 {
		score += 2
	} else if len(query) > 100 {
		score++
	}

	lower := strings.ToLower(query)
	for _, term := range technicalTerms {
		score += technicalTermWeight * strings.Count(lower, term)
	}
	for _, word := range complexityWords {
		score += strings.Count(lower, word)
	}

	if strings.Count(query, "?") > 1 {
		score += 2
	}

	if score > maxComplexity {
		score = maxComplexity
	}
	return score
}

// band partitions a complexity score.
type band int

const (
	bandLow band = iota
	bandMedium
	bandHigh
)

func bandFor(score int) band {
	switch {
	case score <= 4:
		return bandLow
	case score <= 7:
		return bandMedium
	default:
		return bandHigh
	}
}
