package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/onramp-ai/onramp/pkg/models"
)

// Retriever finds knowledge snippets relevant to a query. Implementations
// must tolerate failure: the caller degrades to an unsourced answer when
// Search errors.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]models.Source, error)
	Close() error
}

// document is one entry in the built-in knowledge base.
type document struct {
	topic   string
	content string
}

// builtinDocs is a small curated knowledge base used when no vector
// backend is configured.
var builtinDocs = []document{
	{"staking", "Staking locks tokens with a validator to help secure a proof-of-stake network. Rewards accrue over time, but staked funds may be slashed if the validator misbehaves and often carry an unbonding period."},
	{"bridging", "Bridges move assets between blockchains by locking tokens on the source chain and minting a wrapped representation on the destination chain. Bridge contracts have historically been a frequent target of exploits."},
	{"wallet", "A wallet holds the private keys that control on-chain funds. Hardware wallets keep keys offline, while the seed phrase is the master backup and must never be shared with anyone."},
	{"defi", "Decentralized finance protocols offer lending, borrowing, and token swaps through smart contracts. Liquidity providers earn fees but face impermanent loss when pool prices diverge."},
	{"nft", "Non-fungible tokens represent unique on-chain items. Minting writes a new token to the contract, and royalties or metadata handling differ per marketplace."},
	{"trading", "Crypto markets trade around the clock with high volatility. Exchanges charge maker and taker fees, and slippage grows with order size on thin books."},
	{"security", "Common attacks include phishing links, fake airdrops, and approval scams. Revoking stale token approvals and verifying contract addresses reduces exposure."},
	{"gas", "Gas prices are denominated in gwei and fluctuate with network demand. Transactions with a tip below the prevailing base fee wait or fail; batching and timing reduce cost."},
	{"ethereum", "Ethereum is a programmable blockchain that settles smart contract execution. Rollups batch transactions off-chain and post proofs or data back to the base layer for security."},
	{"bitcoin", "Bitcoin is a proof-of-work network with a fixed supply of 21 million coins. Blocks arrive roughly every ten minutes and fees depend on mempool congestion."},
}

// Static is a keyword-overlap retriever over the built-in knowledge base.
// It never errors, so a gateway with no vector backend still returns
// grounded answers for common topics.
type Static struct{}

// NewStatic creates a Static retriever.
func NewStatic() *Static {
	return &Static{}
}

// Search scores each document by query word overlap and returns the top
// k matches, strongest first. Documents with no overlap are excluded.
func (s *Static) Search(_ context.Context, query string, k int) ([]models.Source, error) {
	words := queryWords(query)

	type scored struct {
		doc   document
		score int
	}
	var matches []scored
	for _, d := range builtinDocs {
		content := strings.ToLower(d.content)
		score := 0
		for w := range words {
			if strings.Contains(content, w) || strings.Contains(d.topic, w) {
				score++
			}
		}
		if score > 0 {
			matches = append(matches, scored{d, score})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })

	if k > 0 && len(matches) > k {
		matches = matches[:k]
	}
	out := make([]models.Source, 0, len(matches))
	for _, m := range matches {
		out = append(out, models.Source{
			Content:  m.doc.content,
			Metadata: map[string]string{"topic": m.doc.topic},
		})
	}
	return out, nil
}

// Close is a no-op for the static retriever.
func (s *Static) Close() error { return nil }

// queryWords returns the lowercased query terms longer than three
// characters, which drops stopwords like "the" and "how".
func queryWords(query string) map[string]bool {
	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(query)) {
		w = strings.Trim(w, "?!.,")
		if len(w) > 3 {
			words[w] = true
		}
	}
	return words
}
