package usage

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/onramp-ai/onramp/pkg/models"
)

// account is the mutable per-identity quota state. Mutated only under
// Gate.mu, so concurrent admits for the same identity serialize.
type account struct {
	Tier        models.Tier
	PeriodStart time.Time
	Queries     int
	AccruedCost float64
	LastQuery   time.Time
	UpgradedAt  time.Time
}

// Snapshot is the read-only view of an identity's usage returned by Usage.
// QueriesRemaining is -1 for unlimited tiers.
type Snapshot struct {
	Tier              models.Tier `json:"tier"`
	QueriesThisPeriod int         `json:"queries_this_period"`
	QueriesRemaining  int         `json:"queries_remaining"`
	AccruedCost       float64     `json:"accrued_cost"`
	PeriodStart       time.Time   `json:"period_start"`
	LastQuery         time.Time   `json:"last_query,omitempty"`
}

// Bill is a period invoice for an identity.
type Bill struct {
	Tier           models.Tier `json:"tier"`
	BasePrice      float64     `json:"base_price"`
	QueriesUsed    int         `json:"queries_used"`
	OverageQueries int         `json:"overage_queries"`
	OverageCharge  float64     `json:"overage_charge"`
	Total          float64     `json:"total"`
	PeriodStart    time.Time   `json:"period_start"`
	PeriodEnd      time.Time   `json:"period_end"`
}

// Gate enforces per-identity quotas and tier policy. Accounts are created
// lazily on first admit and roll over lazily when the accounting period
// elapses; there is no background sweep.
type Gate struct {
	mu       sync.Mutex
	accounts map[string]*account
	tiers    map[models.Tier]models.TierConfig
	period   time.Duration

	now func() time.Time
}

// New creates a Gate with the given tier table and accounting period.
func New(tiers map[models.Tier]models.TierConfig, period time.Duration) *Gate {
	if period <= 0 {
		period = 30 * 24 * time.Hour
	}
	return &Gate{
		accounts: make(map[string]*account),
		tiers:    tiers,
		period:   period,
		now:      time.Now,
	}
}

// Admit records a query attempt for an identity and reports whether it may
// proceed. Unlimited tiers always admit. Metered tiers with an overage
// price keep admitting past quota and accrue the overage charge; metered
// tiers without one reject without incrementing.
func (g *Gate) Admit(identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	acct := g.account(identity, now)
	g.rollover(acct, now)

	cfg := g.tiers[acct.Tier]
	if !cfg.Unlimited() && acct.Queries >= cfg.QueriesPerPeriod {
		if cfg.OveragePerQuery > 0 {
			acct.Queries++
			acct.AccruedCost += cfg.OveragePerQuery
			acct.LastQuery = now
			log.Printf("usage: identity %s past quota, admitted with overage", identity)
			return true
		}
		log.Printf("usage: identity %s exceeded %s tier quota", identity, acct.Tier)
		return false
	}

	acct.Queries++
	acct.LastQuery = now
	return true
}

// Usage returns the current usage snapshot for an identity. Unknown
// identities get a fresh Free-tier snapshot without creating an account.
func (g *Gate) Usage(identity string) Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()

	acct, ok := g.accounts[identity]
	if !ok {
		cfg := g.tiers[models.TierFree]
		return Snapshot{Tier: models.TierFree, QueriesRemaining: cfg.QueriesPerPeriod}
	}
	g.rollover(acct, g.now())

	cfg := g.tiers[acct.Tier]
	remaining := -1
	if !cfg.Unlimited() {
		remaining = cfg.QueriesPerPeriod - acct.Queries
		if remaining < 0 {
			remaining = 0
		}
	}
	return Snapshot{
		Tier:              acct.Tier,
		QueriesThisPeriod: acct.Queries,
		QueriesRemaining:  remaining,
		AccruedCost:       acct.AccruedCost,
		PeriodStart:       acct.PeriodStart,
		LastQuery:         acct.LastQuery,
	}
}

// Bill computes the invoice for an identity's current period.
func (g *Gate) Bill(identity string) Bill {
	g.mu.Lock()
	defer g.mu.Unlock()

	acct, ok := g.accounts[identity]
	if !ok {
		return Bill{Tier: models.TierFree}
	}
	g.rollover(acct, g.now())

	cfg := g.tiers[acct.Tier]
	b := Bill{
		Tier:        acct.Tier,
		BasePrice:   cfg.PriceMonthly,
		QueriesUsed: acct.Queries,
		PeriodStart: acct.PeriodStart,
		PeriodEnd:   acct.PeriodStart.Add(g.period),
	}
	if !cfg.Unlimited() && acct.Queries > cfg.QueriesPerPeriod {
		b.OverageQueries = acct.Queries - cfg.QueriesPerPeriod
		b.OverageCharge = float64(b.OverageQueries) * cfg.OveragePerQuery
	}
	b.Total = b.BasePrice + b.OverageCharge
	return b
}

// Upgrade changes an identity's tier, preserving counters. Idempotent.
func (g *Gate) Upgrade(identity string, tier models.Tier) error {
	if _, ok := g.tiers[tier]; !ok {
		return fmt.Errorf("upgrade: unknown tier %q", tier)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	acct := g.account(identity, g.now())
	if acct.Tier != tier {
		acct.Tier = tier
		acct.UpgradedAt = g.now()
		log.Printf("usage: identity %s upgraded to %s", identity, tier)
	}
	return nil
}

// Export returns the usage snapshot for the per-identity data export, or
// false if no account exists.
func (g *Gate) Export(identity string) (Snapshot, bool) {
	g.mu.Lock()
	_, ok := g.accounts[identity]
	g.mu.Unlock()
	if !ok {
		return Snapshot{}, false
	}
	return g.Usage(identity), true
}

// Delete removes an identity's account and reports whether one existed.
func (g *Gate) Delete(identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.accounts[identity]
	delete(g.accounts, identity)
	return ok
}

// account returns the identity's account, creating a Free-tier one
// anchored at now if absent. Caller holds g.mu.
func (g *Gate) account(identity string, now time.Time) *account {
	acct, ok := g.accounts[identity]
	if !ok {
		acct = &account{Tier: models.TierFree, PeriodStart: now}
		g.accounts[identity] = acct
	}
	return acct
}

// rollover resets the account in place when the period has elapsed.
// Caller holds g.mu.
func (g *Gate) rollover(acct *account, now time.Time) {
	if now.Sub(acct.PeriodStart) > g.period {
		acct.Queries = 0
		acct.AccruedCost = 0
		acct.PeriodStart = now
	}
}
