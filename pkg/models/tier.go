package models

import "fmt"

// Tier is a pricing plan governing quota and overage policy.
type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// ParseTier validates a tier name.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierFree, TierPro, TierEnterprise:
		return Tier(s), nil
	}
	return "", fmt.Errorf("unknown tier %q", s)
}

// TierConfig defines quota and pricing for a tier.
// QueriesPerPeriod <= 0 means unlimited. OveragePerQuery > 0 means the
// tier keeps admitting past its quota and accrues that charge per query.
type TierConfig struct {
	QueriesPerPeriod int     `yaml:"queries_per_period"`
	PriceMonthly     float64 `yaml:"price_monthly"`
	OveragePerQuery  float64 `yaml:"overage_per_query"`
}

// Unlimited reports whether the tier has no query quota.
func (c TierConfig) Unlimited() bool { return c.QueriesPerPeriod <= 0 }

// DefaultTiers returns the built-in tier table.
func DefaultTiers() map[Tier]TierConfig {
	return map[Tier]TierConfig{
		TierFree:       {QueriesPerPeriod: 100, PriceMonthly: 0, OveragePerQuery: 0},
		TierPro:        {QueriesPerPeriod: 10000, PriceMonthly: 299, OveragePerQuery: 0.05},
		TierEnterprise: {QueriesPerPeriod: 0, PriceMonthly: 1999, OveragePerQuery: 0},
	}
}
