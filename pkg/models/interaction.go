package models

import "time"

// Interaction is an append-only analytics record of one handled query.
// Identity is the hashed caller key and Fingerprint the hashed query text;
// neither holds raw personal data.
type Interaction struct {
	ID          int64
	Identity    string
	Fingerprint string
	Category    string
	Language    string
	Provider    string
	Status      RouteStatus
	LatencyMs   int64
	Tokens      int
	Cost        float64
	CreatedAt   time.Time
}

// MetricsSummary aggregates recorder state for reporting.
type MetricsSummary struct {
	TotalQueries      int64              `json:"total_queries"`
	SuccessfulQueries int64              `json:"successful_queries"`
	FailedQueries     int64              `json:"failed_queries"`
	SuccessRate       float64            `json:"success_rate"`
	TotalCost         float64            `json:"total_cost"`
	AvgCostPerQuery   float64            `json:"average_cost_per_query"`
	AvgLatencyMs      float64            `json:"average_latency_ms"`
	TopCategories     map[string]int64   `json:"top_categories"`
	Languages         map[string]int64   `json:"language_distribution"`
	ActiveUsers       int                `json:"active_users"`
}

// TopQuestion is one entry in the popular-query ranking.
type TopQuestion struct {
	Fingerprint  string    `json:"fingerprint"`
	HitCount     int64     `json:"hit_count"`
	Category     string    `json:"category"`
	LastAccessed time.Time `json:"last_accessed"`
}

// UserInsights summarizes one identity's recorded activity.
type UserInsights struct {
	Identity     string    `json:"identity"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	TotalQueries int64     `json:"total_queries"`
}

// InteractionSummary aggregates stored interactions per provider and
// category, for the offline stats CLI.
type InteractionSummary struct {
	Provider string
	Category string
	Count    int64
	Tokens   int64
	Cost     float64
}
