package llm

import (
	"context"
	"errors"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/onramp-ai/onramp/pkg/models"
)

// degradedAnswer is returned when every provider attempt fails. The
// caller always receives a well-formed response.
const degradedAnswer = "I apologize, but I'm experiencing technical difficulties. Please try again in a moment."

// Result is the outcome of routing one query.
type Result struct {
	Answer     string
	Provider   string
	Complexity int
	Status     models.RouteStatus
	Latency    time.Duration
	Tokens     int
	Cost       float64
	Err        string
}

// Stats are running router totals.
type Stats struct {
	TotalQueries         int64            `json:"total_queries"`
	TotalCost            float64          `json:"total_cost"`
	ProviderUsage        map[string]int64 `json:"provider_usage"`
	FallbackCount        int64            `json:"fallback_count"`
	UnavailableFallbacks int64            `json:"unavailable_fallbacks"`
}

// Router scores query complexity, picks a provider, and invokes it with a
// bounded sequential fallback chain over the remaining available
// providers. Profile order is the fallback priority order.
type Router struct {
	profiles []models.ProviderProfile
	invoker  Invoker
	timeout  time.Duration

	mu    sync.Mutex
	stats Stats
}

// New creates a Router. timeout bounds each individual provider attempt.
func New(profiles []models.ProviderProfile, invoker Invoker, timeout time.Duration) *Router {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Router{
		profiles: profiles,
		invoker:  invoker,
		timeout:  timeout,
		stats:    Stats{ProviderUsage: make(map[string]int64)},
	}
}

// Route answers a query. It never returns an error: when every provider
// fails the result carries a fixed apologetic answer, StatusError, and
// the last error's description.
func (r *Router) Route(ctx context.Context, query, systemPrompt string) Result {
	start := time.Now()
	complexity := ComplexityScore(query)

	primary, unavailableFallback, ok := r.selectProvider(complexity)
	if !ok {
		log.Printf("llm: no providers available")
		return Result{
			Answer:     degradedAnswer,
			Provider:   "none",
			Complexity: complexity,
			Status:     models.StatusError,
			Latency:    time.Since(start),
			Err:        "no providers available",
		}
	}
	if unavailableFallback {
		r.mu.Lock()
		r.stats.UnavailableFallbacks++
		r.mu.Unlock()
	}

	log.Printf("llm: routing query (complexity %d) to %s", complexity, primary.Name)

	candidates := r.fallbackChain(primary)
	var lastErr error
	for i, provider := range candidates {
		answer, err := r.attempt(ctx, provider, systemPrompt, query)
		if err != nil {
			lastErr = err
			var ie *InvokeError
			kind := ErrKindUnknown
			if errors.As(err, &ie) {
				kind = ie.Kind
			}
			log.Printf("llm: provider %s failed (%s): %v", provider.Name, kind, err)
			continue
		}

		status := models.StatusSuccess
		if i > 0 {
			status = models.StatusSuccessFallback
		}
		tokens := (len(query) + len(systemPrompt) + len(answer)) / 4
		cost := float64(tokens) / 1_000_000 * provider.CostPerMillion

		r.mu.Lock()
		r.stats.TotalQueries++
		r.stats.TotalCost += cost
		r.stats.ProviderUsage[provider.Name]++
		if i > 0 {
			r.stats.FallbackCount++
		}
		r.mu.Unlock()

		return Result{
			Answer:     answer,
			Provider:   provider.Name,
			Complexity: complexity,
			Status:     status,
			Latency:    time.Since(start),
			Tokens:     tokens,
			Cost:       cost,
		}
	}

	log.Printf("llm: all %d provider attempt(s) failed", len(candidates))
	r.mu.Lock()
	r.stats.TotalQueries++
	r.mu.Unlock()

	return Result{
		Answer:     degradedAnswer,
		Provider:   "none",
		Complexity: complexity,
		Status:     models.StatusError,
		Latency:    time.Since(start),
		Err:        lastErr.Error(),
	}
}

// Stats returns a copy of the running totals.
func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	usage := make(map[string]int64, len(r.stats.ProviderUsage))
	for k, v := range r.stats.ProviderUsage {
		usage[k] = v
	}
	s := r.stats
	s.ProviderUsage = usage
	return s
}

// attempt invokes one provider with the router's per-attempt timeout.
func (r *Router) attempt(ctx context.Context, provider models.ProviderProfile, systemPrompt, query string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.invoker.Invoke(attemptCtx, provider, systemPrompt, query)
}

// selectProvider picks the band-preferred provider for a complexity
// score. If that provider is unavailable it falls back to the first
// available provider in priority order, reporting the fallback; ok is
// false when no provider is available at all.
func (r *Router) selectProvider(complexity int) (provider models.ProviderProfile, unavailableFallback, ok bool) {
	if len(r.profiles) == 0 {
		return models.ProviderProfile{}, false, false
	}

	byCost := make([]models.ProviderProfile, len(r.profiles))
	copy(byCost, r.profiles)
	sort.SliceStable(byCost, func(i, j int) bool {
		return byCost[i].CostPerMillion < byCost[j].CostPerMillion
	})

	var preferred models.ProviderProfile
	switch bandFor(complexity) {
	case bandLow:
		// Cheapest available; the cheapest overall stands in when
		// everything is offline so the generic fallback path reports it.
		preferred = byCost[0]
		for _, p := range byCost {
			if p.Available() {
				preferred = p
				break
			}
		}
	case bandMedium:
		// Balanced cost: the middle of the cost-sorted list, which
		// degrades to the low-band choice with fewer than three providers.
		preferred = byCost[len(byCost)/2]
		if !preferred.Available() && byCost[0].Available() {
			preferred = byCost[0]
		}
	case bandHigh:
		preferred = r.profiles[0]
		for _, p := range r.profiles[1:] {
			if p.QualityScore > preferred.QualityScore {
				preferred = p
			}
		}
	}

	if preferred.Available() {
		return preferred, false, true
	}
	for _, p := range r.profiles {
		if p.Available() {
			log.Printf("llm: preferred provider %s unavailable, falling back to %s", preferred.Name, p.Name)
			return p, true, true
		}
	}
	return models.ProviderProfile{}, false, false
}

// fallbackChain returns the primary followed by every other available
// provider in priority order.
func (r *Router) fallbackChain(primary models.ProviderProfile) []models.ProviderProfile {
	chain := []models.ProviderProfile{primary}
	for _, p := range r.profiles {
		if p.Name != primary.Name && p.Available() {
			chain = append(chain, p)
		}
	}
	return chain
}
