package models

// ProviderProfile describes an upstream LLM provider. Profiles are static
// configuration, read-only at request time; their order in config is the
// fallback priority order.
type ProviderProfile struct {
	Name            string  `yaml:"name"`
	URL             string  `yaml:"url"`
	APIKey          string  `yaml:"api_key"`
	Model           string  `yaml:"model"`
	CostPerMillion  float64 `yaml:"cost_per_million"`
	QualityScore    int     `yaml:"quality_score"`
	SpeedScore      int     `yaml:"speed_score"`
}

// Available reports whether the provider can be invoked.
func (p ProviderProfile) Available() bool { return p.APIKey != "" }

// RouteStatus classifies the outcome of a routed query.
type RouteStatus string

const (
	StatusSuccess         RouteStatus = "success"
	StatusSuccessFallback RouteStatus = "success_fallback"
	StatusCached          RouteStatus = "cached"
	StatusError           RouteStatus = "error"
)
