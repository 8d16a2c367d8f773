package models

import "time"

// MaxMessageLength bounds the caller-supplied message.
const MaxMessageLength = 4096

// QueryRequest is the caller-facing request shape. UserID is optional; when
// absent the gateway derives an identity from the connection origin.
type QueryRequest struct {
	Message       string `json:"message"`
	Language      string `json:"language,omitempty"`
	ReturnSources bool   `json:"return_sources,omitempty"`
	UserID        string `json:"user_id,omitempty"`
	Region        string `json:"region,omitempty"`
}

// Source is one retrieved snippet returned to the caller on request.
type Source struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// QueryResponse is the caller-facing response shape.
type QueryResponse struct {
	Answer     string            `json:"answer"`
	Status     RouteStatus       `json:"status"`
	Provider   string            `json:"provider,omitempty"`
	LatencyMs  int64             `json:"latency_ms"`
	RequestID  string            `json:"request_id,omitempty"`
	Sources    []Source          `json:"sources,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// ConsentRequest grants or queries consent for an identity.
type ConsentRequest struct {
	UserID   string   `json:"user_id"`
	Purposes []string `json:"purposes,omitempty"`
}

// ConsentRecord is a granted consent with a hard expiry; an expired record
// is equivalent to no record.
type ConsentRecord struct {
	Purposes  []string  `json:"purposes"`
	GrantedAt time.Time `json:"granted_at"`
	ExpiresAt time.Time `json:"expires_at"`
}
