package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/onramp-ai/onramp/pkg/analytics"
	"github.com/onramp-ai/onramp/pkg/cache"
	"github.com/onramp-ai/onramp/pkg/config"
	"github.com/onramp-ai/onramp/pkg/llm"
	"github.com/onramp-ai/onramp/pkg/memory"
	"github.com/onramp-ai/onramp/pkg/models"
	"github.com/onramp-ai/onramp/pkg/pipeline"
	"github.com/onramp-ai/onramp/pkg/privacy"
	"github.com/onramp-ai/onramp/pkg/usage"
)

// Server is the gateway HTTP front end.
type Server struct {
	cfg      *config.Config
	orch     *pipeline.Orchestrator
	gate     *usage.Gate
	filter   *privacy.Filter
	recorder *analytics.Recorder
	router   *llm.Router
	memory   *memory.Store
	answers  *cache.Cache
	mux      *http.ServeMux

	limiterMu sync.Mutex
	limiters  map[string]*rate.Limiter
}

// New creates a Server wired with all dependencies. answers may be nil
// when caching is disabled.
func New(cfg *config.Config, orch *pipeline.Orchestrator, gate *usage.Gate, filter *privacy.Filter,
	recorder *analytics.Recorder, router *llm.Router, mem *memory.Store, answers *cache.Cache) *Server {
	s := &Server{
		cfg:      cfg,
		orch:     orch,
		gate:     gate,
		filter:   filter,
		recorder: recorder,
		router:   router,
		memory:   mem,
		answers:  answers,
		mux:      http.NewServeMux(),
		limiters: make(map[string]*rate.Limiter),
	}
	s.mux.HandleFunc("/v1/query", s.handleQuery)
	s.mux.HandleFunc("/v1/consent", s.handleConsent)
	s.mux.HandleFunc("/v1/usage", s.handleUsage)
	s.mux.HandleFunc("/v1/tier", s.handleTier)
	s.mux.HandleFunc("/v1/export", s.handleExport)
	s.mux.HandleFunc("/v1/data", s.handleData)
	s.mux.HandleFunc("/v1/metrics", s.handleMetrics)
	s.mux.HandleFunc("/healthz", s.handleHealth)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// ListenAndServe starts the gateway with graceful shutdown support.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Listen,
		Handler: s,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("onramp gateway listening on %s", s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	case err := <-errCh:
		return err
	}
}

// limiter returns the per-identity token bucket, creating it lazily.
func (s *Server) limiter(identity string) *rate.Limiter {
	s.limiterMu.Lock()
	defer s.limiterMu.Unlock()
	l, ok := s.limiters[identity]
	if !ok {
		l = rate.NewLimiter(rate.Limit(s.cfg.RateLimit.RequestsPerSecond), s.cfg.RateLimit.Burst)
		s.limiters[identity] = l
	}
	return l
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req models.QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	origin := clientOrigin(r)
	identity := pipeline.DeriveIdentity(req.UserID, origin)

	if s.cfg.RateLimit.Enabled && !s.limiter(identity).Allow() {
		writeJSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	resp, err := s.orch.Handle(r.Context(), req, origin)
	if err != nil {
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// statusFor maps pipeline outcomes to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, pipeline.ErrEmptyMessage), errors.Is(err, pipeline.ErrMessageTooLong):
		return http.StatusBadRequest
	case errors.Is(err, pipeline.ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, pipeline.ErrConsentRequired):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) handleConsent(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req models.ConsentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
			writeJSONError(w, http.StatusBadRequest, "user_id is required")
			return
		}
		identity := pipeline.DeriveIdentity(req.UserID, clientOrigin(r))
		record := s.filter.GrantConsent(r.Context(), identity, req.Purposes)
		writeJSON(w, http.StatusOK, record)

	case http.MethodGet:
		identity := s.requestIdentity(r)
		writeJSON(w, http.StatusOK, map[string]bool{"granted": s.filter.HasConsent(identity)})

	case http.MethodDelete:
		identity := s.requestIdentity(r)
		revoked := s.filter.RevokeConsent(r.Context(), identity)
		writeJSON(w, http.StatusOK, map[string]bool{"revoked": revoked})

	default:
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	identity := s.requestIdentity(r)
	writeJSON(w, http.StatusOK, map[string]any{
		"usage": s.gate.Usage(identity),
		"bill":  s.gate.Bill(identity),
	})
}

func (s *Server) handleTier(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	var req struct {
		UserID string `json:"user_id"`
		Tier   string `json:"tier"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.UserID == "" {
		writeJSONError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	tier, err := models.ParseTier(req.Tier)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	identity := pipeline.DeriveIdentity(req.UserID, clientOrigin(r))
	if err := s.gate.Upgrade(identity, tier); err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.gate.Usage(identity))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	identity := s.requestIdentity(r)
	writeJSON(w, http.StatusOK, s.orch.Export(r.Context(), identity))
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	identity := s.requestIdentity(r)
	res, err := s.orch.Erase(r.Context(), identity)
	if err != nil {
		log.Printf("server: erase failed: %v", err)
		writeJSONError(w, http.StatusInternalServerError, "erase failed")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	out := map[string]any{
		"analytics":     s.recorder.Metrics(),
		"routing":       s.router.Stats(),
		"conversations": s.memory.Stats(),
		"top_questions": s.recorder.TopQuestions(10),
	}
	if s.answers != nil {
		if stats, err := s.answers.Stats(); err == nil {
			out["cache"] = stats
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// requestIdentity derives the identity from the user_id query parameter,
// falling back to the connection origin.
func (s *Server) requestIdentity(r *http.Request) string {
	return pipeline.DeriveIdentity(r.URL.Query().Get("user_id"), clientOrigin(r))
}

// clientOrigin strips the port so an identity survives reconnects.
func clientOrigin(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("server: encode response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	fmt.Fprintf(w, `{"error":{"message":%q,"code":%d}}`, message, code)
}
