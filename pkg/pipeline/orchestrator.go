package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/onramp-ai/onramp/pkg/analytics"
	"github.com/onramp-ai/onramp/pkg/audit"
	"github.com/onramp-ai/onramp/pkg/cache"
	"github.com/onramp-ai/onramp/pkg/llm"
	"github.com/onramp-ai/onramp/pkg/memory"
	"github.com/onramp-ai/onramp/pkg/models"
	"github.com/onramp-ai/onramp/pkg/privacy"
	"github.com/onramp-ai/onramp/pkg/retrieval"
	"github.com/onramp-ai/onramp/pkg/usage"
	"github.com/onramp-ai/onramp/pkg/validator"
)

// State names the steps a request moves through. Every request ends in
// StateDone or one of the rejected states.
type State string

const (
	StateReceived        State = "received"
	StateAdmitted        State = "admitted"
	StatePrivacyChecked  State = "privacy_checked"
	StateContextLoaded   State = "context_loaded"
	StateAnswered        State = "answered"
	StateValidated       State = "validated"
	StateLogged          State = "logged"
	StateDone            State = "done"
	StateRejectedQuota   State = "rejected_by_quota"
	StateRejectedConsent State = "rejected_by_consent"
)

// Terminal request outcomes the HTTP layer maps to status codes.
var (
	ErrEmptyMessage    = errors.New("message is required")
	ErrMessageTooLong  = fmt.Errorf("message exceeds %d characters", models.MaxMessageLength)
	ErrQuotaExceeded   = errors.New("quota exceeded for current period")
	ErrConsentRequired = errors.New("consent required before processing")
	ErrInternal        = errors.New("internal error")
)

const defaultLanguage = "en"

// Orchestrator drives one query through admission, privacy filtering,
// context assembly, routing, validation, and logging. All collaborators
// are injected so tests can substitute fakes.
type Orchestrator struct {
	gate      *usage.Gate
	filter    *privacy.Filter
	memory    *memory.Store
	router    *llm.Router
	validator *validator.Validator
	recorder  *analytics.Recorder
	answers   *cache.Cache
	retriever retrieval.Retriever
	auditor   *audit.Logger

	topK         int
	minHitCount  int64
	systemPrompt string
}

// Options carries the orchestrator's tunables.
type Options struct {
	TopK         int
	MinHitCount  int64
	SystemPrompt string
}

// New wires an Orchestrator. answers may be nil to disable caching, and
// auditor may be nil to disable audit logging.
func New(gate *usage.Gate, filter *privacy.Filter, mem *memory.Store, router *llm.Router,
	v *validator.Validator, recorder *analytics.Recorder, answers *cache.Cache,
	retriever retrieval.Retriever, auditor *audit.Logger, opts Options) *Orchestrator {
	if opts.TopK <= 0 {
		opts.TopK = 4
	}
	if opts.MinHitCount <= 0 {
		opts.MinHitCount = 3
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	return &Orchestrator{
		gate:         gate,
		filter:       filter,
		memory:       mem,
		router:       router,
		validator:    v,
		recorder:     recorder,
		answers:      answers,
		retriever:    retriever,
		auditor:      auditor,
		topK:         opts.TopK,
		minHitCount:  opts.MinHitCount,
		systemPrompt: opts.SystemPrompt,
	}
}

const defaultSystemPrompt = "You are a helpful crypto onboarding assistant. " +
	"Answer clearly and accurately for newcomers, never give financial advice, " +
	"and say so when you are unsure."

// Handle runs the full state machine for one request. The returned error
// is one of the sentinel errors above, or nil for a served answer
// (including degraded answers, which are a served outcome).
func (o *Orchestrator) Handle(ctx context.Context, req models.QueryRequest, origin string) (resp models.QueryResponse, err error) {
	start := time.Now()
	requestID := uuid.NewString()
	resp.RequestID = requestID

	// Any panic below maps to a generic internal failure; the caller
	// never sees stack detail.
	defer func() {
		if r := recover(); r != nil {
			log.Printf("pipeline: request %s panicked: %v", requestID, r)
			resp = models.QueryResponse{
				RequestID: requestID,
				Status:    models.StatusError,
				Error:     "internal error",
				LatencyMs: time.Since(start).Milliseconds(),
			}
			err = ErrInternal
		}
	}()

	state := StateReceived

	message := strings.TrimSpace(req.Message)
	if message == "" {
		return o.reject(resp, start, ErrEmptyMessage)
	}
	if len(message) > models.MaxMessageLength {
		return o.reject(resp, start, ErrMessageTooLong)
	}
	language := req.Language
	if language == "" {
		language = defaultLanguage
	}
	identity := DeriveIdentity(req.UserID, origin)

	if !o.gate.Admit(identity) {
		state = StateRejectedQuota
		log.Printf("pipeline: request %s rejected state=%s", requestID, state)
		return o.reject(resp, start, ErrQuotaExceeded)
	}
	state = StateAdmitted

	pres := o.filter.Process(ctx, identity, message, req.Region)
	if pres.ConsentRequired {
		state = StateRejectedConsent
		log.Printf("pipeline: request %s rejected state=%s", requestID, state)
		return o.reject(resp, start, ErrConsentRequired)
	}
	state = StatePrivacyChecked
	cleaned := pres.CleanedText

	fingerprint := cache.Fingerprint(cleaned, language)
	category := analytics.Classify(cleaned)

	if o.answers != nil {
		if entry, ok := o.answers.Get(fingerprint, language); ok {
			resp.Answer = entry.Answer
			resp.Status = models.StatusCached
			resp.Provider = entry.Provider
			resp.LatencyMs = time.Since(start).Milliseconds()
			o.remember(identity, cleaned, entry.Answer)
			o.record(ctx, models.Interaction{
				Identity:    identity,
				Fingerprint: fingerprint,
				Category:    category,
				Language:    language,
				Provider:    "cache",
				Status:      models.StatusCached,
				LatencyMs:   resp.LatencyMs,
			})
			return resp, nil
		}
	}

	conversation := o.memory.Context(identity)
	state = StateContextLoaded

	var sources []models.Source
	if o.retriever != nil {
		retrieved, rerr := o.retriever.Search(ctx, cleaned, o.topK)
		if rerr != nil {
			log.Printf("pipeline: request %s retrieval failed: %v", requestID, rerr)
		} else {
			sources = retrieved
		}
	}

	prompt := o.assemblePrompt(conversation, sources, language)
	result := o.router.Route(ctx, cleaned, prompt)
	state = StateAnswered

	snippets := make([]string, len(sources))
	for i, s := range sources {
		snippets[i] = s.Content
	}
	validation := o.validator.Validate(cleaned, result.Answer, snippets)
	state = StateValidated

	o.remember(identity, cleaned, validation.FinalText)
	o.record(ctx, models.Interaction{
		Identity:    identity,
		Fingerprint: fingerprint,
		Category:    category,
		Language:    language,
		Provider:    result.Provider,
		Status:      result.Status,
		LatencyMs:   result.Latency.Milliseconds(),
		Tokens:      result.Tokens,
		Cost:        result.Cost,
	})
	state = StateLogged

	if o.answers != nil && result.Status == models.StatusSuccess && validation.IsSafe &&
		o.recorder.HitCount(fingerprint) >= o.minHitCount {
		if cerr := o.answers.Put(fingerprint, language, cache.Entry{
			Answer:   validation.FinalText,
			Provider: result.Provider,
		}); cerr != nil {
			log.Printf("pipeline: request %s cache put failed: %v", requestID, cerr)
		}
	}

	resp.Answer = validation.FinalText
	resp.Status = result.Status
	resp.Provider = result.Provider
	resp.LatencyMs = time.Since(start).Milliseconds()
	if req.ReturnSources {
		resp.Sources = sources
	}
	if len(validation.Warnings) > 0 || !validation.IsSafe {
		v := validation
		resp.Validation = &v
	}
	state = StateDone
	log.Printf("pipeline: request %s state=%s provider=%s status=%s latency=%dms",
		requestID, state, resp.Provider, resp.Status, resp.LatencyMs)

	return resp, nil
}

// DeriveIdentity hashes the caller-supplied ID, falling back to the
// connection origin. Raw identifiers never leave this function.
func DeriveIdentity(userID, origin string) string {
	if userID != "" {
		return privacy.HashIdentity(userID)
	}
	return privacy.HashIdentity(origin)
}

func (o *Orchestrator) reject(resp models.QueryResponse, start time.Time, rerr error) (models.QueryResponse, error) {
	resp.Status = models.StatusError
	resp.Error = rerr.Error()
	resp.LatencyMs = time.Since(start).Milliseconds()
	return resp, rerr
}

func (o *Orchestrator) remember(identity, question, answer string) {
	o.memory.Append(identity, "user", question)
	if answer != "" {
		o.memory.Append(identity, "assistant", answer)
	}
}

// record writes the interaction on a cancel-free context: the request is
// already accounted (quota incremented, provider attempted), so a caller
// disconnect must not drop the record.
func (o *Orchestrator) record(ctx context.Context, in models.Interaction) {
	if err := o.recorder.Log(context.WithoutCancel(ctx), in); err != nil {
		log.Printf("pipeline: analytics log failed: %v", err)
	}
}

// assemblePrompt layers the base instructions, prior conversation, and
// retrieved snippets into one system prompt.
func (o *Orchestrator) assemblePrompt(conversation string, sources []models.Source, language string) string {
	var b strings.Builder
	b.WriteString(o.systemPrompt)
	if language != defaultLanguage {
		fmt.Fprintf(&b, "\n\nRespond in language code %q.", language)
	}
	if conversation != "" {
		b.WriteString("\n\nConversation so far:\n")
		b.WriteString(conversation)
	}
	if len(sources) > 0 {
		b.WriteString("\n\nRelevant context:\n")
		for _, s := range sources {
			b.WriteString("- ")
			b.WriteString(s.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}

// ExportBundle is everything stored about one identity.
type ExportBundle struct {
	Identity     string               `json:"identity"`
	Usage        *usage.Snapshot      `json:"usage,omitempty"`
	Consent      *models.ConsentRecord `json:"consent,omitempty"`
	Conversation *memory.SessionStats `json:"conversation,omitempty"`
	Insights     *models.UserInsights `json:"insights,omitempty"`
	ExportedAt   time.Time            `json:"exported_at"`
}

// Export fans out to every stateful component and gathers whatever each
// holds for the identity.
func (o *Orchestrator) Export(ctx context.Context, identity string) ExportBundle {
	bundle := ExportBundle{Identity: identity, ExportedAt: time.Now().UTC()}

	if snap, ok := o.gate.Export(identity); ok {
		bundle.Usage = &snap
	}
	if consent, ok := o.filter.Export(identity); ok {
		bundle.Consent = &consent
	}
	if stats, ok := o.memory.SessionStats(identity); ok {
		bundle.Conversation = &stats
	}
	if insights, ok := o.recorder.UserInsights(identity); ok {
		bundle.Insights = &insights
	}

	o.audit(ctx, identity, audit.KindDataExported, "")
	return bundle
}

// EraseResult reports what each component deleted.
type EraseResult struct {
	UsageDeleted        bool  `json:"usage_deleted"`
	ConsentDeleted      bool  `json:"consent_deleted"`
	ConversationCleared bool  `json:"conversation_cleared"`
	InteractionsDeleted int64 `json:"interactions_deleted"`
}

// Erase removes every component's data for the identity. The erasure
// itself is audited so the action remains accountable after the data
// is gone.
func (o *Orchestrator) Erase(ctx context.Context, identity string) (EraseResult, error) {
	var res EraseResult
	res.UsageDeleted = o.gate.Delete(identity)
	res.ConsentDeleted = o.filter.Delete(identity)
	res.ConversationCleared = o.memory.Clear(identity)

	n, err := o.recorder.DeleteIdentity(ctx, identity)
	if err != nil {
		return res, fmt.Errorf("erase interactions: %w", err)
	}
	res.InteractionsDeleted = n

	o.audit(ctx, identity, audit.KindDataErased, fmt.Sprintf("interactions=%d", n))
	return res, nil
}

func (o *Orchestrator) audit(ctx context.Context, identity, kind, detail string) {
	if o.auditor == nil {
		return
	}
	if err := o.auditor.Log(context.WithoutCancel(ctx), audit.Event{Identity: identity, Kind: kind, Detail: detail}); err != nil {
		log.Printf("pipeline: audit log failed: %v", err)
	}
}
