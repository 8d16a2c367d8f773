package privacy

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/onramp-ai/onramp/pkg/audit"
	"github.com/onramp-ai/onramp/pkg/models"
)

// Result is the outcome of processing one query through the filter.
// ConsentRequired means the pipeline must stop before any provider call.
type Result struct {
	CleanedText     string
	PIIFound        bool
	Detections      []Detection
	ConsentRequired bool
}

// Filter redacts PII and enforces consent for regulated regions.
type Filter struct {
	mu       sync.Mutex
	consents map[string]models.ConsentRecord

	regions    map[string]bool
	consentTTL time.Duration
	auditor    *audit.Logger

	now func() time.Time
}

// New creates a Filter. consentRegions lists region codes that require a
// valid consent record before processing; auditor may be nil.
func New(consentRegions []string, consentTTL time.Duration, auditor *audit.Logger) *Filter {
	regions := make(map[string]bool, len(consentRegions))
	for _, r := range consentRegions {
		regions[strings.ToUpper(r)] = true
	}
	if consentTTL <= 0 {
		consentTTL = 365 * 24 * time.Hour
	}
	return &Filter{
		consents:   make(map[string]models.ConsentRecord),
		regions:    regions,
		consentTTL: consentTTL,
		auditor:    auditor,
		now:        time.Now,
	}
}

// Process redacts PII from text and checks whether the identity's region
// requires consent that has not been granted. PII detections are audited
// with the identity and class names only, never matched values.
func (f *Filter) Process(ctx context.Context, identity, text, region string) Result {
	cleaned, found := Redact(text)

	res := Result{
		CleanedText: cleaned,
		PIIFound:    len(found) > 0,
		Detections:  found,
	}

	if res.PIIFound {
		log.Printf("privacy: redacted %d PII class(es) for identity %s", len(found), identity)
		// The redaction already happened; its audit record must survive
		// a caller disconnect.
		if err := f.auditor.Log(context.WithoutCancel(ctx), audit.Event{
			Identity: identity,
			Kind:     audit.KindPIIRedacted,
			Detail:   detectionDetail(found),
		}); err != nil {
			log.Printf("privacy: audit log error: %v", err)
		}
	}

	if f.regions[strings.ToUpper(region)] && !f.HasConsent(identity) {
		res.ConsentRequired = true
	}
	return res
}

// GrantConsent records consent for the given purposes with the configured
// expiry.
func (f *Filter) GrantConsent(ctx context.Context, identity string, purposes []string) models.ConsentRecord {
	now := f.now()
	rec := models.ConsentRecord{
		Purposes:  purposes,
		GrantedAt: now,
		ExpiresAt: now.Add(f.consentTTL),
	}

	f.mu.Lock()
	f.consents[identity] = rec
	f.mu.Unlock()

	log.Printf("privacy: consent granted for identity %s", identity)
	if err := f.auditor.Log(ctx, audit.Event{
		Identity: identity,
		Kind:     audit.KindConsentGranted,
		Detail:   strings.Join(purposes, ","),
	}); err != nil {
		log.Printf("privacy: audit log error: %v", err)
	}
	return rec
}

// HasConsent reports whether the identity holds a non-expired consent
// record. Expired records are removed on read.
func (f *Filter) HasConsent(identity string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	rec, ok := f.consents[identity]
	if !ok {
		return false
	}
	if f.now().After(rec.ExpiresAt) {
		delete(f.consents, identity)
		return false
	}
	return true
}

// RevokeConsent removes the identity's consent record and reports whether
// one existed.
func (f *Filter) RevokeConsent(ctx context.Context, identity string) bool {
	f.mu.Lock()
	_, ok := f.consents[identity]
	delete(f.consents, identity)
	f.mu.Unlock()

	if ok {
		log.Printf("privacy: consent revoked for identity %s", identity)
		if err := f.auditor.Log(ctx, audit.Event{
			Identity: identity,
			Kind:     audit.KindConsentRevoked,
		}); err != nil {
			log.Printf("privacy: audit log error: %v", err)
		}
	}
	return ok
}

// Export returns the identity's consent record for the data export, or
// false if none exists (expired counts as none).
func (f *Filter) Export(identity string) (models.ConsentRecord, bool) {
	if !f.HasConsent(identity) {
		return models.ConsentRecord{}, false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	rec := f.consents[identity]
	return rec, true
}

// Delete removes the identity's consent record. Deleting other
// components' data is each component's own responsibility.
func (f *Filter) Delete(identity string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.consents[identity]
	delete(f.consents, identity)
	return ok
}

// HashIdentity derives the opaque identity key from a caller-supplied
// identifier or network origin.
func HashIdentity(identifier string) string {
	sum := sha256.Sum256([]byte(identifier))
	return hex.EncodeToString(sum[:])[:16]
}

func detectionDetail(found []Detection) string {
	parts := make([]string, 0, len(found))
	for _, d := range found {
		parts = append(parts, fmt.Sprintf("%s=%d", d.Class, d.Count))
	}
	return strings.Join(parts, ",")
}
