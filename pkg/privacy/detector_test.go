package privacy

import (
	"strings"
	"testing"
)

func TestRedactEachClass(t *testing.T) {
	cases := []struct {
		name        string
		input       string
		placeholder string
	}{
		{"email", "contact me at alice@example.com please", "[email redacted]"},
		{"phone", "call 555-123-4567 tomorrow", "[phone redacted]"},
		{"chain_address", "send to 0x52908400098527886E0F7030069857D2E4169EE7 now", "[wallet address]"},
		{"payment_card", "card 4111-1111-1111-1111 expires soon", "[card number redacted]"},
		{"national_id", "my ssn is 078-05-1120 ok", "[ssn redacted]"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cleaned, found := Redact(tc.input)
			if len(found) == 0 {
				t.Fatalf("expected %s detection in %q", tc.name, tc.input)
			}
			if !strings.Contains(cleaned, tc.placeholder) {
				t.Errorf("expected placeholder %q in %q", tc.placeholder, cleaned)
			}
		})
	}
}

func TestRedactIdempotent(t *testing.T) {
	inputs := []string{
		"email alice@example.com and phone 555-123-4567",
		"wallet 0x52908400098527886E0F7030069857D2E4169EE7",
		"card 4111 1111 1111 1111 and ssn 078-05-1120",
		"no pii here at all",
	}

	for _, input := range inputs {
		once, _ := Redact(input)
		twice, found := Redact(once)
		if twice != once {
			t.Errorf("redaction not idempotent:\nonce:  %q\ntwice: %q", once, twice)
		}
		if len(found) != 0 {
			t.Errorf("PII still detected in redacted text %q: %+v", once, found)
		}
	}
}

func TestDetectCountsMatches(t *testing.T) {
	found := Detect("a@b.com and c@d.org")
	if len(found) != 1 {
		t.Fatalf("expected 1 class, got %d", len(found))
	}
	if found[0].Class != "email" || found[0].Count != 2 {
		t.Errorf("expected 2 email matches, got %+v", found[0])
	}
}

func TestDetectClean(t *testing.T) {
	if found := Detect("how do I stake tokens?"); len(found) != 0 {
		t.Errorf("expected no detections, got %+v", found)
	}
}
