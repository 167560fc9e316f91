package custody

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/animus-labs/custody/internal/platform/canonicaljson"
	"github.com/animus-labs/custody/internal/platform/digest"
)

func testConfig() Config {
	return Config{HashAlgorithm: "sha256", Secret: []byte("test-secret")}
}

// newTestBuilder returns a builder with a deterministic clock and id source.
func newTestBuilder(cfg Config) *Builder {
	b := NewBuilder(cfg)
	base := time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.UTC)
	n := 0
	b.now = func() time.Time {
		n++
		return base.Add(time.Duration(n) * time.Minute)
	}
	ids := 0
	b.newID = func() string {
		ids++
		return fmt.Sprintf("evt-%d", ids)
	}
	return b
}

func TestBuild_PopulatesIntegrity(t *testing.T) {
	cfg := testConfig()
	b := newTestBuilder(cfg)

	event, err := b.Build(BuildInput{
		EvidenceID:  "ev-1",
		EventType:   EventTypeCollection,
		ContentHash: "h1",
		From:        &Party{Name: "Officer Reyes", Organization: "PD"},
		Location:    &Location{Facility: "Scene 4"},
		Details:     CollectionDetails{WarrantNumber: "W-77"},
	})
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	if event.EventID != "evt-1" {
		t.Fatalf("EventID=%q, want evt-1", event.EventID)
	}
	if event.Timestamp.Nanosecond()%int(time.Millisecond) != 0 {
		t.Fatalf("timestamp not truncated to milliseconds: %v", event.Timestamp)
	}
	if event.Integrity.Algorithm != "sha256" {
		t.Fatalf("Algorithm=%q, want sha256", event.Integrity.Algorithm)
	}
	if event.Integrity.PreviousEventHash != "" {
		t.Fatalf("PreviousEventHash=%q, want empty", event.Integrity.PreviousEventHash)
	}

	material, err := canonicaljson.Marshal(map[string]any{
		"evidenceId":        "ev-1",
		"eventId":           "evt-1",
		"eventType":         "COLLECTION",
		"from":              map[string]any{"name": "Officer Reyes", "organization": "PD"},
		"to":                nil,
		"timestamp":         "2024-03-01T09:31:00.123Z",
		"contentHash":       "h1",
		"previousEventHash": "",
	})
	if err != nil {
		t.Fatalf("canonicaljson.Marshal() err=%v", err)
	}
	wantHash, err := digest.Sum(material, "sha256")
	if err != nil {
		t.Fatalf("digest.Sum() err=%v", err)
	}
	if event.Integrity.EventHash != wantHash {
		t.Fatalf("EventHash=%s, want %s", event.Integrity.EventHash, wantHash)
	}
	wantSig, err := digest.MAC([]byte(wantHash), cfg.Secret, "sha256")
	if err != nil {
		t.Fatalf("digest.MAC() err=%v", err)
	}
	if event.Integrity.Signature != wantSig {
		t.Fatalf("Signature=%s, want %s", event.Integrity.Signature, wantSig)
	}
}

func TestBuild_ConfigurationError(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{name: "missing secret", cfg: Config{HashAlgorithm: "sha256"}},
		{name: "blank secret", cfg: Config{HashAlgorithm: "sha256", Secret: []byte("   ")}},
		{name: "unknown algorithm", cfg: Config{HashAlgorithm: "md5", Secret: []byte("s")}},
		{name: "unknown mac algorithm", cfg: Config{HashAlgorithm: "sha256", MACAlgorithm: "sha1", Secret: []byte("s")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			event, err := NewBuilder(tc.cfg).Build(BuildInput{
				EvidenceID:  "ev-1",
				EventType:   EventTypeTransfer,
				ContentHash: "h1",
			})
			var cfgErr *ConfigurationError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Build() err=%v, want *ConfigurationError", err)
			}
			if event.EventID != "" || event.Integrity.EventHash != "" {
				t.Fatalf("expected no event, got %+v", event)
			}
		})
	}
}

func TestBuild_RejectsMismatchedDetails(t *testing.T) {
	_, err := newTestBuilder(testConfig()).Build(BuildInput{
		EvidenceID:  "ev-1",
		EventType:   EventTypeTransfer,
		ContentHash: "h1",
		Details:     AnalysisDetails{Tool: "autopsy"},
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestBuild_RejectsUnknownEventType(t *testing.T) {
	_, err := newTestBuilder(testConfig()).Build(BuildInput{
		EvidenceID:  "ev-1",
		EventType:   EventType("SHREDDED"),
		ContentHash: "h1",
	})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestBuild_EmptyPartyTreatedAsAbsent(t *testing.T) {
	cfg := testConfig()
	a, err := newTestBuilder(cfg).Build(BuildInput{EvidenceID: "ev-1", EventType: EventTypeStorage, ContentHash: "h1", To: &Party{}})
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	b, err := newTestBuilder(cfg).Build(BuildInput{EvidenceID: "ev-1", EventType: EventTypeStorage, ContentHash: "h1"})
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	if a.To != nil {
		t.Fatalf("To=%+v, want nil", a.To)
	}
	if a.Integrity.EventHash != b.Integrity.EventHash {
		t.Fatalf("hash mismatch: %s vs %s", a.Integrity.EventHash, b.Integrity.EventHash)
	}
}

func TestBuild_ContextFieldsAreNotBound(t *testing.T) {
	cfg := testConfig()
	a, err := newTestBuilder(cfg).Build(BuildInput{EvidenceID: "ev-1", EventType: EventTypeAnalysis, ContentHash: "h1", Purpose: "triage"})
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	b, err := newTestBuilder(cfg).Build(BuildInput{EvidenceID: "ev-1", EventType: EventTypeAnalysis, ContentHash: "h1", Purpose: "full exam", Method: "imaging"})
	if err != nil {
		t.Fatalf("Build() err=%v", err)
	}
	if a.Integrity.EventHash != b.Integrity.EventHash {
		t.Fatalf("expected context fields to stay outside the event hash")
	}
}

func TestCanonical_FieldAssemblyOrderIndependent(t *testing.T) {
	ts := time.Date(2024, 3, 1, 9, 31, 0, 0, time.UTC)

	var first Event
	first.EventID = "evt-1"
	first.EventType = EventTypeTransfer
	first.From = &Party{UserID: "u1", Name: "Ana"}
	first.To = &Party{Organization: "Lab"}
	first.Timestamp = ts
	first.Integrity.ContentHash = "h1"

	var second Event
	second.Integrity.ContentHash = "h1"
	second.Timestamp = ts
	second.To = &Party{Organization: "Lab"}
	second.From = &Party{Name: "Ana", UserID: "u1"}
	second.EventType = EventTypeTransfer
	second.EventID = "evt-1"

	a, err := Canonical("ev-1", first, "prev")
	if err != nil {
		t.Fatalf("Canonical() err=%v", err)
	}
	b, err := Canonical("ev-1", second, "prev")
	if err != nil {
		t.Fatalf("Canonical() err=%v", err)
	}
	if string(a) != string(b) {
		t.Fatalf("canonical mismatch: %s vs %s", a, b)
	}

	ha, err := eventHash(testConfig(), "ev-1", first, "prev")
	if err != nil {
		t.Fatalf("eventHash() err=%v", err)
	}
	hb, err := eventHash(testConfig(), "ev-1", second, "prev")
	if err != nil {
		t.Fatalf("eventHash() err=%v", err)
	}
	if ha != hb {
		t.Fatalf("event hash mismatch: %s vs %s", ha, hb)
	}
}

func TestCanonical_Layout(t *testing.T) {
	e := Event{
		EventID:   "evt-9",
		EventType: EventTypeRelease,
		Timestamp: time.Date(2024, 1, 2, 3, 4, 5, 6_000_000, time.FixedZone("X", 3600)),
		Integrity: Integrity{ContentHash: "h1"},
	}
	got, err := Canonical("ev-1", e, "")
	if err != nil {
		t.Fatalf("Canonical() err=%v", err)
	}
	want := `{"contentHash":"h1","eventId":"evt-9","eventType":"RELEASE","evidenceId":"ev-1","from":null,"previousEventHash":"","timestamp":"2024-01-02T02:04:05.006Z","to":null}`
	if string(got) != want {
		t.Fatalf("Canonical()=%s, want %s", got, want)
	}
}
