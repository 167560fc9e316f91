package custody

import (
	"time"

	"github.com/animus-labs/custody/internal/platform/canonicaljson"
	"github.com/animus-labs/custody/internal/platform/digest"
)

// TimestampFormat is the textual form of an event timestamp inside the
// hashed binding material. Timestamps are stored at millisecond precision
// in UTC so that this form round-trips.
const TimestampFormat = "2006-01-02T15:04:05.000Z"

// bindingMaterial is the exact field set covered by eventHash. Every key is
// always present: an absent party is null and an absent previous hash is "".
type bindingMaterial struct {
	EvidenceID        string    `json:"evidenceId"`
	EventID           string    `json:"eventId"`
	EventType         EventType `json:"eventType"`
	From              *Party    `json:"from"`
	To                *Party    `json:"to"`
	Timestamp         string    `json:"timestamp"`
	ContentHash       string    `json:"contentHash"`
	PreviousEventHash string    `json:"previousEventHash"`
}

func newBindingMaterial(evidenceID string, e Event, previousHash string) bindingMaterial {
	return bindingMaterial{
		EvidenceID:        evidenceID,
		EventID:           e.EventID,
		EventType:         e.EventType,
		From:              partyOrNil(e.From),
		To:                partyOrNil(e.To),
		Timestamp:         FormatTimestamp(e.Timestamp),
		ContentHash:       e.Integrity.ContentHash,
		PreviousEventHash: previousHash,
	}
}

// FormatTimestamp renders t the way it is bound into an event hash.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampFormat)
}

func partyOrNil(p *Party) *Party {
	if p.IsZero() {
		return nil
	}
	return p
}

// Canonical returns the canonical bytes of the binding material for an
// event positioned after previousHash.
func Canonical(evidenceID string, e Event, previousHash string) ([]byte, error) {
	return canonicaljson.Marshal(newBindingMaterial(evidenceID, e, previousHash))
}

func eventHash(cfg Config, evidenceID string, e Event, previousHash string) (string, error) {
	blob, err := Canonical(evidenceID, e, previousHash)
	if err != nil {
		return "", err
	}
	return digest.Sum(blob, cfg.hashAlgorithm())
}

func sign(cfg Config, hash string) (string, error) {
	return digest.MAC([]byte(hash), cfg.Secret, cfg.macAlgorithm())
}
