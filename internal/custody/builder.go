package custody

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// BuildInput carries the primitive identifiers and optional context a
// caller supplies when recording a custody action.
type BuildInput struct {
	EvidenceID        string
	EventType         EventType
	ContentHash       string
	PreviousEventHash string
	From              *Party
	To                *Party
	Location          *Location
	Purpose           string
	Method            string
	Packaging         *Packaging
	Details           Details
}

// Builder composes new signed custody events. It holds no mutable state
// and is safe for concurrent use.
type Builder struct {
	cfg   Config
	now   func() time.Time
	newID func() string
}

func NewBuilder(cfg Config) *Builder {
	return &Builder{cfg: cfg, now: time.Now, newID: uuid.NewString}
}

// Build returns a new event bound to in.PreviousEventHash. A
// *ConfigurationError is returned when the algorithm or secret is
// unavailable; no event is produced in that case.
func (b *Builder) Build(in BuildInput) (Event, error) {
	if b == nil {
		return Event{}, &ConfigurationError{Field: "builder", Reason: "not initialized"}
	}
	if err := b.cfg.Validate(); err != nil {
		return Event{}, err
	}
	if !in.EventType.Valid() {
		return Event{}, fmt.Errorf("unknown event type %q", in.EventType)
	}
	if strings.TrimSpace(in.EvidenceID) == "" {
		return Event{}, errors.New("evidence id is required")
	}
	if strings.TrimSpace(in.ContentHash) == "" {
		return Event{}, errors.New("content hash is required")
	}
	if in.Details != nil && in.Details.EventType() != in.EventType {
		return Event{}, fmt.Errorf("%s details cannot describe a %s event", in.Details.EventType(), in.EventType)
	}

	event := Event{
		EventID:   b.newID(),
		EventType: in.EventType,
		From:      partyOrNil(in.From),
		To:        partyOrNil(in.To),
		Location:  in.Location,
		Purpose:   in.Purpose,
		Method:    in.Method,
		Packaging: in.Packaging,
		Details:   in.Details,
		Timestamp: b.now().UTC().Truncate(time.Millisecond),
		Integrity: Integrity{
			ContentHash:       in.ContentHash,
			PreviousEventHash: in.PreviousEventHash,
			Algorithm:         b.cfg.hashAlgorithm(),
		},
	}

	hash, err := eventHash(b.cfg, in.EvidenceID, event, in.PreviousEventHash)
	if err != nil {
		return Event{}, fmt.Errorf("compute event hash: %w", err)
	}
	signature, err := sign(b.cfg, hash)
	if err != nil {
		return Event{}, fmt.Errorf("sign event hash: %w", err)
	}
	event.Integrity.EventHash = hash
	event.Integrity.Signature = signature
	return event, nil
}
