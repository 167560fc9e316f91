package custody

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventType names the real-world custody action an event records.
type EventType string

const (
	EventTypeCollection           EventType = "COLLECTION"
	EventTypeTransfer             EventType = "TRANSFER"
	EventTypeAnalysis             EventType = "ANALYSIS"
	EventTypeStorage              EventType = "STORAGE"
	EventTypeRelease              EventType = "RELEASE"
	EventTypeBlockchainSubmission EventType = "BLOCKCHAIN_SUBMISSION"
	EventTypeOther                EventType = "OTHER"
)

var eventTypes = []EventType{
	EventTypeCollection,
	EventTypeTransfer,
	EventTypeAnalysis,
	EventTypeStorage,
	EventTypeRelease,
	EventTypeBlockchainSubmission,
	EventTypeOther,
}

// EventTypes lists every known event type in declaration order.
func EventTypes() []EventType {
	out := make([]EventType, len(eventTypes))
	copy(out, eventTypes)
	return out
}

func (t EventType) Valid() bool {
	for _, known := range eventTypes {
		if t == known {
			return true
		}
	}
	return false
}

// ParseEventType accepts the wire name in any case.
func ParseEventType(raw string) (EventType, error) {
	t := EventType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", fmt.Errorf("unknown event type %q", raw)
	}
	return t, nil
}

// Party identifies a person or organisation handing over or receiving
// evidence. Every field is optional.
type Party struct {
	UserID       string `json:"userId,omitempty"`
	Name         string `json:"name,omitempty"`
	Organization string `json:"organization,omitempty"`
}

func (p *Party) IsZero() bool {
	return p == nil || (strings.TrimSpace(p.UserID) == "" && strings.TrimSpace(p.Name) == "" && strings.TrimSpace(p.Organization) == "")
}

type Location struct {
	Facility string `json:"facility,omitempty"`
	Address  string `json:"address,omitempty"`
	Room     string `json:"room,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

type Packaging struct {
	Type       string `json:"type,omitempty"`
	SealNumber string `json:"sealNumber,omitempty"`
	Condition  string `json:"condition,omitempty"`
}

// Integrity carries the hash chain link and signature of an event.
type Integrity struct {
	ContentHash       string `json:"contentHash"`
	PreviousEventHash string `json:"previousEventHash,omitempty"`
	EventHash         string `json:"eventHash"`
	Algorithm         string `json:"algorithm"`
	Signature         string `json:"signature"`
}

// Event is one immutable entry in an evidence item's chain of custody.
// Only EventID, EventType, From, To, Timestamp and the integrity hashes are
// bound into EventHash; the context fields travel with the record.
type Event struct {
	EventID   string     `json:"eventId"`
	EventType EventType  `json:"eventType"`
	From      *Party     `json:"from,omitempty"`
	To        *Party     `json:"to,omitempty"`
	Location  *Location  `json:"location,omitempty"`
	Purpose   string     `json:"purpose,omitempty"`
	Method    string     `json:"method,omitempty"`
	Packaging *Packaging `json:"packaging,omitempty"`
	Details   Details    `json:"details,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	Integrity Integrity  `json:"integrity"`
}

func (e *Event) UnmarshalJSON(data []byte) error {
	type alias Event
	var raw struct {
		alias
		Details json.RawMessage `json:"details,omitempty"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	details, err := decodeDetails(raw.alias.EventType, raw.Details)
	if err != nil {
		return err
	}
	*e = Event(raw.alias)
	e.Details = details
	return nil
}
