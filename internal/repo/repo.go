package repo

import (
	"context"
	"errors"
	"time"

	"github.com/animus-labs/custody/internal/custody"
	"github.com/animus-labs/custody/internal/platform/auditlog"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("conflict")
)

// Evidence is the read-only view of an evidence record owned by the
// evidence registry.
type Evidence struct {
	EvidenceID    string
	CaseID        string
	ContentSHA256 string
	ObjectKey     string
	SizeBytes     int64
	CreatedAt     time.Time
}

// StoredEvent is a custody event together with its position in the chain.
type StoredEvent struct {
	EvidenceID string
	Seq        int64
	RecordedBy string
	RecordedAt time.Time
	Event      custody.Event
}

// BuildFunc builds the next event given the current tail's event hash
// ("" for an empty chain).
type BuildFunc func(previousEventHash string) (custody.Event, error)

// AuditFunc describes the audit row written alongside an appended event.
type AuditFunc func(event custody.Event) auditlog.Event

type EvidenceRepository interface {
	GetEvidence(ctx context.Context, evidenceID string) (Evidence, error)
}

// CustodyEventRepository is append-only. Append serialises writers per
// evidence id so the tail read by build is the true tail.
type CustodyEventRepository interface {
	Append(ctx context.Context, evidenceID string, recordedBy string, build BuildFunc, audit AuditFunc) (StoredEvent, error)
	List(ctx context.Context, evidenceID string) ([]StoredEvent, error)
}

// AuditEventAppender ensures append-only audit writes.
type AuditEventAppender interface {
	Append(ctx context.Context, event auditlog.Event) (int64, error)
}
