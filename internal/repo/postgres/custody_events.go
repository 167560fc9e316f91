package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/animus-labs/custody/internal/custody"
	"github.com/animus-labs/custody/internal/platform/auditlog"
	"github.com/animus-labs/custody/internal/repo"
)

type CustodyEventStore struct {
	db  TxDB
	now func() time.Time
}

const (
	lockEvidenceChainQuery = `SELECT pg_advisory_xact_lock(hashtext($1))`

	selectChainTailQuery = `SELECT seq, event_hash
	 FROM custody_events
	 WHERE evidence_id = $1
	 ORDER BY seq DESC
	 LIMIT 1`

	insertCustodyEventQuery = `INSERT INTO custody_events (
		evidence_id,
		seq,
		event_id,
		event_type,
		event_hash,
		previous_event_hash,
		recorded_by,
		recorded_at,
		record
	) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

	listCustodyEventsQuery = `SELECT evidence_id, seq, recorded_by, recorded_at, record
	 FROM custody_events
	 WHERE evidence_id = $1
	 ORDER BY seq ASC`
)

func NewCustodyEventStore(db TxDB) *CustodyEventStore {
	if db == nil {
		return nil
	}
	return &CustodyEventStore{db: db, now: time.Now}
}

// Append builds and stores the next event of an evidence chain in one
// transaction. A transaction-scoped advisory lock on the evidence id keeps
// concurrent appends from reading the same tail.
func (s *CustodyEventStore) Append(ctx context.Context, evidenceID string, recordedBy string, build repo.BuildFunc, audit repo.AuditFunc) (repo.StoredEvent, error) {
	if s == nil || s.db == nil {
		return repo.StoredEvent{}, fmt.Errorf("custody event store not initialized")
	}
	evidenceID = strings.TrimSpace(evidenceID)
	recordedBy = strings.TrimSpace(recordedBy)
	if evidenceID == "" {
		return repo.StoredEvent{}, fmt.Errorf("evidence id is required")
	}
	if recordedBy == "" {
		return repo.StoredEvent{}, fmt.Errorf("recorded by is required")
	}
	if build == nil {
		return repo.StoredEvent{}, fmt.Errorf("build func is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return repo.StoredEvent{}, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, lockEvidenceChainQuery, evidenceID); err != nil {
		return repo.StoredEvent{}, fmt.Errorf("lock evidence chain: %w", err)
	}

	var (
		tailSeq  int64
		tailHash string
	)
	err = tx.QueryRowContext(ctx, selectChainTailQuery, evidenceID).Scan(&tailSeq, &tailHash)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return repo.StoredEvent{}, fmt.Errorf("load chain tail: %w", err)
	}

	event, err := build(tailHash)
	if err != nil {
		return repo.StoredEvent{}, err
	}
	if event.Integrity.PreviousEventHash != tailHash {
		return repo.StoredEvent{}, fmt.Errorf("built event does not link to chain tail")
	}
	record, err := json.Marshal(event)
	if err != nil {
		return repo.StoredEvent{}, fmt.Errorf("encode custody event: %w", err)
	}

	stored := repo.StoredEvent{
		EvidenceID: evidenceID,
		Seq:        tailSeq + 1,
		RecordedBy: recordedBy,
		RecordedAt: s.now().UTC(),
		Event:      event,
	}
	_, err = tx.ExecContext(
		ctx,
		insertCustodyEventQuery,
		stored.EvidenceID,
		stored.Seq,
		event.EventID,
		string(event.EventType),
		event.Integrity.EventHash,
		event.Integrity.PreviousEventHash,
		stored.RecordedBy,
		stored.RecordedAt,
		record,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return repo.StoredEvent{}, fmt.Errorf("%w: custody event %s", repo.ErrConflict, event.EventID)
		}
		return repo.StoredEvent{}, fmt.Errorf("insert custody event: %w", err)
	}

	if audit != nil {
		auditEvent := audit(event)
		if auditEvent.OccurredAt.IsZero() {
			auditEvent.OccurredAt = stored.RecordedAt
		}
		if _, err := auditlog.Insert(ctx, tx, auditEvent); err != nil {
			return repo.StoredEvent{}, err
		}
	}

	if err := tx.Commit(); err != nil {
		return repo.StoredEvent{}, fmt.Errorf("commit: %w", err)
	}
	return stored, nil
}

func (s *CustodyEventStore) List(ctx context.Context, evidenceID string) ([]repo.StoredEvent, error) {
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("custody event store not initialized")
	}
	evidenceID = strings.TrimSpace(evidenceID)
	if evidenceID == "" {
		return nil, fmt.Errorf("evidence id is required")
	}

	rows, err := s.db.QueryContext(ctx, listCustodyEventsQuery, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("list custody events: %w", err)
	}
	defer rows.Close()

	out := make([]repo.StoredEvent, 0)
	for rows.Next() {
		var (
			stored repo.StoredEvent
			record []byte
		)
		if err := rows.Scan(&stored.EvidenceID, &stored.Seq, &stored.RecordedBy, &stored.RecordedAt, &record); err != nil {
			return nil, fmt.Errorf("scan custody event: %w", err)
		}
		event, err := decodeCustodyEvent(record)
		if err != nil {
			return nil, fmt.Errorf("custody event %s/%d: %w", stored.EvidenceID, stored.Seq, err)
		}
		stored.RecordedAt = stored.RecordedAt.UTC()
		stored.Event = event
		out = append(out, stored)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate custody events: %w", err)
	}
	return out, nil
}

func decodeCustodyEvent(record []byte) (custody.Event, error) {
	if len(record) == 0 {
		return custody.Event{}, errors.New("empty record")
	}
	var event custody.Event
	if err := json.Unmarshal(record, &event); err != nil {
		return custody.Event{}, fmt.Errorf("decode record: %w", err)
	}
	event.Timestamp = event.Timestamp.UTC()
	return event, nil
}
