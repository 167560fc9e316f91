package postgres

import (
	"context"
	"fmt"
)

// Schema creates the tables this service reads and writes. The evidence
// table is owned by the evidence registry; it is declared here so a fresh
// database is usable for local runs.
const Schema = `
CREATE TABLE IF NOT EXISTS evidence (
	evidence_id    TEXT PRIMARY KEY,
	case_id        TEXT NOT NULL,
	content_sha256 TEXT NOT NULL,
	object_key     TEXT NOT NULL,
	size_bytes     BIGINT NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS custody_events (
	evidence_id         TEXT NOT NULL REFERENCES evidence (evidence_id),
	seq                 BIGINT NOT NULL,
	event_id            TEXT NOT NULL UNIQUE,
	event_type          TEXT NOT NULL,
	event_hash          TEXT NOT NULL,
	previous_event_hash TEXT NOT NULL DEFAULT '',
	recorded_by         TEXT NOT NULL,
	recorded_at         TIMESTAMPTZ NOT NULL,
	record              JSONB NOT NULL,
	PRIMARY KEY (evidence_id, seq)
);

CREATE TABLE IF NOT EXISTS audit_events (
	event_id         BIGSERIAL PRIMARY KEY,
	occurred_at      TIMESTAMPTZ NOT NULL,
	actor            TEXT NOT NULL,
	action           TEXT NOT NULL,
	resource_type    TEXT NOT NULL,
	resource_id      TEXT NOT NULL,
	request_id       TEXT,
	ip               INET,
	user_agent       TEXT,
	payload          JSONB NOT NULL,
	integrity_sha256 TEXT NOT NULL
);

CREATE OR REPLACE FUNCTION custody_reject_mutation() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION '% is append-only', TG_TABLE_NAME;
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS custody_events_append_only ON custody_events;
CREATE TRIGGER custody_events_append_only
	BEFORE UPDATE OR DELETE ON custody_events
	FOR EACH ROW EXECUTE FUNCTION custody_reject_mutation();

DROP TRIGGER IF EXISTS audit_events_append_only ON audit_events;
CREATE TRIGGER audit_events_append_only
	BEFORE UPDATE OR DELETE ON audit_events
	FOR EACH ROW EXECUTE FUNCTION custody_reject_mutation();
`

func EnsureSchema(ctx context.Context, db DB) error {
	if db == nil {
		return fmt.Errorf("db is required")
	}
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
