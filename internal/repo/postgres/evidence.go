package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/animus-labs/custody/internal/repo"
)

type EvidenceStore struct {
	db DB
}

const selectEvidenceQuery = `SELECT evidence_id, case_id, content_sha256, object_key, size_bytes, created_at
	 FROM evidence
	 WHERE evidence_id = $1`

func NewEvidenceStore(db DB) *EvidenceStore {
	if db == nil {
		return nil
	}
	return &EvidenceStore{db: db}
}

func (s *EvidenceStore) GetEvidence(ctx context.Context, evidenceID string) (repo.Evidence, error) {
	if s == nil || s.db == nil {
		return repo.Evidence{}, fmt.Errorf("evidence store not initialized")
	}
	evidenceID = strings.TrimSpace(evidenceID)
	if evidenceID == "" {
		return repo.Evidence{}, fmt.Errorf("evidence id is required")
	}

	var out repo.Evidence
	err := s.db.QueryRowContext(ctx, selectEvidenceQuery, evidenceID).Scan(
		&out.EvidenceID,
		&out.CaseID,
		&out.ContentSHA256,
		&out.ObjectKey,
		&out.SizeBytes,
		&out.CreatedAt,
	)
	if err != nil {
		return repo.Evidence{}, handleNotFound(err)
	}
	out.ContentSHA256 = strings.ToLower(strings.TrimSpace(out.ContentSHA256))
	out.CreatedAt = out.CreatedAt.UTC()
	return out, nil
}
