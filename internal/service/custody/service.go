package custody

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	ledger "github.com/animus-labs/custody/internal/custody"
	"github.com/animus-labs/custody/internal/platform/auditlog"
	"github.com/animus-labs/custody/internal/platform/digest"
	"github.com/animus-labs/custody/internal/platform/objectstore"
	"github.com/animus-labs/custody/internal/repo"
)

var (
	ErrEvidenceNotFound    = errors.New("evidence not found")
	ErrContentHashMismatch = errors.New("content hash does not match registered evidence")
	ErrInvalidInput        = errors.New("invalid input")
	ErrDeepUnavailable     = errors.New("deep verification unavailable")
)

const (
	ActionRecord = "custody.record"
	ActionVerify = "custody.verify"

	resourceTypeEvidence = "evidence"

	IssueStoredObjectMismatch = "stored object hash mismatch"
	IssueStoredObjectMissing  = "stored object missing"
)

var tracer = otel.Tracer("github.com/animus-labs/custody/internal/service/custody")

// AuditContext captures request identity details for audit logging.
type AuditContext struct {
	Actor     string
	RequestID string
	IP        net.IP
	UserAgent string
	Service   string
}

type RecordInput struct {
	EvidenceID  string
	EventType   string
	ContentHash string
	From        *ledger.Party
	To          *ledger.Party
	Location    *ledger.Location
	Purpose     string
	Method      string
	Packaging   *ledger.Packaging
	Details     ledger.Details
}

type VerifyOptions struct {
	Deep bool
}

type VerifyResult struct {
	EvidenceID  string        `json:"evidenceId"`
	ContentHash string        `json:"contentHash"`
	EventCount  int           `json:"eventCount"`
	Deep        bool          `json:"deep"`
	ObjectHash  string        `json:"objectHash,omitempty"`
	Report      ledger.Report `json:"report"`
}

// ObjectHasher recomputes the digest of a stored evidence object.
type ObjectHasher interface {
	HashObject(ctx context.Context, key string, algorithm string) (string, error)
}

type Service struct {
	evidence repo.EvidenceRepository
	events   repo.CustodyEventRepository
	builder  *ledger.Builder
	verifier *ledger.Verifier
	hasher   ObjectHasher
	audit    repo.AuditEventAppender
	now      func() time.Time
}

// NewService fails fast on invalid signing configuration. hasher may be nil,
// in which case deep verification is refused.
func NewService(cfg ledger.Config, evidence repo.EvidenceRepository, events repo.CustodyEventRepository, hasher ObjectHasher, audit repo.AuditEventAppender) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if evidence == nil {
		return nil, errors.New("evidence repository is required")
	}
	if events == nil {
		return nil, errors.New("custody event repository is required")
	}
	if audit == nil {
		return nil, errors.New("audit appender is required")
	}
	return &Service{
		evidence: evidence,
		events:   events,
		builder:  ledger.NewBuilder(cfg),
		verifier: ledger.NewVerifier(cfg),
		hasher:   hasher,
		audit:    audit,
		now:      time.Now,
	}, nil
}

func (s *Service) Record(ctx context.Context, input RecordInput, auditCtx AuditContext) (event ledger.Event, err error) {
	ctx, span := tracer.Start(ctx, "custody.Record", trace.WithAttributes(
		attribute.String("custody.evidence_id", input.EvidenceID),
		attribute.String("custody.event_type", input.EventType),
	))
	defer func() { endSpan(span, err) }()

	if s == nil || s.events == nil {
		return ledger.Event{}, errors.New("custody service not initialized")
	}
	actor := strings.TrimSpace(auditCtx.Actor)
	if actor == "" {
		return ledger.Event{}, fmt.Errorf("%w: actor is required", ErrInvalidInput)
	}
	eventType, err := ledger.ParseEventType(input.EventType)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.Details != nil && input.Details.EventType() != eventType {
		return ledger.Event{}, fmt.Errorf("%w: details do not match event type %s", ErrInvalidInput, eventType)
	}

	evidence, err := s.lookupEvidence(ctx, input.EvidenceID)
	if err != nil {
		return ledger.Event{}, err
	}
	if supplied := strings.TrimSpace(input.ContentHash); supplied != "" && !digest.Equal(strings.ToLower(supplied), evidence.ContentSHA256) {
		return ledger.Event{}, ErrContentHashMismatch
	}

	build := func(previousEventHash string) (ledger.Event, error) {
		return s.builder.Build(ledger.BuildInput{
			EvidenceID:        evidence.EvidenceID,
			EventType:         eventType,
			ContentHash:       evidence.ContentSHA256,
			PreviousEventHash: previousEventHash,
			From:              input.From,
			To:                input.To,
			Location:          input.Location,
			Purpose:           input.Purpose,
			Method:            input.Method,
			Packaging:         input.Packaging,
			Details:           input.Details,
		})
	}
	audit := func(event ledger.Event) auditlog.Event {
		return s.auditEvent(ctx, auditCtx, ActionRecord, evidence.EvidenceID, map[string]any{
			"event_id":            event.EventID,
			"event_type":          string(event.EventType),
			"event_hash":          event.Integrity.EventHash,
			"previous_event_hash": event.Integrity.PreviousEventHash,
		})
	}

	stored, err := s.events.Append(ctx, evidence.EvidenceID, actor, build, audit)
	if err != nil {
		return ledger.Event{}, fmt.Errorf("append custody event: %w", err)
	}
	span.SetAttributes(
		attribute.String("custody.event_id", stored.Event.EventID),
		attribute.Int64("custody.seq", stored.Seq),
	)
	return stored.Event, nil
}

// History returns the chain of an evidence item in append order.
func (s *Service) History(ctx context.Context, evidenceID string) (events []ledger.Event, err error) {
	ctx, span := tracer.Start(ctx, "custody.History", trace.WithAttributes(
		attribute.String("custody.evidence_id", evidenceID),
	))
	defer func() { endSpan(span, err) }()

	if s == nil || s.events == nil {
		return nil, errors.New("custody service not initialized")
	}
	evidence, err := s.lookupEvidence(ctx, evidenceID)
	if err != nil {
		return nil, err
	}
	return s.chain(ctx, evidence.EvidenceID)
}

func (s *Service) Verify(ctx context.Context, evidenceID string, opts VerifyOptions, auditCtx AuditContext) (result VerifyResult, err error) {
	ctx, span := tracer.Start(ctx, "custody.Verify", trace.WithAttributes(
		attribute.String("custody.evidence_id", evidenceID),
		attribute.Bool("custody.deep", opts.Deep),
	))
	defer func() { endSpan(span, err) }()

	if s == nil || s.events == nil {
		return VerifyResult{}, errors.New("custody service not initialized")
	}
	if opts.Deep && s.hasher == nil {
		return VerifyResult{}, ErrDeepUnavailable
	}
	evidence, err := s.lookupEvidence(ctx, evidenceID)
	if err != nil {
		return VerifyResult{}, err
	}
	events, err := s.chain(ctx, evidence.EvidenceID)
	if err != nil {
		return VerifyResult{}, err
	}

	result = VerifyResult{
		EvidenceID:  evidence.EvidenceID,
		ContentHash: evidence.ContentSHA256,
		EventCount:  len(events),
		Deep:        opts.Deep,
		Report:      s.verifier.Verify(evidence.EvidenceID, evidence.ContentSHA256, events),
	}

	if opts.Deep {
		objectHash, err := s.hasher.HashObject(ctx, evidence.ObjectKey, digest.SHA256)
		switch {
		case errors.Is(err, objectstore.ErrObjectNotFound):
			result.Report.Issues = append(result.Report.Issues, IssueStoredObjectMissing)
		case err != nil:
			return VerifyResult{}, fmt.Errorf("hash stored object: %w", err)
		default:
			result.ObjectHash = objectHash
			if !digest.Equal(objectHash, evidence.ContentSHA256) {
				result.Report.Issues = append(result.Report.Issues, IssueStoredObjectMismatch)
			}
		}
		result.Report.Valid = len(result.Report.Issues) == 0
	}
	span.SetAttributes(
		attribute.Int("custody.event_count", result.EventCount),
		attribute.Bool("custody.valid", result.Report.Valid),
	)

	if strings.TrimSpace(auditCtx.Actor) != "" {
		_, err = s.audit.Append(ctx, s.auditEvent(ctx, auditCtx, ActionVerify, evidence.EvidenceID, map[string]any{
			"deep":        opts.Deep,
			"valid":       result.Report.Valid,
			"event_count": result.EventCount,
			"issue_count": len(result.Report.Issues),
		}))
		if err != nil {
			return VerifyResult{}, fmt.Errorf("audit verify: %w", err)
		}
	}
	return result, nil
}

func (s *Service) lookupEvidence(ctx context.Context, evidenceID string) (repo.Evidence, error) {
	evidenceID = strings.TrimSpace(evidenceID)
	if evidenceID == "" {
		return repo.Evidence{}, fmt.Errorf("%w: evidence id is required", ErrInvalidInput)
	}
	evidence, err := s.evidence.GetEvidence(ctx, evidenceID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return repo.Evidence{}, ErrEvidenceNotFound
		}
		return repo.Evidence{}, fmt.Errorf("get evidence: %w", err)
	}
	return evidence, nil
}

func (s *Service) chain(ctx context.Context, evidenceID string) ([]ledger.Event, error) {
	stored, err := s.events.List(ctx, evidenceID)
	if err != nil {
		return nil, fmt.Errorf("list custody events: %w", err)
	}
	events := make([]ledger.Event, 0, len(stored))
	for _, item := range stored {
		events = append(events, item.Event)
	}
	return events, nil
}

func (s *Service) auditEvent(ctx context.Context, auditCtx AuditContext, action string, evidenceID string, payload map[string]any) auditlog.Event {
	if service := strings.TrimSpace(auditCtx.Service); service != "" {
		payload["service"] = service
	}
	if sc := trace.SpanFromContext(ctx).SpanContext(); sc.IsValid() {
		payload["trace_id"] = sc.TraceID().String()
	}
	return auditlog.Event{
		OccurredAt:   s.now().UTC(),
		Actor:        strings.TrimSpace(auditCtx.Actor),
		Action:       action,
		ResourceType: resourceTypeEvidence,
		ResourceID:   evidenceID,
		RequestID:    auditCtx.RequestID,
		IP:           auditCtx.IP,
		UserAgent:    auditCtx.UserAgent,
		Payload:      payload,
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
