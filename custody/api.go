package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	ledger "github.com/animus-labs/custody/internal/custody"
	"github.com/animus-labs/custody/internal/platform/auditlog"
	"github.com/animus-labs/custody/internal/platform/auth"
	"github.com/animus-labs/custody/internal/platform/httpserver"
	"github.com/animus-labs/custody/internal/repo"
	custodysvc "github.com/animus-labs/custody/internal/service/custody"
)

type custodyService interface {
	Record(ctx context.Context, input custodysvc.RecordInput, auditCtx custodysvc.AuditContext) (ledger.Event, error)
	History(ctx context.Context, evidenceID string) ([]ledger.Event, error)
	Verify(ctx context.Context, evidenceID string, opts custodysvc.VerifyOptions, auditCtx custodysvc.AuditContext) (custodysvc.VerifyResult, error)
}

type custodyAPI struct {
	logger *slog.Logger
	svc    custodyService
}

func newCustodyAPI(logger *slog.Logger, svc custodyService) *custodyAPI {
	return &custodyAPI{logger: logger, svc: svc}
}

func (api *custodyAPI) register(mux *http.ServeMux) {
	mux.HandleFunc("POST /evidence/{evidence_id}/custody-events", api.handleRecord)
	mux.HandleFunc("GET /evidence/{evidence_id}/custody-events", api.handleHistory)
	mux.HandleFunc("GET /evidence/{evidence_id}/custody/verify", api.handleVerify)
}

type recordRequest struct {
	EventType   string            `json:"eventType"`
	ContentHash string            `json:"contentHash,omitempty"`
	From        *ledger.Party     `json:"from,omitempty"`
	To          *ledger.Party     `json:"to,omitempty"`
	Location    *ledger.Location  `json:"location,omitempty"`
	Purpose     string            `json:"purpose,omitempty"`
	Method      string            `json:"method,omitempty"`
	Packaging   *ledger.Packaging `json:"packaging,omitempty"`
	Details     json.RawMessage   `json:"details,omitempty"`
}

type historyResponse struct {
	EvidenceID string         `json:"evidenceId"`
	Events     []ledger.Event `json:"events"`
}

func (api *custodyAPI) handleRecord(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	var req recordRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_json")
		return
	}
	eventType, err := ledger.ParseEventType(req.EventType)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_event_type")
		return
	}
	details, err := ledger.DecodeDetails(eventType, req.Details)
	if err != nil {
		api.writeError(w, r, http.StatusBadRequest, "invalid_details")
		return
	}

	event, err := api.svc.Record(r.Context(), custodysvc.RecordInput{
		EvidenceID:  r.PathValue("evidence_id"),
		EventType:   string(eventType),
		ContentHash: req.ContentHash,
		From:        req.From,
		To:          req.To,
		Location:    req.Location,
		Purpose:     strings.TrimSpace(req.Purpose),
		Method:      strings.TrimSpace(req.Method),
		Packaging:   req.Packaging,
		Details:     details,
	}, buildAuditContext(r, identity))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusCreated, event)
}

func (api *custodyAPI) handleHistory(w http.ResponseWriter, r *http.Request) {
	evidenceID := r.PathValue("evidence_id")
	events, err := api.svc.History(r.Context(), evidenceID)
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, historyResponse{EvidenceID: evidenceID, Events: events})
}

func (api *custodyAPI) handleVerify(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || strings.TrimSpace(identity.Subject) == "" {
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
		return
	}

	deep := false
	if raw := strings.TrimSpace(r.URL.Query().Get("deep")); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			api.writeError(w, r, http.StatusBadRequest, "invalid_deep")
			return
		}
		deep = parsed
	}

	result, err := api.svc.Verify(r.Context(), r.PathValue("evidence_id"), custodysvc.VerifyOptions{Deep: deep}, buildAuditContext(r, identity))
	if err != nil {
		api.writeServiceError(w, r, err)
		return
	}
	api.writeJSON(w, http.StatusOK, result)
}

func (api *custodyAPI) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var cfgErr *ledger.ConfigurationError
	switch {
	case errors.Is(err, custodysvc.ErrEvidenceNotFound):
		api.writeError(w, r, http.StatusNotFound, "evidence_not_found")
	case errors.Is(err, custodysvc.ErrInvalidInput):
		api.writeError(w, r, http.StatusBadRequest, "invalid_request")
	case errors.Is(err, custodysvc.ErrContentHashMismatch):
		api.writeError(w, r, http.StatusConflict, "content_hash_mismatch")
	case errors.Is(err, repo.ErrConflict):
		api.writeError(w, r, http.StatusConflict, "append_conflict")
	case errors.Is(err, custodysvc.ErrDeepUnavailable):
		api.writeError(w, r, http.StatusServiceUnavailable, "deep_verification_unavailable")
	case errors.As(err, &cfgErr):
		api.logger.Error("custody misconfigured", "request_id", r.Header.Get(httpserver.HeaderRequestID), "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "custody_misconfigured")
	default:
		api.logger.Error("custody request failed", "request_id", r.Header.Get(httpserver.HeaderRequestID), "evidence_id", r.PathValue("evidence_id"), "error", err)
		api.writeError(w, r, http.StatusInternalServerError, "internal_error")
	}
}

func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("multiple JSON values")
	}
	return nil
}

func buildAuditContext(r *http.Request, identity auth.Identity) custodysvc.AuditContext {
	return custodysvc.AuditContext{
		Actor:     strings.TrimSpace(identity.Subject),
		RequestID: r.Header.Get(httpserver.HeaderRequestID),
		IP:        auditlog.RemoteIP(r.RemoteAddr),
		UserAgent: r.UserAgent(),
		Service:   serviceName,
	}
}

func (api *custodyAPI) writeJSON(w http.ResponseWriter, status int, body any) {
	httpserver.WriteJSON(w, status, body)
}

func (api *custodyAPI) writeError(w http.ResponseWriter, r *http.Request, status int, code string) {
	api.writeJSON(w, status, map[string]any{
		"error":      code,
		"request_id": r.Header.Get(httpserver.HeaderRequestID),
	})
}
