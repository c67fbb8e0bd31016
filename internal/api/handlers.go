// Package api exposes HTTP handlers for the signup service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"example.com/signup/internal/auth"
	"example.com/signup/internal/domain"
	"example.com/signup/internal/persistence"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
)

// HistoryReader returns the audit trail for one activity.
type HistoryReader interface {
	ListByActivity(ctx context.Context, activity string, cursor *persistence.Cursor, limit int) ([]persistence.AuditEntry, *persistence.Cursor, error)
}

// Option configures optional Handler behaviour.
type Option func(*Handler)

// WithHistory enables the history endpoint.
func WithHistory(reader HistoryReader) Option {
	return func(h *Handler) {
		h.history = reader
	}
}

// WithAuth requires roster:write on mutating routes. The auth middleware must
// run in front of the handler to populate claims.
func WithAuth(required bool) Option {
	return func(h *Handler) {
		h.authRequired = required
	}
}

// WithLogger overrides the handler logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service      *domain.Service
	history      HistoryReader
	authRequired bool
	logger       *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, opts ...Option) *Handler {
	h := &Handler{service: service, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", rootRedirect)
	mux.HandleFunc("GET /activities", h.listActivities)
	mux.HandleFunc("POST /activities/{name}/signup", h.signup)
	mux.HandleFunc("DELETE /activities/{name}/participants", h.unregister)
	if h.history != nil {
		mux.HandleFunc("GET /activities/{name}/history", h.activityHistory)
	}
	mux.HandleFunc("GET /healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func rootRedirect(w http.ResponseWriter, r *http.Request) {
	http.Redirect(w, r, "/activities", http.StatusTemporaryRedirect)
}

func (h *Handler) listActivities(w http.ResponseWriter, r *http.Request) {
	activities := h.service.ListActivities(r.Context())

	resp := make(ActivitiesResponse, len(activities))
	for _, activity := range activities {
		resp[activity.Name] = toActivityView(activity)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) signup(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	name, email, ok := membershipParams(w, r)
	if !ok {
		return
	}

	message, err := h.service.Signup(r.Context(), name, email)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *Handler) unregister(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}

	name, email, ok := membershipParams(w, r)
	if !ok {
		return
	}

	message, err := h.service.Unregister(r.Context(), name, email)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageResponse{Message: message})
}

func (h *Handler) activityHistory(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if _, err := h.service.GetActivity(r.Context(), name); err != nil {
		h.writeDomainError(w, err)
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "validation_failed", "limit must be a positive integer")
			return
		}
		if parsed > maxHistoryLimit {
			parsed = maxHistoryLimit
		}
		limit = parsed
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	entries, next, err := h.history.ListByActivity(r.Context(), name, cursor, limit)
	if err != nil {
		h.logger.Error("history lookup failed", zap.String("activity", name), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "history unavailable")
		return
	}

	items := make([]HistoryEntryView, 0, len(entries))
	for _, entry := range entries {
		items = append(items, HistoryEntryView{
			EventID:    entry.EventID,
			EventType:  entry.EventType,
			Email:      entry.Email,
			OccurredAt: entry.OccurredAt,
		})
	}

	writeJSON(w, http.StatusOK, HistoryResponse{
		Activity:   name,
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if !h.authRequired {
		return true
	}
	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return false
	}
	if !claims.HasScope(auth.ScopeRosterWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope "+auth.ScopeRosterWrite+" required")
		return false
	}
	return true
}

// membershipParams extracts the activity path segment and the email query
// parameter. The email itself is opaque and only checked for presence.
func membershipParams(w http.ResponseWriter, r *http.Request) (string, string, bool) {
	name := r.PathValue("name")
	query := r.URL.Query()
	email := query.Get("email")
	if !query.Has("email") {
		writeError(w, http.StatusBadRequest, "validation_failed", "missing email parameter")
		return "", "", false
	}
	return name, email, true
}

func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrActivityNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Activity not found")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", "Participant not found in this activity")
	case errors.Is(err, domain.ErrAlreadyRegistered):
		writeError(w, http.StatusBadRequest, "already_registered", "Student is already signed up for an activity")
	default:
		h.logger.Error("unexpected roster error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "server_error", "internal error")
	}
}

// ActivityView is the public shape of one activity.
type ActivityView struct {
	Description     string   `json:"description"`
	Schedule        string   `json:"schedule"`
	MaxParticipants int      `json:"max_participants"`
	SpotsLeft       int      `json:"spots_left"`
	Participants    []string `json:"participants"`
}

// ActivitiesResponse maps activity names to their details.
type ActivitiesResponse map[string]ActivityView

// MessageResponse carries a confirmation message.
type MessageResponse struct {
	Message string `json:"message"`
}

// HistoryEntryView is one audit-log entry.
type HistoryEntryView struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// HistoryResponse packages a page of audit-log entries.
type HistoryResponse struct {
	Activity   string             `json:"activity"`
	Items      []HistoryEntryView `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func toActivityView(activity domain.Activity) ActivityView {
	participants := activity.Participants
	if participants == nil {
		participants = []string{}
	}
	return ActivityView{
		Description:     activity.Description,
		Schedule:        activity.Schedule,
		MaxParticipants: activity.MaxParticipants,
		SpotsLeft:       activity.SpotsLeft(),
		Participants:    participants,
	}
}
