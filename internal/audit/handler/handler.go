// Package handler exposes the read side of the audit trail to compliance
// tooling. Nothing here can write: the trail only grows through the engine's
// own operations.
package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"shelteraccess/internal/audit"
	"shelteraccess/internal/platform/middleware"
	"shelteraccess/internal/transport/http/shared"
	dErrors "shelteraccess/pkg/domain-errors"
)

// Trail defines the audit read operations the handler needs.
type Trail interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
	Verify(ctx context.Context) (bool, int, error)
}

// Handler handles audit query endpoints.
type Handler struct {
	logger *slog.Logger
	trail  Trail
}

func New(trail Trail, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, trail: trail}
}

// Register mounts the audit routes.
func (h *Handler) Register(r chi.Router) {
	auditRouter := chi.NewRouter()
	auditRouter.Use(middleware.Recovery(h.logger))
	auditRouter.Use(middleware.RequestID)
	auditRouter.Use(middleware.Logger(h.logger))
	auditRouter.Use(middleware.Timeout(30 * time.Second))

	auditRouter.Get("/entries", h.handleEntries)
	auditRouter.Get("/verify", h.handleVerify)

	r.Mount("/audit", auditRouter)
}

type entriesResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

type verifyResponse struct {
	Intact  bool `json:"intact"`
	Checked int  `json:"checked"`
}

// handleEntries returns trail entries matching the query filter.
func (h *Handler) handleEntries(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	filter, err := filterFromQuery(r)
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	entries, err := h.trail.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit query failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit query failed"))
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	shared.WriteJSON(w, http.StatusOK, entriesResponse{Entries: entries, Count: len(entries)})
}

// handleVerify walks the hash chain and reports whether it is intact.
func (h *Handler) handleVerify(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	intact, checked, err := h.trail.Verify(ctx)
	if err != nil {
		h.logger.ErrorContext(ctx, "audit verification failed",
			"request_id", middleware.GetRequestID(ctx),
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "audit verification failed"))
		return
	}
	if !intact {
		h.logger.ErrorContext(ctx, "audit chain broken",
			"request_id", middleware.GetRequestID(ctx),
			"entries_checked", checked,
		)
	}
	shared.WriteJSON(w, http.StatusOK, verifyResponse{Intact: intact, Checked: checked})
}

func filterFromQuery(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	filter := audit.Filter{
		UserID: q.Get("userId"),
		Action: audit.Action(q.Get("action")),
	}
	if raw := q.Get("from"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, err
		}
		filter.From = ts
	}
	if raw := q.Get("to"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return audit.Filter{}, err
		}
		filter.To = ts
	}
	return filter, nil
}
