// Package handler exposes the credential engine over HTTP. It is a thin
// translation layer: decode, call the service, encode. Every policy decision
// lives below it.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"shelteraccess/internal/credential/models"
	"shelteraccess/internal/credential/service"
	"shelteraccess/internal/piigate"
	"shelteraccess/internal/platform/metrics"
	"shelteraccess/internal/platform/middleware"
	"shelteraccess/internal/transport/http/shared"
	dErrors "shelteraccess/pkg/domain-errors"
	pstrings "shelteraccess/pkg/platform/strings"
)

// Service defines the credential operations the handler needs.
type Service interface {
	Issue(ctx context.Context, req models.Request) (*service.Grant, error)
	EndSession(ctx context.Context, userID string) error
	Status(ctx context.Context, userID string) (models.Status, error)
}

// Gate defines the protected field reads the handler needs.
type Gate interface {
	ReadFields(ctx context.Context, userID, clientID string, fieldNames []string) (map[string]string, error)
}

// Handler handles credential and field-access endpoints.
type Handler struct {
	logger  *slog.Logger
	service Service
	gate    Gate
	metrics *metrics.Metrics
	tokens  middleware.TokenValidator
}

func New(service Service, gate Gate, tokens middleware.TokenValidator, logger *slog.Logger, metrics *metrics.Metrics) *Handler {
	return &Handler{
		logger:  logger,
		service: service,
		gate:    gate,
		metrics: metrics,
		tokens:  tokens,
	}
}

// Register mounts the access routes with their middleware chain. Ending a
// session and reading fields require the session bearer token; applying for a
// credential and probing status do not.
func (h *Handler) Register(r chi.Router) {
	accessRouter := chi.NewRouter()
	accessRouter.Use(middleware.Recovery(h.logger))
	accessRouter.Use(middleware.RequestID)
	accessRouter.Use(middleware.Logger(h.logger))
	accessRouter.Use(middleware.Timeout(30 * time.Second))
	accessRouter.Use(middleware.ContentTypeJSON)
	accessRouter.Use(middleware.Device)
	if h.metrics != nil {
		accessRouter.Use(middleware.Latency(h.metrics))
	}

	accessRouter.Post("/credentials", h.handleIssueCredential)
	accessRouter.Get("/session", h.handleSessionStatus)

	accessRouter.Group(func(authed chi.Router) {
		authed.Use(middleware.RequireAuth(h.tokens, h.logger))
		authed.Post("/session/end", h.handleEndSession)
		authed.Get("/fields", h.handleReadFields)
	})

	r.Mount("/access", accessRouter)
}

// handleIssueCredential processes a credential application. Denials are part
// of normal operation and answer 422 with the first violated rule.
func (h *Handler) handleIssueCredential(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	var wireReq credentialRequest
	if err := json.NewDecoder(r.Body).Decode(&wireReq); err != nil {
		h.logger.WarnContext(ctx, "invalid credential request body",
			"request_id", requestID,
			"error", err.Error(),
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return
	}
	if wireReq.UserID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "userId is required"))
		return
	}

	req, err := wireReq.toDomain()
	if err != nil {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, err.Error()))
		return
	}

	grant, err := h.service.Issue(ctx, req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			h.logger.InfoContext(ctx, "credential request denied",
				"request_id", requestID,
				"user_id", req.UserID,
				"reason", verr.Reason,
			)
			shared.WriteJSON(w, http.StatusUnprocessableEntity, denialResponse{
				ErrorKind: string(verr.Reason),
				Message:   verr.Message,
			})
			return
		}
		h.logger.ErrorContext(ctx, "credential issuance failed",
			"request_id", requestID,
			"user_id", req.UserID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "credential granted",
		"request_id", requestID,
		"user_id", grant.Session.UserID,
		"credential_id", grant.Session.CredentialID,
		"level", grant.Session.Level.String(),
	)
	shared.WriteJSON(w, http.StatusCreated, grantResponse{
		CredentialID: grant.Session.CredentialID,
		SessionToken: grant.Token,
		AccessLevel:  grant.Session.Level.String(),
		ExpiresAt:    grant.Session.ExpiresAt,
	})
}

// handleSessionStatus reports whether a user holds a live session.
func (h *Handler) handleSessionStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userID := r.URL.Query().Get("userId")
	if userID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "userId query parameter is required"))
		return
	}

	status, err := h.service.Status(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "session status lookup failed",
			"request_id", middleware.GetRequestID(ctx),
			"user_id", userID,
			"error", err.Error(),
		)
		shared.WriteError(w, err)
		return
	}
	shared.WriteJSON(w, http.StatusOK, statusFromDomain(status))
}

// handleEndSession revokes the caller's own session.
func (h *Handler) handleEndSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		h.logger.ErrorContext(ctx, "userID missing from context despite auth middleware",
			"request_id", requestID,
		)
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	if err := h.service.EndSession(ctx, userID); err != nil {
		if !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "failed to end session",
				"request_id", requestID,
				"user_id", userID,
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleReadFields serves protected client fields through the data gate.
func (h *Handler) handleReadFields(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	userID := middleware.GetUserID(ctx)
	if userID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeInternal, "authentication context error"))
		return
	}

	clientID := r.URL.Query().Get("clientId")
	if clientID == "" {
		shared.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "clientId query parameter is required"))
		return
	}
	fieldNames := splitFields(r.URL.Query()["fields"])

	values, err := h.gate.ReadFields(ctx, userID, clientID, fieldNames)
	if err != nil {
		var accessErr *piigate.AccessError
		if errors.As(err, &accessErr) {
			h.logger.InfoContext(ctx, "field access denied",
				"request_id", requestID,
				"user_id", userID,
				"client_id", clientID,
				"kind", accessErr.Kind,
			)
			resp := accessDenialResponse{
				ErrorKind: string(accessErr.Kind),
				Field:     accessErr.Field,
			}
			if accessErr.Kind == piigate.KindInsufficientLevel {
				resp.RequiredLevel = accessErr.Required.String()
				resp.HeldLevel = accessErr.Held.String()
			}
			shared.WriteJSON(w, http.StatusForbidden, resp)
			return
		}
		if !dErrors.HasCode(err, dErrors.CodeBadRequest) && !dErrors.HasCode(err, dErrors.CodeNotFound) {
			h.logger.ErrorContext(ctx, "field read failed",
				"request_id", requestID,
				"user_id", userID,
				"client_id", clientID,
				"error", err.Error(),
			)
		}
		shared.WriteError(w, err)
		return
	}

	shared.WriteJSON(w, http.StatusOK, fieldsResponse{ClientID: clientID, Fields: values})
}

// splitFields accepts both repeated fields= parameters and a single
// comma-separated list. Duplicates would double-count in the audit entry,
// so they are dropped here.
func splitFields(raw []string) []string {
	var out []string
	for _, part := range raw {
		out = append(out, strings.Split(part, ",")...)
	}
	return pstrings.DedupeAndTrim(out)
}
