// Package piigate is the enforcement point between live sessions and client
// PII. Reads are all-or-nothing: one field above the session's tier refuses
// the whole call, so a caller can never mistake a withheld field for an
// empty one.
package piigate

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shelteraccess/internal/access"
	"shelteraccess/internal/audit"
	"shelteraccess/internal/credential/store/session"
	"shelteraccess/internal/platform/metrics"
	"shelteraccess/internal/platform/middleware"
	"shelteraccess/internal/records"
	dErrors "shelteraccess/pkg/domain-errors"
	"shelteraccess/pkg/platform/sentinel"
)

// AccessErrorKind names why a read was refused. The specific kind is logged
// and audited; end users see a generic denial.
type AccessErrorKind string

const (
	KindNoActiveSession      AccessErrorKind = "no_active_session"
	KindSessionExpired       AccessErrorKind = "session_expired"
	KindCredentialSuperseded AccessErrorKind = "credential_superseded"
	KindInsufficientLevel    AccessErrorKind = "insufficient_level"
	KindUnknownField         AccessErrorKind = "unknown_field"
)

// AccessError reports a refused field read.
type AccessError struct {
	Kind     AccessErrorKind
	Field    string
	Required access.Level
	Held     access.Level
}

func (e *AccessError) Error() string {
	switch e.Kind {
	case KindInsufficientLevel:
		return fmt.Sprintf("access denied: field %q requires %s, session holds %s",
			e.Field, e.Required, e.Held)
	case KindUnknownField:
		return fmt.Sprintf("access denied: field %q is not a protected field", e.Field)
	default:
		return fmt.Sprintf("access denied: %s", e.Kind)
	}
}

// Gate checks every read against the live session and writes the Accessed
// entry before any value leaves the engine.
type Gate struct {
	sessions session.Store
	fields   *FieldRegistry
	store    records.Store
	auditLog *audit.Log
	metrics  *metrics.Metrics
	tracer   trace.Tracer
}

// Option configures a Gate.
type Option func(*Gate)

// WithMetrics attaches the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Gate) { g.metrics = m }
}

func New(sessions session.Store, fields *FieldRegistry, store records.Store, auditLog *audit.Log, opts ...Option) *Gate {
	g := &Gate{
		sessions: sessions,
		fields:   fields,
		store:    store,
		auditLog: auditLog,
		tracer:   otel.Tracer("shelteraccess/piigate"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// ReadFields returns the requested fields of a client record, or refuses the
// whole request. The Accessed audit entry is committed before values are
// returned; if that write fails the caller gets nothing.
func (g *Gate) ReadFields(ctx context.Context, userID, clientID string, fieldNames []string) (map[string]string, error) {
	ctx, span := g.tracer.Start(ctx, "piigate.ReadFields",
		trace.WithAttributes(
			attribute.String("user_id", userID),
			attribute.Int("fields_requested", len(fieldNames)),
		))
	defer span.End()

	if len(fieldNames) == 0 {
		return nil, dErrors.New(dErrors.CodeBadRequest, "no fields requested")
	}

	live, err := g.sessions.Get(ctx, userID)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			return nil, g.deny(ctx, userID, clientID, access.LevelNone, &AccessError{Kind: KindNoActiveSession})
		case errors.Is(err, sentinel.ErrExpired):
			return nil, g.deny(ctx, userID, clientID, access.LevelNone, &AccessError{Kind: KindSessionExpired})
		default:
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
		}
	}

	// A bearer token names the credential it was minted for. If the user has
	// since been issued a new credential, the old token must not ride along
	// on the replacement session.
	if tokenCred := middleware.GetCredentialID(ctx); tokenCred != "" && tokenCred != live.CredentialID {
		return nil, g.deny(ctx, userID, clientID, live.Level, &AccessError{
			Kind: KindCredentialSuperseded,
			Held: live.Level,
		})
	}

	// Check every field before touching the record store.
	for _, name := range fieldNames {
		required, known := g.fields.Required(name)
		if !known {
			return nil, g.deny(ctx, userID, clientID, live.Level, &AccessError{
				Kind:  KindUnknownField,
				Field: name,
				Held:  live.Level,
			})
		}
		if !live.Level.Covers(required) {
			return nil, g.deny(ctx, userID, clientID, live.Level, &AccessError{
				Kind:     KindInsufficientLevel,
				Field:    name,
				Required: required,
				Held:     live.Level,
			})
		}
	}

	values, err := g.store.FetchFields(ctx, clientID, fieldNames)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "client record not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to fetch client record")
	}

	returned := make([]string, 0, len(values))
	for name := range values {
		returned = append(returned, name)
	}

	if err := g.auditLog.Append(ctx, audit.Entry{
		UserID:       userID,
		Subject:      clientID,
		Action:       audit.ActionAccessed,
		Level:        live.Level,
		CredentialID: live.CredentialID,
		Fields:       returned,
		Device:       middleware.GetDevice(ctx),
		RequestID:    middleware.GetRequestID(ctx),
	}); err != nil {
		if g.metrics != nil {
			g.metrics.AuditWriteFailures.Inc()
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "audit write failed")
	}

	if g.metrics != nil {
		g.metrics.FieldsAccessed.Inc()
	}
	return values, nil
}

// deny audits the refusal and hands the access error back. An audit failure
// takes precedence: an unrecordable denial is an internal fault.
func (g *Gate) deny(ctx context.Context, userID, clientID string, held access.Level, accessErr *AccessError) error {
	reason := string(accessErr.Kind)
	if accessErr.Field != "" {
		reason = fmt.Sprintf("%s: %s", accessErr.Kind, accessErr.Field)
	}
	if err := g.auditLog.Append(ctx, audit.Entry{
		UserID:    userID,
		Subject:   clientID,
		Action:    audit.ActionDenied,
		Level:     held,
		Reason:    reason,
		Device:    middleware.GetDevice(ctx),
		RequestID: middleware.GetRequestID(ctx),
	}); err != nil {
		if g.metrics != nil {
			g.metrics.AuditWriteFailures.Inc()
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "audit write failed")
	}
	if g.metrics != nil {
		g.metrics.AccessDenied.WithLabelValues(string(accessErr.Kind)).Inc()
	}
	return accessErr
}
