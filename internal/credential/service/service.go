// Package service implements credential issuance: validation against the
// access policy, session creation, supersession of prior grants, and the
// audit writes that make any of it allowed to happen.
package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"shelteraccess/internal/access"
	"shelteraccess/internal/audit"
	"shelteraccess/internal/credential/models"
	"shelteraccess/internal/credential/store/session"
	"shelteraccess/internal/platform/metrics"
	"shelteraccess/internal/platform/middleware"
	dErrors "shelteraccess/pkg/domain-errors"
	"shelteraccess/pkg/platform/sentinel"
)

// TokenMinter signs a bearer token for a freshly issued session.
type TokenMinter interface {
	Mint(session *models.Session) (string, error)
}

// Grant is what a successful issuance returns to the transport layer.
type Grant struct {
	Session *models.Session
	Token   string
}

// Service coordinates validation, issuance, and session lifecycle. All its
// operations are fail-closed with respect to the audit log.
type Service struct {
	policy   *access.Policy
	sessions session.Store
	auditLog *audit.Log
	tokens   TokenMinter
	metrics  *metrics.Metrics
	clock    func() time.Time
	tracer   trace.Tracer

	// userLocks serializes issuance per user so the revoke-then-grant
	// sequence for a superseded session is never interleaved.
	userLocks sync.Map
}

// Option configures a Service.
type Option func(*Service)

// WithClock sets the clock function for testability.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithMetrics attaches the Prometheus collectors.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(policy *access.Policy, sessions session.Store, auditLog *audit.Log, tokens TokenMinter, opts ...Option) *Service {
	s := &Service{
		policy:   policy,
		sessions: sessions,
		auditLog: auditLog,
		tokens:   tokens,
		clock:    time.Now,
		tracer:   otel.Tracer("shelteraccess/credential"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Issue validates the request and, if policy allows, installs a new session.
// A prior session for the same user is revoked (and audited as superseded)
// before the new grant's entry is written, so the trail reads in the order
// things actually happened. Every denial is audited too; if any audit write
// fails the whole operation fails and no session is created.
func (s *Service) Issue(ctx context.Context, req models.Request) (*Grant, error) {
	ctx, span := s.tracer.Start(ctx, "credential.Issue",
		trace.WithAttributes(
			attribute.String("user_id", req.UserID),
			attribute.String("requested_level", req.RequestedLevel.String()),
		))
	defer span.End()

	now := s.clock()

	validated, verr := s.validate(req, now)
	if verr != nil {
		if err := s.auditLog.Append(ctx, audit.Entry{
			UserID:    req.UserID,
			Action:    audit.ActionDenied,
			Level:     req.RequestedLevel,
			Reason:    string(verr.Reason),
			Device:    middleware.GetDevice(ctx),
			RequestID: middleware.GetRequestID(ctx),
		}); err != nil {
			return nil, s.auditFailure(err)
		}
		if s.metrics != nil {
			s.metrics.CredentialsDenied.WithLabelValues(string(verr.Reason)).Inc()
		}
		return nil, verr
	}

	lock := s.lockUser(req.UserID)
	lock.Lock()
	defer lock.Unlock()

	// Supersede any live session first. The store writes the Revoked entry;
	// a failure there aborts the grant before anything else changes.
	superseded, err := s.sessions.Revoke(ctx, req.UserID, audit.ReasonSupersededByNewGrant)
	if err != nil {
		return nil, s.auditFailure(err)
	}

	newSession := &models.Session{
		CredentialID: uuid.NewString(),
		UserID:       validated.UserID,
		Level:        validated.RequestedLevel,
		Permissions:  validated.Permissions,
		IssuedAt:     now,
		ExpiresAt:    now.AddDate(0, 0, validated.ValidityDays),
		MFAVerified:  validated.MFAVerified,
	}

	if err := s.auditLog.Append(ctx, audit.Entry{
		UserID:       newSession.UserID,
		Action:       audit.ActionGranted,
		Level:        newSession.Level,
		CredentialID: newSession.CredentialID,
		Reason:       validated.Justification,
		Device:       middleware.GetDevice(ctx),
		RequestID:    middleware.GetRequestID(ctx),
	}); err != nil {
		return nil, s.auditFailure(err)
	}

	if err := s.sessions.Put(ctx, newSession); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to install session")
	}

	tokenString, err := s.tokens.Mint(newSession)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to mint session token")
	}

	if s.metrics != nil {
		s.metrics.CredentialsGranted.WithLabelValues(newSession.Level.String()).Inc()
		if superseded {
			s.metrics.SessionsRevoked.Inc()
		}
	}
	return &Grant{Session: newSession, Token: tokenString}, nil
}

// EndSession revokes the user's live session. Ending a session that does not
// exist is reported as not found; ending one twice is the same.
func (s *Service) EndSession(ctx context.Context, userID string) error {
	revoked, err := s.sessions.Revoke(ctx, userID, audit.ReasonEndedByUser)
	if err != nil {
		return s.auditFailure(err)
	}
	if !revoked {
		return dErrors.New(dErrors.CodeNotFound, "no active session")
	}
	if s.metrics != nil {
		s.metrics.SessionsRevoked.Inc()
	}
	return nil
}

// Status reports whether the user holds a live session. Absence and expiry
// look identical to the caller; the audit trail keeps the distinction.
func (s *Service) Status(ctx context.Context, userID string) (models.Status, error) {
	live, err := s.sessions.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) || errors.Is(err, sentinel.ErrExpired) {
			return models.Status{}, nil
		}
		return models.Status{}, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	return models.Status{
		HasAccess:   true,
		Level:       live.Level,
		ExpiresAt:   live.ExpiresAt,
		MFAVerified: live.MFAVerified,
	}, nil
}

func (s *Service) lockUser(userID string) *sync.Mutex {
	lock, _ := s.userLocks.LoadOrStore(userID, &sync.Mutex{})
	return lock.(*sync.Mutex)
}

func (s *Service) auditFailure(err error) error {
	if s.metrics != nil && errors.Is(err, sentinel.ErrUnavailable) {
		s.metrics.AuditWriteFailures.Inc()
	}
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		return err
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "audit write failed")
}
