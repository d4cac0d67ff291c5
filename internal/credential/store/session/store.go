// Package session holds the registry of live credential sessions. The store
// owns the expiry lifecycle: a session past its expiry is never returned, and
// its removal produces exactly one Expired audit entry whether it was noticed
// lazily by a read or proactively by the sweeper.
package session

import (
	"context"
	"time"

	"shelteraccess/internal/audit"
	"shelteraccess/internal/credential/models"
)

// Clock is injected for expiry tests.
type Clock func() time.Time

// Auditor is the slice of the audit log the store needs. Append failures
// propagate to callers; the store never swallows them.
type Auditor interface {
	Append(ctx context.Context, entry audit.Entry) error
}

// Store is the concurrent session registry. Implementations serialize
// mutations per user key; Get for one user never blocks on writes to another.
type Store interface {
	// Put installs the session, atomically replacing any prior session for
	// the same user. Callers revoke the prior session first so the
	// supersede is audited; Put itself does not audit.
	Put(ctx context.Context, session *models.Session) error

	// Get returns the live session for the user. A session at or past its
	// expiry is removed, audited as Expired exactly once, and reported as
	// sentinel.ErrExpired; an absent session is sentinel.ErrNotFound.
	Get(ctx context.Context, userID string) (*models.Session, error)

	// GetByCredentialID resolves the credential index. Same expiry
	// semantics as Get.
	GetByCredentialID(ctx context.Context, credentialID string) (*models.Session, error)

	// Revoke removes the user's session and writes a Revoked entry with
	// the given reason. Idempotent: returns false when nothing was live.
	Revoke(ctx context.Context, userID, reason string) (bool, error)

	// Sweep removes every session expired at the given instant, auditing
	// each once. Returns the number of sessions removed.
	Sweep(ctx context.Context, now time.Time) (int, error)

	// ActiveCount reports the number of live sessions for gauge metrics.
	ActiveCount(ctx context.Context) (int, error)
}
