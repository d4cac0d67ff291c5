// Package audit records every credential decision the engine makes. The log
// is append-only and fail-closed: an operation whose audit write fails must
// not take effect, because an unaudited PII grant carries the same risk as an
// unauthorized one.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"

	"shelteraccess/internal/access"
)

// Action classifies what happened to a credential or a protected record.
type Action string

const (
	ActionGranted  Action = "granted"
	ActionDenied   Action = "denied"
	ActionAccessed Action = "accessed"
	ActionRevoked  Action = "revoked"
	ActionExpired  Action = "expired"
)

// Revocation reasons recorded alongside ActionRevoked entries.
const (
	ReasonSupersededByNewGrant = "superseded_by_new_grant"
	ReasonEndedByUser          = "ended_by_user"
)

// Entry is one immutable record in the compliance trail. PrevHash and Hash
// chain entries together so tampering with any stored entry is detectable.
type Entry struct {
	EntryID      uuid.UUID    `json:"entry_id"`
	Timestamp    time.Time    `json:"timestamp"`
	UserID       string       `json:"user_id"`
	Subject      string       `json:"subject,omitempty"`
	Action       Action       `json:"action"`
	Level        access.Level `json:"level"`
	CredentialID string       `json:"credential_id,omitempty"`
	Reason       string       `json:"reason,omitempty"`
	Fields       []string     `json:"fields,omitempty"`
	Device       string       `json:"device,omitempty"`
	RequestID    string       `json:"request_id,omitempty"`
	PrevHash     []byte       `json:"prev_hash,omitempty"`
	Hash         []byte       `json:"hash,omitempty"`
}

// Filter narrows a read-side query. Zero values match everything.
type Filter struct {
	UserID string
	Action Action
	From   time.Time
	To     time.Time
}

// Matches reports whether the entry satisfies the filter.
func (f Filter) Matches(e Entry) bool {
	if f.UserID != "" && e.UserID != f.UserID {
		return false
	}
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if !f.From.IsZero() && e.Timestamp.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.Timestamp.After(f.To) {
		return false
	}
	return true
}

// Store persists entries in append order. Implementations must never mutate
// or delete an entry once Append returns.
type Store interface {
	Append(ctx context.Context, entry Entry) error
	Query(ctx context.Context, filter Filter) ([]Entry, error)
}
