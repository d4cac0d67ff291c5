// Package models holds the credential domain types shared by the validator,
// issuer, stores, and handlers.
package models

import (
	"fmt"
	"time"

	"shelteraccess/internal/access"
)

// MinJustificationLength is the shortest justification the validator accepts.
// A grant without a usable justification cannot be defended in an audit.
const MinJustificationLength = 10

// Validity bounds for a credential, in days.
const (
	MinValidityDays = 1
	MaxValidityDays = 90
)

// Request is a staff member's application for PII access. MFAVerified is an
// attestation set by the upstream authentication step; the engine enforces
// its presence for sensitive tiers but never performs MFA itself.
type Request struct {
	UserID             string
	Role               access.Role
	RequestedLevel     access.Level
	Permissions        []string
	Justification      string
	ValidityDays       int
	MFAVerified        bool
	SupervisorApproval string
}

// Validated wraps a Request that passed every policy check.
type Validated struct {
	Request
	ValidatedAt time.Time
}

// Session is a live, time-boxed grant. Exactly one session may be active per
// user; issuing a new one supersedes the old.
type Session struct {
	CredentialID string       `json:"credential_id"`
	UserID       string       `json:"user_id"`
	Level        access.Level `json:"level"`
	Permissions  []string     `json:"permissions,omitempty"`
	IssuedAt     time.Time    `json:"issued_at"`
	ExpiresAt    time.Time    `json:"expires_at"`
	MFAVerified  bool         `json:"mfa_verified"`
}

// Expired reports whether the session has passed its expiry at the given
// instant.
func (s *Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// Status is the answer to a session-status probe. It deliberately reveals
// nothing about why access is absent.
type Status struct {
	HasAccess   bool
	Level       access.Level
	ExpiresAt   time.Time
	MFAVerified bool
}

// DenialReason names the first policy rule a request violated. Exactly one
// reason is ever reported; determinism matters for audit clarity.
type DenialReason string

const (
	DenialJustificationTooShort DenialReason = "justification_too_short"
	DenialRoleNotEligible       DenialReason = "role_not_eligible"
	DenialInvalidValidityPeriod DenialReason = "invalid_validity_period"
	DenialSupervisorApproval    DenialReason = "supervisor_approval_required"
	DenialMFARequired           DenialReason = "mfa_required"
)

// ValidationError reports a denied credential request. It is caller-fixable
// and surfaced verbatim to the UI.
type ValidationError struct {
	Reason  DenialReason
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("credential request denied: %s: %s", e.Reason, e.Message)
}
