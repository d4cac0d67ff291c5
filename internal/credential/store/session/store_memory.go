package session

import (
	"context"
	"sync"
	"time"

	"shelteraccess/internal/audit"
	"shelteraccess/internal/credential/models"
	"shelteraccess/pkg/platform/sentinel"
)

// InMemoryStore is the default backend. A single mutex guards both indexes;
// contention is bounded by the number of concurrently active staff sessions,
// which is small for a shelter deployment.
type InMemoryStore struct {
	auditor Auditor
	clock   Clock

	mu           sync.Mutex
	byUser       map[string]*models.Session
	byCredential map[string]string // credentialID -> userID
}

// InMemoryOption configures an InMemoryStore.
type InMemoryOption func(*InMemoryStore)

// WithClock sets the clock function for testability.
func WithClock(clock Clock) InMemoryOption {
	return func(s *InMemoryStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

func NewInMemoryStore(auditor Auditor, opts ...InMemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		auditor:      auditor,
		clock:        time.Now,
		byUser:       make(map[string]*models.Session),
		byCredential: make(map[string]string),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *InMemoryStore) Put(_ context.Context, session *models.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prior, ok := s.byUser[session.UserID]; ok {
		delete(s.byCredential, prior.CredentialID)
	}
	copied := *session
	s.byUser[session.UserID] = &copied
	s.byCredential[session.CredentialID] = session.UserID
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, userID string) (*models.Session, error) {
	s.mu.Lock()
	stored, ok := s.byUser[userID]
	if !ok {
		s.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	if stored.Expired(s.clock()) {
		s.removeLocked(stored)
		s.mu.Unlock()
		// Removal happened under the lock, so only this caller audits. If
		// the append fails the session is reinstated; a later read notices
		// the expiry again and retries the entry.
		if err := s.auditExpired(ctx, stored); err != nil {
			s.reinstate(stored)
			return nil, err
		}
		return nil, sentinel.ErrExpired
	}
	copied := *stored
	s.mu.Unlock()
	return &copied, nil
}

func (s *InMemoryStore) GetByCredentialID(ctx context.Context, credentialID string) (*models.Session, error) {
	s.mu.Lock()
	userID, ok := s.byCredential[credentialID]
	s.mu.Unlock()
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.Get(ctx, userID)
}

func (s *InMemoryStore) Revoke(ctx context.Context, userID, reason string) (bool, error) {
	s.mu.Lock()
	stored, ok := s.byUser[userID]
	if ok {
		s.removeLocked(stored)
	}
	s.mu.Unlock()
	if !ok {
		return false, nil
	}

	// Access is already gone; an audit failure still propagates so the
	// caller's operation fails rather than continuing unrecorded.
	err := s.auditor.Append(ctx, audit.Entry{
		UserID:       stored.UserID,
		Action:       audit.ActionRevoked,
		Level:        stored.Level,
		CredentialID: stored.CredentialID,
		Reason:       reason,
	})
	if err != nil {
		return true, err
	}
	return true, nil
}

func (s *InMemoryStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	var expired []*models.Session
	for _, stored := range s.byUser {
		if stored.Expired(now) {
			expired = append(expired, stored)
		}
	}
	for _, stored := range expired {
		s.removeLocked(stored)
	}
	s.mu.Unlock()

	for i, stored := range expired {
		if err := s.auditExpired(ctx, stored); err != nil {
			// Unaudited removals are put back so the next sweep retries.
			for _, lost := range expired[i:] {
				s.reinstate(lost)
			}
			return i, err
		}
	}
	return len(expired), nil
}

func (s *InMemoryStore) ActiveCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byUser), nil
}

func (s *InMemoryStore) removeLocked(stored *models.Session) {
	delete(s.byUser, stored.UserID)
	delete(s.byCredential, stored.CredentialID)
}

// reinstate puts a removed session back unless a newer one was installed
// for the user in the meantime.
func (s *InMemoryStore) reinstate(stored *models.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[stored.UserID]; ok {
		return
	}
	s.byUser[stored.UserID] = stored
	s.byCredential[stored.CredentialID] = stored.UserID
}

func (s *InMemoryStore) auditExpired(ctx context.Context, stored *models.Session) error {
	return s.auditor.Append(ctx, audit.Entry{
		UserID:       stored.UserID,
		Action:       audit.ActionExpired,
		Level:        stored.Level,
		CredentialID: stored.CredentialID,
		Reason:       "validity period elapsed",
	})
}
