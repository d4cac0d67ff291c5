package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"shelteraccess/internal/access"
	"shelteraccess/internal/audit"
	"shelteraccess/internal/audit/store/memory"
	"shelteraccess/internal/credential/models"
	"shelteraccess/pkg/platform/sentinel"
)

type MemoryStoreSuite struct {
	suite.Suite
	store *InMemoryStore
	trail *memory.InMemoryStore
	now   time.Time
}

func (s *MemoryStoreSuite) SetupTest() {
	s.trail = memory.NewInMemoryStore()
	s.now = time.Date(2026, 2, 10, 9, 0, 0, 0, time.UTC)
	s.store = NewInMemoryStore(
		audit.NewLog(s.trail),
		WithClock(func() time.Time { return s.now }),
	)
}

func TestMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(MemoryStoreSuite))
}

func (s *MemoryStoreSuite) newSession(userID string, validity time.Duration) *models.Session {
	return &models.Session{
		CredentialID: uuid.NewString(),
		UserID:       userID,
		Level:        access.LevelMedical,
		IssuedAt:     s.now,
		ExpiresAt:    s.now.Add(validity),
		MFAVerified:  true,
	}
}

func (s *MemoryStoreSuite) actions(userID string) []audit.Action {
	entries, err := s.trail.Query(context.Background(), audit.Filter{UserID: userID})
	s.Require().NoError(err)
	out := make([]audit.Action, len(entries))
	for i, e := range entries {
		out[i] = e.Action
	}
	return out
}

func (s *MemoryStoreSuite) TestLookup() {
	s.Run("returns stored session by user and by credential", func() {
		session := s.newSession("staff-1", time.Hour)
		s.Require().NoError(s.store.Put(context.Background(), session))

		byUser, err := s.store.Get(context.Background(), "staff-1")
		s.Require().NoError(err)
		s.Equal(session.CredentialID, byUser.CredentialID)

		byCred, err := s.store.GetByCredentialID(context.Background(), session.CredentialID)
		s.Require().NoError(err)
		s.Equal("staff-1", byCred.UserID)
	})

	s.Run("returns ErrNotFound for unknown user", func() {
		_, err := s.store.Get(context.Background(), "nobody")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("returned session is a copy", func() {
		session := s.newSession("staff-2", time.Hour)
		s.Require().NoError(s.store.Put(context.Background(), session))

		got, err := s.store.Get(context.Background(), "staff-2")
		s.Require().NoError(err)
		got.Level = access.LevelFull

		again, err := s.store.Get(context.Background(), "staff-2")
		s.Require().NoError(err)
		s.Equal(access.LevelMedical, again.Level)
	})
}

func (s *MemoryStoreSuite) TestPutReplacesPriorSession() {
	first := s.newSession("staff-1", time.Hour)
	second := s.newSession("staff-1", time.Hour)

	s.Require().NoError(s.store.Put(context.Background(), first))
	s.Require().NoError(s.store.Put(context.Background(), second))

	got, err := s.store.Get(context.Background(), "staff-1")
	s.Require().NoError(err)
	s.Equal(second.CredentialID, got.CredentialID)

	_, err = s.store.GetByCredentialID(context.Background(), first.CredentialID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	count, err := s.store.ActiveCount(context.Background())
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *MemoryStoreSuite) TestLazyExpiry() {
	session := s.newSession("staff-1", time.Minute)
	s.Require().NoError(s.store.Put(context.Background(), session))

	s.now = s.now.Add(2 * time.Minute)

	_, err := s.store.Get(context.Background(), "staff-1")
	s.Require().ErrorIs(err, sentinel.ErrExpired)

	// Repeated reads see plain absence and do not audit again.
	_, err = s.store.Get(context.Background(), "staff-1")
	s.Require().ErrorIs(err, sentinel.ErrNotFound)

	s.Equal([]audit.Action{audit.ActionExpired}, s.actions("staff-1"))
}

type failingSink struct {
	inner   *memory.InMemoryStore
	failing bool
}

func (f *failingSink) Append(ctx context.Context, entry audit.Entry) error {
	if f.failing {
		return errors.New("sink down")
	}
	return f.inner.Append(ctx, entry)
}

func (f *failingSink) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	return f.inner.Query(ctx, filter)
}

func (s *MemoryStoreSuite) TestExpiryAuditFailureKeepsSession() {
	sink := &failingSink{inner: s.trail, failing: true}
	store := NewInMemoryStore(
		audit.NewLog(sink),
		WithClock(func() time.Time { return s.now }),
	)

	session := s.newSession("staff-1", time.Minute)
	s.Require().NoError(store.Put(context.Background(), session))
	s.now = s.now.Add(2 * time.Minute)

	s.Run("lazy expiry retries the entry after a failed append", func() {
		_, err := store.Get(context.Background(), "staff-1")
		s.Require().Error(err)
		s.Require().NotErrorIs(err, sentinel.ErrExpired)
		s.Empty(s.actions("staff-1"))

		// The session must still be there so the next read can record it.
		sink.failing = false
		_, err = store.Get(context.Background(), "staff-1")
		s.Require().ErrorIs(err, sentinel.ErrExpired)
		s.Equal([]audit.Action{audit.ActionExpired}, s.actions("staff-1"))

		_, err = store.Get(context.Background(), "staff-1")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})

	s.Run("sweep reinstates unaudited sessions", func() {
		other := s.newSession("staff-2", -time.Minute)
		s.Require().NoError(store.Put(context.Background(), other))

		sink.failing = true
		_, err := store.Sweep(context.Background(), s.now)
		s.Require().Error(err)

		sink.failing = false
		removed, err := store.Sweep(context.Background(), s.now)
		s.Require().NoError(err)
		s.Equal(1, removed)
		s.Equal([]audit.Action{audit.ActionExpired}, s.actions("staff-2"))
	})
}

func (s *MemoryStoreSuite) TestRevoke() {
	s.Run("removes session and audits with the given reason", func() {
		session := s.newSession("staff-1", time.Hour)
		s.Require().NoError(s.store.Put(context.Background(), session))

		revoked, err := s.store.Revoke(context.Background(), "staff-1", audit.ReasonEndedByUser)
		s.Require().NoError(err)
		s.True(revoked)

		_, err = s.store.Get(context.Background(), "staff-1")
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		entries, err := s.trail.Query(context.Background(), audit.Filter{UserID: "staff-1"})
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(audit.ActionRevoked, entries[0].Action)
		s.Equal(audit.ReasonEndedByUser, entries[0].Reason)
		s.Equal(session.CredentialID, entries[0].CredentialID)
	})

	s.Run("is idempotent", func() {
		revoked, err := s.store.Revoke(context.Background(), "ghost", audit.ReasonEndedByUser)
		s.Require().NoError(err)
		s.False(revoked)
	})
}

func (s *MemoryStoreSuite) TestSweep() {
	keep := s.newSession("staff-keep", time.Hour)
	dropA := s.newSession("staff-a", time.Minute)
	dropB := s.newSession("staff-b", time.Minute)
	for _, session := range []*models.Session{keep, dropA, dropB} {
		s.Require().NoError(s.store.Put(context.Background(), session))
	}

	removed, err := s.store.Sweep(context.Background(), s.now.Add(10*time.Minute))
	s.Require().NoError(err)
	s.Equal(2, removed)

	count, err := s.store.ActiveCount(context.Background())
	s.Require().NoError(err)
	s.Equal(1, count)

	s.Equal([]audit.Action{audit.ActionExpired}, s.actions("staff-a"))
	s.Equal([]audit.Action{audit.ActionExpired}, s.actions("staff-b"))
	s.Empty(s.actions("staff-keep"))
}
