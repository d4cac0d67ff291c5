package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shelteraccess/internal/access"
	"shelteraccess/pkg/platform/sentinel"
)

type sliceStore struct {
	entries []Entry
	failing bool
}

func (s *sliceStore) Append(_ context.Context, entry Entry) error {
	if s.failing {
		return errors.New("sink unavailable")
	}
	s.entries = append(s.entries, entry)
	return nil
}

func (s *sliceStore) Query(_ context.Context, filter Filter) ([]Entry, error) {
	var out []Entry
	for _, e := range s.entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestAppendAssignsIdentityAndChain(t *testing.T) {
	store := &sliceStore{}
	log := NewLog(store)

	err := log.Append(context.Background(), Entry{
		UserID: "staff-1",
		Action: ActionGranted,
		Level:  access.LevelMedical,
	})
	require.NoError(t, err)
	err = log.Append(context.Background(), Entry{
		UserID: "staff-1",
		Action: ActionAccessed,
		Level:  access.LevelMedical,
	})
	require.NoError(t, err)

	require.Len(t, store.entries, 2)
	first, second := store.entries[0], store.entries[1]

	assert.NotEqual(t, first.EntryID, second.EntryID)
	assert.False(t, first.Timestamp.IsZero())
	assert.Nil(t, first.PrevHash)
	assert.NotEmpty(t, first.Hash)
	assert.Equal(t, first.Hash, second.PrevHash)
}

func TestAppendFailureLeavesChainUnchanged(t *testing.T) {
	store := &sliceStore{}
	log := NewLog(store)

	require.NoError(t, log.Append(context.Background(), Entry{UserID: "u", Action: ActionGranted}))

	store.failing = true
	err := log.Append(context.Background(), Entry{UserID: "u", Action: ActionAccessed})
	require.Error(t, err)
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)

	store.failing = false
	require.NoError(t, log.Append(context.Background(), Entry{UserID: "u", Action: ActionRevoked}))

	intact, n, err := log.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, intact)
	assert.Equal(t, 2, n)
}

func TestVerifyDetectsTampering(t *testing.T) {
	store := &sliceStore{}
	log := NewLog(store)

	for range 3 {
		require.NoError(t, log.Append(context.Background(), Entry{UserID: "u", Action: ActionGranted}))
	}

	store.entries[1].Reason = "doctored after the fact"

	intact, _, err := log.Verify(context.Background())
	require.NoError(t, err)
	assert.False(t, intact)
}

func TestResumeContinuesChainAfterRestart(t *testing.T) {
	store := &sliceStore{}

	first := NewLog(store)
	require.NoError(t, first.Append(context.Background(), Entry{UserID: "u", Action: ActionGranted}))

	second := NewLog(store)
	require.NoError(t, second.Resume(context.Background()))
	require.NoError(t, second.Append(context.Background(), Entry{UserID: "u", Action: ActionRevoked}))

	intact, n, err := second.Verify(context.Background())
	require.NoError(t, err)
	assert.True(t, intact)
	assert.Equal(t, 2, n)
}

func TestQueryFilter(t *testing.T) {
	store := &sliceStore{}
	clock := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	log := NewLog(store, WithClock(func() time.Time { return clock }))

	require.NoError(t, log.Append(context.Background(), Entry{UserID: "a", Action: ActionGranted}))
	require.NoError(t, log.Append(context.Background(), Entry{UserID: "b", Action: ActionDenied}))
	require.NoError(t, log.Append(context.Background(), Entry{UserID: "a", Action: ActionRevoked}))

	byUser, err := log.Query(context.Background(), Filter{UserID: "a"})
	require.NoError(t, err)
	assert.Len(t, byUser, 2)

	byAction, err := log.Query(context.Background(), Filter{UserID: "a", Action: ActionRevoked})
	require.NoError(t, err)
	require.Len(t, byAction, 1)
	assert.Equal(t, ActionRevoked, byAction[0].Action)

	none, err := log.Query(context.Background(), Filter{From: clock.Add(time.Hour)})
	require.NoError(t, err)
	assert.Empty(t, none)
}
