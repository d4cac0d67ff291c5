package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/blake2b"

	dErrors "shelteraccess/pkg/domain-errors"
	"shelteraccess/pkg/platform/sentinel"
)

// Mirror receives a best-effort copy of committed entries, e.g. for SIEM
// fan-out. Publish must not block and must not fail the append path.
type Mirror interface {
	Publish(entry Entry)
}

// Clock is injected for expiry and timestamp tests.
type Clock func() time.Time

// Log is the fail-closed appender. It assigns entry IDs, timestamps, and the
// tamper-evidence hash chain, then hands the entry to the store. A store
// failure propagates to the caller, which must abort its operation.
type Log struct {
	store  Store
	mirror Mirror
	clock  Clock

	mu       sync.Mutex
	lastHash []byte
}

// Option configures a Log.
type Option func(*Log)

// WithMirror attaches a best-effort mirror for committed entries.
func WithMirror(m Mirror) Option {
	return func(l *Log) { l.mirror = m }
}

// WithClock sets the clock function for testability.
func WithClock(clock Clock) Option {
	return func(l *Log) {
		if clock != nil {
			l.clock = clock
		}
	}
}

func NewLog(store Store, opts ...Option) *Log {
	l := &Log{store: store, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(l)
		}
	}
	return l
}

// Append commits one entry. The chain head only advances after the store
// accepts the write, so a failed append leaves the chain unchanged and the
// caller's operation must not proceed.
func (l *Log) Append(ctx context.Context, entry Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if entry.EntryID == uuid.Nil {
		entry.EntryID = uuid.New()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.clock()
	}
	// Truncate to microseconds so the hash survives a round trip through
	// timestamptz, which does not keep nanoseconds.
	entry.Timestamp = entry.Timestamp.UTC().Truncate(time.Microsecond)
	entry.PrevHash = l.lastHash

	hash, err := chainHash(entry)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "hash audit entry")
	}
	entry.Hash = hash

	if err := l.store.Append(ctx, entry); err != nil {
		return dErrors.Wrap(
			fmt.Errorf("%w: %v", sentinel.ErrUnavailable, err),
			dErrors.CodeInternal, "audit write failed")
	}
	l.lastHash = hash

	if l.mirror != nil {
		l.mirror.Publish(entry)
	}
	return nil
}

// Resume loads the chain head from a persistent store so entries written
// after a restart keep linking to the existing trail. Call before the first
// Append when the store outlives the process.
func (l *Log) Resume(ctx context.Context) error {
	entries, err := l.store.Query(ctx, Filter{})
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(entries) > 0 {
		l.lastHash = entries[len(entries)-1].Hash
	}
	return nil
}

// Query exposes the read side for compliance tooling. It never mutates.
func (l *Log) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	return l.store.Query(ctx, filter)
}

// Verify walks the full chain and reports whether every entry's hash links
// to its predecessor. Returns the number of entries checked.
func (l *Log) Verify(ctx context.Context) (bool, int, error) {
	entries, err := l.store.Query(ctx, Filter{})
	if err != nil {
		return false, 0, err
	}

	var prev []byte
	for i, entry := range entries {
		if !bytes.Equal(entry.PrevHash, prev) {
			return false, i, nil
		}
		want, err := chainHash(entry)
		if err != nil {
			return false, i, err
		}
		if !bytes.Equal(entry.Hash, want) {
			return false, i, nil
		}
		prev = entry.Hash
	}
	return true, len(entries), nil
}

// chainHash digests the entry minus its own Hash field. The canonical form is
// the JSON encoding, which is stable for a fixed struct definition.
func chainHash(entry Entry) ([]byte, error) {
	entry.Hash = nil
	payload, err := json.Marshal(entry)
	if err != nil {
		return nil, err
	}
	sum := blake2b.Sum256(payload)
	return sum[:], nil
}
