package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/lib/pq"

	"shelteraccess/internal/access"
	"shelteraccess/internal/audit"
)

// Store persists audit entries in PostgreSQL. The table is insert-only; the
// monotonically increasing seq column preserves append order for chain
// verification.
type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the audit table when it does not exist yet. Run once
// at startup; concurrent calls are safe.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_entries (
			seq           BIGSERIAL PRIMARY KEY,
			entry_id      UUID NOT NULL UNIQUE,
			ts            TIMESTAMPTZ NOT NULL,
			user_id       TEXT NOT NULL,
			subject       TEXT NOT NULL DEFAULT '',
			action        TEXT NOT NULL,
			level         TEXT NOT NULL,
			credential_id TEXT NOT NULL DEFAULT '',
			reason        TEXT NOT NULL DEFAULT '',
			fields        TEXT[],
			device        TEXT NOT NULL DEFAULT '',
			request_id    TEXT NOT NULL DEFAULT '',
			prev_hash     BYTEA,
			hash          BYTEA NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("ensure audit schema: %w", err)
	}
	return nil
}

func (s *Store) Append(ctx context.Context, entry audit.Entry) error {
	query := `
		INSERT INTO audit_entries
			(entry_id, ts, user_id, subject, action, level, credential_id, reason, fields, device, request_id, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		entry.EntryID,
		entry.Timestamp,
		entry.UserID,
		entry.Subject,
		string(entry.Action),
		entry.Level.String(),
		entry.CredentialID,
		entry.Reason,
		pq.Array(entry.Fields),
		entry.Device,
		entry.RequestID,
		entry.PrevHash,
		entry.Hash,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// Query returns matching entries ordered by append sequence.
func (s *Store) Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error) {
	var (
		conds []string
		args  []any
	)
	addCond := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if filter.UserID != "" {
		addCond("user_id = $%d", filter.UserID)
	}
	if filter.Action != "" {
		addCond("action = $%d", string(filter.Action))
	}
	if !filter.From.IsZero() {
		addCond("ts >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		addCond("ts <= $%d", filter.To)
	}

	query := `
		SELECT entry_id, ts, user_id, subject, action, level, credential_id, reason, fields, device, request_id, prev_hash, hash
		FROM audit_entries
	`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY seq ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []audit.Entry
	for rows.Next() {
		var (
			entry     audit.Entry
			action    string
			levelName string
		)
		err := rows.Scan(
			&entry.EntryID,
			&entry.Timestamp,
			&entry.UserID,
			&entry.Subject,
			&action,
			&levelName,
			&entry.CredentialID,
			&entry.Reason,
			pq.Array(&entry.Fields),
			&entry.Device,
			&entry.RequestID,
			&entry.PrevHash,
			&entry.Hash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Action = audit.Action(action)
		level, err := access.ParseLevel(levelName)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		entry.Level = level
		entry.Timestamp = entry.Timestamp.UTC()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
