package records

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"shelteraccess/pkg/platform/sentinel"
)

// PostgresStore reads client records from the HMIS mirror database. The
// engine's credentials for this database are read-only.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FetchFields(ctx context.Context, clientID string, fieldNames []string) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT field, value
		FROM client_records
		WHERE client_id = $1 AND field = ANY($2)
	`, clientID, fieldNames)
	if err != nil {
		return nil, fmt.Errorf("fetch client fields: %w", err)
	}
	defer rows.Close()

	out := make(map[string]string, len(fieldNames))
	for rows.Next() {
		var field, value string
		if err := rows.Scan(&field, &value); err != nil {
			return nil, fmt.Errorf("scan client field: %w", err)
		}
		out[field] = value
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate client fields: %w", err)
	}

	if len(out) == 0 {
		var exists bool
		err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM client_records WHERE client_id = $1)`,
			clientID).Scan(&exists)
		if err != nil {
			return nil, fmt.Errorf("check client existence: %w", err)
		}
		if !exists {
			return nil, sentinel.ErrNotFound
		}
	}
	return out, nil
}
