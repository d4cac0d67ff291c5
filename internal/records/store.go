// Package records is the boundary with the personal-data store. The engine
// only ever reads through it; registration workflows own the writes.
package records

import "context"

// Store fetches raw field values for a client. Implementations return only
// the fields that exist; access control is not their concern — the data gate
// has already decided what the caller may see.
type Store interface {
	FetchFields(ctx context.Context, clientID string, fieldNames []string) (map[string]string, error)
}
