package memory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Storage persists per-user indexes. Implementations must make vectors and
// payloads durable together: after Save returns nil, a later Load sees every
// entry up to snap.Len().
type Storage interface {
	// Load returns the stored snapshot, or an empty one when nothing exists.
	Load(ctx context.Context, userID uuid.UUID) (*Snapshot, error)
	// Save persists snap. Entries before persisted are already durable.
	Save(ctx context.Context, userID uuid.UUID, snap *Snapshot, persisted int) error
}

// Storage backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// OpenStorage returns the backend named by backend. dir is used by the file
// backend only.
func OpenStorage(backend, dir string, pool *pgxpool.Pool) (Storage, error) {
	switch backend {
	case BackendPostgres:
		return NewPostgresStorage(pool), nil
	case BackendFile, "":
		return NewFileStorage(dir)
	default:
		return nil, fmt.Errorf("unknown memory backend %q", backend)
	}
}
