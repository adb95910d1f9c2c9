package memory

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
)

// PostgresStorage implements Storage on the memory_entries table using pgvector.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new pgvector-backed storage.
func NewPostgresStorage(pool *pgxpool.Pool) *PostgresStorage {
	return &PostgresStorage{pool: pool}
}

func (r *PostgresStorage) Load(ctx context.Context, userID uuid.UUID) (*Snapshot, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT seq, embedding, payload
		 FROM memory_entries
		 WHERE user_id = $1
		 ORDER BY seq`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("loading memory entries: %w", err)
	}
	defer rows.Close()

	snap := &Snapshot{}
	for rows.Next() {
		var (
			seq     int
			vec     pgvector.Vector
			payload []byte
		)
		if err := rows.Scan(&seq, &vec, &payload); err != nil {
			return nil, fmt.Errorf("scanning memory entry: %w", err)
		}
		// Sequence ids are dense; a gap means a partial write we cannot trust past.
		if seq != snap.Len() {
			break
		}
		var p Payload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("decoding payload %d: %w", seq, err)
		}
		v := vec.Slice()
		if snap.Dim == 0 {
			snap.Dim = len(v)
		}
		snap.Vectors = append(snap.Vectors, v)
		snap.Payloads = append(snap.Payloads, p)
	}
	return snap, rows.Err()
}

// Save inserts entries [persisted, snap.Len()) in one transaction.
func (r *PostgresStorage) Save(ctx context.Context, userID uuid.UUID, snap *Snapshot, persisted int) error {
	if persisted >= snap.Len() {
		return nil
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning memory tx: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for i := persisted; i < snap.Len(); i++ {
		payload, err := json.Marshal(snap.Payloads[i])
		if err != nil {
			return fmt.Errorf("encoding payload %d: %w", i, err)
		}
		batch.Queue(
			`INSERT INTO memory_entries (user_id, seq, embedding, payload)
			 VALUES ($1, $2, $3, $4)
			 ON CONFLICT (user_id, seq) DO NOTHING`,
			userID, i, pgvector.NewVector(snap.Vectors[i]), payload,
		)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting memory entries: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing memory entries: %w", err)
	}
	return nil
}
