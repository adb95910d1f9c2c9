package chat

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Repository interface {
	Create(ctx context.Context, it *Interaction) error
	// Recent returns the user's last limit interactions, oldest first.
	Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Interaction, error)
	// List returns every interaction, newest first.
	List(ctx context.Context, userID uuid.UUID) ([]Interaction, error)
	// ListDay returns one UTC day of interactions, oldest first.
	ListDay(ctx context.Context, userID uuid.UUID, date time.Time) ([]Interaction, error)
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) Create(ctx context.Context, it *Interaction) error {
	err := r.pool.QueryRow(ctx,
		`INSERT INTO ai_interactions (user_id, message, response, interaction_type)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		it.UserID, it.Message, it.Response, it.InteractionType,
	).Scan(&it.ID, &it.CreatedAt)
	if err != nil {
		return fmt.Errorf("inserting interaction: %w", err)
	}
	return nil
}

func (r *PostgresRepository) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Interaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, message, response, interaction_type, created_at
		 FROM ai_interactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying recent interactions: %w", err)
	}
	out, err := scanInteractions(rows)
	if err != nil {
		return nil, err
	}
	slices.Reverse(out)
	return out, nil
}

func (r *PostgresRepository) List(ctx context.Context, userID uuid.UUID) ([]Interaction, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, message, response, interaction_type, created_at
		 FROM ai_interactions
		 WHERE user_id = $1
		 ORDER BY created_at DESC, id DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying interactions: %w", err)
	}
	return scanInteractions(rows)
}

func (r *PostgresRepository) ListDay(ctx context.Context, userID uuid.UUID, date time.Time) ([]Interaction, error) {
	y, m, d := date.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	rows, err := r.pool.Query(ctx,
		`SELECT id, user_id, message, response, interaction_type, created_at
		 FROM ai_interactions
		 WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
		 ORDER BY created_at, id`,
		userID, from, from.AddDate(0, 0, 1),
	)
	if err != nil {
		return nil, fmt.Errorf("querying interactions by day: %w", err)
	}
	return scanInteractions(rows)
}

func scanInteractions(rows pgx.Rows) ([]Interaction, error) {
	defer rows.Close()
	out := []Interaction{}
	for rows.Next() {
		var it Interaction
		if err := rows.Scan(&it.ID, &it.UserID, &it.Message, &it.Response, &it.InteractionType, &it.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning interaction: %w", err)
		}
		out = append(out, it)
	}
	return out, rows.Err()
}
