package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Exchange is one user message and the assistant reply to it.
type Exchange struct {
	UserMessage string    `json:"user_message"`
	Reply       string    `json:"reply"`
	Timestamp   time.Time `json:"timestamp"`
}

// ShortTermStore keeps each user's most recent exchanges in a Redis list.
type ShortTermStore struct {
	client redis.Cmdable
}

// NewShortTermStore creates a new short-term memory store.
func NewShortTermStore(client redis.Cmdable) *ShortTermStore {
	return &ShortTermStore{client: client}
}

func convKey(userID uuid.UUID) string {
	return fmt.Sprintf("chat:recent:%s", userID.String())
}

// Recent returns up to limit exchanges, oldest first.
func (s *ShortTermStore) Recent(ctx context.Context, userID uuid.UUID, limit int) ([]Exchange, error) {
	if limit <= 0 {
		return []Exchange{}, nil
	}
	key := convKey(userID)

	// LRANGE key -limit -1 returns the last `limit` elements
	vals, err := s.client.LRange(ctx, key, int64(-limit), -1).Result()
	if err != nil {
		return nil, fmt.Errorf("lrange %s: %w", key, err)
	}

	entries := make([]Exchange, 0, len(vals))
	for _, v := range vals {
		var entry Exchange
		if err := json.Unmarshal([]byte(v), &entry); err != nil {
			continue // skip malformed entries
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Append adds an exchange and trims the list to maxItems.
func (s *ShortTermStore) Append(ctx context.Context, userID uuid.UUID, entry Exchange, maxItems int, ttl time.Duration) error {
	key := convKey(userID)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling exchange: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, string(data))
	pipe.LTrim(ctx, key, int64(-maxItems), -1)
	pipe.Expire(ctx, key, ttl)
	_, err = pipe.Exec(ctx)
	if err != nil {
		return fmt.Errorf("pipeline exec for %s: %w", key, err)
	}
	return nil
}

// Clear deletes a user's recent exchanges.
func (s *ShortTermStore) Clear(ctx context.Context, userID uuid.UUID) error {
	return s.client.Del(ctx, convKey(userID)).Err()
}
