// Package conversation keeps the last command and reply per user so the
// next extraction prompt can refer back to it.
package conversation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrStoreUnavailable = errors.New("CONVERSATION_STORE_UNAVAILABLE")

const (
	DefaultKeyPrefix = "conversation:"
	DefaultTTL       = 30 * time.Minute
)

// Turn is one command and the reply produced for it.
type Turn struct {
	TurnID    string    `json:"turnId"`
	RawText   string    `json:"rawText"`
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
}

type Store struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

func NewStore(client redis.Cmdable, prefix string, ttl time.Duration) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, prefix: prefix, ttl: ttl}
}

func (s *Store) key(userID string) string {
	return s.prefix + userID
}

// Save overwrites the user's last turn. TurnID and Timestamp are filled in
// when empty.
func (s *Store) Save(ctx context.Context, userID string, turn Turn) (Turn, error) {
	if turn.TurnID == "" {
		turn.TurnID = uuid.NewString()
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(turn)
	if err != nil {
		return turn, fmt.Errorf("encode turn: %w", err)
	}
	if err := s.client.Set(ctx, s.key(userID), payload, s.ttl).Err(); err != nil {
		return turn, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return turn, nil
}

// Last returns the user's previous turn, or nil when there is none.
func (s *Store) Last(ctx context.Context, userID string) (*Turn, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var turn Turn
	if err := json.Unmarshal(raw, &turn); err != nil {
		// A corrupt entry is treated as no history.
		return nil, nil
	}
	return &turn, nil
}

func (s *Store) Forget(ctx context.Context, userID string) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}
