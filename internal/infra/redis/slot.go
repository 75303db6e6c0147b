package redis

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sifan077/PowerLink/internal/app/repository"
)

// Slot stores the link list under a single key. The key expires together
// with the newest record it holds, so an abandoned list cleans itself up.
type Slot struct {
	client redis.Cmdable
	key    string
	now    func() time.Time
}

// NewSlot returns a slot bound to key.
func NewSlot(client redis.Cmdable, key string) *Slot {
	return &Slot{client: client, key: key, now: time.Now}
}

func (s *Slot) Load(ctx context.Context) ([]byte, error) {
	val, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, repository.ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	return val, nil
}

func (s *Slot) Save(ctx context.Context, payload []byte, expiresAt time.Time) error {
	if expiresAt.IsZero() {
		return s.client.Del(ctx, s.key).Err()
	}
	ttl := expiresAt.Sub(s.now())
	if ttl <= 0 {
		return s.client.Del(ctx, s.key).Err()
	}
	return s.client.Set(ctx, s.key, payload, ttl).Err()
}
