package natsclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/PowerLink/internal/app/repository"
)

// OpenBucket binds to the key-value bucket, creating it with ttl when it does
// not exist yet.
func OpenBucket(js nats.JetStreamContext, bucket string, ttl time.Duration) (nats.KeyValue, error) {
	kv, err := js.KeyValue(bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, nats.ErrBucketNotFound) {
		return nil, fmt.Errorf("nats: bind bucket %q: %w", bucket, err)
	}

	kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
		Bucket:      bucket,
		Description: "powerlink local link list",
		History:     1,
		TTL:         ttl,
	})
	if err != nil {
		return nil, fmt.Errorf("nats: create bucket %q: %w", bucket, err)
	}
	return kv, nil
}

// Slot keeps the link list under one key of a JetStream key-value bucket.
// Expiry is enforced by the bucket TTL.
type Slot struct {
	kv  nats.KeyValue
	key string
}

// NewSlot returns a slot bound to key.
func NewSlot(kv nats.KeyValue, key string) *Slot {
	return &Slot{kv: kv, key: key}
}

func (s *Slot) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entry, err := s.kv.Get(s.key)
	if errors.Is(err, nats.ErrKeyNotFound) {
		return nil, repository.ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	return entry.Value(), nil
}

func (s *Slot) Save(ctx context.Context, payload []byte, expiresAt time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if expiresAt.IsZero() {
		err := s.kv.Delete(s.key)
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil
		}
		return err
	}
	_, err := s.kv.Put(s.key, payload)
	return err
}
