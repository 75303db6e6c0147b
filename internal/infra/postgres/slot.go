package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sifan077/PowerLink/internal/app/repository"
)

const (
	selectSlot = `SELECT value FROM slot_entries WHERE key = $1 AND (expires_at IS NULL OR expires_at > now())`
	upsertSlot = `INSERT INTO slot_entries (key, value, expires_at, updated_at)
VALUES ($1, $2, $3, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, expires_at = EXCLUDED.expires_at, updated_at = now()`
	deleteSlot = `DELETE FROM slot_entries WHERE key = $1`
)

// Querier is the subset of *pgxpool.Pool used by Slot.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Slot keeps the link list in one row of slot_entries.
type Slot struct {
	db  Querier
	key string
}

// NewSlot returns a slot bound to key.
func NewSlot(db Querier, key string) *Slot {
	return &Slot{db: db, key: key}
}

func (s *Slot) Load(ctx context.Context) ([]byte, error) {
	var value []byte
	err := s.db.QueryRow(ctx, selectSlot, s.key).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, repository.ErrSlotEmpty
	}
	if err != nil {
		return nil, err
	}
	return value, nil
}

func (s *Slot) Save(ctx context.Context, payload []byte, expiresAt time.Time) error {
	if expiresAt.IsZero() {
		_, err := s.db.Exec(ctx, deleteSlot, s.key)
		return err
	}
	_, err := s.db.Exec(ctx, upsertSlot, s.key, payload, expiresAt)
	return err
}
