package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/sifan077/PowerLink/internal/infra/metrics"
	"go.uber.org/zap"
)

var (
	// ErrSlotEmpty is returned by a Slot that holds no value yet.
	ErrSlotEmpty = errors.New("slot is empty")

	// ErrInvalidRecord rejects records that break expiresAt > createdAt.
	ErrInvalidRecord = errors.New("invalid link record")
)

// Slot is the single durable keyed value holding the serialized link list.
type Slot interface {
	Load(ctx context.Context) ([]byte, error)
	// Save replaces the stored value. expiresAt is the instant after which
	// every record in payload is dead; zero means the list is empty.
	Save(ctx context.Context, payload []byte, expiresAt time.Time) error
}

// LinkStoreDeps groups the collaborators of a LinkStore.
type LinkStoreDeps struct {
	Slot    Slot
	Logger  *zap.Logger
	Clock   model.Clock
	Metrics *metrics.Metrics
}

// LinkStore keeps the newest-first list of live links created by this client.
// Expired records are filtered out on every Load and Add and the filtered list
// is written straight back to the slot.
type LinkStore struct {
	mu      sync.Mutex
	slot    Slot
	logger  *zap.Logger
	clock   model.Clock
	metrics *metrics.Metrics

	// records mirrors the slot; it is the fallback when the slot fails.
	records []model.LinkRecord
	// unsynced is set while records holds changes the slot does not have.
	unsynced bool
	// blind is set after a failed slot read. records may then lack links the
	// slot holds, so nothing is saved until a read succeeds and merges both.
	blind bool
}

// NewLinkStore returns a store persisting to deps.Slot.
func NewLinkStore(deps LinkStoreDeps) *LinkStore {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = model.SystemClock
	}
	return &LinkStore{
		slot:    deps.Slot,
		logger:  logger.Named("link_store"),
		clock:   clock,
		metrics: deps.Metrics,
	}
}

// Load returns the live records, newest first.
func (s *LinkStore) Load(ctx context.Context) []model.LinkRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.read(ctx)
	live := s.evict(current)
	if s.unsynced || len(live) != len(current) {
		s.write(ctx, live)
	}
	s.records = live
	return clone(live)
}

// Add prepends rec to the live records, persists the result and returns it.
func (s *LinkStore) Add(ctx context.Context, rec model.LinkRecord) ([]model.LinkRecord, error) {
	if !rec.Valid() {
		return nil, fmt.Errorf("%w: %s expires at %s, created at %s",
			ErrInvalidRecord, rec.ShortID, rec.ExpiresAt, rec.CreatedAt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current := s.evict(s.read(ctx))
	next := make([]model.LinkRecord, 0, len(current)+1)
	next = append(next, rec)
	next = append(next, current...)
	// rec itself may already be dead if the caller's clock lags behind ours.
	next = s.evict(next)

	s.write(ctx, next)
	s.records = next
	return clone(next), nil
}

// read returns the slot's list. While memory holds links the slot lacks, the
// two are merged; if the slot cannot be read memory is used as is.
func (s *LinkStore) read(ctx context.Context) []model.LinkRecord {
	var stored []model.LinkRecord
	payload, err := s.slot.Load(ctx)
	switch {
	case errors.Is(err, ErrSlotEmpty):
	case err != nil:
		s.blind = true
		s.metrics.StorageFailure("load")
		s.logger.Warn("falling back to in-memory links",
			zap.Error(fmt.Errorf("%w: load: %w", model.ErrStorage, err)))
		return s.records
	default:
		if err := json.Unmarshal(payload, &stored); err != nil {
			s.metrics.StorageFailure("decode")
			s.logger.Warn("replacing unreadable link list",
				zap.Error(fmt.Errorf("%w: decode: %w", model.ErrStorage, err)))
			// Overwrite the garbage on the next write.
			s.blind = false
			s.unsynced = true
			return s.records
		}
	}

	if s.blind || s.unsynced {
		s.blind = false
		merged := merge(stored, s.records)
		s.unsynced = len(merged) != len(stored)
		return merged
	}
	return stored
}

func (s *LinkStore) write(ctx context.Context, records []model.LinkRecord) {
	if s.blind {
		s.unsynced = true
		s.logger.Debug("slot unreadable, keeping link list in memory", zap.Int("records", len(records)))
		return
	}
	if records == nil {
		records = []model.LinkRecord{}
	}
	payload, err := json.Marshal(records)
	if err != nil {
		s.metrics.StorageFailure("encode")
		s.logger.Error("failed to encode link list", zap.Error(err))
		return
	}

	if err := s.slot.Save(ctx, payload, horizon(records)); err != nil {
		s.unsynced = true
		s.metrics.StorageFailure("save")
		s.logger.Warn("link list kept in memory only",
			zap.Int("records", len(records)),
			zap.Error(fmt.Errorf("%w: save: %w", model.ErrStorage, err)))
		return
	}
	s.unsynced = false
}

// evict drops records that are dead or malformed at the store's current time.
func (s *LinkStore) evict(records []model.LinkRecord) []model.LinkRecord {
	now := s.clock.Now()
	live := make([]model.LinkRecord, 0, len(records))
	for _, r := range records {
		if r.Valid() && r.Live(now) {
			live = append(live, r)
		}
	}
	if dropped := len(records) - len(live); dropped > 0 {
		s.metrics.Evicted(dropped)
		s.logger.Debug("evicted expired links", zap.Int("count", dropped))
	}
	return live
}

// merge adds the links only memory knows about to the stored list, newest
// first.
func merge(stored, memory []model.LinkRecord) []model.LinkRecord {
	seen := make(map[string]struct{}, len(stored))
	out := make([]model.LinkRecord, 0, len(stored)+len(memory))
	for _, r := range stored {
		seen[r.ShortID] = struct{}{}
		out = append(out, r)
	}
	for _, r := range memory {
		if _, ok := seen[r.ShortID]; !ok {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func horizon(records []model.LinkRecord) time.Time {
	var latest time.Time
	for _, r := range records {
		if r.ExpiresAt.After(latest) {
			latest = r.ExpiresAt
		}
	}
	return latest
}

func clone(records []model.LinkRecord) []model.LinkRecord {
	out := make([]model.LinkRecord, len(records))
	copy(out, records)
	return out
}
