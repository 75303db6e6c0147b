package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time          { return c.now }
func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

type mockSlot struct {
	loadFn func(ctx context.Context) ([]byte, error)
	saveFn func(ctx context.Context, payload []byte, expiresAt time.Time) error
}

func (m *mockSlot) Load(ctx context.Context) ([]byte, error) {
	if m.loadFn != nil {
		return m.loadFn(ctx)
	}
	return nil, ErrSlotEmpty
}

func (m *mockSlot) Save(ctx context.Context, payload []byte, expiresAt time.Time) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, payload, expiresAt)
	}
	return nil
}

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)

func newRecord(t *testing.T, id string, at time.Time) model.LinkRecord {
	t.Helper()
	rec, err := model.NewLinkRecord(id, "https://example.com/"+id, "http://localhost:3000", at, model.DefaultTTL)
	require.NoError(t, err)
	return rec
}

func storedIDs(t *testing.T, slot *MemorySlot) []string {
	t.Helper()
	payload, err := slot.Load(context.Background())
	require.NoError(t, err)
	var records []model.LinkRecord
	require.NoError(t, json.Unmarshal(payload, &records))
	ids := make([]string, len(records))
	for i, r := range records {
		ids[i] = r.ShortID
	}
	return ids
}

func TestLinkStore_LoadEmpty(t *testing.T) {
	store := NewLinkStore(LinkStoreDeps{Slot: NewMemorySlot(), Clock: &testClock{now: epoch}})

	assert.Empty(t, store.Load(context.Background()))
}

func TestLinkStore_AddThenLoadNewestFirst(t *testing.T) {
	clock := &testClock{now: epoch}
	slot := NewMemorySlot()
	store := NewLinkStore(LinkStoreDeps{Slot: slot, Clock: clock})
	ctx := context.Background()

	first := newRecord(t, "aaa", clock.now)
	_, err := store.Add(ctx, first)
	require.NoError(t, err)

	clock.Advance(time.Second)
	second := newRecord(t, "bbb", clock.now)
	out, err := store.Add(ctx, second)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, second, out[0])

	loaded := store.Load(ctx)
	require.Len(t, loaded, 2)
	assert.Equal(t, second, loaded[0])
	assert.Equal(t, first, loaded[1])
	assert.Equal(t, []string{"bbb", "aaa"}, storedIDs(t, slot))
	assert.True(t, slot.ExpiresAt().Equal(second.ExpiresAt))
}

func TestLinkStore_ExpiredRecordDisappears(t *testing.T) {
	clock := &testClock{now: epoch}
	slot := NewMemorySlot()
	store := NewLinkStore(LinkStoreDeps{Slot: slot, Clock: clock})
	ctx := context.Background()

	old := newRecord(t, "old", clock.now)
	_, err := store.Add(ctx, old)
	require.NoError(t, err)

	// Exactly at expiry the record is still live.
	clock.Advance(model.DefaultTTL)
	require.Len(t, store.Load(ctx), 1)

	clock.Advance(time.Millisecond)
	assert.Empty(t, store.Load(ctx))
	assert.Empty(t, storedIDs(t, slot))

	fresh := newRecord(t, "new", clock.now)
	out, err := store.Add(ctx, fresh)
	require.NoError(t, err)
	assert.Equal(t, []model.LinkRecord{fresh}, out)
}

func TestLinkStore_LoadPurgesPersistedExpiredRecords(t *testing.T) {
	clock := &testClock{now: epoch}
	slot := NewMemorySlot()
	ctx := context.Background()

	live := newRecord(t, "live", epoch.Add(-time.Minute))
	dead := newRecord(t, "dead", epoch.Add(-time.Hour))
	payload, err := json.Marshal([]model.LinkRecord{live, dead})
	require.NoError(t, err)
	require.NoError(t, slot.Save(ctx, payload, live.ExpiresAt))

	store := NewLinkStore(LinkStoreDeps{Slot: slot, Clock: clock})
	loaded := store.Load(ctx)

	assert.Equal(t, []model.LinkRecord{live}, loaded)
	assert.Equal(t, []string{"live"}, storedIDs(t, slot))
}

func TestLinkStore_NeverReturnsExpired(t *testing.T) {
	clock := &testClock{now: epoch}
	store := NewLinkStore(LinkStoreDeps{Slot: NewMemorySlot(), Clock: clock})
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		out, err := store.Add(ctx, newRecord(t, fmt.Sprintf("id%d", i), clock.now))
		require.NoError(t, err)
		for _, r := range out {
			assert.False(t, clock.now.After(r.ExpiresAt), "expired record %s returned by Add", r.ShortID)
		}
		clock.Advance(time.Minute)
		for _, r := range store.Load(ctx) {
			assert.False(t, clock.now.After(r.ExpiresAt), "expired record %s returned by Load", r.ShortID)
		}
	}
	assert.Len(t, store.Load(ctx), int(model.DefaultTTL/time.Minute))
}

func TestLinkStore_AddRejectsInvalidRecord(t *testing.T) {
	store := NewLinkStore(LinkStoreDeps{Slot: NewMemorySlot(), Clock: &testClock{now: epoch}})

	_, err := store.Add(context.Background(), model.LinkRecord{ShortID: "x", CreatedAt: epoch, ExpiresAt: epoch})
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestLinkStore_SaveFailureKeepsMemoryResult(t *testing.T) {
	clock := &testClock{now: epoch}
	mem := NewMemorySlot()
	broken := true
	slot := &mockSlot{
		loadFn: mem.Load,
		saveFn: func(ctx context.Context, payload []byte, expiresAt time.Time) error {
			if broken {
				return errors.New("disk full")
			}
			return mem.Save(ctx, payload, expiresAt)
		},
	}
	store := NewLinkStore(LinkStoreDeps{Slot: slot, Clock: clock})
	ctx := context.Background()

	rec := newRecord(t, "mem", clock.now)
	out, err := store.Add(ctx, rec)
	require.NoError(t, err)
	assert.Equal(t, []model.LinkRecord{rec}, out)

	// Memory stays authoritative until a save goes through.
	assert.Equal(t, []model.LinkRecord{rec}, store.Load(ctx))
	_, err = mem.Load(ctx)
	assert.ErrorIs(t, err, ErrSlotEmpty)

	broken = false
	assert.Equal(t, []model.LinkRecord{rec}, store.Load(ctx))
	assert.Equal(t, []string{"mem"}, storedIDs(t, mem))
}

func TestLinkStore_LoadFailureFallsBackToMemory(t *testing.T) {
	clock := &testClock{now: epoch}
	failing := false
	mem := NewMemorySlot()
	slot := &mockSlot{
		loadFn: func(ctx context.Context) ([]byte, error) {
			if failing {
				return nil, errors.New("connection refused")
			}
			return mem.Load(ctx)
		},
		saveFn: func(ctx context.Context, payload []byte, expiresAt time.Time) error {
			if failing {
				return errors.New("connection refused")
			}
			return mem.Save(ctx, payload, expiresAt)
		},
	}
	store := NewLinkStore(LinkStoreDeps{Slot: slot, Clock: clock})
	ctx := context.Background()

	first := newRecord(t, "one", clock.now)
	_, err := store.Add(ctx, first)
	require.NoError(t, err)

	failing = true
	second := newRecord(t, "two", clock.now)
	out, err := store.Add(ctx, second)
	require.NoError(t, err)
	assert.Equal(t, []model.LinkRecord{second, first}, out)
	assert.Equal(t, []model.LinkRecord{second, first}, store.Load(ctx))
}

func TestLinkStore_UnreadableSlotIsNotOverwritten(t *testing.T) {
	clock := &testClock{now: epoch}
	mem := NewMemorySlot()
	ctx := context.Background()

	previous := NewLinkStore(LinkStoreDeps{Slot: mem, Clock: clock})
	for _, id := range []string{"a", "b"} {
		_, err := previous.Add(ctx, newRecord(t, id, clock.now))
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	require.Equal(t, []string{"b", "a"}, storedIDs(t, mem))

	loadFails := true
	slot := &mockSlot{
		loadFn: func(ctx context.Context) ([]byte, error) {
			if loadFails {
				return nil, errors.New("i/o timeout")
			}
			return mem.Load(ctx)
		},
		saveFn: mem.Save,
	}
	store := NewLinkStore(LinkStoreDeps{Slot: slot, Clock: clock})

	c := newRecord(t, "c", clock.now)
	out, err := store.Add(ctx, c)
	require.NoError(t, err)
	assert.Equal(t, []model.LinkRecord{c}, out)
	assert.Equal(t, []string{"b", "a"}, storedIDs(t, mem), "links the store could not read must survive")

	loadFails = false
	loaded := store.Load(ctx)
	require.Len(t, loaded, 3)
	assert.Equal(t, "c", loaded[0].ShortID)
	assert.Equal(t, []string{"c", "b", "a"}, storedIDs(t, mem))
}

func TestLinkStore_CorruptPayloadIsReplaced(t *testing.T) {
	clock := &testClock{now: epoch}
	slot := NewMemorySlot()
	ctx := context.Background()
	require.NoError(t, slot.Save(ctx, []byte("{not json"), time.Time{}))

	saves := 0
	counting := &mockSlot{
		loadFn: slot.Load,
		saveFn: func(ctx context.Context, payload []byte, expiresAt time.Time) error {
			saves++
			return slot.Save(ctx, payload, expiresAt)
		},
	}
	store := NewLinkStore(LinkStoreDeps{Slot: counting, Clock: clock})

	assert.Empty(t, store.Load(ctx))
	assert.Empty(t, storedIDs(t, slot))
	assert.Equal(t, 1, saves)

	assert.Empty(t, store.Load(ctx))
	assert.Equal(t, 1, saves, "a healed slot is not rewritten")
}

func TestLinkStore_PersistedTimestampsRoundTrip(t *testing.T) {
	clock := &testClock{now: epoch}
	slot := NewMemorySlot()
	ctx := context.Background()

	rec := newRecord(t, "precise", clock.now)
	_, err := NewLinkStore(LinkStoreDeps{Slot: slot, Clock: clock}).Add(ctx, rec)
	require.NoError(t, err)

	reopened := NewLinkStore(LinkStoreDeps{Slot: slot, Clock: clock}).Load(ctx)
	require.Len(t, reopened, 1)
	assert.True(t, reopened[0].CreatedAt.Equal(rec.CreatedAt))
	assert.True(t, reopened[0].ExpiresAt.Equal(rec.ExpiresAt))
	assert.Equal(t, rec.CreatedAt.Nanosecond(), reopened[0].CreatedAt.Nanosecond())
}

func TestLinkStore_ReturnedSliceIsACopy(t *testing.T) {
	clock := &testClock{now: epoch}
	store := NewLinkStore(LinkStoreDeps{Slot: NewMemorySlot(), Clock: clock})
	ctx := context.Background()

	out, err := store.Add(ctx, newRecord(t, "copy", clock.now))
	require.NoError(t, err)
	out[0].OriginalURL = "https://mutated.example"

	assert.Equal(t, "https://example.com/copy", store.Load(ctx)[0].OriginalURL)
}
