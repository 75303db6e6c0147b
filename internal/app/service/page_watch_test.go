package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// callCounter counts ClickCount calls per id and always reports 7.
type callCounter struct {
	mu    sync.Mutex
	calls map[string]int
}

func (c *callCounter) ClickCount(_ context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls[id]++
	return 7, nil
}

func (c *callCounter) count(id string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls[id]
}

// liveRecords is a link list whose contents a test can change mid-watch.
type liveRecords struct {
	mu      sync.Mutex
	records []model.LinkRecord
}

func (l *liveRecords) load(context.Context) []model.LinkRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]model.LinkRecord(nil), l.records...)
}

func (l *liveRecords) set(ids ...string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = l.records[:0]
	for _, id := range ids {
		l.records = append(l.records, model.LinkRecord{ShortID: id})
	}
}

func TestWatchPage_EvictedLinkStopsPolling(t *testing.T) {
	counter := &callCounter{calls: map[string]int{}}
	pollTickers := newManualTickers()
	poller := NewClickPoller(ClickPollerDeps{Counter: counter, NewTicker: pollTickers.New})

	records := &liveRecords{}
	records.set("a", "b", "c")
	links := NewLinkService(LinkServiceDeps{Store: &mockLinkStore{loadFn: records.load}})

	refresh := newManualTickers()
	changes := make(chan PageChange, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		WatchPage(ctx, PageWatchDeps{
			Links:     links,
			Poller:    poller,
			Number:    1,
			Size:      2,
			NewTicker: refresh.New,
			OnChange:  func(c PageChange) { changes <- c },
		})
	}()

	first := recv(t, changes)
	assert.Equal(t, []string{"a", "b"}, first.Page.IDs())
	assert.Empty(t, first.Removed)
	p1, p2 := pollTickers.next(t), pollTickers.next(t)
	refreshTicker := refresh.next(t)
	require.Eventually(t, func() bool { return counter.count("a") == 1 && counter.count("b") == 1 },
		time.Second, 5*time.Millisecond)

	// Unchanged page: no change is reported.
	refreshTicker.tick(t)
	assertSilent(t, changes)

	// "a" expired and the store dropped it; "c" slides onto page 1.
	records.set("b", "c")
	refreshTicker.tick(t)
	change := recv(t, changes)
	assert.Equal(t, []string{"a"}, change.Removed)
	assert.Equal(t, []string{"c"}, change.Added)
	assert.Equal(t, []string{"b", "c"}, change.Page.IDs())
	pollTickers.next(t)

	var stale, kept *manualTicker
	switch {
	case p1.stopped.Load() && !p2.stopped.Load():
		stale, kept = p1, p2
	case p2.stopped.Load() && !p1.stopped.Load():
		stale, kept = p2, p1
	default:
		t.Fatalf("expected exactly one poller stopped, got %v and %v", p1.stopped.Load(), p2.stopped.Load())
	}
	stale.assertNotConsumed(t)
	kept.tick(t)
	require.Eventually(t, func() bool { return counter.count("b") == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, counter.count("a"))

	// Everything expired: the page empties and no poller survives.
	records.set()
	refreshTicker.tick(t)
	last := recv(t, changes)
	assert.ElementsMatch(t, []string{"b", "c"}, last.Removed)
	assert.Empty(t, last.Page.Items)
	kept.assertNotConsumed(t)

	cancel()
	recv(t, done)
	assert.True(t, refreshTicker.stopped.Load())
}

func TestWatchPage_InitialCountsAndReports(t *testing.T) {
	counter := &callCounter{calls: map[string]int{}}
	poller := NewClickPoller(ClickPollerDeps{Counter: counter, NewTicker: newManualTickers().New})

	records := &liveRecords{}
	records.set("fresh")
	links := NewLinkService(LinkServiceDeps{Store: &mockLinkStore{loadFn: records.load}})

	updates := make(chan ClickUpdate, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		WatchPage(ctx, PageWatchDeps{
			Links:     links,
			Poller:    poller,
			Number:    1,
			Size:      5,
			NewTicker: newManualTickers().New,
			Initial:   map[string]int64{"fresh": 0},
			Report:    func(u ClickUpdate) { updates <- u },
		})
	}()

	assert.Equal(t, PollState{Status: PollReady, Count: 0}, recv(t, updates).State)
	assert.Equal(t, "7 clicks", recv(t, updates).Label())

	cancel()
	recv(t, done)
}

func TestDiffIDs(t *testing.T) {
	removed, added := diffIDs([]string{"a", "b", "c"}, []string{"c", "d"})
	assert.Equal(t, []string{"a", "b"}, removed)
	assert.Equal(t, []string{"d"}, added)

	removed, added = diffIDs([]string{"a"}, []string{"a"})
	assert.Empty(t, removed)
	assert.Empty(t, added)
}
