package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countResult struct {
	count int64
	err   error
}

// scriptedCounter replays results in order and then keeps failing.
type scriptedCounter struct {
	mu      sync.Mutex
	results []countResult
	calls   []string
}

func (s *scriptedCounter) ClickCount(_ context.Context, shortID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, shortID)
	if len(s.results) == 0 {
		return 0, model.ErrNetwork
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r.count, r.err
}

func (s *scriptedCounter) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestClickPoller_StateSequence(t *testing.T) {
	counter := &scriptedCounter{results: []countResult{
		{count: 5},
		{count: 7},
		{err: errors.New("dial tcp: connection refused")},
		{count: 9},
	}}
	tickers := newManualTickers()
	poller := NewClickPoller(ClickPollerDeps{Counter: counter, NewTicker: tickers.New})

	states := make(chan PollState, 16)
	watch := poller.Watch(context.Background(), "abc", nil, func(s PollState) { states <- s })

	assert.Equal(t, PollState{Status: PollLoading}, recv(t, states))
	assert.Equal(t, PollState{Status: PollReady, Count: 5}, recv(t, states))

	tk := tickers.next(t)
	tk.tick(t)
	assert.Equal(t, PollState{Status: PollReady, Count: 7}, recv(t, states))
	tk.tick(t)
	assert.Equal(t, PollState{Status: PollFailed, Err: model.KindNetwork}, recv(t, states))
	tk.tick(t)
	assert.Equal(t, PollState{Status: PollReady, Count: 9}, recv(t, states))

	watch.Stop()
	assert.True(t, tk.stopped.Load())
	tk.assertNotConsumed(t)
	assertSilent(t, states)
	assert.Equal(t, 4, counter.callCount())
}

func TestClickPoller_InitialCount(t *testing.T) {
	counter := &scriptedCounter{results: []countResult{{count: 1}}}
	tickers := newManualTickers()
	poller := NewClickPoller(ClickPollerDeps{Counter: counter, NewTicker: tickers.New})

	zero := int64(0)
	states := make(chan PollState, 4)
	watch := poller.Watch(context.Background(), "fresh", &zero, func(s PollState) { states <- s })
	defer watch.Stop()

	assert.Equal(t, PollState{Status: PollReady, Count: 0}, recv(t, states))
	assert.Equal(t, PollState{Status: PollReady, Count: 1}, recv(t, states))
}

func TestClickPoller_ContextEndStopsWatch(t *testing.T) {
	counter := &scriptedCounter{results: []countResult{{count: 3}}}
	tickers := newManualTickers()
	poller := NewClickPoller(ClickPollerDeps{Counter: counter, NewTicker: tickers.New})

	ctx, cancel := context.WithCancel(context.Background())
	states := make(chan PollState, 4)
	watch := poller.Watch(ctx, "abc", nil, func(s PollState) { states <- s })
	recv(t, states)
	recv(t, states)
	tk := tickers.next(t)

	cancel()
	recv(t, watch.Done())
	tk.assertNotConsumed(t)
	assertSilent(t, states)
}

// blockingCounter parks every request until released or cancelled.
type blockingCounter struct {
	started chan struct{}
}

func (b *blockingCounter) ClickCount(ctx context.Context, _ string) (int64, error) {
	b.started <- struct{}{}
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestClickPoller_InFlightResultDroppedOnStop(t *testing.T) {
	counter := &blockingCounter{started: make(chan struct{}, 4)}
	tickers := newManualTickers()
	poller := NewClickPoller(ClickPollerDeps{Counter: counter, NewTicker: tickers.New})

	states := make(chan PollState, 4)
	watch := poller.Watch(context.Background(), "slow", nil, func(s PollState) { states <- s })
	require.Equal(t, PollState{Status: PollLoading}, recv(t, states))
	recv(t, counter.started)

	// While a request is outstanding no tick is taken, so no second request starts.
	tk := tickers.next(t)
	tk.assertNotConsumed(t)

	watch.Stop()
	assertSilent(t, states)
	assert.Len(t, counter.started, 0)
}
