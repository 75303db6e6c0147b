package service

import (
	"sync/atomic"
	"testing"
	"time"
)

type manualTicker struct {
	ch      chan time.Time
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return m.ch }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

// manualTickers hands out unbuffered tickers: a send only completes once the
// loop under test has received the tick.
type manualTickers struct {
	created chan *manualTicker
}

func newManualTickers() *manualTickers {
	return &manualTickers{created: make(chan *manualTicker, 16)}
}

func (f *manualTickers) New(time.Duration) Ticker {
	t := &manualTicker{ch: make(chan time.Time)}
	f.created <- t
	return t
}

func (f *manualTickers) next(t *testing.T) *manualTicker {
	t.Helper()
	select {
	case tk := <-f.created:
		return tk
	case <-time.After(time.Second):
		t.Fatal("no ticker created")
		return nil
	}
}

func (m *manualTicker) tick(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
	case <-time.After(time.Second):
		t.Fatal("tick not consumed")
	}
}

// assertNotConsumed fails if anything receives from the ticker.
func (m *manualTicker) assertNotConsumed(t *testing.T) {
	t.Helper()
	select {
	case m.ch <- time.Now():
		t.Fatal("tick consumed after the loop should have stopped")
	case <-time.After(50 * time.Millisecond):
	}
}

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(time.Second):
		var zero T
		t.Fatal("timed out waiting for value")
		return zero
	}
}

func assertSilent[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	select {
	case v := <-ch:
		t.Fatalf("unexpected value %+v", v)
	case <-time.After(50 * time.Millisecond):
	}
}
