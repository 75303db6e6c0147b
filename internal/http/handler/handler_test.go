package handler

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type mockLinkService struct {
	shortenFn func(ctx context.Context, rawURL string) (model.LinkRecord, error)
	records   []model.LinkRecord
}

func (m *mockLinkService) Shorten(ctx context.Context, rawURL string) (model.LinkRecord, error) {
	if m.shortenFn != nil {
		return m.shortenFn(ctx, rawURL)
	}
	return model.LinkRecord{}, model.ErrNetwork
}

func (m *mockLinkService) Links(ctx context.Context) []model.LinkRecord {
	return m.records
}

func (m *mockLinkService) Page(ctx context.Context, number, size int) model.Page {
	return model.Paginate(m.records, number, size)
}

func sampleRecords(n int) []model.LinkRecord {
	records := make([]model.LinkRecord, n)
	for i := range records {
		id := fmt.Sprintf("id%d", i)
		rec, err := model.NewLinkRecord(id, "https://example.com/"+id, "http://localhost:3000", fixedNow.Add(-time.Duration(i)*time.Second), 10*time.Minute)
		if err != nil {
			panic(err)
		}
		records[i] = rec
	}
	return records
}

type counterFunc func(ctx context.Context, id string) (int64, error)

func (f counterFunc) ClickCount(ctx context.Context, id string) (int64, error) { return f(ctx, id) }

type resolverFunc func(ctx context.Context, id string) (string, error)

func (f resolverFunc) Resolve(ctx context.Context, id string) (string, error) { return f(ctx, id) }

// collector records emitted events for assertions.
type collector struct {
	events chan sseEvent
}

func newCollector() *collector {
	return &collector{events: make(chan sseEvent, 64)}
}

func (c *collector) emit(ev sseEvent) bool {
	c.events <- ev
	return true
}

func (c *collector) next(t *testing.T) sseEvent {
	t.Helper()
	select {
	case ev := <-c.events:
		return ev
	case <-time.After(2 * time.Second):
		require.FailNow(t, "timed out waiting for event")
		return sseEvent{}
	}
}
