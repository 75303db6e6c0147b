package handler

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/sifan077/PowerLink/internal/app/repository"
	"github.com/sifan077/PowerLink/internal/app/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newHomeApp(svc *mockLinkService, guards ...fiber.Handler) (*fiber.App, *HomeHandler) {
	h := NewHomeHandler(HomeDeps{
		Links:    svc,
		Clock:    model.ClockFunc(func() time.Time { return fixedNow }),
		PageSize: 5,
	})
	app := fiber.New()
	h.Register(app, guards...)
	return app, h
}

func body(t *testing.T, resp io.ReadCloser) string {
	t.Helper()
	defer resp.Close()
	b, err := io.ReadAll(resp)
	require.NoError(t, err)
	return string(b)
}

func postForm(path, rawURL string) *http.Request {
	form := url.Values{"url": {rawURL}}
	req := httptest.NewRequest(fiber.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationForm)
	return req
}

func TestHome_IndexPaginates(t *testing.T) {
	app, _ := newHomeApp(&mockLinkService{records: sampleRecords(7)})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/?page=2", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	html := body(t, resp.Body)
	assert.Contains(t, html, `data-id="id5"`)
	assert.Contains(t, html, `data-id="id6"`)
	assert.NotContains(t, html, `data-id="id0"`)
	assert.Contains(t, html, "Page 2 of 2")
}

func TestHome_CreateRedirectsToFirstPage(t *testing.T) {
	var got string
	app, _ := newHomeApp(&mockLinkService{
		shortenFn: func(ctx context.Context, rawURL string) (model.LinkRecord, error) {
			got = rawURL
			return model.LinkRecord{ShortID: "xYz12"}, nil
		},
	})

	resp, err := app.Test(postForm("/", "https://example.com/a"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/?page=1&created=xYz12", resp.Header.Get(fiber.HeaderLocation))
	assert.Equal(t, "https://example.com/a", got)
}

func TestHome_CreateFailureShowsInlineError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		msg    string
	}{
		{"network", model.ErrNetwork, fiber.StatusBadGateway, createFailedMessage},
		{"validation", model.ErrValidation, fiber.StatusUnprocessableEntity, "enter a full http:// or https:// address"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app, _ := newHomeApp(&mockLinkService{
				records: sampleRecords(1),
				shortenFn: func(ctx context.Context, rawURL string) (model.LinkRecord, error) {
					return model.LinkRecord{}, tc.err
				},
			})

			resp, err := app.Test(postForm("/", "https://example.com/b"))
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)

			html := body(t, resp.Body)
			assert.Contains(t, html, tc.msg)
			assert.Contains(t, html, `value="https://example.com/b"`)
			assert.Contains(t, html, `data-id="id0"`, "the list stays visible")
		})
	}
}

func TestHome_RateLimitedGuard(t *testing.T) {
	svc := &mockLinkService{
		shortenFn: func(ctx context.Context, rawURL string) (model.LinkRecord, error) {
			t.Fatal("guarded create must not reach the service")
			return model.LinkRecord{}, nil
		},
	}
	h := NewHomeHandler(HomeDeps{Links: svc})
	app := fiber.New()
	h.Register(app, h.RateLimited)

	resp, err := app.Test(postForm("/", "https://example.com"))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Contains(t, body(t, resp.Body), rateLimitedMessage)
}

func TestHome_WatchClicks(t *testing.T) {
	counts := map[string]int64{"fresh": 3, "old": 1}
	poller := service.NewClickPoller(service.ClickPollerDeps{
		Counter: counterFunc(func(ctx context.Context, id string) (int64, error) {
			return counts[id], nil
		}),
	})
	h := NewHomeHandler(HomeDeps{
		Links:  &mockLinkService{records: []model.LinkRecord{{ShortID: "fresh"}, {ShortID: "old"}}},
		Poller: poller,
	})

	ctx, cancel := context.WithCancel(context.Background())
	events := newCollector()
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.watchClicks(1, map[string]int64{"fresh": 0})(ctx, events.emit)
	}()

	seen := map[string][]clickEvent{}
	for i := 0; i < 4; i++ {
		ev := events.next(t)
		assert.Equal(t, "count", ev.name)
		ce := ev.data.(clickEvent)
		seen[ce.ShortID] = append(seen[ce.ShortID], ce)
	}

	assert.Equal(t, []clickEvent{
		{ShortID: "fresh", Status: service.PollReady, Label: "0 clicks"},
		{ShortID: "fresh", Status: service.PollReady, Label: "3 clicks"},
	}, seen["fresh"])
	assert.Equal(t, []clickEvent{
		{ShortID: "old", Status: service.PollLoading, Label: ""},
		{ShortID: "old", Status: service.PollReady, Label: "1 click"},
	}, seen["old"])

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop with its context")
	}
}

// stepClock is a concurrency-safe clock tests can move forward.
type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestHome_WatchClicksRemovesExpiredLinks(t *testing.T) {
	clock := &stepClock{now: fixedNow}
	store := repository.NewLinkStore(repository.LinkStoreDeps{Slot: repository.NewMemorySlot(), Clock: clock})
	for i, id := range []string{"old", "young"} {
		rec, err := model.NewLinkRecord(id, "https://example.com/"+id, "http://localhost:3000",
			clock.Now().Add(time.Duration(i)*time.Minute), model.DefaultTTL)
		require.NoError(t, err)
		_, err = store.Add(context.Background(), rec)
		require.NoError(t, err)
	}

	var mu sync.Mutex
	calls := map[string]int{}
	callCount := func(id string) int {
		mu.Lock()
		defer mu.Unlock()
		return calls[id]
	}
	fast := func(time.Duration) service.Ticker { return service.SystemTicker(time.Millisecond) }
	poller := service.NewClickPoller(service.ClickPollerDeps{
		Counter: counterFunc(func(_ context.Context, id string) (int64, error) {
			mu.Lock()
			defer mu.Unlock()
			calls[id]++
			return 2, nil
		}),
		NewTicker: fast,
	})
	h := NewHomeHandler(HomeDeps{
		Links:  service.NewLinkService(service.LinkServiceDeps{Store: store, Clock: clock}),
		Poller: poller,
	})
	h.newTicker = fast

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var removedMu sync.Mutex
	var removed []string
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.watchClicks(1, nil)(ctx, func(ev sseEvent) bool {
			if ev.name == "remove" {
				removedMu.Lock()
				removed = append(removed, ev.data.(removeEvent).ShortID)
				removedMu.Unlock()
			}
			return true
		})
	}()

	require.Eventually(t, func() bool { return callCount("old") >= 2 && callCount("young") >= 2 },
		2*time.Second, 5*time.Millisecond)

	// Only "old" has run past its TTL.
	clock.Advance(model.DefaultTTL + 30*time.Second)
	require.Eventually(t, func() bool {
		removedMu.Lock()
		defer removedMu.Unlock()
		return len(removed) == 1
	}, 2*time.Second, 5*time.Millisecond)
	removedMu.Lock()
	assert.Equal(t, []string{"old"}, removed)
	removedMu.Unlock()

	settled, young := callCount("old"), callCount("young")
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, settled, callCount("old"), "expired link is still being polled")
	assert.Greater(t, callCount("young"), young, "live link stopped polling")

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop with its context")
	}
}
