package service

import (
	"context"
	"time"

	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/sifan077/PowerLink/internal/infra/metrics"
	"go.uber.org/zap"
)

// DefaultPollInterval is the delay between two click-count requests.
const DefaultPollInterval = 5 * time.Second

// PollStatus is the state of one click-count poller.
type PollStatus string

const (
	PollLoading PollStatus = "loading"
	PollReady   PollStatus = "ready"
	PollFailed  PollStatus = "failed"
)

// PollState is reported after every poll. Count is meaningful only when
// Status is PollReady.
type PollState struct {
	Status PollStatus      `json:"status"`
	Count  int64           `json:"count"`
	Err    model.ErrorKind `json:"error,omitempty"`
}

// ClickCounter fetches the click counter of one short link.
type ClickCounter interface {
	ClickCount(ctx context.Context, shortID string) (int64, error)
}

// ClickPollerDeps groups the collaborators of a ClickPoller.
type ClickPollerDeps struct {
	Counter   ClickCounter
	Interval  time.Duration
	NewTicker NewTickerFunc
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// ClickPoller starts per-link watches that refresh click counts on a fixed
// interval.
type ClickPoller struct {
	counter   ClickCounter
	interval  time.Duration
	newTicker NewTickerFunc
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewClickPoller creates a poller with the provided dependencies.
func NewClickPoller(deps ClickPollerDeps) *ClickPoller {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := deps.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	newTicker := deps.NewTicker
	if newTicker == nil {
		newTicker = SystemTicker
	}
	return &ClickPoller{
		counter:   deps.Counter,
		interval:  interval,
		newTicker: newTicker,
		logger:    logger.Named("click_poller"),
		metrics:   deps.Metrics,
	}
}

// Interval returns the delay between two polls of one watch.
func (p *ClickPoller) Interval() time.Duration {
	return p.interval
}

// ClickWatch is one running poll loop. It lives until Stop is called or the
// context passed to Watch ends.
type ClickWatch struct {
	shortID string
	cancel  context.CancelFunc
	done    chan struct{}
}

// Watch starts polling shortID. The first request goes out immediately, the
// following ones on every tick. report is only ever called from the watch's
// own goroutine, and never after Stop returns.
//
// A nil initial starts in PollLoading; otherwise the first report is
// PollReady with that count.
func (p *ClickPoller) Watch(ctx context.Context, shortID string, initial *int64, report func(PollState)) *ClickWatch {
	ctx, cancel := context.WithCancel(ctx)
	w := &ClickWatch{
		shortID: shortID,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	first := PollState{Status: PollLoading}
	if initial != nil {
		first = PollState{Status: PollReady, Count: *initial}
	}

	go p.run(ctx, w, first, report)
	return w
}

// Stop cancels the watch and waits for its goroutine to exit.
func (w *ClickWatch) Stop() {
	w.cancel()
	<-w.done
}

// Done is closed once the watch has exited.
func (w *ClickWatch) Done() <-chan struct{} {
	return w.done
}

// ShortID returns the watched identifier.
func (w *ClickWatch) ShortID() string {
	return w.shortID
}

func (p *ClickPoller) run(ctx context.Context, w *ClickWatch, first PollState, report func(PollState)) {
	defer close(w.done)

	p.metrics.PollerStarted()
	defer p.metrics.PollerStopped()

	report(first)

	// The fetch runs inline, so a tick that fires mid-request is dropped
	// rather than starting a second request.
	ticker := p.newTicker(p.interval)
	defer ticker.Stop()

	p.poll(ctx, w.shortID, report)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			p.poll(ctx, w.shortID, report)
		}
	}
}

func (p *ClickPoller) poll(ctx context.Context, shortID string, report func(PollState)) {
	if ctx.Err() != nil {
		return
	}

	count, err := p.counter.ClickCount(ctx, shortID)
	if ctx.Err() != nil {
		// Scope ended while the request was in flight; drop the result.
		return
	}

	if err != nil {
		p.metrics.PollTick("failed")
		p.logger.Debug("click count unavailable", zap.String("short_id", shortID), zap.Error(err))
		report(PollState{Status: PollFailed, Err: model.KindOf(err)})
		return
	}

	p.metrics.PollTick("ok")
	report(PollState{Status: PollReady, Count: count})
}
