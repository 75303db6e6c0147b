package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/sifan077/PowerLink/internal/infra/metrics"
	"go.uber.org/zap"
)

// DefaultCountdown is the number of one-second ticks before auto navigation.
const DefaultCountdown = 10

// ErrNotRunning is returned by NavigateNow outside the countdown.
var ErrNotRunning = errors.New("redirect is not counting down")

// RedirectStatus is the state of a redirect session.
type RedirectStatus string

const (
	RedirectResolving RedirectStatus = "resolving"
	RedirectRunning   RedirectStatus = "running"
	RedirectNavigated RedirectStatus = "navigated"
	RedirectFailed    RedirectStatus = "failed"
)

// RedirectState is a snapshot of a session. Destination and Remaining are
// set from the first running state on.
type RedirectState struct {
	Status      RedirectStatus  `json:"status"`
	Destination string          `json:"destination,omitempty"`
	Remaining   int             `json:"remaining"`
	Err         model.ErrorKind `json:"error,omitempty"`
	Message     string          `json:"message,omitempty"`
}

// Terminal reports whether no further state follows.
func (s RedirectState) Terminal() bool {
	return s.Status == RedirectNavigated || s.Status == RedirectFailed
}

// Resolver maps a short id to its destination.
type Resolver interface {
	Resolve(ctx context.Context, shortID string) (string, error)
}

// Navigator leaves for destination.
type Navigator interface {
	Navigate(ctx context.Context, destination string) error
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(ctx context.Context, destination string) error

func (f NavigatorFunc) Navigate(ctx context.Context, destination string) error {
	return f(ctx, destination)
}

// RedirectorDeps groups the collaborators of a Redirector.
type RedirectorDeps struct {
	Resolver  Resolver
	Countdown int
	NewTicker NewTickerFunc
	Logger    *zap.Logger
	Metrics   *metrics.Metrics
}

// Redirector runs resolve + countdown + navigate sessions.
type Redirector struct {
	resolver  Resolver
	countdown int
	newTicker NewTickerFunc
	logger    *zap.Logger
	metrics   *metrics.Metrics
}

// NewRedirector creates a redirector with the provided dependencies.
func NewRedirector(deps RedirectorDeps) *Redirector {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	countdown := deps.Countdown
	if countdown <= 0 {
		countdown = DefaultCountdown
	}
	newTicker := deps.NewTicker
	if newTicker == nil {
		newTicker = SystemTicker
	}
	return &Redirector{
		resolver:  deps.Resolver,
		countdown: countdown,
		newTicker: newTicker,
		logger:    logger.Named("redirect"),
		metrics:   deps.Metrics,
	}
}

// RedirectSession is one resolve + countdown run for a single short id.
type RedirectSession struct {
	shortID string
	nav     Navigator
	observe func(RedirectState)

	mu    sync.Mutex
	state RedirectState

	preempt chan chan error
	cancel  context.CancelFunc
	done    chan struct{}
}

// Begin resolves shortID once and, on success, counts down before calling
// nav. observe receives every state in order from the session goroutine.
// The session ends on navigation, on failure, on Close or when ctx ends.
func (r *Redirector) Begin(ctx context.Context, shortID string, nav Navigator, observe func(RedirectState)) *RedirectSession {
	ctx, cancel := context.WithCancel(ctx)
	if observe == nil {
		observe = func(RedirectState) {}
	}
	s := &RedirectSession{
		shortID: shortID,
		nav:     nav,
		observe: observe,
		state:   RedirectState{Status: RedirectResolving},
		preempt: make(chan chan error),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go r.run(ctx, s)
	return s
}

// State returns the latest snapshot.
func (s *RedirectSession) State() RedirectState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// NavigateNow navigates immediately during the countdown, as if the user
// followed the destination link.
func (s *RedirectSession) NavigateNow(ctx context.Context) error {
	if s.State().Status != RedirectRunning {
		return ErrNotRunning
	}

	reply := make(chan error, 1)
	select {
	case s.preempt <- reply:
	case <-s.done:
		return ErrNotRunning
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels the session and waits for it to stop. No navigation happens
// after Close returns.
func (s *RedirectSession) Close() {
	s.cancel()
	<-s.done
}

// Done is closed once the session goroutine has exited.
func (s *RedirectSession) Done() <-chan struct{} {
	return s.done
}

// ShortID returns the identifier being redirected.
func (s *RedirectSession) ShortID() string {
	return s.shortID
}

func (s *RedirectSession) set(st RedirectState) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	s.observe(st)
}

func (r *Redirector) run(ctx context.Context, s *RedirectSession) {
	defer close(s.done)
	logger := r.logger.With(zap.String("short_id", s.shortID))

	s.set(RedirectState{Status: RedirectResolving})

	destination, err := r.resolver.Resolve(ctx, s.shortID)
	if ctx.Err() != nil {
		r.metrics.Redirect("cancelled")
		return
	}
	if err != nil {
		r.metrics.Redirect("failed")
		logger.Info("short link did not resolve", zap.Error(err))
		s.set(RedirectState{
			Status:  RedirectFailed,
			Err:     model.KindOf(err),
			Message: failureMessage(err),
		})
		return
	}

	remaining := r.countdown
	running := RedirectState{Status: RedirectRunning, Destination: destination, Remaining: remaining}
	s.set(running)

	ticker := r.newTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.metrics.Redirect("cancelled")
			logger.Debug("redirect abandoned", zap.Int("remaining", remaining))
			return
		case reply := <-s.preempt:
			reply <- r.navigate(ctx, s, running, "user")
			return
		case <-ticker.C():
			remaining--
			running.Remaining = remaining
			s.set(running)
			if remaining <= 0 {
				_ = r.navigate(ctx, s, running, "timer")
				return
			}
		}
	}
}

func (r *Redirector) navigate(ctx context.Context, s *RedirectSession, from RedirectState, trigger string) error {
	err := s.nav.Navigate(ctx, from.Destination)
	if err != nil {
		r.metrics.Redirect("navigation_failed")
		r.logger.Warn("navigation failed",
			zap.String("short_id", s.shortID),
			zap.String("destination", from.Destination),
			zap.Error(err))
		s.set(RedirectState{
			Status:      RedirectFailed,
			Destination: from.Destination,
			Remaining:   from.Remaining,
			Err:         model.KindOf(err),
			Message:     "Could not open the destination.",
		})
		return err
	}

	r.metrics.Redirect("navigated_" + trigger)
	s.set(RedirectState{
		Status:      RedirectNavigated,
		Destination: from.Destination,
		Remaining:   from.Remaining,
	})
	return nil
}

func failureMessage(err error) string {
	switch model.KindOf(err) {
	case model.KindNotFound:
		return "This short link does not exist."
	default:
		return "Error fetching the original URL."
	}
}
