package service

import (
	"context"
	"fmt"
	"sync"
)

// ClickUpdate is one state change of a watched link. LastKnown keeps the
// most recent successful count so a failed poll can still show a number.
type ClickUpdate struct {
	ShortID   string    `json:"shortId"`
	State     PollState `json:"state"`
	LastKnown *int64    `json:"lastKnown,omitempty"`
}

// Label renders the count the way the list view shows it.
func (u ClickUpdate) Label() string {
	switch {
	case u.State.Status == PollReady:
		return clickLabel(u.State.Count)
	case u.LastKnown != nil:
		return clickLabel(*u.LastKnown)
	default:
		return ""
	}
}

// ClickPollerSet keeps exactly one watch per visible short id. Sync it with
// the ids on screen; ids that disappear have their watch stopped.
type ClickPollerSet struct {
	ctx    context.Context
	poller *ClickPoller
	report func(ClickUpdate)

	mu      sync.Mutex
	entries map[string]*setEntry
	closed  bool
}

type setEntry struct {
	watch     *ClickWatch
	lastKnown *int64
}

// NewClickPollerSet returns an empty set. Watches inherit ctx; report is
// called from the watch goroutines and must be safe for concurrent use.
func NewClickPollerSet(ctx context.Context, poller *ClickPoller, report func(ClickUpdate)) *ClickPollerSet {
	return &ClickPollerSet{
		ctx:     ctx,
		poller:  poller,
		report:  report,
		entries: make(map[string]*setEntry),
	}
}

// Sync starts watches for ids not yet watched and stops watches for ids no
// longer listed. initial supplies known starting counts, e.g. zero for a link
// created a moment ago.
func (s *ClickPollerSet) Sync(ids []string, initial map[string]int64) {
	visible := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		visible[id] = struct{}{}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	var stale []*ClickWatch
	for id, e := range s.entries {
		if _, ok := visible[id]; !ok {
			stale = append(stale, e.watch)
			delete(s.entries, id)
		}
	}

	for _, id := range ids {
		if _, ok := s.entries[id]; ok {
			continue
		}
		var start *int64
		if n, ok := initial[id]; ok {
			start = &n
		}
		e := &setEntry{lastKnown: start}
		s.entries[id] = e
		e.watch = s.poller.Watch(s.ctx, id, start, s.forward(id, e))
	}
	s.mu.Unlock()

	// Stop outside the lock: a stopping watch may be blocked in forward.
	for _, w := range stale {
		w.Stop()
	}
}

// IDs returns the ids currently watched.
func (s *ClickPollerSet) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	return ids
}

// Close stops every watch. The set cannot be reused.
func (s *ClickPollerSet) Close() {
	s.mu.Lock()
	s.closed = true
	watches := make([]*ClickWatch, 0, len(s.entries))
	for id, e := range s.entries {
		watches = append(watches, e.watch)
		delete(s.entries, id)
	}
	s.mu.Unlock()

	for _, w := range watches {
		w.Stop()
	}
}

func (s *ClickPollerSet) forward(id string, e *setEntry) func(PollState) {
	return func(st PollState) {
		s.mu.Lock()
		if s.entries[id] != e {
			// Removed from view; the watch is being stopped.
			s.mu.Unlock()
			return
		}
		if st.Status == PollReady {
			n := st.Count
			e.lastKnown = &n
		}
		update := ClickUpdate{ShortID: id, State: st}
		if e.lastKnown != nil {
			n := *e.lastKnown
			update.LastKnown = &n
		}
		s.mu.Unlock()

		s.report(update)
	}
}

func clickLabel(n int64) string {
	if n == 1 {
		return "1 click"
	}
	return fmt.Sprintf("%d clicks", n)
}
