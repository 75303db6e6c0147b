package service

import (
	"context"
	"time"

	"github.com/sifan077/PowerLink/internal/app/model"
)

// PageChange describes the page a watch is showing after a refresh. Removed
// lists ids that left the page, Added ids that entered it.
type PageChange struct {
	Page    model.Page
	Removed []string
	Added   []string
}

// PageWatchDeps groups the collaborators of WatchPage.
type PageWatchDeps struct {
	Links  LinkService
	Poller *ClickPoller
	Number int
	Size   int
	// Refresh is how often the page is re-read; zero uses the poll interval.
	Refresh   time.Duration
	NewTicker NewTickerFunc
	// Initial supplies known starting counts for the first page.
	Initial map[string]int64
	// Report receives click updates; OnChange receives the first page before
	// any update and every later page whose ids differ, after the pollers of
	// removed ids have stopped. Both must be safe for concurrent use.
	Report   func(ClickUpdate)
	OnChange func(PageChange)
}

// WatchPage keeps the click counts of one page live until ctx ends. The page
// is re-read on every refresh tick, so links the store evicted drop off and
// their pollers stop, while links sliding in from the next page start one.
func WatchPage(ctx context.Context, deps PageWatchDeps) {
	report := deps.Report
	if report == nil {
		report = func(ClickUpdate) {}
	}
	onChange := deps.OnChange
	if onChange == nil {
		onChange = func(PageChange) {}
	}
	refresh := deps.Refresh
	if refresh <= 0 {
		refresh = deps.Poller.Interval()
	}
	newTicker := deps.NewTicker
	if newTicker == nil {
		newTicker = SystemTicker
	}

	set := NewClickPollerSet(ctx, deps.Poller, report)
	defer set.Close()

	page := deps.Links.Page(ctx, deps.Number, deps.Size)
	shown := page.IDs()
	onChange(PageChange{Page: page, Added: shown})
	set.Sync(shown, deps.Initial)

	ticker := newTicker(refresh)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			page = deps.Links.Page(ctx, deps.Number, deps.Size)
			ids := page.IDs()
			removed, added := diffIDs(shown, ids)
			if len(removed) == 0 && len(added) == 0 {
				continue
			}
			set.Sync(ids, nil)
			shown = ids
			onChange(PageChange{Page: page, Removed: removed, Added: added})
		}
	}
}

func diffIDs(before, after []string) (removed, added []string) {
	in := func(ids []string) map[string]struct{} {
		m := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			m[id] = struct{}{}
		}
		return m
	}
	was, now := in(before), in(after)
	for _, id := range before {
		if _, ok := now[id]; !ok {
			removed = append(removed, id)
		}
	}
	for _, id := range after {
		if _, ok := was[id]; !ok {
			added = append(added, id)
		}
	}
	return removed, added
}
