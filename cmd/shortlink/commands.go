package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/sifan077/PowerLink/internal/app/model"
	"github.com/sifan077/PowerLink/internal/app/service"
)

// cli runs the subcommands against the shared client components.
type cli struct {
	out        io.Writer
	links      service.LinkService
	poller     *service.ClickPoller
	redirector *service.Redirector
	nav        service.Navigator
	pageSize   int
	now        func() time.Time
	// refresh and newTicker pace the page re-reads of watch; zero values use
	// the poll interval and real tickers.
	refresh   time.Duration
	newTicker service.NewTickerFunc
	// redraw clears the screen before each watch frame; off when out is not
	// a terminal.
	redraw bool
}

func (c *cli) shorten(ctx context.Context, raw string) error {
	rec, err := c.links.Shorten(ctx, raw)
	if err != nil {
		return fmt.Errorf("failed to create short URL: %w", err)
	}
	fmt.Fprintln(c.out, rec.ShortURL)
	return nil
}

func (c *cli) list(ctx context.Context, number int) error {
	page := c.links.Page(ctx, number, c.pageSize)
	c.printPage(page, nil)
	return nil
}

// watch prints the page and keeps its click counts live until ctx ends. Rows
// whose link expires are dropped from the view and stop polling.
func (c *cli) watch(ctx context.Context, number int) error {
	var mu sync.Mutex
	var page model.Page
	labels := make(map[string]string)

	service.WatchPage(ctx, service.PageWatchDeps{
		Links:     c.links,
		Poller:    c.poller,
		Number:    number,
		Size:      c.pageSize,
		Refresh:   c.refresh,
		NewTicker: c.newTicker,
		Report: func(u service.ClickUpdate) {
			mu.Lock()
			defer mu.Unlock()
			labels[u.ShortID] = u.Label()
			if u.State.Status == service.PollLoading {
				labels[u.ShortID] = "…"
			}
			if c.redraw {
				c.printPage(page, labels)
				return
			}
			fmt.Fprintf(c.out, "%s\t%s\n", u.ShortID, labels[u.ShortID])
		},
		OnChange: func(change service.PageChange) {
			mu.Lock()
			defer mu.Unlock()
			page = change.Page
			for _, id := range change.Removed {
				delete(labels, id)
			}
			switch {
			case c.redraw:
				c.printPage(page, labels)
			case len(change.Removed) == 0:
				c.printPage(page, nil)
			default:
				for _, id := range change.Removed {
					fmt.Fprintf(c.out, "%s\texpired\n", id)
				}
				for _, id := range change.Added {
					fmt.Fprintf(c.out, "%s\tshown\n", id)
				}
			}
		},
	})
	return nil
}

func (c *cli) printPage(page model.Page, labels map[string]string) {
	if c.redraw && labels != nil {
		fmt.Fprint(c.out, "\x1b[H\x1b[2J")
	}
	if len(page.Items) == 0 {
		fmt.Fprintln(c.out, "No links yet.")
		return
	}

	now := c.now()
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SHORT URL\tORIGINAL URL\tEXPIRES IN\tCLICKS")
	for _, rec := range page.Items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", rec.ShortURL, rec.OriginalURL, rec.Remaining(now).Round(time.Second), labels[rec.ShortID])
	}
	_ = tw.Flush()
	fmt.Fprintf(c.out, "Page %d of %d (%d links)\n", page.Number, page.TotalPages, page.Total)
}

// open runs a redirect session for id. A line on input skips the countdown.
func (c *cli) open(ctx context.Context, id string, input io.Reader) error {
	var mu sync.Mutex
	var last service.RedirectState

	session := c.redirector.Begin(ctx, id, c.nav, func(st service.RedirectState) {
		mu.Lock()
		defer mu.Unlock()
		c.printRedirect(last, st)
		last = st
	})
	defer session.Close()

	go func() {
		scanner := bufio.NewScanner(input)
		for scanner.Scan() {
			err := session.NavigateNow(ctx)
			if err == nil || !errors.Is(err, service.ErrNotRunning) {
				return
			}
		}
	}()

	select {
	case <-session.Done():
	case <-ctx.Done():
		return ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	if last.Status == service.RedirectFailed {
		return errors.New(last.Message)
	}
	return nil
}

func (c *cli) printRedirect(prev, st service.RedirectState) {
	switch st.Status {
	case service.RedirectResolving:
		fmt.Fprintln(c.out, "Loading...")
	case service.RedirectRunning:
		if prev.Status != service.RedirectRunning {
			fmt.Fprintf(c.out, "Destination: %s\nPress Enter to go now.\n", st.Destination)
		}
		fmt.Fprintf(c.out, "\rRedirecting in %2ds", st.Remaining)
	case service.RedirectNavigated:
		fmt.Fprintf(c.out, "\nOpened %s\n", st.Destination)
	case service.RedirectFailed:
		if prev.Status == service.RedirectRunning {
			fmt.Fprintln(c.out)
		}
	}
}
