package handler

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
)

type sseEvent struct {
	name string
	data any
}

// streamEvents opens a text/event-stream response. produce runs on the
// connection goroutine and pushes events to emit until it returns or the
// stream context ends. A failed write means the client went away and cancels
// the stream context.
func streamEvents(c *fiber.Ctx, base context.Context, heartbeat time.Duration, produce func(ctx context.Context, emit func(sseEvent) bool)) {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		ctx, cancel := context.WithCancel(base)
		defer cancel()
		runStream(ctx, cancel, w, heartbeat, produce)
	}))
}

func runStream(ctx context.Context, cancel context.CancelFunc, w *bufio.Writer, heartbeat time.Duration, produce func(ctx context.Context, emit func(sseEvent) bool)) {
	events := make(chan sseEvent)
	emit := func(ev sseEvent) bool {
		select {
		case events <- ev:
			return true
		case <-ctx.Done():
			return false
		}
	}

	produced := make(chan struct{})
	go func() {
		defer close(produced)
		produce(ctx, emit)
	}()
	defer func() {
		cancel()
		<-produced
	}()

	if heartbeat <= 0 {
		heartbeat = 15 * time.Second
	}
	beat := time.NewTicker(heartbeat)
	defer beat.Stop()

	// Opens the stream on the client side before the first event is ready.
	if writeComment(w, "open") != nil {
		return
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-produced:
			// emit is synchronous, so everything produced has been written.
			return
		case ev := <-events:
			if writeEvent(w, ev) != nil {
				return
			}
		case <-beat.C:
			if writeComment(w, "ping") != nil {
				return
			}
		}
	}
}

func writeEvent(w *bufio.Writer, ev sseEvent) error {
	payload, err := json.Marshal(ev.data)
	if err != nil {
		return fmt.Errorf("sse: encode %s: %w", ev.name, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.name, payload); err != nil {
		return err
	}
	return w.Flush()
}

func writeComment(w *bufio.Writer, text string) error {
	if _, err := fmt.Fprintf(w, ": %s\n\n", text); err != nil {
		return err
	}
	return w.Flush()
}
