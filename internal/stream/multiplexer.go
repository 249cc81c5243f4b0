package stream

import (
	"bufio"
	"context"
	"net/http"
)

// bufferedEvents is the bounded channel capacity between the orchestrator
// and the HTTP writer goroutine. Once full, the orchestrator's Send
// blocks -- pausing upstream consumption from the model client -- rather
// than dropping events, per spec.md §4.11's back-pressure contract.
const bufferedEvents = 32

// Multiplexer is a single turn's event pipe: the orchestrator produces
// Events via Send/Close, and a single consumer (WriteTo, or Events for a
// non-HTTP caller) drains them in order.
type Multiplexer struct {
	ch chan Event
}

// New builds a Multiplexer ready to accept events for one streamed turn.
func New() *Multiplexer {
	return &Multiplexer{ch: make(chan Event, bufferedEvents)}
}

// Send enqueues ev, blocking if the buffer is saturated. It returns
// ctx.Err() if ctx is cancelled before the event could be enqueued,
// so a slow/disconnected client back-pressures the orchestrator instead
// of silently losing events.
func (m *Multiplexer) Send(ctx context.Context, ev Event) error {
	select {
	case m.ch <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close signals that no further events will be sent. Must be called
// exactly once, after the terminal done/error event has been sent.
func (m *Multiplexer) Close() { close(m.ch) }

// Events exposes the receive side directly, for callers that frame
// events themselves (tests, non-HTTP transports).
func (m *Multiplexer) Events() <-chan Event { return m.ch }

// WriteTo drains the multiplexer to an http.ResponseWriter as an SSE
// stream, flushing after every event so a line-buffered client observes
// it immediately. It returns when the channel is closed or ctx is done,
// whichever comes first.
func (m *Multiplexer) WriteTo(ctx context.Context, w http.ResponseWriter) error {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, _ := w.(http.Flusher)
	bw := bufio.NewWriter(w)

	for {
		select {
		case ev, ok := <-m.ch:
			if !ok {
				return bw.Flush()
			}
			frame, err := ev.Marshal()
			if err != nil {
				continue
			}
			if _, err := bw.Write(frame); err != nil {
				return err
			}
			if err := bw.Flush(); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}
