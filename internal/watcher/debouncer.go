package watcher

import (
	"log/slog"
	"sync"
	"time"
)

// Debouncer coalesces rapid file events per path (§4.6). CREATE and MODIFY
// events for a path reset an independent per-path timer; only once that
// path has gone quiet for the debounce window does a single coalesced event
// reach Output(). DELETE bypasses this entirely: it cancels any timer
// pending for that path and is emitted immediately, since a deleted file
// has nothing left to stabilize.
//
// A path is never stable for less than the debounce window, so a separate
// "has the writer finished" check is unnecessary: by construction no event
// is emitted until the window has elapsed with no further writes.
type Debouncer struct {
	window  time.Duration
	mu      sync.Mutex
	pending map[string]*pendingEvent
	output  chan FileEvent
	stopped bool
}

type pendingEvent struct {
	event FileEvent
	timer *time.Timer
}

// NewDebouncer creates a new debouncer with the given per-path window.
func NewDebouncer(window time.Duration) *Debouncer {
	return &Debouncer{
		window:  window,
		pending: make(map[string]*pendingEvent),
		output:  make(chan FileEvent, 100),
	}
}

// Add adds an event to be debounced. CREATE/MODIFY/RENAME restart that
// path's timer; DELETE cancels any pending timer and emits immediately.
func (d *Debouncer) Add(event FileEvent) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if existing, ok := d.pending[event.Path]; ok {
		existing.timer.Stop()
		delete(d.pending, event.Path)
	}

	if event.Operation == OpDelete {
		d.send(event)
		return
	}

	path := event.Path
	pe := &pendingEvent{event: event}
	pe.timer = time.AfterFunc(d.window, func() { d.flush(path) })
	d.pending[path] = pe
}

// flush emits the coalesced event for path, if it is still pending. The
// event is sent while still holding d.mu so it can never race a concurrent
// Stop() closing the output channel; the send is non-blocking (buffered
// channel with a default case), so this never stalls other callers.
func (d *Debouncer) flush(path string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	pe, ok := d.pending[path]
	if !ok || d.stopped {
		return
	}
	delete(d.pending, path)
	d.send(pe.event)
}

// send delivers an event to the output channel without blocking. Always
// called with d.mu held.
func (d *Debouncer) send(event FileEvent) {
	select {
	case d.output <- event:
	default:
		slog.Warn("debouncer output full, dropping event",
			slog.String("path", event.Path),
			slog.String("op", event.Operation.String()),
		)
	}
}

// Output returns the channel of debounced events, one per coalesced change.
func (d *Debouncer) Output() <-chan FileEvent {
	return d.output
}

// Stop cancels all pending per-path timers and closes the output channel.
// Safe to call multiple times.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}
	d.stopped = true

	for _, pe := range d.pending {
		pe.timer.Stop()
	}
	d.pending = make(map[string]*pendingEvent)
	close(d.output)
}
