// Package bus implements the Soul Engine's process-local event bus: a
// synchronous, in-order fan-out with per-handler error isolation, a
// bounded in-memory log, and a best-effort cross-process journal.
//
// It is grounded on the teacher's core.ModuleManager.Emit dispatch loop
// (priority-ordered handler execution with per-handler error capture) and
// on the pack's standalone events.Bus
// (other_examples/800cca53_nugget-thane-ai-agent__internal-events-bus.go),
// whose nil-safe, non-blocking-subscriber idiom informs the journal's
// best-effort write discipline here.
package bus

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is an immutable record emitted on the bus. ID is strictly
// increasing within a process.
type Event struct {
	ID      uint64         `json:"id"`
	Type    string         `json:"type"`
	TS      int64          `json:"ts"`
	Source  string         `json:"source"`
	Payload map[string]any `json:"payload,omitempty"`
}

// Handler processes one event. A synchronous panic or returned error is
// captured by the bus and never stops dispatch to subsequent handlers.
// Handlers that need to do real work should schedule it as a background
// task and return quickly — nothing on the dispatch path may block.
type Handler func(e Event) error

const (
	maxRecent = 200
	maxErrors = 50
)

// HandlerError records a single handler failure for observability.
type HandlerError struct {
	EventType string
	EventID   uint64
	Err       error
	At        time.Time
}

// Bus is the event fan-out. Zero value is not usable; construct with New.
type Bus struct {
	mu       sync.Mutex
	nextID   uint64
	handlers map[string][]Handler
	recent   []Event
	errs     []HandlerError

	journal *journal
	debug   bool

	moodPath string
}

// Option configures a Bus at construction.
type Option func(*Bus)

// WithDebug causes every emitted event to also be printed to stderr,
// matching SOUL_BUS_DEBUG.
func WithDebug(on bool) Option {
	return func(b *Bus) { b.debug = on }
}

// WithJournalPath enables the file-backed rolling journal at path,
// capped at 100 lines, skipping the small set of high-frequency event types
// that would otherwise dominate it.
func WithJournalPath(path string) Option {
	return func(b *Bus) { b.journal = newJournal(path) }
}

// WithMoodSnapshotPath enables the mood.changed side-channel file.
func WithMoodSnapshotPath(path string) Option {
	return func(b *Bus) { b.moodPath = path }
}

// New creates a ready-to-use Bus.
func New(opts ...Option) *Bus {
	b := &Bus{
		handlers: make(map[string][]Handler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// On registers handler for type, to be invoked in registration order on
// every future Emit of that type.
func (b *Bus) On(eventType string, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], h)
}

// Off removes a previously registered handler for type. Go function values
// are not comparable, so identity is taken from the underlying code
// pointer via reflect — this matches the handler passed to On as long as
// it is the same function value (a bound method value or a package-level
// func), which is how every caller in this codebase registers handlers.
func (b *Bus) Off(eventType string, h Handler) {
	target := reflect.ValueOf(h).Pointer()
	b.mu.Lock()
	defer b.mu.Unlock()
	hs := b.handlers[eventType]
	kept := hs[:0]
	for _, existing := range hs {
		if reflect.ValueOf(existing).Pointer() != target {
			kept = append(kept, existing)
		}
	}
	b.handlers[eventType] = kept
}

// Emit dispatches an event synchronously to all registered handlers, in
// registration order, isolating faults per handler. It never fails due to
// handler errors. The returned Event carries the assigned ID and
// timestamp.
func (b *Bus) Emit(eventType, source string, payload map[string]any) Event {
	b.mu.Lock()
	b.nextID++
	ev := Event{
		ID:      b.nextID,
		Type:    eventType,
		TS:      time.Now().UnixMilli(),
		Source:  source,
		Payload: payload,
	}
	handlers := append([]Handler(nil), b.handlers[eventType]...)
	b.recent = append(b.recent, ev)
	if len(b.recent) > maxRecent {
		b.recent = b.recent[len(b.recent)-maxRecent:]
	}
	debug := b.debug
	moodPath := b.moodPath
	journal := b.journal
	b.mu.Unlock()

	if debug {
		debugPrint(ev)
	}

	for _, h := range handlers {
		b.invoke(ev, h)
	}

	if journal != nil {
		journal.append(ev)
	}

	if eventType == "mood.changed" && moodPath != "" {
		writeMoodSnapshot(moodPath, ev)
	}

	return ev
}

func (b *Bus) invoke(ev Event, h Handler) {
	defer func() {
		if r := recover(); r != nil {
			b.recordError(ev, recoverToError(r))
		}
	}()
	if err := h(ev); err != nil {
		b.recordError(ev, err)
	}
}

func (b *Bus) recordError(ev Event, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.errs = append(b.errs, HandlerError{EventType: ev.Type, EventID: ev.ID, Err: err, At: time.Now()})
	if len(b.errs) > maxErrors {
		b.errs = b.errs[len(b.errs)-maxErrors:]
	}
}

// Recent returns up to n of the most recently emitted events, newest
// last.
func (b *Bus) Recent(n int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()
	if n <= 0 || n > len(b.recent) {
		n = len(b.recent)
	}
	out := make([]Event, n)
	copy(out, b.recent[len(b.recent)-n:])
	return out
}

// Errors returns the bounded list of handler errors observed so far.
func (b *Bus) Errors() []HandlerError {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]HandlerError, len(b.errs))
	copy(out, b.errs)
	return out
}

// Count returns the number of events emitted so far in this process.
func (b *Bus) Count() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.nextID
}

// NewID is a convenience for callers that want a UUID correlated with an
// event, e.g. a debug trace ID.
func NewID() string { return uuid.NewString() }
