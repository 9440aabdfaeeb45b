package gateway

import (
	"sync"
	"time"

	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/store"
)

// EventKind names what changed
type EventKind string

const (
	EventActionResolved EventKind = "action.resolved"
	EventHandStarted    EventKind = "hand.started"
	EventHandUpdated    EventKind = "hand.updated"
	EventHandSettled    EventKind = "hand.settled"
	EventSeatChanged    EventKind = "seat.changed"
)

// Event is published after a transaction commits. Hand is always redacted.
type Event struct {
	Kind    EventKind       `json:"kind"`
	TableID string          `json:"tableId"`
	Action  *store.Action   `json:"action,omitempty"`
	Hand    *game.HandState `json:"hand,omitempty"`
	Seat    *game.Seat      `json:"seat,omitempty"`
	At      time.Time       `json:"at"`
}

// Publisher receives committed changes
type Publisher interface {
	Publish(Event)
}

// PublisherFunc adapts a function to Publisher
type PublisherFunc func(Event)

func (f PublisherFunc) Publish(e Event) { f(e) }

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// Fanout delivers every event to each publisher in order
type Fanout []Publisher

func (f Fanout) Publish(e Event) {
	for _, p := range f {
		p.Publish(e)
	}
}

// Recorder keeps published events in memory; it is used in tests
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

// Events returns the events recorded so far
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Kinds returns the kinds of the recorded events
func (r *Recorder) Kinds() []EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventKind, len(r.events))
	for i, e := range r.events {
		out[i] = e.Kind
	}
	return out
}

// batch accumulates events inside one transaction attempt
type batch struct {
	tableID string
	at      time.Time
	events  []Event
}

func (b *batch) action(a store.Action) {
	b.events = append(b.events, Event{Kind: EventActionResolved, TableID: b.tableID, Action: &a, At: b.at})
}

func (b *batch) hand(kind EventKind, hs *game.HandState) {
	b.events = append(b.events, Event{Kind: kind, TableID: b.tableID, Hand: hs.Redacted(), At: b.at})
}

func (b *batch) seat(s game.Seat) {
	b.events = append(b.events, Event{Kind: EventSeatChanged, TableID: b.tableID, Seat: &s, At: b.at})
}
