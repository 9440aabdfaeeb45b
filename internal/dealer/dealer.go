// Package dealer starts hands: it rotates the button over the seats that
// can play, posts the blinds, shuffles a fresh deck and deals hole cards.
package dealer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/gateway"
	"github.com/Mappledude/jampoker/internal/randutil"
	"github.com/Mappledude/jampoker/internal/store"
)

// DefaultAutoDealDelay is how long a settled hand stays on the table
// before AutoDeal starts the next one
const DefaultAutoDealDelay = 10 * time.Second

// ReasonNotEnoughPlayers is returned when fewer than two seats can play
const ReasonNotEnoughPlayers = "not-enough-players"

// Status of a start request
type Status string

const (
	StatusOK       Status = "ok"
	StatusRejected Status = "rejected"
	// StatusWaiting means AutoDeal is still counting down
	StatusWaiting Status = "waiting"
)

// Outcome describes what a start request did
type Outcome struct {
	Status  Status          `json:"status"`
	Reason  string          `json:"reason,omitempty"`
	Started bool            `json:"started"`
	Hand    *game.HandState `json:"hand,omitempty"`
	// Remaining is the countdown left when Status is StatusWaiting
	Remaining time.Duration `json:"remainingNs,omitempty"`
}

// Manager starts hands at tables in a store
type Manager struct {
	store  store.Store
	logger *log.Logger
	clock  quartz.Clock
	pub    gateway.Publisher
	seed   *int64
	delay  time.Duration
}

// Option configures a Manager
type Option func(*Manager)

// WithClock sets the clock used for timestamps and the auto-deal countdown
func WithClock(c quartz.Clock) Option {
	return func(m *Manager) { m.clock = c }
}

// WithPublisher sets where started hands are announced
func WithPublisher(p gateway.Publisher) Option {
	return func(m *Manager) { m.pub = p }
}

// WithSeed fixes the shuffle seed; hand n is shuffled from a stream derived
// from seed and n
func WithSeed(seed int64) Option {
	return func(m *Manager) { m.seed = &seed }
}

// WithAutoDealDelay overrides DefaultAutoDealDelay
func WithAutoDealDelay(d time.Duration) Option {
	return func(m *Manager) { m.delay = d }
}

// New creates a manager over st
func New(st store.Store, logger *log.Logger, opts ...Option) *Manager {
	m := &Manager{
		store:  st,
		logger: logger.WithPrefix("dealer"),
		clock:  quartz.NewReal(),
		pub:    gateway.PublisherFunc(func(gateway.Event) {}),
		delay:  DefaultAutoDealDelay,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// StartHand deals the next hand at tableID. While a hand is in progress it
// returns StatusOK without changing anything.
func (m *Manager) StartHand(ctx context.Context, tableID string) (Outcome, error) {
	var out Outcome
	var events []gateway.Event
	err := m.store.RunTx(ctx, tableID, func(ctx context.Context, tx store.Tx) error {
		var err error
		out, events, err = m.start(ctx, tx, tableID)
		return err
	})
	if err != nil {
		if gateway.CodeOf(err) == "" && errors.Is(err, store.ErrNotFound) {
			return Outcome{}, &gateway.PreconditionError{Code: gateway.CodeTableMissing, TableID: tableID, Err: err}
		}
		return Outcome{}, fmt.Errorf("start hand at %s: %w", tableID, err)
	}

	for _, e := range events {
		m.pub.Publish(e)
	}
	if out.Started {
		m.logger.Info("Started hand", "table", tableID, "hand", out.Hand.HandNo, "dealer", out.Hand.DealerSeat,
			"sb", out.Hand.SBSeat, "bb", out.Hand.BBSeat, "players", out.Hand.Players, "street", out.Hand.Street)
	}
	return out, nil
}

func (m *Manager) start(ctx context.Context, tx store.Tx, tableID string) (Outcome, []gateway.Event, error) {
	table, err := tx.Table(ctx)
	if err != nil {
		return Outcome{}, nil, err
	}
	prev, err := tx.Hand(ctx)
	switch {
	case errors.Is(err, store.ErrNotFound):
		prev = nil
	case err != nil:
		return Outcome{}, nil, err
	case !prev.IsComplete():
		return Outcome{Status: StatusOK, Hand: prev.Redacted()}, nil, nil
	}

	seats, err := tx.Seats(ctx)
	if err != nil {
		return Outcome{}, nil, err
	}
	eligible := seats.Eligible()
	if len(eligible) < 2 {
		return Outcome{Status: StatusRejected, Reason: ReasonNotEnoughPlayers}, nil, nil
	}

	now := m.clock.Now().UTC()
	handNo := table.HandNo + 1
	version := 1
	if prev != nil {
		version = prev.Version + 1
	}

	dealer, sb, bb := Positions(eligible, table.DealerSeat)
	hs := &game.HandState{
		TableID:           tableID,
		HandNo:            handNo,
		Variant:           table.Variant,
		Street:            game.Preflop,
		DealerSeat:        dealer,
		SBSeat:            sb,
		BBSeat:            bb,
		SmallBlind:        table.SmallBlind,
		BigBlind:          table.BigBlind,
		Players:           eligible,
		Commits:           map[int]int{},
		HandCommits:       map[int]int{},
		Folded:            map[int]bool{},
		Acted:             map[int]bool{},
		LastAggressorSeat: bb,
		MinRaise:          table.BigBlind,
		Version:           version,
		StartedAt:         now,
		UpdatedAt:         now,
	}
	if hs.Variant == "" {
		hs.Variant = game.Holdem
	}
	hs.Post(seats, sb, table.SmallBlind)
	hs.Post(seats, bb, table.BigBlind)
	hs.ToActSeat = game.NextActive(eligible, seats, bb, nil)

	d := deck.New(randutil.New(randutil.Derive(randutil.Seed(m.seed, now), handNo)))
	if hs.Holes, err = dealHoles(d, eligible, sb, hs.Variant.HoleCards()); err != nil {
		return Outcome{}, nil, err
	}

	result, err := game.Begin(hs, seats, d)
	if err != nil {
		return Outcome{}, nil, fmt.Errorf("begin hand %d: %w", handNo, err)
	}
	hs, seats = result.State, result.Seats

	var released []game.Seat
	if hs.IsComplete() {
		if hs, seats, released, err = gateway.SettleHand(ctx, tx, hs, seats, d); err != nil {
			return Outcome{}, nil, err
		}
	}

	table.DealerSeat = dealer
	table.HandNo = handNo
	if err := tx.SaveTable(ctx, table); err != nil {
		return Outcome{}, nil, err
	}
	if err := tx.SaveHand(ctx, hs); err != nil {
		return Outcome{}, nil, err
	}
	if err := tx.SaveSeats(ctx, seats); err != nil {
		return Outcome{}, nil, err
	}
	if err := tx.SaveDeck(ctx, d); err != nil {
		return Outcome{}, nil, err
	}

	events := []gateway.Event{{Kind: gateway.EventHandStarted, TableID: tableID, Hand: hs.Redacted(), At: now}}
	for _, r := range released {
		seat := seats[r.Index]
		events = append(events, gateway.Event{Kind: gateway.EventSeatChanged, TableID: tableID, Seat: &seat, At: now})
	}
	if hs.Settled {
		events = append(events, gateway.Event{Kind: gateway.EventHandSettled, TableID: tableID, Hand: hs.Redacted(), At: now})
	}
	return Outcome{Status: StatusOK, Started: true, Hand: hs.Redacted()}, events, nil
}

// Positions picks the button and blinds among eligible seats (sorted). The
// button moves to the first eligible seat after prevDealer, wrapping to the
// lowest seat. Heads-up the button posts the small blind.
func Positions(eligible []int, prevDealer int) (dealer, sb, bb int) {
	dealer = next(eligible, prevDealer)
	if len(eligible) == 2 {
		return dealer, dealer, next(eligible, dealer)
	}
	sb = next(eligible, dealer)
	return dealer, sb, next(eligible, sb)
}

func next(seats []int, from int) int {
	for _, s := range seats {
		if s > from {
			return s
		}
	}
	return seats[0]
}

// dealHoles gives each player n cards, one at a time, starting with the
// small blind and going round the table
func dealHoles(d *deck.Deck, players []int, sb, n int) (map[int][]deck.Card, error) {
	order := make([]int, 0, len(players))
	start := 0
	for i, p := range players {
		if p == sb {
			start = i
		}
	}
	for k := range players {
		order = append(order, players[(start+k)%len(players)])
	}

	holes := make(map[int][]deck.Card, len(players))
	for range n {
		for _, p := range order {
			card, err := d.Draw(1)
			if err != nil {
				return nil, fmt.Errorf("deal hole cards: %w", err)
			}
			holes[p] = append(holes[p], card[0])
		}
	}
	return holes, nil
}
