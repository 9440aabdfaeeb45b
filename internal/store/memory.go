package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
)

// Memory is an in-process Store. Each table carries a revision; a
// transaction works on copies and commits only if the revision it read is
// still current.
type Memory struct {
	mu       sync.Mutex
	tables   map[string]*tableData
	balances map[string]int
	retry    RetryPolicy
}

type tableData struct {
	rev     int
	table   Table
	hand    *game.HandState
	deck    *deck.Deck
	seats   game.Seats
	actions map[string]Action
	order   []string
}

// NewMemory creates an empty in-memory store
func NewMemory() *Memory {
	return &Memory{
		tables:   make(map[string]*tableData),
		balances: make(map[string]int),
		retry:    DefaultRetry,
	}
}

// WithRetry replaces the conflict retry policy
func (m *Memory) WithRetry(p RetryPolicy) *Memory {
	m.retry = p
	return m
}

func (m *Memory) CreateTable(_ context.Context, t Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tables[t.ID]; ok {
		return fmt.Errorf("table %s: %w", t.ID, ErrExists)
	}
	m.tables[t.ID] = &tableData{
		table:   t,
		seats:   game.Seats{},
		actions: make(map[string]Action),
	}
	return nil
}

func (m *Memory) Tables(_ context.Context) ([]Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]Table, 0, len(m.tables))
	for _, td := range m.tables {
		out = append(out, td.table)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *Memory) table(id string) (*tableData, error) {
	td, ok := m.tables[id]
	if !ok {
		return nil, fmt.Errorf("table %s: %w", id, ErrNotFound)
	}
	return td, nil
}

func (m *Memory) RunTx(ctx context.Context, tableID string, fn TxFunc) error {
	return m.retry.Run(ctx, func() error {
		tx, err := m.begin(tableID)
		if err != nil {
			return err
		}
		if err := fn(ctx, tx); err != nil {
			return err
		}
		return m.commit(tx)
	})
}

func (m *Memory) begin(tableID string) (*memTx, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.table(tableID)
	if err != nil {
		return nil, err
	}
	return &memTx{
		store:   m,
		tableID: tableID,
		rev:     td.rev,
		table:   td.table,
		hand:    td.hand.Clone(),
		deck:    td.deck.Clone(),
		seats:   td.seats.Clone(),
		actions: make(map[string]Action),
		credits: make(map[string]int),
	}, nil
}

func (m *Memory) commit(tx *memTx) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.table(tx.tableID)
	if err != nil {
		return err
	}
	if !tx.dirty {
		return nil
	}
	if td.rev != tx.rev {
		return fmt.Errorf("table %s revision %d, read %d: %w", tx.tableID, td.rev, tx.rev, ErrConflict)
	}

	td.rev++
	td.table = tx.table
	td.hand = tx.hand
	td.deck = tx.deck
	td.seats = tx.seats
	for id, a := range tx.actions {
		td.actions[id] = a
	}
	for owner, amount := range tx.credits {
		m.balances[owner] += amount
	}
	return nil
}

func (m *Memory) Enqueue(_ context.Context, a Action) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.table(a.TableID)
	if err != nil {
		return err
	}
	if _, ok := td.actions[a.ID]; ok {
		return fmt.Errorf("action %s: %w", a.ID, ErrExists)
	}
	if a.Status == "" {
		a.Status = StatusPending
	}
	td.actions[a.ID] = a
	td.order = append(td.order, a.ID)
	return nil
}

func (m *Memory) Action(_ context.Context, tableID, id string) (Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.table(tableID)
	if err != nil {
		return Action{}, err
	}
	a, ok := td.actions[id]
	if !ok {
		return Action{}, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (m *Memory) Pending(_ context.Context, tableID string, limit int) ([]Action, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.table(tableID)
	if err != nil {
		return nil, err
	}
	var out []Action
	for _, id := range td.order {
		if a := td.actions[id]; a.Status == StatusPending {
			out = append(out, a)
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (m *Memory) Hand(_ context.Context, tableID string) (*game.HandState, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.table(tableID)
	if err != nil {
		return nil, err
	}
	if td.hand == nil {
		return nil, fmt.Errorf("table %s hand: %w", tableID, ErrNotFound)
	}
	return td.hand.Clone(), nil
}

func (m *Memory) Seats(_ context.Context, tableID string) (game.Seats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	td, err := m.table(tableID)
	if err != nil {
		return nil, err
	}
	return td.seats.Clone(), nil
}

func (m *Memory) Balance(_ context.Context, owner string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[owner], nil
}

func (m *Memory) Close() error { return nil }

type memTx struct {
	store   *Memory
	tableID string
	rev     int
	dirty   bool

	table   Table
	hand    *game.HandState
	deck    *deck.Deck
	seats   game.Seats
	actions map[string]Action
	credits map[string]int
}

func (tx *memTx) Table(context.Context) (Table, error) {
	return tx.table, nil
}

func (tx *memTx) SaveTable(_ context.Context, t Table) error {
	if t.ID != tx.tableID {
		return fmt.Errorf("save table %s in transaction for %s", t.ID, tx.tableID)
	}
	tx.table = t
	tx.dirty = true
	return nil
}

func (tx *memTx) Hand(context.Context) (*game.HandState, error) {
	if tx.hand == nil {
		return nil, fmt.Errorf("table %s hand: %w", tx.tableID, ErrNotFound)
	}
	return tx.hand.Clone(), nil
}

func (tx *memTx) SaveHand(_ context.Context, hs *game.HandState) error {
	current := 0
	if tx.hand != nil {
		current = tx.hand.Version
	}
	if hs.Version != current+1 {
		return fmt.Errorf("hand version %d over %d: %w", hs.Version, current, ErrConflict)
	}
	tx.hand = hs.Clone()
	tx.dirty = true
	return nil
}

func (tx *memTx) Deck(context.Context) (*deck.Deck, error) {
	if tx.deck == nil {
		return nil, fmt.Errorf("table %s deck: %w", tx.tableID, ErrNotFound)
	}
	return tx.deck.Clone(), nil
}

func (tx *memTx) SaveDeck(_ context.Context, d *deck.Deck) error {
	tx.deck = d.Clone()
	tx.dirty = true
	return nil
}

func (tx *memTx) Seats(context.Context) (game.Seats, error) {
	return tx.seats.Clone(), nil
}

func (tx *memTx) SaveSeats(_ context.Context, seats game.Seats) error {
	for idx, seat := range seats {
		if !tx.table.ValidSeat(idx) {
			return fmt.Errorf("seat %d outside table %s", idx, tx.tableID)
		}
		seat.Index = idx
		tx.seats[idx] = seat
	}
	tx.dirty = true
	return nil
}

func (tx *memTx) Action(_ context.Context, id string) (Action, error) {
	if a, ok := tx.actions[id]; ok {
		return a, nil
	}

	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	td, err := tx.store.table(tx.tableID)
	if err != nil {
		return Action{}, err
	}
	a, ok := td.actions[id]
	if !ok {
		return Action{}, fmt.Errorf("action %s: %w", id, ErrNotFound)
	}
	return a, nil
}

func (tx *memTx) SaveAction(ctx context.Context, a Action) error {
	if a.TableID != tx.tableID {
		return fmt.Errorf("save action %s of table %s in transaction for %s", a.ID, a.TableID, tx.tableID)
	}
	if _, err := tx.Action(ctx, a.ID); err != nil {
		return err
	}
	tx.actions[a.ID] = a
	tx.dirty = true
	return nil
}

func (tx *memTx) Credit(_ context.Context, owner string, amount int) error {
	if owner == "" {
		return fmt.Errorf("credit %d to empty owner", amount)
	}
	tx.credits[owner] += amount
	tx.dirty = true
	return nil
}

var _ Store = (*Memory)(nil)
var _ Tx = (*memTx)(nil)

