// Package sqlite is a single-file store for development and small
// deployments. Every transaction takes the write lock up front, so writers
// on the same database queue behind each other.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/store"
)

//go:embed schema.sql
var schema string

// Store implements store.Store on a SQLite database file
type Store struct {
	db    *sql.DB
	retry store.RetryPolicy
}

// Open opens (and creates) the database at path and applies the schema
func Open(ctx context.Context, path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db, retry: store.DefaultRetry}
	if err := s.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// WithRetry replaces the conflict retry policy
func (s *Store) WithRetry(p store.RetryPolicy) *Store {
	s.retry = p
	return s
}

// Migrate creates the schema if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	var sqlErr sqlite3.Error
	if errors.As(err, &sqlErr) {
		switch {
		case sqlErr.Code == sqlite3.ErrBusy, sqlErr.Code == sqlite3.ErrLocked:
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		case sqlErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey,
			sqlErr.ExtendedCode == sqlite3.ErrConstraintUnique:
			return fmt.Errorf("%w: %w", store.ErrExists, err)
		case sqlErr.ExtendedCode == sqlite3.ErrConstraintForeignKey:
			return fmt.Errorf("%w: %w", store.ErrNotFound, err)
		}
	}
	return err
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}

func (s *Store) CreateTable(ctx context.Context, t store.Table) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO poker_tables (id, variant, small_blind, big_blind, max_seats, operator, dealer_seat, hand_no, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, string(t.Variant), t.SmallBlind, t.BigBlind, t.MaxSeats, t.Operator, t.DealerSeat, t.HandNo, nanos(t.CreatedAt))
	if err != nil {
		return fmt.Errorf("create table %s: %w", t.ID, classify(err))
	}
	return nil
}

const tableColumns = `id, variant, small_blind, big_blind, max_seats, operator, dealer_seat, hand_no, created_at`

// scanner is satisfied by *sql.Row and *sql.Rows
type scanner interface {
	Scan(dest ...any) error
}

func scanTable(row scanner) (store.Table, error) {
	var t store.Table
	var variant string
	var created int64
	err := row.Scan(&t.ID, &variant, &t.SmallBlind, &t.BigBlind, &t.MaxSeats, &t.Operator, &t.DealerSeat, &t.HandNo, &created)
	t.Variant = game.Variant(variant)
	t.CreatedAt = fromNanos(created)
	return t, err
}

func (s *Store) Tables(ctx context.Context) ([]store.Table, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+tableColumns+` FROM poker_tables ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Table
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) RunTx(ctx context.Context, tableID string, fn store.TxFunc) error {
	return s.retry.Run(ctx, func() error {
		return s.runOnce(ctx, tableID, fn)
	})
}

func (s *Store) runOnce(ctx context.Context, tableID string, fn store.TxFunc) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classify(err)
	}
	defer sqlTx.Rollback() //nolint:errcheck

	t := &tx{tx: sqlTx, tableID: tableID}
	t.table, err = scanTable(sqlTx.QueryRowContext(ctx, `SELECT `+tableColumns+` FROM poker_tables WHERE id = ?`, tableID))
	if err != nil {
		return fmt.Errorf("table %s: %w", tableID, classify(err))
	}

	if err := fn(ctx, t); err != nil {
		return classify(err)
	}
	return classify(sqlTx.Commit())
}

func (s *Store) Enqueue(ctx context.Context, a store.Action) error {
	if a.Status == "" {
		a.Status = store.StatusPending
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO actions (id, table_id, hand_no, seat, actor, type, amount, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.TableID, a.HandNo, a.Seat, a.Actor, a.Type.String(), a.Amount, string(a.Status), nanos(a.CreatedAt))
	if err != nil {
		err = classify(err)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("table %s: %w", a.TableID, store.ErrNotFound)
		}
		return fmt.Errorf("enqueue action %s: %w", a.ID, err)
	}
	return nil
}

const actionColumns = `id, table_id, hand_no, seat, actor, type, amount, status, reason, message, version, created_at, resolved_at`

func scanAction(row scanner) (store.Action, error) {
	var a store.Action
	var typ, status, reason string
	var created, resolved int64
	err := row.Scan(&a.ID, &a.TableID, &a.HandNo, &a.Seat, &a.Actor, &typ, &a.Amount,
		&status, &reason, &a.Message, &a.Version, &created, &resolved)
	if err != nil {
		return a, err
	}
	if err := a.Type.UnmarshalText([]byte(typ)); err != nil {
		return a, fmt.Errorf("action %s: %w", a.ID, err)
	}
	a.Status = store.Status(status)
	a.Reason = game.Reason(reason)
	a.CreatedAt = fromNanos(created)
	a.ResolvedAt = fromNanos(resolved)
	return a, nil
}

func (s *Store) Action(ctx context.Context, tableID, id string) (store.Action, error) {
	a, err := scanAction(s.db.QueryRowContext(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE table_id = ? AND id = ?`, tableID, id))
	if err != nil {
		return a, fmt.Errorf("action %s: %w", id, classify(err))
	}
	return a, nil
}

func (s *Store) Pending(ctx context.Context, tableID string, limit int) ([]store.Action, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+actionColumns+` FROM actions
		 WHERE table_id = ? AND status = 'pending'
		 ORDER BY created_at, rowid
		 LIMIT ?
	`, tableID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Action
	for rows.Next() {
		a, err := scanAction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Hand(ctx context.Context, tableID string) (*game.HandState, error) {
	return loadHand(ctx, s.db, tableID)
}

func (s *Store) Seats(ctx context.Context, tableID string) (game.Seats, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM poker_tables WHERE id = ?)`, tableID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("table %s: %w", tableID, store.ErrNotFound)
	}
	return loadSeats(ctx, s.db, tableID)
}

func (s *Store) Balance(ctx context.Context, owner string) (int, error) {
	var cents int
	err := s.db.QueryRowContext(ctx, `SELECT cents FROM balances WHERE owner = ?`, owner).Scan(&cents)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return cents, err
}

// querier is satisfied by *sql.DB and *sql.Tx
type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func loadHand(ctx context.Context, q querier, tableID string) (*game.HandState, error) {
	var state string
	if err := q.QueryRowContext(ctx, `SELECT state FROM hands WHERE table_id = ?`, tableID).Scan(&state); err != nil {
		return nil, fmt.Errorf("table %s hand: %w", tableID, classify(err))
	}
	var hs game.HandState
	if err := json.Unmarshal([]byte(state), &hs); err != nil {
		return nil, fmt.Errorf("decode hand of table %s: %w", tableID, err)
	}
	return &hs, nil
}

func loadSeats(ctx context.Context, q querier, tableID string) (game.Seats, error) {
	rows, err := q.QueryContext(ctx, `SELECT seat, occupant, stack, leaving FROM seats WHERE table_id = ?`, tableID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := game.Seats{}
	for rows.Next() {
		var seat game.Seat
		if err := rows.Scan(&seat.Index, &seat.Occupant, &seat.Stack, &seat.Leaving); err != nil {
			return nil, err
		}
		seats[seat.Index] = seat
	}
	return seats, rows.Err()
}

type tx struct {
	tx      *sql.Tx
	tableID string
	table   store.Table
}

func (t *tx) Table(context.Context) (store.Table, error) {
	return t.table, nil
}

func (t *tx) SaveTable(ctx context.Context, tbl store.Table) error {
	if tbl.ID != t.tableID {
		return fmt.Errorf("save table %s in transaction for %s", tbl.ID, t.tableID)
	}
	_, err := t.tx.ExecContext(ctx, `
		UPDATE poker_tables
		   SET variant = ?, small_blind = ?, big_blind = ?, max_seats = ?,
		       operator = ?, dealer_seat = ?, hand_no = ?
		 WHERE id = ?
	`, string(tbl.Variant), tbl.SmallBlind, tbl.BigBlind, tbl.MaxSeats, tbl.Operator, tbl.DealerSeat, tbl.HandNo, tbl.ID)
	if err != nil {
		return err
	}
	t.table = tbl
	return nil
}

func (t *tx) Hand(ctx context.Context) (*game.HandState, error) {
	return loadHand(ctx, t.tx, t.tableID)
}

func (t *tx) SaveHand(ctx context.Context, hs *game.HandState) error {
	state, err := json.Marshal(hs)
	if err != nil {
		return fmt.Errorf("encode hand: %w", err)
	}

	var res sql.Result
	now := time.Now().UnixNano()
	if hs.Version == 1 {
		res, err = t.tx.ExecContext(ctx, `
			INSERT INTO hands (table_id, hand_no, version, street, state, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (table_id) DO NOTHING
		`, t.tableID, hs.HandNo, hs.Version, hs.Street.String(), string(state), now)
	} else {
		res, err = t.tx.ExecContext(ctx, `
			UPDATE hands
			   SET hand_no = ?, version = ?, street = ?, state = ?, updated_at = ?
			 WHERE table_id = ? AND version = ?
		`, hs.HandNo, hs.Version, hs.Street.String(), string(state), now, t.tableID, hs.Version-1)
	}
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n != 1 {
		return fmt.Errorf("hand version %d: %w", hs.Version, store.ErrConflict)
	}
	return nil
}

func (t *tx) Deck(ctx context.Context) (*deck.Deck, error) {
	var cards string
	if err := t.tx.QueryRowContext(ctx, `SELECT cards FROM decks WHERE table_id = ?`, t.tableID).Scan(&cards); err != nil {
		return nil, fmt.Errorf("table %s deck: %w", t.tableID, classify(err))
	}
	d := &deck.Deck{}
	if err := json.Unmarshal([]byte(cards), d); err != nil {
		return nil, fmt.Errorf("decode deck of table %s: %w", t.tableID, err)
	}
	return d, nil
}

func (t *tx) SaveDeck(ctx context.Context, d *deck.Deck) error {
	cards, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode deck: %w", err)
	}
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO decks (table_id, cards) VALUES (?, ?)
		ON CONFLICT (table_id) DO UPDATE SET cards = excluded.cards
	`, t.tableID, string(cards))
	return err
}

func (t *tx) Seats(ctx context.Context) (game.Seats, error) {
	return loadSeats(ctx, t.tx, t.tableID)
}

func (t *tx) SaveSeats(ctx context.Context, seats game.Seats) error {
	for idx, seat := range seats {
		if !t.table.ValidSeat(idx) {
			return fmt.Errorf("seat %d outside table %s", idx, t.tableID)
		}
		_, err := t.tx.ExecContext(ctx, `
			INSERT INTO seats (table_id, seat, occupant, stack, leaving) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (table_id, seat) DO UPDATE
			   SET occupant = excluded.occupant, stack = excluded.stack, leaving = excluded.leaving
		`, t.tableID, idx, seat.Occupant, seat.Stack, seat.Leaving)
		if err != nil {
			return err
		}
	}
	return nil
}

func (t *tx) Action(ctx context.Context, id string) (store.Action, error) {
	a, err := scanAction(t.tx.QueryRowContext(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE table_id = ? AND id = ?`, t.tableID, id))
	if err != nil {
		return a, fmt.Errorf("action %s: %w", id, classify(err))
	}
	return a, nil
}

func (t *tx) SaveAction(ctx context.Context, a store.Action) error {
	if a.TableID != t.tableID {
		return fmt.Errorf("save action %s of table %s in transaction for %s", a.ID, a.TableID, t.tableID)
	}
	res, err := t.tx.ExecContext(ctx, `
		UPDATE actions
		   SET status = ?, reason = ?, message = ?, version = ?, resolved_at = ?
		 WHERE table_id = ? AND id = ?
	`, string(a.Status), string(a.Reason), a.Message, a.Version, nanos(a.ResolvedAt), t.tableID, a.ID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("action %s: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

func (t *tx) Credit(ctx context.Context, owner string, amount int) error {
	if owner == "" {
		return fmt.Errorf("credit %d to empty owner", amount)
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO balances (owner, cents) VALUES (?, ?)
		ON CONFLICT (owner) DO UPDATE SET cents = cents + excluded.cents
	`, owner, amount)
	return err
}

var _ store.Store = (*Store)(nil)
