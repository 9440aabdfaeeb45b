// Package postgres is the PostgreSQL store. Transactions run at SERIALIZABLE
// isolation and hand writes compare-and-swap on the version column.
package postgres

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/store"
)

//go:embed schema.sql
var schema embed.FS

// Store implements store.Store on a pgx connection pool
type Store struct {
	pool  *pgxpool.Pool
	retry store.RetryPolicy
}

// Open connects to dsn. Call Migrate before first use of a fresh database.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &Store{pool: pool, retry: store.DefaultRetry}, nil
}

// WithRetry replaces the conflict retry policy
func (s *Store) WithRetry(p store.RetryPolicy) *Store {
	s.retry = p
	return s
}

// Migrate creates the schema if it does not exist
func (s *Store) Migrate(ctx context.Context) error {
	sqlBytes, err := schema.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err := s.pool.Exec(ctx, string(sqlBytes)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// classify maps driver errors onto the store sentinels
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%w: %w", store.ErrNotFound, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return fmt.Errorf("%w: %w", store.ErrConflict, err)
		case "23505":
			return fmt.Errorf("%w: %w", store.ErrExists, err)
		}
	}
	return err
}

func (s *Store) CreateTable(ctx context.Context, t store.Table) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO poker_tables (id, variant, small_blind, big_blind, max_seats, operator, dealer_seat, hand_no, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, t.ID, string(t.Variant), t.SmallBlind, t.BigBlind, t.MaxSeats, t.Operator, t.DealerSeat, t.HandNo, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create table %s: %w", t.ID, classify(err))
	}
	return nil
}

const tableColumns = `id, variant, small_blind, big_blind, max_seats, operator, dealer_seat, hand_no, created_at`

func scanTable(row pgx.Row) (store.Table, error) {
	var t store.Table
	var variant string
	err := row.Scan(&t.ID, &variant, &t.SmallBlind, &t.BigBlind, &t.MaxSeats, &t.Operator, &t.DealerSeat, &t.HandNo, &t.CreatedAt)
	t.Variant = game.Variant(variant)
	return t, err
}

func (s *Store) Tables(ctx context.Context) ([]store.Table, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tableColumns+` FROM poker_tables ORDER BY id`)
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
	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return classify(err)
	}
	defer pgtx.Rollback(ctx) //nolint:errcheck

	tx := &tx{tx: pgtx, tableID: tableID}
	// Lock the table row so writers on one table queue instead of aborting
	tx.table, err = scanTable(pgtx.QueryRow(ctx,
		`SELECT `+tableColumns+` FROM poker_tables WHERE id = $1 FOR UPDATE`, tableID))
	if err != nil {
		return fmt.Errorf("table %s: %w", tableID, classify(err))
	}

	if err := fn(ctx, tx); err != nil {
		return classify(err)
	}
	return classify(pgtx.Commit(ctx))
}

func (s *Store) Enqueue(ctx context.Context, a store.Action) error {
	if a.Status == "" {
		a.Status = store.StatusPending
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO actions (id, table_id, hand_no, seat, actor, type, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, a.ID, a.TableID, a.HandNo, a.Seat, a.Actor, a.Type.String(), a.Amount, string(a.Status), a.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return fmt.Errorf("table %s: %w", a.TableID, store.ErrNotFound)
		}
		return fmt.Errorf("enqueue action %s: %w", a.ID, classify(err))
	}
	return nil
}

const actionColumns = `id, table_id, hand_no, seat, actor, type, amount, status, reason, message, version, created_at, resolved_at`

func scanAction(row pgx.Row) (store.Action, error) {
	var a store.Action
	var typ, status, reason string
	var resolved *time.Time
	err := row.Scan(&a.ID, &a.TableID, &a.HandNo, &a.Seat, &a.Actor, &typ, &a.Amount,
		&status, &reason, &a.Message, &a.Version, &a.CreatedAt, &resolved)
	if err != nil {
		return a, err
	}
	if err := a.Type.UnmarshalText([]byte(typ)); err != nil {
		return a, fmt.Errorf("action %s: %w", a.ID, err)
	}
	a.Status = store.Status(status)
	a.Reason = game.Reason(reason)
	if resolved != nil {
		a.ResolvedAt = *resolved
	}
	return a, nil
}

func (s *Store) Action(ctx context.Context, tableID, id string) (store.Action, error) {
	a, err := scanAction(s.pool.QueryRow(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE table_id = $1 AND id = $2`, tableID, id))
	if err != nil {
		return a, fmt.Errorf("action %s: %w", id, classify(err))
	}
	return a, nil
}

func (s *Store) Pending(ctx context.Context, tableID string, limit int) ([]store.Action, error) {
	query := `SELECT ` + actionColumns + ` FROM actions
		WHERE table_id = $1 AND status = 'pending'
		ORDER BY created_at, seq`
	args := []any{tableID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
	return loadHand(ctx, s.pool, tableID)
}

func (s *Store) Seats(ctx context.Context, tableID string) (game.Seats, error) {
	var exists bool
	if err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM poker_tables WHERE id = $1)`, tableID).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("table %s: %w", tableID, store.ErrNotFound)
	}
	return loadSeats(ctx, s.pool, tableID)
}

func (s *Store) Balance(ctx context.Context, owner string) (int, error) {
	var cents int
	err := s.pool.QueryRow(ctx, `SELECT cents FROM balances WHERE owner = $1`, owner).Scan(&cents)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	return cents, err
}

// querier is satisfied by both the pool and a transaction
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadHand(ctx context.Context, q querier, tableID string) (*game.HandState, error) {
	var state []byte
	err := q.QueryRow(ctx, `SELECT state FROM hands WHERE table_id = $1`, tableID).Scan(&state)
	if err != nil {
		return nil, fmt.Errorf("table %s hand: %w", tableID, classify(err))
	}
	var hs game.HandState
	if err := json.Unmarshal(state, &hs); err != nil {
		return nil, fmt.Errorf("decode hand of table %s: %w", tableID, err)
	}
	return &hs, nil
}

func loadSeats(ctx context.Context, q querier, tableID string) (game.Seats, error) {
	rows, err := q.Query(ctx, `SELECT seat, occupant, stack, leaving FROM seats WHERE table_id = $1`, tableID)
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
	tx      pgx.Tx
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
	_, err := t.tx.Exec(ctx, `
		UPDATE poker_tables
		   SET variant = $2, small_blind = $3, big_blind = $4, max_seats = $5,
		       operator = $6, dealer_seat = $7, hand_no = $8
		 WHERE id = $1
	`, tbl.ID, string(tbl.Variant), tbl.SmallBlind, tbl.BigBlind, tbl.MaxSeats, tbl.Operator, tbl.DealerSeat, tbl.HandNo)
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

	var tag pgconn.CommandTag
	if hs.Version == 1 {
		tag, err = t.tx.Exec(ctx, `
			INSERT INTO hands (table_id, hand_no, version, street, state, updated_at)
			VALUES ($1, $2, $3, $4, $5, now())
			ON CONFLICT (table_id) DO NOTHING
		`, t.tableID, hs.HandNo, hs.Version, hs.Street.String(), string(state))
	} else {
		tag, err = t.tx.Exec(ctx, `
			UPDATE hands
			   SET hand_no = $2, version = $3, street = $4, state = $5, updated_at = now()
			 WHERE table_id = $1 AND version = $6
		`, t.tableID, hs.HandNo, hs.Version, hs.Street.String(), string(state), hs.Version-1)
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() != 1 {
		return fmt.Errorf("hand version %d: %w", hs.Version, store.ErrConflict)
	}
	return nil
}

func (t *tx) Deck(ctx context.Context) (*deck.Deck, error) {
	var cards []byte
	err := t.tx.QueryRow(ctx, `SELECT cards FROM decks WHERE table_id = $1`, t.tableID).Scan(&cards)
	if err != nil {
		return nil, fmt.Errorf("table %s deck: %w", t.tableID, classify(err))
	}
	d := &deck.Deck{}
	if err := json.Unmarshal(cards, d); err != nil {
		return nil, fmt.Errorf("decode deck of table %s: %w", t.tableID, err)
	}
	return d, nil
}

func (t *tx) SaveDeck(ctx context.Context, d *deck.Deck) error {
	cards, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode deck: %w", err)
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO decks (table_id, cards) VALUES ($1, $2)
		ON CONFLICT (table_id) DO UPDATE SET cards = EXCLUDED.cards
	`, t.tableID, string(cards))
	return err
}

func (t *tx) Seats(ctx context.Context) (game.Seats, error) {
	return loadSeats(ctx, t.tx, t.tableID)
}

func (t *tx) SaveSeats(ctx context.Context, seats game.Seats) error {
	if len(seats) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for idx, seat := range seats {
		if !t.table.ValidSeat(idx) {
			return fmt.Errorf("seat %d outside table %s", idx, t.tableID)
		}
		batch.Queue(`
			INSERT INTO seats (table_id, seat, occupant, stack, leaving) VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (table_id, seat) DO UPDATE
			   SET occupant = EXCLUDED.occupant, stack = EXCLUDED.stack, leaving = EXCLUDED.leaving
		`, t.tableID, idx, seat.Occupant, seat.Stack, seat.Leaving)
	}
	return t.tx.SendBatch(ctx, batch).Close()
}

func (t *tx) Action(ctx context.Context, id string) (store.Action, error) {
	a, err := scanAction(t.tx.QueryRow(ctx,
		`SELECT `+actionColumns+` FROM actions WHERE table_id = $1 AND id = $2`, t.tableID, id))
	if err != nil {
		return a, fmt.Errorf("action %s: %w", id, classify(err))
	}
	return a, nil
}

func (t *tx) SaveAction(ctx context.Context, a store.Action) error {
	if a.TableID != t.tableID {
		return fmt.Errorf("save action %s of table %s in transaction for %s", a.ID, a.TableID, t.tableID)
	}
	var resolved *time.Time
	if !a.ResolvedAt.IsZero() {
		resolved = &a.ResolvedAt
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE actions
		   SET status = $3, reason = $4, message = $5, version = $6, resolved_at = $7
		 WHERE table_id = $1 AND id = $2
	`, t.tableID, a.ID, string(a.Status), string(a.Reason), a.Message, a.Version, resolved)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("action %s: %w", a.ID, store.ErrNotFound)
	}
	return nil
}

func (t *tx) Credit(ctx context.Context, owner string, amount int) error {
	if owner == "" {
		return fmt.Errorf("credit %d to empty owner", amount)
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO balances (owner, cents) VALUES ($1, $2)
		ON CONFLICT (owner) DO UPDATE SET cents = balances.cents + EXCLUDED.cents
	`, owner, amount)
	return err
}

var _ store.Store = (*Store)(nil)
