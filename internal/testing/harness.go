// Package testing runs the whole stack in process: store, gateway, dealer,
// worker and HTTP server, driven over HTTP the way a client would.
package testing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/Mappledude/jampoker/internal/dealer"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/gateway"
	"github.com/Mappledude/jampoker/internal/server"
	"github.com/Mappledude/jampoker/internal/store"
	"github.com/Mappledude/jampoker/internal/worker"
)

// Epoch is where every stack's mock clock starts
var Epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// TestServer is a complete jampoker process
type TestServer struct {
	Store  store.Store
	Clock  *quartz.Mock
	Hub    *server.Hub
	Worker *worker.Worker
	HTTP   *httptest.Server

	t   *testing.T
	ctx context.Context
}

// StartTestServer wires st into a gateway, dealer, worker and HTTP server.
// The worker is not running; tests drive it with Drain.
func StartTestServer(t *testing.T, st store.Store, seed int64) *TestServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	clock := quartz.NewMock(t)
	clock.Set(Epoch)

	logger := log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
	hub := server.NewHub(logger)
	go hub.Run(ctx)

	gw := gateway.New(st, logger, gateway.WithPublisher(hub), gateway.WithClock(clock))
	dm := dealer.New(st, logger, dealer.WithPublisher(hub), dealer.WithClock(clock), dealer.WithSeed(seed))
	w := worker.New(st, gw, dm, clock, logger, worker.DefaultConfig())
	srv := server.New(st, gw, dm, hub, logger, server.WithClock(clock))

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	return &TestServer{Store: st, Clock: clock, Hub: hub, Worker: w, HTTP: ts, t: t, ctx: ctx}
}

// CreateTable adds a table with blinds 25/50 operated by "op"
func (s *TestServer) CreateTable(id string, seats int) {
	s.t.Helper()
	require.NoError(s.t, s.Store.CreateTable(s.ctx, store.Table{
		ID: id, Variant: game.Holdem, SmallBlind: 25, BigBlind: 50,
		MaxSeats: seats, Operator: "op", DealerSeat: game.NoSeat, CreatedAt: Epoch,
	}))
}

// Drain runs one worker tick
func (s *TestServer) Drain() worker.Stats {
	s.t.Helper()
	stats, err := s.Worker.Tick(s.ctx)
	require.NoError(s.t, err)
	return stats
}

// Do sends a JSON request as player and decodes the response into out
func (s *TestServer) Do(method, path, player string, body, out any) int {
	s.t.Helper()
	var rd io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(s.t, err)
		rd = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(s.ctx, method, s.HTTP.URL+path, rd)
	require.NoError(s.t, err)
	if player != "" {
		req.Header.Set(server.PlayerHeader, player)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(s.t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

// Hand returns the public view of the table's hand
func (s *TestServer) Hand(tableID string) game.HandState {
	s.t.Helper()
	var hs game.HandState
	require.Equal(s.t, http.StatusOK, s.Do(http.MethodGet, "/tables/"+tableID+"/hand", "", nil, &hs))
	return hs
}

// Stacks returns the chips behind every seat at the table
func (s *TestServer) Stacks(tableID string) int {
	s.t.Helper()
	seats, err := s.Store.Seats(s.ctx, tableID)
	require.NoError(s.t, err)
	return seats.Total()
}

// Watch opens the table's event feed and waits until the hub delivers to it
func (s *TestServer) Watch(tableID string) *Feed {
	s.t.Helper()
	before := s.Hub.Watchers(tableID)
	url := "ws" + strings.TrimPrefix(s.HTTP.URL, "http") + "/tables/" + tableID + "/ws"
	conn, resp, err := websocket.DefaultDialer.DialContext(s.ctx, url, nil)
	require.NoError(s.t, err)
	_ = resp.Body.Close()
	s.t.Cleanup(func() { _ = conn.Close() })

	require.Eventually(s.t, func() bool { return s.Hub.Watchers(tableID) > before }, time.Second, 5*time.Millisecond)
	return &Feed{conn: conn, t: s.t}
}

// TestPlayer is a seated client at one table
type TestPlayer struct {
	Name    string
	Seat    int
	TableID string
	server  *TestServer
}

// Sit seats a player called name at seat with stack chips
func (s *TestServer) Sit(tableID string, seat int, name string, stack int) *TestPlayer {
	s.t.Helper()
	path := fmt.Sprintf("/tables/%s/seats/%d", tableID, seat)
	require.Equal(s.t, http.StatusOK, s.Do(http.MethodPut, path, name, server.SitRequest{Stack: stack}, nil))
	return &TestPlayer{Name: name, Seat: seat, TableID: tableID, server: s}
}

// Act enqueues a move for the current hand and returns the action id
func (p *TestPlayer) Act(typ string, amount int) string {
	s := p.server
	s.t.Helper()
	req := server.EnqueueRequest{HandNo: s.Hand(p.TableID).HandNo, Seat: p.Seat, Type: typ, Amount: amount}
	var a store.Action
	require.Equal(s.t, http.StatusAccepted, s.Do(http.MethodPost, "/tables/"+p.TableID+"/actions", p.Name, req, &a))
	return a.ID
}

// Resolution polls the action's current state
func (p *TestPlayer) Resolution(actionID string) store.Action {
	s := p.server
	s.t.Helper()
	var a store.Action
	require.Equal(s.t, http.StatusOK, s.Do(http.MethodGet, "/tables/"+p.TableID+"/actions/"+actionID, "", nil, &a))
	return a
}

// Hole returns the player's own cards
func (p *TestPlayer) Hole() server.HoleResponse {
	s := p.server
	s.t.Helper()
	var hole server.HoleResponse
	require.Equal(s.t, http.StatusOK, s.Do(http.MethodGet, "/tables/"+p.TableID+"/hand/hole", p.Name, nil, &hole))
	return hole
}

// Leave gets up from the table
func (p *TestPlayer) Leave() game.Seat {
	s := p.server
	s.t.Helper()
	var seat game.Seat
	path := fmt.Sprintf("/tables/%s/seats/%d", p.TableID, p.Seat)
	require.Equal(s.t, http.StatusOK, s.Do(http.MethodDelete, path, p.Name, nil, &seat))
	return seat
}

// Feed reads a table's events
type Feed struct {
	conn *websocket.Conn
	t    *testing.T
}

// Next returns the next event, failing the test after timeout
func (f *Feed) Next(timeout time.Duration) gateway.Event {
	f.t.Helper()
	require.NoError(f.t, f.conn.SetReadDeadline(time.Now().Add(timeout)))
	var e gateway.Event
	require.NoError(f.t, f.conn.ReadJSON(&e))
	return e
}

// Until reads events until one of kind arrives and returns it
func (f *Feed) Until(kind gateway.EventKind, timeout time.Duration) gateway.Event {
	f.t.Helper()
	for {
		if e := f.Next(timeout); e.Kind == kind {
			return e
		}
	}
}
