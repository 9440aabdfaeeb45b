package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/Mappledude/jampoker/internal/dealer"
	"github.com/Mappledude/jampoker/internal/deck"
	"github.com/Mappledude/jampoker/internal/game"
	"github.com/Mappledude/jampoker/internal/gateway"
	"github.com/Mappledude/jampoker/internal/store"
)

// EventSnapshot is the first message on a feed: the hand as it stands
const EventSnapshot gateway.EventKind = "hand.snapshot"

// EnqueueRequest is the body of POST /tables/{table}/actions
type EnqueueRequest struct {
	// ID makes retried enqueues idempotent; one is generated when empty
	ID     string `json:"id,omitempty"`
	HandNo int    `json:"hand"`
	Seat   int    `json:"seat"`
	Type   string `json:"type"`
	Amount int    `json:"amount,omitempty"`
}

// SitRequest is the body of PUT /tables/{table}/seats/{seat}
type SitRequest struct {
	Stack int `json:"stack"`
}

// HoleResponse carries the caller's own cards
type HoleResponse struct {
	TableID string      `json:"tableId"`
	HandNo  int         `json:"handNo"`
	Seat    int         `json:"seat"`
	Cards   []deck.Card `json:"cards"`
}

// ErrorResponse is returned with every non-2xx status
type ErrorResponse struct {
	Error  string      `json:"error"`
	Code   string      `json:"code,omitempty"`
	Reason game.Reason `json:"reason,omitempty"`
}

type badRequest struct {
	msg    string
	reason game.Reason
}

func (e *badRequest) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &badRequest{msg: fmt.Sprintf(format, args...)}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "table")

	var req EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, invalid("decode action: %v", err))
		return
	}
	at, ok := game.ParseActionType(req.Type)
	if !ok {
		s.writeError(w, r, &badRequest{msg: fmt.Sprintf("unknown action type %q", req.Type), reason: game.ReasonUnknownAction})
		return
	}
	if req.Amount < 0 {
		s.writeError(w, r, &badRequest{msg: "amount must not be negative", reason: game.ReasonBadAmount})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	a := store.Action{
		ID:        req.ID,
		TableID:   tableID,
		HandNo:    req.HandNo,
		Seat:      req.Seat,
		Actor:     r.Header.Get(PlayerHeader),
		Type:      at,
		Amount:    req.Amount,
		Status:    store.StatusPending,
		CreatedAt: s.clock.Now().UTC(),
	}
	if err := s.store.Enqueue(r.Context(), a); err != nil {
		if errors.Is(err, store.ErrExists) {
			existing, lookupErr := s.store.Action(r.Context(), tableID, req.ID)
			if lookupErr == nil && sameIntent(existing, a) {
				writeJSON(w, http.StatusOK, existing)
				return
			}
		}
		s.writeError(w, r, err)
		return
	}

	s.logger.Debug("Enqueued action", "table", tableID, "action", a.ID, "seat", a.Seat, "type", a.Type)
	writeJSON(w, http.StatusAccepted, a)
}

// sameIntent reports whether a retried enqueue describes the stored action
func sameIntent(stored, req store.Action) bool {
	return stored.HandNo == req.HandNo &&
		stored.Seat == req.Seat &&
		stored.Actor == req.Actor &&
		stored.Type == req.Type &&
		stored.Amount == req.Amount
}

func (s *Server) handleGetAction(w http.ResponseWriter, r *http.Request) {
	a, err := s.store.Action(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "action"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	res, err := s.gateway.Submit(r.Context(), chi.URLParam(r, "table"), chi.URLParam(r, "action"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleStartHand(w http.ResponseWriter, r *http.Request) {
	out, err := s.dealer.StartHand(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out.Hand != nil {
		out.Hand = out.Hand.Redacted()
	}
	status := http.StatusOK
	switch {
	case out.Status == dealer.StatusRejected:
		status = http.StatusConflict
	case out.Started:
		status = http.StatusCreated
	}
	writeJSON(w, status, out)
}

func (s *Server) handleForceStreet(w http.ResponseWriter, r *http.Request) {
	hs, err := s.gateway.ForceAdvanceStreet(r.Context(), chi.URLParam(r, "table"), r.Header.Get(PlayerHeader))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (s *Server) handleForceShowdown(w http.ResponseWriter, r *http.Request) {
	hs, err := s.gateway.ForceShowdown(r.Context(), chi.URLParam(r, "table"), r.Header.Get(PlayerHeader))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hs)
}

func (s *Server) handleGetHand(w http.ResponseWriter, r *http.Request) {
	hs, err := s.loadHand(r.Context(), chi.URLParam(r, "table"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hs.Redacted())
}

func (s *Server) handleGetHole(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "table")
	player := r.Header.Get(PlayerHeader)
	if player == "" {
		s.writeError(w, r, invalid("missing %s header", PlayerHeader))
		return
	}

	ctx := r.Context()
	seats, err := s.store.Seats(ctx, tableID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	hs, err := s.loadHand(ctx, tableID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	for _, seat := range seats {
		if seat.Occupant != player {
			continue
		}
		cards, ok := hs.Holes[seat.Index]
		if !ok {
			break
		}
		writeJSON(w, http.StatusOK, HoleResponse{TableID: tableID, HandNo: hs.HandNo, Seat: seat.Index, Cards: cards})
		return
	}
	s.writeError(w, r, &gateway.PreconditionError{Code: gateway.CodeNotSeated, TableID: tableID,
		Err: fmt.Errorf("%s holds no cards in hand %d", player, hs.HandNo)})
}

func (s *Server) handleSit(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "table")
	seat, err := seatParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	player := r.Header.Get(PlayerHeader)
	if player == "" {
		s.writeError(w, r, invalid("missing %s header", PlayerHeader))
		return
	}

	var req SitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, invalid("decode sit request: %v", err))
		return
	}
	if req.Stack <= 0 {
		s.writeError(w, r, invalid("stack must be positive"))
		return
	}

	out, err := s.gateway.Sit(r.Context(), tableID, seat, player, req.Stack)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleLeave(w http.ResponseWriter, r *http.Request) {
	seat, err := seatParam(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.gateway.LeaveSeat(r.Context(), chi.URLParam(r, "table"), seat, r.Header.Get(PlayerHeader))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	tableID := chi.URLParam(r, "table")
	hs, err := s.loadHand(r.Context(), tableID)
	if err != nil && gateway.CodeOf(err) != gateway.CodeHandMissing {
		s.writeError(w, r, err)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	conn := NewConnection(ws, tableID, r.Header.Get(PlayerHeader), s.logger)
	conn.Start()
	if hs != nil {
		_ = conn.Send(gateway.Event{Kind: EventSnapshot, TableID: tableID, Hand: hs.Redacted(), At: s.clock.Now().UTC()})
	}
	if !s.hub.attach(conn) {
		_ = conn.Close()
	}
}

// loadHand reads the current hand. A missing table is a not-found error; a
// table that never dealt is a hand-missing precondition.
func (s *Server) loadHand(ctx context.Context, tableID string) (*game.HandState, error) {
	if _, err := s.store.Seats(ctx, tableID); err != nil {
		return nil, err
	}
	hs, err := s.store.Hand(ctx, tableID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, &gateway.PreconditionError{Code: gateway.CodeHandMissing, TableID: tableID}
	}
	return hs, err
}

func seatParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "seat")
	seat, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid("seat %q is not a number", raw)
	}
	return seat, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps an error onto a status code. Rule violations on actions
// are not errors and never reach here.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var br *badRequest
	code := gateway.CodeOf(err)
	status := http.StatusInternalServerError
	body := ErrorResponse{Error: err.Error(), Code: string(code)}

	switch {
	case errors.As(err, &br):
		status = http.StatusBadRequest
		body.Reason = br.reason
	case code == gateway.CodeAdminOnly:
		status = http.StatusForbidden
	case code == gateway.CodeTableMissing, code == gateway.CodeActionMissing:
		status = http.StatusNotFound
	case code != "":
		status = http.StatusConflict
	case errors.Is(err, store.ErrNotFound):
		status = http.StatusNotFound
		body.Code = "not-found"
	case errors.Is(err, store.ErrExists):
		status = http.StatusConflict
		body.Code = "exists"
	case errors.Is(err, store.ErrConflict):
		status = http.StatusServiceUnavailable
		body.Code = "busy"
	}

	if status >= http.StatusInternalServerError {
		s.logger.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, body)
}
