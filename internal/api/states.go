package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-avr/internal/avr"
	"github.com/nerrad567/gray-logic-avr/internal/state"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 200
)

// setStateRequest is the body of PUT /states/{id}.
type setStateRequest struct {
	Val json.RawMessage `json:"val"`
}

// handleListStates returns every object with its current state.
func (s *Server) handleListStates(w http.ResponseWriter, r *http.Request) {
	entries, err := s.store.List(r.Context())
	if err != nil {
		s.logger.Error("listing states failed", "error", err)
		writeInternalError(w, "failed to list states")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"states": entries,
		"count":  len(entries),
	})
}

// handleGetState returns one object and its current state.
func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if !state.ValidID(id) {
		writeBadRequest(w, "invalid state id")
		return
	}

	obj, ok, err := s.store.GetObject(ctx, id)
	if err != nil {
		writeInternalError(w, "failed to get object")
		return
	}
	if !ok {
		writeNotFound(w, "state not found")
		return
	}

	st, hasState, err := s.store.GetState(ctx, id)
	if err != nil {
		writeInternalError(w, "failed to get state")
		return
	}

	writeJSON(w, http.StatusOK, state.Entry{Object: obj, State: st, HasState: hasState})
}

// handleSetState writes a host command. The value is stored unacknowledged
// and handed to the bridge, which confirms it once the receiver answers.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req setStateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if len(req.Val) == 0 {
		writeError(w, http.StatusBadRequest, ErrCodeValidation, "val is required")
		return
	}
	var val any
	if err := json.Unmarshal(req.Val, &val); err != nil {
		writeBadRequest(w, "invalid val")
		return
	}

	change, err := s.hostWrite(r.Context(), id, val)
	if err != nil {
		status, code, msg := hostWriteError(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("host write failed", "id", id, "error", err)
		}
		writeError(w, status, code, msg)
		return
	}

	writeJSON(w, http.StatusAccepted, change)
}

// hostWrite stores val unacknowledged and submits it to the bridge.
// It backs both PUT /states/{id} and the WebSocket set message.
func (s *Server) hostWrite(ctx context.Context, id string, val any) (state.StateChange, error) {
	change, err := state.ApplyHostWrite(ctx, s.store, id, val)
	if err != nil {
		return state.StateChange{}, err
	}
	if err := s.bridge.Submit(change); err != nil {
		return state.StateChange{}, fmt.Errorf("submitting %s: %w", id, err)
	}
	return change, nil
}

// hostWriteError maps a hostWrite error to an HTTP status, error code and
// client message.
func hostWriteError(err error) (int, string, string) {
	switch {
	case errors.Is(err, state.ErrInvalidID):
		return http.StatusBadRequest, ErrCodeBadRequest, "invalid state id"
	case errors.Is(err, state.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound, "state not found"
	case errors.Is(err, state.ErrReadOnly):
		return http.StatusForbidden, ErrCodeForbidden, "state is read-only"
	case errors.Is(err, avr.ErrClosed):
		return http.StatusServiceUnavailable, ErrCodeUnavailable, "bridge is stopped"
	default:
		return http.StatusInternalServerError, ErrCodeInternal, "failed to write state"
	}
}

// snapshot returns the entries whose id starts with one of prefixes, or
// every entry when prefixes is empty.
func (s *Server) snapshot(ctx context.Context, prefixes []string) ([]state.Entry, error) {
	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(prefixes) == 0 {
		return entries, nil
	}
	filter := pathFilter(prefixes)
	out := make([]state.Entry, 0, len(entries))
	for _, e := range entries {
		if filter.matches(e.Object.ID) {
			out = append(out, e)
		}
	}
	return out, nil
}

// handleStateHistory returns recent values of one state, newest first.
func (s *Server) handleStateHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")
	if !state.ValidID(id) {
		writeBadRequest(w, "invalid state id")
		return
	}

	limit, err := parseHistoryLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if s.history == nil {
		writeUnavailable(w, "state history unavailable")
		return
	}

	if _, ok, err := s.store.GetObject(ctx, id); err != nil {
		writeInternalError(w, "failed to get object")
		return
	} else if !ok {
		writeNotFound(w, "state not found")
		return
	}

	entries, err := s.history.History(ctx, id, limit)
	if err != nil {
		s.logger.Error("loading state history failed", "id", id, "error", err)
		writeInternalError(w, "failed to load state history")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"id":      id,
		"history": entries,
		"count":   len(entries),
	})
}

// parseHistoryLimit parses the limit query parameter with defaults.
func parseHistoryLimit(raw string) (int, error) {
	if raw == "" {
		return defaultHistoryLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("invalid limit")
	}
	if limit > maxHistoryLimit {
		return 0, fmt.Errorf("limit exceeds maximum")
	}

	return limit, nil
}
