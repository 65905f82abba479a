package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/store"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

const maxWindowCount = 1000

// HealthResponse is returned by GET /v1/health.
type HealthResponse struct {
	Status  string `json:"status"`
	Uptime  string `json:"uptime"`
	Chats   int    `json:"chats"`
	Clients int    `json:"clients"`
}

// ChatInfo describes one chat in GET /v1/chats.
type ChatInfo struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// EditRequest is the body of PUT /v1/chats/{chatID}/messages/{messageID}.
type EditRequest struct {
	Text string `json:"text"`
}

// HoleRequest is the body of POST /v1/chats/{chatID}/holes.
type HoleRequest struct {
	Min history.OrderKey `json:"min"`
	Max history.OrderKey `json:"max"`
}

// FillRequest is the body of POST /v1/chats/{chatID}/holes/{holeID}/fill.
type FillRequest struct {
	Messages  []history.Message `json:"messages"`
	Direction string            `json:"direction"` // lower_to_upper (default) or upper_to_lower
}

// ReadRequest is the body of POST /v1/chats/{chatID}/read.
type ReadRequest struct {
	Key history.OrderKey `json:"key"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Uptime:  time.Since(s.startedAt).Round(time.Second).String(),
		Chats:   len(s.store.Chats()),
		Clients: s.clients.Count(),
	})
}

func (s *Server) handleListChats(w http.ResponseWriter, r *http.Request) {
	chats := []ChatInfo{}
	for _, id := range s.store.Chats() {
		title, err := s.store.Title(id)
		if err != nil {
			continue
		}
		chats = append(chats, ChatInfo{ID: id, Title: title})
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleListClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.clients.List())
}

// handleWindow serves a raw history window. Query: count, and optionally
// timestamp/namespace/id to center the window on a key.
func (s *Server) handleWindow(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")
	q := r.URL.Query()

	count := 50
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxWindowCount {
			writeError(w, http.StatusBadRequest, "validation_error", "count must be between 1 and 1000")
			return
		}
		count = n
	}

	center := history.AbsoluteUpper
	if q.Has("timestamp") {
		k, err := keyFromQuery(q.Get("timestamp"), q.Get("namespace"), q.Get("id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", err.Error())
			return
		}
		center = k
	}

	win, err := s.store.Window(chatID, center, count)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, win)
}

func (s *Server) handleAppend(w http.ResponseWriter, r *http.Request) {
	var msg history.Message
	if !decodeBody(w, r, &msg) {
		return
	}
	if msg.ID == 0 || msg.Key == (history.OrderKey{}) {
		writeError(w, http.StatusBadRequest, "validation_error", "id and key are required")
		return
	}
	s.mutate(w, "append", http.StatusCreated, s.store.Append(chi.URLParam(r, "chatID"), msg))
}

func (s *Server) handleEdit(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "messageID")
	if !ok {
		return
	}
	var req EditRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, "edit", http.StatusOK, s.store.Edit(chi.URLParam(r, "chatID"), id, req.Text))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := intParam(w, r, "messageID")
	if !ok {
		return
	}
	s.mutate(w, "delete", http.StatusOK, s.store.Delete(chi.URLParam(r, "chatID"), id))
}

func (s *Server) handleAddHole(w http.ResponseWriter, r *http.Request) {
	var req HoleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Max.Less(req.Min) {
		writeError(w, http.StatusBadRequest, "validation_error", "min must not be after max")
		return
	}
	id, err := s.store.AddHole(chi.URLParam(r, "chatID"), req.Min, req.Max)
	if err != nil {
		s.mutate(w, "add_hole", 0, err)
		return
	}
	mutationsTotal.WithLabelValues("add_hole", "ok").Inc()
	writeJSON(w, http.StatusCreated, map[string]int64{"id": id})
}

func (s *Server) handleFillHole(w http.ResponseWriter, r *http.Request) {
	holeID, ok := intParam(w, r, "holeID")
	if !ok {
		return
	}
	var req FillRequest
	if !decodeBody(w, r, &req) {
		return
	}
	dir := history.LowerToUpper
	switch req.Direction {
	case "", history.LowerToUpper.String():
	case history.UpperToLower.String():
		dir = history.UpperToLower
	default:
		writeError(w, http.StatusBadRequest, "validation_error", "unknown direction "+strconv.Quote(req.Direction))
		return
	}
	s.mutate(w, "fill_hole", http.StatusOK, s.store.FillHole(chi.URLParam(r, "chatID"), holeID, req.Messages, dir))
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var req ReadRequest
	if !decodeBody(w, r, &req) {
		return
	}
	s.mutate(w, "mark_read", http.StatusOK, s.store.MarkRead(chi.URLParam(r, "chatID"), req.Key))
}

// mutate records and answers the outcome of a store mutation.
func (s *Server) mutate(w http.ResponseWriter, op string, status int, err error) {
	if err != nil {
		mutationsTotal.WithLabelValues(op, "error").Inc()
		tuilog.Log.Debug("mutation failed", "op", op, "error", err)
		writeStoreError(w, err)
		return
	}
	mutationsTotal.WithLabelValues(op, "ok").Inc()
	writeJSON(w, status, map[string]string{"status": "ok"})
}

// writeStoreError maps store errors to HTTP statuses.
func writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrUnknownChat), errors.Is(err, store.ErrUnknownMessage), errors.Is(err, store.ErrUnknownHole):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "conflict", err.Error())
	default:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Failed to parse request body")
		return false
	}
	return true
}

func intParam(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	n, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", name+" must be an integer")
		return 0, false
	}
	return n, true
}

func keyFromQuery(ts, ns, id string) (history.OrderKey, error) {
	var k history.OrderKey
	for _, f := range []struct {
		name string
		val  string
		dst  *int32
	}{{"timestamp", ts, &k.Timestamp}, {"namespace", ns, &k.Namespace}, {"id", id, &k.ID}} {
		if f.val == "" {
			continue
		}
		n, err := strconv.ParseInt(f.val, 10, 32)
		if err != nil {
			return k, errors.New(f.name + " must be a 32-bit integer")
		}
		*f.dst = int32(n)
	}
	return k, nil
}
