package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"

	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/pipeline"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

// handleChatWS upgrades to WebSocket, opens a pipeline session on the chat
// and streams its deliveries until either side goes away.
// Auth: either Authorization header (handled by bearerAuth middleware) or ?ticket= query param.
func (s *Server) handleChatWS(w http.ResponseWriter, r *http.Request) {
	chatID := chi.URLParam(r, "chatID")

	if ticket := r.URL.Query().Get("ticket"); ticket != "" {
		if !s.tickets.Redeem(ticket, chatID) {
			writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid or expired ticket")
			return
		}
	}

	src, err := s.store.Source(chatID)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // CORS handled by middleware
	})
	if err != nil {
		tuilog.Log.Error("WebSocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	clientID := s.clients.Register(chatID)
	defer s.clients.Remove(clientID)
	log := tuilog.Log.With("client", clientID, "chat", chatID)

	opts := s.config.Session
	opts.Logger = log
	sess := pipeline.New(src, opts)
	if err := sess.Open(ctx); err != nil {
		log.Error("session open failed", "error", err)
		conn.Close(websocket.StatusInternalError, "session failed")
		return
	}
	defer sess.Close()

	wsConnectionsActive.Inc()
	defer wsConnectionsActive.Dec()
	log.Info("WebSocket client connected")

	if err := s.send(ctx, conn, Frame{Type: "hello", Client: clientID}); err != nil {
		return
	}

	pres := opts.Transform.Presentation
	go s.readCommands(ctx, cancel, conn, sess, &pres, log)

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "server shutting down")
			return
		case d, ok := <-sess.Deliveries():
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			if err := s.send(ctx, conn, frameFor(d)); err != nil {
				log.Debug("WS write failed", "error", err)
				return
			}
			s.clients.Delivered(clientID, d.Seq)
		}
	}
}

// readCommands reads client commands until the connection fails, then
// cancels the connection's context. Only this goroutine reads from conn.
func (s *Server) readCommands(ctx context.Context, cancel context.CancelFunc, conn *websocket.Conn, sess *pipeline.Session, pres *history.Presentation, log *tuilog.Logger) {
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			log.Debug("WS read ended", "error", err)
			return
		}
		var c Command
		if err := json.Unmarshal(data, &c); err != nil {
			commandsTotal.WithLabelValues("invalid", "error").Inc()
			if err := s.send(ctx, conn, Frame{Type: "error", Error: "invalid command"}); err != nil {
				return
			}
			continue
		}
		if err := c.apply(sess, pres); err != nil {
			commandsTotal.WithLabelValues(c.Op, "error").Inc()
			log.Debug("command rejected", "op", c.Op, "error", err)
			if err := s.send(ctx, conn, Frame{Type: "error", Error: err.Error()}); err != nil {
				return
			}
			continue
		}
		commandsTotal.WithLabelValues(c.Op, "ok").Inc()
	}
}

func (s *Server) send(ctx context.Context, conn *websocket.Conn, f Frame) error {
	if err := wsjson.Write(ctx, conn, f); err != nil {
		return err
	}
	framesSentTotal.WithLabelValues(f.Type).Inc()
	return nil
}

// handleIssueTicket issues a WebSocket auth ticket for the given chat.
// POST /v1/ws/ticket with body {"chat": "..."}
func (s *Server) handleIssueTicket(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Chat string `json:"chat"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", "Failed to parse request body")
		return
	}
	if req.Chat == "" {
		writeError(w, http.StatusBadRequest, "validation_error", "chat is required")
		return
	}

	ticket := s.tickets.Issue(req.Chat)
	writeJSON(w, http.StatusOK, map[string]string{"ticket": ticket})
}

func isWSPath(r *http.Request) bool {
	return strings.HasSuffix(r.URL.Path, "/ws")
}
