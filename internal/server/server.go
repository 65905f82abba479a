// Package server exposes a histview store over HTTP. Clients mutate chats
// through a small JSON API and follow a chat over a WebSocket, which streams
// the deliveries of a pipeline session opened for that connection.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/wethinkt/go-histview/internal/config"
	"github.com/wethinkt/go-histview/internal/pipeline"
	"github.com/wethinkt/go-histview/internal/store"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

const (
	DefaultHost = "127.0.0.1"
	DefaultPort = 8785
)

// Config configures a Server.
type Config struct {
	Host  string
	Port  int
	Token string // Bearer token; empty disables auth
	Quiet bool   // Skip request logging

	// Session is the template for the pipeline session each WebSocket
	// client gets.
	Session pipeline.Options
}

// Server is the histview HTTP server.
type Server struct {
	config    Config
	store     *store.Memory
	clients   *ClientRegistry
	tickets   *TicketStore
	router    chi.Router
	startedAt time.Time
}

// NewServer creates a server over mem.
func NewServer(mem *store.Memory, cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	s := &Server{
		config:    cfg,
		store:     mem,
		clients:   NewClientRegistry(),
		tickets:   NewTicketStore(),
		startedAt: time.Now(),
	}
	s.router = s.setupRouter()
	return s
}

// Handler returns the server's HTTP handler.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) setupRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(corsMiddleware)
	if !s.config.Quiet {
		r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{Logger: logAdapter{}, NoColor: true}))
	}

	if s.config.Token != "" {
		tuilog.Log.Info("server authentication enabled")
		r.Use(bearerAuth(s.config.Token))
	} else {
		tuilog.Log.Warn("server running without authentication - use --token to secure")
	}

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/clients", s.handleListClients)
		r.Post("/ws/ticket", s.handleIssueTicket)

		r.Get("/chats", s.handleListChats)
		r.Route("/chats/{chatID}", func(r chi.Router) {
			r.Get("/window", s.handleWindow)
			r.Get("/ws", s.handleChatWS)
			r.Post("/messages", s.handleAppend)
			r.Put("/messages/{messageID}", s.handleEdit)
			r.Delete("/messages/{messageID}", s.handleDelete)
			r.Post("/holes", s.handleAddHole)
			r.Post("/holes/{holeID}/fill", s.handleFillHole)
			r.Post("/read", s.handleMarkRead)
		})
	})

	return r
}

// ListenAndServe starts the server and blocks until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	if s.config.Port == 0 {
		s.config.Port = ln.Addr().(*net.TCPAddr).Port
	}

	inst := config.Instance{
		Type:      config.InstanceServe,
		PID:       os.Getpid(),
		Port:      s.config.Port,
		Host:      s.config.Host,
		StartedAt: time.Now(),
	}
	if err := config.RegisterInstance(inst); err != nil {
		tuilog.Log.Warn("failed to register server instance", "error", err)
	}

	go s.cleanTickets(ctx)

	go func() {
		<-ctx.Done()
		config.UnregisterInstance(os.Getpid())
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	tuilog.Log.Info("server listening", "addr", s.Addr())
	fmt.Printf("histview server running at http://%s\n", s.Addr())
	if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Addr returns the server address string.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

func (s *Server) cleanTickets(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tickets.Cleanup()
		}
	}
}

// logAdapter routes chi's request log lines into tuilog.
type logAdapter struct{}

func (logAdapter) Print(v ...any) { tuilog.Log.Info(fmt.Sprint(v...)) }

// bearerAuth returns middleware that validates a bearer token using
// constant-time comparison.
func bearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Health checks and ticketed WebSocket upgrades skip the header.
			if r.URL.Path == "/v1/health" || (r.URL.Query().Get("ticket") != "" && isWSPath(r)) {
				next.ServeHTTP(w, r)
				return
			}

			auth := r.Header.Get("Authorization")
			if auth == "" {
				w.Header().Set("WWW-Authenticate", `Bearer realm="histview"`)
				writeError(w, http.StatusUnauthorized, "unauthorized", "Missing Authorization header")
				return
			}

			const prefix = "Bearer "
			if len(auth) < len(prefix) || auth[:len(prefix)] != prefix {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid Authorization header format")
				return
			}

			if subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "Invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// corsMiddleware adds CORS headers for cross-origin requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// ErrorResponse is an API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, err string, msg string) {
	writeJSON(w, status, ErrorResponse{Error: err, Message: msg})
}
