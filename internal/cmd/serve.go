package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-histview/internal/server"
	"github.com/wethinkt/go-histview/internal/store"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

// Serve command flags
var (
	servePort    int
	serveHost    string
	serveQuiet   bool
	serveNoWatch bool
	apiToken     string // Bearer token for API server authentication
)

var serveCmd = &cobra.Command{
	Use:   "serve <chat.toml>...",
	Short: "Stream view transitions over HTTP and WebSocket",
	Long: `Start a local HTTP server over the given chat files.

The server provides:
  - REST API for reading windows and changing chats
  - WebSocket stream of view transitions per client
  - Prometheus metrics at /metrics

Each WebSocket client gets its own view of a chat and drives it with
commands (jump, reach_edge, push_reply, ...). Chat files are watched and
reloaded on change unless --no-watch is set.

Authentication:
  Use --token or HISTVIEW_API_TOKEN to require "Authorization: Bearer <token>".
  Browsers get a one-time ticket from POST /v1/ws/ticket for the socket.

Examples:
  histview serve team.toml                 # Serve on the configured port
  histview serve team.toml -p 9000         # Serve on a custom port
  histview serve *.toml --token secret     # Require a token`,
	Args: cobra.MinimumNArgs(1),
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	mem := store.NewMemory()
	if err := mem.LoadFiles(args...); err != nil {
		return err
	}
	tuilog.Log.Info("Chats loaded", "chats", len(mem.Chats()))

	topts, err := cfg.TransformOptions()
	if err != nil {
		return err
	}

	token := apiToken
	if token == "" {
		token = os.Getenv("HISTVIEW_API_TOKEN")
	}
	host, port := serveHost, servePort
	if host == "" {
		host = cfg.Server.Host
	}
	if port == 0 && !cmd.Flags().Changed("port") {
		port = cfg.Server.Port
	}

	// Create context that cancels on interrupt
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	go func() {
		<-ctx.Done()
		tuilog.Log.Info("Received interrupt signal, shutting down")
		fmt.Fprintln(os.Stderr, "\nShutting down...")
	}()

	if cfg.Watch.Enabled && !serveNoWatch {
		stop, err := watchFiles(ctx, mem, args)
		if err != nil {
			return err
		}
		defer stop()
	}

	// Clients render in their own units, so the first paint is counted in rows.
	sessOpts := sessionOptions(topts, nil, 50)
	srv := server.NewServer(mem, server.Config{
		Host:    host,
		Port:    port,
		Token:   token,
		Quiet:   serveQuiet,
		Session: sessOpts,
	})
	tuilog.Log.Info("Starting HTTP server", "addr", srv.Addr(), "auth", token != "")
	return srv.ListenAndServe(ctx)
}
