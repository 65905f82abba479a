package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-histview/internal/config"
	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/pipeline"
	"github.com/wethinkt/go-histview/internal/store"
	"github.com/wethinkt/go-histview/internal/tui"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

// View command flags
var (
	viewChat    string
	viewTheme   string
	viewAt      int64
	viewNoWatch bool
)

var viewCmd = &cobra.Command{
	Use:   "view <chat.toml>...",
	Short: "Open chats in the terminal viewer",
	Long: `Open a chat in the terminal viewer. All given files are loaded; the
first one is shown unless --chat names another by file name.

The viewer opens at the first unread message when the chat has a read
marker, otherwise at the newest message. Files are watched and reloaded
on change unless --no-watch is set.

Keys:
  ↑/↓ pgup/pgdn   scroll
  g / G           oldest / newest
  :               jump to a message id
  esc             return from a jump
  t               next theme
  r               reload

Examples:
  histview view team.toml
  histview view team.toml ops.toml --chat ops
  histview view team.toml --at 120   # open centered on message 120`,
	Args: cobra.MinimumNArgs(1),
	RunE: runView,
}

func addViewFlags(c *cobra.Command) {
	c.Flags().StringVar(&viewChat, "chat", "", "chat to show (file name without extension)")
	c.Flags().StringVar(&viewTheme, "theme", "", "theme to use (default from config)")
	c.Flags().Int64Var(&viewAt, "at", 0, "open centered on this message id")
	c.Flags().BoolVar(&viewNoWatch, "no-watch", false, "don't reload chat files when they change")
}

func runView(cmd *cobra.Command, args []string) error {
	tuilog.Log.Info("Starting viewer", "files", len(args))

	mem := store.NewMemory()
	if err := mem.LoadFiles(args...); err != nil {
		return err
	}
	chatID := viewChat
	if chatID == "" {
		chatID = store.ChatID(args[0])
	}
	src, err := mem.Source(chatID)
	if err != nil {
		return err
	}
	title, _ := mem.Title(chatID)
	if title == "" {
		title = chatID
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	if cfg.Watch.Enabled && !viewNoWatch {
		stop, err := watchFiles(ctx, mem, args)
		if err != nil {
			return err
		}
		defer stop()
	}

	if viewTheme != "" {
		cfg.Theme = viewTheme
	}
	topts, err := cfg.TransformOptions()
	if err != nil {
		return err
	}
	width, height := tui.TerminalSize()
	renderer := tui.NewRenderer(width, topts.Location, nil)

	opts := sessionOptions(topts, renderer.Measure, float64(height))
	sess := pipeline.New(src, opts)
	if err := sess.Open(ctx); err != nil {
		return err
	}
	defer sess.Close()

	if viewAt != 0 {
		key, err := mem.KeyOf(chatID, viewAt)
		if err != nil {
			return err
		}
		if err := sess.Navigate(pipeline.InitialSearch(key, opts.Count)); err != nil {
			return err
		}
	}

	inst := config.Instance{
		Type:      config.InstanceView,
		PID:       os.Getpid(),
		Chat:      absPath(args[0]),
		StartedAt: time.Now(),
	}
	if err := config.RegisterInstance(inst); err != nil {
		tuilog.Log.Warn("failed to register viewer instance", "error", err)
	}
	defer config.UnregisterInstance(os.Getpid())

	err = tui.Run(ctx, sess, tui.Options{
		Title:        title,
		Presentation: topts.Presentation,
		Renderer:     renderer,
		Lookup: func(id int64) (history.OrderKey, bool) {
			k, err := mem.KeyOf(chatID, id)
			return k, err == nil
		},
		Tag: cfg.Tag(),
	})
	tuilog.Log.Info("Viewer exited", "error", err)
	return err
}

// sessionOptions builds pipeline options from the loaded config. A zero
// viewport_height in the config means fallbackHeight.
func sessionOptions(topts history.TransformOptions, measure history.MeasureFunc, fallbackHeight float64) pipeline.Options {
	height := float64(cfg.View.ViewportHeight)
	if height <= 0 {
		height = fallbackHeight
	}
	return pipeline.Options{
		ViewportHeight: height,
		Measure:        measure,
		Count:          cfg.View.BatchCount,
		DeliverInline:  cfg.View.DeliverInline,
		Debug:          cfg.View.Debug,
		Transform:      topts,
		Logger:         tuilog.Log,
	}
}

// watchFiles reloads paths into mem as they change until ctx is done. The
// returned func stops watching.
func watchFiles(ctx context.Context, mem *store.Memory, paths []string) (func(), error) {
	w, err := store.NewWatcher(mem, cfg.Watch.DebounceDuration(), paths...)
	if err != nil {
		return nil, fmt.Errorf("watch chat files: %w", err)
	}
	events, err := w.Start(ctx)
	if err != nil {
		return nil, fmt.Errorf("watch chat files: %w", err)
	}
	go func() {
		for ev := range events {
			if ev.Err != nil {
				tuilog.Log.Warn("chat reload failed", "chat", ev.ChatID, "path", ev.Path, "error", ev.Err)
				continue
			}
			tuilog.Log.Info("chat reloaded", "chat", ev.ChatID)
		}
	}()
	return func() { w.Stop() }, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}
