package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
)

// Logs command flags
var (
	logsLines  int
	logsFollow bool
)

var logsCmd = &cobra.Command{
	Use:   "logs [file]",
	Short: "Show the debug log",
	Long: `Print the last lines of the debug log. The file defaults to --log or
HISTVIEW_LOG.

Examples:
  histview logs -n 100
  histview logs -f /tmp/histview.log`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := logPath
		if len(args) > 0 {
			path = args[0]
		}
		if path == "" {
			path = os.Getenv("HISTVIEW_LOG")
		}
		if path == "" {
			return fmt.Errorf("no log file: pass one or set --log or HISTVIEW_LOG")
		}
		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer cancel()
		return tailLogFile(ctx, os.Stdout, path, logsLines, logsFollow)
	},
}

// tailLogFile writes the last n lines of path to out, then, when follow is
// set, everything appended until ctx is done.
func tailLogFile(ctx context.Context, out io.Writer, path string, n int, follow bool) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("log file not found: %s", path)
		}
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	lines, err := readLastLines(f, n)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if !follow {
		return nil
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.Add(path); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if ev.Has(fsnotify.Write) {
				if _, err := io.Copy(out, f); err != nil {
					return err
				}
			}
		}
	}
}

// readLastLines returns the last n lines of f without their newlines and
// leaves f positioned at its end.
func readLastLines(f *os.File, n int) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), 1<<20)
	for sc.Scan() {
		lines = append(lines, sc.Text())
		if len(lines) > n {
			lines = lines[1:]
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return nil, err
	}
	return lines, nil
}
