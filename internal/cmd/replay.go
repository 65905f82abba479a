package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-histview/internal/config"
	"github.com/wethinkt/go-histview/internal/scenario"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

var replayParallel int

var errScenarioFailed = errors.New("scenario checks failed")

var replayCmd = &cobra.Command{
	Use:   "replay <script.toml>...",
	Short: "Run scripted scenarios against the pipeline",
	Long: `Replay scenario scripts. Each script seeds a chat, opens a view of it,
and runs steps (append, edit, delete, hole, fill-hole, jump, push-reply, ...).
After every step the delivered transitions are applied and checked against
the step's expectations.

Exits non-zero when any check fails.

Examples:
  histview replay scenarios/*.toml
  histview replay unread.toml --json
  histview replay scenarios/*.toml -j 1   # one at a time`,
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE:         runReplay,
}

func runReplay(cmd *cobra.Command, args []string) error {
	scripts := make([]scenario.Script, 0, len(args))
	for _, path := range args {
		s, err := scenario.LoadFile(path)
		if err != nil {
			return err
		}
		scripts = append(scripts, s)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer cancel()

	if err := config.RegisterInstance(config.Instance{Type: config.InstanceReplay, PID: os.Getpid(), StartedAt: time.Now()}); err != nil {
		tuilog.Log.Warn("failed to register replay instance", "error", err)
	}
	defer config.UnregisterInstance(os.Getpid())

	done := tuilog.Log.Timed("replay", "scripts", len(scripts))
	reports, err := scenario.RunAll(ctx, scripts, replayParallel)
	done()
	if err != nil {
		return err
	}

	failed := false
	for _, r := range reports {
		failed = failed || r.Failed()
	}

	if outputJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(reports); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "SCRIPT\tSTEPS\tTRANSITIONS\tROWS\tRESULT")
		for _, r := range reports {
			transitions := 0
			for _, s := range r.Steps {
				transitions += s.Transitions
			}
			result := "ok"
			if r.Failed() {
				result = "FAIL"
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\n", r.Name, len(r.Steps), transitions, len(r.Rows), result)
		}
		w.Flush()
		for _, r := range reports {
			for _, f := range r.Failures() {
				fmt.Fprintf(os.Stderr, "%s: %s\n", r.Name, f)
			}
		}
	}

	if failed {
		return errScenarioFailed
	}
	return nil
}
