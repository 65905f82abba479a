// Package cmd provides the CLI commands for histview.
package cmd

import (
	"fmt"
	"os"
	"runtime/pprof"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-histview/internal/config"
	"github.com/wethinkt/go-histview/internal/i18n"
	"github.com/wethinkt/go-histview/internal/tuilog"
)

// global flags
var (
	profileFile *os.File // held open for profiling
	logPath     string
	logLevel    string
	configPath  string
	outputJSON  bool
)

// cfg is the configuration loaded before every command runs.
var cfg = config.Default()

// rootCmd is the root command for the CLI.
var rootCmd = &cobra.Command{
	Use:   "histview",
	Short: "Windowed chat history viewer",
	Long: `histview renders chat history a window at a time and keeps the view
anchored while messages arrive, change, and disappear.

Chats are TOML files with one [[messages]] table per message. Passing chat
files without a subcommand opens the first one in the viewer.

Commands:
  view      Open chats in the terminal viewer
  serve     Stream view transitions over HTTP and WebSocket
  replay    Run scripted scenarios against the pipeline
  theme     List and select viewer themes
  config    Show the configuration

Examples:
  histview team.toml                 # View a chat
  histview serve team.toml ops.toml  # Serve two chats
  histview replay scenarios/*.toml   # Replay scenario scripts`,
	Args:          cobra.ArbitraryArgs,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Start pprof profiling if HISTVIEW_PROFILE is set
		if profilePath := os.Getenv("HISTVIEW_PROFILE"); profilePath != "" {
			f, err := os.Create(profilePath)
			if err != nil {
				return fmt.Errorf("create profile file: %w", err)
			}
			profileFile = f

			if err := pprof.StartCPUProfile(f); err != nil {
				f.Close()
				profileFile = nil
				return fmt.Errorf("start CPU profile: %w", err)
			}
		}

		loaded, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = loaded
		i18n.Init(i18n.ResolveLocale(cfg.Language))
		return initLogging()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		// Stop CPU profiling
		if profileFile != nil {
			pprof.StopCPUProfile()
			profileFile.Close()
			profileFile = nil
		}
		return tuilog.Log.Close()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}
		return runView(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func loadConfig() (config.Config, error) {
	if configPath != "" {
		return config.LoadFile(configPath)
	}
	return config.Load()
}

// initLogging opens the debug log. --log wins over HISTVIEW_LOG; the level
// comes from --log-level, then the config file.
func initLogging() error {
	path := logPath
	if path == "" {
		path = os.Getenv("HISTVIEW_LOG")
	}
	if path == "" {
		return nil
	}
	levelName := logLevel
	if levelName == "" {
		levelName = cfg.LogLevel
	}
	level, err := tuilog.ParseLevel(levelName)
	if err != nil {
		return err
	}
	return tuilog.Init(path, level)
}

func init() {
	// Global flags on root
	rootCmd.PersistentFlags().StringVar(&logPath, "log", "", "write debug log to file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.histview/config.toml)")

	// Root runs the viewer directly, so it shares the view flags
	addViewFlags(rootCmd)
	addViewFlags(viewCmd)

	// Serve command flags
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "server port (default from config)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "server host (default from config)")
	serveCmd.Flags().StringVar(&apiToken, "token", "", "bearer token for API authentication (default: use HISTVIEW_API_TOKEN env var)")
	serveCmd.Flags().BoolVarP(&serveQuiet, "quiet", "q", false, "suppress HTTP request logging")
	serveCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "don't reload chat files when they change")

	// Replay command flags
	replayCmd.Flags().IntVarP(&replayParallel, "parallel", "j", 4, "scripts to run at once")
	replayCmd.Flags().BoolVar(&outputJSON, "json", false, "output reports as JSON")

	// Theme subcommands
	themeCmd.AddCommand(themeListCmd)
	themeCmd.AddCommand(themeSetCmd)
	themeCmd.AddCommand(themeShowCmd)
	themeShowCmd.Flags().BoolVar(&themeJSON, "json", false, "output theme as JSON")

	// Config subcommands
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configPathCmd)

	// Logs command flags
	logsCmd.Flags().IntVarP(&logsLines, "lines", "n", 50, "number of lines to show")
	logsCmd.Flags().BoolVarP(&logsFollow, "follow", "f", false, "follow the log as it grows")

	instancesCmd.Flags().BoolVar(&outputJSON, "json", false, "output as JSON")
	versionCmd.Flags().BoolVar(&versionJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(viewCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(replayCmd)
	rootCmd.AddCommand(themeCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(instancesCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(versionCmd)
}
