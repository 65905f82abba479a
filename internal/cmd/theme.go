package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-histview/internal/config"
	"github.com/wethinkt/go-histview/internal/history"
	"github.com/wethinkt/go-histview/internal/tui"
	"github.com/wethinkt/go-histview/internal/tui/theme"
)

var themeJSON bool

// Theme command
var themeCmd = &cobra.Command{
	Use:   "theme",
	Short: "List and select viewer themes",
	Long: `List and select viewer themes.

Themes color message headers, separators, the unread marker, and holes.
User themes are TOML files in ~/.histview/themes/ and only need to set
the colors they change.

Examples:
  histview theme list          # List all available themes
  histview theme show light    # Preview a theme
  histview theme set light     # Switch to a theme`,
	RunE: runThemeList,
}

var themeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all available themes",
	Long:  `List all built-in and user themes. The active theme is marked with *.`,
	Args:  cobra.NoArgs,
	RunE:  runThemeList,
}

var themeSetCmd = &cobra.Command{
	Use:   "set <name>",
	Short: "Set the active theme",
	Args:  cobra.ExactArgs(1),
	RunE:  runThemeSet,
}

var themeShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Preview a theme with sample rows",
	Long: `Preview a theme with sample rows. If no name is provided, shows the
active theme.`,
	Args:         cobra.MaximumNArgs(1),
	RunE:         runThemeShow,
	SilenceUsage: true,
}

func runThemeList(cmd *cobra.Command, args []string) error {
	themes, err := theme.ListAvailable()
	if err != nil {
		return err
	}
	for _, t := range themes {
		mark := " "
		if t.Name == cfg.Theme {
			mark = "*"
		}
		kind := "built-in"
		if !t.Builtin {
			kind = t.Path
		}
		fmt.Printf("%s %-12s %-40s %s\n", mark, t.Name, t.Description, kind)
	}
	return nil
}

func runThemeSet(cmd *cobra.Command, args []string) error {
	name := args[0]
	if _, err := theme.LoadByName(name); err != nil {
		return err
	}
	cfg.Theme = name
	if configPath != "" {
		if err := config.SaveFile(configPath, cfg); err != nil {
			return err
		}
	} else if err := config.Save(cfg); err != nil {
		return err
	}
	fmt.Printf("Theme set to %s\n", name)
	return nil
}

func runThemeShow(cmd *cobra.Command, args []string) error {
	name := cfg.Theme
	if len(args) > 0 {
		name = args[0]
	}
	t, err := theme.LoadByName(name)
	if err != nil {
		return err
	}
	if themeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(t)
	}

	width, _ := tui.TerminalSize()
	r := tui.NewRenderer(min(width, 72), time.Local, func(id int64) string {
		if id == 1 {
			return "ana"
		}
		return "ben"
	})
	for _, row := range sampleRows(name) {
		fmt.Println(r.Render(row, false))
	}
	return nil
}

// sampleRows is a short conversation with one of every row kind the viewer
// draws, oldest last.
func sampleRows(themeName string) []history.RenderedEntry {
	day := time.Date(2024, 3, 1, 9, 0, 0, 0, time.Local)
	key := func(minute int, id int32) history.OrderKey {
		return history.OrderKey{Timestamp: int32(day.Add(time.Duration(minute) * time.Minute).Unix()), ID: id}
	}
	read := key(2, 2)
	w := history.HistoryWindow{
		Entries: []history.RawEntry{
			{Message: &history.Message{ID: 4, Key: key(31, 4), AuthorID: 1, Incoming: true, Text: "Sounds good, **shipping** friday."}},
			{Message: &history.Message{ID: 3, Key: key(30, 3), AuthorID: 2, Text: "Tests are green. `make release` next?"}},
			{Hole: &history.Hole{ID: 1, Min: key(3, 0), Max: key(20, 0)}},
			{Message: &history.Message{ID: 2, Key: key(2, 2), AuthorID: 1, Incoming: true, Text: "Morning!"}},
			{Message: &history.Message{ID: 1, Key: key(0, 1), Action: history.ActionGroupMigrated}},
		},
		MaxRead:         &read,
		AddedToChatList: true,
	}
	return history.Transform(w, history.TransformOptions{
		Presentation: history.Presentation{Theme: themeName},
		IncludeHoles: true,
		DayGrouping:  true,
		Location:     time.Local,
	})
}
