package cmd

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/spf13/cobra"

	"github.com/wethinkt/go-histview/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show the configuration",
	Long: `Show the configuration. Settings live in ~/.histview/config.toml,
which is written with defaults on first run. HISTVIEW_HOME moves the
whole ~/.histview directory.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as TOML",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file path",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if configPath != "" {
			fmt.Println(configPath)
			return nil
		}
		p, err := config.Path()
		if err != nil {
			return err
		}
		fmt.Println(p)
		return nil
	},
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	return toml.NewEncoder(os.Stdout).Encode(cfg)
}
