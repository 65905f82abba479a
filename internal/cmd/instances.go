package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/wethinkt/go-histview/internal/config"
	"github.com/wethinkt/go-histview/internal/i18n"
)

var instancesCmd = &cobra.Command{
	Use:   "instances",
	Short: "List running histview processes",
	Args:  cobra.NoArgs,
	RunE:  runInstances,
}

func runInstances(cmd *cobra.Command, args []string) error {
	instances, err := config.ListInstances()
	if err != nil {
		return err
	}
	if outputJSON {
		return json.NewEncoder(os.Stdout).Encode(instances)
	}
	if len(instances) == 0 {
		fmt.Println("No running instances.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tPID\tADDRESS\tCHAT\tSTARTED")
	for _, inst := range instances {
		addr := "-"
		if inst.Port != 0 {
			addr = fmt.Sprintf("%s:%d", inst.Host, inst.Port)
		}
		chat := inst.Chat
		if chat == "" {
			chat = "-"
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", inst.Type, inst.PID, addr, chat, i18n.RelativeTime(inst.StartedAt))
	}
	return w.Flush()
}
