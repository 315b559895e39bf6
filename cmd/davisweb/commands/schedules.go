package commands

import (
	"davisweb/lib/util/serviceutil"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var schedulesTerm *string

func init() {
	schedulesTerm = schedulesCmd.Flags().String("term", "", "The term code, e.g. 201410.")
	schedulesCmd.MarkFlagRequired("term")
	rootCmd.AddCommand(schedulesCmd)
}

var schedulesCmd = &cobra.Command{
	Use:   "schedules --term <code>",
	Short: "Lists your saved Schedule Builder schedules and registered courses.",
	Run: func(cmd *cobra.Command, args []string) {
		c := createClients()
		term := parseTerm(*schedulesTerm)

		schedules, err := c.builder.Schedules(cmd.Context(), term)
		if err != nil {
			serviceutil.Fatal("failed to fetch schedules", err)
		}
		registered, err := c.builder.RegisteredCourses(cmd.Context(), term)
		if err != nil {
			serviceutil.Fatal("failed to fetch registered courses", err)
		}

		isRegistered := make(map[string]bool, len(registered))
		for _, crn := range registered {
			isRegistered[crn] = true
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Schedule", "CRN", "Units", "Registered"})
		for name, items := range schedules {
			for _, item := range items {
				t.AppendRow(table.Row{name, item.Crn, item.Units, isRegistered[item.Crn]})
			}
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
