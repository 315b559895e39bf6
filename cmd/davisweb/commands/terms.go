package commands

import (
	"davisweb/lib/catalog"
	"davisweb/lib/util/serviceutil"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(termsCmd)
}

var termsCmd = &cobra.Command{
	Use:   "terms",
	Short: "Lists the terms you have enrollment and final grade information for.",
	Run: func(cmd *cobra.Command, args []string) {
		c := createClients()

		enrolled, err := c.sisweb.TermsEnrolled(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch enrolled terms", err)
		}
		completed, err := c.sisweb.TermsCompleted(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to fetch completed terms", err)
		}

		graded := make(map[catalog.Term]bool, len(completed))
		for _, term := range completed {
			graded[term] = true
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Code", "Term", "Graded"})
		for _, term := range enrolled {
			t.AppendRow(table.Row{term.Code(), term.String(), graded[term]})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
