package commands

import (
	"davisweb/lib/util/serviceutil"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var gradesTerm *string

func init() {
	gradesTerm = gradesCmd.Flags().String("term", "", "The term code, e.g. 201410.")
	gradesCmd.MarkFlagRequired("term")
	rootCmd.AddCommand(gradesCmd)
}

var gradesCmd = &cobra.Command{
	Use:   "grades --term <code>",
	Short: "Shows your final grades for a completed term.",
	Run: func(cmd *cobra.Command, args []string) {
		c := createClients()
		term := parseTerm(*gradesTerm)

		grades, err := c.sisweb.Grades(cmd.Context(), term)
		if err != nil {
			serviceutil.Fatal("failed to fetch grades", err)
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"CRN", "Grade", "Units", "Grade Points"})
		for crn, grade := range grades {
			t.AppendRow(table.Row{crn, grade.Letter, grade.UnitsEnrolled, grade.GradePoints})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
