package commands

import (
	"davisweb/lib/util/serviceutil"
	"fmt"

	"github.com/spf13/cobra"
)

var enrolledTerm *string

func init() {
	enrolledTerm = enrolledCmd.Flags().String("term", "", "The term code, e.g. 201410.")
	enrolledCmd.MarkFlagRequired("term")
	rootCmd.AddCommand(enrolledCmd)
}

var enrolledCmd = &cobra.Command{
	Use:   "enrolled --term <code>",
	Short: "Lists the CRNs on your current class schedule for a term.",
	Run: func(cmd *cobra.Command, args []string) {
		c := createClients()
		term := parseTerm(*enrolledTerm)

		crns, err := c.sisweb.CoursesEnrolled(cmd.Context(), term)
		if err != nil {
			serviceutil.Fatal("failed to fetch enrolled courses", err)
		}
		for _, crn := range crns {
			fmt.Println(crn)
		}
	},
}
