package commands

import (
	"davisweb/lib/util/serviceutil"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var passtimesTerm *string

func init() {
	passtimesTerm = passtimesCmd.Flags().String("term", "", "The term code, e.g. 201410.")
	passtimesCmd.MarkFlagRequired("term")
	rootCmd.AddCommand(passtimesCmd)
}

var passtimesCmd = &cobra.Command{
	Use:   "passtimes --term <code>",
	Short: "Shows your registration pass times for a term.",
	Run: func(cmd *cobra.Command, args []string) {
		c := createClients()
		term := parseTerm(*passtimesTerm)

		pass1, pass2, err := c.builder.PassTimes(cmd.Context(), term)
		if err != nil {
			serviceutil.Fatal("failed to fetch pass times", err)
		}

		fmt.Printf("pass 1: %s\n", pass1.Format(time.RFC1123))
		fmt.Printf("pass 2: %s\n", pass2.Format(time.RFC1123))
	},
}
