package commands

import (
	"davisweb/lib/seatstore"
	"davisweb/lib/timezone"
	"davisweb/lib/util/serviceutil"
	"davisweb/lib/util/sqliteutil"
	"log/slog"

	"github.com/spf13/cobra"
)

var (
	snapshotTerm *string
	snapshotDb   *string
)

func init() {
	snapshotTerm = snapshotCmd.Flags().String("term", "", "The term code, e.g. 201410.")
	snapshotDb = snapshotCmd.Flags().String("db", "seats.db", "The database to append seat snapshots to.")
	snapshotCmd.MarkFlagRequired("term")
	rootCmd.AddCommand(snapshotCmd)
}

var snapshotCmd = &cobra.Command{
	Use:   "snapshot --term <code> [--db <path/to/seats.db>] <crn> [crn...]",
	Short: "Records current seat availability for courses from the public registrar pages.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		c := createClients()
		term := parseTerm(*snapshotTerm)

		db, err := sqliteutil.OpenDB(seatstore.Schema, *snapshotDb)
		if err != nil {
			serviceutil.Fatal("failed to open db", err)
		}
		defer db.Close()
		store := seatstore.NewStore(db)

		var counts []seatstore.SeatCount
		for _, crn := range args {
			course, err := c.registrar.CourseDetail(cmd.Context(), term, crn)
			if err != nil {
				serviceutil.Fatal("failed to fetch course detail", err)
			}
			counts = append(counts, seatstore.SeatCount{
				Crn:           crn,
				Term:          term,
				Available:     course.AvailableSeats,
				MaxEnrollment: course.MaxEnrollment,
			})
			slog.Info("snapshotted seats",
				"crn", crn,
				"available", course.AvailableSeats,
				"max", course.MaxEnrollment)
		}

		err = store.Push(cmd.Context(), seatstore.PushRequest{
			Time:   timezone.Now(),
			Counts: counts,
		})
		if err != nil {
			serviceutil.Fatal("failed to write snapshots", err)
		}
	},
}
