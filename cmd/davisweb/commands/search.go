package commands

import (
	"davisweb/lib/scrapers/schedulebuilder"
	"davisweb/lib/util/serviceutil"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	searchTerm       *string
	searchSubject    *string
	searchNumber     *string
	searchInstructor *string
	searchDetail     *bool
)

func init() {
	searchTerm = searchCmd.Flags().String("term", "", "The term code to search in, e.g. 201410.")
	searchSubject = searchCmd.Flags().String("subject", "", "A subject code, e.g. ECS.")
	searchNumber = searchCmd.Flags().String("number", "", "A course number, e.g. 040.")
	searchInstructor = searchCmd.Flags().String("instructor", "", "An instructor first OR last name.")
	searchDetail = searchCmd.Flags().Bool("detail", false, "Fill in missing fields from the public registrar pages.")
	searchCmd.MarkFlagRequired("term")
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search --term <code> [--subject <code>] [--number <number>] [--instructor <name>]",
	Short: "Searches the course catalog through Schedule Builder.",
	Run: func(cmd *cobra.Command, args []string) {
		c := createClients()
		term := parseTerm(*searchTerm)

		courses, err := c.builder.CourseQuery(cmd.Context(), schedulebuilder.CourseQueryOptions{
			Term:         term,
			Subject:      *searchSubject,
			CourseNumber: *searchNumber,
			Instructor:   *searchInstructor,
		})
		if err != nil {
			serviceutil.Fatal("course search failed", err)
		}

		if *searchDetail {
			for i := range courses {
				detail, err := c.registrar.CourseDetail(cmd.Context(), term, courses[i].Crn)
				if err != nil {
					slog.Warn("failed to fetch registrar detail",
						"crn", courses[i].Crn, "err", err)
					continue
				}
				if err := courses[i].Merge(detail); err != nil {
					serviceutil.Fatal("failed to merge registrar detail", err)
				}
			}
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"CRN", "Course", "Sec", "Title", "Units", "Instructor", "Seats"})
		for _, course := range courses {
			t.AppendRow(table.Row{
				course.Crn,
				course.Name,
				course.Section,
				course.Title,
				course.Units.String(),
				course.Instructor,
				course.AvailableSeats,
			})
		}
		t.SetStyle(table.StyleRounded)
		t.Render()
	},
}
