package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUnitRangeString(t *testing.T) {
	require.Equal(t, "4", UnitRange{Low: 4, High: 4}.String())
	require.Equal(t, "1-5", UnitRange{Low: 1, High: 5}.String())
	require.Equal(t, "2.5", UnitRange{Low: 2.5, High: 2.5}.String())
}

func TestCourseMerge(t *testing.T) {
	term := Term{Year: 2014, Session: FallQuarter}

	course := Course{
		Crn:            "74382",
		Term:           term,
		Name:           "ECS 040",
		SubjectCode:    "ECS",
		Number:         "040",
		Title:          "Intro to Programming",
		AvailableSeats: 12,
	}
	supplement := Course{
		Crn:           "74382",
		Term:          term,
		Title:         "Introduction to Programming",
		Subject:       "Engineering Computer Science",
		Instructor:    "Sean Davis",
		MaxEnrollment: 90,
	}

	require.NoError(t, course.Merge(supplement))
	// populated fields win
	require.Equal(t, "Intro to Programming", course.Title)
	require.Equal(t, 12, course.AvailableSeats)
	// empty ones fill in
	require.Equal(t, "Engineering Computer Science", course.Subject)
	require.Equal(t, "Sean Davis", course.Instructor)
	require.Equal(t, 90, course.MaxEnrollment)
}

func TestCourseMergeRefusesDifferentOfferings(t *testing.T) {
	term := Term{Year: 2014, Session: FallQuarter}
	course := Course{Crn: "74382", Term: term}

	require.Error(t, course.Merge(Course{Crn: "99999", Term: term}))
	require.Error(t, course.Merge(Course{
		Crn:  "74382",
		Term: Term{Year: 2015, Session: FallQuarter},
	}))
}
