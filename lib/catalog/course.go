package catalog

import (
	"fmt"
	"time"

	"dario.cat/mergo"
)

type Meeting struct {
	// e.g. "TR" for tuesday/thursday
	Days string
	// offsets from midnight, both zero when the time is TBA
	Start time.Duration
	End   time.Duration
	// e.g. "Storer Hall 1322"
	Location string
	// e.g. "LEC", "DIS"
	Type string
}

type UnitRange struct {
	Low  float64
	High float64
}

func (u UnitRange) String() string {
	if u.Low == u.High {
		return fmt.Sprintf("%g", u.Low)
	}
	return fmt.Sprintf("%g-%g", u.Low, u.High)
}

// Course is the portal-agnostic course record. Each portal populates the
// subset of fields its pages carry; (CRN, Term) is the natural key.
type Course struct {
	// course reference number, e.g. "74382"
	Crn  string
	Term Term

	// e.g. "ECS 040"
	Name string
	// e.g. "ECS"
	SubjectCode string
	// e.g. "Engineering Computer Science"
	Subject string
	// e.g. "040"
	Number string
	// e.g. "A01"
	Section     string
	Title       string
	Description string
	Units       UnitRange

	Instructor                string
	InstructorEmail           string
	InstructorConsentRequired bool

	// GE areas satisfied, e.g. ["Arts & Humanities", "Oral Literacy"]
	GeAreas []string

	AvailableSeats    int
	MaxEnrollment     int
	WaitlistCapacity  int
	WaitlistLength    int
	CrosslistCapacity int
	CrosslistLength   int

	Meetings []Meeting

	// zero when there is no exam or the page says "See Instructor"
	FinalExam time.Time
	// e.g. "20 Day Drop"
	DropTime      string
	Prerequisites string
}

// Same reports whether two records describe the same offering, independent
// of which portal populated the remaining fields.
func (c Course) Same(other Course) bool {
	return c.Crn == other.Crn && c.Term == other.Term
}

// Merge fills this record's empty fields from a supplementary source, e.g.
// a registrar detail fetch layered under a schedule builder search result.
// Populated fields win over the supplement.
func (c *Course) Merge(supplement Course) error {
	if !c.Same(supplement) {
		return fmt.Errorf(
			"refusing to merge records for different offerings: %s/%s vs %s/%s",
			c.Crn, c.Term.Code(), supplement.Crn, supplement.Term.Code(),
		)
	}
	return mergo.Merge(c, supplement)
}
