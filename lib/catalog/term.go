package catalog

import (
	"fmt"
	"strconv"
)

// Session is the two-digit suffix of a term code.
type Session string

const (
	WinterQuarter  Session = "01"
	SpringSemester Session = "02"
	SpringQuarter  Session = "03"
	SummerSession1 Session = "05"
	SummerSpecial  Session = "06"
	SummerSession2 Session = "07"
	FallSemester   Session = "09"
	FallQuarter    Session = "10"
)

var sessionNames = map[Session]string{
	WinterQuarter:  "Winter Quarter",
	SpringSemester: "Spring Semester",
	SpringQuarter:  "Spring Quarter",
	SummerSession1: "Summer Session 1",
	SummerSpecial:  "Summer Special Session",
	SummerSession2: "Summer Session 2",
	FallSemester:   "Fall Semester",
	FallQuarter:    "Fall Quarter",
}

// Term identifies one academic term, e.g. fall quarter 2014.
type Term struct {
	Year    int
	Session Session
}

// Code returns the code every portal uses to identify the term,
// e.g. "201410".
func (t Term) Code() string {
	return fmt.Sprintf("%04d%s", t.Year, t.Session)
}

func (t Term) String() string {
	name := sessionNames[t.Session]
	if name == "" {
		name = string(t.Session)
	}
	return fmt.Sprintf("%s %d", name, t.Year)
}

// ParseCode parses "201410" into Term{2014, FallQuarter}.
func ParseCode(code string) (Term, error) {
	if len(code) != 6 {
		return Term{}, fmt.Errorf("term code must be 6 digits: %q", code)
	}
	year, err := strconv.Atoi(code[:4])
	if err != nil {
		return Term{}, fmt.Errorf("term code must start with a year: %q", code)
	}
	s := Session(code[4:])
	if _, known := sessionNames[s]; !known {
		return Term{}, fmt.Errorf("unknown session code %q in term %q", code[4:], code)
	}
	return Term{Year: year, Session: s}, nil
}
