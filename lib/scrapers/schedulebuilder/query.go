package schedulebuilder

import (
	"context"
	"davisweb/lib/catalog"
	"davisweb/lib/session"
	"davisweb/lib/textutil"
	"davisweb/lib/timezone"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
)

var geAreaNames = map[string]string{
	"AH":   "Arts & Humanities",
	"SE":   "Science & Engineering",
	"SS":   "Social Sciences",
	"ACGH": "American Cultures, Governance & History",
	"DD":   "Domestic Diversity",
	"OL":   "Oral Literacy",
	"QL":   "Quantitative Literacy",
	"SL":   "Scientific Literacy",
	"VL":   "Visual Literacy",
	"WC":   "World Cultures",
	"WE":   "Writing Experience",
}

const finalExamLayout = "January, 2 2006 15:04:05"

// CourseQueryOptions narrows a Schedule Builder course search. Only Term is
// required.
type CourseQueryOptions struct {
	Term catalog.Term
	// e.g. "040"
	CourseNumber string
	// subject code, e.g. "ECS"
	Subject string
	// first OR last name, the portal does not search full names
	Instructor string
	// earliest start / latest end, hour of day, empty for any
	Start string
	End   string
	// course number range, e.g. "001-099"
	Level string
	Units string
}

// recordSet is the ColdFusion query serialization the search endpoint
// returns: column names once, then rows as positional arrays. Values may
// themselves be recordSets, double-encoded as strings.
type recordSet struct {
	Columns []string            `json:"COLUMNS"`
	Data    [][]json.RawMessage `json:"DATA"`
}

type record map[string]any

// CourseQuery runs a Schedule Builder course search and returns fully
// populated course records. This is the richest course source of all the
// portals: it carries descriptions, GE areas, meetings, final exam times and
// live seat counts in one response.
func (c *Client) CourseQuery(ctx context.Context, opts CourseQueryOptions) ([]catalog.Course, error) {
	ctx, span := tracer.Start(ctx, "schedulebuilder:CourseQuery")
	defer span.End()

	if err := c.nav.Ensure(ctx, opts.Term.Code()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to select term")
		return nil, err
	}

	form := url.Values{
		"course_number":     {opts.CourseNumber},
		"subject":           {opts.Subject},
		"instructor":        {opts.Instructor},
		"course_start_eval": {"After"},
		"course_start_time": {orDash(opts.Start)},
		"course_end_eval":   {"Before"},
		"course_end_time":   {orDash(opts.End)},
		"course_level":      {orDash(opts.Level)},
		"course_units":      {orDash(opts.Units)},
		"course_status":     {"ALL"},
		"sortBy":            {""},
		"showMe":            {""},
		"runMe":             {"1"},
		"clearMe":           {"1"},
		"termCode":          {opts.Term.Code()},
		"expandFilters":     {""},
	}

	// the first search of a session sometimes answers with a priming page
	// instead of results; one retry settles it
	results, err := c.searchOnce(ctx, form)
	if err != nil {
		results, err = c.searchOnce(ctx, form)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course search failed")
		return nil, err
	}

	records, err := normalizeRecords(results)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to normalize course search results")
		return nil, err
	}

	courses := make([]catalog.Course, 0, len(records))
	for _, rec := range records {
		course, err := courseFromRecord(opts.Term, rec)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to parse course record")
			return nil, err
		}
		courses = append(courses, course)
	}
	return courses, nil
}

func (c *Client) searchOnce(ctx context.Context, form url.Values) (recordSet, error) {
	res, err := c.guard.Do(ctx, session.Request{
		Method: http.MethodPost,
		Path:   courseSearchEndpoint,
		Form:   form,
	})
	if err != nil {
		return recordSet{}, err
	}

	var payload struct {
		Results *recordSet `json:"Results"`
	}
	if err := json.Unmarshal(res.Body(), &payload); err != nil {
		return recordSet{}, fmt.Errorf("course search returned a non-JSON response: %w", err)
	}
	if payload.Results == nil {
		return recordSet{}, &session.MalformedPageError{
			Anchor: `"Results"`,
			Url:    res.Request.URL,
		}
	}
	return *payload.Results, nil
}

func orDash(v string) string {
	if v == "" {
		return "-"
	}
	return v
}

// normalizeRecords zips each positional row with the column names and
// recursively decodes nested record sets (instructors, meetings), which
// arrive as JSON strings shaped like {"QUERY": {...}}.
func normalizeRecords(rs recordSet) ([]record, error) {
	records := make([]record, 0, len(rs.Data))
	for _, row := range rs.Data {
		if len(row) != len(rs.Columns) {
			return nil, fmt.Errorf(
				"course search row has %d values for %d columns",
				len(row), len(rs.Columns),
			)
		}
		rec := make(record, len(rs.Columns))
		for i, col := range rs.Columns {
			var value any
			if err := json.Unmarshal(row[i], &value); err != nil {
				return nil, err
			}
			if s, ok := value.(string); ok && strings.HasPrefix(s, `{"QUERY":`) {
				var nested struct {
					Query recordSet `json:"QUERY"`
				}
				if err := json.Unmarshal([]byte(s), &nested); err != nil {
					return nil, err
				}
				inner, err := normalizeRecords(nested.Query)
				if err != nil {
					return nil, err
				}
				value = inner
			}
			rec[col] = value
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r record) str(key string) string {
	s, _ := r[key].(string)
	return s
}

func (r record) num(key string) float64 {
	switch v := r[key].(type) {
	case float64:
		return v
	case string:
		n, _ := strconv.ParseFloat(v, 64)
		return n
	}
	return 0
}

func (r record) records(key string) []record {
	nested, _ := r[key].([]record)
	return nested
}

func courseFromRecord(term catalog.Term, rec record) (catalog.Course, error) {
	unitsLow := rec.num("UNITS_LOW")
	unitsHigh := rec.num("UNITS_HIGH")
	// constant-unit courses come back with the bounds swapped
	if unitsLow > unitsHigh {
		unitsHigh = unitsLow
	}

	var instructor, instructorEmail string
	for _, instr := range rec.records("INSTRUCTORS") {
		if instr.str("PRIMARY_IND") != "Y" {
			continue
		}
		instructor = strings.TrimSpace(instr.str("FIRST_NAME") + " " + instr.str("LAST_NAME"))
		instructorEmail = instr.str("EMAIL")
		break
	}

	var geAreas []string
	for _, code := range strings.Split(rec.str("GE3CREDIT"), ",") {
		if code == "" {
			continue
		}
		name, ok := geAreaNames[code]
		if !ok {
			return catalog.Course{}, fmt.Errorf("unrecognized GE area code %q", code)
		}
		geAreas = append(geAreas, name)
	}

	var meetings []catalog.Meeting
	for _, m := range rec.records("COURSEMEETINGDATA") {
		meeting := catalog.Meeting{
			Days: strings.ReplaceAll(m.str("WEEKDAYS"), ",", ""),
			Type: m.str("MEET_TYPE_DESC_SHORT"),
		}
		// missing times mean TBA
		if begin, end := m.str("BEGIN_TIME"), m.str("END_TIME"); begin != "" && end != "" {
			var err error
			meeting.Start, err = clockToOffset(begin)
			if err != nil {
				return catalog.Course{}, err
			}
			meeting.End, err = clockToOffset(end)
			if err != nil {
				return catalog.Course{}, err
			}
		}
		meeting.Location = m.str("BLDG_DESC")
		if room := m.str("ROOM"); room != "" {
			meeting.Location += " " + room
		}
		meetings = append(meetings, meeting)
	}

	var finalExam time.Time
	if raw := rec.str("FINALEXAMSTARTDATE"); raw != "" {
		var err error
		finalExam, err = time.ParseInLocation(finalExamLayout, raw, timezone.Location)
		if err != nil {
			return catalog.Course{}, fmt.Errorf("bad final exam date %q: %w", raw, err)
		}
	}

	description := strings.TrimSpace(strings.ReplaceAll(
		strings.ReplaceAll(rec.str("DESCRIPTION"), "\n", " "), "\r", "",
	))

	subjectCode := rec.str("SUBJECT_CODE")
	number := rec.str("COURSE_NUMBER")

	return catalog.Course{
		Crn:                       rec.str("PASSEDCRN"),
		Term:                      term,
		Name:                      subjectCode + " " + number,
		SubjectCode:               subjectCode,
		Number:                    number,
		Section:                   rec.str("SEC"),
		Title:                     strings.TrimSpace(rec.str("TITLE")),
		Description:               description,
		Units:                     catalog.UnitRange{Low: unitsLow, High: unitsHigh},
		Instructor:                instructor,
		InstructorEmail:           instructorEmail,
		InstructorConsentRequired: rec.num("CONSENTOFINSRUCTORREQUIRED") != 0,
		GeAreas:                   geAreas,
		AvailableSeats:            int(rec.num("BLEND_SEATS_AVAIL")),
		WaitlistLength:            int(rec.num("BLEND_WAIT_COUNT")),
		Meetings:                  meetings,
		FinalExam:                 finalExam,
		DropTime:                  rec.str("ALLOWEDDROPDESC"),
		Prerequisites:             textutil.CleanCell(rec.str("PREREQUISITES")),
	}, nil
}

// clockToOffset converts a "HHMM" wall-clock string into an offset from
// midnight.
func clockToOffset(hhmm string) (time.Duration, error) {
	if len(hhmm) < 3 {
		return 0, fmt.Errorf("bad meeting time %q", hhmm)
	}
	hours, err := strconv.Atoi(hhmm[:len(hhmm)-2])
	if err != nil {
		return 0, fmt.Errorf("bad meeting time %q: %w", hhmm, err)
	}
	minutes, err := strconv.Atoi(hhmm[len(hhmm)-2:])
	if err != nil {
		return 0, fmt.Errorf("bad meeting time %q: %w", hhmm, err)
	}
	return time.Duration(hours)*time.Hour + time.Duration(minutes)*time.Minute, nil
}
