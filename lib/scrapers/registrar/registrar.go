// Package registrar scrapes the public university registrar course pages.
// No login is involved; the pages are open, but they still reject bad
// queries in prose like every other portal.
package registrar

import (
	"bytes"
	"context"
	"davisweb/lib/catalog"
	"davisweb/lib/session"
	"davisweb/lib/textutil"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/net/html"
)

var tracer = otel.Tracer("scrapers/registrar")

const DefaultBaseUrl = "https://registrar.ucdavis.edu"

const (
	courseDetailEndpoint = "/courses/search/course.cfm"
	courseSearchEndpoint = "/courses/search/course_search_results.cfm"
)

// the detail page reports a bad crn/term pair only as an inline javascript
// alert
var detailFailures = session.Classifier{
	FailureMarkers: []session.FailureMarker{
		{Marker: "alert(", Reason: "the crn or term is invalid"},
	},
}

// too-broad searches are rejected in prose
var searchFailures = session.Classifier{
	FailureMarkers: []session.FailureMarker{
		{Marker: "Please refine", Reason: "the search matched too many courses, refine it"},
	},
}

const finalExamLayout = "2006 Monday, January 2 at 3:04 PM"

// Client reads the public registrar pages. It rides the shared identity's
// HTTP client for its cookie jar and instrumentation but never triggers a
// login.
type Client struct {
	Identity *session.Identity
	BaseUrl  string
}

func NewClient(identity *session.Identity, baseUrl string) Client {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	return Client{Identity: identity, BaseUrl: strings.TrimSuffix(baseUrl, "/")}
}

// CourseDetail fetches the registrar's detail page for one CRN. It is the
// only public source of per-course seat counts, making it usable without
// student credentials.
func (c Client) CourseDetail(ctx context.Context, term catalog.Term, crn string) (catalog.Course, error) {
	ctx, span := tracer.Start(ctx, "registrar:CourseDetail")
	defer span.End()

	res, err := c.Identity.Http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"crn":      crn,
			"termCode": term.Code(),
		}).
		Get(c.BaseUrl + courseDetailEndpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch course detail page")
		return catalog.Course{}, err
	}
	if cerr := detailFailures.Classify(nil, res.String()); cerr != nil {
		span.SetStatus(codes.Error, cerr.Error())
		return catalog.Course{}, cerr
	}

	course, err := parseDetail(res, term)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse course detail page")
		return catalog.Course{}, err
	}
	course.Term = term
	course.Crn = crn
	return course, nil
}

func parseDetail(res *resty.Response, term catalog.Term) (catalog.Course, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return catalog.Course{}, err
	}

	header := doc.Find("h1").First()
	strong := header.Find("strong").First()
	if strong.Length() == 0 {
		return catalog.Course{}, &session.MalformedPageError{
			Anchor: "h1 strong",
			Url:    res.Request.URL,
		}
	}

	var course catalog.Course

	// the header reads "<strong>ECS 040 A01</strong> - Intro to Programming"
	nameParts := strings.Fields(strong.Text())
	if len(nameParts) < 2 {
		return catalog.Course{}, fmt.Errorf("course header %q has no number", strong.Text())
	}
	course.SubjectCode = nameParts[0]
	course.Number = nameParts[1]
	course.Name = nameParts[0] + " " + nameParts[1]
	if len(nameParts) >= 3 {
		course.Section = nameParts[2]
	}
	title := strings.TrimPrefix(textutil.CleanCell(header.Text()), strong.Text())
	course.Title = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(title), "-"))

	doc.Find("td").Each(func(_ int, cell *goquery.Selection) {
		parseDetailCell(&course, term, cell)
	})

	// meetings live in the second table, one row per meeting after the
	// header row
	tables := doc.Find("table")
	if tables.Length() >= 2 {
		tables.Eq(1).Find("tr").Each(func(i int, row *goquery.Selection) {
			if i == 0 {
				return
			}
			cells := row.Find("td")
			if cells.Length() < 3 {
				return
			}
			meeting := catalog.Meeting{
				Days:     textutil.CleanCell(cells.Eq(0).Text()),
				Location: textutil.CleanCell(cells.Eq(2).Text()),
			}
			meeting.Start, meeting.End = parseMeetingTimes(textutil.CleanCell(cells.Eq(1).Text()))
			course.Meetings = append(course.Meetings, meeting)
		})
	}

	return course, nil
}

// parseDetailCell fills in the field a labeled detail cell carries, if any.
// Cells look like "<strong>Units:</strong> 4.0" with the value spread over
// the text nodes after the label.
func parseDetailCell(course *catalog.Course, term catalog.Term, cell *goquery.Selection) {
	label := strings.TrimSpace(cell.Find("strong").First().Text())
	if label == "" {
		return
	}
	segments := textSegments(cell)

	switch {
	case label == "Subject Area:":
		if len(segments) > 0 {
			course.Subject = strings.TrimSuffix(segments[0], ";")
		}
	case label == "Instructor:":
		if len(segments) > 0 {
			course.Instructor = segments[len(segments)-1]
		}
	case label == "Units:":
		if len(segments) > 0 {
			course.Units = parseUnits(segments[0])
		}
	case strings.Contains(label, "New GE Credit"):
		course.GeAreas = append(course.GeAreas, segments...)
	case label == "Available Seats:":
		if len(segments) > 0 {
			course.AvailableSeats, _ = strconv.Atoi(segments[0])
		}
	case label == "Maximum Enrollment:":
		if len(segments) > 0 {
			course.MaxEnrollment, _ = strconv.Atoi(segments[0])
		}
	case label == "Final Exam:":
		if len(segments) > 0 {
			// the page omits the year; "See Instructor" fails the
			// parse and leaves the field zero
			date := fmt.Sprintf("%d %s", term.Year, segments[0])
			if exam, err := time.Parse(finalExamLayout, date); err == nil {
				course.FinalExam = exam
			}
		}
	case label == "Description:":
		course.Description = longestSegment(segments)
	case label == "Course Drop:":
		if len(segments) > 0 {
			course.DropTime = segments[0]
		}
	case label == "Prerequisite:":
		course.Prerequisites = longestSegment(segments)
	}
}

// textSegments returns the cleaned text nodes of a cell, excluding the
// <strong> label, in document order.
func textSegments(cell *goquery.Selection) []string {
	var segments []string
	var walk func(n *html.Node, insideStrong bool)
	walk = func(n *html.Node, insideStrong bool) {
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			switch {
			case child.Type == html.TextNode && !insideStrong:
				if text := textutil.CleanCell(child.Data); text != "" {
					segments = append(segments, text)
				}
			case child.Type == html.ElementNode:
				walk(child, insideStrong || child.Data == "strong")
			}
		}
	}
	for _, node := range cell.Nodes {
		walk(node, false)
	}
	return segments
}

func longestSegment(segments []string) string {
	longest := ""
	for _, s := range segments {
		if len(s) > len(longest) {
			longest = s
		}
	}
	return longest
}

// parseUnits handles "4.0", "1.0 TO 5.0", and the older "1.0 OR 5.0".
func parseUnits(raw string) catalog.UnitRange {
	if units, err := strconv.ParseFloat(raw, 64); err == nil {
		return catalog.UnitRange{Low: units, High: units}
	}
	parts := strings.Split(raw, " TO ")
	if len(parts) == 1 {
		parts = strings.Split(raw, " OR ")
	}
	if len(parts) == 2 {
		low, lerr := strconv.ParseFloat(parts[0], 64)
		high, herr := strconv.ParseFloat(parts[1], 64)
		if lerr == nil && herr == nil {
			return catalog.UnitRange{Low: low, High: high}
		}
	}
	return catalog.UnitRange{}
}

// parseMeetingTimes parses "10:00 - 11:50 AM". The page only marks the end
// meridiem; a PM end with a morning-looking start means the meeting crosses
// noon.
func parseMeetingTimes(raw string) (start, end time.Duration) {
	parts := strings.Split(raw, " - ")
	if len(parts) != 2 {
		return 0, 0
	}
	startHour, startMinute, ok := splitClock(parts[0])
	if !ok {
		return 0, 0
	}
	endClock, meridiem, found := strings.Cut(parts[1], " ")
	if !found {
		return 0, 0
	}
	endHour, endMinute, ok := splitClock(endClock)
	if !ok {
		return 0, 0
	}

	if meridiem == "PM" {
		if startHour < 9 {
			startHour += 12
		}
		if endHour < 12 {
			endHour += 12
		}
	}
	start = time.Duration(startHour)*time.Hour + time.Duration(startMinute)*time.Minute
	end = time.Duration(endHour)*time.Hour + time.Duration(endMinute)*time.Minute
	return start, end
}

func splitClock(clock string) (hour, minute int, ok bool) {
	h, m, found := strings.Cut(clock, ":")
	if !found {
		return 0, 0, false
	}
	hour, herr := strconv.Atoi(h)
	minute, merr := strconv.Atoi(m)
	return hour, minute, herr == nil && merr == nil
}

// GE area display names to the search form's checkbox parameter names.
var geAreaParams = map[string]string{
	"Arts & Humanities":                         "G3AH",
	"Science & Engineering":                     "G3SE",
	"Social Sciences":                           "G3SS",
	"American Culture, Government, and History": "G3CGH",
	"Domestic Diversity":                        "G3DD",
	"Oral Literacy":                             "G3O",
	"Quantitative Literacy":                     "G3Q",
	"Scientific Literacy":                       "G3S",
	"Visual Literacy":                           "G3V",
	"World Culture":                             "G3WC",
	"Writing Experience":                        "G3W",
}

// CourseQueryOptions narrows a registrar course search. Only Term is
// required.
type CourseQueryOptions struct {
	Term catalog.Term
	// takes precedence over Name, the form shares one field for both
	Crn string
	// partial or complete course name, e.g. "ASA" or "ASA 001"
	Name       string
	Title      string
	Instructor string
	// subject code, e.g. "ECS"
	Subject string
	// hour-of-day bounds, 24h clock, zero for any
	Start int
	End   int
	// e.g. ["M", "W", "F"]; thursday is "TR"
	Days     []string
	OnlyOpen bool
	// course number range, e.g. "001-099"
	Level string
	// 1 through 9
	Units       string
	OnlyVirtual bool
	// GE area display names, see geAreaParams
	GeAreas []string
}

var crnOnclickRe = regexp.MustCompile(`crn=(.+?)&`)

// CourseQuery runs a registrar course search and returns the matching CRNs,
// deduplicated. The result rows carry full details only behind per-row
// clicks, so callers follow up with CourseDetail.
func (c Client) CourseQuery(ctx context.Context, opts CourseQueryOptions) ([]string, error) {
	ctx, span := tracer.Start(ctx, "registrar:CourseQuery")
	defer span.End()

	res, err := c.Identity.Http.R().
		SetContext(ctx).
		SetFormDataFromValues(searchForm(opts)).
		Post(c.BaseUrl + courseSearchEndpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course search failed")
		return nil, err
	}
	if cerr := searchFailures.Classify(nil, res.String()); cerr != nil {
		span.SetStatus(codes.Error, cerr.Error())
		return nil, cerr
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	seen := make(map[string]bool)
	var crns []string
	doc.Find("td[onclick]").Each(func(_ int, cell *goquery.Selection) {
		match := crnOnclickRe.FindStringSubmatch(cell.AttrOr("onclick", ""))
		if match == nil || seen[match[1]] {
			return
		}
		seen[match[1]] = true
		crns = append(crns, match[1])
	})
	return crns, nil
}

func searchForm(opts CourseQueryOptions) url.Values {
	form := url.Values{
		"termYear": {strconv.Itoa(opts.Term.Year)},
		"term":     {string(opts.Term.Session)},
		"termCode": {opts.Term.Code()},
	}
	// CRN and course name share one form field; CRN wins
	switch {
	case opts.Crn != "":
		form.Set("course_number", opts.Crn)
	case opts.Name != "":
		form.Set("course_number", opts.Name)
	}
	form.Set("course_title", opts.Title)
	form.Set("instructor", opts.Instructor)
	form.Set("subject", opts.Subject)

	if opts.Start != 0 {
		form.Set("course_start_eval", "After")
		if opts.Start < 12 {
			// AM classes start on the hour
			form.Set("course_start_time", fmt.Sprintf("%d:00", opts.Start))
		} else {
			// PM classes start ten minutes after the hour
			form.Set("course_start_time", fmt.Sprintf("%d:10", opts.Start))
		}
	}
	if opts.End != 0 {
		form.Set("course_end_eval", "Before")
		if opts.End < 12 {
			// AM classes end ten minutes before the hour
			form.Set("course_end_time", fmt.Sprintf("%d:50", opts.End-1))
		} else {
			// PM classes end on the hour
			form.Set("course_end_time", fmt.Sprintf("%d:00", opts.End))
		}
	}

	for _, day := range opts.Days {
		form.Add("days", day)
	}
	if opts.OnlyOpen {
		form.Set("course_status", "Open")
	}
	if opts.Level != "" {
		form.Set("course_level", opts.Level)
	}
	form.Set("course_units", opts.Units)
	if opts.OnlyVirtual {
		form.Set("virtual", "Y")
	}
	for _, area := range opts.GeAreas {
		if param, ok := geAreaParams[area]; ok {
			form.Set(param, "Y")
		}
	}
	return form
}
