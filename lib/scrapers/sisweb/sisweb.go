// Package sisweb scrapes the Banner-based student information service:
// enrolled/completed terms, the current course schedule, final grades, and
// the registration-side course search.
package sisweb

import (
	"bytes"
	"context"
	"davisweb/lib/catalog"
	"davisweb/lib/session"
	"davisweb/lib/textutil"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/sisweb")

const DefaultBaseUrl = "https://sisweb.ucdavis.edu/owa_service/owa"

const (
	mainMenuEndpoint               = "/twbkwbis.P_GenMenu?name=bmenu.P_MainMnu"
	gradeTermSelectEndpoint        = "/bwskogrd.P_ViewTermGrde"
	gradeEndpoint                  = "/bwskogrd.P_ViewGrde"
	registrationTermSelectEndpoint = "/bwskflib.P_SelDefTerm"
	registrationTermStoreEndpoint  = "/bwcklibs.P_StoreTerm"
	courseScheduleEndpoint         = "/bwskfshd.P_CrseSchdDetl"
	courseLookupEndpoint           = "/bwckgens.p_proc_term_date"
	courseQueryEndpoint            = "/bwskfcls.P_GetCrse"
	courseSearchEndpoint           = "/bwskfcls.p_sel_crse_search"
)

// Banner answers with this when the session id is stale; a second request
// with the freshly set cookie returns the real page.
var metaRefreshRe = regexp.MustCompile(`<meta http-equiv="refresh" content="0;url=`)

// Grade is one graded course from the term grade report.
type Grade struct {
	Letter         string
	UnitsEnrolled  float64
	UnitsCompleted float64
	UnitsAttempted float64
	GradePoints    float64
}

// Client drives the student information service for one identity.
type Client struct {
	guard   session.Guard
	regTerm *session.Navigator
}

func NewClient(identity *session.Identity, baseUrl string, auth session.Authenticator, authHost string) (*Client, error) {
	if baseUrl == "" {
		baseUrl = DefaultBaseUrl
	}
	guard, err := session.NewGuard(identity, baseUrl, auth, session.Classifier{
		AuthHosts: []string{authHost},
	})
	if err != nil {
		return nil, err
	}
	c := &Client{guard: guard}
	c.regTerm = session.NewNavigator(c.storeRegistrationTerm)
	return c, nil
}

// do issues the request through the guard, replaying once when Banner
// answers with its session-priming meta refresh page.
func (c *Client) do(ctx context.Context, req session.Request) (*resty.Response, error) {
	res, err := c.guard.Do(ctx, req)
	if err != nil {
		return res, err
	}
	if metaRefreshRe.MatchString(res.String()) {
		return c.guard.Do(ctx, req)
	}
	return res, nil
}

func (c *Client) get(ctx context.Context, path string) (*resty.Response, error) {
	return c.do(ctx, session.Request{Method: http.MethodGet, Path: path})
}

func (c *Client) post(ctx context.Context, path string, form url.Values) (*resty.Response, error) {
	return c.do(ctx, session.Request{Method: http.MethodPost, Path: path, Form: form})
}

// TermsEnrolled returns every term the student has registration information
// for, newest first as the portal lists them.
func (c *Client) TermsEnrolled(ctx context.Context) ([]catalog.Term, error) {
	ctx, span := tracer.Start(ctx, "sisweb:TermsEnrolled")
	defer span.End()

	res, err := c.get(ctx, registrationTermSelectEndpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch term select page")
		return nil, err
	}
	return termList(res)
}

// TermsCompleted returns every term the student has final grades for.
func (c *Client) TermsCompleted(ctx context.Context) ([]catalog.Term, error) {
	ctx, span := tracer.Start(ctx, "sisweb:TermsCompleted")
	defer span.End()

	res, err := c.get(ctx, gradeTermSelectEndpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch grade term select page")
		return nil, err
	}
	return termList(res)
}

// storeRegistrationTerm validates that the student actually has the term in
// their registration dropdown, then posts the selection into the server-side
// session. Used through the term navigator so repeated operations against
// the same term skip both round-trips.
func (c *Client) storeRegistrationTerm(ctx context.Context, termCode string) error {
	res, err := c.get(ctx, registrationTermSelectEndpoint)
	if err != nil {
		return err
	}
	terms, err := termList(res)
	if err != nil {
		return err
	}
	found := false
	for _, t := range terms {
		if t.Code() == termCode {
			found = true
			break
		}
	}
	if !found {
		return &session.DomainError{
			Reason: fmt.Sprintf("no enrollment information is available for term %s", termCode),
		}
	}

	_, err = c.post(ctx, registrationTermStoreEndpoint, url.Values{
		"term_in": {termCode},
	})
	return err
}

// CoursesEnrolled returns the course reference numbers of the student's
// current schedule in the given term.
func (c *Client) CoursesEnrolled(ctx context.Context, term catalog.Term) ([]string, error) {
	ctx, span := tracer.Start(ctx, "sisweb:CoursesEnrolled")
	defer span.End()

	if err := c.regTerm.Ensure(ctx, term.Code()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to select term")
		return nil, err
	}

	res, err := c.get(ctx, courseScheduleEndpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch course schedule")
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	var crns []string
	doc.Find("table.datadisplaytable").Each(func(_ int, table *goquery.Selection) {
		if !strings.HasSuffix(table.AttrOr("summary", ""), "course detail") {
			return
		}
		// the CRN sits in the first cell of the second row of each
		// per-course detail table
		rows := table.Find("tr")
		if rows.Length() < 2 {
			return
		}
		crn := textutil.CleanCell(rows.Eq(1).Find("td").First().Text())
		if crn != "" {
			crns = append(crns, crn)
		}
	})
	return crns, nil
}

// Grades returns the final grade report for the term, keyed by CRN.
func (c *Client) Grades(ctx context.Context, term catalog.Term) (map[string]Grade, error) {
	ctx, span := tracer.Start(ctx, "sisweb:Grades")
	defer span.End()

	res, err := c.get(ctx, gradeTermSelectEndpoint)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch grade term select page")
		return nil, err
	}
	terms, err := termList(res)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	found := false
	for _, t := range terms {
		if t == term {
			found = true
			break
		}
	}
	if !found {
		err := &session.DomainError{
			Reason: fmt.Sprintf("no final grades are available for %s", term),
		}
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	res, err = c.post(ctx, gradeEndpoint, url.Values{"term_in": {term.Code()}})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch grade report")
		return nil, err
	}
	return parseGrades(res)
}

func parseGrades(res *resty.Response) (map[string]Grade, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, err
	}

	var table *goquery.Selection
	doc.Find("table.datadisplaytable").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if strings.TrimSpace(t.Find("caption").First().Text()) == "Undergraduate Level - Qtr. Course work" {
			table = t
			return false
		}
		return true
	})
	if table == nil {
		return nil, &session.MalformedPageError{
			Anchor: "Undergraduate Level - Qtr. Course work",
			Url:    res.Request.URL,
		}
	}

	grades := make(map[string]Grade)
	var parseErr error
	table.Find("tr").Each(func(i int, row *goquery.Selection) {
		if i == 0 || parseErr != nil {
			return
		}
		cells := row.Find("td")
		if cells.Length() < 10 {
			return
		}
		text := func(idx int) string { return textutil.CleanCell(cells.Eq(idx).Text()) }
		units := func(idx int) float64 {
			v, err := strconv.ParseFloat(text(idx), 64)
			if err != nil && parseErr == nil {
				parseErr = fmt.Errorf("grade row %d: bad unit value %q", i, text(idx))
			}
			return v
		}
		grades[text(0)] = Grade{
			Letter:         text(5),
			UnitsEnrolled:  units(6),
			UnitsCompleted: units(7),
			UnitsAttempted: units(8),
			GradePoints:    units(9),
		}
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return grades, nil
}

// CourseQueryOptions narrows a registration-side course search. Only Term
// and Subject are required.
type CourseQueryOptions struct {
	Term    catalog.Term
	Subject string
	// e.g. "040"
	Number string
	Title  string
	// unit range, both empty for any
	FromCredit string
	ToCredit   string
	// hour-of-day bounds, 24h clock, zero for any
	Start int
	End   int
}

// CourseQuery runs the registration course search. Banner insists on the
// full menu walk (main menu, search page, date lookup) before it will honor
// the query itself.
func (c *Client) CourseQuery(ctx context.Context, opts CourseQueryOptions) ([]catalog.Course, error) {
	ctx, span := tracer.Start(ctx, "sisweb:CourseQuery")
	defer span.End()

	if _, err := c.get(ctx, mainMenuEndpoint); err != nil {
		span.RecordError(err)
		return nil, err
	}
	if _, err := c.get(ctx, courseSearchEndpoint); err != nil {
		span.RecordError(err)
		return nil, err
	}
	_, err := c.post(ctx, courseLookupEndpoint, url.Values{
		"p_calling_proc": {"P_CrseSearch"},
		"p_term":         {opts.Term.Code()},
		"p_by_date":      {"Y"},
		"p_from_date":    {""},
		"p_to_date":      {""},
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	res, err := c.post(ctx, courseQueryEndpoint, queryForm(opts))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "course query failed")
		return nil, err
	}
	courses, err := parseQueryResults(res, opts.Term)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse course query results")
		return nil, err
	}
	return courses, nil
}

func queryForm(opts CourseQueryOptions) url.Values {
	meridiem := func(hour int) string {
		if hour > 12 {
			return "p"
		}
		return "a"
	}
	return url.Values{
		"term_in": {opts.Term.Code()},
		// Banner requires a "dummy" first value on every multi-select
		"sel_subj":      {"dummy", opts.Subject},
		"sel_day":       {"dummy"},
		"sel_schd":      {"dummy"},
		"sel_insm":      {"dummy"},
		"sel_camp":      {"dummy"},
		"sel_levl":      {"dummy"},
		"sel_sess":      {"dummy"},
		"sel_instr":     {"dummy"},
		"sel_ptrm":      {"dummy"},
		"sel_attr":      {"dummy"},
		"sel_crse":      {opts.Number},
		"sel_title":     {opts.Title},
		"sel_from_cred": {opts.FromCredit},
		"sel_to_cred":   {opts.ToCredit},
		"begin_hh":      {strconv.Itoa(opts.Start % 12)},
		"begin_mi":      {"0"},
		"begin_ap":      {meridiem(opts.Start)},
		"end_hh":        {strconv.Itoa(opts.End % 12)},
		"end_mi":        {"0"},
		"end_ap":        {meridiem(opts.End)},
	}
}

func parseQueryResults(res *resty.Response, term catalog.Term) ([]catalog.Course, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, err
	}

	table := doc.Find("table.datadisplaytable").First()
	if table.Length() == 0 {
		// no matches renders a page with no results table at all
		return nil, nil
	}

	// the first header is the subject banner, not a column
	var colnames []string
	table.Find("th").Each(func(i int, th *goquery.Selection) {
		if i == 0 {
			return
		}
		colnames = append(colnames, textutil.CleanCell(th.Text()))
	})

	var courses []catalog.Course
	table.Find("tr").Each(func(_ int, row *goquery.Selection) {
		course := catalog.Course{Term: term}
		row.Find("td.dddefault").Each(func(idx int, cell *goquery.Selection) {
			if idx >= len(colnames) {
				return
			}
			value := textutil.CleanCell(cell.Text())
			switch colnames[idx] {
			case "CRN":
				course.Crn = value
			case "Subj":
				course.SubjectCode = value
			case "Crse":
				course.Number = value
			case "Sec":
				course.Section = value
			case "Title":
				course.Title = value
			case "Cap":
				course.MaxEnrollment, _ = strconv.Atoi(value)
			case "Rem":
				course.AvailableSeats, _ = strconv.Atoi(value)
			case "WL Cap":
				course.WaitlistCapacity, _ = strconv.Atoi(value)
			case "WL Act":
				course.WaitlistLength, _ = strconv.Atoi(value)
			case "XL Cap":
				course.CrosslistCapacity, _ = strconv.Atoi(value)
			case "XL Act":
				course.CrosslistLength, _ = strconv.Atoi(value)
			case "Instructor":
				course.Instructor = strings.TrimSuffix(value, " (P)")
			}
		})
		// continuation rows (extra meeting times) have no CRN
		if course.Crn == "" {
			return
		}
		course.Name = course.SubjectCode + " " + course.Number
		courses = append(courses, course)
	})
	return courses, nil
}

// termList extracts the term options from any page carrying the
// <select id="term_id"> dropdown.
func termList(res *resty.Response) ([]catalog.Term, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewBuffer(res.Body()))
	if err != nil {
		return nil, err
	}
	sel := doc.Find("select#term_id")
	if sel.Length() == 0 {
		return nil, &session.MalformedPageError{
			Anchor: `select#term_id`,
			Url:    res.Request.URL,
		}
	}

	var terms []catalog.Term
	var parseErr error
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		code, ok := opt.Attr("value")
		if !ok || parseErr != nil {
			return
		}
		term, err := catalog.ParseCode(code)
		if err != nil {
			parseErr = err
			return
		}
		terms = append(terms, term)
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return terms, nil
}
