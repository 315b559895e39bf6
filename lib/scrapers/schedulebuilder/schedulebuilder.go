// Package schedulebuilder scrapes Schedule Builder: saved schedules, pass
// times, course search, and registration itself.
package schedulebuilder

import (
	"context"
	"davisweb/lib/catalog"
	"davisweb/lib/session"
	"davisweb/lib/timezone"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("scrapers/schedulebuilder")

const DefaultBaseUrl = "https://my.ucdavis.edu/schedulebuilder"

const (
	registerEndpoint     = "/addCourseRegistration.cfm"
	addCourseEndpoint    = "/addCourseToSchedule.cfm"
	removeCourseEndpoint = "/removeCourseFromSchedule.cfm"
	courseSearchEndpoint = "/course_search/course_search_results.cfm"
	homeEndpoint         = "/index.cfm"
)

// ErrNoPassTimes means the portal has not assigned pass times for the term
// yet.
var ErrNoPassTimes = errors.New("no pass times are available for this term")

// RegistrationError is a registration attempt the portal rejected in prose.
type RegistrationError struct {
	Reason string
}

func (e *RegistrationError) Error() string {
	return e.Reason
}

// the portal reports registration failures as inline prose; anything else
// in the response has to be read as success
var registrationFailures = []session.FailureMarker{
	{Marker: "You are already enrolled or waitlisted for this course"},
	{Marker: "Registration is not yet available for this term"},
	{Marker: "Could not register you for this course"},
}

// ScheduleItem is one course in a saved schedule. Registration needs the
// units alongside the CRN.
type ScheduleItem struct {
	Crn   string
	Units int
}

// Client drives Schedule Builder for one identity. Most pages only render
// for the term the server-side session last visited, so operations go
// through a term navigator that re-visits the home page when the term
// changes.
type Client struct {
	guard session.Guard
	nav   *session.Navigator
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
	c.nav = session.NewNavigator(c.visitTerm)
	return c, nil
}

func (c *Client) visitTerm(ctx context.Context, termCode string) error {
	_, err := c.guard.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   homeEndpoint,
		Query:  url.Values{"termCode": {termCode}},
	})
	return err
}

func (c *Client) home(ctx context.Context, term catalog.Term) (*resty.Response, error) {
	return c.guard.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   homeEndpoint,
		Query:  url.Values{"termCode": {term.Code()}},
	})
}

var registeredRe = regexp.MustCompile(`CourseDetails\.t(.+?)\.REGISTRATION_STATUS = "(Registered|Waitlisted)"`)

// RegisteredCourses returns the CRNs the student is registered or
// waitlisted for in the term.
func (c *Client) RegisteredCourses(ctx context.Context, term catalog.Term) ([]string, error) {
	ctx, span := tracer.Start(ctx, "schedulebuilder:RegisteredCourses")
	defer span.End()

	res, err := c.home(ctx, term)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch home page")
		return nil, err
	}

	var crns []string
	for _, match := range registeredRe.FindAllStringSubmatch(res.String(), -1) {
		crns = append(crns, match[1])
	}
	// a home fetch doubles as a visit for term-sensitive endpoints
	_ = c.nav.Ensure(ctx, term.Code())
	return crns, nil
}

var passTimeRe = regexp.MustCompile(`PassTime1":new Date\((.+?)\),"PassTime2":new Date\((.+?)\)}`)

// PassTimes returns the student's two registration pass times for the term,
// or ErrNoPassTimes when the portal has not published them.
func (c *Client) PassTimes(ctx context.Context, term catalog.Term) (pass1, pass2 time.Time, err error) {
	ctx, span := tracer.Start(ctx, "schedulebuilder:PassTimes")
	defer span.End()

	res, err := c.home(ctx, term)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch home page")
		return time.Time{}, time.Time{}, err
	}

	match := passTimeRe.FindStringSubmatch(res.String())
	if match == nil {
		span.SetStatus(codes.Error, ErrNoPassTimes.Error())
		return time.Time{}, time.Time{}, ErrNoPassTimes
	}
	pass1, err = parseJsDate(match[1])
	if err != nil {
		span.RecordError(err)
		return time.Time{}, time.Time{}, err
	}
	pass2, err = parseJsDate(match[2])
	if err != nil {
		span.RecordError(err)
		return time.Time{}, time.Time{}, err
	}
	return pass1, pass2, nil
}

// parseJsDate parses the argument list of an inline javascript Date literal,
// e.g. "2014,11 - 1,15,7,0,0". The month argument is written as the human
// month minus one, so the leading literal is already 1-based.
func parseJsDate(args string) (time.Time, error) {
	parts := strings.Split(args, ",")
	if len(parts) < 5 {
		return time.Time{}, fmt.Errorf("pass time has too few date arguments: %q", args)
	}
	fields := make([]int, 5)
	for i := range fields {
		token := strings.Fields(parts[i])
		if len(token) == 0 {
			return time.Time{}, fmt.Errorf("pass time has an empty date argument: %q", args)
		}
		n, err := strconv.Atoi(token[0])
		if err != nil {
			return time.Time{}, fmt.Errorf("pass time has a bad date argument %q: %w", parts[i], err)
		}
		fields[i] = n
	}
	return time.Date(
		fields[0], time.Month(fields[1]), fields[2],
		fields[3], fields[4], 0, 0,
		timezone.Location,
	), nil
}

var (
	scheduleNameRe   = regexp.MustCompile(`Schedules\[Schedules\.length\] = \{"Name":"(.+?)"`)
	scheduleCourseRe = regexp.MustCompile(`(?s)Schedules\[Schedules\.length - 1\]\.SelectedList\.t([0-9A-Z]+) =.+?"UNITS":"([0-9])"`)
)

// Schedules returns the student's saved schedules for the term, keyed by
// schedule name.
func (c *Client) Schedules(ctx context.Context, term catalog.Term) (map[string][]ScheduleItem, error) {
	ctx, span := tracer.Start(ctx, "schedulebuilder:Schedules")
	defer span.End()

	res, err := c.home(ctx, term)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch home page")
		return nil, err
	}
	body := res.String()

	// schedules are only present as inline javascript; each name literal
	// starts a segment that runs to the next name literal
	names := scheduleNameRe.FindAllStringSubmatchIndex(body, -1)
	schedules := make(map[string][]ScheduleItem, len(names))
	for i, loc := range names {
		name := body[loc[2]:loc[3]]
		end := len(body)
		if i+1 < len(names) {
			end = names[i+1][0]
		}
		segment := body[loc[0]:end]

		var items []ScheduleItem
		for _, match := range scheduleCourseRe.FindAllStringSubmatch(segment, -1) {
			units, _ := strconv.Atoi(match[2])
			items = append(items, ScheduleItem{Crn: match[1], Units: units})
		}
		schedules[name] = items
	}
	return schedules, nil
}

// AddCourse adds a course to a saved schedule. This does not register it.
func (c *Client) AddCourse(ctx context.Context, term catalog.Term, schedule, crn string) error {
	ctx, span := tracer.Start(ctx, "schedulebuilder:AddCourse")
	defer span.End()

	if err := c.nav.Ensure(ctx, term.Code()); err != nil {
		span.RecordError(err)
		return err
	}
	_, err := c.guard.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   addCourseEndpoint,
		Query:  scheduleQuery(term, schedule, crn),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to add course")
	}
	return err
}

// RemoveCourse removes a course from a saved schedule.
func (c *Client) RemoveCourse(ctx context.Context, term catalog.Term, schedule, crn string) error {
	ctx, span := tracer.Start(ctx, "schedulebuilder:RemoveCourse")
	defer span.End()

	if err := c.nav.Ensure(ctx, term.Code()); err != nil {
		span.RecordError(err)
		return err
	}
	_, err := c.guard.Do(ctx, session.Request{
		Method: http.MethodGet,
		Path:   removeCourseEndpoint,
		Query:  scheduleQuery(term, schedule, crn),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to remove course")
	}
	return err
}

func scheduleQuery(term catalog.Term, schedule, crn string) url.Values {
	return url.Values{
		"Term":      {term.Code()},
		"Schedule":  {schedule},
		"CourseID":  {crn},
		"ShowDebug": {"0"},
		"_":         {strconv.FormatInt(time.Now().UnixMilli(), 10)},
	}
}

// RegisterCourses registers the given courses, optionally waiting until `at`
// (a pass time, typically). A zero `at` registers immediately. The term
// visit happens before the wait so the registration request itself is the
// only thing issued when the window opens.
//
// The portal only ever reports failure in prose; a response without a known
// failure marker is treated as success.
func (c *Client) RegisterCourses(
	ctx context.Context,
	term catalog.Term,
	schedule string,
	items []ScheduleItem,
	allowWaitlisting bool,
	at time.Time,
) error {
	ctx, span := tracer.Start(ctx, "schedulebuilder:RegisterCourses")
	defer span.End()

	if len(items) == 0 {
		return &RegistrationError{Reason: "there are no courses to register"}
	}
	if err := c.nav.Ensure(ctx, term.Code()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to select term")
		return err
	}

	crns := make([]string, len(items))
	units := make([]string, len(items))
	for i, item := range items {
		crns[i] = item.Crn
		units[i] = strconv.Itoa(item.Units)
	}
	waitlist := "N"
	if allowWaitlisting {
		waitlist = "Y"
	}

	err := session.ExecuteAt(ctx, at, func(ctx context.Context) error {
		res, err := c.guard.Do(ctx, session.Request{
			Method: http.MethodGet,
			Path:   registerEndpoint,
			Query: url.Values{
				"Term":            {term.Code()},
				"CourseCRNs":      {strings.Join(crns, ",")},
				"Schedule":        {schedule},
				"WaitlistedFlags": {waitlist},
				"Units":           {strings.Join(units, ",")},
				"ShowDebug":       {"0"},
				"_":               {strconv.FormatInt(time.Now().UnixMilli(), 10)},
			},
		})
		if err != nil {
			return err
		}
		failures := session.Classifier{FailureMarkers: registrationFailures}
		var domainErr *session.DomainError
		if err := failures.Classify(nil, res.String()); err != nil {
			if errors.As(err, &domainErr) {
				return &RegistrationError{Reason: domainErr.Reason}
			}
			return err
		}
		slog.WarnContext(
			ctx, "registration request accepted without confirmation, verify with RegisteredCourses",
			"term", term.Code(),
			"crns", strings.Join(crns, ","),
		)
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "registration failed")
	}
	return err
}

// RegisterSchedule registers every course in a saved schedule by name.
func (c *Client) RegisterSchedule(
	ctx context.Context,
	term catalog.Term,
	schedule string,
	allowWaitlisting bool,
	at time.Time,
) error {
	ctx, span := tracer.Start(ctx, "schedulebuilder:RegisterSchedule")
	defer span.End()

	schedules, err := c.Schedules(ctx, term)
	if err != nil {
		span.RecordError(err)
		return err
	}
	items, ok := schedules[schedule]
	if !ok {
		err := &session.DomainError{
			Reason: fmt.Sprintf("there is no schedule named %q for term %s", schedule, term.Code()),
		}
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return c.RegisterCourses(ctx, term, schedule, items, allowWaitlisting, at)
}
