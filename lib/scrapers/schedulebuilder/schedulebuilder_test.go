package schedulebuilder

import (
	"context"
	"davisweb/lib/catalog"
	"davisweb/lib/session"
	"davisweb/lib/telemetry"
	"davisweb/lib/timezone"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// fakeBuilder serves recorded Schedule Builder pages and records the term
// codes and registration requests it sees.
type fakeBuilder struct {
	t *testing.T
	// registration responses carry this body
	registerBody string
	// search responses prime once before returning results when set
	searchPrimes bool

	mu            sync.Mutex
	homeVisits    []string
	searches      int
	registrations []url.Values
	registeredAt  time.Time
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func (f *fakeBuilder) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(homeEndpoint, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.homeVisits = append(f.homeVisits, r.URL.Query().Get("termCode"))
		f.mu.Unlock()
		w.Write(fixture(f.t, "home.html"))
	})
	mux.HandleFunc(courseSearchEndpoint, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.searches++
		prime := f.searchPrimes && f.searches == 1
		f.mu.Unlock()
		if prime {
			w.Write([]byte(`<html>search page shell</html>`))
			return
		}
		w.Write(fixture(f.t, "course_search.json"))
	})
	mux.HandleFunc(registerEndpoint, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.registrations = append(f.registrations, r.URL.Query())
		f.registeredAt = time.Now()
		f.mu.Unlock()
		body := f.registerBody
		if body == "" {
			body = `<html>ok</html>`
		}
		w.Write([]byte(body))
	})
	return mux
}

func (f *fakeBuilder) homeVisitCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.homeVisits)
}

func newTestClient(t *testing.T, fake *fakeBuilder) *Client {
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	identity, err := session.NewIdentity(session.IdentityOptions{
		Credentials: session.Credentials{Username: "alice", Password: "hunter2"},
		Timeout:     time.Second * 5,
	})
	require.NoError(t, err)

	client, err := NewClient(identity, srv.URL, nil, "cas.example.edu")
	require.NoError(t, err)
	return client
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	t.Cleanup(cancel)
	return ctx
}

var fallQuarter = catalog.Term{Year: 2014, Session: catalog.FallQuarter}

func TestRegisteredCourses(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:schedulebuilder")
	defer cleanup()

	fake := &fakeBuilder{t: t}
	client := newTestClient(t, fake)

	crns, err := client.RegisteredCourses(testContext(t), fallQuarter)
	require.NoError(t, err)
	// the course with status "None" is not registered
	require.Equal(t, []string{"74382", "52101"}, crns)
}

func TestPassTimes(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:schedulebuilder")
	defer cleanup()

	fake := &fakeBuilder{t: t}
	client := newTestClient(t, fake)

	pass1, pass2, err := client.PassTimes(testContext(t), fallQuarter)
	require.NoError(t, err)
	require.Equal(t, time.Date(2014, time.November, 15, 7, 0, 0, 0, timezone.Location), pass1)
	require.Equal(t, time.Date(2014, time.November, 17, 13, 30, 0, 0, timezone.Location), pass2)
}

func TestPassTimesUnavailable(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:schedulebuilder")
	defer cleanup()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(fixture(t, "home_no_passtimes.html"))
	}))
	t.Cleanup(srv.Close)

	identity, err := session.NewIdentity(session.IdentityOptions{
		Credentials: session.Credentials{Username: "alice"},
		Timeout:     time.Second * 5,
	})
	require.NoError(t, err)
	client, err := NewClient(identity, srv.URL, nil, "cas.example.edu")
	require.NoError(t, err)

	_, _, err = client.PassTimes(testContext(t), fallQuarter)
	require.ErrorIs(t, err, ErrNoPassTimes)
}

func TestSchedules(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:schedulebuilder")
	defer cleanup()

	fake := &fakeBuilder{t: t}
	client := newTestClient(t, fake)

	schedules, err := client.Schedules(testContext(t), fallQuarter)
	require.NoError(t, err)
	require.Len(t, schedules, 2)
	require.Equal(t, []ScheduleItem{
		{Crn: "74382", Units: 4},
		{Crn: "52101", Units: 4},
	}, schedules["My Schedule"])
	require.Equal(t, []ScheduleItem{
		{Crn: "60222", Units: 3},
	}, schedules["Backup"])
}

func TestTermNavigationIsCached(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:schedulebuilder")
	defer cleanup()

	fake := &fakeBuilder{t: t}
	client := newTestClient(t, fake)
	ctx := testContext(t)

	require.NoError(t, client.AddCourse(ctx, fallQuarter, "My Schedule", "74382"))
	visits := fake.homeVisitCount()
	require.Equal(t, 1, visits)

	// same term, no extra home visit
	require.NoError(t, client.AddCourse(ctx, fallQuarter, "My Schedule", "52101"))
	require.Equal(t, visits, fake.homeVisitCount())

	// a different term forces a fresh visit
	winter := catalog.Term{Year: 2015, Session: catalog.WinterQuarter}
	require.NoError(t, client.RemoveCourse(ctx, winter, "My Schedule", "52101"))
	require.Equal(t, visits+1, fake.homeVisitCount())
}

func TestCourseQuery(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:schedulebuilder")
	defer cleanup()

	fake := &fakeBuilder{t: t, searchPrimes: true}
	client := newTestClient(t, fake)

	courses, err := client.CourseQuery(testContext(t), CourseQueryOptions{
		Term:    fallQuarter,
		Subject: "ECS",
	})
	require.NoError(t, err)
	require.Len(t, courses, 1)

	course := courses[0]
	require.Equal(t, "74382", course.Crn)
	require.Equal(t, "ECS 040", course.Name)
	require.Equal(t, "A01", course.Section)
	require.Equal(t, "Intro to Programming", course.Title)
	require.Equal(t, "Introduction to programming. Covers the basics.", course.Description)
	require.False(t, course.InstructorConsentRequired)
	// swapped unit bounds collapse to a constant
	require.Equal(t, catalog.UnitRange{Low: 4, High: 4}, course.Units)
	// the primary instructor wins even when listed second
	require.Equal(t, "Sean Davis", course.Instructor)
	require.Equal(t, "sdavis@example.edu", course.InstructorEmail)
	require.Equal(t, []string{"Science & Engineering", "Quantitative Literacy"}, course.GeAreas)
	require.Equal(t, 12, course.AvailableSeats)
	require.Equal(t, 3, course.WaitlistLength)
	require.Equal(t, "20 Day Drop", course.DropTime)
	require.Equal(t, "ECS 020; or equivalent", course.Prerequisites)
	require.Equal(t,
		time.Date(2014, time.December, 13, 13, 0, 0, 0, timezone.Location),
		course.FinalExam)

	require.Len(t, course.Meetings, 2)
	require.Equal(t, catalog.Meeting{
		Days:     "MWF",
		Start:    9 * time.Hour,
		End:      9*time.Hour + 50*time.Minute,
		Location: "Storer Hall 1322",
		Type:     "LEC",
	}, course.Meetings[0])
	// TBA meeting has no times
	require.Equal(t, time.Duration(0), course.Meetings[1].Start)
	require.Equal(t, "TBA", course.Meetings[1].Location)
}

func TestRegisterCourses(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:schedulebuilder")
	defer cleanup()

	fake := &fakeBuilder{t: t}
	client := newTestClient(t, fake)

	err := client.RegisterCourses(
		testContext(t), fallQuarter, "My Schedule",
		[]ScheduleItem{{Crn: "74382", Units: 4}, {Crn: "52101", Units: 4}},
		true, time.Time{},
	)
	require.NoError(t, err)

	require.Len(t, fake.registrations, 1)
	query := fake.registrations[0]
	require.Equal(t, "201410", query.Get("Term"))
	require.Equal(t, "74382,52101", query.Get("CourseCRNs"))
	require.Equal(t, "4,4", query.Get("Units"))
	require.Equal(t, "Y", query.Get("WaitlistedFlags"))
	require.Equal(t, "My Schedule", query.Get("Schedule"))
}

func TestRegisterCoursesWaitsForPassTime(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:schedulebuilder")
	defer cleanup()

	fake := &fakeBuilder{t: t}
	client := newTestClient(t, fake)

	at := time.Now().Add(300 * time.Millisecond)
	err := client.RegisterCourses(
		testContext(t), fallQuarter, "My Schedule",
		[]ScheduleItem{{Crn: "74382", Units: 4}},
		false, at,
	)
	require.NoError(t, err)
	require.False(t, fake.registeredAt.Before(at))
	require.Equal(t, "N", fake.registrations[0].Get("WaitlistedFlags"))
}

func TestRegisterCoursesFailure(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:schedulebuilder")
	defer cleanup()

	fake := &fakeBuilder{
		t:            t,
		registerBody: `<html>Could not register you for this course</html>`,
	}
	client := newTestClient(t, fake)

	err := client.RegisterCourses(
		testContext(t), fallQuarter, "My Schedule",
		[]ScheduleItem{{Crn: "74382", Units: 4}},
		true, time.Time{},
	)
	var regErr *RegistrationError
	require.ErrorAs(t, err, &regErr)
	require.Equal(t, "Could not register you for this course", regErr.Reason)
}

func TestRegisterScheduleUnknownName(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:schedulebuilder")
	defer cleanup()

	fake := &fakeBuilder{t: t}
	client := newTestClient(t, fake)

	err := client.RegisterSchedule(testContext(t), fallQuarter, "No Such Schedule", true, time.Time{})
	var domainErr *session.DomainError
	require.ErrorAs(t, err, &domainErr)
}

func TestParseJsDate(t *testing.T) {
	parsed, err := parseJsDate("2014,11 - 1,15,7,0,0")
	require.NoError(t, err)
	require.Equal(t, time.Date(2014, time.November, 15, 7, 0, 0, 0, timezone.Location), parsed)

	_, err = parseJsDate("2014,11")
	require.Error(t, err)
	_, err = parseJsDate("2014,eleven,15,7,0")
	require.Error(t, err)
}
