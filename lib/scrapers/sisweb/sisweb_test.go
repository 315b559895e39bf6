package sisweb

import (
	"context"
	"davisweb/lib/catalog"
	"davisweb/lib/session"
	"davisweb/lib/telemetry"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

// fakeBanner serves recorded pages, replaying Banner's session-priming meta
// refresh on the first hit of every endpoint when `primes` is set.
type fakeBanner struct {
	t      *testing.T
	primes bool

	mu     sync.Mutex
	primed map[string]bool
	hits   map[string]int
	// term most recently stored through P_StoreTerm
	storedTerm string
}

func fixture(t *testing.T, name string) []byte {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", name))
	require.NoError(t, err)
	return data
}

func (f *fakeBanner) serve(w http.ResponseWriter, r *http.Request, page string) {
	f.mu.Lock()
	f.hits[r.URL.Path]++
	if f.primes && !f.primed[r.URL.Path] {
		f.primed[r.URL.Path] = true
		f.mu.Unlock()
		w.Write([]byte(`<meta http-equiv="refresh" content="0;url=` + r.URL.Path + `">`))
		return
	}
	f.mu.Unlock()
	w.Write(fixture(f.t, page))
}

func (f *fakeBanner) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(registrationTermSelectEndpoint, func(w http.ResponseWriter, r *http.Request) {
		f.serve(w, r, "term_select.html")
	})
	mux.HandleFunc(gradeTermSelectEndpoint, func(w http.ResponseWriter, r *http.Request) {
		f.serve(w, r, "term_select.html")
	})
	mux.HandleFunc(registrationTermStoreEndpoint, func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		f.mu.Lock()
		f.storedTerm = r.PostForm.Get("term_in")
		f.hits[r.URL.Path]++
		f.mu.Unlock()
		w.Write([]byte(`<html>term stored</html>`))
	})
	mux.HandleFunc(courseScheduleEndpoint, func(w http.ResponseWriter, r *http.Request) {
		f.serve(w, r, "schedule.html")
	})
	mux.HandleFunc(gradeEndpoint, func(w http.ResponseWriter, r *http.Request) {
		f.serve(w, r, "grades.html")
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		// main menu, search page, date lookup, query results
		if r.Method == http.MethodPost && r.URL.Path == courseQueryEndpoint {
			f.serve(w, r, "course_query.html")
			return
		}
		f.mu.Lock()
		f.hits[r.URL.Path]++
		f.mu.Unlock()
		w.Write([]byte(`<html>menu</html>`))
	})
	return mux
}

func (f *fakeBanner) hitCount(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.hits[path]
}

func newTestClient(t *testing.T, primes bool) (*Client, *fakeBanner) {
	fake := &fakeBanner{
		t:      t,
		primes: primes,
		primed: map[string]bool{},
		hits:   map[string]int{},
	}
	srv := httptest.NewServer(fake.handler())
	t.Cleanup(srv.Close)

	identity, err := session.NewIdentity(session.IdentityOptions{
		Credentials: session.Credentials{Username: "alice", Password: "hunter2"},
		Timeout:     time.Second * 5,
	})
	require.NoError(t, err)

	client, err := NewClient(identity, srv.URL, nil, "cas.example.edu")
	require.NoError(t, err)
	return client, fake
}

func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	t.Cleanup(cancel)
	return ctx
}

func TestTermsEnrolled(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sisweb")
	defer cleanup()

	client, _ := newTestClient(t, false)
	terms, err := client.TermsEnrolled(testContext(t))
	require.NoError(t, err)
	require.Equal(t, []catalog.Term{
		{Year: 2014, Session: catalog.FallQuarter},
		{Year: 2014, Session: catalog.SpringQuarter},
		{Year: 2014, Session: catalog.WinterQuarter},
	}, terms)
}

func TestMetaRefreshReplay(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sisweb")
	defer cleanup()

	client, fake := newTestClient(t, true)
	terms, err := client.TermsEnrolled(testContext(t))
	require.NoError(t, err)
	require.Len(t, terms, 3)
	// one primed response plus one replay
	require.Equal(t, 2, fake.hitCount(registrationTermSelectEndpoint))
}

func TestCoursesEnrolled(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sisweb")
	defer cleanup()

	client, fake := newTestClient(t, false)
	term := catalog.Term{Year: 2014, Session: catalog.FallQuarter}

	crns, err := client.CoursesEnrolled(testContext(t), term)
	require.NoError(t, err)
	require.Equal(t, []string{"74382", "52101"}, crns)
	require.Equal(t, term.Code(), fake.storedTerm)

	// the second fetch for the same term skips the select/store round-trips
	selects := fake.hitCount(registrationTermSelectEndpoint)
	_, err = client.CoursesEnrolled(testContext(t), term)
	require.NoError(t, err)
	require.Equal(t, selects, fake.hitCount(registrationTermSelectEndpoint))
}

func TestCoursesEnrolledUnknownTerm(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sisweb")
	defer cleanup()

	client, _ := newTestClient(t, false)
	// 1999 is not in the student's dropdown
	_, err := client.CoursesEnrolled(testContext(t), catalog.Term{
		Year: 1999, Session: catalog.FallQuarter,
	})
	var domainErr *session.DomainError
	require.ErrorAs(t, err, &domainErr)
}

func TestGrades(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sisweb")
	defer cleanup()

	client, _ := newTestClient(t, false)
	term := catalog.Term{Year: 2014, Session: catalog.FallQuarter}

	grades, err := client.Grades(testContext(t), term)
	require.NoError(t, err)
	require.Len(t, grades, 2)
	require.Equal(t, Grade{
		Letter:         "A",
		UnitsEnrolled:  4,
		UnitsCompleted: 4,
		UnitsAttempted: 4,
		GradePoints:    16,
	}, grades["74382"])
	require.Equal(t, "B+", grades["52101"].Letter)
}

func TestGradesUnavailableTerm(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sisweb")
	defer cleanup()

	client, _ := newTestClient(t, false)
	_, err := client.Grades(testContext(t), catalog.Term{
		Year: 2020, Session: catalog.FallQuarter,
	})
	var domainErr *session.DomainError
	require.ErrorAs(t, err, &domainErr)
}

func TestCourseQuery(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:sisweb")
	defer cleanup()

	client, _ := newTestClient(t, false)
	term := catalog.Term{Year: 2014, Session: catalog.FallQuarter}

	courses, err := client.CourseQuery(testContext(t), CourseQueryOptions{
		Term:    term,
		Subject: "ECS",
	})
	require.NoError(t, err)

	// the continuation row with no CRN is dropped, and the "(P)" primary
	// instructor marker is stripped
	expected := []catalog.Course{
		{
			Crn:              "74382",
			Term:             term,
			Name:             "ECS 040",
			SubjectCode:      "ECS",
			Number:           "040",
			Section:          "A01",
			Title:            "Intro to Programming",
			Instructor:       "Sean Davis",
			MaxEnrollment:    90,
			AvailableSeats:   12,
			WaitlistCapacity: 20,
			WaitlistLength:   3,
		},
		{
			Crn:              "74401",
			Term:             term,
			Name:             "ECS 060",
			SubjectCode:      "ECS",
			Number:           "060",
			Section:          "A02",
			Title:            "Data Structures",
			Instructor:       "Rob Gysel",
			MaxEnrollment:    120,
			AvailableSeats:   0,
			WaitlistCapacity: 30,
			WaitlistLength:   11,
		},
	}
	if diff := cmp.Diff(expected, courses); diff != "" {
		t.Fatalf("unexpected courses (-want +got):\n%s", diff)
	}
}
