// Package spada implements the portal driver against a SPADA (Moodle)
// instance over plain HTTP. No browser automation: login, course lookup,
// and attendance submission are done by walking the same pages and forms
// a browser would, with a cookie-jar session per user.
package spada

import (
	"context"
	"html"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/absenlab/absen/driver"
	"github.com/absenlab/absen/errors"
	"github.com/absenlab/absen/internal/httpclient"
)

var (
	loginTokenRe = regexp.MustCompile(`name="logintoken"\s+value="([^"]+)"`)
	sessKeyRe    = regexp.MustCompile(`"sesskey":"([^"]+)"`)
	courseLinkRe = regexp.MustCompile(`href="[^"]*/course/view\.php\?id=(\d+)"[^>]*>([^<]+)<`)
	moduleLinkRe = regexp.MustCompile(`href="([^"]*/mod/attendance/view\.php\?id=\d+)"`)
	submitLinkRe = regexp.MustCompile(`href="([^"]*/mod/attendance/attendance\.php\?[^"]*sessid=\d+[^"]*)"`)
	statusRe     = regexp.MustCompile(`value="(\d+)"[^>]*>\s*(?:<[^>]*>\s*)*([A-Za-z]+)`)
)

// Driver builds authenticated portal sessions. One Driver serves all
// users; each Login gets its own cookie jar so sessions never bleed.
type Driver struct {
	baseURL string
	timeout time.Duration
	// newClient lets tests substitute an httptest-backed client.
	newClient func(jar http.CookieJar) *httpclient.Client
}

// Option adjusts a Driver.
type Option func(*Driver)

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(drv *Driver) { drv.timeout = d }
}

// WithClientFactory overrides HTTP client construction. Tests use this to
// reach httptest servers.
func WithClientFactory(f func(jar http.CookieJar) *httpclient.Client) Option {
	return func(drv *Driver) { drv.newClient = f }
}

// New creates a driver for the portal at baseURL.
func New(baseURL string, opts ...Option) *Driver {
	d := &Driver{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.newClient == nil {
		d.newClient = func(jar http.CookieJar) *httpclient.Client {
			c := httpclient.New(d.timeout)
			c.Jar = jar
			return c
		}
	}
	return d
}

// Login authenticates and returns a live portal session. Rejected
// credentials wrap errors.ErrAuth; an unreachable portal wraps
// errors.ErrPortalUnreachable.
func (d *Driver) Login(ctx context.Context, creds driver.Credentials) (driver.Session, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, errors.Wrap(err, "cookie jar")
	}

	s := &session{
		client:  d.newClient(jar),
		baseURL: d.baseURL,
	}

	loginURL := d.baseURL + "/login/index.php"
	page, err := s.get(ctx, loginURL)
	if err != nil {
		return nil, err
	}

	form := url.Values{}
	form.Set("username", creds.Username)
	form.Set("password", creds.Password)
	if m := loginTokenRe.FindStringSubmatch(page); m != nil {
		form.Set("logintoken", m[1])
	}

	landing, err := s.postForm(ctx, loginURL, form)
	if err != nil {
		return nil, err
	}

	// Moodle serves the login form again on bad credentials.
	if loginTokenRe.MatchString(landing) || strings.Contains(landing, "loginerrors") {
		return nil, errors.Wrapf(errors.ErrAuth, "portal rejected login for %s", creds.Username)
	}

	if m := sessKeyRe.FindStringSubmatch(landing); m != nil {
		s.sesskey = m[1]
	}
	return s, nil
}

type session struct {
	client  *httpclient.Client
	baseURL string
	sesskey string
}

// Submit records attendance for the named course. The course is matched
// against the user's dashboard by case-insensitive prefix, the same loose
// match people use between timetable names and portal names.
func (s *session) Submit(ctx context.Context, course string) (driver.SubmitOutcome, error) {
	courseURL, err := s.findCourse(ctx, course)
	if err != nil {
		return 0, err
	}

	coursePage, err := s.get(ctx, courseURL)
	if err != nil {
		return 0, err
	}

	m := moduleLinkRe.FindStringSubmatch(coursePage)
	if m == nil {
		return 0, errors.Wrapf(errors.ErrCourseNotFound, "course %q has no attendance activity", course)
	}

	attendancePage, err := s.get(ctx, s.absolute(m[1]))
	if err != nil {
		return 0, err
	}

	if alreadyRecorded(attendancePage) {
		return driver.OutcomeAlreadySubmitted, nil
	}

	link := submitLinkRe.FindStringSubmatch(attendancePage)
	if link == nil {
		return 0, errors.Wrapf(errors.ErrSubmissionClosed, "no open attendance session for %q", course)
	}

	formURL := s.absolute(html.UnescapeString(link[1]))
	formPage, err := s.get(ctx, formURL)
	if err != nil {
		return 0, err
	}

	statusID, ok := presentStatus(formPage)
	if !ok {
		return 0, errors.Wrapf(errors.ErrSubmissionClosed, "no Present option for %q", course)
	}

	parsed, err := url.Parse(formURL)
	if err != nil {
		return 0, errors.Wrap(err, "parse submit URL")
	}
	q := parsed.Query()

	form := url.Values{}
	form.Set("sessid", q.Get("sessid"))
	form.Set("sesskey", s.sesskey)
	form.Set("status", statusID)
	form.Set("submitbutton", "Save changes")

	result, err := s.postForm(ctx, s.baseURL+"/mod/attendance/attendance.php", form)
	if err != nil {
		return 0, err
	}

	if alreadyRecorded(result) {
		return driver.OutcomeAlreadySubmitted, nil
	}
	if !strings.Contains(result, "attendance") {
		return 0, errors.Newf("unexpected response after submitting %q", course)
	}
	return driver.OutcomeSubmitted, nil
}

// Close ends the session. Cookie-backed sessions hold no resources worth
// releasing, but drivers backed by browsers do, so the interface keeps it.
func (s *session) Close() error {
	return nil
}

func (s *session) findCourse(ctx context.Context, course string) (string, error) {
	dashboard, err := s.get(ctx, s.baseURL+"/my/")
	if err != nil {
		return "", err
	}

	want := strings.ToLower(strings.TrimSpace(course))
	for _, m := range courseLinkRe.FindAllStringSubmatch(dashboard, -1) {
		name := strings.ToLower(strings.TrimSpace(html.UnescapeString(m[2])))
		if strings.HasPrefix(name, want) || strings.HasPrefix(want, name) {
			return s.baseURL + "/course/view.php?id=" + m[1], nil
		}
	}
	return "", errors.Wrapf(errors.ErrCourseNotFound, "course %q not on dashboard", course)
}

func (s *session) get(ctx context.Context, rawURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	return s.do(req)
}

func (s *session) postForm(ctx context.Context, rawURL string, form url.Values) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", errors.Wrap(err, "build request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return s.do(req)
}

func (s *session) do(req *http.Request) (string, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		if errors.IsAny(err, context.Canceled, context.DeadlineExceeded) {
			return "", err
		}
		return "", errors.Wrapf(errors.ErrPortalUnreachable, "%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return "", errors.Wrapf(errors.ErrPortalUnreachable, "%s %s: status %d", req.Method, req.URL.Path, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", errors.Wrapf(errors.ErrPortalUnreachable, "read %s: %v", req.URL.Path, err)
	}
	return string(body), nil
}

func (s *session) absolute(href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	if !strings.HasPrefix(href, "/") {
		href = "/" + href
	}
	return s.baseURL + href
}

func alreadyRecorded(page string) bool {
	for _, marker := range []string{
		"Attendance has already been taken",
		"already been submitted",
		"Self-recorded",
	} {
		if strings.Contains(page, marker) {
			return true
		}
	}
	return false
}

// presentStatus scans the submission form's status radios for the one
// labelled Present and returns its value.
func presentStatus(page string) (string, bool) {
	for _, m := range statusRe.FindAllStringSubmatch(page, -1) {
		if strings.EqualFold(strings.TrimSpace(m[2]), "Present") {
			return m[1], true
		}
	}
	return "", false
}

var _ driver.Driver = (*Driver)(nil)
