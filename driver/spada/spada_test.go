package spada

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absenlab/absen/driver"
	"github.com/absenlab/absen/errors"
	"github.com/absenlab/absen/internal/httpclient"
)

// fakePortal is a minimal Moodle lookalike: login form with a token,
// dashboard, course page, attendance module, submission form.
type fakePortal struct {
	srv *httptest.Server

	// knobs
	rejectLogin   bool
	alreadyTaken  bool
	sessionClosed bool
	serverError   bool

	// observations
	submittedStatus string
	submittedSessID string
}

func newFakePortal(t *testing.T) *fakePortal {
	t.Helper()
	p := &fakePortal{}
	mux := http.NewServeMux()

	mux.HandleFunc("/login/index.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `<form><input type="hidden" name="logintoken" value="tok123"></form>`)
			return
		}
		require.NoError(t, r.ParseForm())
		if p.rejectLogin || r.PostFormValue("logintoken") != "tok123" {
			fmt.Fprint(w, `<div class="loginerrors">Invalid login</div>
				<input type="hidden" name="logintoken" value="tok456">`)
			return
		}
		fmt.Fprint(w, `<script>M.cfg = {"sesskey":"sk999"};</script><h1>Dashboard</h1>`)
	})

	mux.HandleFunc("/my/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/course/view.php?id=7">Data Science Basics - Class A</a>
			<a href="/course/view.php?id=8">Operating Systems</a>`)
	})

	mux.HandleFunc("/course/view.php", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<a href="/mod/attendance/view.php?id=42">Attendance</a>`)
	})

	mux.HandleFunc("/mod/attendance/view.php", func(w http.ResponseWriter, r *http.Request) {
		if p.serverError {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		if p.alreadyTaken {
			fmt.Fprint(w, `<td>Self-recorded</td>`)
			return
		}
		if p.sessionClosed {
			fmt.Fprint(w, `<p>No sessions open</p>`)
			return
		}
		fmt.Fprint(w, `<a href="/mod/attendance/attendance.php?sessid=9&amp;sesskey=sk999">Submit attendance</a>`)
	})

	mux.HandleFunc("/mod/attendance/attendance.php", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			fmt.Fprint(w, `<form>
				<label><input type="radio" name="status" value="840">Present</label>
				<label><input type="radio" name="status" value="841">Late</label>
				<label><input type="radio" name="status" value="842">Absent</label>
				</form>`)
			return
		}
		require.NoError(t, r.ParseForm())
		p.submittedStatus = r.PostFormValue("status")
		p.submittedSessID = r.PostFormValue("sessid")
		fmt.Fprint(w, `<p>Your attendance in this session has been recorded.</p>`)
	})

	p.srv = httptest.NewServer(mux)
	t.Cleanup(p.srv.Close)
	return p
}

func (p *fakePortal) driver() *Driver {
	return New(p.srv.URL, WithClientFactory(func(jar http.CookieJar) *httpclient.Client {
		return httpclient.Wrap(&http.Client{
			Transport: p.srv.Client().Transport,
			Jar:       jar,
		})
	}))
}

func login(t *testing.T, p *fakePortal) driver.Session {
	t.Helper()
	sess, err := p.driver().Login(context.Background(), driver.Credentials{
		Username: "student1",
		Password: "hunter2",
	})
	require.NoError(t, err)
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestLoginAndSubmit(t *testing.T) {
	p := newFakePortal(t)
	sess := login(t, p)

	outcome, err := sess.Submit(context.Background(), "Data Science Basics")
	require.NoError(t, err)
	assert.Equal(t, driver.OutcomeSubmitted, outcome)
	assert.Equal(t, "840", p.submittedStatus, "must pick the Present status")
	assert.Equal(t, "9", p.submittedSessID)
}

func TestLoginRejected(t *testing.T) {
	p := newFakePortal(t)
	p.rejectLogin = true

	_, err := p.driver().Login(context.Background(), driver.Credentials{
		Username: "student1",
		Password: "wrong",
	})
	require.Error(t, err)
	assert.True(t, errors.IsAuthError(err))
}

func TestSubmitAlreadyTaken(t *testing.T) {
	p := newFakePortal(t)
	p.alreadyTaken = true
	sess := login(t, p)

	outcome, err := sess.Submit(context.Background(), "Data Science Basics")
	require.NoError(t, err)
	assert.Equal(t, driver.OutcomeAlreadySubmitted, outcome)
}

func TestSubmitSessionClosed(t *testing.T) {
	p := newFakePortal(t)
	p.sessionClosed = true
	sess := login(t, p)

	_, err := sess.Submit(context.Background(), "Data Science Basics")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrSubmissionClosed))
}

func TestSubmitCourseNotFound(t *testing.T) {
	p := newFakePortal(t)
	sess := login(t, p)

	_, err := sess.Submit(context.Background(), "Quantum Basket Weaving")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCourseNotFound))
}

func TestSubmitPortalError(t *testing.T) {
	p := newFakePortal(t)
	p.serverError = true
	sess := login(t, p)

	_, err := sess.Submit(context.Background(), "Data Science Basics")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrPortalUnreachable))
}

func TestSubmitContextCancelled(t *testing.T) {
	p := newFakePortal(t)
	sess := login(t, p)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := sess.Submit(ctx, "Data Science Basics")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestCourseMatchIsPrefixInsensitive(t *testing.T) {
	p := newFakePortal(t)
	sess := login(t, p)

	outcome, err := sess.Submit(context.Background(), "data science basics")
	require.NoError(t, err)
	assert.Equal(t, driver.OutcomeSubmitted, outcome)
}
