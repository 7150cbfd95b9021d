package bot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/absenlab/absen/config"
	"github.com/absenlab/absen/internal/httpclient"
	qt "github.com/absenlab/absen/internal/testing"
	"github.com/absenlab/absen/schedule"
	"github.com/absenlab/absen/state"
)

// replyServer captures sendMessage calls so tests can assert on replies.
type replyServer struct {
	srv *httptest.Server

	mu      sync.Mutex
	replies []string
}

func newReplyServer(t *testing.T) *replyServer {
	t.Helper()
	rs := &replyServer{}
	rs.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/botTOK/sendMessage" {
			require.NoError(t, r.ParseForm())
			rs.mu.Lock()
			rs.replies = append(rs.replies, r.PostFormValue("text"))
			rs.mu.Unlock()
		}
		w.Write([]byte(`{"ok":true,"result":[]}`))
	}))
	t.Cleanup(rs.srv.Close)
	return rs
}

func (rs *replyServer) sent() []string {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]string(nil), rs.replies...)
}

func (rs *replyServer) last() string {
	replies := rs.sent()
	if len(replies) == 0 {
		return ""
	}
	return replies[len(replies)-1]
}

// botMonday is 08:00 local, a quarter hour before student1's class.
var botMonday = time.Date(2026, time.March, 2, 8, 0, 0, 0, time.Local)

func newTestBot(t *testing.T, rs *replyServer, store *state.Store) *Bot {
	t.Helper()
	resolve := func(chatID string) (string, bool) {
		if chatID == "42" {
			return "student1", true
		}
		return "", false
	}
	start, err := schedule.ParseMinute("08:15")
	require.NoError(t, err)
	end, err := schedule.ParseMinute("10:00")
	require.NoError(t, err)
	schedules := func(username string) (schedule.Set, bool) {
		if username != "student1" {
			return nil, false
		}
		return schedule.Set{{
			Course: "Data Science Basics",
			Day:    time.Monday,
			Start:  start,
			End:    end,
		}}, true
	}
	configPath := filepath.Join(t.TempDir(), "absen.toml")
	return New("TOK", store, resolve, schedules, configPath, zap.NewNop().Sugar(),
		WithAPIBase(rs.srv.URL), WithClient(httpclient.Wrap(rs.srv.Client())),
		WithClock(func() time.Time { return botMonday }))
}

func TestHelpCommand(t *testing.T) {
	rs := newReplyServer(t)
	b := newTestBot(t, rs, state.NewStore(qt.CreateTestDB(t)))

	b.handleMessage(context.Background(), "42", "/help")

	assert.Contains(t, rs.last(), "/pause")
	assert.Contains(t, rs.last(), "/mystatus")
}

func TestUnknownCommand(t *testing.T) {
	rs := newReplyServer(t)
	b := newTestBot(t, rs, state.NewStore(qt.CreateTestDB(t)))

	b.handleMessage(context.Background(), "42", "/frobnicate")

	assert.Contains(t, rs.last(), "Unknown command")
}

func TestCommandWithBotMention(t *testing.T) {
	rs := newReplyServer(t)
	store := state.NewStore(qt.CreateTestDB(t))
	b := newTestBot(t, rs, store)

	b.handleMessage(context.Background(), "42", "/pause@AbsenBot")

	_, _, paused, err := store.PauseState(context.Background(), "student1")
	require.NoError(t, err)
	assert.True(t, paused)
}

func TestPauseResumeCommands(t *testing.T) {
	rs := newReplyServer(t)
	store := state.NewStore(qt.CreateTestDB(t))
	b := newTestBot(t, rs, store)
	ctx := context.Background()

	b.handleMessage(ctx, "42", "/pause")
	mode, _, paused, err := store.PauseState(ctx, "student1")
	require.NoError(t, err)
	assert.True(t, paused)
	assert.Equal(t, state.PauseIndefinite, mode)

	b.handleMessage(ctx, "42", "/resume")
	_, _, paused, err = store.PauseState(ctx, "student1")
	require.NoError(t, err)
	assert.False(t, paused)

	b.handleMessage(ctx, "42", "/pauseonce")
	mode, course, paused, err := store.PauseState(ctx, "student1")
	require.NoError(t, err)
	assert.True(t, paused)
	assert.Equal(t, state.PauseOnce, mode)
	assert.Equal(t, "Data Science Basics", course, "the one-shot flag names the next class")
	assert.Contains(t, rs.last(), "Data Science Basics")
}

func TestPauseOnceWithNoUpcomingClass(t *testing.T) {
	rs := newReplyServer(t)
	store := state.NewStore(qt.CreateTestDB(t))
	b := newTestBot(t, rs, store)
	// Late in the evening nothing is left to skip.
	b.now = func() time.Time { return botMonday.Add(14 * time.Hour) }

	b.handleMessage(context.Background(), "42", "/pauseonce")

	assert.Contains(t, rs.last(), "No upcoming class")
	_, _, paused, err := store.PauseState(context.Background(), "student1")
	require.NoError(t, err)
	assert.False(t, paused)
}

func TestCommandsFromUnlinkedChat(t *testing.T) {
	rs := newReplyServer(t)
	b := newTestBot(t, rs, state.NewStore(qt.CreateTestDB(t)))

	b.handleMessage(context.Background(), "999", "/pause")

	assert.Contains(t, rs.last(), "/setup")
}

func TestMyStatus(t *testing.T) {
	rs := newReplyServer(t)
	store := state.NewStore(qt.CreateTestDB(t))
	b := newTestBot(t, rs, store)
	ctx := context.Background()

	b.handleMessage(ctx, "42", "/mystatus")
	assert.Contains(t, rs.last(), "Nothing submitted yet")

	require.NoError(t, store.RecordAttendance(ctx, "student1", "Data Science Basics",
		time.Now(), state.OutcomeSubmitted, 1))

	b.handleMessage(ctx, "42", "/mystatus")
	assert.Contains(t, rs.last(), "Data Science Basics")
}

func TestSetupFlowEnrollsUser(t *testing.T) {
	rs := newReplyServer(t)
	b := newTestBot(t, rs, state.NewStore(qt.CreateTestDB(t)))
	ctx := context.Background()

	b.handleMessage(ctx, "77", "/setup")
	assert.Contains(t, rs.last(), "username")

	b.handleMessage(ctx, "77", "newstudent")
	assert.Contains(t, rs.last(), "password")

	b.handleMessage(ctx, "77", "s3cret")
	assert.Contains(t, rs.last(), "CSV")

	b.handleMessage(ctx, "77", "/data/newstudent.csv")
	assert.Contains(t, rs.last(), "enrolled")

	cfg, err := config.LoadFromFile(b.configPath)
	require.NoError(t, err)
	require.Len(t, cfg.Users, 1)
	assert.Equal(t, "newstudent", cfg.Users[0].Username)
	assert.Equal(t, "s3cret", cfg.Users[0].Password)
	assert.Equal(t, "/data/newstudent.csv", cfg.Users[0].Schedule)
	assert.Equal(t, "telegram", cfg.Users[0].NotifyChannel)
	assert.Equal(t, "77", cfg.Users[0].NotifyAddress)
}

func TestSetupCancel(t *testing.T) {
	rs := newReplyServer(t)
	b := newTestBot(t, rs, state.NewStore(qt.CreateTestDB(t)))
	ctx := context.Background()

	b.handleMessage(ctx, "77", "/setup")
	b.handleMessage(ctx, "77", "/cancel")
	assert.Contains(t, rs.last(), "cancelled")

	// Plain text after cancel is no longer consumed by the flow.
	b.handleMessage(ctx, "77", "hello")
	assert.Contains(t, rs.last(), "/help")
}

func TestPlainTextGetsHint(t *testing.T) {
	rs := newReplyServer(t)
	b := newTestBot(t, rs, state.NewStore(qt.CreateTestDB(t)))

	b.handleMessage(context.Background(), "42", "good morning")

	assert.Contains(t, rs.last(), "/help")
}
