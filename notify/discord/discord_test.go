package discord

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/absenlab/absen/internal/httpclient"
	"github.com/absenlab/absen/notify"
)

func newTestNotifier(t *testing.T, handler http.Handler) *Notifier {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("BOTTOKEN", WithAPIBase(srv.URL), WithClient(httpclient.Wrap(srv.Client())))
}

func TestSendOpensChannelThenPosts(t *testing.T) {
	var openCalls, postCalls int32
	var gotAuth, gotContent string

	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		switch r.URL.Path {
		case "/users/@me/channels":
			atomic.AddInt32(&openCalls, 1)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "555", body["recipient_id"])
			w.Write([]byte(`{"id":"chan-1"}`))
		case "/channels/chan-1/messages":
			atomic.AddInt32(&postCalls, 1)
			var body map[string]string
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			gotContent = body["content"]
			w.Write([]byte(`{"id":"msg-1"}`))
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	}))

	target := notify.Target{Channel: notify.ChannelDiscord, Address: "555"}
	require.NoError(t, n.Send(context.Background(), target, "first"))
	require.NoError(t, n.Send(context.Background(), target, "second"))

	// Channel is cached after the first send.
	assert.Equal(t, int32(1), openCalls)
	assert.Equal(t, int32(2), postCalls)
	assert.Equal(t, "Bot BOTTOKEN", gotAuth)
	assert.Equal(t, "second", gotContent)
}

func TestSendAPIError(t *testing.T) {
	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message":"Cannot send messages to this user","code":50007}`))
	}))

	err := n.Send(context.Background(), notify.Target{Address: "555"}, "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "50007")
}

func TestStaleChannelEvicted(t *testing.T) {
	var failPost atomic.Bool
	failPost.Store(true)
	var openCalls int32

	n := newTestNotifier(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/users/@me/channels":
			atomic.AddInt32(&openCalls, 1)
			w.Write([]byte(`{"id":"chan-1"}`))
		case "/channels/chan-1/messages":
			if failPost.Load() {
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte(`{"message":"Unknown Channel","code":10003}`))
				return
			}
			w.Write([]byte(`{"id":"msg-1"}`))
		}
	}))

	target := notify.Target{Address: "555"}
	require.Error(t, n.Send(context.Background(), target, "hi"))

	failPost.Store(false)
	require.NoError(t, n.Send(context.Background(), target, "hi"))
	assert.Equal(t, int32(2), openCalls)
}

func TestSendEmptyUserID(t *testing.T) {
	n := New("BOTTOKEN")
	assert.Error(t, n.Send(context.Background(), notify.Target{}, "hi"))
}

func TestName(t *testing.T) {
	assert.Equal(t, notify.ChannelDiscord, New("x").Name())
}
