package bot

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/absenlab/absen/internal/httpclient"
	qt "github.com/absenlab/absen/internal/testing"
	"github.com/absenlab/absen/state"
)

func TestRunPollsAndAdvancesOffset(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var offsets []string
	var replies []string

	mux := http.NewServeMux()
	mux.HandleFunc("/botTOK/getUpdates", func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		offsets = append(offsets, r.URL.Query().Get("offset"))
		calls := len(offsets)
		mu.Unlock()

		if calls == 1 {
			fmt.Fprint(w, `{"ok":true,"result":[
				{"update_id":100,"message":{"text":"/help","chat":{"id":42}}}
			]}`)
			return
		}
		// Second poll carries the advanced offset; stop the bot.
		cancel()
		fmt.Fprint(w, `{"ok":true,"result":[]}`)
	})
	mux.HandleFunc("/botTOK/sendMessage", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		mu.Lock()
		replies = append(replies, r.PostFormValue("text"))
		mu.Unlock()
		fmt.Fprint(w, `{"ok":true}`)
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	b := New("TOK", state.NewStore(qt.CreateTestDB(t)), nil, nil, "", zap.NewNop().Sugar(),
		WithAPIBase(srv.URL), WithClient(httpclient.Wrap(srv.Client())))

	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("bot did not stop after context cancellation")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(offsets), 2)
	assert.Equal(t, "", offsets[0])
	assert.Equal(t, "101", offsets[1], "offset must advance past handled updates")
	require.Len(t, replies, 1)
	assert.Contains(t, replies[0], "/pause")
}
