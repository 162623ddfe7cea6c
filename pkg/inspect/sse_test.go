package inspect

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sseRecorder is a flushable ResponseWriter safe to read while the
// handler goroutine is still writing.
type sseRecorder struct {
	mu     sync.Mutex
	header http.Header
	code   int
	body   strings.Builder
}

func newSSERecorder() *sseRecorder {
	return &sseRecorder{header: make(http.Header), code: http.StatusOK}
}

func (r *sseRecorder) Header() http.Header { return r.header }

func (r *sseRecorder) WriteHeader(code int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.code = code
}

func (r *sseRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.Write(p)
}

func (r *sseRecorder) Flush() {}

func (r *sseRecorder) Body() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.body.String()
}

func TestSSEHandler_ReplaysHistory(t *testing.T) {
	feed := NewFeed(8, nil)
	defer feed.Close()

	feed.Emit(Event{Kind: KindMutation, Path: "count", Mutation: "set", Value: 1}.
		WithGlobs("count"))
	feed.Emit(Event{Kind: KindFlush, Paths: []string{"count"}, Notified: 1})

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/feed/sse?history=1", nil).WithContext(ctx)
	rec := newSSERecorder()

	done := make(chan struct{})
	go func() {
		NewSSEHandler(feed, nil).ServeHTTP(rec, req)
		close(done)
	}()

	// Wait for the replayed frames, then hang up.
	require.Eventually(t, func() bool {
		return strings.Contains(rec.Body(), "event: flush")
	}, time.Second, 5*time.Millisecond)
	cancel()
	<-done

	body := rec.Body()
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Contains(t, body, "event: mutation")
	assert.Contains(t, body, "id: 1")
	assert.Contains(t, body, `"path":"count"`)
	assert.Contains(t, body, "event: flush")
}

func TestSSEHandler_InvalidFilter(t *testing.T) {
	feed := NewFeed(0, nil)
	defer feed.Close()

	req := httptest.NewRequest(http.MethodGet, "/feed/sse?filter=[", nil)
	rec := httptest.NewRecorder()
	NewSSEHandler(feed, nil).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
