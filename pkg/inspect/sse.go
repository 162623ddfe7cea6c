package inspect

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/getgrove/grove/pkg/logging"
)

// sseKeepAliveInterval is how often a comment line is written to keep
// intermediaries from timing out an idle stream.
const sseKeepAliveInterval = 15 * time.Second

// SSEHandler exposes a feed as a text/event-stream endpoint for tools
// that cannot speak WebSocket. It accepts the same query parameters as
// WSHandler:
//
//	filter   doublestar glob over slash-form mutation paths
//	history  "1" to replay the retained history before live events
//
// Each feed event becomes one SSE event whose type is the feed kind,
// whose id is the sequence number, and whose data is the event JSON.
type SSEHandler struct {
	feed *Feed
	log  *slog.Logger
}

// NewSSEHandler creates a handler serving the given feed.
func NewSSEHandler(feed *Feed, log *slog.Logger) *SSEHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &SSEHandler{feed: feed, log: log}
}

// ServeHTTP streams feed events until the client disconnects or the
// feed closes.
func (h *SSEHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	pattern := r.URL.Query().Get("filter")
	replay := r.URL.Query().Get("history") == "1"

	sub, err := h.feed.Subscribe(pattern)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer h.feed.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	h.log.Debug("inspector attached over sse",
		"subscription", sub.ID(),
		"filter", pattern,
		"remote", r.RemoteAddr)

	if replay {
		for _, ev := range h.feed.History() {
			if err := writeSSEEvent(w, ev); err != nil {
				return
			}
		}
		flusher.Flush()
	}

	keepAlive := time.NewTicker(sseKeepAliveInterval)
	defer keepAlive.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case <-keepAlive.C:
			if _, err := w.Write([]byte(": keep-alive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeSSEEvent(w, ev); err != nil {
				h.log.Debug("inspector detached", "subscription", sub.ID(), "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSEEvent formats one feed event as an SSE frame. Multiline data
// is split into repeated data: fields per the event-stream format.
func writeSSEEvent(w http.ResponseWriter, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	var sb strings.Builder
	sb.WriteString("event: ")
	sb.WriteString(string(ev.Kind))
	sb.WriteByte('\n')
	sb.WriteString("id: ")
	sb.WriteString(strconv.FormatUint(ev.Seq, 10))
	sb.WriteByte('\n')
	for _, line := range strings.Split(string(data), "\n") {
		sb.WriteString("data: ")
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')

	_, err = w.Write([]byte(sb.String()))
	return err
}
