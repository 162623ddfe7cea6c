package inspect

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	ws "github.com/coder/websocket"

	"github.com/getgrove/grove/pkg/logging"
)

// WSHandler exposes a feed over WebSocket so external debugging tools
// can attach to a running store. Each connection becomes one feed
// subscription; events are delivered as JSON text frames.
//
// Query parameters:
//
//	filter   doublestar glob over slash-form mutation paths
//	history  "1" to replay the retained history before live events
type WSHandler struct {
	feed *Feed
	log  *slog.Logger
}

// NewWSHandler creates a handler serving the given feed.
func NewWSHandler(feed *Feed, log *slog.Logger) *WSHandler {
	if log == nil {
		log = logging.Nop()
	}
	return &WSHandler{feed: feed, log: log}
}

// ServeHTTP upgrades the request and streams feed events until the
// client disconnects or the feed closes.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("filter")
	replay := r.URL.Query().Get("history") == "1"

	sub, err := h.feed.Subscribe(pattern)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer h.feed.Unsubscribe(sub)

	conn, err := ws.Accept(w, r, &ws.AcceptOptions{
		// Local debugging tool, any origin is fine.
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn("inspector websocket accept failed", "error", err)
		return
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	// CloseRead discards client frames and cancels the context when the
	// peer goes away.
	ctx := conn.CloseRead(r.Context())

	h.log.Debug("inspector attached",
		"subscription", sub.ID(),
		"filter", pattern,
		"remote", r.RemoteAddr)

	if replay {
		for _, ev := range h.feed.History() {
			if err := writeEvent(ctx, conn, ev); err != nil {
				return
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := writeEvent(ctx, conn, ev); err != nil {
				h.log.Debug("inspector detached", "subscription", sub.ID(), "error", err)
				return
			}
		}
	}
}

func writeEvent(ctx context.Context, conn *ws.Conn, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return conn.Write(ctx, ws.MessageText, data)
}
