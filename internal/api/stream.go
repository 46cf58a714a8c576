package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"campus-events/internal/actor"
	"campus-events/internal/apperr"
)

const streamHeartbeat = 30 * time.Second

// StreamNotifications pushes the caller's new notifications as server-sent
// events until the client disconnects.
func (h *Handler) StreamNotifications(w http.ResponseWriter, r *http.Request) {
	a := actor.FromContext(r.Context())
	if h.Stream == nil {
		writeError(w, h.Logger, r, apperr.NotFound("notification stream is not enabled"))
		return
	}

	rc := http.NewResponseController(w)
	// The server write timeout would cut the stream.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ctx := r.Context()
	ch := h.Stream.Subscribe(ctx, a.UserID)

	fmt.Fprint(w, "event: connected\ndata: {\"status\":\"connected\"}\n\n")
	if err := rc.Flush(); err != nil {
		h.Logger.Error("SSE", fmt.Sprintf("Streaming unsupported: %v", err))
		return
	}
	h.Logger.Info("SSE", "Notification stream opened for user "+a.UserID)

	ticker := time.NewTicker(streamHeartbeat)
	defer ticker.Stop()
	for {
		select {
		case n, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(n)
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to serialize notification: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: notification\nid: %s\ndata: %s\n\n", n.ID, data)
			_ = rc.Flush()
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			_ = rc.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", "Notification stream closed for user "+a.UserID)
			return
		}
	}
}
