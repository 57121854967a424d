package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

const (
	watchWriteTimeout = 10 * time.Second
	watchPingInterval = 30 * time.Second
)

// handleWatch streams the task events over a websocket. The optional `taskId`
// query parameter limits the stream to a single task.
func (h handler) handleWatch(w http.ResponseWriter, r *http.Request) {
	taskID := r.URL.Query().Get("taskId")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warningf("Could not upgrade watch connection: %s", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Client messages are ignored, reading detects the close.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	events, err := h.registry.Watch(ctx)
	if err != nil {
		h.logger.Errorf("Could not watch tasks: %s", err)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "watch failed"), time.Now().Add(watchWriteTimeout))
		return
	}

	ping := time.NewTicker(watchPingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(watchWriteTimeout)); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if taskID != "" && ev.Task.ID != taskID {
				continue
			}

			_ = conn.SetWriteDeadline(time.Now().Add(watchWriteTimeout))
			if err := conn.WriteJSON(TaskEvent{Type: string(ev.Type), Task: mapTask(ev.Task)}); err != nil {
				h.logger.Debugf("Watch client gone: %s", err)
				return
			}
		}
	}
}
