package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"k8s.io/klog/v2"

	"projectarchitect/internal/pipeline"
)

const (
	watchWriteWait  = 10 * time.Second
	watchPongWait   = 60 * time.Second
	watchPingEvery  = (watchPongWait * 9) / 10
	watchBufferSize = 16
)

var watchUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type watchMessage struct {
	Type     string             `json:"type"`
	Snapshot *pipeline.Snapshot `json:"snapshot,omitempty"`
	Code     string             `json:"code,omitempty"`
	Message  string             `json:"message,omitempty"`
}

// WatchRun streams snapshots of one run over a websocket until the run is
// terminal. The current snapshot is sent first; a finished run yields only
// that one message.
func (s *Service) WatchRun(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	// Subscribe before reading the current state so no transition falls in
	// between.
	events, unsubscribe := s.runs.Events().Subscribe(id, watchBufferSize)
	defer unsubscribe()

	current, ok := s.runs.Get(id)
	if !ok {
		writeError(w, pipeline.ErrRunNotFound)
		return
	}

	conn, err := watchUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	_ = conn.SetReadDeadline(time.Now().Add(watchPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(watchPongWait))
	})
	// Drain client frames so pongs and close frames are processed.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	send := func(msg watchMessage) bool {
		if err := conn.SetWriteDeadline(time.Now().Add(watchWriteWait)); err != nil {
			return false
		}
		if err := conn.WriteJSON(msg); err != nil {
			klog.V(2).InfoS("watch write failed", "run", id, "err", err)
			return false
		}
		return true
	}
	finish := func() {
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "run finished"),
			time.Now().Add(watchWriteWait))
	}

	if !send(watchMessage{Type: "snapshot", Snapshot: &current}) {
		return
	}
	if current.Terminal() {
		finish()
		return
	}

	ticker := time.NewTicker(watchPingEvery)
	defer ticker.Stop()
	last := current.UpdatedAt
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-events:
			if !ok {
				finish()
				return
			}
			if snap.UpdatedAt.Before(last) {
				continue
			}
			last = snap.UpdatedAt
			if !send(watchMessage{Type: "snapshot", Snapshot: &snap}) {
				return
			}
			if snap.Terminal() {
				finish()
				return
			}
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(watchWriteWait)); err != nil {
				return
			}
		}
	}
}
