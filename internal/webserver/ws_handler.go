package webserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"

	"github.com/agusx1211/usagebar/internal/debug"
	"github.com/agusx1211/usagebar/internal/render"
)

type wsEnvelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// pushInterval honours ?interval= when it parses and is not below the floor.
func (srv *Server) pushIntervalFor(r *http.Request) time.Duration {
	raw := r.URL.Query().Get("interval")
	if raw == "" {
		return srv.pushInterval
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return srv.pushInterval
	}
	return max(d, MinPushInterval)
}

// handleUsageWebSocket pushes a fresh report immediately and then once per
// interval until the client goes away.
func (srv *Server) handleUsageWebSocket(w http.ResponseWriter, r *http.Request) {
	if srv.fetch == nil {
		writeError(w, http.StatusServiceUnavailable, "usage source not configured")
		return
	}
	filter := filterFromQuery(r.URL.Query())
	interval := srv.pushIntervalFor(r)

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		return
	}
	defer ws.CloseNow()

	// Clients never send anything meaningful; CloseRead handles control
	// frames and cancels ctx once the peer disconnects.
	ctx := ws.CloseRead(r.Context())

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		report := srv.fetch(ctx, filter)
		if ctx.Err() != nil {
			return
		}
		data, err := json.Marshal(wsEnvelope{Type: "report", Data: render.View(report)})
		if err != nil {
			debug.LogKV("webserver", "ws marshal failed", "error", err)
			ws.Close(websocket.StatusInternalError, "encoding failed")
			return
		}
		writeCtx, writeCancel := context.WithTimeout(ctx, 15*time.Second)
		err = ws.Write(writeCtx, websocket.MessageText, data)
		writeCancel()
		if err != nil {
			return
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
