package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/roach88/tally/internal/engine"
)

const liveWriteTimeout = 5 * time.Second

// handleLive upgrades to a websocket and streams a JSON message per
// committed ingest batch. An optional dataset query parameter filters the
// stream. Client messages are ignored.
func (a *api) handleLive(w http.ResponseWriter, r *http.Request) {
	dataset := r.URL.Query().Get("dataset")

	// Subscribe before the handshake completes so a client sees every batch
	// committed after its dial returns.
	notes, cancel := a.Engine.Subscribe()
	defer cancel()

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		a.logger.Warn("websocket accept failed", "err", err)
		return
	}
	defer c.CloseNow()

	// CloseRead drains client frames and cancels ctx when the peer goes away.
	ctx := c.CloseRead(r.Context())
	a.logger.Debug("live subscriber connected", "dataset", dataset)

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-notes:
			if !ok {
				c.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if dataset != "" && n.Dataset != dataset {
				continue
			}
			if err := writeNotification(ctx, c, n); err != nil {
				a.logger.Debug("live subscriber gone", "err", err)
				return
			}
		}
	}
}

func writeNotification(ctx context.Context, c *websocket.Conn, n engine.Notification) error {
	ctx, cancel := context.WithTimeout(ctx, liveWriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, c, n)
}
