package api

import (
	"encoding/json"
	"net/http"
	"time"

	"storefront/internal/transport"
	"storefront/internal/util"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const wsWriteTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The storefront frontend is served from another origin.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// trackSocket upgrades the connection and speaks the tracking frame
// protocol: the client sends join_tracking/leave_tracking for vendor rooms
// and receives location_update pushes for the rooms it joined.
func (h *Handler) trackSocket(c *gin.Context) {
	logger := util.GetLogger()

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Warn("WebSocket upgrade failed", zap.Error(err))
		return
	}

	sub := h.hub.Register()

	// Writer: one goroutine owns all writes. It ends when Unregister
	// closes the update channel.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range sub.Updates() {
			frame, err := transport.NewFrame(transport.EventLocationUpdate, update)
			if err != nil {
				logger.Warn("Failed to encode location update", zap.Error(err))
				continue
			}
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				logger.Debug("Tracking client write failed", zap.Error(err))
				return
			}
		}
	}()

	for {
		var frame transport.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			break
		}

		var room transport.RoomRequest
		if len(frame.Data) > 0 {
			if err := json.Unmarshal(frame.Data, &room); err != nil || room.VendorID == "" {
				continue
			}
		}

		switch frame.Event {
		case transport.EventJoinTracking:
			sub.Join(room.VendorID)
			util.TrackingJoinsTotal.Inc()
		case transport.EventLeaveTracking:
			sub.Leave(room.VendorID)
		}
	}

	h.hub.Unregister(sub)
	<-done
	_ = conn.Close()
}
