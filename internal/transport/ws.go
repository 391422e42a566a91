// Package transport implements the real-time delivery feed channel over
// WebSocket. One process-wide connection is shared by all tracking
// sessions: it is dialed lazily on the first join and torn down only by an
// explicit Close. Join and leave are fire-and-forget; failures are logged
// and never surfaced, since tracking is an enhancement rather than a
// checkout blocker.
package transport

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"storefront/internal/models"
	"storefront/internal/util"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Wire protocol events, shared by the client transport and the server
// tracking endpoint.
const (
	EventJoinTracking   = "join_tracking"
	EventLeaveTracking  = "leave_tracking"
	EventLocationUpdate = "location_update"
)

// Frame is the envelope for every message on the tracking channel.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// RoomRequest is the payload of join_tracking and leave_tracking frames.
type RoomRequest struct {
	VendorID string `json:"vendor_id"`
}

// NewFrame builds a frame with a marshaled payload.
func NewFrame(event string, data interface{}) (Frame, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return Frame{}, fmt.Errorf("failed to marshal %s payload: %w", event, err)
	}
	return Frame{Event: event, Data: raw}, nil
}

type Settings struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
}

func DefaultSettings() *Settings {
	return &Settings{
		HandshakeTimeout: 2 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// WSTransport is the shared client-side tracking channel.
type WSTransport struct {
	url      string
	settings *Settings
	logger   *zap.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	listeners map[int]func(models.LocationUpdate)
	nextID    int
	closed    bool
}

func NewWSTransport(url string) *WSTransport {
	return NewWSTransportWithSettings(url, DefaultSettings())
}

func NewWSTransportWithSettings(url string, settings *Settings) *WSTransport {
	return &WSTransport{
		url:       url,
		settings:  settings,
		logger:    util.GetLogger(),
		listeners: make(map[int]func(models.LocationUpdate)),
	}
}

// Join asks the feed to start delivering a vendor's location updates.
func (t *WSTransport) Join(vendorID string) {
	t.send(EventJoinTracking, RoomRequest{VendorID: vendorID})
}

// Leave asks the feed to stop delivering a vendor's location updates.
func (t *WSTransport) Leave(vendorID string) {
	t.send(EventLeaveTracking, RoomRequest{VendorID: vendorID})
}

// Subscribe registers a listener for every incoming location update,
// regardless of joined rooms. The returned function deregisters it.
func (t *WSTransport) Subscribe(fn func(models.LocationUpdate)) func() {
	t.mu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = fn
	t.mu.Unlock()

	return func() {
		t.mu.Lock()
		delete(t.listeners, id)
		t.mu.Unlock()
	}
}

// Close shuts the shared connection down. Only the process-wide shutdown
// path calls this; individual sessions must not.
func (t *WSTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

func (t *WSTransport) send(event string, payload RoomRequest) {
	frame, err := NewFrame(event, payload)
	if err != nil {
		t.logger.Warn("Failed to build tracking frame", zap.String("event", event), zap.Error(err))
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	if t.conn == nil {
		if err := t.connectLocked(); err != nil {
			t.logger.Warn("Tracking transport unavailable",
				zap.String("event", event),
				zap.String("vendor_id", payload.VendorID),
				zap.Error(err))
			return
		}
	}

	_ = t.conn.SetWriteDeadline(time.Now().Add(t.settings.WriteTimeout))
	if err := t.conn.WriteJSON(frame); err != nil {
		t.logger.Warn("Failed to send tracking frame",
			zap.String("event", event),
			zap.String("vendor_id", payload.VendorID),
			zap.Error(err))
	}
}

func (t *WSTransport) connectLocked() error {
	dialer := &websocket.Dialer{HandshakeTimeout: t.settings.HandshakeTimeout}
	conn, _, err := dialer.Dial(t.url, nil)
	if err != nil {
		return fmt.Errorf("failed to dial tracking feed: %w", err)
	}
	t.conn = conn
	go t.readLoop(conn)
	t.logger.Info("Tracking transport connected", zap.String("url", t.url))
	return nil
}

// readLoop dispatches pushed location updates to all listeners. The loop
// ends when the connection errors; reconnection is not this subsystem's
// responsibility.
func (t *WSTransport) readLoop(conn *websocket.Conn) {
	for {
		var frame Frame
		if err := conn.ReadJSON(&frame); err != nil {
			t.mu.Lock()
			closed := t.closed
			t.mu.Unlock()
			if !closed {
				t.logger.Warn("Tracking transport read failed", zap.Error(err))
			}
			return
		}

		if frame.Event != EventLocationUpdate {
			continue
		}

		var update models.LocationUpdate
		if err := json.Unmarshal(frame.Data, &update); err != nil {
			t.logger.Warn("Malformed location update", zap.Error(err))
			continue
		}

		t.mu.Lock()
		fns := make([]func(models.LocationUpdate), 0, len(t.listeners))
		for _, fn := range t.listeners {
			fns = append(fns, fn)
		}
		t.mu.Unlock()

		for _, fn := range fns {
			fn(update)
		}
	}
}
