package tracking

import (
	"sync"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

const subscriberBuffer = 16

// Hub is the server-side room registry: it fans vendor location updates out
// to the subscribers joined to that vendor's room. WebSocket handlers
// register one Subscriber per connection.
type Hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*Subscriber]struct{}
	logger *zap.Logger
}

// Subscriber is one consumer attached to the hub. Updates for joined rooms
// arrive on Updates(); the channel is closed on Unregister.
type Subscriber struct {
	hub    *Hub
	ch     chan models.LocationUpdate
	joined map[string]struct{}
	closed bool
}

func NewHub() *Hub {
	return &Hub{
		rooms:  make(map[string]map[*Subscriber]struct{}),
		logger: util.GetLogger(),
	}
}

// Register attaches a new subscriber with no joined rooms.
func (h *Hub) Register() *Subscriber {
	return &Subscriber{
		hub:    h,
		ch:     make(chan models.LocationUpdate, subscriberBuffer),
		joined: make(map[string]struct{}),
	}
}

// Unregister leaves all rooms and closes the update channel. Further
// broadcasts never reach the subscriber.
func (h *Hub) Unregister(sub *Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if sub.closed {
		return
	}
	for vendorID := range sub.joined {
		h.leaveLocked(sub, vendorID)
	}
	sub.closed = true
	close(sub.ch)
}

// Broadcast delivers an update to every subscriber joined to the vendor's
// room. Slow subscribers are skipped rather than blocked on.
func (h *Hub) Broadcast(u models.LocationUpdate) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.rooms[u.VendorID] {
		select {
		case sub.ch <- u:
		default:
			util.TrackingUpdatesTotal.WithLabelValues("dropped").Inc()
			h.logger.Warn("Dropping location update for slow subscriber",
				zap.String("vendor_id", u.VendorID))
		}
	}
}

func (h *Hub) leaveLocked(sub *Subscriber, vendorID string) {
	if room, ok := h.rooms[vendorID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, vendorID)
		}
	}
	delete(sub.joined, vendorID)
}

// Join adds the subscriber to a vendor's room.
func (s *Subscriber) Join(vendorID string) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if s.closed {
		return
	}
	room, ok := s.hub.rooms[vendorID]
	if !ok {
		room = make(map[*Subscriber]struct{})
		s.hub.rooms[vendorID] = room
	}
	room[s] = struct{}{}
	s.joined[vendorID] = struct{}{}
}

// Leave removes the subscriber from a vendor's room.
func (s *Subscriber) Leave(vendorID string) {
	s.hub.mu.Lock()
	defer s.hub.mu.Unlock()

	if s.closed {
		return
	}
	s.hub.leaveLocked(s, vendorID)
}

// Updates is the stream of broadcasts for the subscriber's joined rooms.
func (s *Subscriber) Updates() <-chan models.LocationUpdate {
	return s.ch
}
