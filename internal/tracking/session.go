package tracking

import (
	"sync"

	"storefront/internal/models"
	"storefront/internal/util"

	"go.uber.org/zap"
)

// Transport is a shared bidirectional channel to the delivery location feed.
// Join and Leave are fire-and-forget: the transport logs failures and never
// surfaces them to subscribers. The push stream delivers every incoming
// update to every registered listener regardless of joined rooms; filtering
// is the listener's job. The transport's connection lifecycle is its own
// concern; sessions never close it.
type Transport interface {
	Join(vendorID string)
	Leave(vendorID string)
	Subscribe(fn func(models.LocationUpdate)) (unsubscribe func())
}

// Session follows a single vendor's live delivery location. It is the
// per-view subscription object: Follow joins the vendor's tracking room and
// registers one update listener, Stop tears both down. A stopped session
// drops every further push, including ones already queued by the transport.
type Session struct {
	mu          sync.Mutex
	transport   Transport
	vendorID    string
	active      bool
	lastUpdate  *models.LocationUpdate
	unsubscribe func()
	logger      *zap.Logger
}

func NewSession(transport Transport) *Session {
	return &Session{
		transport: transport,
		logger:    util.GetLogger(),
	}
}

// Follow starts tracking vendorID. Following the vendor already tracked is
// a no-op, so a view remounting with the same vendor joins at most once.
// When the tracked vendor changes, the previous vendor's room is left
// before the new join.
func (s *Session) Follow(vendorID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active && s.vendorID == vendorID {
		return
	}

	if s.active {
		s.transport.Leave(s.vendorID)
	}

	s.vendorID = vendorID
	s.active = true

	if s.unsubscribe == nil {
		s.unsubscribe = s.transport.Subscribe(s.handleUpdate)
	}

	s.transport.Join(vendorID)
	util.TrackingJoinsTotal.Inc()
	s.logger.Debug("Tracking session joined", zap.String("vendor_id", vendorID))
}

// Stop leaves the tracked vendor's room and deregisters the listener.
// Safe to call on an idle session.
func (s *Session) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		return
	}

	s.transport.Leave(s.vendorID)
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
	s.active = false
	s.logger.Debug("Tracking session stopped", zap.String("vendor_id", s.vendorID))
}

func (s *Session) handleUpdate(u models.LocationUpdate) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active {
		util.TrackingUpdatesTotal.WithLabelValues("inactive").Inc()
		return
	}
	if u.VendorID != s.vendorID {
		util.TrackingUpdatesTotal.WithLabelValues("filtered").Inc()
		return
	}

	// Replace wholesale, no field merging.
	update := u
	s.lastUpdate = &update
	util.TrackingUpdatesTotal.WithLabelValues("accepted").Inc()
}

// Active reports whether a room join is currently outstanding.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// VendorID returns the vendor currently followed, or "" before any Follow.
func (s *Session) VendorID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vendorID
}

// LastUpdate returns the most recent accepted update, or nil when none has
// arrived yet.
func (s *Session) LastUpdate() *models.LocationUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastUpdate == nil {
		return nil
	}
	update := *s.lastUpdate
	return &update
}
