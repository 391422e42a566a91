package tracking

import (
	"testing"

	"storefront/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, sub *Subscriber) (models.LocationUpdate, bool) {
	t.Helper()
	select {
	case u, ok := <-sub.Updates():
		return u, ok
	default:
		return models.LocationUpdate{}, false
	}
}

func TestBroadcastReachesJoinedRoom(t *testing.T) {
	hub := NewHub()
	sub := hub.Register()
	sub.Join("V1")

	hub.Broadcast(update("V1", 1.3, 103.8))

	got, ok := recv(t, sub)
	require.True(t, ok)
	assert.Equal(t, "V1", got.VendorID)
	assert.Equal(t, 1.3, got.Latitude)
}

func TestBroadcastSkipsOtherRooms(t *testing.T) {
	hub := NewHub()
	sub := hub.Register()
	sub.Join("V1")

	hub.Broadcast(update("V2", 1.3, 103.8))

	_, ok := recv(t, sub)
	assert.False(t, ok)
}

func TestLeaveStopsDelivery(t *testing.T) {
	hub := NewHub()
	sub := hub.Register()
	sub.Join("V1")
	sub.Leave("V1")

	hub.Broadcast(update("V1", 1.3, 103.8))

	_, ok := recv(t, sub)
	assert.False(t, ok)
}

func TestMultipleSubscribersPerRoom(t *testing.T) {
	hub := NewHub()
	a := hub.Register()
	b := hub.Register()
	a.Join("V1")
	b.Join("V1")

	hub.Broadcast(update("V1", 1.3, 103.8))

	_, ok := recv(t, a)
	assert.True(t, ok)
	_, ok = recv(t, b)
	assert.True(t, ok)
}

func TestUnregisterClosesChannel(t *testing.T) {
	hub := NewHub()
	sub := hub.Register()
	sub.Join("V1")

	hub.Unregister(sub)

	_, open := <-sub.Updates()
	assert.False(t, open)

	// Broadcasting after unregister must not panic on the closed channel.
	hub.Broadcast(update("V1", 1.3, 103.8))
}

func TestSlowSubscriberDoesNotBlockBroadcast(t *testing.T) {
	hub := NewHub()
	sub := hub.Register()
	sub.Join("V1")

	for i := 0; i < subscriberBuffer+10; i++ {
		hub.Broadcast(update("V1", float64(i), 103.8))
	}

	// Buffer holds the first updates; the overflow was dropped.
	got, ok := recv(t, sub)
	require.True(t, ok)
	assert.Equal(t, 0.0, got.Latitude)
}
