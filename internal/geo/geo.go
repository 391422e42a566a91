// Package geo provides the location helpers behind distance-to-vendor
// display and checkout coordinates.
package geo

import (
	"context"
	"errors"
	"fmt"
	"math"

	"storefront/internal/models"
)

const earthRadiusKm = 6371

// ErrUnavailable is returned when no position source can produce a fix.
// Callers degrade to "location unavailable" rather than failing the page.
var ErrUnavailable = errors.New("geolocation unavailable")

// Provider yields the client's current position.
type Provider interface {
	CurrentPosition(ctx context.Context) (models.Position, error)
}

// StaticProvider always returns a fixed position. Used when the deployment
// has no position source; clients normally send coordinates themselves.
type StaticProvider struct {
	Position models.Position
}

func (p *StaticProvider) CurrentPosition(ctx context.Context) (models.Position, error) {
	return p.Position, nil
}

// UnavailableProvider fails every request with ErrUnavailable.
type UnavailableProvider struct{}

func (UnavailableProvider) CurrentPosition(ctx context.Context) (models.Position, error) {
	return models.Position{}, ErrUnavailable
}

// Distance returns the great-circle distance in km between two points,
// using the Haversine formula.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := deg2rad(lat2 - lat1)
	dLon := deg2rad(lon2 - lon1)
	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(deg2rad(lat1))*math.Cos(deg2rad(lat2))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return earthRadiusKm * c
}

func deg2rad(deg float64) float64 {
	return deg * (math.Pi / 180)
}

// FormatCoordinates renders a lat/lng pair for display, e.g.
// "1.3521°N, 103.8198°E".
func FormatCoordinates(latitude, longitude float64) string {
	latSuffix := "°N"
	if latitude < 0 {
		latSuffix = "°S"
	}
	lngSuffix := "°E"
	if longitude < 0 {
		lngSuffix = "°W"
	}
	return fmt.Sprintf("%.4f%s, %.4f%s",
		math.Abs(latitude), latSuffix,
		math.Abs(longitude), lngSuffix)
}
