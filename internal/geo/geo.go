package geo

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrAddressRequired is returned for blank input; no lookup is attempted.
	ErrAddressRequired = errors.New("address required")

	// ErrAddressNotFound indicates the geocoder returned zero candidates.
	ErrAddressNotFound = errors.New("address not found")

	// ErrGeocodingUnavailable covers transport failures, non-success statuses
	// and undecodable responses from the geocoder.
	ErrGeocodingUnavailable = errors.New("geocoding unavailable")

	// ErrAddressTooFar is returned by callers that gate on a rejected Result.
	ErrAddressTooFar = errors.New("address too far")
)

const (
	// DefaultMaxDistanceKm is the eligibility radius around the reference point.
	DefaultMaxDistanceKm = 50.0
)

// Paris is the default reference point.
var Paris = Coordinate{Latitude: 48.8566, Longitude: 2.3522}

// Coordinate is a WGS84 position in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Result is the outcome of a single eligibility check. Coordinates is nil
// only when no candidate was resolved.
type Result struct {
	Accepted    bool
	DistanceKm  float64
	Coordinates *Coordinate
}

// Feature is one geocoding candidate. Position holds the GeoJSON
// [longitude, latitude] pair as returned by the geocoder.
type Feature struct {
	Label    string
	Score    float64
	Position [2]float64
}

// Coordinate converts the GeoJSON pair into a Coordinate.
func (f Feature) Coordinate() Coordinate {
	return Coordinate{Longitude: f.Position[0], Latitude: f.Position[1]}
}

// GeocodingService resolves free-text addresses into candidate features,
// best match first.
type GeocodingService interface {
	Search(ctx context.Context, query string) ([]Feature, error)
}

// TooFarError carries the measured distance of a rejected address.
type TooFarError struct {
	DistanceKm    float64
	MaxDistanceKm float64
}

func (e *TooFarError) Error() string {
	return fmt.Sprintf("address is %.3f km from the reference point (max %.0f km)", e.DistanceKm, e.MaxDistanceKm)
}

// Unwrap lets errors.Is match ErrAddressTooFar.
func (e *TooFarError) Unwrap() error {
	return ErrAddressTooFar
}
