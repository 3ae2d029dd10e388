package geo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parisgate/parisgate/internal/metrics"
)

// Checker decides whether an address lies within MaxDistanceKm of the
// reference point. It keeps no state between calls: every check queries the
// geocoder again.
type Checker struct {
	geocoder      GeocodingService
	reference     Coordinate
	maxDistanceKm float64
	metrics       *metrics.Metrics
}

// Option customises a Checker.
type Option func(*Checker)

// WithReference overrides the reference point (Paris by default).
func WithReference(c Coordinate) Option {
	return func(ch *Checker) { ch.reference = c }
}

// WithMaxDistanceKm overrides the inclusive acceptance radius.
func WithMaxDistanceKm(km float64) Option {
	return func(ch *Checker) {
		if km > 0 {
			ch.maxDistanceKm = km
		}
	}
}

// WithMetrics records decisions and geocoder latency.
func WithMetrics(m *metrics.Metrics) Option {
	return func(ch *Checker) { ch.metrics = m }
}

// NewChecker builds a checker around the given geocoder.
func NewChecker(geocoder GeocodingService, opts ...Option) *Checker {
	ch := &Checker{
		geocoder:      geocoder,
		reference:     Paris,
		maxDistanceKm: DefaultMaxDistanceKm,
	}
	for _, opt := range opts {
		opt(ch)
	}
	return ch
}

// MaxDistanceKm returns the configured acceptance radius.
func (c *Checker) MaxDistanceKm() float64 {
	return c.maxDistanceKm
}

// CheckAddress geocodes the address, takes the first candidate and measures
// its distance to the reference point. A distance equal to the radius is
// accepted.
func (c *Checker) CheckAddress(ctx context.Context, address string) (Result, error) {
	if strings.TrimSpace(address) == "" {
		return Result{}, ErrAddressRequired
	}

	start := time.Now()
	features, err := c.geocoder.Search(ctx, address)
	c.metrics.ObserveGeocode(time.Since(start))
	if err != nil {
		c.metrics.RecordEligibility("unavailable")
		if errors.Is(err, ErrGeocodingUnavailable) {
			return Result{}, err
		}
		return Result{}, fmt.Errorf("%w: %v", ErrGeocodingUnavailable, err)
	}
	if len(features) == 0 {
		c.metrics.RecordEligibility("not_found")
		return Result{}, ErrAddressNotFound
	}

	coords := features[0].Coordinate()
	distance := DistanceKm(c.reference, coords)
	accepted := distance <= c.maxDistanceKm
	if accepted {
		c.metrics.RecordEligibility("accepted")
	} else {
		c.metrics.RecordEligibility("rejected")
	}

	return Result{Accepted: accepted, DistanceKm: distance, Coordinates: &coords}, nil
}

// RequireEligible runs CheckAddress and turns a rejection into a
// *TooFarError.
func (c *Checker) RequireEligible(ctx context.Context, address string) (Result, error) {
	res, err := c.CheckAddress(ctx, address)
	if err != nil {
		return Result{}, err
	}
	if !res.Accepted {
		return res, &TooFarError{DistanceKm: res.DistanceKm, MaxDistanceKm: c.maxDistanceKm}
	}
	return res, nil
}
