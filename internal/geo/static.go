package geo

import (
	"context"
	"strings"
	"sync"
)

// StaticGeocoder resolves addresses from a fixed table. It backs local
// development without network access and the tests.
type StaticGeocoder struct {
	mu      sync.RWMutex
	entries map[string]Coordinate
	err     error
	calls   int
}

// NewStaticGeocoder seeds the table; keys are matched case-insensitively.
func NewStaticGeocoder(entries map[string]Coordinate) *StaticGeocoder {
	g := &StaticGeocoder{entries: make(map[string]Coordinate, len(entries))}
	for k, v := range entries {
		g.entries[normalizeKey(k)] = v
	}
	return g
}

// DevelopmentGeocoder returns a StaticGeocoder for tests, preloaded with a few
// well-known places around and far from Paris.
func DevelopmentGeocoder() *StaticGeocoder {
	return NewStaticGeocoder(map[string]Coordinate{
		"1 Place du Parvis Notre-Dame, Paris": {Latitude: 48.853, Longitude: 2.349},
		"Versailles, France":                  {Latitude: 48.8049, Longitude: 2.1204},
		"Marseille, France":                   {Latitude: 43.296, Longitude: 5.370},
		"Lyon, France":                        {Latitude: 45.764, Longitude: 4.8357},
	})
}

// Set adds or replaces an entry.
func (g *StaticGeocoder) Set(address string, c Coordinate) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.entries[normalizeKey(address)] = c
}

// FailWith makes every subsequent Search return err; nil restores lookups.
func (g *StaticGeocoder) FailWith(err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.err = err
}

// Calls reports how many searches were issued.
func (g *StaticGeocoder) Calls() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.calls
}

// Search implements GeocodingService.
func (g *StaticGeocoder) Search(_ context.Context, query string) ([]Feature, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	c, ok := g.entries[normalizeKey(query)]
	if !ok {
		return nil, nil
	}
	return []Feature{{Label: query, Score: 1, Position: [2]float64{c.Longitude, c.Latitude}}}, nil
}

func normalizeKey(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
