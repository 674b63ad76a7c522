// Package location resolves the device's current position through a cache
// and a prioritized chain of lookup providers.
package location

import (
	"fmt"
	"time"
)

// Accuracy sources, roughly ordered by trustworthiness.
const (
	SourceIP     = "ip"
	SourceGPS    = "gps"
	SourceCached = "cached"
)

// minAccuracy is the lowest accuracy score accepted as a usable fix.
const minAccuracy = 0.5

// Location is a normalized position fix. Provider responses use heterogeneous
// schemas and are normalized into this shape before any further use.
type Location struct {
	Latitude   float64   `json:"latitude"`
	Longitude  float64   `json:"longitude"`
	Address    string    `json:"address"`
	City       string    `json:"city"`
	Country    string    `json:"country"`
	Source     string    `json:"source"`
	Accuracy   float64   `json:"accuracy"`
	ResolvedAt time.Time `json:"resolved_at"`
}

// Valid reports whether the fix is structurally usable: coordinates in range,
// not the (0,0) null island default, and accuracy at or above the floor.
func (l *Location) Valid() bool {
	if l == nil {
		return false
	}
	if l.Latitude < -90 || l.Latitude > 90 {
		return false
	}
	if l.Longitude < -180 || l.Longitude > 180 {
		return false
	}
	if l.Latitude == 0 && l.Longitude == 0 {
		return false
	}
	return l.Accuracy >= minAccuracy
}

// Summary returns a human-readable one-liner for message rendering:
// "City, Country" when known, else the address, else bare coordinates.
func (l *Location) Summary() string {
	if l == nil {
		return "Location unknown"
	}
	if l.City != "" && l.Country != "" {
		return l.City + ", " + l.Country
	}
	if l.Address != "" {
		return l.Address
	}
	return fmt.Sprintf("Coordinates: %.4f, %.4f", l.Latitude, l.Longitude)
}

// Coordinates returns "lat, lon" formatted to four decimal places.
func (l *Location) Coordinates() string {
	if l == nil {
		return "N/A"
	}
	return fmt.Sprintf("%.4f, %.4f", l.Latitude, l.Longitude)
}
