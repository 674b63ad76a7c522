package location

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/oschwald/geoip2-golang"
)

// GeoIPProvider resolves position from a local MaxMind City database. It
// needs no network connectivity, which makes it a useful last link in the
// chain, but it requires the device's externally visible address to be
// configured (location.geoip_addr).
type GeoIPProvider struct {
	Path string // path to the .mmdb file
	Addr string // address to look up
}

// NewGeoIPProvider creates a provider backed by the MaxMind database at path.
func NewGeoIPProvider(path, addr string) *GeoIPProvider {
	return &GeoIPProvider{Path: path, Addr: addr}
}

func (p *GeoIPProvider) Name() string { return "geoip" }

func (p *GeoIPProvider) Lookup(ctx context.Context) (*Location, error) {
	if p.Path == "" {
		return nil, fmt.Errorf("geoip: database path not configured")
	}
	ip := net.ParseIP(p.Addr)
	if ip == nil {
		return nil, fmt.Errorf("geoip: invalid lookup address %q", p.Addr)
	}

	db, err := geoip2.Open(p.Path)
	if err != nil {
		return nil, fmt.Errorf("geoip: open %s: %w", p.Path, err)
	}
	defer db.Close()

	record, err := db.City(ip)
	if err != nil {
		return nil, fmt.Errorf("geoip: lookup %s: %w", p.Addr, err)
	}

	city := record.City.Names["en"]
	country := record.Country.Names["en"]
	return &Location{
		Latitude:   record.Location.Latitude,
		Longitude:  record.Location.Longitude,
		Address:    p.Addr,
		City:       city,
		Country:    country,
		Source:     SourceIP,
		Accuracy:   0.6,
		ResolvedAt: time.Now(),
	}, nil
}
