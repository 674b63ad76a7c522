package location

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/mwillard/beacon/internal/config"
	gocache "github.com/patrickmn/go-cache"
)

// cacheKey is the single cache slot: one user, one device, one position.
const cacheKey = "current"

// Resolver returns the best-available current location within bounded
// latency: cache first, then each provider in order under a per-call timeout.
// A fully exhausted chain yields nil, which callers treat as "location
// unknown", never as a fatal error.
type Resolver struct {
	providers []Provider
	timeout   time.Duration
	cache     *gocache.Cache
	ttl       time.Duration
}

// ResolverOpts holds parameters for creating a Resolver.
type ResolverOpts struct {
	Providers []Provider
	Timeout   time.Duration // per-provider call timeout
	TTL       time.Duration // cache entry lifetime
}

// NewResolver creates a Resolver.
func NewResolver(opts ResolverOpts) *Resolver {
	if opts.Timeout <= 0 {
		opts.Timeout = 5 * time.Second
	}
	if opts.TTL <= 0 {
		opts.TTL = time.Hour
	}
	return &Resolver{
		providers: opts.Providers,
		timeout:   opts.Timeout,
		cache:     gocache.New(opts.TTL, 10*time.Minute),
		ttl:       opts.TTL,
	}
}

// FromConfig builds the provider chain named in cfg and returns a Resolver.
func FromConfig(cfg *config.Config) (*Resolver, error) {
	var providers []Provider
	for _, name := range cfg.Location.Providers {
		switch name {
		case "ipapi":
			providers = append(providers, NewIPAPIProvider())
		case "ipwho":
			providers = append(providers, NewIPWhoProvider())
		case "geoip":
			providers = append(providers, NewGeoIPProvider(cfg.Location.GeoIPPath, cfg.Location.GeoIPAddr))
		default:
			return nil, fmt.Errorf("location: unknown provider %q", name)
		}
	}
	return NewResolver(ResolverOpts{
		Providers: providers,
		Timeout:   cfg.ProviderTimeout(),
		TTL:       cfg.CacheTTL(),
	}), nil
}

// Resolve returns the current location, preferring an unexpired cache entry.
// Returns nil when the cache is cold and every provider fails or returns an
// invalid fix.
func (r *Resolver) Resolve(ctx context.Context) *Location {
	if cached, ok := r.cache.Get(cacheKey); ok {
		loc := cached.(*Location)
		clone := *loc
		clone.Source = SourceCached
		return &clone
	}

	for _, p := range r.providers {
		loc, err := r.lookup(ctx, p)
		if err != nil {
			log.Printf("location: provider %s failed: %v", p.Name(), err)
			continue
		}
		if !loc.Valid() {
			log.Printf("location: provider %s returned invalid fix (%.4f, %.4f, accuracy %.2f)",
				p.Name(), loc.Latitude, loc.Longitude, loc.Accuracy)
			continue
		}
		r.cache.Set(cacheKey, loc, r.ttl)
		log.Printf("location: resolved via %s: %s", p.Name(), loc.Summary())
		return loc
	}

	log.Printf("location: all providers exhausted, location unknown")
	return nil
}

// lookup calls one provider under the resolver's timeout.
func (r *Resolver) lookup(ctx context.Context, p Provider) (*Location, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return p.Lookup(callCtx)
}

// Warm refreshes the cache when it is empty or expired. Used by the
// maintenance scheduler so an emergency rarely has to wait on a lookup.
func (r *Resolver) Warm(ctx context.Context) {
	if _, ok := r.cache.Get(cacheKey); ok {
		return
	}
	r.Resolve(ctx)
}

// Cached returns the unexpired cache entry, if any, without triggering a
// lookup. Used by health endpoints.
func (r *Resolver) Cached() *Location {
	if cached, ok := r.cache.Get(cacheKey); ok {
		loc := cached.(*Location)
		clone := *loc
		return &clone
	}
	return nil
}

// Flush drops the cache entry so the next Resolve hits the provider chain.
func (r *Resolver) Flush() {
	r.cache.Delete(cacheKey)
}
