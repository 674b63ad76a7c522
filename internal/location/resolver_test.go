package location

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

// stubProvider returns canned locations or errors and counts calls.
type stubProvider struct {
	name  string
	loc   *Location
	err   error
	calls atomic.Int64
}

func (s *stubProvider) Name() string { return s.name }

func (s *stubProvider) Lookup(ctx context.Context) (*Location, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	clone := *s.loc
	return &clone, nil
}

func goodFix() *Location {
	return &Location{
		Latitude:   40.7128,
		Longitude:  -74.006,
		City:       "New York",
		Country:    "United States",
		Source:     SourceIP,
		Accuracy:   0.8,
		ResolvedAt: time.Now(),
	}
}

func TestResolve_FirstProviderWins(t *testing.T) {
	first := &stubProvider{name: "first", loc: goodFix()}
	second := &stubProvider{name: "second", loc: goodFix()}
	r := NewResolver(ResolverOpts{Providers: []Provider{first, second}})

	loc := r.Resolve(context.Background())
	if loc == nil {
		t.Fatal("expected a location")
	}
	if loc.City != "New York" {
		t.Errorf("City = %q, want %q", loc.City, "New York")
	}
	if second.calls.Load() != 0 {
		t.Errorf("second provider called %d times, want 0", second.calls.Load())
	}
}

func TestResolve_FallsThroughFailures(t *testing.T) {
	failing := &stubProvider{name: "failing", err: fmt.Errorf("connection refused")}
	invalid := &stubProvider{name: "invalid", loc: &Location{Latitude: 0, Longitude: 0, Accuracy: 0.8}}
	working := &stubProvider{name: "working", loc: goodFix()}
	r := NewResolver(ResolverOpts{Providers: []Provider{failing, invalid, working}})

	loc := r.Resolve(context.Background())
	if loc == nil {
		t.Fatal("expected a location from the last provider")
	}
	if working.calls.Load() != 1 {
		t.Errorf("working provider called %d times, want 1", working.calls.Load())
	}
}

func TestResolve_AllExhaustedReturnsNil(t *testing.T) {
	r := NewResolver(ResolverOpts{Providers: []Provider{
		&stubProvider{name: "a", err: fmt.Errorf("down")},
		&stubProvider{name: "b", err: fmt.Errorf("down")},
	}})

	if loc := r.Resolve(context.Background()); loc != nil {
		t.Errorf("expected nil location, got %+v", loc)
	}
}

func TestResolve_CacheHitSkipsProviders(t *testing.T) {
	p := &stubProvider{name: "p", loc: goodFix()}
	r := NewResolver(ResolverOpts{Providers: []Provider{p}, TTL: time.Hour})

	first := r.Resolve(context.Background())
	second := r.Resolve(context.Background())

	if first == nil || second == nil {
		t.Fatal("expected locations")
	}
	if p.calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1 (second call should hit cache)", p.calls.Load())
	}
	if second.Source != SourceCached {
		t.Errorf("cached result Source = %q, want %q", second.Source, SourceCached)
	}
	if second.Latitude != first.Latitude || second.Longitude != first.Longitude {
		t.Error("cached coordinates differ from original fix")
	}
}

func TestResolve_ExpiredCacheRefetches(t *testing.T) {
	p := &stubProvider{name: "p", loc: goodFix()}
	r := NewResolver(ResolverOpts{Providers: []Provider{p}, TTL: 20 * time.Millisecond})

	r.Resolve(context.Background())
	time.Sleep(40 * time.Millisecond)
	loc := r.Resolve(context.Background())

	if loc == nil {
		t.Fatal("expected a location")
	}
	if p.calls.Load() != 2 {
		t.Errorf("provider called %d times, want 2 after TTL expiry", p.calls.Load())
	}
	if loc.Source == SourceCached {
		t.Error("post-expiry result should be a fresh fix, not cached")
	}
}

func TestResolve_ProviderTimeoutEnforcedAtCallSite(t *testing.T) {
	hung := providerFunc(func(ctx context.Context) (*Location, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(10 * time.Second):
			return goodFix(), nil
		}
	})
	backup := &stubProvider{name: "backup", loc: goodFix()}
	r := NewResolver(ResolverOpts{
		Providers: []Provider{hung, backup},
		Timeout:   30 * time.Millisecond,
	})

	start := time.Now()
	loc := r.Resolve(context.Background())
	if loc == nil {
		t.Fatal("expected backup provider to produce a location")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("resolve took %s, hung provider was not bounded", elapsed)
	}
}

// providerFunc adapts a function to the Provider interface.
type providerFunc func(ctx context.Context) (*Location, error)

func (f providerFunc) Name() string                                 { return "func" }
func (f providerFunc) Lookup(ctx context.Context) (*Location, error) { return f(ctx) }

func TestWarm_PopulatesEmptyCacheOnly(t *testing.T) {
	p := &stubProvider{name: "p", loc: goodFix()}
	r := NewResolver(ResolverOpts{Providers: []Provider{p}, TTL: time.Hour})

	r.Warm(context.Background())
	r.Warm(context.Background())

	if p.calls.Load() != 1 {
		t.Errorf("provider called %d times, want 1", p.calls.Load())
	}
	if r.Cached() == nil {
		t.Error("cache should be populated after Warm")
	}
}

func TestFlush(t *testing.T) {
	p := &stubProvider{name: "p", loc: goodFix()}
	r := NewResolver(ResolverOpts{Providers: []Provider{p}, TTL: time.Hour})

	r.Resolve(context.Background())
	r.Flush()
	r.Resolve(context.Background())

	if p.calls.Load() != 2 {
		t.Errorf("provider called %d times, want 2 after flush", p.calls.Load())
	}
}

func TestIPAPIProvider_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"status":"success","lat":51.5074,"lon":-0.1278,"city":"London","country":"United Kingdom","query":"203.0.113.7"}`)
	}))
	defer srv.Close()

	p := &IPAPIProvider{BaseURL: srv.URL, Client: srv.Client()}
	loc, err := p.Lookup(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.City != "London" || loc.Country != "United Kingdom" {
		t.Errorf("got %q/%q, want London/United Kingdom", loc.City, loc.Country)
	}
	if loc.Latitude != 51.5074 {
		t.Errorf("Latitude = %v, want 51.5074", loc.Latitude)
	}
	if loc.Source != SourceIP {
		t.Errorf("Source = %q, want %q", loc.Source, SourceIP)
	}
	if !loc.Valid() {
		t.Error("parsed fix should be valid")
	}
}

func TestIPAPIProvider_FailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"status":"fail","message":"private range"}`)
	}))
	defer srv.Close()

	p := &IPAPIProvider{BaseURL: srv.URL, Client: srv.Client()}
	if _, err := p.Lookup(context.Background()); err == nil {
		t.Fatal("expected error for failure status")
	}
}

func TestIPWhoProvider_ParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		fmt.Fprint(w, `{"latitude":48.8566,"longitude":2.3522,"city":"Paris","country_name":"France","ip":"203.0.113.9"}`)
	}))
	defer srv.Close()

	p := &IPWhoProvider{BaseURL: srv.URL, Client: srv.Client()}
	loc, err := p.Lookup(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if loc.City != "Paris" || loc.Country != "France" {
		t.Errorf("got %q/%q, want Paris/France", loc.City, loc.Country)
	}
	if loc.Address != "203.0.113.9" {
		t.Errorf("Address = %q, want the reported IP", loc.Address)
	}
}

func TestIPWhoProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &IPWhoProvider{BaseURL: srv.URL, Client: srv.Client()}
	if _, err := p.Lookup(context.Background()); err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestGeoIPProvider_MissingConfig(t *testing.T) {
	p := NewGeoIPProvider("", "203.0.113.7")
	if _, err := p.Lookup(context.Background()); err == nil {
		t.Fatal("expected error for missing database path")
	}

	p = NewGeoIPProvider("/nonexistent.mmdb", "not-an-ip")
	if _, err := p.Lookup(context.Background()); err == nil {
		t.Fatal("expected error for invalid address")
	}
}
