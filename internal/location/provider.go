package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Provider is one interchangeable location lookup service. Implementations
// must honor ctx cancellation; the resolver enforces a per-call timeout at
// the call site rather than trusting the provider.
type Provider interface {
	Name() string
	Lookup(ctx context.Context) (*Location, error)
}

// httpGetJSON fetches url and decodes the JSON body into v.
func httpGetJSON(ctx context.Context, client *http.Client, url string, v interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

// IPAPIProvider queries the ip-api.com JSON endpoint.
type IPAPIProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewIPAPIProvider creates an ip-api.com provider against the public endpoint.
func NewIPAPIProvider() *IPAPIProvider {
	return &IPAPIProvider{
		BaseURL: "http://ip-api.com",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *IPAPIProvider) Name() string { return "ipapi" }

func (p *IPAPIProvider) Lookup(ctx context.Context) (*Location, error) {
	var resp struct {
		Status  string  `json:"status"`
		Lat     float64 `json:"lat"`
		Lon     float64 `json:"lon"`
		City    string  `json:"city"`
		Country string  `json:"country"`
		Query   string  `json:"query"`
	}
	if err := httpGetJSON(ctx, p.Client, p.BaseURL+"/json/", &resp); err != nil {
		return nil, fmt.Errorf("ipapi: %w", err)
	}
	if resp.Status != "success" {
		return nil, fmt.Errorf("ipapi: lookup status %q", resp.Status)
	}
	return &Location{
		Latitude:   resp.Lat,
		Longitude:  resp.Lon,
		Address:    resp.Query,
		City:       resp.City,
		Country:    resp.Country,
		Source:     SourceIP,
		Accuracy:   0.8,
		ResolvedAt: time.Now(),
	}, nil
}

// IPWhoProvider queries the ipapi.co JSON endpoint (different schema from
// ip-api.com, normalized here).
type IPWhoProvider struct {
	BaseURL string
	Client  *http.Client
}

// NewIPWhoProvider creates an ipapi.co provider against the public endpoint.
func NewIPWhoProvider() *IPWhoProvider {
	return &IPWhoProvider{
		BaseURL: "https://ipapi.co",
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (p *IPWhoProvider) Name() string { return "ipwho" }

func (p *IPWhoProvider) Lookup(ctx context.Context) (*Location, error) {
	var resp struct {
		Latitude    float64 `json:"latitude"`
		Longitude   float64 `json:"longitude"`
		City        string  `json:"city"`
		CountryName string  `json:"country_name"`
		IP          string  `json:"ip"`
	}
	if err := httpGetJSON(ctx, p.Client, p.BaseURL+"/json/", &resp); err != nil {
		return nil, fmt.Errorf("ipwho: %w", err)
	}
	return &Location{
		Latitude:    resp.Latitude,
		Longitude:   resp.Longitude,
		Address:     resp.IP,
		City:        resp.City,
		Country:     resp.CountryName,
		Source:      SourceIP,
		Accuracy:    0.8,
		ResolvedAt:  time.Now(),
	}, nil
}
