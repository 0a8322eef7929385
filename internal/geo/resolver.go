// Package geo resolves source IPs to a coarse human-readable location.
// Lookups are best-effort: every failure path returns an empty string and
// the caller records the event without a location.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignite/outreach-tracker/internal/config"
	"github.com/ignite/outreach-tracker/internal/pkg/httpretry"
	"github.com/ignite/outreach-tracker/internal/pkg/logger"
)

// Resolver looks up IP locations via the ip-api.com JSON endpoint, with an
// optional Redis cache in front to avoid re-querying hot client IPs on
// every pixel fetch.
type Resolver struct {
	client  httpretry.HTTPDoer
	cache   *redis.Client
	baseURL string
	timeout time.Duration
	ttl     time.Duration
	enabled bool
}

type apiResponse struct {
	Status     string `json:"status"`
	City       string `json:"city"`
	RegionName string `json:"regionName"`
	Country    string `json:"country"`
}

// NewResolver creates a geo resolver. The redis client may be nil, which
// disables caching but not lookups.
func NewResolver(cfg config.GeoConfig, cache *redis.Client) *Resolver {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Resolver{
		client:  httpretry.NewRetryClient(&http.Client{Timeout: timeout}, 1),
		cache:   cache,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		timeout: timeout,
		ttl:     time.Duration(cfg.CacheTTLHours) * time.Hour,
		enabled: cfg.Enabled,
	}
}

// Resolve returns "City, Region, Country" for the given IP, or "" when the
// IP is private, the resolver is disabled, or the lookup fails.
func (g *Resolver) Resolve(ctx context.Context, ip string) string {
	if !g.enabled || !lookupable(ip) {
		return ""
	}

	if loc, ok := g.cached(ctx, ip); ok {
		return loc
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"/json/"+ip, nil)
	if err != nil {
		return ""
	}

	resp, err := g.client.Do(req)
	if err != nil {
		logger.Debug("geo lookup failed", "ip", ip, "err", err)
		return ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ""
	}

	var body apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Status != "success" {
		return ""
	}

	loc := formatLocation(body)
	g.store(ctx, ip, loc)
	return loc
}

func (g *Resolver) cached(ctx context.Context, ip string) (string, bool) {
	if g.cache == nil {
		return "", false
	}
	loc, err := g.cache.Get(ctx, cacheKey(ip)).Result()
	if err != nil {
		return "", false
	}
	return loc, true
}

func (g *Resolver) store(ctx context.Context, ip, loc string) {
	if g.cache == nil || loc == "" {
		return
	}
	if err := g.cache.Set(ctx, cacheKey(ip), loc, g.ttl).Err(); err != nil {
		logger.Debug("geo cache write failed", "err", err)
	}
}

func cacheKey(ip string) string { return "geo:" + ip }

func formatLocation(r apiResponse) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{r.City, r.RegionName, r.Country} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// lookupable filters addresses the upstream API cannot locate.
func lookupable(ip string) bool {
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	if parsed.IsLoopback() || parsed.IsPrivate() || parsed.IsUnspecified() || parsed.IsLinkLocalUnicast() {
		return false
	}
	return true
}

// String implements fmt.Stringer for diagnostics.
func (g *Resolver) String() string {
	return fmt.Sprintf("geo.Resolver{enabled=%t cache=%t}", g.enabled, g.cache != nil)
}
