package geocoding

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-resty/resty/v2"
	"github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"homeworth/server/config"
	"homeworth/server/internal/models"
)

// SourceName labels the facts this geocoder produces.
const SourceName = "nominatim"

type nominatimResponse []struct {
	Lat         string `json:"lat"`
	Lon         string `json:"lon"`
	DisplayName string `json:"display_name"`
}

// Geocoder resolves coordinates for properties that were stored without them.
type Geocoder struct {
	logger  *logrus.Logger
	http    *resty.Client
	limiter *rate.Limiter
	cache   *cache.Cache
}

func NewGeocoder(cfg config.GeocoderConfig, logger *logrus.Logger) *Geocoder {
	if logger == nil {
		logger = logrus.New()
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	ttl, cleanup := cfg.CacheTTL, 2*cfg.CacheTTL
	if ttl <= 0 {
		ttl, cleanup = cache.NoExpiration, 0
	}

	return &Geocoder{
		logger: logger,
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetTimeout(cfg.Timeout).
			SetHeader("User-Agent", cfg.UserAgent).
			SetHeader("Accept-Language", "en-US,en;q=0.9"),
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache.New(ttl, cleanup),
	}
}

func (g *Geocoder) Name() string {
	return SourceName
}

// Facts geocodes the property's address. Properties that already carry coordinates,
// or have no address to search for, yield no facts.
func (g *Geocoder) Facts(ctx context.Context, property *models.Property) (map[string]string, error) {
	if property.Latitude != nil && property.Longitude != nil {
		return nil, nil
	}
	query := searchQuery(property)
	if query == "" {
		return nil, nil
	}

	cacheKey := strings.ToLower(query)
	if cached, ok := g.cache.Get(cacheKey); ok {
		g.logger.WithField("address", query).Debug("Found coordinates in cache")
		return copyFacts(cached.(map[string]string)), nil
	}

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	g.logger.WithField("address", query).Info("Geocoding address with Nominatim")

	resp, err := g.http.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"q":            query,
			"format":       "json",
			"limit":        "1",
			"countrycodes": "us",
		}).
		Get("/search")
	if err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("geocoding returned %s", resp.Status())
	}

	var result nominatimResponse
	if err := json.Unmarshal(resp.Body(), &result); err != nil {
		return nil, fmt.Errorf("failed to parse geocoding response: %w", err)
	}

	facts := map[string]string{}
	if len(result) > 0 {
		facts, err = coordinateFacts(result[0].Lat, result[0].Lon, result[0].DisplayName)
		if err != nil {
			return nil, err
		}
	} else {
		g.logger.WithField("address", query).Warn("No results found")
	}

	// misses are cached too so an unknown address is not searched on every refresh
	g.cache.SetDefault(cacheKey, facts)
	return copyFacts(facts), nil
}

func searchQuery(p *models.Property) string {
	parts := make([]string, 0, 4)
	for _, part := range []string{p.Street, p.City, p.State, p.Zip} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	// a bare state or zip is too coarse to be useful as a location
	if p.Street == "" && p.City == "" {
		return ""
	}
	return strings.Join(parts, ", ")
}

func coordinateFacts(latRaw, lonRaw, displayName string) (map[string]string, error) {
	lat, err := strconv.ParseFloat(latRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid latitude %q: %w", latRaw, err)
	}
	lon, err := strconv.ParseFloat(lonRaw, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid longitude %q: %w", lonRaw, err)
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("coordinates out of range: %s,%s", latRaw, lonRaw)
	}

	facts := map[string]string{
		"latitude":  strconv.FormatFloat(lat, 'f', -1, 64),
		"longitude": strconv.FormatFloat(lon, 'f', -1, 64),
	}
	if displayName != "" {
		facts["display_name"] = displayName
	}
	return facts, nil
}

func copyFacts(facts map[string]string) map[string]string {
	if len(facts) == 0 {
		return nil
	}
	out := make(map[string]string, len(facts))
	for k, v := range facts {
		out[k] = v
	}
	return out
}

// CacheSize reports how many addresses are cached.
func (g *Geocoder) CacheSize() int {
	return g.cache.ItemCount()
}
