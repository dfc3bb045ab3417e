// Package geocoding reverse geocodes coordinates against a Google Geocoding
// compatible API. Results are cached in redis when a cache is configured.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/JaimeStill/civic/internal/metrics"
	"github.com/JaimeStill/civic/internal/resolver"
	"github.com/JaimeStill/civic/pkg/cache"
)

var (
	ErrNoResult    = errors.New("no geocoding result")
	ErrUnavailable = errors.New("geocoder unavailable")
)

const collaborator = "geocoder"

var tracer = otel.Tracer("github.com/JaimeStill/civic/internal/geocoding")

type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	cache   *cache.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// New returns a client. cache and m may be nil.
func New(cfg *Config, httpClient *http.Client, c *cache.Client, m *metrics.Metrics, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.TimeoutDuration()}
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		http:    httpClient,
		cache:   c,
		metrics: m,
		logger:  logger.With("system", "geocoding"),
	}
}

type response struct {
	Status       string   `json:"status"`
	ErrorMessage string   `json:"error_message,omitempty"`
	Results      []result `json:"results"`
}

type result struct {
	FormattedAddress  string      `json:"formatted_address"`
	AddressComponents []component `json:"address_components"`
}

type component struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// ReverseGeocode returns the best address for the coordinate. Fields absent
// from the response are left empty.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (addr *resolver.Address, err error) {
	ctx, span := tracer.Start(ctx, "geocoding.ReverseGeocode",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.Float64("geo.latitude", lat),
			attribute.Float64("geo.longitude", lng),
		),
	)
	start := time.Now()
	defer func() {
		c.metrics.ObserveCollaborator(collaborator, start, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	key := cacheKey(lat, lng)
	var cached resolver.Address
	if c.cache.GetJSON(ctx, key, &cached) {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return &cached, nil
	}

	addr, err = c.fetch(ctx, lat, lng)
	if err != nil {
		return nil, err
	}

	c.cache.SetJSON(ctx, key, addr)
	return addr, nil
}

func (c *Client) fetch(ctx context.Context, lat, lng float64) (*resolver.Address, error) {
	q := url.Values{}
	q.Set("latlng", formatCoord(lat)+","+formatCoord(lng))
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/maps/api/geocode/json?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build geocode request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var body response
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode: %w", ErrUnavailable, err)
	}

	switch body.Status {
	case "OK":
	case "ZERO_RESULTS":
		return nil, ErrNoResult
	default:
		return nil, fmt.Errorf("%w: %s %s", ErrUnavailable, body.Status, body.ErrorMessage)
	}

	if len(body.Results) == 0 {
		return nil, ErrNoResult
	}

	return toAddress(body.Results[0]), nil
}

// toAddress maps level 1 to state, level 2 to district, and locality (or
// level 3) to city.
func toAddress(r result) *resolver.Address {
	addr := &resolver.Address{FormattedAddress: r.FormattedAddress}
	for _, comp := range r.AddressComponents {
		switch {
		case has(comp, "administrative_area_level_1"):
			addr.State = comp.LongName
		case has(comp, "administrative_area_level_2"):
			addr.District = comp.LongName
		case has(comp, "locality"):
			addr.City = comp.LongName
		case has(comp, "administrative_area_level_3") && addr.City == "":
			addr.City = comp.LongName
		}
	}
	return addr
}

func has(c component, typ string) bool {
	return slices.Contains(c.Types, typ)
}

// cacheKey rounds to five decimals, roughly one metre.
func cacheKey(lat, lng float64) string {
	return "geocode:" + formatCoord(lat) + "," + formatCoord(lng)
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 5, 64)
}
