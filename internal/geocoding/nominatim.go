// Package geocoding wraps the public Nominatim service with a client-side
// rate limit and an optional redis result cache.
package geocoding

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/parcelpal/internal/cache"
	"github.com/parcelpal/internal/geo"

	"golang.org/x/time/rate"
)

var (
	ErrDisabled        = errors.New("geocoding disabled")
	ErrRequestFailed   = errors.New("geocoding request failed")
	ErrResponseInvalid = errors.New("geocoding response invalid")
	ErrNotFound        = errors.New("geocoding no result")
	ErrInvalidQuery    = errors.New("geocoding query invalid")
)

const (
	defaultBaseURL     = "https://nominatim.openstreetmap.org"
	defaultUserAgent   = "parcelpal/1.0"
	defaultMinInterval = time.Second
	defaultTimeout     = 5 * time.Second
	searchLimit        = 5
)

// Config client options
type Config struct {
	Enabled     bool
	BaseURL     string
	UserAgent   string
	MinInterval time.Duration
	Timeout     time.Duration
	CacheTTL    time.Duration
}

func (c *Config) normalize() {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		c.BaseURL = defaultBaseURL
	}
	c.UserAgent = strings.TrimSpace(c.UserAgent)
	if c.UserAgent == "" {
		c.UserAgent = defaultUserAgent
	}
	if c.MinInterval <= 0 {
		c.MinInterval = defaultMinInterval
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
}

// Address reverse lookup result
type Address struct {
	Address  string  `json:"address"`
	City     string  `json:"city"`
	State    string  `json:"state"`
	Country  string  `json:"country"`
	Postcode string  `json:"postcode"`
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
}

// Place forward search result
type Place struct {
	DisplayName string  `json:"display_name"`
	Lat         float64 `json:"lat"`
	Lng         float64 `json:"lng"`
	City        string  `json:"city"`
	State       string  `json:"state"`
	Country     string  `json:"country"`
	Postcode    string  `json:"postcode"`
}

// Client Nominatim client; one limiter per client keeps every call at most 1/s
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
}

// New creates a client
func New(cfg Config) *Client {
	cfg.normalize()
	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(cfg.MinInterval), 1),
	}
}

// WithHTTPClient swaps the transport (tests)
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	if hc != nil {
		c.http = hc
	}
	return c
}

// Enabled reports whether lookups are allowed
func (c *Client) Enabled() bool {
	return c != nil && c.cfg.Enabled
}

type nominatimAddress struct {
	City     string `json:"city"`
	Town     string `json:"town"`
	Village  string `json:"village"`
	State    string `json:"state"`
	Country  string `json:"country"`
	Postcode string `json:"postcode"`
}

func (a nominatimAddress) city() string {
	switch {
	case a.City != "":
		return a.City
	case a.Town != "":
		return a.Town
	default:
		return a.Village
	}
}

type nominatimPlace struct {
	DisplayName string           `json:"display_name"`
	Lat         string           `json:"lat"`
	Lon         string           `json:"lon"`
	Address     nominatimAddress `json:"address"`
	Error       string           `json:"error"`
}

// Reverse resolves coordinates to an address
func (c *Client) Reverse(ctx context.Context, lat, lng float64) (*Address, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	if !(geo.Point{Lat: lat, Lng: lng}).Valid() {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrInvalidQuery)
	}
	cacheKey := fmt.Sprintf("geocode:reverse:%.5f:%.5f", lat, lng)
	var cached Address
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return &cached, nil
	}

	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lng, 'f', -1, 64))
	q.Set("format", "json")
	q.Set("addressdetails", "1")

	var place nominatimPlace
	if err := c.get(ctx, "/reverse", q, &place); err != nil {
		return nil, err
	}
	if place.Error != "" || place.DisplayName == "" {
		return nil, ErrNotFound
	}
	result := &Address{
		Address:  place.DisplayName,
		City:     place.Address.city(),
		State:    place.Address.State,
		Country:  place.Address.Country,
		Postcode: place.Address.Postcode,
		Lat:      lat,
		Lng:      lng,
	}
	c.store(ctx, cacheKey, result)
	return result, nil
}

// Search resolves free text to up to five places
func (c *Client) Search(ctx context.Context, query string) ([]Place, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: empty query", ErrInvalidQuery)
	}
	cacheKey := "geocode:search:" + strings.ToLower(query)
	var cached []Place
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err == nil && hit {
		return cached, nil
	}

	q := url.Values{}
	q.Set("q", query)
	q.Set("format", "json")
	q.Set("addressdetails", "1")
	q.Set("limit", strconv.Itoa(searchLimit))

	var raw []nominatimPlace
	if err := c.get(ctx, "/search", q, &raw); err != nil {
		return nil, err
	}
	places := make([]Place, 0, len(raw))
	for _, p := range raw {
		lat, errLat := strconv.ParseFloat(p.Lat, 64)
		lng, errLng := strconv.ParseFloat(p.Lon, 64)
		if errLat != nil || errLng != nil {
			continue
		}
		places = append(places, Place{
			DisplayName: p.DisplayName,
			Lat:         lat,
			Lng:         lng,
			City:        p.Address.city(),
			State:       p.Address.State,
			Country:     p.Address.Country,
			Postcode:    p.Address.Postcode,
		})
	}
	c.store(ctx, cacheKey, places)
	return places, nil
}

// AddressOrCoordinates reverse geocodes within budget, falling back to "lat, lng"
func (c *Client) AddressOrCoordinates(ctx context.Context, p geo.Point, budget time.Duration) string {
	if !c.Enabled() {
		return p.String()
	}
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}
	addr, err := c.Reverse(ctx, p.Lat, p.Lng)
	if err != nil || addr == nil || addr.Address == "" {
		return p.String()
	}
	return addr.Address
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrRequestFailed, resp.StatusCode)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return nil
}

func (c *Client) store(ctx context.Context, key string, value interface{}) {
	if c.cfg.CacheTTL <= 0 {
		return
	}
	_ = cache.SetJSON(ctx, key, value, c.cfg.CacheTTL)
}
