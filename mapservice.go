package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

const (
	defaultMapsBaseURL = "https://maps.googleapis.com"
	defaultRadius      = 1000 // meters
	defaultZoom        = 12
	mapsScriptURL      = "https://maps.googleapis.com/maps/api/js"
	statusOK           = "OK"
)

// ErrMapsNotLoaded is returned when a map is requested but the Maps JS API
// cannot be loaded because no browser key is configured.
var ErrMapsNotLoaded = errors.New("google maps not loaded")

// MapProvider is the subset of the mapping provider used by the portal
type MapProvider interface {
	Geocode(ctx context.Context, address string) (*GeocodingResult, error)
	NearbySearch(ctx context.Context, q NearbyQuery) ([]PlaceResult, error)
	InitMap(elementID string, center LatLng, zoom int) (*MapView, error)
	AddMarker(view *MapView, position LatLng, title string)
}

// GoogleMapsClient talks to the Google Maps Platform web service APIs
type GoogleMapsClient struct {
	baseURL         string
	mapsAPIKey      string
	geocodingAPIKey string
	placesAPIKey    string
	client          *http.Client
}

func NewGoogleMapsClient(cfg MapsConfig) *GoogleMapsClient {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultMapsBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &GoogleMapsClient{
		baseURL:         baseURL,
		mapsAPIKey:      cfg.MapsAPIKey,
		geocodingAPIKey: cfg.GeocodingAPIKey,
		placesAPIKey:    cfg.PlacesAPIKey,
		client:          &http.Client{Timeout: timeout},
	}
}

type googleLocation struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type googleGeometry struct {
	Location googleLocation `json:"location"`
}

type geocodeResponse struct {
	Status  string `json:"status"`
	Results []struct {
		FormattedAddress string         `json:"formatted_address"`
		Geometry         googleGeometry `json:"geometry"`
	} `json:"results"`
}

type nearbySearchResponse struct {
	Status  string `json:"status"`
	Results []struct {
		PlaceID  string         `json:"place_id"`
		Name     string         `json:"name"`
		Vicinity string         `json:"vicinity"`
		Geometry googleGeometry `json:"geometry"`
	} `json:"results"`
}

// Geocode returns the first match for address, or nil when the provider has none
func (g *GoogleMapsClient) Geocode(ctx context.Context, address string) (*GeocodingResult, error) {
	params := url.Values{}
	params.Set("address", address)
	params.Set("key", g.geocodingAPIKey)

	var resp geocodeResponse
	if err := g.getJSON(ctx, "/maps/api/geocode/json", params, &resp); err != nil {
		return nil, fmt.Errorf("geocoding request failed: %w", err)
	}

	if resp.Status != statusOK || len(resp.Results) == 0 {
		return nil, nil
	}

	first := resp.Results[0]
	return &GeocodingResult{
		Lat:     first.Geometry.Location.Lat,
		Lng:     first.Geometry.Location.Lng,
		Address: first.FormattedAddress,
	}, nil
}

// NearbySearch lists places around q.Center
func (g *GoogleMapsClient) NearbySearch(ctx context.Context, q NearbyQuery) ([]PlaceResult, error) {
	params := url.Values{}
	params.Set("location", formatLatLng(q.Center))
	params.Set("radius", strconv.Itoa(q.Radius))
	params.Set("key", g.placesAPIKey)
	if q.Type != "" {
		params.Set("type", q.Type)
	}

	var resp nearbySearchResponse
	if err := g.getJSON(ctx, "/maps/api/place/nearbysearch/json", params, &resp); err != nil {
		return nil, fmt.Errorf("places API request failed: %w", err)
	}

	if resp.Status != statusOK {
		return []PlaceResult{}, nil
	}

	places := make([]PlaceResult, 0, len(resp.Results))
	for _, p := range resp.Results {
		places = append(places, PlaceResult{
			ID:      p.PlaceID,
			Name:    p.Name,
			Address: p.Vicinity,
			Location: LatLng{
				Lat: p.Geometry.Location.Lat,
				Lng: p.Geometry.Location.Lng,
			},
		})
	}
	return places, nil
}

// InitMap describes a map centered on center. The browser can only load the
// Maps JS API with a browser key, so without one there is no map to init.
func (g *GoogleMapsClient) InitMap(elementID string, center LatLng, zoom int) (*MapView, error) {
	if g.mapsAPIKey == "" {
		return nil, ErrMapsNotLoaded
	}
	if zoom <= 0 {
		zoom = defaultZoom
	}

	return &MapView{
		ElementID: elementID,
		Center:    center,
		Zoom:      zoom,
		Markers:   []MapMarker{},
		ScriptURL: g.ScriptURL(),
	}, nil
}

// AddMarker pins position on view. A nil view is ignored.
func (g *GoogleMapsClient) AddMarker(view *MapView, position LatLng, title string) {
	if view == nil {
		return
	}
	view.Markers = append(view.Markers, MapMarker{Position: position, Title: title})
}

// ScriptURL is the Maps JS API URL with the places library
func (g *GoogleMapsClient) ScriptURL() string {
	params := url.Values{}
	params.Set("key", g.mapsAPIKey)
	params.Set("libraries", "places")
	return mapsScriptURL + "?" + params.Encode()
}

// HasKeys reports whether all three API keys are configured
func (g *GoogleMapsClient) HasKeys() bool {
	return g.mapsAPIKey != "" && g.geocodingAPIKey != "" && g.placesAPIKey != ""
}

func (g *GoogleMapsClient) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("provider returned status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func formatLatLng(p LatLng) string {
	return strconv.FormatFloat(p.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(p.Lng, 'f', -1, 64)
}

// MapService forwards to a MapProvider and never surfaces provider errors:
// a failed lookup is logged and reported as "no result". Cached results are
// copied in and out, so callers own what they get back.
type MapService struct {
	provider  MapProvider
	scriptURL string
	hasKeys   bool
	cache     *cache.Cache
	logger    *zap.Logger
}

// NewMapService caches successful lookups for cacheTTL. A zero TTL disables caching.
func NewMapService(provider MapProvider, scriptURL string, hasKeys bool, cacheTTL time.Duration, logger *zap.Logger) *MapService {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &MapService{
		provider:  provider,
		scriptURL: scriptURL,
		hasKeys:   hasKeys,
		logger:    logger,
	}
	if cacheTTL > 0 {
		s.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return s
}

// NewGoogleMapService wires a MapService to the Google Maps client
func NewGoogleMapService(cfg MapsConfig, logger *zap.Logger) *MapService {
	client := NewGoogleMapsClient(cfg)
	return NewMapService(client, client.ScriptURL(), client.HasKeys(), cfg.CacheTTL, logger)
}

// GetCoordinates geocodes address. It returns nil on no match and on failure alike.
func (s *MapService) GetCoordinates(ctx context.Context, address string) *GeocodingResult {
	key := "geocode:" + address
	if cached, ok := s.cacheGet(key); ok {
		result := *cached.(*GeocodingResult)
		return &result
	}

	result, err := s.provider.Geocode(ctx, address)
	if err != nil {
		s.logger.Error("Geocoding error", zap.String("address", address), zap.Error(err))
		return nil
	}
	if result != nil {
		stored := *result
		s.cacheSet(key, &stored)
	}
	return result
}

// SearchNearbyPlaces lists places around (lat, lng). It returns an empty slice
// on no match and on failure alike. radius <= 0 means 1000 meters.
func (s *MapService) SearchNearbyPlaces(ctx context.Context, lat, lng float64, radius int, placeType string) []PlaceResult {
	if radius <= 0 {
		radius = defaultRadius
	}

	q := NearbyQuery{Center: LatLng{Lat: lat, Lng: lng}, Radius: radius, Type: placeType}
	key := fmt.Sprintf("nearby:%s:%d:%s", formatLatLng(q.Center), radius, placeType)
	if cached, ok := s.cacheGet(key); ok {
		return append([]PlaceResult(nil), cached.([]PlaceResult)...)
	}

	places, err := s.provider.NearbySearch(ctx, q)
	if err != nil {
		s.logger.Error("Places API error", zap.String("location", formatLatLng(q.Center)), zap.Error(err))
		return []PlaceResult{}
	}
	if places == nil {
		places = []PlaceResult{}
	}
	if len(places) > 0 {
		s.cacheSet(key, append([]PlaceResult(nil), places...))
	}
	return places
}

// MapScriptURL returns the Maps JS API script URL
func (s *MapService) MapScriptURL() string {
	return s.scriptURL
}

// InitMap describes a map for elementID. zoom <= 0 means 12.
func (s *MapService) InitMap(elementID string, center LatLng, zoom int) (*MapView, error) {
	return s.provider.InitMap(elementID, center, zoom)
}

// AddMarker pins position on view
func (s *MapService) AddMarker(view *MapView, position LatLng, title string) {
	s.provider.AddMarker(view, position, title)
}

// HasKeys reports whether every API key is configured
func (s *MapService) HasKeys() bool {
	return s.hasKeys
}

// ValidateKeys reports, and logs, a missing API key
func (s *MapService) ValidateKeys() bool {
	if !s.hasKeys {
		s.logger.Error("Missing required Google Maps API keys")
		return false
	}
	return true
}

func (s *MapService) cacheGet(key string) (interface{}, bool) {
	if s.cache == nil {
		return nil, false
	}
	return s.cache.Get(key)
}

func (s *MapService) cacheSet(key string, value interface{}) {
	if s.cache == nil {
		return
	}
	s.cache.Set(key, value, cache.DefaultExpiration)
}
