package main

import "time"

// Topic categories as they appear in the topic table file.
const (
	CategoryMissions     = "missions"
	CategoryServices     = "services"
	CategoryApplications = "applications"
)

// TopicTable maps category -> topic key -> answer text.
// A table is built once per load and never written to afterwards.
type TopicTable map[string]map[string]string

// topicRef points at a single answer in the topic table
type topicRef struct {
	Category string
	Key      string
}

// HelpbotResponse is the success envelope of the chat endpoint
type HelpbotResponse struct {
	Answer string `json:"answer"`
}

// ErrorResponse is the failure envelope shared by all endpoints
type ErrorResponse struct {
	Error string `json:"error"`
}

type TopicsInfoResponse struct {
	Source     string              `json:"source"`
	LoadedAt   time.Time           `json:"loaded_at"`
	Categories map[string]int      `json:"categories"`
	Topics     map[string][]string `json:"topics"`
	Watching   bool                `json:"watching"`
	Timestamp  time.Time           `json:"timestamp"`
}

type ReloadResponse struct {
	Message    string    `json:"message"`
	Source     string    `json:"source"`
	ReloadedAt time.Time `json:"reloaded_at"`
}

// LatLng is a WGS84 coordinate pair
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// GeocodingResult is the first match for an address lookup
type GeocodingResult struct {
	Lat     float64 `json:"lat"`
	Lng     float64 `json:"lng"`
	Address string  `json:"address"`
}

// PlaceResult is a single nearby-search hit
type PlaceResult struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Location LatLng `json:"location"`
}

// NearbyQuery describes a nearby-search request
type NearbyQuery struct {
	Center LatLng
	Radius int    // meters
	Type   string // optional place type filter
}

// MapMarker is a pin placed on a MapView
type MapMarker struct {
	Position LatLng `json:"position"`
	Title    string `json:"title,omitempty"`
}

// MapView is the description of a map the browser renders with the Maps JS API
type MapView struct {
	ElementID string      `json:"element_id"`
	Center    LatLng      `json:"center"`
	Zoom      int         `json:"zoom"`
	Markers   []MapMarker `json:"markers"`
	ScriptURL string      `json:"script_url"`
}

type PlacesResponse struct {
	Places []PlaceResult `json:"places"`
}

type ScriptURLResponse struct {
	URL string `json:"url"`
}
