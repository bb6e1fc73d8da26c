package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	errInvalidQuery  = "Invalid query provided"
	errInternalError = "Internal Server Error"
)

func (s *Server) handleIndex(c echo.Context) error {
	return c.HTMLBlob(http.StatusOK, indexHTML)
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":        "ok",
		"timestamp":     time.Now(),
		"topics_source": s.topics.Source(),
		"maps_keys":     s.maps.HasKeys(),
	})
}

// handleHelpbot answers a single chat turn.
// The body must be a JSON object whose "query" is a non-empty string.
func (s *Server) handleHelpbot(c echo.Context) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Helpbot API error", zap.Any("panic", rec))
			err = c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternalError})
		}
	}()

	payload, err := decodeJSONBody(c.Request().Body)
	if err != nil {
		s.logger.Error("Helpbot API error", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternalError})
	}

	// A literal null cannot be destructured, which is a server side failure
	// rather than a bad query.
	if payload == nil {
		s.logger.Error("Helpbot API error", zap.String("reason", "null request body"))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternalError})
	}

	query, ok := queryField(payload)
	if !ok {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: errInvalidQuery})
	}

	answer := s.answers.Resolve(query)
	return c.JSON(http.StatusOK, HelpbotResponse{Answer: answer})
}

// decodeJSONBody decodes exactly one JSON value. Anything but whitespace after
// it makes the body unparseable.
func decodeJSONBody(body io.Reader) (interface{}, error) {
	dec := json.NewDecoder(body)

	var payload interface{}
	if err := dec.Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding request body: %w", err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, errors.New("decoding request body: unexpected data after JSON value")
	}
	return payload, nil
}

// queryField extracts a non-empty string "query" from a decoded JSON body
func queryField(payload interface{}) (string, bool) {
	body, ok := payload.(map[string]interface{})
	if !ok {
		return "", false
	}
	query, ok := body["query"].(string)
	if !ok || query == "" {
		return "", false
	}
	return query, true
}

func (s *Server) handleTopicsInfo(c echo.Context) error {
	return c.JSON(http.StatusOK, s.topics.Info())
}

func (s *Server) handleReloadTopics(c echo.Context) error {
	if err := s.topics.Reload(); err != nil {
		s.logger.Error("Topic reload failed", zap.Error(err))
		return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
			Error: fmt.Sprintf("Reload failed, previous topic table kept: %v", err),
		})
	}

	source := s.topics.Source()
	return c.JSON(http.StatusOK, ReloadResponse{
		Message:    fmt.Sprintf("Topic table reloaded from %s", source),
		Source:     source,
		ReloadedAt: time.Now(),
	})
}

func (s *Server) handleGeocode(c echo.Context) error {
	address := c.QueryParam("address")
	if address == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "address is required"})
	}

	result := s.maps.GetCoordinates(c.Request().Context(), address)
	if result == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("No location found for: %s", address)})
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) handleNearby(c echo.Context) error {
	var (
		lat, lng  float64
		radius    int
		placeType string
	)
	err := echo.QueryParamsBinder(c).
		MustFloat64("lat", &lat).
		MustFloat64("lng", &lng).
		Int("radius", &radius).
		String("type", &placeType).
		BindError()
	if err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "lat and lng are required numbers, radius must be an integer"})
	}

	places := s.maps.SearchNearbyPlaces(c.Request().Context(), lat, lng, radius, placeType)
	return c.JSON(http.StatusOK, PlacesResponse{Places: places})
}

func (s *Server) handleScriptURL(c echo.Context) error {
	return c.JSON(http.StatusOK, ScriptURLResponse{URL: s.maps.MapScriptURL()})
}

// handleMapView geocodes an address and describes a map centered on it, with
// one marker for the address and one per nearby place.
func (s *Server) handleMapView(c echo.Context) error {
	var (
		address   string
		elementID = "map"
		placeType string
		radius    int
		zoom      int
	)
	err := echo.QueryParamsBinder(c).
		MustString("address", &address).
		String("element", &elementID).
		String("type", &placeType).
		Int("radius", &radius).
		Int("zoom", &zoom).
		BindError()
	if err != nil || address == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "address is required, radius and zoom must be integers"})
	}

	ctx := c.Request().Context()
	location := s.maps.GetCoordinates(ctx, address)
	if location == nil {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: fmt.Sprintf("No location found for: %s", address)})
	}

	center := LatLng{Lat: location.Lat, Lng: location.Lng}
	view, err := s.maps.InitMap(elementID, center, zoom)
	if err != nil {
		if errors.Is(err, ErrMapsNotLoaded) {
			return c.JSON(http.StatusServiceUnavailable, ErrorResponse{Error: "Maps are not configured"})
		}
		s.logger.Error("Map init failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: errInternalError})
	}

	s.maps.AddMarker(view, center, location.Address)
	for _, place := range s.maps.SearchNearbyPlaces(ctx, center.Lat, center.Lng, radius, placeType) {
		s.maps.AddMarker(view, place.Location, place.Name)
	}

	return c.JSON(http.StatusOK, view)
}
