package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testConfig() *Config {
	return &Config{
		App: AppConfig{
			CorsAllowedOrigins: []string{"*"},
			ShutdownTimeout:    time.Second,
		},
	}
}

func newTestServer(t *testing.T, topicsPath string, maps *MapService) *Server {
	t.Helper()
	topics, err := NewTopicStore(topicsPath, nil)
	require.NoError(t, err)
	t.Cleanup(func() { topics.Close() })

	if maps == nil {
		maps = NewMapService(&fakeProvider{}, "", false, 0, nil)
	}
	return NewServer(testConfig(), topics, maps, zap.NewNop())
}

func doRequest(t *testing.T, s *Server, method, target, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	var decoded map[string]interface{}
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

type panickingAnswerer struct{}

func (panickingAnswerer) Resolve(string) string { panic("resolver exploded") }

func TestHandleHelpbot(t *testing.T) {
	s := newTestServer(t, "", nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantBody   map[string]interface{}
	}{
		{
			name:       "cyclone",
			body:       `{"query": "Tell me about cyclone"}`,
			wantStatus: http.StatusOK,
			wantBody:   map[string]interface{}{"answer": "Monitor cyclone observations and predictions over the Indian Ocean region."},
		},
		{
			name:       "fallback",
			body:       `{"query": "hello"}`,
			wantStatus: http.StatusOK,
			wantBody:   map[string]interface{}{"answer": fallbackAnswer},
		},
		{
			name:       "whitespace query resolves",
			body:       `{"query": "   "}`,
			wantStatus: http.StatusOK,
			wantBody:   map[string]interface{}{"answer": fallbackAnswer},
		},
		{
			name:       "extra fields ignored",
			body:       `{"query": "INSAT", "user": "x"}`,
			wantStatus: http.StatusOK,
			wantBody:   map[string]interface{}{"answer": insatPromptAnswer},
		},
		{
			name:       "missing query",
			body:       `{}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]interface{}{"error": "Invalid query provided"},
		},
		{
			name:       "number query",
			body:       `{"query": 123}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]interface{}{"error": "Invalid query provided"},
		},
		{
			name:       "empty query",
			body:       `{"query": ""}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]interface{}{"error": "Invalid query provided"},
		},
		{
			name:       "null query",
			body:       `{"query": null}`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]interface{}{"error": "Invalid query provided"},
		},
		{
			name:       "array body",
			body:       `["weather"]`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]interface{}{"error": "Invalid query provided"},
		},
		{
			name:       "string body",
			body:       `"weather"`,
			wantStatus: http.StatusBadRequest,
			wantBody:   map[string]interface{}{"error": "Invalid query provided"},
		},
		{
			name:       "null body",
			body:       `null`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]interface{}{"error": "Internal Server Error"},
		},
		{
			name:       "malformed json",
			body:       `{"query": `,
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]interface{}{"error": "Internal Server Error"},
		},
		{
			name:       "empty body",
			body:       ``,
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]interface{}{"error": "Internal Server Error"},
		},
		{
			name:       "trailing text",
			body:       `{"query":"cyclone"} trailing`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]interface{}{"error": "Internal Server Error"},
		},
		{
			name:       "second json value",
			body:       `{"query":"cyclone"} {"query":"ocean"}`,
			wantStatus: http.StatusInternalServerError,
			wantBody:   map[string]interface{}{"error": "Internal Server Error"},
		},
		{
			name:       "trailing whitespace",
			body:       "{\"query\":\"cyclone\"}\n\t ",
			wantStatus: http.StatusOK,
			wantBody:   map[string]interface{}{"answer": "Monitor cyclone observations and predictions over the Indian Ocean region."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := doRequest(t, s, http.MethodPost, "/api/helpbot", tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantBody, body)
		})
	}
}

func TestHandleHelpbot_LongQuery(t *testing.T) {
	s := newTestServer(t, "", nil)

	body := `{"query":"` + strings.Repeat("a", 70*1024) + ` cyclone"}`
	rec, decoded := doRequest(t, s, http.MethodPost, "/api/helpbot", body)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"answer": "Monitor cyclone observations and predictions over the Indian Ocean region."}, decoded)
}

func TestHandleHelpbot_BodyLimitConfigured(t *testing.T) {
	topics, err := NewTopicStore("", nil)
	require.NoError(t, err)
	defer topics.Close()

	cfg := testConfig()
	cfg.App.BodyLimit = "1K"
	s := NewServer(cfg, topics, NewMapService(&fakeProvider{}, "", false, 0, nil), zap.NewNop())

	rec, _ := doRequest(t, s, http.MethodPost, "/api/helpbot", `{"query":"weather"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doRequest(t, s, http.MethodPost, "/api/helpbot", `{"query":"`+strings.Repeat("a", 2048)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestHandleHelpbot_ResolverPanic(t *testing.T) {
	s := newTestServer(t, "", nil)
	s.answers = panickingAnswerer{}

	rec, body := doRequest(t, s, http.MethodPost, "/api/helpbot", `{"query": "weather"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "Internal Server Error"}, body)
}

func TestHandleHelpbot_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t, "", nil)

	rec, _ := doRequest(t, s, http.MethodGet, "/api/helpbot", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleIndex(t *testing.T) {
	s := newTestServer(t, "", nil)

	rec, _ := doRequest(t, s, http.MethodGet, "/", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "MOSDAC AI Assistant")
	assert.Contains(t, rec.Body.String(), "/api/helpbot")
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t, "", nil)

	rec, body := doRequest(t, s, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, embeddedTopicsSource, body["topics_source"])
	assert.Equal(t, false, body["maps_keys"])
}

func TestHandleTopicsAdmin(t *testing.T) {
	path := filepath.Join(t.TempDir(), "topics.yaml")
	writeTopics(t, path, "")
	s := newTestServer(t, path, nil)

	rec, body := doRequest(t, s, http.MethodGet, "/admin/topics-info", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, path, body["source"])

	writeTopics(t, path, newCycloneAnswer)
	rec, body = doRequest(t, s, http.MethodPost, "/admin/reload-topics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, path, body["source"])

	_, body = doRequest(t, s, http.MethodPost, "/api/helpbot", `{"query":"cyclone"}`)
	assert.Equal(t, newCycloneAnswer, body["answer"])

	require.NoError(t, os.WriteFile(path, []byte("not: [valid"), 0o644))
	rec, body = doRequest(t, s, http.MethodPost, "/admin/reload-topics", "")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, body["error"], "previous topic table kept")

	_, body = doRequest(t, s, http.MethodPost, "/api/helpbot", `{"query":"cyclone"}`)
	assert.Equal(t, newCycloneAnswer, body["answer"])
}

func TestHandleMaps(t *testing.T) {
	provider := &fakeProvider{
		geocode: &GeocodingResult{Lat: 23.03, Lng: 72.58, Address: "Ahmedabad, Gujarat, India"},
		places: []PlaceResult{
			{ID: "p1", Name: "Space Applications Centre", Address: "Jodhpur Tekra", Location: LatLng{Lat: 23.03, Lng: 72.52}},
		},
		mapsKey: "browser-key",
	}
	maps := NewMapService(provider, "https://example.test/js", true, 0, nil)
	s := newTestServer(t, "", maps)

	t.Run("geocode", func(t *testing.T) {
		rec, body := doRequest(t, s, http.MethodGet, "/api/maps/geocode?address="+url.QueryEscape("Ahmedabad"), "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "Ahmedabad, Gujarat, India", body["address"])
		assert.Equal(t, "Ahmedabad", provider.lastAddress)
	})

	t.Run("geocode requires address", func(t *testing.T) {
		rec, _ := doRequest(t, s, http.MethodGet, "/api/maps/geocode", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("nearby", func(t *testing.T) {
		rec, body := doRequest(t, s, http.MethodGet, "/api/maps/nearby?lat=23.03&lng=72.58&type=university", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Len(t, body["places"], 1)
		assert.Equal(t, defaultRadius, provider.lastNearby.Radius)
		assert.Equal(t, "university", provider.lastNearby.Type)
	})

	t.Run("nearby requires coordinates", func(t *testing.T) {
		rec, _ := doRequest(t, s, http.MethodGet, "/api/maps/nearby?lat=abc&lng=72", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec, _ = doRequest(t, s, http.MethodGet, "/api/maps/nearby?lng=72", "")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("script url", func(t *testing.T) {
		rec, body := doRequest(t, s, http.MethodGet, "/api/maps/script-url", "")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "https://example.test/js", body["url"])
	})

	t.Run("view", func(t *testing.T) {
		rec, body := doRequest(t, s, http.MethodGet, "/api/maps/view?address=Ahmedabad&zoom=14&element=map-canvas", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "map-canvas", body["element_id"])
		assert.Equal(t, float64(14), body["zoom"])
		assert.Len(t, body["markers"], 2)
	})

	t.Run("view without browser key", func(t *testing.T) {
		provider.mapsKey = ""
		defer func() { provider.mapsKey = "browser-key" }()

		rec, _ := doRequest(t, s, http.MethodGet, "/api/maps/view?address=Ahmedabad", "")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("view unknown address", func(t *testing.T) {
		saved := provider.geocode
		provider.geocode = nil
		defer func() { provider.geocode = saved }()

		rec, _ := doRequest(t, s, http.MethodGet, "/api/maps/view?address=Atlantis", "")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}
