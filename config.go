package main

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config is built once at startup and handed to whatever needs it
type Config struct {
	App          AppConfig
	Topics       TopicsConfig
	Maps         MapsConfig
	Integrations IntegrationsConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	CorsAllowedOrigins []string
	BodyLimit          string // empty means no limit
	ShutdownTimeout    time.Duration
}

type TopicsConfig struct {
	FilePath string // empty means the embedded table
	Watch    bool
}

type MapsConfig struct {
	MapsAPIKey      string // browser key for the JS script
	GeocodingAPIKey string
	PlacesAPIKey    string
	BaseURL         string
	Timeout         time.Duration
	CacheTTL        time.Duration
}

// IntegrationsConfig carries the portal's settings for services the help bot
// does not call yet. They are only checked for presence at startup.
type IntegrationsConfig struct {
	OpenAIKey     string
	OpenAIModel   string
	NLPAPIURL     string
	MosdacAPIKey  string
	MosdacBaseURL string
	AuthSecretKey string
	DatabaseURL   string
	RedisURL      string
}

// LoadConfig reads an optional .env file and then the process environment
func LoadConfig() (*Config, []string) {
	var notes []string
	if err := godotenv.Load(); err != nil {
		notes = append(notes, ".env file not found, using system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("PORT", "8050"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "helpbot.log"),
			CorsAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
			BodyLimit:          getEnv("BODY_LIMIT", ""),
			ShutdownTimeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Topics: TopicsConfig{
			FilePath: getEnv("TOPICS_FILE", ""),
			Watch:    getEnvAsBool("TOPICS_WATCH", false),
		},
		Maps: MapsConfig{
			MapsAPIKey:      getEnv("GOOGLE_MAPS_API_KEY", getEnv("NEXT_PUBLIC_GOOGLE_MAPS_API_KEY", "")),
			GeocodingAPIKey: getEnv("GOOGLE_GEOCODING_API_KEY", ""),
			PlacesAPIKey:    getEnv("GOOGLE_PLACES_API_KEY", ""),
			BaseURL:         getEnv("GOOGLE_MAPS_BASE_URL", defaultMapsBaseURL),
			Timeout:         getEnvAsDuration("MAPS_TIMEOUT", 10*time.Second),
			CacheTTL:        getEnvAsDuration("MAPS_CACHE_TTL", 10*time.Minute),
		},
		Integrations: IntegrationsConfig{
			OpenAIKey:     getEnv("OPENAI_API_KEY", ""),
			OpenAIModel:   getEnv("OPENAI_MODEL", "gpt-4"),
			NLPAPIURL:     getEnv("NLP_API_URL", ""),
			MosdacAPIKey:  getEnv("MOSDAC_API_KEY", ""),
			MosdacBaseURL: getEnv("MOSDAC_BASE_URL", ""),
			AuthSecretKey: getEnv("AUTH_SECRET_KEY", ""),
			DatabaseURL:   getEnv("DATABASE_URL", ""),
			RedisURL:      getEnv("REDIS_URL", ""),
		},
	}

	return cfg, notes
}

// IsProduction reports whether the service runs with production settings
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.App.Environment) {
	case "prod", "production":
		return true
	}
	return false
}

// MissingRequired lists the required variables that are unset.
// Missing values are reported, not fatal.
func (c *Config) MissingRequired() []string {
	required := []struct {
		name  string
		value string
	}{
		{"OPENAI_API_KEY", c.Integrations.OpenAIKey},
		{"MOSDAC_API_KEY", c.Integrations.MosdacAPIKey},
		{"AUTH_SECRET_KEY", c.Integrations.AuthSecretKey},
		{"DATABASE_URL", c.Integrations.DatabaseURL},
	}

	var missing []string
	for _, r := range required {
		if r.value == "" {
			missing = append(missing, r.name)
		}
	}
	return missing
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return fallback
}

func getEnvAsList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}

	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
