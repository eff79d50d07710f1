// Package config loads runtime settings from the environment, after an
// optional .env file.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultAdminEmail is the allow-listed admin account.
const DefaultAdminEmail = "admin@bungmap.app"

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Auth          AuthConfig
	Observability ObservabilityConfig
	Map           MapConfig
	Client        ClientConfig
}

type ServerConfig struct {
	Port               int
	RateLimitPerSecond int
	RateLimitBurst     int
	ShutdownTimeout    time.Duration
	AllowedOrigins     []string
}

// Addr is the listen address for the API server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	URL      string
}

// DSN returns DATABASE_URL when set, otherwise a URL built from the parts.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.Name,
		RawQuery: "sslmode=" + d.SSLMode,
	}
	return u.String()
}

type AuthConfig struct {
	JWTSecret          string
	TokenTTL           time.Duration
	AdminEmail         string
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string
	SessionSecret      string
	SecureCookies      bool
}

type ObservabilityConfig struct {
	MetricsEnabled bool
	LogLevel       slog.Level
}

type MapConfig struct {
	CenterLat      float64
	CenterLng      float64
	Zoom           int
	CenterTracking bool
}

type ClientConfig struct {
	APIBaseURL  string
	Email       string
	Password    string
	DisplayName string
	Token       string
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	r := &reader{}
	cfg := &Config{
		Server: ServerConfig{
			Port:               r.int("PORT", 8000),
			RateLimitPerSecond: r.int("RATE_LIMIT_PER_SECOND", 20),
			RateLimitBurst:     r.int("RATE_LIMIT_BURST", 40),
			ShutdownTimeout:    r.duration("SHUTDOWN_TIMEOUT", 15*time.Second),
			AllowedOrigins:     r.list("ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Database: DatabaseConfig{
			Host:     r.string("DB_HOST", "localhost"),
			Port:     r.int("DB_PORT", 5432),
			User:     r.string("DB_USER", "postgres"),
			Password: r.string("DB_PASSWORD", "postgres"),
			Name:     r.string("DB_NAME", "bungmap"),
			SSLMode:  r.string("DB_SSLMODE", "disable"),
			URL:      r.string("DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			JWTSecret:          r.string("JWT_SECRET", ""),
			TokenTTL:           r.duration("TOKEN_TTL", 24*time.Hour),
			AdminEmail:         r.string("ADMIN_EMAIL", DefaultAdminEmail),
			GoogleClientID:     r.string("GOOGLE_CLIENT_ID", ""),
			GoogleClientSecret: r.string("GOOGLE_CLIENT_SECRET", ""),
			GoogleCallbackURL:  r.string("GOOGLE_CALLBACK_URL", "http://localhost:8000/auth/google/callback"),
			SessionSecret:      r.string("SESSION_SECRET", ""),
			SecureCookies:      r.bool("SECURE_COOKIES", false),
		},
		Observability: ObservabilityConfig{
			MetricsEnabled: r.bool("METRICS_ENABLED", true),
			LogLevel:       r.level("LOG_LEVEL", slog.LevelInfo),
		},
		Map: MapConfig{
			CenterLat:      r.float("MAP_CENTER_LAT", 37.5665),
			CenterLng:      r.float("MAP_CENTER_LNG", 126.9780),
			Zoom:           r.int("MAP_ZOOM", 5),
			CenterTracking: r.bool("MAP_CENTER_TRACKING", true),
		},
		Client: ClientConfig{
			APIBaseURL:  r.string("BUNGMAP_API_URL", ""),
			Email:       r.string("BUNGMAP_EMAIL", ""),
			Password:    r.string("BUNGMAP_PASSWORD", ""),
			DisplayName: r.string("BUNGMAP_DISPLAY_NAME", ""),
			Token:       r.string("BUNGMAP_TOKEN", ""),
		},
	}
	if len(r.errs) > 0 {
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(r.errs, "; "))
	}
	if cfg.Auth.SessionSecret == "" {
		cfg.Auth.SessionSecret = cfg.Auth.JWTSecret
	}
	return cfg, nil
}

// reader collects parse failures so every bad variable is reported at once.
type reader struct {
	errs []string
}

func (r *reader) lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (r *reader) fail(key, value string, err error) {
	r.errs = append(r.errs, fmt.Sprintf("%s=%q: %v", key, value, err))
}

func (r *reader) string(key, def string) string {
	if v, ok := r.lookup(key); ok {
		return v
	}
	return def
}

func (r *reader) int(key string, def int) int {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return n
}

func (r *reader) float(key string, def float64) float64 {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return f
}

func (r *reader) bool(key string, def bool) bool {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return b
}

func (r *reader) duration(key string, def time.Duration) time.Duration {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		r.fail(key, v, err)
		return def
	}
	return d
}

func (r *reader) level(key string, def slog.Level) slog.Level {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(v)); err != nil {
		r.fail(key, v, err)
		return def
	}
	return level
}

func (r *reader) list(key string, def []string) []string {
	v, ok := r.lookup(key)
	if !ok {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
