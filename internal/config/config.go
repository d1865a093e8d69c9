package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/zhouzirui/z-helpdesk/backend/internal/model/conversation"
)

// Record store drivers.
const (
	StoreDriverHTTP   = "http"
	StoreDriverSQLite = "sqlite"
)

// Session backends.
const (
	SessionBackendMemory = "memory"
	SessionBackendRedis  = "redis"
)

// Config aggregates every setting of the service.
type Config struct {
	Server   ServerConfig
	Log      LogConfig
	Store    StoreConfig
	Session  SessionConfig
	Dialogue DialogueConfig
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	dialogue, err := loadDialogueConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Log:      LogConfig{Level: getEnvOrDefault("LOG_LEVEL", "info")},
		Store:    store,
		Session:  session,
		Dialogue: dialogue,
	}, nil
}

// ServerConfig describes the HTTP surface.
type ServerConfig struct {
	Addr               string
	WebhookTimeout     time.Duration
	RateLimitPerMinute int
	ChatWSEnabled      bool
	// AllowedOrigins lists browser origins for CORS and the live chat socket.
	AllowedOrigins []string
}

// LogConfig selects the log level.
type LogConfig struct {
	Level string
}

// StoreConfig selects and configures the record store.
type StoreConfig struct {
	Driver     string
	URL        string
	APIKey     string
	SQLitePath string
	Timeout    time.Duration
}

// SessionConfig selects and configures the session backend.
type SessionConfig struct {
	Backend       string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	SweepInterval time.Duration
}

// DialogueConfig parameterises the conversation itself.
type DialogueConfig struct {
	MenuVariant     string
	Location        *time.Location
	EscalationEvent string
	LanguageCode    string
}

// Menu resolves the configured variant.
func (c DialogueConfig) Menu() conversation.Menu {
	menu, _ := conversation.MenuByVariant(c.MenuVariant)
	return menu
}

func loadServerConfig() (ServerConfig, error) {
	addr, err := parseAddr(getEnvOrDefault("PORT", "3000"))
	if err != nil {
		return ServerConfig{}, err
	}

	timeout, err := parseDurationEnv("WEBHOOK_TIMEOUT", 9*time.Second)
	if err != nil {
		return ServerConfig{}, err
	}

	rate := 120
	if override, err := parseOptionalIntEnv("RATE_LIMIT_PER_MINUTE"); err != nil {
		return ServerConfig{}, err
	} else if override != nil {
		if *override < 0 {
			return ServerConfig{}, fmt.Errorf("invalid RATE_LIMIT_PER_MINUTE value %d: must not be negative", *override)
		}
		rate = *override
	}

	wsEnabled, err := parseBoolEnv("CHAT_WS_ENABLED", true)
	if err != nil {
		return ServerConfig{}, err
	}

	return ServerConfig{
		Addr:               addr,
		WebhookTimeout:     timeout,
		RateLimitPerMinute: rate,
		ChatWSEnabled:      wsEnabled,
		AllowedOrigins:     parseListEnv("CORS_ALLOWED_ORIGINS"),
	}, nil
}

// parseAddr accepts "3000", ":3000" or "127.0.0.1:3000".
func parseAddr(port string) (string, error) {
	if strings.Contains(port, ":") {
		return port, nil
	}
	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if _, err := strconv.Atoi(port); err != nil {
		return "", fmt.Errorf("invalid PORT value %q: %w", port, err)
	}
	return ":" + port, nil
}

func loadStoreConfig() (StoreConfig, error) {
	timeout, err := parseDurationEnv("RECORD_STORE_TIMEOUT", 8*time.Second)
	if err != nil {
		return StoreConfig{}, err
	}

	cfg := StoreConfig{
		Driver:     strings.ToLower(getEnvOrDefault("RECORD_STORE_DRIVER", StoreDriverHTTP)),
		URL:        getEnvOrDefault("RECORD_STORE_URL", ""),
		APIKey:     getEnvOrDefault("RECORD_STORE_API_KEY", ""),
		SQLitePath: getEnvOrDefault("RECORD_STORE_SQLITE_PATH", "helpdesk.db"),
		Timeout:    timeout,
	}

	switch cfg.Driver {
	case StoreDriverHTTP:
		if cfg.URL == "" {
			return StoreConfig{}, fmt.Errorf("RECORD_STORE_URL is required for the %s driver", StoreDriverHTTP)
		}
	case StoreDriverSQLite:
	default:
		return StoreConfig{}, fmt.Errorf("invalid RECORD_STORE_DRIVER value %q: want %s or %s", cfg.Driver, StoreDriverHTTP, StoreDriverSQLite)
	}
	return cfg, nil
}

func loadSessionConfig() (SessionConfig, error) {
	ttl, err := parseDurationEnv("SESSION_TTL", 15*time.Minute)
	if err != nil {
		return SessionConfig{}, err
	}

	sweep, err := parseDurationEnv("SESSION_SWEEP_INTERVAL", 60*time.Second)
	if err != nil {
		return SessionConfig{}, err
	}

	db := 0
	if override, err := parseOptionalIntEnv("REDIS_DB"); err != nil {
		return SessionConfig{}, err
	} else if override != nil {
		db = *override
	}

	cfg := SessionConfig{
		Backend:       strings.ToLower(getEnvOrDefault("SESSION_BACKEND", SessionBackendMemory)),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       db,
		TTL:           ttl,
		SweepInterval: sweep,
	}

	switch cfg.Backend {
	case SessionBackendMemory, SessionBackendRedis:
	default:
		return SessionConfig{}, fmt.Errorf("invalid SESSION_BACKEND value %q: want %s or %s", cfg.Backend, SessionBackendMemory, SessionBackendRedis)
	}
	return cfg, nil
}

func loadDialogueConfig() (DialogueConfig, error) {
	variant := getEnvOrDefault("MENU_VARIANT", conversation.MenuClassic)
	if _, ok := conversation.MenuByVariant(variant); !ok {
		return DialogueConfig{}, fmt.Errorf("invalid MENU_VARIANT value %q: want %s or %s", variant, conversation.MenuClassic, conversation.MenuFAQ)
	}

	tz := getEnvOrDefault("TIMEZONE", "America/Sao_Paulo")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return DialogueConfig{}, fmt.Errorf("invalid TIMEZONE value %q: %w", tz, err)
	}

	return DialogueConfig{
		MenuVariant:     variant,
		Location:        loc,
		EscalationEvent: getEnvOrDefault("ESCALATION_EVENT", ""),
		LanguageCode:    getEnvOrDefault("LANGUAGE_CODE", "pt-BR"),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseListEnv splits a comma separated value, dropping empty entries.
func parseListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parseDurationEnv accepts Go durations ("90s", "15m") or a bare number of
// seconds.
func parseDurationEnv(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	if secs, err := strconv.Atoi(raw); err == nil {
		if secs <= 0 {
			return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
		}
		return time.Duration(secs) * time.Second, nil
	}

	val, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	if val <= 0 {
		return 0, fmt.Errorf("invalid %s value %q: must be positive", key, raw)
	}
	return val, nil
}
