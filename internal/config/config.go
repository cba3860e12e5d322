package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config aggregates every service setting.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	Realtime RealtimeConfig
	LogLevel string
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr string
}

// StoreConfig selects the storage backend. An empty Path keeps
// everything in memory; a path opens a pebble database there.
type StoreConfig struct {
	Path string
}

// RealtimeConfig carries the synchronizer and rate-limit tunables.
type RealtimeConfig struct {
	TypingWindow  time.Duration
	MutationRPS   float64
	MutationBurst int
	// AllowedOrigins restricts websocket upgrades; empty allows any.
	AllowedOrigins []string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	typingWindow := 2 * time.Second
	if ms, err := parseOptionalIntEnv("CHAT_TYPING_WINDOW_MS"); err != nil {
		return nil, err
	} else if ms != nil {
		if *ms < 100 {
			return nil, fmt.Errorf("CHAT_TYPING_WINDOW_MS must be at least 100")
		}
		typingWindow = time.Duration(*ms) * time.Millisecond
	}

	rps := 5.0
	if v, err := parseOptionalFloatEnv("CHAT_RATE_LIMIT_RPS"); err != nil {
		return nil, err
	} else if v != nil {
		rps = *v
	}

	burst := 10
	if v, err := parseOptionalIntEnv("CHAT_RATE_LIMIT_BURST"); err != nil {
		return nil, err
	} else if v != nil {
		burst = *v
	}

	return &Config{
		Server: server,
		Store: StoreConfig{
			Path: strings.TrimSpace(os.Getenv("CHAT_DB_PATH")),
		},
		Realtime: RealtimeConfig{
			TypingWindow:   typingWindow,
			MutationRPS:    rps,
			MutationBurst:  burst,
			AllowedOrigins: splitCSVEnv("CHAT_ALLOWED_ORIGINS"),
		},
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
	}, nil
}

// loadServerConfig parses the listen address. Accepts a bare port like
// "8080" as well as ":8080" or "127.0.0.1:8080".
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, ":") {
		return ServerConfig{Addr: port}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	return ServerConfig{Addr: ":" + port}, nil
}

func splitCSVEnv(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
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

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}
