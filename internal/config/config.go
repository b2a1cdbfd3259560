package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
)

const (
	TransportSSE   = "sse"
	TransportStdio = "stdio"
)

type AppConfig struct {
	EnginePath    string
	EngineName    string
	EngineVersion string
	EngineOS      string
	EnginesDir    string

	MovetimeMs    int
	MinMovetimeMs int
	MaxMovetimeMs int
	HashMB        int
	Threads       int
	SkillLevel    int

	EngineOptionsFile string

	StartupTimeoutMs int
	SearchGraceMs    int
	QueueTimeoutMs   int
	QuitTimeoutMs    int

	Transport  string
	Host       string
	Port       int
	HealthPort int

	RedisURL        string
	MoveCacheTTLSec int
	DatabaseURL     string
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{
		EngineName:       "stockfish",
		EngineVersion:    "17.1",
		EngineOS:         DetectOS(),
		EnginesDir:       "engines",
		MovetimeMs:       1000,
		MinMovetimeMs:    100,
		MaxMovetimeMs:    60000,
		HashMB:           128,
		Threads:          4,
		SkillLevel:       -1,
		StartupTimeoutMs: 5000,
		SearchGraceMs:    2000,
		QueueTimeoutMs:   30000,
		QuitTimeoutMs:    1000,
		Transport:        TransportSSE,
		Host:             "127.0.0.1",
		Port:             9000,
		MoveCacheTTLSec:  3600,
	}

	cfg.EnginePath = strings.TrimSpace(os.Getenv("ENGINE_PATH"))
	if v := strings.TrimSpace(os.Getenv("ENGINE_NAME")); v != "" {
		cfg.EngineName = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_VERSION")); v != "" {
		cfg.EngineVersion = v
	}
	if v := strings.TrimSpace(os.Getenv("ENGINE_OS")); v != "" {
		cfg.EngineOS = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("ENGINES_DIR")); v != "" {
		cfg.EnginesDir = v
	}
	cfg.EngineOptionsFile = strings.TrimSpace(os.Getenv("ENGINE_OPTIONS_FILE"))

	ints := []struct {
		key string
		dst *int
	}{
		{"ENGINE_MOVETIME_MS", &cfg.MovetimeMs},
		{"ENGINE_HASH_MB", &cfg.HashMB},
		{"ENGINE_THREADS", &cfg.Threads},
		{"ENGINE_SKILL_LEVEL", &cfg.SkillLevel},
		{"ENGINE_STARTUP_TIMEOUT_MS", &cfg.StartupTimeoutMs},
		{"ENGINE_SEARCH_GRACE_MS", &cfg.SearchGraceMs},
		{"ENGINE_QUEUE_TIMEOUT_MS", &cfg.QueueTimeoutMs},
		{"ENGINE_QUIT_TIMEOUT_MS", &cfg.QuitTimeoutMs},
		{"MCP_PORT", &cfg.Port},
		{"HEALTH_PORT", &cfg.HealthPort},
		{"MOVE_CACHE_TTL_SEC", &cfg.MoveCacheTTLSec},
	}
	for _, it := range ints {
		if err := intFromEnv(it.key, it.dst); err != nil {
			return nil, err
		}
	}

	if v := strings.TrimSpace(os.Getenv("MCP_TRANSPORT")); v != "" {
		cfg.Transport = strings.ToLower(v)
	}
	if v := strings.TrimSpace(os.Getenv("MCP_HOST")); v != "" {
		cfg.Host = v
	}

	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks ranges. It runs again after CLI flags override env values.
func (c *AppConfig) Validate() error {
	if c.MovetimeMs < c.MinMovetimeMs || c.MovetimeMs > c.MaxMovetimeMs {
		return fmt.Errorf("ENGINE_MOVETIME_MS must be between %d and %d: %d", c.MinMovetimeMs, c.MaxMovetimeMs, c.MovetimeMs)
	}
	if c.HashMB <= 0 {
		return errors.New("ENGINE_HASH_MB must be > 0")
	}
	if c.Threads <= 0 {
		return errors.New("ENGINE_THREADS must be > 0")
	}
	if c.SkillLevel > 20 || c.SkillLevel < -1 {
		return fmt.Errorf("ENGINE_SKILL_LEVEL must be between 0 and 20: %d", c.SkillLevel)
	}
	for name, v := range map[string]int{
		"ENGINE_STARTUP_TIMEOUT_MS": c.StartupTimeoutMs,
		"ENGINE_SEARCH_GRACE_MS":    c.SearchGraceMs,
		"ENGINE_QUEUE_TIMEOUT_MS":   c.QueueTimeoutMs,
		"ENGINE_QUIT_TIMEOUT_MS":    c.QuitTimeoutMs,
	} {
		if v <= 0 {
			return fmt.Errorf("%s must be > 0", name)
		}
	}
	if c.Transport != TransportSSE && c.Transport != TransportStdio {
		return fmt.Errorf("MCP_TRANSPORT must be %q or %q: %q", TransportSSE, TransportStdio, c.Transport)
	}
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("MCP_PORT must be between 1 and 65535: %d", c.Port)
	}
	if c.HealthPort < 0 || c.HealthPort > 65535 {
		return fmt.Errorf("HEALTH_PORT must be between 0 and 65535: %d", c.HealthPort)
	}
	if c.MoveCacheTTLSec <= 0 {
		return errors.New("MOVE_CACHE_TTL_SEC must be > 0")
	}
	return nil
}

func intFromEnv(key string, dst *int) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

// DetectOS names the host platform the way engine bundles are laid out.
func DetectOS() string {
	switch runtime.GOOS {
	case "darwin":
		return "macos"
	default:
		return runtime.GOOS
	}
}
