// Package config loads runtime settings from NETLENS_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"netlens/internal/aggregator"

	"github.com/joho/godotenv"
)

// MaxSnaplen is the largest per-packet capture length libpcap accepts.
const MaxSnaplen = 262144

type Config struct {
	Interface       string
	OllamaURL       string
	Model           string
	BufferSize      int
	ChannelCapacity int
	Mode            aggregator.Policy
	FlushInterval   time.Duration
	Filter          string
	Snaplen         int
	Promiscuous     bool
	ListenAddr      string
	NoTUI           bool
	LogLevel        string
	LogFile         string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	JournalSize     int
}

// Load reads an optional .env file and then the environment. Invalid
// numeric or duration values fall back to their defaults.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	mode, err := aggregator.ParsePolicy(env("NETLENS_MODE", aggregator.PolicyAutonomous.String()))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Interface:       env("NETLENS_INTERFACE", ""),
		OllamaURL:       env("NETLENS_OLLAMA_URL", "http://localhost:11434"),
		Model:           env("NETLENS_MODEL", "llama2"),
		BufferSize:      envInt("NETLENS_BUFFER_SIZE", 20),
		ChannelCapacity: envInt("NETLENS_CHANNEL_CAPACITY", 100),
		Mode:            mode,
		FlushInterval:   envDuration("NETLENS_FLUSH_INTERVAL", aggregator.DefaultFlushInterval),
		Filter:          env("NETLENS_FILTER", ""),
		Snaplen:         envInt("NETLENS_SNAPLEN", 65535),
		Promiscuous:     envBool("NETLENS_PROMISCUOUS", true),
		ListenAddr:      env("NETLENS_LISTEN", ""),
		NoTUI:           envBool("NETLENS_NO_TUI", false),
		LogLevel:        strings.ToLower(env("NETLENS_LOG_LEVEL", "info")),
		LogFile:         env("NETLENS_LOG_FILE", "netlens.log"),
		RequestTimeout:  envDuration("NETLENS_REQUEST_TIMEOUT", 2*time.Minute),
		ShutdownTimeout: envDuration("NETLENS_SHUTDOWN_TIMEOUT", 10*time.Second),
		JournalSize:     envInt("NETLENS_JOURNAL_SIZE", 50),
	}
	return cfg, nil
}

// Validate checks the settings after flags have been applied.
func (c Config) Validate() error {
	if strings.TrimSpace(c.Interface) == "" {
		return errors.New("capture interface is required")
	}
	u, err := url.Parse(c.OllamaURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid ollama url %q", c.OllamaURL)
	}
	if strings.TrimSpace(c.Model) == "" {
		return errors.New("model is required")
	}
	if c.BufferSize <= 0 {
		return errors.New("buffer size must be > 0")
	}
	if c.ChannelCapacity <= 0 {
		return errors.New("channel capacity must be > 0")
	}
	if c.Mode == aggregator.PolicyAutonomous && c.FlushInterval <= 0 {
		return errors.New("flush interval must be > 0")
	}
	if c.Snaplen <= 0 || c.Snaplen > MaxSnaplen {
		return fmt.Errorf("snaplen must be in 1..%d", MaxSnaplen)
	}
	if c.ListenAddr != "" && c.Mode != aggregator.PolicyInteractive {
		return errors.New("the query API requires interactive mode")
	}
	if c.RequestTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return errors.New("timeouts must be > 0")
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unsupported log level %q", c.LogLevel)
	}
	return nil
}

func env(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envBool(key string, fallback bool) bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch v {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return fallback
	}
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
