package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultIdentityFile = "peerclient.conf"
	defaultAuthTimeout  = 10 * time.Second
	defaultPingInterval = 20 * time.Second
)

// Config holds the application configuration.
type Config struct {
	AuthURL      string
	SignalURL    string
	IdentityFile string
	AuthTimeout  time.Duration
	PingInterval time.Duration
}

// Load reads configuration from a .env file (if present) and environment variables.
// Environment variables take precedence over .env values.
func Load() (*Config, error) {
	// godotenv.Load does not overwrite existing env vars
	_ = godotenv.Load()

	authURL := os.Getenv("PEER_AUTH_URL")
	if authURL == "" {
		return nil, fmt.Errorf("PEER_AUTH_URL environment variable is required")
	}

	signalURL := os.Getenv("PEER_SIGNAL_URL")
	if signalURL == "" {
		return nil, fmt.Errorf("PEER_SIGNAL_URL environment variable is required")
	}

	identityFile := os.Getenv("PEER_IDENTITY_FILE")
	if identityFile == "" {
		identityFile = defaultIdentityFile
	}

	authTimeout, err := durationEnv("PEER_AUTH_TIMEOUT", defaultAuthTimeout)
	if err != nil {
		return nil, err
	}
	pingInterval, err := durationEnv("PEER_PING_INTERVAL", defaultPingInterval)
	if err != nil {
		return nil, err
	}

	return &Config{
		AuthURL:      authURL,
		SignalURL:    signalURL,
		IdentityFile: identityFile,
		AuthTimeout:  authTimeout,
		PingInterval: pingInterval,
	}, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s must be positive, got %s", key, v)
	}
	return d, nil
}
