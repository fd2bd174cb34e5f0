package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const defaultAddr = ":5000"

// Config is the process configuration, read once at startup.
type Config struct {
	// Addr is the listen address for the HTTP/websocket server.
	Addr string

	// AllowedOrigins is the websocket origin allow-list. Empty means
	// any origin is accepted; deployments should narrow this.
	AllowedOrigins []string
}

// Load reads configuration from the environment, merging in a .env file
// when one is present.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{Addr: defaultAddr}
	if addr := os.Getenv("SIGNAL_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	for _, origin := range strings.Split(os.Getenv("SIGNAL_ALLOWED_ORIGINS"), ",") {
		origin = strings.TrimSpace(origin)
		if origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}
	return cfg
}
