package config

import (
	"fmt"

	"github.com/Gobusters/ectoenv"
	"github.com/joho/godotenv"
)

// Load reads .env when present and binds environment variables onto Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := ectoenv.BindEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to bind config from environment: %w", err)
	}
	return &cfg, nil
}
