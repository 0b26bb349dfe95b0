// Package config loads runtime tunables the same way the teacher codebase
// does: an env-tunable struct (github.com/caarlos0/env) with an optional
// .env file (github.com/joho/godotenv) supplying defaults. No field here has
// a CLI flag counterpart; the binaries' own flags (§6) set other values.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Shared holds the environment-overridable defaults common to both the
// server and client binaries.
type Shared struct {
	ShmName   string `env:"SHMHASH_NAME" envDefault:"/hashtable"`
	LogLevel  string `env:"SHMHASH_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"SHMHASH_LOG_FORMAT" envDefault:"json"`
}

// Load reads an optional .env file then parses environment variables into
// Shared. Missing .env is not an error: production deployments set
// variables directly.
func Load() (Shared, error) {
	_ = godotenv.Load()

	var cfg Shared
	if err := env.Parse(&cfg); err != nil {
		return Shared{}, fmt.Errorf("config: parse env: %w", err)
	}
	return cfg, nil
}
