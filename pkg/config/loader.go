package config

import (
	"fmt"

	"github.com/caarlos0/env/v10"
)

// Load parses environment variables into cfg using its `env` and `envDefault`
// struct tags.
//
//	type Config struct {
//	    Port     int           `env:"HTTP_PORT" envDefault:"8080"`
//	    TTL      time.Duration `env:"CACHE_TTL" envDefault:"24h"`
//	}
func Load(cfg any) error {
	return LoadWithPrefix(cfg, "")
}

// LoadWithPrefix is like Load but only reads variables starting with prefix,
// which is stripped before matching tags. An empty prefix reads everything.
func LoadWithPrefix(cfg any, prefix string) error {
	opts := env.Options{Prefix: prefix}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}
