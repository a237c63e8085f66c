// Package config loads runtime settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Addr          string        `env:"BLOG_ADDR" envDefault:":8080"`
	DBPath        string        `env:"BLOG_DB_PATH" envDefault:"./data/blog.db"`
	AvatarDir     string        `env:"BLOG_AVATAR_DIR" envDefault:"./data/avatars"`
	SessionTTL    time.Duration `env:"BLOG_SESSION_TTL" envDefault:"24h"`
	AdminUsername string        `env:"BLOG_ADMIN_USERNAME" envDefault:"admin"`
	// AdminPassword is only used to bootstrap the admin account on first
	// run; it is ignored once the account exists.
	AdminPassword string `env:"BLOG_ADMIN_PASSWORD" envDefault:"admin123"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
