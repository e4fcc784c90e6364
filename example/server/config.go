package main

import (
	"time"

	"github.com/caarlos0/env/v11"
)

// Config is the process configuration of the example server, loaded from the
// environment.
type Config struct {
	Port   string `env:"PORT" envDefault:"9998"`
	Domain string `env:"DOMAIN" envDefault:"localhost:9998"`

	// AESKey encrypts opaque access tokens. Must be 16, 24 or 32 bytes.
	AESKey string `env:"AES_KEY" envDefault:"0123456789abcdef"`

	// SigningKey is an optional PEM encoded RSA private key (PKCS#1). When
	// empty a fresh key is generated at startup, so issued tokens do not
	// survive a restart.
	SigningKey string `env:"SIGNING_KEY"`

	AccessTokenLifetime  time.Duration `env:"ACCESS_TOKEN_LIFETIME" envDefault:"1h"`
	RefreshTokenLifetime time.Duration `env:"REFRESH_TOKEN_LIFETIME" envDefault:"720h"`
	IDTokenLifetime      time.Duration `env:"ID_TOKEN_LIFETIME" envDefault:"1h"`

	CIBARequestLifetime time.Duration `env:"CIBA_REQUEST_LIFETIME" envDefault:"5m"`
	CIBAPollInterval    time.Duration `env:"CIBA_POLL_INTERVAL" envDefault:"5s"`
}

func loadConfig() (*Config, error) {
	cfg := new(Config)
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
