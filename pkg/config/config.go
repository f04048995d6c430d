// Package config loads application configuration from the environment,
// optionally seeded from a .env file.
package config

import "time"

// DB holds server store connection settings.
type DB struct {
	Url             string        `envconfig:"URL"`
	MaxOpenConns    int           `envconfig:"MAX_OPEN_CONNS" default:"25"`
	MaxIdleConns    int           `envconfig:"MAX_IDLE_CONNS" default:"25"`
	ConnMaxLifetime time.Duration `envconfig:"CONN_MAX_LIFETIME" default:"1h"`
}

// Jwt configures the owner-identity middleware.
type Jwt struct {
	Secret string        `envconfig:"SECRET" required:"true"`
	Expiry time.Duration `envconfig:"EXPIRY" default:"24h"`
}

// Server holds the HTTP listener settings.
type Server struct {
	Host string `envconfig:"HOST" default:"0.0.0.0"`
	Port int    `envconfig:"PORT" default:"3000"`
}

// Community tunes the crowd-sourced directory.
type Community struct {
	MinTrustScore       int `envconfig:"MIN_TRUST_SCORE" default:"50"`
	ProductPullLimit    int `envconfig:"PRODUCT_PULL_LIMIT" default:"100"`
	MerchantPullLimit   int `envconfig:"MERCHANT_PULL_LIMIT" default:"50"`
	SearchLimit         int `envconfig:"SEARCH_LIMIT" default:"8"`
	ContributeIncrement int `envconfig:"CONTRIBUTE_INCREMENT" default:"5"`
	BulkIncrement       int `envconfig:"BULK_INCREMENT" default:"2"`
}

// Log controls the process logger.
type Log struct {
	Level  string `envconfig:"LEVEL" default:"info"`
	Prefix string `envconfig:"PREFIX" default:"[pocket-keeper]"`
}

// App is the root configuration.
type App struct {
	Env       string    `envconfig:"APP_ENV" default:"development"`
	Server    Server    `envconfig:"SERVER"`
	DB        DB        `envconfig:"DATABASE"`
	Jwt       Jwt       `envconfig:"JWT"`
	Community Community `envconfig:"COMMUNITY"`
	Log       Log       `envconfig:"LOG"`
}
