package inkpost

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/eringen/inkpost/logger"
	"github.com/eringen/inkpost/model"
	"github.com/eringen/inkpost/token"
)

// Config holds all configuration for an inkpost server.
type Config struct {
	LogLevel   int      `env:"LOG_LEVEL" envDefault:"0"`
	BcryptCost int      `env:"BCRYPT_COST" envDefault:"10"`
	HTTP       HTTP     `envPrefix:"HTTP_"`
	Database   Database `envPrefix:"DATABASE_"`
	JWT        JWT      `envPrefix:"JWT_"`
	Uploads    Uploads  `envPrefix:"UPLOADS_"`
	Storage    Storage  `envPrefix:"MINIO_"`
}

// HTTP contains listener and cookie parameters.
type HTTP struct {
	Addr         string `env:"ADDR" envDefault:":3000"`
	CookieSecure bool   `env:"COOKIE_SECURE" envDefault:"false"`
	BodyLimit    string `env:"BODY_LIMIT" envDefault:"10M"`
}

// Database contains the SQLite location.
type Database struct {
	Path string `env:"PATH" envDefault:"data/blog.db"`
}

// JWT contains session token parameters.
type JWT struct {
	Secret string        `env:"SECRET"`
	TTL    time.Duration `env:"TTL" envDefault:"168h"`
}

// Uploads selects where uploaded images are kept: "local" or "minio".
type Uploads struct {
	Backend string `env:"BACKEND" envDefault:"local"`
	Dir     string `env:"DIR" envDefault:"uploads"`
}

// Storage contains object storage parameters for the minio backend.
type Storage struct {
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY"`
	SecretKey string `env:"SECRET_KEY"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"inkpost-uploads"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// setDefaults fills zero values so a Config built in code behaves like one
// parsed from an empty environment.
func (c *Config) setDefaults() {
	if c.BcryptCost == 0 {
		c.BcryptCost = 10
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":3000"
	}
	if c.HTTP.BodyLimit == "" {
		c.HTTP.BodyLimit = "10M"
	}
	if c.Database.Path == "" {
		c.Database.Path = "data/blog.db"
	}
	if c.JWT.TTL == 0 {
		c.JWT.TTL = token.DefaultTTL
	}
	if c.Uploads.Backend == "" {
		c.Uploads.Backend = "local"
	}
	if c.Uploads.Dir == "" {
		c.Uploads.Dir = "uploads"
	}
	if c.Storage.Bucket == "" {
		c.Storage.Bucket = "inkpost-uploads"
	}
}

func (c *Config) validate() error {
	if c.JWT.Secret == "" {
		return fmt.Errorf("inkpost: JWT secret is required")
	}
	switch c.Uploads.Backend {
	case "local", "minio":
	default:
		return fmt.Errorf("inkpost: unknown uploads backend %q", c.Uploads.Backend)
	}
	return nil
}

// Option configures additional App behavior.
type Option func(*App)

// WithLogger replaces the logger built from Config.LogLevel.
func WithLogger(l *logger.Logger) Option {
	return func(a *App) {
		a.log = l
	}
}

// WithStorage replaces the upload backend selected by Config.Uploads.
func WithStorage(s model.Storage) Option {
	return func(a *App) {
		a.storage = s
	}
}
