// Package config loads the blog server configuration from defaults, an
// optional JSON file and BLOG_ prefixed environment variables.
package config

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	gconfig "github.com/goliatone/go-config/config"
	"github.com/goliatone/go-config/logger"
	"github.com/goliatone/go-errors"
)

const (
	// EnvPrefix is the prefix of every environment override
	EnvPrefix = "BLOG_"
	// EnvDelimiter separates nested keys, BLOG_AUTH__SIGNING_KEY
	EnvDelimiter = "__"
	// DefaultFilepath is the optional JSON config file
	DefaultFilepath = "config/app.json"

	// DefaultSigningKey must be replaced outside development
	DefaultSigningKey = "change-me-in-prod"
)

type Config struct {
	App      App      `koanf:"app" json:"app"`
	Server   Server   `koanf:"server" json:"server"`
	Database Database `koanf:"database" json:"database"`
	Auth     Auth     `koanf:"auth" json:"auth"`
	Uploads  Uploads  `koanf:"uploads" json:"uploads"`
	Log      Log      `koanf:"log" json:"log"`
}

type App struct {
	Name string `koanf:"name" json:"name"`
	Env  string `koanf:"env" json:"env"`
}

type Server struct {
	Address         string        `koanf:"address" json:"address"`
	ReadTimeout     time.Duration `koanf:"read_timeout" json:"read_timeout"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" json:"shutdown_timeout"`
}

type Database struct {
	Driver            string        `koanf:"driver" json:"driver"`
	DSN               string        `koanf:"dsn" json:"-"`
	Debug             bool          `koanf:"debug" json:"debug"`
	PingTimeout       time.Duration `koanf:"ping_timeout" json:"ping_timeout"`
	OtelIdentifier    string        `koanf:"otel_identifier" json:"otel_identifier"`
	MigrationsEnabled bool          `koanf:"migrations_enabled" json:"migrations_enabled"`
}

type Auth struct {
	SigningKey             string  `koanf:"signing_key" json:"-"`
	TokenExpirationMinutes int     `koanf:"token_expiration_minutes" json:"token_expiration_minutes"`
	Issuer                 string  `koanf:"issuer" json:"issuer"`
	LoginRate              float64 `koanf:"login_rate" json:"login_rate"`
	LoginBurst             int     `koanf:"login_burst" json:"login_burst"`
}

type Uploads struct {
	MediaDir     string   `koanf:"media_dir" json:"media_dir"`
	MaxUploadMB  int      `koanf:"max_upload_mb" json:"max_upload_mb"`
	AllowedTypes []string `koanf:"allowed_types" json:"allowed_types"`
}

type Log struct {
	Level  string `koanf:"level" json:"level"`
	Format string `koanf:"format" json:"format"`
}

// Defaults returns the configuration used when no source overrides a key
func Defaults() *Config {
	return &Config{
		App: App{
			Name: "go-blog",
			Env:  "development",
		},
		Server: Server{
			Address:         ":8080",
			ReadTimeout:     10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: Database{
			Driver:            "sqlite",
			DSN:               "file:blog.db?cache=shared&_fk=1",
			PingTimeout:       5 * time.Second,
			OtelIdentifier:    "blog",
			MigrationsEnabled: true,
		},
		Auth: Auth{
			SigningKey:             DefaultSigningKey,
			TokenExpirationMinutes: 30,
			Issuer:                 "go-blog",
			LoginRate:              5,
			LoginBurst:             10,
		},
		Uploads: Uploads{
			MediaDir:     "media",
			MaxUploadMB:  3,
			AllowedTypes: []string{"image/png", "image/jpeg"},
		},
		Log: Log{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load builds the configuration: defaults, then the optional file at
// path (DefaultFilepath when empty), then environment overrides
func Load(ctx context.Context, path string, lgr logger.Logger) (*Config, error) {
	if path == "" {
		path = DefaultFilepath
	}

	container := gconfig.New(Defaults()).
		WithProvider(
			gconfig.OptionalProvider(gconfig.FileProvider[*Config](path)),
			gconfig.EnvProvider[*Config](EnvPrefix, EnvDelimiter),
		)

	if lgr != nil {
		container = container.WithLogger(lgr)
	}

	if err := container.Load(ctx); err != nil {
		return nil, err
	}

	return container.Raw(), nil
}

// Validate will run validation rules
func (c *Config) Validate() error {
	err := validation.Errors{
		"server":   c.Server.validate(),
		"database": c.Database.validate(),
		"auth":     c.Auth.validate(),
		"uploads":  c.Uploads.validate(),
		"log":      c.Log.validate(),
	}.Filter()
	if err == nil {
		return nil
	}
	return errors.FromOzzoValidation(err, "invalid configuration")
}

func (s Server) validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Address, validation.Required),
		validation.Field(&s.ReadTimeout, validation.Min(time.Duration(0))),
	)
}

func (d Database) validate() error {
	return validation.ValidateStruct(&d,
		validation.Field(&d.Driver, validation.Required, validation.In("sqlite", "sqlite3", "postgres", "pg", "postgresql")),
		validation.Field(&d.DSN, validation.Required),
	)
}

func (a Auth) validate() error {
	return validation.ValidateStruct(&a,
		validation.Field(&a.SigningKey, validation.Required),
		validation.Field(&a.TokenExpirationMinutes, validation.Required, validation.Min(1)),
		validation.Field(&a.LoginRate, validation.Min(0.0)),
		validation.Field(&a.LoginBurst, validation.Min(0)),
	)
}

func (u Uploads) validate() error {
	return validation.ValidateStruct(&u,
		validation.Field(&u.MediaDir, validation.Required),
		validation.Field(&u.MaxUploadMB, validation.Required, validation.Min(1)),
	)
}

func (l Log) validate() error {
	return validation.ValidateStruct(&l,
		validation.Field(&l.Format, validation.In("console", "pretty", "json")),
	)
}

// IsDevelopment reports whether the app runs in a local environment
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.App.Env) {
	case "", "dev", "development", "local", "test":
		return true
	}
	return false
}

// InsecureSigningKey reports the default signing key outside development
func (c *Config) InsecureSigningKey() bool {
	return c.Auth.SigningKey == DefaultSigningKey && !c.IsDevelopment()
}

func (d Database) GetDebug() bool { return d.Debug }

func (d Database) GetDriver() string { return d.Driver }

// GetServer returns the connection string, the persistence client uses
// it as the server identifier
func (d Database) GetServer() string { return d.DSN }

func (d Database) GetDSN() string { return d.DSN }

func (d Database) GetPingTimeout() time.Duration { return d.PingTimeout }

func (d Database) GetOtelIdentifier() string { return d.OtelIdentifier }

func (d Database) GetMigrationsEnabled() bool { return d.MigrationsEnabled }

func (a Auth) GetSigningKey() string { return a.SigningKey }

func (a Auth) GetTokenExpiration() int { return a.TokenExpirationMinutes }

func (a Auth) GetIssuer() string { return a.Issuer }

func (u Uploads) GetMediaDir() string { return u.MediaDir }

func (u Uploads) GetMaxUploadMB() int { return u.MaxUploadMB }

func (u Uploads) GetAllowedTypes() []string { return u.AllowedTypes }
