// Package config loads the service configuration from the environment.
//
// Each command parses only the sections it needs, so `migrate` does not
// demand TOTP or JWT settings.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"slices"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/dmitrymomot/twofactor/pkg/backupcode"
	"github.com/dmitrymomot/twofactor/pkg/httpserver"
	"github.com/dmitrymomot/twofactor/pkg/jwt"
	"github.com/dmitrymomot/twofactor/pkg/logger"
	"github.com/dmitrymomot/twofactor/pkg/mongo"
	"github.com/dmitrymomot/twofactor/pkg/pg"
	"github.com/dmitrymomot/twofactor/pkg/qrcode"
	"github.com/dmitrymomot/twofactor/pkg/ratelimiter"
	"github.com/dmitrymomot/twofactor/pkg/redis"
	"github.com/dmitrymomot/twofactor/pkg/secrets"
	"github.com/dmitrymomot/twofactor/pkg/totp"
)

var (
	ErrParsingConfig = errors.New("failed to parse environment variables into config")
	ErrLoadingEnv    = errors.New("failed to load .env file")
	ErrInvalidConfig = errors.New("invalid configuration")
)

const (
	StoragePostgres = "postgres"
	StorageMongo    = "mongo"
	StorageMemory   = "memory"

	LimiterMemory = "memory"
	LimiterRedis  = "redis"
	LimiterNone   = "none"
)

// App is shared by every command.
type App struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Name string `env:"APP_NAME" envDefault:"twofactor"`
	Log  logger.Config
}

// Migrate is what `twofactor migrate` needs.
type Migrate struct {
	App App
	PG  pg.Config
}

// Users is what `twofactor user add` needs.
type Users struct {
	App           App
	StorageDriver string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	PG            pg.Config
	Mongo         mongo.Config
}

// Server is what `twofactor serve` needs.
type Server struct {
	App            App
	StorageDriver  string `env:"STORAGE_DRIVER" envDefault:"postgres"`
	LimiterDriver  string `env:"LIMITER_DRIVER" envDefault:"memory"`
	MetricsEnabled bool   `env:"METRICS_ENABLED" envDefault:"true"`
	// IPLimit is the per-minute request allowance per client IP on /2fa routes.
	IPLimit int `env:"LIMITER_IP_PER_MINUTE" envDefault:"60"`

	HTTP        httpserver.Config
	TOTP        totp.Config
	QRCode      qrcode.Config
	BackupCodes backupcode.Config
	Secrets     secrets.Config
	JWT         jwt.Config
	Limiter     ratelimiter.Config
	PG          pg.Config
	Mongo       mongo.Config
	Redis       redis.Config
}

// Validate checks the cross-field rules env tags cannot express.
func (c Server) Validate() error {
	var errs []error
	if !slices.Contains([]string{StoragePostgres, StorageMongo, StorageMemory}, c.StorageDriver) {
		errs = append(errs, fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver))
	}
	if !slices.Contains([]string{LimiterMemory, LimiterRedis, LimiterNone}, c.LimiterDriver) {
		errs = append(errs, fmt.Errorf("unknown LIMITER_DRIVER %q", c.LimiterDriver))
	}
	if c.StorageDriver == StoragePostgres && c.PG.ConnectionString == "" {
		errs = append(errs, errors.New("PG_CONN_URL is required for the postgres storage driver"))
	}
	if c.StorageDriver == StorageMongo && c.Mongo.ConnectionURL == "" {
		errs = append(errs, errors.New("MONGODB_URL is required for the mongo storage driver"))
	}
	if c.Secrets.EncryptionKey == "" && !c.Secrets.UsesKMS() {
		errs = append(errs, errors.New("set SECRETS_ENCRYPTION_KEY or SECRETS_KMS_WRAPPED_KEY"))
	}
	if c.JWT.SigningKey == "" {
		errs = append(errs, errors.New("JWT_SIGNING_KEY is required"))
	}
	if len(errs) > 0 {
		return errors.Join(ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// Load reads the given .env files, or ./.env when none are given, then
// parses the environment into v. Missing files are ignored and variables
// already set in the process win over file values.
func Load[T any](v *T, files ...string) error {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return errors.Join(ErrLoadingEnv, err)
	}
	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// LoadServer loads and validates the serve configuration.
func LoadServer(files ...string) (Server, error) {
	var cfg Server
	if err := Load(&cfg, files...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}
