package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/simple-rbac/pkg/store"
	"golang.org/x/crypto/bcrypt"
)

// Config is the complete service configuration, read from the environment.
type Config struct {
	HTTP  HTTPConfig
	Store StoreConfig
	Log   LogConfig

	BcryptCost       int    `env:"RBAC_BCRYPT_COST" env-default:"10"`
	StrictReferences bool   `env:"RBAC_STRICT_REFERENCES" env-default:"false"`
	SeedFile         string `env:"RBAC_SEED_FILE"`
}

type HTTPConfig struct {
	Port        int           `env:"RBAC_PORT" env-default:"4000"`
	BasePath    string        `env:"RBAC_BASE_PATH" env-default:"/api/admin"`
	RateLimit   int           `env:"RBAC_RATE_LIMIT" env-default:"100"`
	RateWindow  time.Duration `env:"RBAC_RATE_WINDOW" env-default:"1m"`
	CORSOrigins []string      `env:"RBAC_CORS_ORIGINS" env-separator:"," env-default:"http://localhost:3000,http://localhost:5173"`
	Production  bool          `env:"RBAC_PRODUCTION" env-default:"false"`
}

type StoreConfig struct {
	Persistence  string        `env:"RBAC_PERSISTENCE" env-default:"memory"`
	DataDir      string        `env:"RBAC_DATA_DIR" env-default:"./data"`
	MongoURI     string        `env:"RBAC_MONGO_URI" env-default:"mongodb://localhost:27017"`
	MongoDB      string        `env:"RBAC_MONGO_DATABASE" env-default:"rbac"`
	MongoTimeout time.Duration `env:"RBAC_MONGO_TIMEOUT" env-default:"10s"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" env-default:"info"`
	Format string `env:"LOG_FORMAT" env-default:"text"`
}

// Load reads the configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read configuration: %w", err)
	}
	cfg.HTTP.BasePath = strings.TrimRight(cfg.HTTP.BasePath, "/")
	if cfg.HTTP.BasePath == "" {
		cfg.HTTP.BasePath = "/"
	}
	cfg.Store.Persistence = strings.ToLower(strings.TrimSpace(cfg.Store.Persistence))
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	return Validate(
		c.HTTP.validate,
		c.Store.validate,
		c.Log.validate,
		func() ValidationErrors {
			return CollectErrors(RequireInRange("RBAC_BCRYPT_COST", c.BcryptCost, bcrypt.MinCost, bcrypt.MaxCost))
		},
	)
}

func (c HTTPConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireValidPort("RBAC_PORT", c.Port),
		RequirePathPrefix("RBAC_BASE_PATH", c.BasePath),
		RequirePositive("RBAC_RATE_LIMIT", c.RateLimit),
		RequirePositiveDuration("RBAC_RATE_WINDOW", c.RateWindow),
	)
}

func (c StoreConfig) validate() ValidationErrors {
	errs := CollectErrors(RequireOneOf("RBAC_PERSISTENCE", c.Persistence, []string{
		store.PersistenceMemory, store.PersistenceFile, store.PersistenceMongo,
	}))
	switch c.Persistence {
	case store.PersistenceFile:
		errs = append(errs, CollectErrors(RequireNonEmpty("RBAC_DATA_DIR", c.DataDir))...)
	case store.PersistenceMongo:
		errs = append(errs, CollectErrors(
			RequireURLScheme("RBAC_MONGO_URI", c.MongoURI, "mongodb", "mongodb+srv"),
			RequireNonEmpty("RBAC_MONGO_DATABASE", c.MongoDB),
			RequirePositiveDuration("RBAC_MONGO_TIMEOUT", c.MongoTimeout),
		)...)
	}
	return errs
}

func (c LogConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireOneOf("LOG_LEVEL", strings.ToLower(c.Level), []string{"debug", "info", "warn", "error"}),
		RequireOneOf("LOG_FORMAT", strings.ToLower(c.Format), []string{"text", "json"}),
	)
}

// StoreFactoryConfig converts the store section for store.New.
func (c StoreConfig) StoreFactoryConfig() store.Config {
	return store.Config{
		DataDir: c.DataDir,
		Mongo: store.MongoConfig{
			URI:      c.MongoURI,
			Database: c.MongoDB,
			Timeout:  c.MongoTimeout,
		},
	}
}

// SlogLevel maps LOG_LEVEL to a slog level.
func (c LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(c.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// JSON reports whether logs should be written as JSON.
func (c LogConfig) JSON() bool {
	return strings.EqualFold(c.Format, "json")
}
