// Package config reads the service configuration from the environment (and an
// optional .env file). Required values fail fast; there are no insecure defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"wallet-quest-ledger/utils"

	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
	DriverMemory   = "memory"
)

const minJWTSecretLength = 32

type Config struct {
	Port           string
	AllowedOrigins []string

	StorageDriver string
	DatabaseURL   string
	MongoURI      string
	MongoDatabase string

	JWTSecret     string
	ChallengeTTL  time.Duration
	AdminAPIToken string

	OracleURL     string
	OracleToken   string
	OracleTimeout time.Duration

	QuestCatalogPath string

	BoostRefreshInterval        time.Duration
	ChallengeSweepInterval      time.Duration
	LeaderboardSnapshotInterval time.Duration

	LogLevel  string
	LogFormat string

	R2 utils.R2Config
}

// Load reads .env when present, then the process environment. The bool reports
// whether a .env file was found.
func Load() (*Config, bool, error) {
	dotenv := godotenv.Load() == nil
	cfg, err := FromEnv(os.Getenv)
	return cfg, dotenv, err
}

// FromEnv builds a Config from getenv.
func FromEnv(getenv func(string) string) (*Config, error) {
	get := func(key, def string) string {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			return v
		}
		return def
	}

	var errs []error
	// zeroOK lets "0" switch a poller off
	duration := func(key string, def time.Duration, zeroOK bool) time.Duration {
		raw := get(key, "")
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d < 0 || (d == 0 && !zeroOK) {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
			return def
		}
		return d
	}

	cfg := &Config{
		Port:                        get("PORT", "5200"),
		StorageDriver:               strings.ToLower(get("STORAGE_DRIVER", DriverPostgres)),
		DatabaseURL:                 get("DATABASE_URL", ""),
		MongoURI:                    get("MONGO_URI", ""),
		MongoDatabase:               get("MONGO_DATABASE", "quest_ledger"),
		JWTSecret:                   getenv("JWT_SECRET"),
		ChallengeTTL:                duration("CHALLENGE_TTL", 5*time.Minute, false),
		AdminAPIToken:               get("ADMIN_API_TOKEN", ""),
		OracleURL:                   strings.TrimRight(get("ORACLE_URL", ""), "/"),
		OracleToken:                 get("ORACLE_TOKEN", ""),
		OracleTimeout:               duration("ORACLE_TIMEOUT", 10*time.Second, false),
		QuestCatalogPath:            get("QUEST_CATALOG_PATH", ""),
		BoostRefreshInterval:        duration("BOOST_REFRESH_INTERVAL", 15*time.Minute, true),
		ChallengeSweepInterval:      duration("CHALLENGE_SWEEP_INTERVAL", time.Minute, false),
		LeaderboardSnapshotInterval: duration("LEADERBOARD_SNAPSHOT_INTERVAL", 10*time.Minute, false),
		LogLevel:                    get("LOG_LEVEL", "info"),
		LogFormat:                   get("LOG_FORMAT", "json"),
		R2: utils.R2Config{
			AccountID:       get("CLOUDFLARE_ACCOUNT_ID", ""),
			AccessKeyID:     get("R2_ACCESS_KEY_ID", ""),
			AccessKeySecret: get("R2_ACCESS_KEY_SECRET", ""),
			Bucket:          get("R2_BUCKET_NAME", ""),
			CDNBaseURL:      strings.TrimRight(get("CDN_BASE_URL", ""), "/"),
		},
	}

	for _, origin := range strings.Split(get("ALLOWED_ORIGINS", "http://localhost:3000"), ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			cfg.AllowedOrigins = append(cfg.AllowedOrigins, origin)
		}
	}

	if cfg.JWTSecret == "" {
		errs = append(errs, errors.New("JWT_SECRET is required"))
	} else if len(cfg.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Errorf("JWT_SECRET must be at least %d bytes", minJWTSecretLength))
	}

	switch cfg.StorageDriver {
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			errs = append(errs, errors.New("DATABASE_URL is required for the postgres driver"))
		}
	case DriverMongo:
		if cfg.MongoURI == "" {
			errs = append(errs, errors.New("MONGO_URI is required for the mongo driver"))
		}
	case DriverMemory:
	default:
		errs = append(errs, fmt.Errorf("STORAGE_DRIVER: unknown driver %q", cfg.StorageDriver))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return cfg, nil
}
