package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) string {
	return func(key string) string { return vars[key] }
}

const secret = "0123456789abcdef0123456789abcdef"

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"JWT_SECRET":   secret,
		"DATABASE_URL": "postgres://localhost/quests",
	}))
	require.NoError(t, err)

	assert.Equal(t, "5200", cfg.Port)
	assert.Equal(t, DriverPostgres, cfg.StorageDriver)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, 5*time.Minute, cfg.ChallengeTTL)
	assert.Equal(t, 15*time.Minute, cfg.BoostRefreshInterval)
	assert.Equal(t, "quest_ledger", cfg.MongoDatabase)
	assert.False(t, cfg.R2.Enabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		"JWT_SECRET":             secret,
		"STORAGE_DRIVER":         "Mongo",
		"MONGO_URI":              "mongodb://localhost:27017",
		"ALLOWED_ORIGINS":        "https://a.example, https://b.example ,",
		"CHALLENGE_TTL":          "90s",
		"BOOST_REFRESH_INTERVAL": "0",
		"ORACLE_URL":             "https://oracle.example/",
		"CLOUDFLARE_ACCOUNT_ID":  "acct",
		"R2_ACCESS_KEY_ID":       "id",
		"R2_ACCESS_KEY_SECRET":   "secret",
		"R2_BUCKET_NAME":         "bucket",
		"CDN_BASE_URL":           "https://cdn.example/",
	}))
	require.NoError(t, err)

	assert.Equal(t, DriverMongo, cfg.StorageDriver)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 90*time.Second, cfg.ChallengeTTL)
	assert.Zero(t, cfg.BoostRefreshInterval)
	assert.Equal(t, "https://oracle.example", cfg.OracleURL)
	assert.True(t, cfg.R2.Enabled())
	assert.Equal(t, "https://cdn.example", cfg.R2.CDNBaseURL)
}

func TestFromEnv_Errors(t *testing.T) {
	for name, vars := range map[string]map[string]string{
		"missing secret":    {"STORAGE_DRIVER": "memory"},
		"short secret":      {"STORAGE_DRIVER": "memory", "JWT_SECRET": "short"},
		"postgres dsn":      {"JWT_SECRET": secret},
		"mongo uri":         {"JWT_SECRET": secret, "STORAGE_DRIVER": "mongo"},
		"unknown driver":    {"JWT_SECRET": secret, "STORAGE_DRIVER": "redis"},
		"bad duration":      {"JWT_SECRET": secret, "STORAGE_DRIVER": "memory", "CHALLENGE_TTL": "soon"},
		"negative interval": {"JWT_SECRET": secret, "STORAGE_DRIVER": "memory", "CHALLENGE_SWEEP_INTERVAL": "-1m"},
		"zero sweep":        {"JWT_SECRET": secret, "STORAGE_DRIVER": "memory", "CHALLENGE_SWEEP_INTERVAL": "0"},
	} {
		_, err := FromEnv(env(vars))
		assert.Error(t, err, name)
	}

	_, err := FromEnv(env(map[string]string{"STORAGE_DRIVER": "redis"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")
	assert.Contains(t, err.Error(), "redis")
}
