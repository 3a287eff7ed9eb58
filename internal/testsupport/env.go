package testsupport

import (
	"testing"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"costguardian/internal/adapters/config"
)

// DatabaseConfigs bundles the store sections the integration tests connect to
type DatabaseConfigs struct {
	Postgres   config.PostgresConfig
	ClickHouse config.ClickHouseConfig
	Redis      config.RedisConfig
}

// LoadDatabaseConfigsFromEnv reads the store sections with the same
// variables and defaults the service uses. The test is skipped when a
// required variable is unset.
func LoadDatabaseConfigsFromEnv(t *testing.T) DatabaseConfigs {
	t.Helper()

	// Values already in the environment win over the file
	_ = godotenv.Load(".env.test")

	var cfg DatabaseConfigs
	sections := map[string]interface{}{
		"postgres":   &cfg.Postgres,
		"clickhouse": &cfg.ClickHouse,
		"redis":      &cfg.Redis,
	}
	for name, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			t.Skipf("integration environment missing (%s): %v", name, err)
		}
	}

	// Tests share one server; keep pools small
	cfg.Postgres.MaxConns = min(cfg.Postgres.MaxConns, 5)

	return cfg
}
