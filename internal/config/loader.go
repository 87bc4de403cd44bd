package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PULSE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PULSE_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Server ──
	setInt(&cfg.Server.Port, "PULSE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "PULSE_SERVER_API_KEY")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "PULSE_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "PULSE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "PULSE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "PULSE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "PULSE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "PULSE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "PULSE_POSTGRES_SSLMODE")
	setBool(&cfg.Postgres.RunMigrations, "PULSE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PULSE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PULSE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PULSE_REDIS_DB")
	setBool(&cfg.Redis.TLSEnabled, "PULSE_REDIS_TLS_ENABLED")

	// ── Chain ──
	setStr(&cfg.Chain.WsURL, "PULSE_CHAIN_WS_URL")
	setUint(&cfg.Chain.ChainID, "PULSE_CHAIN_ID")

	// ── Market ──
	setStr(&cfg.Market.MinBetWei, "PULSE_MARKET_MIN_BET_WEI")
	setStr(&cfg.Market.MinCreationBondWei, "PULSE_MARKET_MIN_CREATION_BOND_WEI")
	setStr(&cfg.Market.OwnerAddress, "PULSE_MARKET_OWNER_ADDRESS")

	// ── Settlement ──
	setBool(&cfg.Settlement.RestrictReact, "PULSE_SETTLEMENT_RESTRICT_REACT")
	setStr(&cfg.Settlement.RelayToken, "PULSE_SETTLEMENT_RELAY_TOKEN")
	setBool(&cfg.Settlement.RestrictSubscribe, "PULSE_SETTLEMENT_RESTRICT_SUBSCRIBE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "PULSE_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Endpoint, "PULSE_ARCHIVE_ENDPOINT")
	setStr(&cfg.Archive.Region, "PULSE_ARCHIVE_REGION")
	setStr(&cfg.Archive.Bucket, "PULSE_ARCHIVE_BUCKET")
	setStr(&cfg.Archive.AccessKey, "PULSE_ARCHIVE_ACCESS_KEY")
	setStr(&cfg.Archive.SecretKey, "PULSE_ARCHIVE_SECRET_KEY")

	// ── Top level ──
	setStr(&cfg.Mode, "PULSE_MODE")
	setStr(&cfg.LogLevel, "PULSE_LOG_LEVEL")
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}
