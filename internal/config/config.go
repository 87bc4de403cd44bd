// Package config defines the top-level configuration for the pulse market
// service and provides validation helpers.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by PULSE_* environment variables.
type Config struct {
	Server     ServerConfig     `toml:"server"`
	Postgres   PostgresConfig   `toml:"postgres"`
	Redis      RedisConfig      `toml:"redis"`
	Chain      ChainConfig      `toml:"chain"`
	Market     MarketConfig     `toml:"market"`
	Settlement SettlementConfig `toml:"settlement"`
	Archive    ArchiveConfig    `toml:"archive"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
}

// ServerConfig holds the HTTP API parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"` // empty disables API auth

	// RateLimit caps requests per client IP per window. Zero disables it.
	RateLimit       int    `toml:"rate_limit"`
	RateLimitWindow string `toml:"rate_limit_window"` // Go duration, e.g. "1s"
}

// PostgresConfig holds PostgreSQL connection parameters for the read models
// and the event journal.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters for the event bus and the
// market cache.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	CacheTTL   string `toml:"cache_ttl"` // Go duration, e.g. "30s"
}

// ChainConfig identifies the chain the relay watches.
type ChainConfig struct {
	WsURL           string `toml:"ws_url"`
	ChainID         uint64 `toml:"chain_id"`
	RefreshInterval string `toml:"refresh_interval"` // watch-list refresh, Go duration
}

// MarketConfig holds the ledger's economic parameters. Amounts are decimal
// wei strings so they survive TOML round-trips without float truncation.
type MarketConfig struct {
	MinBetWei          string `toml:"min_bet_wei"`
	MinCreationBondWei string `toml:"min_creation_bond_wei"`
	PlatformFeeBps     int64  `toml:"platform_fee_bps"`
	CreatorFeeBps      int64  `toml:"creator_fee_bps"`
	MaxQuestionLen     int    `toml:"max_question_len"`
	OwnerAddress       string `toml:"owner_address"`
}

// SettlementConfig controls authorization on the reactive surface. The
// reference configuration leaves both endpoints open; hardened deployments
// restrict react to a relay bearing the token and subscribe to the market
// creator.
type SettlementConfig struct {
	RestrictReact     bool   `toml:"restrict_react"`
	RelayToken        string `toml:"relay_token"`
	RestrictSubscribe bool   `toml:"restrict_subscribe"`
}

// ArchiveConfig holds S3-compatible object storage parameters for journal
// archival of terminal markets.
type ArchiveConfig struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	Interval       string `toml:"interval"`  // Go duration between sweeps
	RetainFor      string `toml:"retain_for"` // age before a terminal market is archived
}

// Defaults returns the configuration matching the reference deployment.
func Defaults() Config {
	return Config{
		Server: ServerConfig{
			Port:            8080,
			CORSOrigins:     []string{"*"},
			RateLimitWindow: "1s",
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "pulsemarket",
			User:          "pulse",
			SSLMode:       "disable",
			PoolMaxConns:  8,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 16,
			CacheTTL: "30s",
		},
		Chain: ChainConfig{
			ChainID:         50312,
			RefreshInterval: "10s",
		},
		Market: MarketConfig{
			MinBetWei:          "1000000000000000",  // 0.001 ether
			MinCreationBondWei: "10000000000000000", // 0.01 ether
			PlatformFeeBps:     100,
			CreatorFeeBps:      200,
			MaxQuestionLen:     280,
		},
		Archive: ArchiveConfig{
			Interval:  "1h",
			RetainFor: "24h",
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// Validate checks the configuration for internal consistency. It is called
// once at startup, after Load.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Mode) {
	case "serve", "full":
	default:
		return fmt.Errorf("config: unsupported mode %q (want serve or full)", c.Mode)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("config: invalid server port %d", c.Server.Port)
	}

	if _, err := c.Market.MinBet(); err != nil {
		return err
	}
	if _, err := c.Market.MinCreationBond(); err != nil {
		return err
	}
	if c.Market.PlatformFeeBps < 0 || c.Market.CreatorFeeBps < 0 {
		return fmt.Errorf("config: fee bps must not be negative")
	}
	if c.Market.PlatformFeeBps+c.Market.CreatorFeeBps >= 10_000 {
		return fmt.Errorf("config: combined fees %d bps consume the entire losing pool",
			c.Market.PlatformFeeBps+c.Market.CreatorFeeBps)
	}
	if c.Market.MaxQuestionLen <= 0 {
		return fmt.Errorf("config: max_question_len must be positive")
	}

	if c.Settlement.RestrictReact && c.Settlement.RelayToken == "" {
		return fmt.Errorf("config: restrict_react requires settlement.relay_token")
	}

	if strings.ToLower(c.Mode) == "full" && c.Chain.WsURL == "" {
		return fmt.Errorf("config: full mode requires chain.ws_url")
	}

	for _, d := range []struct {
		name, val string
	}{
		{"server.rate_limit_window", c.Server.RateLimitWindow},
		{"redis.cache_ttl", c.Redis.CacheTTL},
		{"chain.refresh_interval", c.Chain.RefreshInterval},
		{"archive.interval", c.Archive.Interval},
		{"archive.retain_for", c.Archive.RetainFor},
	} {
		if d.val == "" {
			continue
		}
		if _, err := time.ParseDuration(d.val); err != nil {
			return fmt.Errorf("config: %s: %w", d.name, err)
		}
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("config: archive.enabled requires archive.bucket")
	}

	return nil
}

// MinBet parses the minimum bet into wei.
func (m MarketConfig) MinBet() (*big.Int, error) {
	return parseWei("market.min_bet_wei", m.MinBetWei)
}

// MinCreationBond parses the minimum creation bond into wei.
func (m MarketConfig) MinCreationBond() (*big.Int, error) {
	return parseWei("market.min_creation_bond_wei", m.MinCreationBondWei)
}

func parseWei(field, s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(strings.TrimSpace(s), 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("config: %s: invalid wei amount %q", field, s)
	}
	return v, nil
}

// Duration parses a Go duration string, returning fallback when the string
// is empty.
func Duration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
