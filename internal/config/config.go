// Package config defines the top-level configuration for the order-validity
// watcher and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by ORDERWATCH_* environment
// variables.
type Config struct {
	Chain    ChainConfig    `toml:"chain"`
	Wallet   WalletConfig   `toml:"wallet"`
	Watcher  WatcherConfig  `toml:"watcher"`
	Redis    RedisConfig    `toml:"redis"`
	Postgres PostgresConfig `toml:"postgres"`
	S3       S3Config       `toml:"s3"`
	LogLevel string         `toml:"log_level"`
}

// ChainConfig holds the Ethereum RPC endpoint and exchange contract
// addresses the chain reader and event source are built from.
type ChainConfig struct {
	RPCHTTPURL      string `toml:"rpc_http_url"`
	RPCWSURL        string `toml:"rpc_ws_url"`
	NetworkID       int64  `toml:"network_id"`
	ExchangeAddress string `toml:"exchange_address"`
	TransferProxy   string `toml:"transfer_proxy_address"`
	ZRXAddress      string `toml:"zrx_token_address"`
	// Transport selects the event-source implementation: "poll" (FilterLogs
	// on a ticker) or "ws" (eth_subscribe over a persistent websocket).
	Transport string `toml:"transport"`
}

// WalletConfig holds the credentials for the demo keystore CLI; the watcher
// core itself never signs anything, it only verifies.
type WalletConfig struct {
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// WatcherConfig holds the five domain.Options fields (see ToOptions) plus
// the websocket event source's reconnect backoff bounds.
type WatcherConfig struct {
	EventPollingIntervalMs            int64    `toml:"event_polling_interval_ms"`
	StateLayer                        string   `toml:"state_layer"`
	OrderExpirationCheckingIntervalMs int64    `toml:"order_expiration_checking_interval_ms"`
	ExpirationMarginMs                int64    `toml:"expiration_margin_ms"`
	CleanupJobIntervalMs              int64    `toml:"cleanup_job_interval_ms"`
	WebsocketReconnectMinBackoff      duration `toml:"websocket_reconnect_min_backoff"`
	WebsocketReconnectMaxBackoff      duration `toml:"websocket_reconnect_max_backoff"`
}

// ToOptions projects the watcher-relevant fields onto domain.Options, the
// shape the watcher's constructor expects.
func (w WatcherConfig) ToOptions() domain.Options {
	return domain.Options{
		EventPollingIntervalMs:            w.EventPollingIntervalMs,
		StateLayer:                        w.StateLayer,
		OrderExpirationCheckingIntervalMs: w.OrderExpirationCheckingIntervalMs,
		ExpirationMarginMs:                w.ExpirationMarginMs,
		CleanupJobIntervalMs:              w.CleanupJobIntervalMs,
	}
}

// RedisConfig holds Redis connection parameters for the pub/sub notify sink.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	Channel    string `toml:"channel"`
}

// PostgresConfig holds connection parameters for the append-only audit
// trail sink.
type PostgresConfig struct {
	Enabled      bool   `toml:"enabled"`
	DSN          string `toml:"dsn"`
	Host         string `toml:"host"`
	Port         int    `toml:"port"`
	Database     string `toml:"database"`
	User         string `toml:"user"`
	Password     string `toml:"password"`
	SSLMode      string `toml:"ssl_mode"`
	PoolMaxConns int    `toml:"pool_max_conns"`
	PoolMinConns int    `toml:"pool_min_conns"`
}

// S3Config holds S3-compatible object storage parameters for the periodic
// watched-set snapshot archiver.
type S3Config struct {
	Enabled          bool     `toml:"enabled"`
	Endpoint         string   `toml:"endpoint"`
	Region           string   `toml:"region"`
	Bucket           string   `toml:"bucket"`
	AccessKey        string   `toml:"access_key"`
	SecretKey        string   `toml:"secret_key"`
	ForcePathStyle   bool     `toml:"force_path_style"`
	SnapshotInterval duration `toml:"snapshot_interval"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values,
// mirroring spec §6's option defaults.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			NetworkID: 1,
			Transport: "poll",
		},
		Watcher: WatcherConfig{
			StateLayer:                        "latest",
			OrderExpirationCheckingIntervalMs: 50,
			ExpirationMarginMs:                0,
			CleanupJobIntervalMs:              3_600_000,
			WebsocketReconnectMinBackoff:      duration{time.Second},
			WebsocketReconnectMaxBackoff:      duration{30 * time.Second},
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   10,
			MaxRetries: 3,
			Channel:    "orderwatch:state-changes",
		},
		Postgres: PostgresConfig{
			Host:         "localhost",
			Port:         5432,
			Database:     "orderwatch",
			User:         "postgres",
			SSLMode:      "disable",
			PoolMaxConns: 10,
			PoolMinConns: 2,
		},
		S3: S3Config{
			Region:           "us-east-1",
			Bucket:           "orderwatch-snapshots",
			ForcePathStyle:   true,
			SnapshotInterval: duration{15 * time.Minute},
		},
		LogLevel: "info",
	}
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validTransports = map[string]bool{
	"poll": true,
	"ws":   true,
}

// Validate checks Config for obviously invalid or missing values and
// returns a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Chain.RPCHTTPURL == "" {
		errs = append(errs, "chain: rpc_http_url must not be empty")
	}
	if c.Chain.NetworkID <= 0 {
		errs = append(errs, "chain: network_id must be positive")
	}
	if c.Chain.ExchangeAddress == "" {
		errs = append(errs, "chain: exchange_address must not be empty")
	}
	if c.Chain.TransferProxy == "" {
		errs = append(errs, "chain: transfer_proxy_address must not be empty")
	}
	if !validTransports[strings.ToLower(c.Chain.Transport)] {
		errs = append(errs, fmt.Sprintf("chain: unknown transport %q (valid: poll, ws)", c.Chain.Transport))
	}
	if strings.ToLower(c.Chain.Transport) == "ws" && c.Chain.RPCWSURL == "" {
		errs = append(errs, "chain: rpc_ws_url must be set when transport is \"ws\"")
	}

	if c.Watcher.OrderExpirationCheckingIntervalMs <= 0 {
		errs = append(errs, "watcher: order_expiration_checking_interval_ms must be > 0")
	}
	if c.Watcher.CleanupJobIntervalMs <= 0 {
		errs = append(errs, "watcher: cleanup_job_interval_ms must be > 0")
	}
	if c.Watcher.ExpirationMarginMs < 0 {
		errs = append(errs, "watcher: expiration_margin_ms must be >= 0")
	}

	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty when enabled")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Port <= 0 || c.Postgres.Port > 65535 {
			errs = append(errs, fmt.Sprintf("postgres: port must be 1-65535, got %d", c.Postgres.Port))
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}
	if c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
		errs = append(errs, "postgres: pool_min_conns must not exceed pool_max_conns")
	}

	if c.S3.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
		if c.S3.Region == "" {
			errs = append(errs, "s3: region must not be empty when enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
