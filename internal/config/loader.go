package config

import (
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ORDERWATCH_* environment variable overrides,
// and returns the final Config. The returned Config has NOT been validated;
// the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ORDERWATCH_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Chain ──
	setStr(&cfg.Chain.RPCHTTPURL, "ORDERWATCH_CHAIN_RPC_HTTP_URL")
	setStr(&cfg.Chain.RPCWSURL, "ORDERWATCH_CHAIN_RPC_WS_URL")
	setInt64(&cfg.Chain.NetworkID, "ORDERWATCH_CHAIN_NETWORK_ID")
	setStr(&cfg.Chain.ExchangeAddress, "ORDERWATCH_CHAIN_EXCHANGE_ADDRESS")
	setStr(&cfg.Chain.TransferProxy, "ORDERWATCH_CHAIN_TRANSFER_PROXY_ADDRESS")
	setStr(&cfg.Chain.ZRXAddress, "ORDERWATCH_CHAIN_ZRX_TOKEN_ADDRESS")
	setStr(&cfg.Chain.Transport, "ORDERWATCH_CHAIN_TRANSPORT")

	// ── Wallet ──
	setStr(&cfg.Wallet.EncryptedKeyPath, "ORDERWATCH_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "ORDERWATCH_WALLET_KEY_PASSWORD")

	// ── Watcher ──
	setInt64(&cfg.Watcher.EventPollingIntervalMs, "ORDERWATCH_WATCHER_EVENT_POLLING_INTERVAL_MS")
	setStr(&cfg.Watcher.StateLayer, "ORDERWATCH_WATCHER_STATE_LAYER")
	setInt64(&cfg.Watcher.OrderExpirationCheckingIntervalMs, "ORDERWATCH_WATCHER_ORDER_EXPIRATION_CHECKING_INTERVAL_MS")
	setInt64(&cfg.Watcher.ExpirationMarginMs, "ORDERWATCH_WATCHER_EXPIRATION_MARGIN_MS")
	setInt64(&cfg.Watcher.CleanupJobIntervalMs, "ORDERWATCH_WATCHER_CLEANUP_JOB_INTERVAL_MS")
	setDuration(&cfg.Watcher.WebsocketReconnectMinBackoff, "ORDERWATCH_WATCHER_WEBSOCKET_RECONNECT_MIN_BACKOFF")
	setDuration(&cfg.Watcher.WebsocketReconnectMaxBackoff, "ORDERWATCH_WATCHER_WEBSOCKET_RECONNECT_MAX_BACKOFF")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ORDERWATCH_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ORDERWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ORDERWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ORDERWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ORDERWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ORDERWATCH_REDIS_MAX_RETRIES")
	setStr(&cfg.Redis.Channel, "ORDERWATCH_REDIS_CHANNEL")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "ORDERWATCH_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "ORDERWATCH_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ORDERWATCH_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ORDERWATCH_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ORDERWATCH_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ORDERWATCH_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ORDERWATCH_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ORDERWATCH_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ORDERWATCH_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ORDERWATCH_POSTGRES_POOL_MIN_CONNS")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "ORDERWATCH_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "ORDERWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ORDERWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "ORDERWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ORDERWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ORDERWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.ForcePathStyle, "ORDERWATCH_S3_FORCE_PATH_STYLE")
	setDuration(&cfg.S3.SnapshotInterval, "ORDERWATCH_S3_SNAPSHOT_INTERVAL")

	// ── Top-level ──
	setStr(&cfg.LogLevel, "ORDERWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

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

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
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

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
