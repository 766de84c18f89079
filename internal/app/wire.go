// Package app wires the order-validity watcher's collaborators together
// from Config and drives its run loop, mirroring the dependency-injection
// and lifecycle shape used across the rest of this codebase's commands.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/orderwatch/internal/chain"
	"github.com/alanyoungcy/orderwatch/internal/config"
	orderwatchcrypto "github.com/alanyoungcy/orderwatch/internal/crypto"
	"github.com/alanyoungcy/orderwatch/internal/domain"
	"github.com/alanyoungcy/orderwatch/internal/evaluator"
	"github.com/alanyoungcy/orderwatch/internal/notify/postgres"
	"github.com/alanyoungcy/orderwatch/internal/notify/redis"
	"github.com/alanyoungcy/orderwatch/internal/notify/snapshot"
	"github.com/alanyoungcy/orderwatch/internal/watcher"
)

// Dependencies bundles every concrete collaborator the watcher needs plus
// the optional notify sinks, assembled by Wire.
type Dependencies struct {
	Watcher *watcher.Watcher

	RedisPublisher *redis.Publisher
	AuditStore     *postgres.AuditStore
	SnapshotWriter *snapshot.Writer
}

// Wire constructs every concrete implementation from cfg and returns them
// bundled in a Dependencies, plus a cleanup function that releases every
// acquired resource in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	client, err := ethclient.DialContext(ctx, cfg.Chain.RPCHTTPURL)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: dial rpc: %w", err)
	}
	closers = append(closers, client.Close)

	exchangeAddr := common.HexToAddress(cfg.Chain.ExchangeAddress)
	transferProxyAddr := common.HexToAddress(cfg.Chain.TransferProxy)
	zrxAddr := common.HexToAddress(cfg.Chain.ZRXAddress)

	reader, err := chain.NewReader(client, exchangeAddr, zrxAddr, cfg.Watcher.StateLayer)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: chain reader: %w", err)
	}

	decoder, err := chain.NewDecoder()
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: event decoder: %w", err)
	}

	var source domain.EventSource
	switch strings.ToLower(cfg.Chain.Transport) {
	case "ws":
		source = chain.NewWSSource(
			cfg.Chain.RPCWSURL,
			decoder,
			cfg.Watcher.WebsocketReconnectMinBackoff.Duration,
			cfg.Watcher.WebsocketReconnectMaxBackoff.Duration,
			logger,
		)
	default:
		source = chain.NewPollSource(
			client,
			decoder,
			time.Duration(cfg.Watcher.EventPollingIntervalMs)*time.Millisecond,
			logger,
		)
	}

	eval := evaluator.New()
	validator := orderwatchcrypto.NewValidator()

	w := watcher.New(reader, source, eval, validator, transferProxyAddr, cfg.Watcher.ToOptions(), logger)

	deps := &Dependencies{Watcher: w}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })
		deps.RedisPublisher = redis.NewPublisher(redisClient, cfg.Redis.Channel)
	}

	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
		deps.AuditStore = postgres.NewAuditStore(pgClient.Pool())
	}

	if cfg.S3.Enabled {
		s3Client, err := snapshot.New(ctx, snapshot.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		writer := snapshot.NewWriter(s3Client, w, logger)
		if redisClient != nil {
			lm := redis.NewLockManager(redisClient)
			writer = writer.WithLocker(snapshot.LockerFunc(
				func(ctx context.Context, name string, ttl time.Duration) (snapshot.Lease, error) {
					return lm.Acquire(ctx, name, ttl)
				},
			))
		}
		deps.SnapshotWriter = writer
	}

	return deps, cleanup, nil
}
