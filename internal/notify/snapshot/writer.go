package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// Lease is a held distributed lock, returned by Locker.Acquire. Release
// must be safe to call more than once.
type Lease interface {
	Release(ctx context.Context)
}

// Locker guards uploadOnce against running concurrently across more than
// one watcher instance sharing the same Redis. It is optional: a Writer
// with no Locker just uploads unconditionally.
type Locker interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error)
}

// LockerFunc adapts a plain function to Locker, the way http.HandlerFunc
// adapts a function to http.Handler. Wire uses this to hand the writer a
// *redis.LockManager's Acquire method without notify/redis and
// notify/snapshot importing each other.
type LockerFunc func(ctx context.Context, name string, ttl time.Duration) (Lease, error)

// Acquire calls f.
func (f LockerFunc) Acquire(ctx context.Context, name string, ttl time.Duration) (Lease, error) {
	return f(ctx, name, ttl)
}

const snapshotLockKey = "snapshot-writer"

// orderRecord is the JSON shape of one watched order in an archived snapshot.
type orderRecord struct {
	OrderHash         string `json:"order_hash"`
	Maker             string `json:"maker"`
	Taker             string `json:"taker"`
	MakerTokenAddress string `json:"maker_token_address"`
	TakerTokenAddress string `json:"taker_token_address"`
	MakerAmount       string `json:"maker_amount"`
	TakerAmount       string `json:"taker_amount"`
	ExpirationSec     int64  `json:"expiration_timestamp_sec"`
}

// Source is the subset of watcher.Watcher the archiver needs.
type Source interface {
	Snapshot() []domain.SignedOrder
}

// Writer periodically uploads a JSON snapshot of a Source's watched orders
// to S3 under a time-stamped key.
type Writer struct {
	client *s3.Client
	bucket string
	source Source
	locker Locker
	logger *slog.Logger
}

// NewWriter creates a Writer that uploads to the given client's configured
// bucket, reading the watched set from source.
func NewWriter(c *Client, source Source, logger *slog.Logger) *Writer {
	return &Writer{
		client: c.S3(),
		bucket: c.Bucket(),
		source: source,
		logger: logger.With(slog.String("component", "snapshot_writer")),
	}
}

// WithLocker attaches a distributed Locker so uploadOnce is skipped on any
// instance that loses the race for a given tick. Safe to call with nil,
// which leaves locking disabled.
func (w *Writer) WithLocker(l Locker) *Writer {
	w.locker = l
	return w
}

// Run uploads a snapshot every interval until ctx is cancelled.
func (w *Writer) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.uploadOnce(ctx); err != nil {
				w.logger.Error("snapshot upload failed", slog.String("error", err.Error()))
			}
		}
	}
}

func (w *Writer) uploadOnce(ctx context.Context) error {
	if w.locker != nil {
		lease, err := w.locker.Acquire(ctx, snapshotLockKey, 30*time.Second)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				w.logger.Debug("snapshot upload skipped, lock held by another instance")
				return nil
			}
			return fmt.Errorf("snapshot: acquire lock: %w", err)
		}
		defer lease.Release(ctx)
	}

	orders := w.source.Snapshot()
	records := make([]orderRecord, 0, len(orders))
	for _, o := range orders {
		records = append(records, orderRecord{
			OrderHash:         o.OrderHash.Hex(),
			Maker:             o.Maker.Hex(),
			Taker:             o.Taker.Hex(),
			MakerTokenAddress: o.MakerTokenAddress.Hex(),
			TakerTokenAddress: o.TakerTokenAddress.Hex(),
			MakerAmount:       o.MakerAmount.String(),
			TakerAmount:       o.TakerAmount.String(),
			ExpirationSec:     o.ExpirationTimestampSec,
		})
	}

	body, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("snapshot: marshal watched set: %w", err)
	}

	key := fmt.Sprintf("watched-orders/%s.json", timestampKey())
	_, err = w.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(w.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("snapshot: put object %s: %w", key, err)
	}
	return nil
}

// timestampKey is overridable in tests; it defaults to the current time
// formatted for lexicographically sortable object keys.
var timestampKey = func() string {
	return time.Now().UTC().Format("20060102T150405.000Z")
}
