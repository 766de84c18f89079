package domain

import "time"

// Options configures watcher timing and chain-read behavior per spec §6.
// WithDefaults replaces a zero StateLayer, OrderExpirationCheckingIntervalMs,
// or CleanupJobIntervalMs with its default.
type Options struct {
	// EventPollingIntervalMs is the upstream log-polling cadence; it is
	// transport-defined (the EventSource implementation decides how to use
	// it) and has no watcher-side default.
	EventPollingIntervalMs int64

	// StateLayer is the block tag passed to every chain read.
	StateLayer string

	// OrderExpirationCheckingIntervalMs is the ExpirationQueue poll tick.
	OrderExpirationCheckingIntervalMs int64

	// ExpirationMarginMs is subtracted from an order's expiration before
	// comparing against "now" in the ExpirationQueue.
	ExpirationMarginMs int64

	// CleanupJobIntervalMs is the period of the full re-sweep.
	CleanupJobIntervalMs int64
}

// Default tick/margin values per spec §6.
const (
	DefaultStateLayer                        = "latest"
	DefaultOrderExpirationCheckingIntervalMs = 50
	DefaultExpirationMarginMs                = 0
	DefaultCleanupJobIntervalMs              = 3_600_000
)

// WithDefaults returns a copy of o with zero fields replaced by their
// documented defaults.
func (o Options) WithDefaults() Options {
	if o.StateLayer == "" {
		o.StateLayer = DefaultStateLayer
	}
	if o.OrderExpirationCheckingIntervalMs == 0 {
		o.OrderExpirationCheckingIntervalMs = DefaultOrderExpirationCheckingIntervalMs
	}
	if o.CleanupJobIntervalMs == 0 {
		o.CleanupJobIntervalMs = DefaultCleanupJobIntervalMs
	}
	return o
}

// CleanupInterval returns CleanupJobIntervalMs as a time.Duration.
func (o Options) CleanupInterval() time.Duration {
	return time.Duration(o.CleanupJobIntervalMs) * time.Millisecond
}

// ExpirationCheckInterval returns OrderExpirationCheckingIntervalMs as a
// time.Duration.
func (o Options) ExpirationCheckInterval() time.Duration {
	return time.Duration(o.OrderExpirationCheckingIntervalMs) * time.Millisecond
}

// ExpirationMargin returns ExpirationMarginMs as a time.Duration.
func (o Options) ExpirationMargin() time.Duration {
	return time.Duration(o.ExpirationMarginMs) * time.Millisecond
}
