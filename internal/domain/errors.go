package domain

import "errors"

// Sentinel errors surfaced synchronously from Watcher.AddOrder, Subscribe,
// and Unsubscribe, and asynchronously to the subscriber callback.
// See spec §7 for the policy each one implements.
var (
	// ErrSubscriptionAlreadyPresent is returned by Subscribe when a
	// subscriber is already attached.
	ErrSubscriptionAlreadyPresent = errors.New("orderwatch: subscription already present")

	// ErrSubscriptionNotFound is returned by Unsubscribe when no subscriber
	// is attached.
	ErrSubscriptionNotFound = errors.New("orderwatch: subscription not found")

	// ErrValidationFailed wraps order-hash or signature mismatches
	// raised synchronously from addOrder.
	ErrValidationFailed = errors.New("orderwatch: order validation failed")

	// ErrTransientChain marks an evaluator-path chain read failure. It is
	// delivered to the subscriber and triggers automatic unsubscribe.
	ErrTransientChain = errors.New("orderwatch: transient chain error")

	// ErrUpstreamEvent marks a failure reported by the event source. Same
	// policy as ErrTransientChain.
	ErrUpstreamEvent = errors.New("orderwatch: upstream event source error")

	// ErrLockHeld is returned by a distributed lock's Acquire when another
	// holder already owns the key.
	ErrLockHeld = errors.New("orderwatch: lock held by another party")
)
