// Package emitter implements the StateDiffEmitter from spec §4.5: for each
// candidate order hash it re-evaluates the order's OrderState and delivers
// it to the subscriber only when it differs from the last delivered state.
package emitter

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

// Emitter owns the emitted-state memo M. It is safe for concurrent Emit
// calls, though the watcher drives them sequentially per spec §5's ordering
// guarantee (emissions for event N complete before event N+1 begins).
type Emitter struct {
	mu   sync.Mutex
	memo map[common.Hash]domain.OrderState

	evaluator   domain.Evaluator
	reader      domain.ChainReader
	lookupOrder func(common.Hash) (domain.SignedOrder, bool)
	subscriber  func() domain.Subscriber
	logger      *slog.Logger
}

// New creates an Emitter. lookupOrder resolves a hash against the watched
// set W; subscriber returns the currently attached callback, or nil when no
// subscription is active.
func New(
	evaluator domain.Evaluator,
	reader domain.ChainReader,
	lookupOrder func(common.Hash) (domain.SignedOrder, bool),
	subscriber func() domain.Subscriber,
	logger *slog.Logger,
) *Emitter {
	return &Emitter{
		memo:        make(map[common.Hash]domain.OrderState),
		evaluator:   evaluator,
		reader:      reader,
		lookupOrder: lookupOrder,
		subscriber:  subscriber,
		logger:      logger.With(slog.String("component", "state_diff_emitter")),
	}
}

// Emit re-evaluates each hash in orderHashes, in order, and delivers the new
// state to the subscriber only on change. It stops immediately (without
// processing remaining hashes) if the subscription is torn down mid-batch,
// or if an evaluator call fails; a non-nil return wraps domain.ErrTransientChain
// and is the caller's (the Watcher's) cue to notify the subscriber and
// unsubscribe per spec §7's policy for TransientChainError.
func (e *Emitter) Emit(ctx context.Context, orderHashes []common.Hash) error {
	for _, h := range orderHashes {
		sub := e.subscriber()
		if sub == nil {
			return nil
		}

		order, ok := e.lookupOrder(h)
		if !ok {
			continue
		}

		state, err := e.evaluator.Evaluate(ctx, order, e.reader)
		if err != nil {
			e.logger.ErrorContext(ctx, "evaluator call failed",
				slog.String("order_hash", h.Hex()),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%w: %v", domain.ErrTransientChain, err)
		}

		e.mu.Lock()
		prev, existed := e.memo[h]
		changed := !existed || prev != state
		if changed {
			e.memo[h] = state
		}
		e.mu.Unlock()

		if !changed {
			continue
		}

		if sub := e.subscriber(); sub != nil {
			stateCopy := state
			sub(nil, &stateCopy)
		}
	}
	return nil
}

// Purge removes h's memo entry. Called by the watcher on removeOrder so a
// later re-add starts without a stale last-emitted state.
func (e *Emitter) Purge(h common.Hash) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.memo, h)
}

// LastEmitted returns the memoized state for h, for tests.
func (e *Emitter) LastEmitted(h common.Hash) (domain.OrderState, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.memo[h]
	return s, ok
}
