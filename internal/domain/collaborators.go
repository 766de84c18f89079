package domain

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// ChainReader is the read-only on-chain accessor the watcher's cache reads
// through on a miss. All reads are performed at the client's configured
// state layer (latest, finalized, a specific height, ...).
type ChainReader interface {
	GetBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error)
	GetAllowance(ctx context.Context, token, owner, spender common.Address) (decimal.Decimal, error)
	GetFilled(ctx context.Context, orderHash common.Hash) (decimal.Decimal, error)
	GetCancelled(ctx context.Context, orderHash common.Hash) (decimal.Decimal, error)
	GetZRXTokenAddress(ctx context.Context) (common.Address, error)
}

// EventSource delivers decoded chain logs (or a terminal transport error) to
// a single registered listener. Implementations drive their own polling or
// push-subscription loop and must keep delivering until Unlisten is called.
type EventSource interface {
	// Listen registers the callback invoked for every log and terminal
	// error. Only one listener may be registered at a time.
	Listen(onLog func(DecodedLog), onError func(error))
	// Unlisten detaches the current listener and stops delivery.
	Unlisten()
}

// Evaluator derives a SignedOrder's current OrderState from the accessors
// exposed by the cache-backed ChainReader. It must be pure with respect to
// the snapshot of values it observes during one call.
type Evaluator interface {
	Evaluate(ctx context.Context, order SignedOrder, reader ChainReader) (OrderState, error)
}

// Subscriber is the single callback a Watcher delivers state changes and
// fatal errors to. Exactly one of err/state is non-nil on each call.
type Subscriber func(err error, state *OrderState)

// OrderValidator performs the hash and signature checks addOrder
// runs before admitting a SignedOrder into the watched set. Hash recomputes
// the canonical order hash from the order's trade fields; Verify checks a
// signature against a hash and the claimed signer.
type OrderValidator interface {
	Hash(order SignedOrder) common.Hash
	Verify(hash common.Hash, signature []byte, signer common.Address) bool
}
