// Package dispatcher implements the EventDispatcher from spec §4.4: it
// classifies a decoded chain log by event kind, performs the matching
// LazyStateCache invalidations, computes the set of orders the event may
// have rendered stale, and hands that set to the StateDiffEmitter.
package dispatcher

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderwatch/internal/depindex"
	"github.com/alanyoungcy/orderwatch/internal/domain"
	"github.com/alanyoungcy/orderwatch/internal/statecache"
)

// Emit is called once per dispatched log with the candidate order hashes to
// re-evaluate, in the order required by spec §4.5 (iteration order of the
// input; one event fully drains before the next is dispatched). A non-nil
// return means an evaluator call failed mid-batch; the caller is expected
// to notify the subscriber and unsubscribe.
type Emit func(ctx context.Context, orderHashes []common.Hash) error

// Dispatcher is a total match over domain.EventKind; unrecognized and
// LogError kinds are silently ignored per the spec §4.4 table.
type Dispatcher struct {
	cache     *statecache.LazyStateCache
	index     *depindex.Index
	isWatched func(common.Hash) bool
	emit      Emit
}

// New creates a Dispatcher. isWatched reports whether an order hash is
// currently in the watched set W, used to gate LogFill/LogCancel fan-out per
// the §4.4 table. emit forwards the computed candidate set to the emitter.
func New(cache *statecache.LazyStateCache, index *depindex.Index, isWatched func(common.Hash) bool, emit Emit) *Dispatcher {
	return &Dispatcher{cache: cache, index: index, isWatched: isWatched, emit: emit}
}

// Dispatch classifies log and performs its cache invalidation plus candidate
// computation, then forwards the candidates to Emit. Cache invalidation
// happens-before the Emit call for every branch, per spec §5's ordering
// guarantee.
func (d *Dispatcher) Dispatch(ctx context.Context, log domain.DecodedLog) error {
	switch log.Kind {
	case domain.EventTokenApproval:
		return d.handleApproval(ctx, log)
	case domain.EventTokenTransfer:
		return d.handleTransfer(ctx, log)
	case domain.EventEtherDeposit, domain.EventEtherWithdrawal:
		return d.handleEtherToken(ctx, log)
	case domain.EventExchangeFill:
		return d.handleFill(ctx, log)
	case domain.EventExchangeCancel:
		return d.handleCancel(ctx, log)
	case domain.EventExchangeLogError:
		// Silently ignored per spec §4.4/§9 open question.
		return nil
	default:
		// Undecodable or unrecognized kind: ignored without error.
		return nil
	}
}

func (d *Dispatcher) handleApproval(ctx context.Context, log domain.DecodedLog) error {
	if log.Approval == nil {
		return nil
	}
	owner := log.Approval.Owner
	token := log.ContractAddress

	d.cache.DeleteAllowance(token, owner)
	return d.emit(ctx, d.index.Lookup(owner, token))
}

func (d *Dispatcher) handleTransfer(ctx context.Context, log domain.DecodedLog) error {
	if log.Transfer == nil {
		return nil
	}
	token := log.ContractAddress

	d.cache.DeleteBalance(token, log.Transfer.From)
	d.cache.DeleteBalance(token, log.Transfer.To)

	// Only the "from" side fans out to dependent orders; see spec §9's open
	// question on Transfer's asymmetric candidate computation.
	return d.emit(ctx, d.index.Lookup(log.Transfer.From, token))
}

func (d *Dispatcher) handleEtherToken(ctx context.Context, log domain.DecodedLog) error {
	if log.EtherToken == nil {
		return nil
	}
	owner := log.EtherToken.Owner
	token := log.ContractAddress

	d.cache.DeleteBalance(token, owner)
	return d.emit(ctx, d.index.Lookup(owner, token))
}

func (d *Dispatcher) handleFill(ctx context.Context, log domain.DecodedLog) error {
	if log.Fill == nil {
		return nil
	}
	hash := log.Fill.OrderHash
	d.cache.DeleteFilled(hash)
	return d.emit(ctx, d.candidateIfWatched(hash))
}

func (d *Dispatcher) handleCancel(ctx context.Context, log domain.DecodedLog) error {
	if log.Cancel == nil {
		return nil
	}
	hash := log.Cancel.OrderHash
	d.cache.DeleteCancelled(hash)
	return d.emit(ctx, d.candidateIfWatched(hash))
}

func (d *Dispatcher) candidateIfWatched(hash common.Hash) []common.Hash {
	if d.isWatched(hash) {
		return []common.Hash{hash}
	}
	return nil
}
