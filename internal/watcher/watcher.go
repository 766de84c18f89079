// Package watcher implements the Watcher facade from spec §4.6: the
// Idle/Running state machine that owns order lifecycle, subscription
// lifecycle, the periodic cleanup sweep, and uniform error-to-subscriber
// propagation, wiring together the cache, dependency index, expiration
// queue, dispatcher, and emitter into a single long-running component.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/orderwatch/internal/depindex"
	"github.com/alanyoungcy/orderwatch/internal/dispatcher"
	"github.com/alanyoungcy/orderwatch/internal/domain"
	"github.com/alanyoungcy/orderwatch/internal/emitter"
	"github.com/alanyoungcy/orderwatch/internal/expqueue"
	"github.com/alanyoungcy/orderwatch/internal/statecache"
)

type lifecycle int

const (
	lifecycleIdle lifecycle = iota
	lifecycleRunning
)

// Watcher is the only exported entry point of this module. It is safe for
// concurrent use: AddOrder/RemoveOrder/Subscribe/Unsubscribe may be called
// from any goroutine, and the event source, expiration queue, and cleanup
// timer drive the same mutation path from their own goroutines.
type Watcher struct {
	logger *slog.Logger
	opts   domain.Options

	source    domain.EventSource
	validator domain.OrderValidator
	cache     *statecache.LazyStateCache
	index     *depindex.Index
	queue     *expqueue.Queue
	dispatch  *dispatcher.Dispatcher
	emit      *emitter.Emitter

	mu          sync.Mutex
	state       lifecycle
	subscriber  domain.Subscriber
	watched     map[common.Hash]domain.SignedOrder
	zrx         common.Address
	zrxLoaded   bool
	cleanupStop chan struct{}
	cleanupDone chan struct{}
	cleanupBusy bool
}

// New builds a Watcher. transferProxy is the on-chain spender address used
// for every allowance read (the exchange's token-transfer proxy); it is
// fixed per deployment, unlike the per-call state layer, so it is supplied
// directly rather than through Options. opts is normalized with
// WithDefaults before use.
func New(
	reader domain.ChainReader,
	source domain.EventSource,
	evaluator domain.Evaluator,
	validator domain.OrderValidator,
	transferProxy common.Address,
	opts domain.Options,
	logger *slog.Logger,
) *Watcher {
	opts = opts.WithDefaults()
	logger = logger.With(slog.String("component", "watcher"))

	w := &Watcher{
		logger:    logger,
		opts:      opts,
		source:    source,
		validator: validator,
		cache:     statecache.New(reader, transferProxy),
		index:     depindex.New(),
		queue:     expqueue.New(opts.ExpirationCheckInterval(), opts.ExpirationMargin()),
		watched:   make(map[common.Hash]domain.SignedOrder),
	}
	w.emit = emitter.New(evaluator, w.cache, w.lookupOrder, w.currentSubscriber, logger)
	w.dispatch = dispatcher.New(w.cache, w.index, w.isWatched, w.emit.Emit)
	return w
}

func (w *Watcher) lookupOrder(h common.Hash) (domain.SignedOrder, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	o, ok := w.watched[h]
	return o, ok
}

func (w *Watcher) isWatched(h common.Hash) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.watched[h]
	return ok
}

func (w *Watcher) currentSubscriber() domain.Subscriber {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.subscriber
}

// Subscribe attaches callback as the watcher's single subscriber, starts
// the event source listener, the expiration queue timer, and the periodic
// cleanup sweep. It fails with domain.ErrSubscriptionAlreadyPresent if a
// subscriber is already attached.
func (w *Watcher) Subscribe(callback domain.Subscriber) error {
	w.mu.Lock()
	if w.state == lifecycleRunning {
		w.mu.Unlock()
		return domain.ErrSubscriptionAlreadyPresent
	}
	w.subscriber = callback
	w.state = lifecycleRunning
	w.mu.Unlock()

	w.source.Listen(w.onLog, w.onSourceError)
	w.queue.Start(w.onExpired)
	w.startCleanup()
	return nil
}

// Unsubscribe detaches the subscriber, stops the event source listener, the
// expiration timer, and the cleanup sweep, and discards the state cache. W,
// D, M, and the expiration queue contents are retained so a later Subscribe
// resumes the same watched set. It fails with domain.ErrSubscriptionNotFound
// if no subscriber is attached.
func (w *Watcher) Unsubscribe() error {
	w.mu.Lock()
	if w.state == lifecycleIdle {
		w.mu.Unlock()
		return domain.ErrSubscriptionNotFound
	}
	w.state = lifecycleIdle
	w.subscriber = nil
	w.mu.Unlock()

	w.teardownResources()
	return nil
}

// teardownResources stops every background task and discards the cache. It
// does not touch the lifecycle/subscriber fields, which callers set before
// invoking it (Unsubscribe directly; failSubscription after snapshotting
// the subscriber to notify).
func (w *Watcher) teardownResources() {
	w.source.Unlisten()
	w.queue.Stop()
	w.stopCleanup()
	w.cache.DeleteAll()
}

// failSubscription tears the subscription down and, if one was active,
// delivers err to the subscriber via (err, nil) after teardown completes,
// per spec §6's "the watcher is already unsubscribed" guarantee.
func (w *Watcher) failSubscription(err error) {
	w.mu.Lock()
	if w.state == lifecycleIdle {
		w.mu.Unlock()
		return
	}
	sub := w.subscriber
	w.state = lifecycleIdle
	w.subscriber = nil
	w.mu.Unlock()

	w.logger.Error("subscription torn down after failure", slog.String("error", err.Error()))
	w.teardownResources()

	if sub != nil {
		sub(err, nil)
	}
}

// AddOrder recomputes order's hash (via the configured OrderValidator) and
// verifies its signature against maker; no separate check of the order's
// field schema is made. On
// success it inserts order into the watched set, the dependency index
// (under both makerToken and ZRX), and the expiration queue. Re-adding an
// already-watched hash is idempotent on the watched set but refreshes its
// index entries and expiration timestamp.
func (w *Watcher) AddOrder(ctx context.Context, order domain.SignedOrder) error {
	hash := w.validator.Hash(order)
	if hash != order.OrderHash {
		return fmt.Errorf("%w: order hash mismatch", domain.ErrValidationFailed)
	}
	if !w.validator.Verify(hash, order.Signature, order.Maker) {
		return fmt.Errorf("%w: signature verification failed", domain.ErrValidationFailed)
	}

	zrx, err := w.zrxAddress(ctx)
	if err != nil {
		return fmt.Errorf("%w: resolving ZRX token address: %v", domain.ErrTransientChain, err)
	}

	w.mu.Lock()
	w.watched[hash] = order
	w.mu.Unlock()

	w.index.Add(order.Maker, order.MakerTokenAddress, hash)
	if order.MakerTokenAddress != zrx {
		w.index.Add(order.Maker, zrx, hash)
	}
	w.queue.Add(hash, order.ExpirationMs())
	return nil
}

// RemoveOrder drops orderHash from the watched set, the emitted-state memo,
// the dependency index, and the expiration queue. It is a no-op if
// orderHash is not currently watched.
func (w *Watcher) RemoveOrder(orderHash common.Hash) {
	w.mu.Lock()
	order, ok := w.watched[orderHash]
	w.mu.Unlock()
	if !ok {
		return
	}
	w.discard(order, orderHash)
}

// discard removes every trace of orderHash from W, M, D, and the
// expiration queue. The caller is responsible for having already confirmed
// orderHash was present in W.
func (w *Watcher) discard(order domain.SignedOrder, orderHash common.Hash) {
	w.mu.Lock()
	delete(w.watched, orderHash)
	w.mu.Unlock()

	w.emit.Purge(orderHash)

	zrx, loaded := w.loadedZRX()
	w.index.Remove(order.Maker, order.MakerTokenAddress, orderHash)
	if loaded && order.MakerTokenAddress != zrx {
		w.index.Remove(order.Maker, zrx, orderHash)
	}
	w.queue.Remove(orderHash)
}

func (w *Watcher) loadedZRX() (common.Address, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.zrx, w.zrxLoaded
}

func (w *Watcher) zrxAddress(ctx context.Context) (common.Address, error) {
	if addr, ok := w.loadedZRX(); ok {
		return addr, nil
	}
	addr, err := w.cache.GetZRXTokenAddress(ctx)
	if err != nil {
		return common.Address{}, err
	}
	w.mu.Lock()
	w.zrx = addr
	w.zrxLoaded = true
	w.mu.Unlock()
	return addr, nil
}

// onLog is the event source's log callback. A dispatch failure (wrapping
// domain.ErrTransientChain from a failed evaluator call mid-batch) tears
// the subscription down.
func (w *Watcher) onLog(log domain.DecodedLog) {
	if err := w.dispatch.Dispatch(context.Background(), log); err != nil {
		w.failSubscription(err)
	}
}

// onSourceError is the event source's terminal-error callback.
func (w *Watcher) onSourceError(err error) {
	w.failSubscription(fmt.Errorf("%w: %v", domain.ErrUpstreamEvent, err))
}

// onExpired is the expiration queue's fire callback. It bypasses the
// emitter's memo entirely: a synthetic Invalid{OrderFillExpired} state is
// delivered unconditionally, and the order is removed from every store.
func (w *Watcher) onExpired(orderHash common.Hash) {
	w.mu.Lock()
	order, ok := w.watched[orderHash]
	w.mu.Unlock()
	if !ok {
		return
	}

	w.discard(order, orderHash)

	if sub := w.currentSubscriber(); sub != nil {
		state := domain.NewInvalidState(orderHash, domain.ReasonOrderFillExpired)
		sub(nil, &state)
	}
}

func (w *Watcher) startCleanup() {
	w.mu.Lock()
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	w.cleanupStop = stopCh
	w.cleanupDone = doneCh
	w.mu.Unlock()

	go w.cleanupLoop(stopCh, doneCh)
}

func (w *Watcher) stopCleanup() {
	w.mu.Lock()
	stopCh := w.cleanupStop
	doneCh := w.cleanupDone
	w.cleanupStop = nil
	w.cleanupDone = nil
	w.mu.Unlock()

	if stopCh == nil {
		return
	}
	close(stopCh)
	<-doneCh
}

func (w *Watcher) cleanupLoop(stopCh, doneCh chan struct{}) {
	defer close(doneCh)
	ticker := time.NewTicker(w.opts.CleanupInterval())
	defer ticker.Stop()

	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
			w.runCleanupTick()
		}
	}
}

// runCleanupTick performs one full re-sweep of the watched set. Per spec
// §5's "exclude-if-running" requirement, a tick that arrives while the
// previous sweep is still in flight is dropped rather than queued.
func (w *Watcher) runCleanupTick() {
	w.mu.Lock()
	if w.cleanupBusy {
		w.mu.Unlock()
		return
	}
	w.cleanupBusy = true
	hashes := make([]common.Hash, 0, len(w.watched))
	orders := make(map[common.Hash]domain.SignedOrder, len(w.watched))
	for h, o := range w.watched {
		hashes = append(hashes, h)
		orders[h] = o
	}
	w.mu.Unlock()
	defer func() {
		w.mu.Lock()
		w.cleanupBusy = false
		w.mu.Unlock()
	}()

	ctx := context.Background()
	zrx, err := w.zrxAddress(ctx)
	if err != nil {
		w.failSubscription(fmt.Errorf("%w: cleanup resolving ZRX token address: %v", domain.ErrTransientChain, err))
		return
	}

	for _, h := range hashes {
		w.invalidateForCleanup(orders[h], zrx)
	}

	if err := w.emit.Emit(ctx, hashes); err != nil {
		w.failSubscription(err)
	}
}

// invalidateForCleanup drops every cache entry a full re-evaluation of
// order could touch: both sides' balance and allowance of both trade
// tokens, the ZRX fee pair for whichever side owes a non-zero fee, and the
// order's fill/cancel counters.
func (w *Watcher) invalidateForCleanup(order domain.SignedOrder, zrx common.Address) {
	for _, token := range [2]common.Address{order.MakerTokenAddress, order.TakerTokenAddress} {
		w.cache.DeleteBalance(token, order.Maker)
		w.cache.DeleteAllowance(token, order.Maker)
		w.cache.DeleteBalance(token, order.Taker)
		w.cache.DeleteAllowance(token, order.Taker)
	}
	if order.MakerFee.Sign() > 0 {
		w.cache.DeleteBalance(zrx, order.Maker)
		w.cache.DeleteAllowance(zrx, order.Maker)
	}
	if order.TakerFee.Sign() > 0 {
		w.cache.DeleteBalance(zrx, order.Taker)
		w.cache.DeleteAllowance(zrx, order.Taker)
	}
	w.cache.DeleteFilled(order.OrderHash)
	w.cache.DeleteCancelled(order.OrderHash)
}

// Len reports the size of the watched set, for tests and diagnostics.
func (w *Watcher) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.watched)
}

// Snapshot returns every currently watched order, for periodic archival.
func (w *Watcher) Snapshot() []domain.SignedOrder {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]domain.SignedOrder, 0, len(w.watched))
	for _, o := range w.watched {
		out = append(out, o)
	}
	return out
}
