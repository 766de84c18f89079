// Package statecache implements the LazyStateCache described in spec §3/§4.1:
// a read-through, lazily-populated cache over four on-chain accessors
// (balance, allowance, filled amount, cancelled amount), invalidated
// point-wise by the event dispatcher and bulk-cleared on unsubscribe.
package statecache

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

type balanceKey struct {
	token common.Address
	owner common.Address
}

type allowanceKey struct {
	token common.Address
	owner common.Address
}

// LazyStateCache is the single writer of its own four maps. It is owned by
// exactly one Watcher instance; concurrent watchers on the same chain
// provider must each construct their own cache.
type LazyStateCache struct {
	mu     sync.Mutex
	reader domain.ChainReader
	// spender is the token-transfer-proxy address passed as the spender
	// argument to every allowance read; it is fixed at construction because
	// the cached allowance entry is keyed on (token, owner) only, per spec §3.
	spender common.Address

	balances   map[balanceKey]decimal.Decimal
	allowances map[allowanceKey]decimal.Decimal
	filled     map[common.Hash]decimal.Decimal
	cancelled  map[common.Hash]decimal.Decimal
}

// New creates a LazyStateCache that reads through to reader on a miss, using
// spender as the allowance proxy address for every GetAllowance call.
func New(reader domain.ChainReader, spender common.Address) *LazyStateCache {
	return &LazyStateCache{
		reader:     reader,
		spender:    spender,
		balances:   make(map[balanceKey]decimal.Decimal),
		allowances: make(map[allowanceKey]decimal.Decimal),
		filled:     make(map[common.Hash]decimal.Decimal),
		cancelled:  make(map[common.Hash]decimal.Decimal),
	}
}

// GetBalance returns the memoized balance for (token, owner), fetching and
// memoizing it from the chain reader on a miss.
func (c *LazyStateCache) GetBalance(ctx context.Context, token, owner common.Address) (decimal.Decimal, error) {
	key := balanceKey{token: token, owner: owner}

	c.mu.Lock()
	if v, ok := c.balances[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.reader.GetBalance(ctx, token, owner)
	if err != nil {
		return decimal.Decimal{}, err
	}

	c.mu.Lock()
	c.balances[key] = v
	c.mu.Unlock()
	return v, nil
}

// GetAllowance returns the memoized allowance for (token, owner) against the
// cache's configured spender, fetching and memoizing it on a miss. The
// spender argument is accepted for interface conformance with
// domain.ChainReader but ignored in favor of the cache's fixed proxy address,
// matching the single-spender semantics of the cached (token, owner) key.
func (c *LazyStateCache) GetAllowance(ctx context.Context, token, owner, _ common.Address) (decimal.Decimal, error) {
	key := allowanceKey{token: token, owner: owner}

	c.mu.Lock()
	if v, ok := c.allowances[key]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.reader.GetAllowance(ctx, token, owner, c.spender)
	if err != nil {
		return decimal.Decimal{}, err
	}

	c.mu.Lock()
	c.allowances[key] = v
	c.mu.Unlock()
	return v, nil
}

// GetFilled returns the memoized filled amount for orderHash.
func (c *LazyStateCache) GetFilled(ctx context.Context, orderHash common.Hash) (decimal.Decimal, error) {
	c.mu.Lock()
	if v, ok := c.filled[orderHash]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.reader.GetFilled(ctx, orderHash)
	if err != nil {
		return decimal.Decimal{}, err
	}

	c.mu.Lock()
	c.filled[orderHash] = v
	c.mu.Unlock()
	return v, nil
}

// GetCancelled returns the memoized cancelled amount for orderHash.
func (c *LazyStateCache) GetCancelled(ctx context.Context, orderHash common.Hash) (decimal.Decimal, error) {
	c.mu.Lock()
	if v, ok := c.cancelled[orderHash]; ok {
		c.mu.Unlock()
		return v, nil
	}
	c.mu.Unlock()

	v, err := c.reader.GetCancelled(ctx, orderHash)
	if err != nil {
		return decimal.Decimal{}, err
	}

	c.mu.Lock()
	c.cancelled[orderHash] = v
	c.mu.Unlock()
	return v, nil
}

// GetZRXTokenAddress delegates straight through; the ZRX address is fixed
// for the lifetime of a chain deployment and the underlying reader is
// expected to cache it itself.
func (c *LazyStateCache) GetZRXTokenAddress(ctx context.Context) (common.Address, error) {
	return c.reader.GetZRXTokenAddress(ctx)
}

// DeleteBalance invalidates the (token, owner) balance entry, if present.
func (c *LazyStateCache) DeleteBalance(token, owner common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.balances, balanceKey{token: token, owner: owner})
}

// DeleteAllowance invalidates the (token, owner) allowance entry, if present.
func (c *LazyStateCache) DeleteAllowance(token, owner common.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.allowances, allowanceKey{token: token, owner: owner})
}

// DeleteFilled invalidates the filled-amount entry for orderHash.
func (c *LazyStateCache) DeleteFilled(orderHash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.filled, orderHash)
}

// DeleteCancelled invalidates the cancelled-amount entry for orderHash.
func (c *LazyStateCache) DeleteCancelled(orderHash common.Hash) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.cancelled, orderHash)
}

// DeleteAll discards every entry in all four stores in O(size).
func (c *LazyStateCache) DeleteAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.balances = make(map[balanceKey]decimal.Decimal)
	c.allowances = make(map[allowanceKey]decimal.Decimal)
	c.filled = make(map[common.Hash]decimal.Decimal)
	c.cancelled = make(map[common.Hash]decimal.Decimal)
}

// Sizes returns the entry count of each of the four stores, for tests that
// assert the post-unsubscribe "C is empty" invariant (spec §8).
func (c *LazyStateCache) Sizes() (balances, allowances, filled, cancelled int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.balances), len(c.allowances), len(c.filled), len(c.cancelled)
}

var _ domain.ChainReader = (*LazyStateCache)(nil)
