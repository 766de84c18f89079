// Package depindex implements the DependencyIndex from spec §3/§4.2: a
// two-level (maker address -> token address -> set of order hashes) map
// used to answer "which watched orders depend on this (owner, token) pair?"
// in expected constant time.
package depindex

import (
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Index is owned by exactly one Watcher and is never exposed outside it.
type Index struct {
	mu sync.Mutex
	m  map[common.Address]map[common.Address]map[common.Hash]struct{}
}

// New creates an empty Index.
func New() *Index {
	return &Index{m: make(map[common.Address]map[common.Address]map[common.Hash]struct{})}
}

// Add records that orderHash depends on the (maker, token) pair. Empty
// containers are created on demand.
func (idx *Index) Add(maker, token common.Address, orderHash common.Hash) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	byToken, ok := idx.m[maker]
	if !ok {
		byToken = make(map[common.Address]map[common.Hash]struct{})
		idx.m[maker] = byToken
	}
	hashes, ok := byToken[token]
	if !ok {
		hashes = make(map[common.Hash]struct{})
		byToken[token] = hashes
	}
	hashes[orderHash] = struct{}{}
}

// Remove drops orderHash from the (maker, token) pair's set, pruning the
// inner set and outer map entries when they become empty.
func (idx *Index) Remove(maker, token common.Address, orderHash common.Hash) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	byToken, ok := idx.m[maker]
	if !ok {
		return
	}
	hashes, ok := byToken[token]
	if !ok {
		return
	}
	delete(hashes, orderHash)
	if len(hashes) == 0 {
		delete(byToken, token)
	}
	if len(byToken) == 0 {
		delete(idx.m, maker)
	}
}

// Lookup returns a snapshot slice of order hashes depending on (maker,
// token). The returned slice is safe to range over after further mutation
// of the index.
func (idx *Index) Lookup(maker, token common.Address) []common.Hash {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	byToken, ok := idx.m[maker]
	if !ok {
		return nil
	}
	hashes, ok := byToken[token]
	if !ok {
		return nil
	}
	out := make([]common.Hash, 0, len(hashes))
	for h := range hashes {
		out = append(out, h)
	}
	return out
}

// Has reports whether orderHash is indexed under (maker, token), used by
// tests to assert the invariants of spec §8.
func (idx *Index) Has(maker, token common.Address, orderHash common.Hash) bool {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	byToken, ok := idx.m[maker]
	if !ok {
		return false
	}
	hashes, ok := byToken[token]
	if !ok {
		return false
	}
	_, ok = hashes[orderHash]
	return ok
}

// AllHashes returns every order hash currently referenced anywhere in the
// index, deduplicated. Used by tests to check "every hash in D is in W".
func (idx *Index) AllHashes() []common.Hash {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	seen := make(map[common.Hash]struct{})
	for _, byToken := range idx.m {
		for _, hashes := range byToken {
			for h := range hashes {
				seen[h] = struct{}{}
			}
		}
	}
	out := make([]common.Hash, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	return out
}
