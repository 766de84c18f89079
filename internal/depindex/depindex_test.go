package depindex

import (
	"sort"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func hashesEqual(t *testing.T, got []common.Hash, want ...common.Hash) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d hashes, want %d (%v vs %v)", len(got), len(want), got, want)
	}
	sort.Slice(got, func(i, j int) bool { return got[i].Hex() < got[j].Hex() })
	sort.Slice(want, func(i, j int) bool { return want[i].Hex() < want[j].Hex() })
	for i := range got {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestAddAndLookup(t *testing.T) {
	idx := New()
	maker := common.HexToAddress("0x1")
	token := common.HexToAddress("0x2")
	h1 := common.HexToHash("0xaaa")
	h2 := common.HexToHash("0xbbb")

	idx.Add(maker, token, h1)
	idx.Add(maker, token, h2)

	hashesEqual(t, idx.Lookup(maker, token), h1, h2)
	if !idx.Has(maker, token, h1) {
		t.Fatal("expected h1 to be indexed")
	}
}

func TestLookupUnknownPairReturnsNil(t *testing.T) {
	idx := New()
	if got := idx.Lookup(common.HexToAddress("0x1"), common.HexToAddress("0x2")); got != nil {
		t.Fatalf("expected nil, got %v", got)
	}
}

func TestRemovePrunesEmptyContainers(t *testing.T) {
	idx := New()
	maker := common.HexToAddress("0x1")
	token := common.HexToAddress("0x2")
	h1 := common.HexToHash("0xaaa")

	idx.Add(maker, token, h1)
	idx.Remove(maker, token, h1)

	if idx.Has(maker, token, h1) {
		t.Fatal("expected h1 removed")
	}
	if len(idx.AllHashes()) != 0 {
		t.Fatalf("expected empty index after pruning, got %v", idx.AllHashes())
	}
}

func TestRemoveUnknownIsNoop(t *testing.T) {
	idx := New()
	idx.Remove(common.HexToAddress("0x1"), common.HexToAddress("0x2"), common.HexToHash("0xaaa"))
}

func TestAllHashesDeduplicatesAcrossTokens(t *testing.T) {
	idx := New()
	maker := common.HexToAddress("0x1")
	tokenA := common.HexToAddress("0x2")
	tokenB := common.HexToAddress("0x3")
	h1 := common.HexToHash("0xaaa")

	idx.Add(maker, tokenA, h1)
	idx.Add(maker, tokenB, h1)

	hashesEqual(t, idx.AllHashes(), h1)
}
