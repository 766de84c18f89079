package expqueue

import (
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

func TestAddAndTickFiresInChronologicalOrder(t *testing.T) {
	q := New(5*time.Millisecond, 0)
	base := time.UnixMilli(1_000_000)
	q.now = func() time.Time { return base }

	h1 := common.HexToHash("0x1")
	h2 := common.HexToHash("0x2")
	h3 := common.HexToHash("0x3")

	q.Add(h2, base.UnixMilli()+20)
	q.Add(h1, base.UnixMilli()+10)
	q.Add(h3, base.UnixMilli()+30)

	q.now = func() time.Time { return base.Add(100 * time.Millisecond) }

	var mu sync.Mutex
	var fired []common.Hash
	q.sink = func(h common.Hash) {
		mu.Lock()
		fired = append(fired, h)
		mu.Unlock()
	}
	q.tick()

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 3 {
		t.Fatalf("expected 3 fires, got %d", len(fired))
	}
	if fired[0] != h1 || fired[1] != h2 || fired[2] != h3 {
		t.Fatalf("expected chronological order h1,h2,h3, got %v", fired)
	}
}

func TestRemoveBeforeExpirationPreventsFiring(t *testing.T) {
	q := New(5*time.Millisecond, 0)
	base := time.UnixMilli(1_000_000)
	q.now = func() time.Time { return base }

	h1 := common.HexToHash("0x1")
	q.Add(h1, base.UnixMilli()+10)
	q.Remove(h1)

	q.now = func() time.Time { return base.Add(time.Second) }
	fired := false
	q.sink = func(common.Hash) { fired = true }
	q.tick()

	if fired {
		t.Fatal("expected no fire after Remove")
	}
	if q.Len() != 0 {
		t.Fatalf("expected empty queue, got len %d", q.Len())
	}
}

func TestAddReplacesExistingExpiration(t *testing.T) {
	q := New(5*time.Millisecond, 0)
	base := time.UnixMilli(1_000_000)
	q.now = func() time.Time { return base }

	h1 := common.HexToHash("0x1")
	q.Add(h1, base.UnixMilli()+10)
	q.Add(h1, base.UnixMilli()+1000)

	if q.Len() != 1 {
		t.Fatalf("expected single entry after re-Add, got %d", q.Len())
	}

	q.now = func() time.Time { return base.Add(20 * time.Millisecond) }
	fired := false
	q.sink = func(common.Hash) { fired = true }
	q.tick()
	if fired {
		t.Fatal("expected no fire, expiration was pushed out")
	}
}

func TestSafetyMarginFiresEarly(t *testing.T) {
	q := New(5*time.Millisecond, 50*time.Millisecond)
	base := time.UnixMilli(1_000_000)
	q.now = func() time.Time { return base }

	h1 := common.HexToHash("0x1")
	q.Add(h1, base.UnixMilli()+40)

	var fired bool
	q.sink = func(common.Hash) { fired = true }
	q.tick()

	if !fired {
		t.Fatal("expected the safety margin to cause an immediate fire")
	}
}

func TestStartAndStopIsClean(t *testing.T) {
	q := New(time.Millisecond, 0)
	done := make(chan common.Hash, 1)
	q.Start(func(h common.Hash) { done <- h })

	h1 := common.HexToHash("0x1")
	q.Add(h1, time.Now().Add(-time.Second).UnixMilli())

	select {
	case got := <-done:
		if got != h1 {
			t.Fatalf("got %v, want %v", got, h1)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for expiration fire")
	}

	q.Stop()
}
