package redis

import (
	"context"
	"testing"
)

func TestLeaseReleaseIsNilSafe(t *testing.T) {
	var l *Lease
	l.Release(context.Background()) // must not panic on a failed Acquire's result
}

func TestLockKeyPrefixIsNamespaced(t *testing.T) {
	l := &Lease{key: lockKeyPrefix + "snapshot-writer"}
	if l.key != "orderwatch:lock:snapshot-writer" {
		t.Fatalf("got %q", l.key)
	}
}
