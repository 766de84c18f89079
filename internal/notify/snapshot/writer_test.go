package snapshot

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/alanyoungcy/orderwatch/internal/domain"
)

type fakeLocker struct {
	err    error
	called bool
	key    string
}

func (f *fakeLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	f.called = true
	f.key = key
	if f.err != nil {
		return nil, f.err
	}
	return fakeLease{}, nil
}

type fakeLease struct{}

func (fakeLease) Release(ctx context.Context) {}

type fakeSource struct{}

func (fakeSource) Snapshot() []domain.SignedOrder { return nil }

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(discardWriter{}, nil))
}

// A locker reporting domain.ErrLockHeld must make uploadOnce return nil
// without ever touching the S3 client, since w.client is nil in this test.
func TestUploadOnceSkipsWhenLockHeld(t *testing.T) {
	locker := &fakeLocker{err: domain.ErrLockHeld}
	w := &Writer{source: fakeSource{}, logger: discardLogger()}
	w = w.WithLocker(locker)

	if err := w.uploadOnce(context.Background()); err != nil {
		t.Fatalf("expected nil error when lock is held, got %v", err)
	}
	if !locker.called {
		t.Fatal("expected Acquire to be called")
	}
	if locker.key != snapshotLockKey {
		t.Fatalf("expected lock key %q, got %q", snapshotLockKey, locker.key)
	}
}

func TestUploadOnceWrapsAcquireError(t *testing.T) {
	wantErr := errors.New("redis down")
	locker := &fakeLocker{err: wantErr}
	w := &Writer{source: fakeSource{}, logger: discardLogger()}
	w = w.WithLocker(locker)

	err := w.uploadOnce(context.Background())
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped acquire error, got %v", err)
	}
}

func TestWithLockerIsNilSafe(t *testing.T) {
	w := (&Writer{source: fakeSource{}, logger: discardLogger()}).WithLocker(nil)
	if w.locker != nil {
		t.Fatal("expected locker to remain nil")
	}
}
