package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/countersign/internal/services/signing/engine"
	"github.com/louisbranch/countersign/internal/services/signing/notify"
	signingsqlite "github.com/louisbranch/countersign/internal/services/signing/storage/sqlite"
)

func TestRunSweepLoopStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	store := openTempSigningStore(t)
	dispatcher, err := notify.NewOutboxDispatcher(store, nil, nil, nil)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	eng, err := engine.New(store, dispatcher, nil, engine.Config{}, nil, nil)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- runSweepLoop(ctx, eng, 10*time.Millisecond)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("sweep loop returned %v, want nil on cancellation", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("sweep loop did not stop after context cancellation")
	}
}

func openTempSigningStore(t *testing.T) *signingsqlite.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "signing.db")
	store, err := signingsqlite.Open(path)
	if err != nil {
		t.Fatalf("open signing store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close signing store: %v", err)
		}
	})
	return store
}
