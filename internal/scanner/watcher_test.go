package scanner

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestWatcher(t *testing.T, root string, fired chan<- struct{}) *Watcher {
	t.Helper()
	w, err := NewWatcher(WatcherOptions{
		Roots:    []string{root},
		Debounce: 50 * time.Millisecond,
		Logger:   discard,
		OnChange: func() { fired <- struct{}{} },
	})
	if err != nil {
		t.Fatalf("new watcher: %v", err)
	}
	return w
}

func waitFired(t *testing.T, fired <-chan struct{}) {
	t.Helper()
	select {
	case <-fired:
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for change callback")
	}
}

func TestWatcherCoalescesBurst(t *testing.T) {
	root := t.TempDir()
	fired := make(chan struct{}, 16)
	w := newTestWatcher(t, root, fired)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	for i := 0; i < 5; i++ {
		writeFile(t, root, fmt.Sprintf("burst%d.mp3", i))
	}
	waitFired(t, fired)

	calls := 1
	settle := time.After(300 * time.Millisecond)
drain:
	for {
		select {
		case <-fired:
			calls++
		case <-settle:
			break drain
		}
	}
	if calls >= 5 {
		t.Fatalf("burst of 5 writes produced %d callbacks", calls)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("run returned %v", err)
	}
}

func TestWatcherFollowsNewDirectories(t *testing.T) {
	root := t.TempDir()
	fired := make(chan struct{}, 16)
	w := newTestWatcher(t, root, fired)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = w.Run(ctx) }()

	sub := filepath.Join(root, "albums")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	// The mkdir fires once on its own; the new directory is registered
	// before that callback can arrive.
	waitFired(t, fired)

	writeFile(t, sub, "deep.mp3")
	waitFired(t, fired)
}
