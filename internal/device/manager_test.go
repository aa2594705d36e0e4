package device

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"
)

func TestManager_RespectsWorkerLimit(t *testing.T) {
	keys := make([]string, 20)
	for i := range keys {
		keys[i] = fmt.Sprintf("entry-%02d", i)
	}

	var inFlight, peak int32
	m := NewManager[int](WithWorkerLimit[int](6))
	results := m.Run(context.Background(), keys, func(ctx context.Context, key string) (int, error) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			p := atomic.LoadInt32(&peak)
			if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		return len(key), nil
	})

	if len(results) != len(keys) {
		t.Fatalf("got %d results, want %d", len(results), len(keys))
	}
	if peak > 6 {
		t.Errorf("peak concurrency = %d, want <= 6", peak)
	}
	for i, r := range results {
		if r.Key != keys[i] {
			t.Errorf("results[%d].Key = %q, want %q (input order)", i, r.Key, keys[i])
		}
	}
}

func TestManager_FailuresDoNotStopSiblings(t *testing.T) {
	keys := []string{"a", "b", "c", "d"}
	var hooked int32
	m := NewManager[string](
		WithWorkerLimit[string](2),
		WithResultHook[string](func(Result[string]) { atomic.AddInt32(&hooked, 1) }),
	)

	results := m.Run(context.Background(), keys, func(ctx context.Context, key string) (string, error) {
		if key == "b" {
			return "", fmt.Errorf("push %s failed", key)
		}
		return key, nil
	})

	var failed int
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if len(results) != 4 || failed != 1 {
		t.Errorf("results = %d, failed = %d; want 4 and 1", len(results), failed)
	}
	if hooked != 4 {
		t.Errorf("result hook called %d times, want 4", hooked)
	}
}

func TestManager_Empty(t *testing.T) {
	m := NewManager[int]()
	if got := m.Run(context.Background(), nil, nil); len(got) != 0 {
		t.Errorf("Run(nil) = %v, want empty", got)
	}
	if m.WorkerLimit() <= 0 {
		t.Errorf("default WorkerLimit = %d", m.WorkerLimit())
	}
}
