package dedupe

import (
	"context"
	"sync"
	"testing"
	"time"

	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{Level: "error", Format: "json"})
}

func TestMemory_FirstSeenThenDuplicate(t *testing.T) {
	t.Parallel()

	m := NewMemory(newTestLogger(), 200*time.Millisecond, 0)
	defer m.Close()

	ctx := context.Background()
	const id = "0xabc:5"

	seen, err := m.Seen(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen {
		t.Fatalf("expected first Seen=false, got true")
	}

	seen, err = m.Seen(ctx, id)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !seen {
		t.Fatalf("expected second Seen=true (duplicate), got false")
	}
}

func TestMemory_Expiration(t *testing.T) {
	t.Parallel()

	ttl := 50 * time.Millisecond
	m := NewMemory(newTestLogger(), ttl, 0)
	defer m.Close()

	ctx := context.Background()
	const id = "0xdef:7"

	if seen, _ := m.Seen(ctx, id); seen {
		t.Fatalf("first Seen must be false")
	}

	time.Sleep(ttl + 20*time.Millisecond)

	if seen, _ := m.Seen(ctx, id); seen {
		t.Fatalf("after TTL expiry Seen must be false again")
	}
}

func TestMemory_JanitorCleansUp(t *testing.T) {
	t.Parallel()

	ttl := 20 * time.Millisecond
	janitorEvery := 15 * time.Millisecond
	m := NewMemory(newTestLogger(), ttl, janitorEvery)
	defer m.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, _ = m.Seen(ctx, "k-"+time.Now().String())
	}

	time.Sleep(ttl + 3*janitorEvery)

	m.mu.RLock()
	size := len(m.items)
	m.mu.RUnlock()

	if size != 0 {
		t.Fatalf("expected janitor to clean expired items, map size=%d", size)
	}
}

func TestMemory_CloseIsIdempotent(t *testing.T) {
	t.Parallel()

	m := NewMemory(newTestLogger(), 50*time.Millisecond, 10*time.Millisecond)
	m.Close()
	m.Close()
}

func TestMemory_ConcurrentSameID(t *testing.T) {
	t.Parallel()

	m := NewMemory(newTestLogger(), time.Second, 0)
	defer m.Close()

	ctx := context.Background()
	const id = "0xrace:1"
	const goroutines = 32

	var firsts int64
	var mu sync.Mutex
	var wg sync.WaitGroup

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			seen, err := m.Seen(ctx, id)
			if err != nil {
				t.Errorf("unexpected error: %v", err)
				return
			}
			if !seen {
				mu.Lock()
				firsts++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if firsts != 1 {
		t.Fatalf("exactly one goroutine must observe first-seen, got %d", firsts)
	}
}
