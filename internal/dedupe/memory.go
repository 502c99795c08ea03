package dedupe

import (
	"context"
	"sync"
	"time"

	"gitlab.com/nevasik7/alerting/logger"
)

type memEntry struct {
	expireAt int64 // unix nano
}

// Memory is a single-instance TTL dedupe map. Good enough for one
// indexer process; use the Redis deduper when running more than one.
type Memory struct {
	log     logger.Logger
	ttl     time.Duration
	mu      sync.RWMutex
	items   map[string]memEntry
	stopCh  chan struct{}
	stopped bool
}

// NewMemory builds the map; janitorEvery <= 0 disables the background
// sweep (expired keys are then only replaced lazily on re-insert).
func NewMemory(log logger.Logger, ttl, janitorEvery time.Duration) *Memory {
	m := &Memory{
		log:    log,
		ttl:    ttl,
		items:  make(map[string]memEntry, 1024),
		stopCh: make(chan struct{}),
	}

	if janitorEvery > 0 {
		go m.janitor(janitorEvery)
	}

	return m
}

func (m *Memory) Seen(_ context.Context, id string) (bool, error) {
	now := time.Now().UnixNano()
	exp := now + m.ttl.Nanoseconds()

	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.items[id]; ok && e.expireAt > now {
		return true, nil
	}

	m.items[id] = memEntry{expireAt: exp}
	return false, nil
}

func (m *Memory) Health(context.Context) error { return nil }

func (m *Memory) janitor(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-t.C:
			now := time.Now().UnixNano()
			m.mu.Lock()
			for k, e := range m.items {
				if e.expireAt <= now {
					delete(m.items, k)
				}
			}
			m.mu.Unlock()
		}
	}
}

// Close stops the janitor, if one is running. Idempotent.
func (m *Memory) Close() {
	m.mu.Lock()
	if !m.stopped {
		close(m.stopCh)
		m.stopped = true
	}
	m.mu.Unlock()
}
