package store

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/domain"
)

// JSONLStore persists the event log as one JSON record per line,
// appended with O_APPEND and fsynced per batch. The whole log is kept
// in memory as well; the file exists so the log survives restarts.
//
// This replaces the load-all/push/write-all file pattern: appends are
// serialized behind a mutex and each batch is written as a single
// contiguous chunk, so concurrent webhook deliveries cannot lose
// records and a crash mid-write costs at most the in-flight batch.
type JSONLStore struct {
	log  logger.Logger
	path string

	mu     sync.RWMutex
	file   *os.File
	events []domain.TipEvent
}

// OpenJSONL opens (or creates) the log at path. A missing file starts an
// empty store; unreadable or corrupt lines are skipped with a warning,
// never fatal to boot.
func OpenJSONL(log logger.Logger, path string) (*JSONLStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}

	s := &JSONLStore{log: log, path: path, file: f}
	s.events = s.load(f)
	return s, nil
}

func (s *JSONLStore) load(f *os.File) []domain.TipEvent {
	var (
		events  []domain.TipEvent
		skipped int
	)

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		var ev domain.TipEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			skipped++
			continue
		}
		events = append(events, ev)
	}
	if err := sc.Err(); err != nil {
		// Fall back to whatever was readable rather than refusing to boot.
		s.log.Errorf("Event log %s partially unreadable: %v (loaded %d events)", s.path, err, len(events))
	}
	if skipped > 0 {
		s.log.Warnf("Event log %s: skipped %d corrupt lines", s.path, skipped)
	}

	return events
}

// Append writes the whole batch as one contiguous chunk and fsyncs
// before publishing it to readers. On error nothing is published.
func (s *JSONLStore) Append(ctx context.Context, events []domain.TipEvent) error {
	if len(events) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	for i := range events {
		line, err := json.Marshal(&events[i])
		if err != nil {
			return fmt.Errorf("marshal tip event: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return fmt.Errorf("event log %s is closed", s.path)
	}
	if _, err := s.file.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("append event log: %w", err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("sync event log: %w", err)
	}

	s.events = append(s.events, events...)
	return nil
}

// ReadAll returns a copy of the log in insertion order.
func (s *JSONLStore) ReadAll(ctx context.Context) ([]domain.TipEvent, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]domain.TipEvent, len(s.events))
	copy(out, s.events)
	return out, nil
}

func (s *JSONLStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

func (s *JSONLStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	err := s.file.Close()
	s.file = nil
	return err
}
