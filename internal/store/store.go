package store

import (
	"context"

	"tipstream/internal/domain"
)

// EventStore is the append-only, insertion-ordered tip event log.
// Append is atomic per batch: readers never observe a partial batch.
// Records are never mutated or deleted.
type EventStore interface {
	Append(ctx context.Context, events []domain.TipEvent) error
	// ReadAll returns a snapshot in insertion order. Safe to call
	// concurrently with Append.
	ReadAll(ctx context.Context) ([]domain.TipEvent, error)
	Len() int
	Close() error
}
