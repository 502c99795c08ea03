package dedupe

import "context"

// Deduper tracks event ids across at-least-once webhook redeliveries.
// The key is domain.MakeEventID (tx hash + tip id).
type Deduper interface {
	// Seen records id and reports whether it was already recorded.
	// alreadySeen=true means the event can be skipped.
	Seen(ctx context.Context, id string) (alreadySeen bool, err error)
	Health(ctx context.Context) error
}

// Noop never reports a duplicate. Used when dedupe is disabled: the
// store stays append-only and redelivered events are simply indexed
// twice, which the upstream contract allows.
type Noop struct{}

func (Noop) Seen(context.Context, string) (bool, error) { return false, nil }
func (Noop) Health(context.Context) error               { return nil }
