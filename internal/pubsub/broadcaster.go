package pubsub

import "context"

// Broadcaster fans newly indexed tips out to live subscribers. Publish
// failures are never fatal to ingestion: subscribers catch up from the
// query API.
type Broadcaster interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Health(ctx context.Context) error
}

// Noop is used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, string, interface{}) error { return nil }
func (Noop) Health(context.Context) error                       { return nil }
