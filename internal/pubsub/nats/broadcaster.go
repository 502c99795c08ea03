package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/config"
)

// Client publishes indexed tip events as JSON on
// "<prefix>.tips.indexed" plus a per-recipient subject so wallet UIs
// can subscribe to their own address only.
type Client struct {
	nc     *nats.Conn
	log    logger.Logger
	prefix string
}

func New(log logger.Logger, cfg *config.NATSConfig) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("nats config is required")
	}
	if cfg.URL == "" {
		return nil, errors.New("nats url is required")
	}

	opts := []nats.Option{
		nats.Name("tipstream-indexer"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	prefix := cfg.BroadcastPrefix
	if prefix == "" {
		prefix = "tipstream"
	}

	return &Client{nc: nc, log: log, prefix: prefix}, nil
}

func (c *Client) Publish(_ context.Context, subject string, data interface{}) error {
	if c.nc == nil {
		return errors.New("nats connection is not initialized")
	}

	b, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal broadcast payload: %w", err)
	}

	full := c.prefix + "." + subject
	if err := c.nc.Publish(full, b); err != nil {
		return fmt.Errorf("publish %s: %w", full, err)
	}
	return nil
}

func (c *Client) Health(context.Context) error {
	if c.nc == nil || c.nc.Status() != nats.CONNECTED {
		return errors.New("nats connection not ready")
	}
	return nil
}

func (c *Client) Ready() bool {
	return c.nc != nil && c.nc.Status() == nats.CONNECTED
}

func (c *Client) Close() error {
	if c.nc == nil {
		return nil
	}
	if c.nc.Status() == nats.CLOSED {
		return nil
	}

	if err := c.nc.Drain(); err != nil {
		c.log.Errorf("Failed to drain NATS connection: %v", err)
		c.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}

	c.nc.Close()
	return nil
}
