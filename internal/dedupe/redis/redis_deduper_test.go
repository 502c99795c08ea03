package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	rds "tipstream/internal/stores/redis"
)

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{Level: "error", Format: "json"})
}

func testClient(t *testing.T) (*rds.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return &rds.Client{Client: goredis.NewClient(&goredis.Options{Addr: mr.Addr()})}, mr
}

func TestDeduper_SeenTwice(t *testing.T) {
	t.Parallel()

	client, _ := testClient(t)
	d, err := NewDeduper(newTestLogger(), client, "test:dedupe:", time.Minute)
	require.NoError(t, err)

	ctx := context.Background()
	const id = "0xabc:5"

	seen, err := d.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, id)
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestDeduper_TTLExpiry(t *testing.T) {
	t.Parallel()

	client, mr := testClient(t)
	d, err := NewDeduper(newTestLogger(), client, "test:dedupe:", 50*time.Millisecond)
	require.NoError(t, err)

	ctx := context.Background()
	const id = "0xdef:9"

	seen, err := d.Seen(ctx, id)
	require.NoError(t, err)
	require.False(t, seen)

	mr.FastForward(time.Second)

	seen, err = d.Seen(ctx, id)
	require.NoError(t, err)
	assert.False(t, seen, "expired key must read as first-seen again")
}

func TestDeduper_RequiresClient(t *testing.T) {
	t.Parallel()

	_, err := NewDeduper(newTestLogger(), nil, "", 0)
	assert.Error(t, err)
}

func TestDeduper_Health(t *testing.T) {
	t.Parallel()

	client, mr := testClient(t)
	d, err := NewDeduper(newTestLogger(), client, "", 0)
	require.NoError(t, err)

	require.NoError(t, d.Health(context.Background()))

	mr.Close()
	assert.Error(t, d.Health(context.Background()))
}
