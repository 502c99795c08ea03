package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/domain"
)

func tipJSON(ev domain.TipEvent) (string, error) {
	b, err := json.Marshal(ev)
	return string(b), err
}

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{Level: "error", Format: "json"})
}

func tip(tipID uint64, sender, recipient string, amount uint64) domain.TipEvent {
	return domain.TipEvent{
		TxID:        fmt.Sprintf("0xtx%d", tipID),
		BlockHeight: 100 + tipID,
		Timestamp:   1700000000 + int64(tipID),
		Contract:    "SP1.tipstream",
		Kind:        domain.KindTipSent,
		TipID:       tipID,
		Sender:      sender,
		Recipient:   recipient,
		Amount:      domain.Uint(amount),
	}
}

func openTemp(t *testing.T) (*JSONLStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.jsonl")
	s, err := OpenJSONL(newTestLogger(), path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func TestJSONLStore_AppendAndReadAll(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t)
	ctx := context.Background()

	require.NoError(t, s.Append(ctx, []domain.TipEvent{
		tip(0, "SP1A", "SP1B", 100),
		tip(1, "SP1B", "SP1C", 250),
	}))
	require.NoError(t, s.Append(ctx, []domain.TipEvent{tip(2, "SP1C", "SP1A", 50)}))

	events, err := s.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 3)
	// Insertion order.
	assert.Equal(t, uint64(0), events[0].TipID)
	assert.Equal(t, uint64(1), events[1].TipID)
	assert.Equal(t, uint64(2), events[2].TipID)
	assert.Equal(t, 3, s.Len())
}

func TestJSONLStore_EmptyBatchIsNoop(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t)
	require.NoError(t, s.Append(context.Background(), nil))
	assert.Equal(t, 0, s.Len())
}

func TestJSONLStore_SurvivesReopen(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.jsonl")
	ctx := context.Background()

	s, err := OpenJSONL(newTestLogger(), path)
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, []domain.TipEvent{tip(0, "SP1A", "SP1B", 100), tip(1, "SP1B", "SP1A", 200)}))
	require.NoError(t, s.Close())

	reopened, err := OpenJSONL(newTestLogger(), path)
	require.NoError(t, err)
	defer reopened.Close()

	events, err := reopened.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "SP1A", events[0].Sender)
	require.NotNil(t, events[1].Amount)
	assert.Equal(t, uint64(200), *events[1].Amount)
	// Optional fields stay absent across a reload.
	assert.Nil(t, events[0].Fee)
}

func TestJSONLStore_MissingFileStartsEmpty(t *testing.T) {
	t.Parallel()

	s, err := OpenJSONL(newTestLogger(), filepath.Join(t.TempDir(), "sub", "dir", "events.jsonl"))
	require.NoError(t, err)
	defer s.Close()
	assert.Equal(t, 0, s.Len())
}

func TestJSONLStore_SkipsCorruptLines(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "events.jsonl")
	good, err := tipJSON(tip(5, "SP1A", "SP1B", 100))
	require.NoError(t, err)
	content := "{broken json\n" + good + "\nnot json at all\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	s, err := OpenJSONL(newTestLogger(), path)
	require.NoError(t, err)
	defer s.Close()

	events, err := s.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, uint64(5), events[0].TipID)
}

// Concurrent appends must not lose records: this is exactly the race the
// original file-as-database pattern was vulnerable to.
func TestJSONLStore_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	s, path := openTemp(t)
	ctx := context.Background()

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				ev := tip(uint64(w*perWriter+i), "SP1A", "SP1B", 1)
				if err := s.Append(ctx, []domain.TipEvent{ev}); err != nil {
					t.Errorf("append: %v", err)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, writers*perWriter, s.Len())
	require.NoError(t, s.Close())

	// And every record is durable.
	reopened, err := OpenJSONL(newTestLogger(), path)
	require.NoError(t, err)
	defer reopened.Close()
	assert.Equal(t, writers*perWriter, reopened.Len())
}

func TestJSONLStore_AppendAfterCloseFails(t *testing.T) {
	t.Parallel()

	s, _ := openTemp(t)
	require.NoError(t, s.Close())
	assert.Error(t, s.Append(context.Background(), []domain.TipEvent{tip(0, "a", "b", 1)}))
}
