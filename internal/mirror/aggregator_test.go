package mirror

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	loggerCfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/config"
	"tipstream/internal/notify"
)

const testContract = "SP1ABC.tipstream"

func newTestLogger() logger.Logger {
	return logger.New(loggerCfg.LoggerCfg{Level: "error", Format: "json"})
}

func tipRepr(tipID, amount uint64, sender, recipient, message string) string {
	return fmt.Sprintf(
		`(tuple (amount u%d) (event u"tip-sent") (message u"%s") (recipient '%s) (sender '%s) (tip-id u%d))`,
		amount, message, recipient, sender, tipID)
}

func categorizedRepr(tipID, category uint64) string {
	return fmt.Sprintf(`(tuple (category u%d) (event u"tip-categorized") (tip-id u%d))`, category, tipID)
}

func logEvent(txID, repr string) ContractEvent {
	return ContractEvent{
		EventType: "smart_contract_log",
		TxID:      txID,
		ContractLog: &ContractLog{
			ContractID: testContract,
			Topic:      "print",
			Value:      LogValue{Repr: repr},
		},
	}
}

func logEventAt(txID string, blockTime int64, repr string) ContractEvent {
	ev := logEvent(txID, repr)
	ev.BlockTime = blockTime
	return ev
}

// fakeExplorer serves a fixed newest-first feed with limit/offset
// pagination, like the real contract event endpoint.
func fakeExplorer(t *testing.T, feed []ContractEvent, failAfter *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if failAfter != nil && atomic.AddInt32(failAfter, -1) < 0 {
			http.Error(w, "upstream exploded", http.StatusBadGateway)
			return
		}

		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

		end := offset + limit
		if offset > len(feed) {
			offset = len(feed)
		}
		if end > len(feed) {
			end = len(feed)
		}

		_ = json.NewEncoder(w).Encode(eventsResponse{
			Limit:   limit,
			Offset:  offset,
			Results: feed[offset:end],
		})
	}))
}

func newAggregator(t *testing.T, baseURL string, window, pageLimit int) *Aggregator {
	t.Helper()
	cfg := &config.MirrorConfig{
		APIBase:        baseURL,
		Contract:       testContract,
		Window:         window,
		PageLimit:      pageLimit,
		Interval:       time.Minute,
		RequestTimeout: 5 * time.Second,
	}
	return NewAggregator(newTestLogger(), NewClient(cfg), cfg)
}

func TestAggregator_Refresh(t *testing.T) {
	t.Parallel()

	feed := []ContractEvent{
		logEvent("0x03", tipRepr(3, 400, "SP1C", "SP1A", "three")),
		logEvent("0x02", tipRepr(2, 250, "SP1B", "SP1C", "two")),
		{EventType: "stx_asset", TxID: "0xff"}, // no contract log
		logEvent("0x01", tipRepr(1, 100, "SP1A", "SP1B", "one")),
	}
	srv := fakeExplorer(t, feed, nil)
	defer srv.Close()

	agg := newAggregator(t, srv.URL, 50, 50)
	agg.Refresh(context.Background())

	snap := agg.Snapshot()
	require.NoError(t, snap.LastErr)
	require.Len(t, snap.Tips, 3)
	assert.Equal(t, uint64(3), snap.Tips[0].TipID, "feed order preserved, newest first")
	assert.Equal(t, uint64(1), snap.Tips[2].TipID)
	assert.False(t, snap.FetchedAt.IsZero())
	assert.False(t, snap.Partial)

	require.Len(t, snap.Leaderboard, 3)
}

func TestAggregator_Pagination(t *testing.T) {
	t.Parallel()

	var feed []ContractEvent
	for i := 10; i >= 1; i-- {
		feed = append(feed, logEvent(fmt.Sprintf("0x%02d", i),
			tipRepr(uint64(i), uint64(i*100), "SP1A", "SP1B", "m")))
	}
	srv := fakeExplorer(t, feed, nil)
	defer srv.Close()

	// window 6 across pages of 4: two requests, 6 tips
	agg := newAggregator(t, srv.URL, 6, 4)
	agg.Refresh(context.Background())

	snap := agg.Snapshot()
	require.Len(t, snap.Tips, 6)
	assert.Equal(t, uint64(10), snap.Tips[0].TipID)
	assert.Equal(t, uint64(5), snap.Tips[5].TipID)
}

func TestAggregator_FailureKeepsLastGood(t *testing.T) {
	t.Parallel()

	feed := []ContractEvent{logEvent("0x01", tipRepr(1, 100, "SP1A", "SP1B", "one"))}
	budget := int32(1) // exactly one successful request
	srv := fakeExplorer(t, feed, &budget)
	defer srv.Close()

	agg := newAggregator(t, srv.URL, 10, 10)

	agg.Refresh(context.Background())
	good := agg.Snapshot()
	require.NoError(t, good.LastErr)
	require.Len(t, good.Tips, 1)

	agg.Refresh(context.Background())
	stale := agg.Snapshot()
	assert.Error(t, stale.LastErr)
	assert.Len(t, stale.Tips, 1, "previous data retained")
	assert.Equal(t, good.FetchedAt, stale.FetchedAt)
}

func TestAggregator_CategoriesCorrelated(t *testing.T) {
	t.Parallel()

	feed := []ContractEvent{
		logEvent("0x03", categorizedRepr(1, 2)),
		logEvent("0x02", tipRepr(2, 250, "SP1B", "SP1C", "uncat")),
		logEvent("0x01", tipRepr(1, 100, "SP1A", "SP1B", "cat")),
	}
	srv := fakeExplorer(t, feed, nil)
	defer srv.Close()

	agg := newAggregator(t, srv.URL, 50, 50)
	agg.Refresh(context.Background())

	snap := agg.Snapshot()
	require.Len(t, snap.Tips, 2, "categorized events do not join the feed")

	var hit bool
	for _, c := range snap.Categories {
		if c.Category == 2 {
			hit = true
			assert.Equal(t, uint64(100), c.Volume)
			assert.Equal(t, uint64(1), c.Tips)
		}
	}
	assert.True(t, hit, "category 2 tallied from correlated tip")
}

func TestAggregator_BlockTimeFlowsIntoSnapshot(t *testing.T) {
	t.Parallel()

	feed := []ContractEvent{
		logEventAt("0x03", 7000, tipRepr(3, 400, "SP1C", "SP1A", "three")),
		logEventAt("0x02", 6000, tipRepr(2, 250, "SP1B", "SP1C", "two")),
		logEvent("0x01", tipRepr(1, 100, "SP1A", "SP1B", "one")), // API omitted block_time
	}
	srv := fakeExplorer(t, feed, nil)
	defer srv.Close()

	agg := newAggregator(t, srv.URL, 50, 50)
	agg.Refresh(context.Background())

	snap := agg.Snapshot()
	require.Len(t, snap.Tips, 3)
	assert.Equal(t, int64(7000), snap.Tips[0].Timestamp)
	assert.Equal(t, int64(6000), snap.Tips[1].Timestamp)

	// no block_time: index-offset fallback near now
	now := time.Now().Unix()
	assert.InDelta(t, now-2, snap.Tips[2].Timestamp, 3)
}

func TestAggregator_ReadTipsStayReadAcrossRefresh(t *testing.T) {
	t.Parallel()

	feed := []ContractEvent{
		logEventAt("0x01", 1000, tipRepr(1, 100, "SP1A", "SP1B", "old one")),
	}
	srv := fakeExplorer(t, feed, nil)
	defer srv.Close()

	agg := newAggregator(t, srv.URL, 50, 50)
	agg.Refresh(context.Background())

	wm, err := notify.OpenWatermark(filepath.Join(t.TempDir(), "last_seen.json"))
	require.NoError(t, err)
	p := notify.NewPoller(newTestLogger(), agg, wm, "SP1B", time.Minute)

	p.Poll(context.Background())
	require.Len(t, p.Unread(), 1)

	require.NoError(t, p.MarkAllRead())

	// A later refresh must not re-stamp the same tip ahead of the
	// watermark and resurrect it as unread.
	time.Sleep(1100 * time.Millisecond)
	agg.Refresh(context.Background())
	p.Poll(context.Background())
	assert.Empty(t, p.Unread())
}

func TestAggregator_SingleFlight(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		<-release
		_ = json.NewEncoder(w).Encode(eventsResponse{})
	}))
	defer srv.Close()

	agg := newAggregator(t, srv.URL, 10, 10)

	done := make(chan struct{})
	go func() {
		agg.Refresh(context.Background())
		close(done)
	}()

	// wait for the first refresh to be mid-request
	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) == 1 },
		2*time.Second, 10*time.Millisecond)

	agg.Refresh(context.Background()) // loses the race, returns at once

	close(release)
	<-done
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
