package mirror

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/aggregate"
	"tipstream/internal/config"
	"tipstream/internal/domain"
	"tipstream/internal/extract"
)

// Snapshot is one consistent view over the most recent window of the
// explorer feed. A failed refresh never replaces a good snapshot, it
// only marks it stale via LastErr.
type Snapshot struct {
	Tips        []domain.TipEvent         // newest first
	Leaderboard []domain.LeaderboardEntry
	Categories  []aggregate.CategoryTally
	FetchedAt   time.Time
	Partial     bool  // some pages failed mid-walk
	LastErr     error // most recent refresh failure, nil when healthy
}

// Aggregator maintains the client-side mirror of the contract's recent
// activity. It does not touch the event store; the mirror is an
// independent read path over upstream data.
type Aggregator struct {
	log     logger.Logger
	client  *Client
	decoder *extract.ReprDecoder

	window    int
	pageLimit int
	interval  time.Duration

	inFlight atomic.Bool

	mu   sync.RWMutex
	snap Snapshot
}

func NewAggregator(log logger.Logger, client *Client, cfg *config.MirrorConfig) *Aggregator {
	return &Aggregator{
		log:       log,
		client:    client,
		decoder:   &extract.ReprDecoder{},
		window:    cfg.Window,
		pageLimit: cfg.PageLimit,
		interval:  cfg.Interval,
	}
}

// Snapshot returns the last good view. Zero-value before the first
// successful refresh.
func (a *Aggregator) Snapshot() Snapshot {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.snap
}

// RecentTips exposes the snapshot feed, newest first. Before the first
// successful refresh a failure is surfaced, afterwards stale data wins
// over an error.
func (a *Aggregator) RecentTips(context.Context) ([]domain.TipEvent, error) {
	snap := a.Snapshot()
	if snap.FetchedAt.IsZero() && snap.LastErr != nil {
		return nil, snap.LastErr
	}
	return snap.Tips, nil
}

// Refresh walks the feed up to the configured window and rebuilds the
// snapshot. At most one refresh runs at a time; a call that loses the
// race returns immediately.
func (a *Aggregator) Refresh(ctx context.Context) {
	if !a.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer a.inFlight.Store(false)

	var (
		raw     []ContractEvent
		partial bool
	)
	for offset := 0; offset < a.window; offset += a.pageLimit {
		limit := a.pageLimit
		if rest := a.window - offset; rest < limit {
			limit = rest
		}

		page, err := a.client.FetchEvents(ctx, offset, limit)
		if err != nil {
			a.log.Warnf("mirror fetch failed at offset %d: %v", offset, err)
			if offset == 0 {
				// nothing fetched, keep the previous snapshot intact
				a.mu.Lock()
				a.snap.LastErr = err
				a.mu.Unlock()
				return
			}
			partial = true
			break
		}

		raw = append(raw, page...)
		if len(page) < limit { // feed exhausted
			break
		}
	}

	events := a.decode(raw)
	tips := aggregate.Tips(events)

	a.mu.Lock()
	a.snap = Snapshot{
		Tips:        tips, // feed is already newest first
		Leaderboard: aggregate.Leaderboard(events),
		Categories:  aggregate.Categories(events),
		FetchedAt:   time.Now(),
		Partial:     partial,
	}
	a.mu.Unlock()
}

func (a *Aggregator) decode(raw []ContractEvent) []domain.TipEvent {
	nowSec := time.Now().Unix()

	events := make([]domain.TipEvent, 0, len(raw))
	for i := range raw {
		cl := raw[i].ContractLog
		if cl == nil || cl.Value.Repr == "" {
			continue
		}

		// The feed is newest first, so when the API omits block_time
		// the fallback decreases with the index. A fixed wall-clock
		// stamp would reorder the same tips on every refresh and keep
		// resurrecting them past the notification watermark.
		bt := raw[i].BlockTime
		if bt <= 0 {
			bt = nowSec - int64(i)
		}

		ev := a.decoder.Decode(raw[i].TxID, cl.ContractID, bt, cl.Value.Repr)
		if ev == nil {
			continue
		}
		events = append(events, *ev)
	}
	return events
}

// Run refreshes on the configured interval until ctx is canceled. The
// first refresh happens immediately so the snapshot is warm early.
func (a *Aggregator) Run(ctx context.Context) {
	a.Refresh(ctx)

	t := time.NewTicker(a.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			a.Refresh(ctx)
		}
	}
}
