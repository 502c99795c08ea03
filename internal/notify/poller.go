package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/domain"
	"tipstream/pkg/ustx"
)

// Feed is any source of the current tip view in newest-first order.
// Both the mirror snapshot and the local query path satisfy it.
type Feed interface {
	RecentTips(ctx context.Context) ([]domain.TipEvent, error)
}

// Poller watches the feed for tips received by one viewer address and
// tracks which of them are unread against a durable watermark.
type Poller struct {
	log       logger.Logger
	feed      Feed
	watermark *Watermark
	viewer    string
	interval  time.Duration

	now      func() time.Time
	inFlight atomic.Bool

	mu     sync.RWMutex
	unread []domain.TipEvent
}

func NewPoller(log logger.Logger, feed Feed, wm *Watermark, viewer string, interval time.Duration) *Poller {
	return &Poller{
		log:       log,
		feed:      feed,
		watermark: wm,
		viewer:    viewer,
		interval:  interval,
		now:       time.Now,
	}
}

// Poll fetches once and recomputes the unread set. Overlapping calls
// coalesce: a poll that finds one already running returns immediately.
func (p *Poller) Poll(ctx context.Context) {
	if !p.inFlight.CompareAndSwap(false, true) {
		return
	}
	defer p.inFlight.Store(false)

	tips, err := p.feed.RecentTips(ctx)
	if err != nil {
		p.log.Warnf("notification poll failed: %v", err)
		return
	}

	last := p.watermark.Last()
	fresh := make([]domain.TipEvent, 0)
	for i := range tips {
		ev := &tips[i]
		if ev.Recipient != p.viewer {
			continue
		}
		if ev.Timestamp > last {
			fresh = append(fresh, *ev)
		}
	}

	p.mu.Lock()
	grew := len(fresh) > len(p.unread)
	p.unread = fresh
	p.mu.Unlock()

	if grew && len(fresh) > 0 {
		newest := &fresh[0]
		p.log.Infof("new tip for %s: %s STX from %s (%d unread)",
			p.viewer, ustx.Format(newest.AmountOrZero(), 2), newest.Sender, len(fresh))
	}
}

// Unread returns the current unread tips, newest first.
func (p *Poller) Unread() []domain.TipEvent {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]domain.TipEvent, len(p.unread))
	copy(out, p.unread)
	return out
}

// MarkAllRead advances the watermark to now and clears the unread set.
func (p *Poller) MarkAllRead() error {
	if err := p.watermark.Advance(p.now().Unix()); err != nil {
		return err
	}

	p.mu.Lock()
	p.unread = nil
	p.mu.Unlock()
	return nil
}

// Run polls on the configured interval until ctx is canceled.
func (p *Poller) Run(ctx context.Context) {
	p.Poll(ctx)

	t := time.NewTicker(p.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			p.Poll(ctx)
		}
	}
}
