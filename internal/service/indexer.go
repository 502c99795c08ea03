package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/aggregate"
	"tipstream/internal/dedupe"
	"tipstream/internal/domain"
	"tipstream/internal/extract"
	"tipstream/internal/metrics"
	"tipstream/internal/pubsub"
	"tipstream/internal/store"
	"tipstream/internal/stores/clickhouse"
)

var ErrTipNotFound = errors.New("tip not found")

// Broadcast subject suffixes; the pubsub client prepends its
// configured prefix. Every indexed tip goes to the firehose subject and
// to a per-recipient subject so a wallet UI can subscribe narrowly.
const (
	SubjectTipIndexed        = "tips.indexed"
	SubjectRecipientTemplate = "tips.recipient.%s"
)

// Encapsulates the tip indexing business logic; the only orchestration
// point: extract -> dedupe -> append -> broadcast -> archive.
// Serves HTTP handlers and anything else that carries payloads in.
type IndexerService struct {
	log         logger.Logger
	decoder     *extract.ChainhookDecoder
	events      store.EventStore
	deduper     dedupe.Deduper
	broadcaster pubsub.Broadcaster
	archiver    clickhouse.Archiver
}

func NewIndexerService(
	log logger.Logger,
	events store.EventStore,
	deduper dedupe.Deduper,
	broadcaster pubsub.Broadcaster,
	archiver clickhouse.Archiver,
) *IndexerService {
	return &IndexerService{
		log:         log,
		decoder:     &extract.ChainhookDecoder{},
		events:      events,
		deduper:     deduper,
		broadcaster: broadcaster,
		archiver:    archiver,
	}
}

// ProcessPayload ingests one webhook batch and returns how many tip
// events were appended. Non-tip and malformed receipt entries are
// counted and skipped, never an error: a batch with zero tips is a
// successful no-op.
func (s *IndexerService) ProcessPayload(ctx context.Context, p *extract.Payload) (int, error) {
	decoded, dropped := s.decoder.FromPayload(p)
	if dropped > 0 {
		metrics.EventsDropped.WithLabelValues("not_tip").Add(float64(dropped))
	}
	if len(decoded) == 0 {
		return 0, nil
	}

	fresh := make([]domain.TipEvent, 0, len(decoded))
	for i := range decoded {
		ev := decoded[i]
		id := domain.MakeEventID(ev.TxID, ev.TipID)

		seen, err := s.deduper.Seen(ctx, id)
		if err != nil {
			// Redis being down must not stall ingestion, the log stays
			// append-only and a rare double insert is acceptable.
			s.log.Errorf("dedupe check failed for %s: %v", id, err)
		} else if seen {
			s.log.Debugf("duplicate event ignored: %s", id)
			metrics.EventsDropped.WithLabelValues("duplicate").Inc()
			continue
		}

		fresh = append(fresh, ev)
	}

	if len(fresh) == 0 {
		return 0, nil
	}

	if err := s.events.Append(ctx, fresh); err != nil {
		return 0, fmt.Errorf("append %d events: %w", len(fresh), err)
	}
	metrics.TipsIndexed.Add(float64(len(fresh)))

	// Broadcast and archive are both best-effort: subscribers catch up
	// from the query API, the archive is a secondary copy.
	for i := range fresh {
		if err := s.broadcaster.Publish(ctx, SubjectTipIndexed, &fresh[i]); err != nil {
			s.log.Errorf("broadcast failed for tip %d: %v", fresh[i].TipID, err)
		}
		if fresh[i].Recipient != "" {
			subj := fmt.Sprintf(SubjectRecipientTemplate, fresh[i].Recipient)
			if err := s.broadcaster.Publish(ctx, subj, &fresh[i]); err != nil {
				s.log.Errorf("recipient broadcast failed for tip %d: %v", fresh[i].TipID, err)
			}
		}
		if err := s.archiver.Enqueue(fresh[i]); err != nil {
			s.log.Errorf("archive enqueue failed for tip %d: %v", fresh[i].TipID, err)
		}
	}

	s.log.Debugf("payload processed: indexed=%d dropped=%d", len(fresh), dropped)
	return len(fresh), nil
}

// TipPage is one page of tips in newest-first order plus the total
// count before paging.
type TipPage struct {
	Tips  []domain.TipEvent
	Total int
}

func (s *IndexerService) ListTips(ctx context.Context, offset, limit int) (*TipPage, error) {
	events, err := s.events.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	page, total := aggregate.Page(aggregate.Recent(aggregate.Tips(events)), offset, limit)
	return &TipPage{Tips: page, Total: total}, nil
}

func (s *IndexerService) TipsByUser(ctx context.Context, addr string, offset, limit int) (*TipPage, error) {
	events, err := s.events.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	page, total := aggregate.Page(aggregate.Recent(aggregate.ForUser(events, addr)), offset, limit)
	return &TipPage{Tips: page, Total: total}, nil
}

func (s *IndexerService) TipByID(ctx context.Context, tipID uint64) (*domain.TipEvent, error) {
	events, err := s.events.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	ev, ok := aggregate.FindByTipID(events, tipID)
	if !ok {
		return nil, ErrTipNotFound
	}
	return &ev, nil
}

func (s *IndexerService) Stats(ctx context.Context) (domain.AggregateStats, error) {
	events, err := s.events.ReadAll(ctx)
	if err != nil {
		return domain.AggregateStats{}, err
	}
	return aggregate.Stats(events), nil
}

func (s *IndexerService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	events, err := s.events.ReadAll(ctx)
	if err != nil {
		return nil, err
	}
	return aggregate.Leaderboard(events), nil
}

func (s *IndexerService) CheckDependency(ctx context.Context) error {
	var failed []string

	if err := s.deduper.Health(ctx); err != nil {
		failed = append(failed, fmt.Sprintf("dedupe: %v", err))
	}
	if err := s.archiver.Health(ctx); err != nil {
		failed = append(failed, fmt.Sprintf("clickhouse: %v", err))
	}
	if err := s.broadcaster.Health(ctx); err != nil {
		failed = append(failed, "nats: connection not ready")
	}

	if len(failed) > 0 {
		return fmt.Errorf("dependency check failed: %s", strings.Join(failed, "; "))
	}
	return nil
}
