package clickhouse

import (
	"context"
	"errors"
	"sync"
	"time"

	ch "github.com/ClickHouse/clickhouse-go/v2"
	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/config"
	"tipstream/internal/domain"
	"tipstream/internal/metrics"
)

// Archiver is the optional long-term analytics sink for normalized tip
// events. The JSONL log stays the source of truth; this is a copy for
// heavy offline queries.
type Archiver interface {
	Enqueue(ev domain.TipEvent) error
	Health(ctx context.Context) error
	Close(ctx context.Context) error
}

// NoopArchiver is used when no ClickHouse DSN is configured.
type NoopArchiver struct{}

func (NoopArchiver) Enqueue(domain.TipEvent) error { return nil }
func (NoopArchiver) Health(context.Context) error  { return nil }
func (NoopArchiver) Close(context.Context) error   { return nil }

// Writer batches tip rows into ClickHouse: flush on max rows or max
// interval, retry with exponential backoff, drop the batch after the
// final retry. The JSONL store stays the source of truth.
type Writer struct {
	log  logger.Logger
	conn ch.Conn
	cfg  config.ClickHouseConfig

	inCh      chan domain.TipEvent
	closedCh  chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

func NewWriter(log logger.Logger, conn *Conn, cfg config.ClickHouseConfig) *Writer {
	// sane defaults
	if cfg.Writer.BatchMaxRows <= 0 {
		cfg.Writer.BatchMaxRows = 1000
	}
	if cfg.Writer.BatchMaxInterval <= 0 {
		cfg.Writer.BatchMaxInterval = 200 * time.Millisecond
	}
	if cfg.Writer.MaxRetries < 0 {
		cfg.Writer.MaxRetries = 0
	}
	if cfg.Writer.RetryBackoff <= 0 {
		cfg.Writer.RetryBackoff = 200 * time.Millisecond
	}

	w := &Writer{
		log:      log,
		conn:     conn.Native,
		cfg:      cfg,
		inCh:     make(chan domain.TipEvent, 4096),
		closedCh: make(chan struct{}),
	}

	w.wg.Add(1)
	go w.loop()

	return w
}

func (w *Writer) Enqueue(ev domain.TipEvent) error {
	select {
	case <-w.closedCh:
		return errors.New("clickhouse writer closed")
	default:
	}

	select {
	case w.inCh <- ev:
		return nil
	case <-w.closedCh:
		return errors.New("clickhouse writer closed")
	}
}

func (w *Writer) Health(ctx context.Context) error {
	return w.conn.Ping(ctx)
}

func (w *Writer) Close(ctx context.Context) error {
	w.closeOnce.Do(func() {
		close(w.closedCh)
		close(w.inCh)
	})

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) loop() {
	defer w.wg.Done()

	batch := make([]domain.TipEvent, 0, w.cfg.Writer.BatchMaxRows)
	ticker := time.NewTicker(w.cfg.Writer.BatchMaxInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := w.insertBatch(context.Background(), batch); err != nil {
			w.log.Errorf("Failed to insert %d tip rows into clickhouse: %v", len(batch), err)
		} else {
			metrics.ArchiveRows.Add(float64(len(batch)))
		}
		batch = batch[:0]
	}

	for {
		select {
		case ev, ok := <-w.inCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, ev)
			if len(batch) >= w.cfg.Writer.BatchMaxRows {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}

func (w *Writer) insertBatch(ctx context.Context, rows []domain.TipEvent) error {
	if len(rows) == 0 {
		return nil
	}

	backoff := w.cfg.Writer.RetryBackoff
	var lastErr error

	for attempt := 0; attempt <= w.cfg.Writer.MaxRetries; attempt++ {
		if err := w.trySend(ctx, rows); err != nil {
			lastErr = err
			if attempt == w.cfg.Writer.MaxRetries {
				break
			}
			time.Sleep(backoff)
			backoff *= 2
			continue
		}
		return nil
	}

	return lastErr
}

func (w *Writer) trySend(ctx context.Context, rows []domain.TipEvent) error {
	batch, err := w.conn.PrepareBatch(ctx, `
		INSERT INTO tip_events (
			event_time,
			tx_id,
			block_height,
			contract,
			kind,
			tip_id,
			sender,
			recipient,
			amount,
			fee,
			net_amount,
			message
		)
	`)
	if err != nil {
		return err
	}

	for i := range rows {
		r := &rows[i]
		if err = batch.Append(
			time.Unix(r.Timestamp, 0).UTC(),
			r.TxID,
			r.BlockHeight,
			r.Contract,
			string(r.Kind),
			r.TipID,
			r.Sender,
			r.Recipient,
			r.Amount,    // Nullable(UInt64)
			r.Fee,       // Nullable(UInt64)
			r.NetAmount, // Nullable(UInt64)
			r.Message,
		); err != nil {
			_ = batch.Abort()
			return err
		}
	}

	return batch.Send()
}
