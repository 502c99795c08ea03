package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	lgcfg "gitlab.com/nevasik7/alerting/config"
	"gitlab.com/nevasik7/alerting/logger"

	httpapi "tipstream/internal/api/http"
	"tipstream/internal/api/http/mw"
	"tipstream/internal/config"
	"tipstream/internal/dedupe"
	dedupredis "tipstream/internal/dedupe/redis"
	"tipstream/internal/mirror"
	"tipstream/internal/notify"
	"tipstream/internal/pubsub"
	natsps "tipstream/internal/pubsub/nats"
	"tipstream/internal/security"
	"tipstream/internal/service"
	"tipstream/internal/store"
	"tipstream/internal/stores/clickhouse"
	"tipstream/internal/stores/redis"
)

type Container struct {
	app *App

	// infra
	redis    *redis.Client
	ch       *clickhouse.Conn
	chWriter *clickhouse.Writer
	nc       *natsps.Client

	memDedupe *dedupe.Memory

	events store.EventStore

	httpSrv *httpapi.Server
}

func (c *Container) Start() error {
	return c.app.Start()
}

func (c *Container) Stop(ctx context.Context) error {
	if err := c.app.Shutdown(ctx); err != nil {
		return fmt.Errorf("app shutdown failed: %w", err)
	}
	return nil
}

// Build wires the whole container. Optional infra (redis, nats,
// clickhouse, mirror, notify) stays off when unconfigured; the core
// ingest and query path never depends on any of it.
func Build(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	lg := logger.New(lgcfg.LoggerCfg{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	lg.Info("Successfully initialized logger")

	// Event log, the source of truth
	events, err := store.OpenJSONL(lg, cfg.Store.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("open event store: %w", err)
	}
	lg.Infof("Successfully opened event store at %s, %d events", cfg.Store.Path, events.Len())

	c := &Container{events: events}

	// Redis, needed by the redis deduper and the rate limiter
	if cfg.Stores.Redis.Addr != "" {
		if c.redis, err = redis.New(ctx, &cfg.Stores.Redis); err != nil {
			return nil, nil, fmt.Errorf("init redis client: %w", err)
		}
		lg.Infof("Successfully initialized redis client, addr=%s", cfg.Stores.Redis.Addr)
	}

	// Deduper
	var deduper dedupe.Deduper
	switch cfg.Ingest.Dedupe.Mode {
	case "", "none":
		deduper = dedupe.Noop{}
	case "memory":
		c.memDedupe = dedupe.NewMemory(lg, cfg.Ingest.Dedupe.TTL, cfg.Ingest.Dedupe.JanitorEvery)
		deduper = c.memDedupe
	case "redis":
		if c.redis == nil {
			return nil, nil, fmt.Errorf("dedupe mode %q needs stores.redis.addr", cfg.Ingest.Dedupe.Mode)
		}
		rd, derr := dedupredis.NewDeduper(lg, c.redis, cfg.Ingest.Dedupe.Prefix, cfg.Ingest.Dedupe.TTL)
		if derr != nil {
			return nil, nil, fmt.Errorf("init redis deduper: %w", derr)
		}
		deduper = rd
	default:
		return nil, nil, fmt.Errorf("unknown dedupe mode %q", cfg.Ingest.Dedupe.Mode)
	}
	lg.Infof("Successfully initialized deduper, mode=%s", cfg.Ingest.Dedupe.Mode)

	// NATS broadcaster
	var broadcaster pubsub.Broadcaster = pubsub.Noop{}
	if cfg.PubSub.NATS.URL != "" {
		if c.nc, err = natsps.New(lg, &cfg.PubSub.NATS); err != nil {
			return nil, nil, fmt.Errorf("init nats client: %w", err)
		}
		broadcaster = c.nc
		lg.Infof("Successfully initialized nats client, url=%s", cfg.PubSub.NATS.URL)
	}

	// ClickHouse archive
	var archiver clickhouse.Archiver = clickhouse.NoopArchiver{}
	if cfg.Stores.ClickHouse.DSN != "" {
		if c.ch, err = clickhouse.New(ctx, &cfg.Stores.ClickHouse); err != nil {
			return nil, nil, fmt.Errorf("init clickhouse client: %w", err)
		}
		c.chWriter = clickhouse.NewWriter(lg, c.ch, cfg.Stores.ClickHouse)
		archiver = c.chWriter
		url := strings.Split(cfg.Stores.ClickHouse.DSN, "?")
		lg.Infof("Successfully initialized clickhouse archive, url=%s", url[0])
	}

	// Service layer
	svc := service.NewIndexerService(lg, events, deduper, broadcaster, archiver)

	// Webhook auth
	verifier, err := security.NewVerifier(&cfg.Ingest.Auth)
	if err != nil {
		return nil, nil, fmt.Errorf("init webhook verifier: %w", err)
	}

	// HTTP server
	var rateLimitMW *mw.RateLimitMiddleware
	if cfg.API.RateLimit.Enabled && c.redis != nil {
		rateLimitMW = mw.NewRateLimit(c.redis.Client, mw.RateBucket{
			RefillPerSec: cfg.API.RateLimit.RefillPerSec,
			Burst:        cfg.API.RateLimit.Burst,
			TTL:          cfg.API.RateLimit.TTL,
		})
	}

	router := httpapi.BuildRouter(
		httpapi.NewAPI(lg, svc),
		mw.NewLogging(lg),
		mw.NewGzip(0, lg),
		mw.NewCORS(cfg.API.CORS.Origins, cfg.API.CORS.Methods, cfg.API.CORS.Headers),
		mw.NewAuth(verifier),
		rateLimitMW,
	)
	c.httpSrv = httpapi.NewServer(lg, &cfg.API.HTTP, router)
	lg.Info("Successfully initialized HTTP server")

	// Background loops
	var runners []Runner

	if cfg.Mirror.Enabled {
		agg := mirror.NewAggregator(lg, mirror.NewClient(&cfg.Mirror), &cfg.Mirror)
		runners = append(runners, agg.Run)
		lg.Infof("Successfully initialized mirror, contract=%s window=%d", cfg.Mirror.Contract, cfg.Mirror.Window)

		if cfg.Notify.Enabled {
			wm, werr := notify.OpenWatermark(cfg.Notify.WatermarkPath)
			if werr != nil {
				return nil, nil, fmt.Errorf("open watermark: %w", werr)
			}
			poller := notify.NewPoller(lg, agg, wm, cfg.Notify.Viewer, cfg.Notify.Interval)
			runners = append(runners, poller.Run)
			lg.Infof("Successfully initialized notification poller, viewer=%s", cfg.Notify.Viewer)
		}
	}

	c.app = New(lg, c.httpSrv, runners...)

	cleanupF := func() {
		ctxClean, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := c.httpSrv.Shutdown(ctxClean); err != nil {
			lg.Errorf("Failed to shutdown HTTP server in cleanup: %v", err)
		}

		if c.chWriter != nil {
			if err := c.chWriter.Close(ctxClean); err != nil {
				lg.Errorf("Failed to close clickhouse writer in cleanup: %v", err)
			}
		}
		if c.ch != nil {
			if err := c.ch.Close(); err != nil {
				lg.Errorf("Failed to close clickhouse client in cleanup: %v", err)
			}
		}
		if c.nc != nil {
			if err := c.nc.Close(); err != nil {
				lg.Errorf("Failed to drain nats client in cleanup: %v", err)
			}
		}
		if c.memDedupe != nil {
			c.memDedupe.Close()
		}
		if c.redis != nil {
			if err := c.redis.Close(); err != nil {
				lg.Errorf("Failed to close redis client in cleanup: %v", err)
			}
		}
		if err := events.Close(); err != nil {
			lg.Errorf("Failed to close event store in cleanup: %v", err)
		}

		lg.Info("Successfully cleaned up dependencies")
	}

	lg.Info("Successfully initialized wiring")
	return c, cleanupF, nil
}
