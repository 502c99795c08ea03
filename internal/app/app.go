package app

import (
	"context"

	"gitlab.com/nevasik7/alerting/logger"
)

type HTTPServer interface {
	Start() error
	Shutdown(ctx context.Context) error
}

// Runner is a background loop tied to the app lifetime (mirror
// refresher, notification poller).
type Runner func(ctx context.Context)

type App struct {
	log     logger.Logger
	httpSrv HTTPServer
	runners []Runner

	bgCancel context.CancelFunc
}

func New(log logger.Logger, httpSrv HTTPServer, runners ...Runner) *App {
	return &App{log: log, httpSrv: httpSrv, runners: runners}
}

func (a *App) Start() error {
	a.log.Debug("App starting...")

	bgCtx, cancel := context.WithCancel(context.Background())
	a.bgCancel = cancel
	for _, run := range a.runners {
		go run(bgCtx)
	}

	go func() {
		if err := a.httpSrv.Start(); err != nil {
			a.log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	a.log.Info("App started")
	return nil
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Debug("App stopping...")

	if a.bgCancel != nil {
		a.bgCancel()
	}

	if err := a.httpSrv.Shutdown(ctx); err != nil {
		return err
	}

	a.log.Info("App stopped")
	return nil
}
