package http

import (
	"context"
	"errors"
	"net/http"

	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/config"
)

type Server struct {
	log logger.Logger
	srv *http.Server
}

func NewServer(log logger.Logger, cfg *config.HTTPConfig, handler http.Handler) *Server {
	return &Server{
		log: log,
		srv: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
	}
}

// Start blocks until the listener stops; a clean Shutdown returns nil.
func (s *Server) Start() error {
	s.log.Infof("http server listening on %s", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
