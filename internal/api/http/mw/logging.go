package mw

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"gitlab.com/nevasik7/alerting/logger"

	"tipstream/internal/metrics"
)

type LoggingMiddleware struct {
	Log logger.Logger
}

func NewLogging(log logger.Logger) *LoggingMiddleware {
	return &LoggingMiddleware{Log: log}
}

func (m *LoggingMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		lrw := &loggingRW{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(lrw, r)

		dur := time.Since(start)

		remoteIP := r.Header.Get("X-Forwarded-For")
		if remoteIP == "" {
			remoteIP = r.RemoteAddr
		}

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		metrics.ObserveRequest(route, lrw.status)

		m.Log.Infof("http_request method=%s path=%s status=%d size=%d dur_ms=%d ip=%s ua=%q",
			r.Method, r.URL.Path, lrw.status, lrw.size, dur.Milliseconds(), remoteIP, r.UserAgent())
	})
}

type loggingRW struct {
	http.ResponseWriter
	status int
	size   int
}

func (w *loggingRW) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *loggingRW) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.size += n
	return n, err
}
