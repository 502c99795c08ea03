package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	TipsIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tipstream",
		Name:      "tips_indexed_total",
		Help:      "Tip events accepted and appended to the event log.",
	})

	EventsDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipstream",
		Name:      "events_dropped_total",
		Help:      "Receipt events discarded during extraction.",
	}, []string{"reason"}) // not_tip, malformed, duplicate

	ArchiveRows = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tipstream",
		Name:      "archive_rows_total",
		Help:      "Rows flushed to the analytics archive.",
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tipstream",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route pattern and status class.",
	}, []string{"route", "status"})
)

func ObserveRequest(route string, status int) {
	HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

func Handler() http.Handler {
	return promhttp.Handler()
}
