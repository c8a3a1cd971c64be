package api

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics are the journal's Prometheus collectors.
type Metrics struct {
	ingestions prometheus.Counter
	transfers  *prometheus.CounterVec
	requests   *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ingestions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_ingestions_logged_total",
			Help: "Total number of ingestion rows logged through the API.",
		}),
		transfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_transfers_total",
			Help: "Imports and exports by direction and outcome.",
		}, []string{"direction", "result"}),
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "journal_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	reg.MustRegister(m.ingestions, m.transfers, m.requests)
	return m
}

func (m *Metrics) ingestionsLogged(n int) {
	m.ingestions.Add(float64(n))
}

func (m *Metrics) transfer(direction string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.transfers.WithLabelValues(direction, result).Inc()
}

func (m *Metrics) observeRequest(method, route string, status int, elapsed time.Duration) {
	m.requests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(elapsed.Seconds())
}
