// Package metrics exposes game activity as Prometheus counters.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"planning-poker/internal/poker"
)

var _ poker.Recorder = (*Collector)(nil)

// Collector implements poker.Recorder on a private registry.
type Collector struct {
	registry   *prometheus.Registry
	broadcasts *prometheus.CounterVec
	estimates  prometheus.Counter
	rounds     *prometheus.CounterVec
	requests   *prometheus.CounterVec
}

func New() *Collector {
	c := &Collector{
		broadcasts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "broadcasts_total",
			Help:      "Snapshot pushes by outcome.",
		}, []string{"outcome"}),
		estimates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "estimates_total",
			Help:      "Estimates cast.",
		}),
		rounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "rounds_completed_total",
			Help:      "Rounds completed by reason.",
		}, []string{"reason"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "poker",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		registry: prometheus.NewRegistry(),
	}
	c.registry.MustRegister(
		c.broadcasts,
		c.estimates,
		c.rounds,
		c.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return c
}

func (c *Collector) BroadcastDelivered() {
	c.broadcasts.WithLabelValues("delivered").Inc()
}

func (c *Collector) BroadcastSuppressed() {
	c.broadcasts.WithLabelValues("suppressed").Inc()
}

func (c *Collector) BroadcastFailed() {
	c.broadcasts.WithLabelValues("failed").Inc()
}

func (c *Collector) EstimateCast() {
	c.estimates.Inc()
}

func (c *Collector) RoundCompleted(reason string) {
	c.rounds.WithLabelValues(reason).Inc()
}

// ObserveRequest counts one served HTTP request. route is the matched
// pattern, not the raw path.
func (c *Collector) ObserveRequest(method, route, status string) {
	c.requests.WithLabelValues(method, route, status).Inc()
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
