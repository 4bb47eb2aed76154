// Package metrics exposes Prometheus instrumentation for the simulator.
// All methods are safe to call on a nil *Registry, which records nothing.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cryptosim"

// Registry holds all simulator metrics on a private prometheus registry.
type Registry struct {
	reg *prometheus.Registry

	Orders           *prometheus.CounterVec
	QuotesIngested   *prometheus.CounterVec
	SubscriberDrops  prometheus.Counter
	Subscribers      prometheus.Gauge
	UpstreamUp       *prometheus.GaugeVec
	UpstreamFailures *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
}

// NewRegistry creates and registers all metrics.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		Orders: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "orders_total",
				Help:      "Orders submitted by type and result kind",
			},
			[]string{"type", "result"},
		),
		QuotesIngested: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quotes_ingested_total",
				Help:      "Quotes offered to the price feed by outcome",
			},
			[]string{"outcome"},
		),
		SubscriberDrops: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "subscriber_dropped_quotes_total",
				Help:      "Quotes evicted from slow subscriber buffers",
			},
		),
		Subscribers: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "price_subscribers",
				Help:      "Currently attached price stream subscribers",
			},
		),
		UpstreamUp: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "upstream_up",
				Help:      "1 when the upstream price source is connected",
			},
			[]string{"source"},
		),
		UpstreamFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "upstream_failures_total",
				Help:      "Upstream price source failures",
			},
			[]string{"source"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"route", "method", "code"},
		),
	}

	r.reg.MustRegister(
		r.Orders,
		r.QuotesIngested,
		r.SubscriberDrops,
		r.Subscribers,
		r.UpstreamUp,
		r.UpstreamFailures,
		r.HTTPDuration,
	)
	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}

// OrderProcessed counts an order; result is "ok" or an error kind.
func (r *Registry) OrderProcessed(tradeType, result string) {
	if r == nil {
		return
	}
	r.Orders.WithLabelValues(tradeType, result).Inc()
}

// QuoteIngested counts a quote offered to the feed; outcome is "applied", "stale" or "invalid".
func (r *Registry) QuoteIngested(outcome string) {
	if r == nil {
		return
	}
	r.QuotesIngested.WithLabelValues(outcome).Inc()
}

// SubscriberDropped implements events.DropObserver.
func (r *Registry) SubscriberDropped() {
	if r == nil {
		return
	}
	r.SubscriberDrops.Inc()
}

// SubscriberAttached tracks stream subscribers; pass -1 on detach.
func (r *Registry) SubscriberAttached(delta int) {
	if r == nil {
		return
	}
	r.Subscribers.Add(float64(delta))
}

// UpstreamConnected flips the upstream_up gauge for source.
func (r *Registry) UpstreamConnected(source string, up bool) {
	if r == nil {
		return
	}
	v := 0.0
	if up {
		v = 1
	}
	r.UpstreamUp.WithLabelValues(source).Set(v)
}

// UpstreamFailed counts a failed connect, read or poll.
func (r *Registry) UpstreamFailed(source string) {
	if r == nil {
		return
	}
	r.UpstreamFailures.WithLabelValues(source).Inc()
}

// ObserveHTTP records one served request.
func (r *Registry) ObserveHTTP(route, method string, code int, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.HTTPDuration.WithLabelValues(route, method, strconv.Itoa(code)).Observe(elapsed.Seconds())
}
