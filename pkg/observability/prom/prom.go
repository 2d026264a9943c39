// Package prom implements the observability hooks with Prometheus metrics.
//
//	reg := prometheus.NewRegistry()
//	m := prom.New(reg)
//	observability.SetRenderHooks(m)
//	observability.SetCacheHooks(m)
//	observability.SetHTTPHooks(m)
//	http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
package prom

import (
	"context"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	perrors "github.com/matzehuels/pagewise/pkg/errors"
	"github.com/matzehuels/pagewise/pkg/observability"
)

const namespace = "pagewise"

// Metrics collects render, cache and HTTP metrics. It implements
// [observability.RenderHooks], [observability.CacheHooks] and
// [observability.HTTPHooks].
type Metrics struct {
	passesTotal   *prometheus.CounterVec
	passDuration  *prometheus.HistogramVec
	pagesTotal    *prometheus.CounterVec
	pageDuration  *prometheus.HistogramVec
	fallbackTotal prometheus.Counter
	inFlight      prometheus.Gauge

	cacheTotal    *prometheus.CounterVec
	cacheSetBytes *prometheus.HistogramVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec
}

var (
	_ observability.RenderHooks = (*Metrics)(nil)
	_ observability.CacheHooks  = (*Metrics)(nil)
	_ observability.HTTPHooks   = (*Metrics)(nil)
)

// New registers the metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		passesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "passes_total",
				Help:      "Total number of render passes",
			},
			[]string{"mode", "status"},
		),
		passDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "pass_duration_seconds",
				Help:      "Render pass duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"mode"},
		),
		pagesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "pages_total",
				Help:      "Total number of pages handled, by outcome",
			},
			[]string{"outcome"},
		),
		pageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "page_duration_seconds",
				Help:      "Page rasterization duration in seconds",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"mode", "status"},
		),
		fallbackTotal: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "fallbacks_total",
				Help:      "Total number of switches from partial to full rendering",
			},
		),
		inFlight: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "render",
				Name:      "passes_in_flight",
				Help:      "Current number of running render passes",
			},
		),
		cacheTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "operations_total",
				Help:      "Total number of snapshot cache operations",
			},
			[]string{"key_type", "result"},
		),
		cacheSetBytes: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "cache",
				Name:      "set_size_bytes",
				Help:      "Size of cache writes in bytes",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
			},
			[]string{"key_type"},
		),
		httpRequests: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "route"},
		),
		httpErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total number of failed HTTP handlers, by error code",
			},
			[]string{"route", "code"},
		),
	}
}

func (m *Metrics) OnRenderStart(context.Context, string, int) {
	m.inFlight.Inc()
}

func (m *Metrics) OnRenderComplete(_ context.Context, mode string, stats observability.PassStats, d time.Duration, err error) {
	m.inFlight.Dec()
	if mode == "" {
		mode = "none"
	}
	m.passesTotal.WithLabelValues(mode, status(err)).Inc()
	m.passDuration.WithLabelValues(mode).Observe(d.Seconds())

	m.pagesTotal.WithLabelValues("rendered").Add(float64(stats.Rendered))
	m.pagesTotal.WithLabelValues("title").Add(float64(stats.TitleOnly))
	m.pagesTotal.WithLabelValues("cached").Add(float64(stats.Cached))
	m.pagesTotal.WithLabelValues("error").Add(float64(stats.Errors))
}

func (m *Metrics) OnPageRender(_ context.Context, mode string, _ int, d time.Duration, err error) {
	m.pageDuration.WithLabelValues(mode, status(err)).Observe(d.Seconds())
}

func (m *Metrics) OnFallback(context.Context, int) {
	m.fallbackTotal.Inc()
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.cacheTotal.WithLabelValues(keyType, "hit").Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.cacheTotal.WithLabelValues(keyType, "miss").Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.cacheTotal.WithLabelValues(keyType, "set").Inc()
	m.cacheSetBytes.WithLabelValues(keyType).Observe(float64(size))
}

// OnRequest is a no-op; requests are counted when they complete.
func (m *Metrics) OnRequest(context.Context, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, route string, code int, d time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, _ string, route string, err error) {
	code := string(perrors.GetCode(err))
	if code == "" {
		code = "unknown"
	}
	m.httpErrors.WithLabelValues(route, code).Inc()
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
