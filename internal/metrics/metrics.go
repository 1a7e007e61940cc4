package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"orderstats/internal/ingest"
)

type Registry struct {
	reg *prometheus.Registry

	RowsRead           prometheus.Counter
	OrdersIndexed      prometheus.Counter
	TimestampFailures  prometheus.Counter
	MissingProductCode prometheus.Counter
	CoercedQuantity    prometheus.Counter
	CoercedPrice       prometheus.Counter

	Reports        *prometheus.CounterVec
	ReportErrors   *prometheus.CounterVec
	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	Published      prometheus.Counter
	PublishErrors  prometheus.Counter
	AggregateSec   prometheus.Histogram
	RequestLatency *prometheus.HistogramVec
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	counter := func(name, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{Name: "orderstats_" + name, Help: help})
	}
	m := &Registry{
		reg:                r,
		RowsRead:           counter("rows_read_total", "Raw rows handed to ingestion."),
		OrdersIndexed:      counter("orders_indexed_total", "Rows that became indexed orders."),
		TimestampFailures:  counter("timestamp_failures_total", "Rows dropped for an unparseable acceptance timestamp."),
		MissingProductCode: counter("missing_product_code_total", "Rows dropped for an empty product code."),
		CoercedQuantity:    counter("coerced_quantity_total", "Quantities defaulted to 1."),
		CoercedPrice:       counter("coerced_price_total", "Prices defaulted to 0."),
		Reports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderstats_reports_total",
			Help: "Reports produced, by dialect and strategy.",
		}, []string{"dialect", "strategy"}),
		ReportErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "orderstats_report_errors_total",
			Help: "Analyses that failed, by reason.",
		}, []string{"reason"}),
		CacheHits:     counter("cache_hits_total", "Reports served from cache."),
		CacheMisses:   counter("cache_misses_total", "Reports computed because no cache entry existed."),
		Published:     counter("published_total", "Reports delivered to sinks."),
		PublishErrors: counter("publish_errors_total", "Failed sink deliveries."),
		AggregateSec: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "orderstats_aggregate_seconds",
			Help:    "Time spent aggregating one selection.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
		RequestLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "orderstats_http_request_seconds",
			Help:    "HTTP request latency by route and status.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "code"}),
	}
	r.MustRegister(
		m.RowsRead, m.OrdersIndexed, m.TimestampFailures, m.MissingProductCode,
		m.CoercedQuantity, m.CoercedPrice, m.Reports, m.ReportErrors,
		m.CacheHits, m.CacheMisses, m.Published, m.PublishErrors,
		m.AggregateSec, m.RequestLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveIngest adds one ingestion pass to the row counters.
func (r *Registry) ObserveIngest(rep ingest.Report) {
	r.RowsRead.Add(float64(rep.RowsRead))
	r.OrdersIndexed.Add(float64(rep.OrdersIndexed))
	r.TimestampFailures.Add(float64(rep.FailedTimestamps.Count))
	r.MissingProductCode.Add(float64(rep.MissingProductCode))
	r.CoercedQuantity.Add(float64(rep.CoercedQuantity))
	r.CoercedPrice.Add(float64(rep.CoercedPrice))
}

// Gatherer exposes the underlying registry, mostly for tests.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
