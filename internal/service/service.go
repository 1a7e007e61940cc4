// Package service runs one complete analysis: rows in, report payload out.
// The HTTP API, the CLI and the Kafka consumer all go through Analyzer.
package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"orderstats/internal/aggregate"
	"orderstats/internal/cache"
	"orderstats/internal/ingest"
	"orderstats/internal/metrics"
	"orderstats/internal/model"
	"orderstats/internal/publish"
	"orderstats/internal/report"
	"orderstats/internal/selector"
	"orderstats/internal/source"
)

// Request selects what to compute over an input.
type Request struct {
	// Dialect is detected from the input when empty.
	Dialect  model.Dialect
	Strategy selector.Strategy
	// Days is read only by the custom strategy.
	Days   []model.Day
	Window *aggregate.Window
	// Compare adds day-over-day comparisons of the selected days.
	Compare bool
}

// Result is a finished analysis.
type Result struct {
	Payload report.Payload
	Cached  bool
	// PublishErr is set when the report was built but a sink rejected it.
	PublishErr error
}

type Analyzer struct {
	store       cache.Store
	metrics     *metrics.Registry
	sink        publish.Sink
	log         *slog.Logger
	workers     int
	sampleLimit int
	now         func() time.Time
}

type Option func(*Analyzer)

func WithCache(s cache.Store) Option { return func(a *Analyzer) { a.store = s } }
func WithMetrics(m *metrics.Registry) Option { return func(a *Analyzer) { a.metrics = m } }
func WithSink(s publish.Sink) Option { return func(a *Analyzer) { a.sink = s } }
func WithLogger(l *slog.Logger) Option { return func(a *Analyzer) { a.log = l } }
func WithWorkers(n int) Option { return func(a *Analyzer) { a.workers = n } }
func WithSampleLimit(n int) Option { return func(a *Analyzer) { a.sampleLimit = n } }
func WithClock(now func() time.Time) Option { return func(a *Analyzer) { a.now = now } }

func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		store:       cache.NopStore{},
		metrics:     metrics.NewRegistry(),
		log:         slog.Default(),
		sampleLimit: ingest.DefaultSampleLimit,
		now:         time.Now,
	}
	for _, fn := range opts {
		fn(a)
	}
	return a
}

// AnalyzeReader parses a whole export file and analyzes it.
func (a *Analyzer) AnalyzeReader(ctx context.Context, name string, r io.Reader, req Request) (Result, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return Result{}, fmt.Errorf("read input: %w", err)
	}
	t, format, err := source.Load(name, bytes.NewReader(content))
	if err != nil {
		a.metrics.ReportErrors.WithLabelValues("source").Inc()
		return Result{}, err
	}
	a.log.DebugContext(ctx, "input parsed", "name", name, "format", string(format), "rows", len(t.Rows))
	return a.Analyze(ctx, t, content, req)
}

// Analyze runs the pipeline over t. content identifies the input for the
// cache; when nil the rows themselves are hashed.
func (a *Analyzer) Analyze(ctx context.Context, t *source.Table, content []byte, req Request) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	d := req.Dialect
	if d == "" {
		detected, err := source.DetectDialect(t)
		if err != nil {
			a.metrics.ReportErrors.WithLabelValues("dialect").Inc()
			return Result{}, err
		}
		d = detected
	}
	if !d.Valid() {
		a.metrics.ReportErrors.WithLabelValues("dialect").Inc()
		return Result{}, fmt.Errorf("%w: %q", model.ErrUnknownDialect, string(d))
	}
	if req.Strategy == "" {
		req.Strategy = selector.All
	}

	key, err := a.cacheKey(d, t, content, req)
	if err != nil {
		return Result{}, err
	}
	if e, ok := a.store.Get(key); ok {
		a.metrics.CacheHits.Inc()
		a.log.InfoContext(ctx, "report served from cache", "report_id", e.Payload.ID, "dialect", string(d))
		return Result{Payload: e.Payload, Cached: true}, nil
	}
	a.metrics.CacheMisses.Inc()

	idx, rep, err := ingest.Ingest(d, t.Rows, ingest.WithSampleLimit(a.sampleLimit))
	if err != nil {
		a.metrics.ReportErrors.WithLabelValues("dialect").Inc()
		return Result{}, err
	}
	a.metrics.ObserveIngest(rep)
	a.log.InfoContext(ctx, "rows ingested",
		"dialect", string(d),
		"rows_read", rep.RowsRead,
		"orders_indexed", rep.OrdersIndexed,
		"skipped", rep.Skipped(),
		"days", len(idx.Days()),
	)
	if rep.FailedTimestamps.Count > 0 {
		a.log.WarnContext(ctx, "rows skipped due to unparseable dates",
			"count", rep.FailedTimestamps.Count, "samples", rep.FailedTimestamps.Samples)
	}

	days, err := selector.Select(idx, req.Strategy, req.Days)
	if err != nil {
		a.metrics.ReportErrors.WithLabelValues("selection").Inc()
		return Result{}, err
	}

	var opts []aggregate.Option
	if a.workers > 0 {
		opts = append(opts, aggregate.WithWorkers(a.workers))
	}
	if req.Window != nil {
		opts = append(opts, aggregate.WithinHours(*req.Window))
	}
	start := time.Now()
	res := aggregate.Aggregate(idx, days, opts...)
	var comparisons []aggregate.Comparison
	if req.Compare {
		comparisons = aggregate.CompareConsecutive(aggregate.PerDay(idx, days, opts...))
	}
	a.metrics.AggregateSec.Observe(time.Since(start).Seconds())

	payload := report.Build(report.Input{
		Dialect:       d,
		Strategy:      string(req.Strategy),
		AvailableDays: idx.Days(),
		Ingestion:     rep,
		Result:        res,
		Comparisons:   comparisons,
	}, report.WithClock(a.now))
	a.metrics.Reports.WithLabelValues(string(d), string(req.Strategy)).Inc()

	if err := a.store.Put(key, cache.Entry{Payload: payload, StoredAt: a.now()}); err != nil {
		a.log.WarnContext(ctx, "cache put failed", "err", err)
	}

	out := Result{Payload: payload}
	if a.sink != nil {
		if err := a.sink.Publish(ctx, payload); err != nil {
			a.metrics.PublishErrors.Inc()
			a.log.ErrorContext(ctx, "publish failed", "report_id", payload.ID, "err", err)
			out.PublishErr = fmt.Errorf("publish report %s: %w", payload.ID, err)
		} else {
			a.metrics.Published.Inc()
		}
	}
	a.log.InfoContext(ctx, "report built",
		"report_id", payload.ID,
		"strategy", string(req.Strategy),
		"selected_days", len(payload.SelectedDays),
		"skus", len(payload.Skus),
		"revenue", payload.Totals.Revenue,
	)
	return out, nil
}

func (a *Analyzer) cacheKey(d model.Dialect, t *source.Table, content []byte, req Request) (string, error) {
	if _, nop := a.store.(cache.NopStore); nop {
		return "", nil
	}
	if content == nil {
		// encoding/json sorts map keys, so equal rows hash equally.
		b, err := json.Marshal(t.Rows)
		if err != nil {
			return "", fmt.Errorf("hash rows: %w", err)
		}
		content = b
	}
	k := cache.Key{
		Dialect:  d,
		Strategy: string(req.Strategy),
		Compare:  req.Compare,
		Content:  content,
	}
	if req.Strategy == selector.Custom {
		k.Days = req.Days
	}
	if req.Window != nil {
		k.Window = req.Window.String()
	}
	return cache.Fingerprint(k), nil
}

// ErrInvalidDay rejects a requested day that is not YYYY-MM-DD.
var ErrInvalidDay = errors.New("service: invalid day")

// ParseRequest builds a Request from textual options as they arrive from
// flags or query strings. Explicit days without a strategy imply custom; a
// window with one bound open extends to the start or end of the day.
func ParseRequest(dialect, strategy string, days []string, from, to string, compare bool) (Request, error) {
	var req Request
	if dialect != "" {
		d, err := model.ParseDialect(dialect)
		if err != nil {
			return req, err
		}
		req.Dialect = d
	}
	st, err := selector.ParseStrategy(strategy)
	if err != nil {
		return req, err
	}
	req.Strategy = st
	for _, s := range days {
		if strings.TrimSpace(s) == "" {
			continue
		}
		d, err := model.ParseDay(s)
		if err != nil {
			return req, fmt.Errorf("%w: %q", ErrInvalidDay, s)
		}
		req.Days = append(req.Days, d)
	}
	if len(req.Days) > 0 && strings.TrimSpace(strategy) == "" {
		req.Strategy = selector.Custom
	}
	if from != "" || to != "" {
		if from == "" {
			from = "00:00"
		}
		if to == "" {
			to = "23:59"
		}
		w, err := aggregate.NewWindow(from, to)
		if err != nil {
			return req, err
		}
		req.Window = &w
	}
	req.Compare = compare
	return req, nil
}

// IsClientError reports whether err stems from the request or its input
// rather than from the service.
func IsClientError(err error) bool {
	for _, target := range []error{
		model.ErrUnknownDialect,
		source.ErrDialectUndetected,
		source.ErrEmpty,
		source.ErrUnknownFormat,
		source.ErrMalformed,
		selector.ErrTooFewDays,
		selector.ErrUnknownDay,
		selector.ErrUnknownStrategy,
		aggregate.ErrBadClock,
		aggregate.ErrBadWindow,
		ErrInvalidDay,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
