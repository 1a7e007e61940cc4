package service

import (
	"errors"
	"fmt"
	"log/slog"

	"orderstats/internal/cache"
	"orderstats/internal/config"
	"orderstats/internal/metrics"
	"orderstats/internal/publish"
)

// OpenCache returns the store named by cfg.Backend.
func OpenCache(cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "", "none":
		return cache.NopStore{}, nil
	case "memory":
		return cache.NewInMemoryStore(cfg.MaxEntries), nil
	case "pebble":
		s, err := cache.NewPebbleStore(cfg.Dir)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
}

// OpenSinks builds the configured report sinks. The returned close func
// releases Kafka writers; it is safe to call when no sink was opened.
func OpenSinks(cfg *config.Config) (publish.Sink, func() error, error) {
	var (
		sinks   []publish.Sink
		closers []func() error
	)
	if cfg.Publish.Dir != "" {
		fs, err := publish.NewFileSink(cfg.Publish.Dir, cfg.Publish.File)
		if err != nil {
			return nil, nil, fmt.Errorf("file sink: %w", err)
		}
		sinks = append(sinks, fs)
	}
	if cfg.Kafka.Enabled() {
		ks := publish.NewKafkaSink(cfg.Kafka.Brokers, cfg.Kafka.ReportTopic)
		sinks = append(sinks, ks)
		closers = append(closers, ks.Close)
	}
	closeAll := func() error {
		var errs []error
		for _, c := range closers {
			errs = append(errs, c())
		}
		return errors.Join(errs...)
	}
	switch len(sinks) {
	case 0:
		return nil, closeAll, nil
	case 1:
		return sinks[0], closeAll, nil
	}
	return publish.NewMultiSink(sinks...), closeAll, nil
}

// FromConfig wires an Analyzer with the cache and sinks cfg selects. The
// returned func closes both.
func FromConfig(cfg *config.Config, m *metrics.Registry, logger *slog.Logger) (*Analyzer, func() error, error) {
	store, err := OpenCache(cfg.Cache)
	if err != nil {
		return nil, nil, fmt.Errorf("open cache: %w", err)
	}
	sink, closeSinks, err := OpenSinks(cfg)
	if err != nil {
		_ = store.Close()
		return nil, nil, err
	}
	opts := []Option{
		WithCache(store),
		WithMetrics(m),
		WithLogger(logger),
		WithWorkers(cfg.Ingest.Workers),
		WithSampleLimit(cfg.Ingest.SampleLimit),
	}
	if sink != nil {
		opts = append(opts, WithSink(sink))
	}
	closeFn := func() error {
		return errors.Join(closeSinks(), store.Close())
	}
	return New(opts...), closeFn, nil
}
