package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orderstats/internal/cache"
	"orderstats/internal/config"
	"orderstats/internal/logging"
	"orderstats/internal/metrics"
	"orderstats/internal/publish"
)

func TestOpenCache(t *testing.T) {
	s, err := OpenCache(config.CacheConfig{Backend: "none"})
	require.NoError(t, err)
	assert.IsType(t, cache.NopStore{}, s)

	s, err = OpenCache(config.CacheConfig{Backend: "memory", MaxEntries: 4})
	require.NoError(t, err)
	assert.IsType(t, &cache.InMemoryStore{}, s)

	s, err = OpenCache(config.CacheConfig{Backend: "pebble", Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &cache.PebbleStore{}, s)
	require.NoError(t, s.Close())

	_, err = OpenCache(config.CacheConfig{Backend: "redis"})
	assert.Error(t, err)
}

func TestOpenSinks(t *testing.T) {
	cfg := config.Default()
	sink, closeFn, err := OpenSinks(cfg)
	require.NoError(t, err)
	assert.Nil(t, sink)
	assert.NoError(t, closeFn())

	cfg.Publish.Dir = t.TempDir()
	sink, _, err = OpenSinks(cfg)
	require.NoError(t, err)
	assert.IsType(t, &publish.FileSink{}, sink)

	cfg.Kafka.Brokers = "localhost:9092"
	sink, closeFn, err = OpenSinks(cfg)
	require.NoError(t, err)
	multi, ok := sink.(*publish.MultiSink)
	require.True(t, ok)
	assert.Equal(t, 2, multi.Len())
	assert.NoError(t, closeFn())
}

func TestFromConfig_PublishesToFile(t *testing.T) {
	cfg := config.Default()
	cfg.Publish.Dir = t.TempDir()
	a, closeFn, err := FromConfig(cfg, metrics.NewRegistry(), logging.Discard())
	require.NoError(t, err)
	defer closeFn()

	res, err := a.AnalyzeReader(context.Background(), "x.csv", strings.NewReader(fbsCSV), Request{})
	require.NoError(t, err)
	require.NoError(t, res.PublishErr)

	b, err := os.ReadFile(filepath.Join(cfg.Publish.Dir, cfg.Publish.File))
	require.NoError(t, err)
	assert.Contains(t, string(b), res.Payload.ID)
}

func TestParseRequest(t *testing.T) {
	req, err := ParseRequest("fbo", "", []string{"2025-10-02", " "}, "9:00", "", true)
	require.NoError(t, err)
	assert.Equal(t, "custom", string(req.Strategy))
	assert.Len(t, req.Days, 1)
	require.NotNil(t, req.Window)
	assert.Equal(t, "09:00-23:59", req.Window.String())
	assert.True(t, req.Compare)

	_, err = ParseRequest("", "all", []string{"02.10.2025"}, "", "", false)
	assert.ErrorIs(t, err, ErrInvalidDay)
	assert.True(t, IsClientError(err))
}
