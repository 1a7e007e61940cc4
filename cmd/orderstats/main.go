// Command orderstats analyzes one marketplace export and prints the report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"orderstats/internal/config"
	"orderstats/internal/logging"
	"orderstats/internal/metrics"
	"orderstats/internal/report"
	"orderstats/internal/service"
)

// Config holds CLI flags.
type Config struct {
	Input      string
	ConfigPath string
	Dialect    string // ""|fbo|fbs
	Strategy   string // all|pair|triple|busiest|custom
	Days       string // comma separated YYYY-MM-DD
	From       string
	To         string
	Compare    bool
	Output     string // "-" is stdout
	XLSX       string
	Cache      string // overrides cache.backend when set
	PublishDir string
}

func main() {
	cfg := readFlags()
	if err := run(cfg); err != nil {
		log.Fatalf("orderstats failed: %v", err)
	}
}

func readFlags() Config {
	var cfg Config
	flag.StringVar(&cfg.Input, "in", "-", "export file (csv, xlsx or json); - reads stdin")
	flag.StringVar(&cfg.ConfigPath, "config", "", "YAML config file (default $"+config.FileEnv+")")
	flag.StringVar(&cfg.Dialect, "dialect", "", "export dialect: fbo|fbs (detected when empty)")
	flag.StringVar(&cfg.Strategy, "strategy", "", "day selection: all|pair|triple|busiest|custom")
	flag.StringVar(&cfg.Days, "days", "", "comma separated days for the custom strategy")
	flag.StringVar(&cfg.From, "from", "", "window start HH:MM")
	flag.StringVar(&cfg.To, "to", "", "window end HH:MM")
	flag.BoolVar(&cfg.Compare, "compare", false, "add day-over-day comparisons")
	flag.StringVar(&cfg.Output, "out", "-", "JSON report destination; - writes stdout")
	flag.StringVar(&cfg.XLSX, "xlsx", "", "also write the report as a workbook to this path")
	flag.StringVar(&cfg.Cache, "cache", "", "cache backend override: none|memory|pebble")
	flag.StringVar(&cfg.PublishDir, "publish-dir", "", "append the report to a JSONL file in this directory")
	flag.Parse()
	return cfg
}

func run(cfg Config) error {
	appCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	if cfg.Cache != "" {
		appCfg.Cache.Backend = cfg.Cache
		if err := appCfg.Validate(); err != nil {
			return fmt.Errorf("cache flag: %w", err)
		}
	}
	if cfg.PublishDir != "" {
		appCfg.Publish.Dir = cfg.PublishDir
	}
	// stdout carries the report; logs go to stderr.
	logger := logging.New(appCfg.Logging, os.Stderr)

	var days []string
	if cfg.Days != "" {
		days = strings.Split(cfg.Days, ",")
	}
	req, err := service.ParseRequest(cfg.Dialect, cfg.Strategy, days, cfg.From, cfg.To, cfg.Compare)
	if err != nil {
		return err
	}

	analyzer, closeFn, err := service.FromConfig(appCfg, metrics.NewRegistry(), logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeFn(); err != nil {
			logger.Warn("close", "err", err)
		}
	}()

	in, name, err := openInput(cfg.Input)
	if err != nil {
		return err
	}
	defer in.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := analyzer.AnalyzeReader(ctx, name, in, req)
	if err != nil {
		return err
	}
	if res.PublishErr != nil {
		logger.Warn("report not published", "err", res.PublishErr)
	}
	if err := writeJSON(cfg.Output, res.Payload); err != nil {
		return err
	}
	if cfg.XLSX != "" {
		if err := writeXLSX(cfg.XLSX, res.Payload); err != nil {
			return err
		}
		logger.Info("workbook written", "path", cfg.XLSX)
	}
	return nil
}

func openInput(path string) (io.ReadCloser, string, error) {
	if path == "-" || path == "" {
		return io.NopCloser(os.Stdin), "", nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("open input: %w", err)
	}
	return f, path, nil
}

func writeJSON(path string, p report.Payload) error {
	w := io.Writer(os.Stdout)
	if path != "-" && path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(&p); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

func writeXLSX(path string, p report.Payload) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create workbook: %w", err)
	}
	if err := report.WriteXLSX(f, p); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
