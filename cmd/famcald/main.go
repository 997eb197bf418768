package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"famcal/internal/config"
	"famcal/internal/ics"
	appLog "famcal/internal/log"
	"famcal/internal/model"
	"famcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	filter     string
	logLevel   string
}

func main() {
	flags := parseFlags()
	appLog.SetLevel(appLog.LevelFromString(flags.logLevel))
	appLog.Info("famcald starting", "version", "1.0.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"refresh", conf.RefreshCron,
		"fetch_timeout_seconds", conf.FetchTimeoutSeconds,
		"max_concurrent_fetches", conf.MaxConcurrentFetches,
		"default_filter", conf.DefaultFilter,
		"feed_count", len(conf.Feeds),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once {
		if err := runOnce(ctx, conf, flags.filter); err != nil {
			appLog.Error("single-shot merge failed", err)
			os.Exit(1)
		}
		return
	}

	server := web.NewServer(conf)

	// Prewarm the merged timeline on the configured cron schedule so
	// interactive requests usually hit a fresh snapshot.
	var c *cron.Cron
	if conf.RefreshCron != "" && len(conf.Feeds) > 0 {
		c = cron.New()
		if _, err := c.AddFunc(conf.RefreshCron, func() { server.RefreshTimeline(ctx) }); err != nil {
			appLog.Error("invalid refresh cron expression", err, "refresh", conf.RefreshCron)
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
		go server.RefreshTimeline(ctx)
	}

	httpServer := &http.Server{
		Addr:              conf.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	appLog.Info("starting HTTP server", "listen", "http://"+conf.Listen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		appLog.Error("HTTP server failed", err)
		os.Exit(1)
	}
	appLog.Info("famcald exiting")
}

// runOnce performs a single merge across the configured feeds and writes
// the result to stdout as JSON.
func runOnce(ctx context.Context, conf *config.Config, filter string) error {
	mode, err := ics.ParseFilterMode(filter)
	if err != nil {
		return err
	}

	fetcher := ics.NewFetcher(time.Duration(conf.FetchTimeoutSeconds) * time.Second)
	merger := ics.NewMerger(fetcher, conf.MaxConcurrentFetches)
	entries, feedErrs := merger.MergeAll(ctx, conf.FeedList(), mode, model.DateOf(time.Now()))

	type output struct {
		Events []model.TimelineEntry `json:"events"`
		Errors []string              `json:"errors,omitempty"`
		Total  int                   `json:"total"`
	}
	out := output{Events: entries, Total: len(entries)}
	for _, fe := range feedErrs {
		out.Errors = append(out.Errors, fe.Error())
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/famcald/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Merge the configured feeds once, print JSON and exit")
	flag.StringVar(&cfg.filter, "filter", "all", "Date filter for -once (all, upcoming, this_week, this_month)")
	flag.StringVar(&cfg.logLevel, "log-level", "info", "Log level (debug, info, error)")

	flag.Parse()
	return cfg
}
