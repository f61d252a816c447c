package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"

	"techcal/internal/config"
	"techcal/internal/enrich"
	"techcal/internal/feed"
	"techcal/internal/logging"
	"techcal/internal/metrics"
	"techcal/internal/pipeline"
	"techcal/internal/store"
	"techcal/internal/sync"
	"techcal/internal/web"
)

// flagConfig holds CLI flag values.
type flagConfig struct {
	configPath string
	listen     string
	once       bool
}

func main() {
	flags := parseFlags()

	bootLog := logging.New("info")
	config.LoadEnv(bootLog)

	conf, err := config.Load(flags.configPath)
	if err != nil {
		bootLog.WithError(err).WithField("config_path", flags.configPath).Error("failed to load config")
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	log := logging.NewWithService(conf.LogLevel, "techcal")

	loc, err := conf.Location()
	if err != nil {
		log.WithError(err).WithField("timezone", conf.Timezone).Error("invalid timezone")
		os.Exit(1)
	}

	log.WithFields(logging.Fields{
		"listen":      conf.Listen,
		"timezone":    conf.Timezone,
		"refresh":     conf.Refresh,
		"window_days": conf.WindowDays,
		"database":    conf.Database,
		"once":        flags.once,
	}).Info("techcal starting")

	st, err := store.Open(conf.Database)
	if err != nil {
		log.WithError(err).Error("failed to open event store")
		os.Exit(1)
	}
	defer st.Close()

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	pipe := pipeline.New(
		conf, loc, st,
		feed.NewClient(conf.CacheDir, conf.MinFetchInterval, conf.FetchTimeout, log),
		enrich.New(conf.ScrapeTimeout, loc, log),
		sync.NewEngine(st, loc, log),
		m, log,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.WithField("signal", sig.String()).Info("signal received, shutting down")
		cancel()
	}()

	if flags.once {
		if _, err := pipe.Run(ctx); err != nil {
			log.WithError(err).Error("pipeline run failed")
			os.Exit(1)
		}
		return
	}

	// Daemon mode: one run at startup, then on the cron schedule, with
	// the read-only API serving throughout.
	if _, err := pipe.Run(ctx); err != nil {
		log.WithError(err).Error("initial pipeline run failed")
	}

	sched := cron.New()
	if _, err := sched.AddFunc(conf.Refresh, func() {
		if _, err := pipe.Run(ctx); err != nil {
			log.WithError(err).Error("scheduled pipeline run failed")
		}
	}); err != nil {
		log.WithError(err).WithField("refresh", conf.Refresh).Error("invalid refresh schedule")
		os.Exit(1)
	}
	sched.Start()
	defer sched.Stop()

	srv := web.NewServer(st, pipe, loc, reg, log)
	if err := srv.Start(ctx, conf.Listen); err != nil {
		log.WithError(err).Error("HTTP server failed")
		os.Exit(1)
	}

	log.Info("techcal exiting")
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "./config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Run one pipeline pass and exit")

	flag.Parse()

	return cfg
}
