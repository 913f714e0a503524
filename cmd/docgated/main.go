// Command docgated runs the gateway: it loads configuration, wires the
// backend pool, health checker, metrics and admin API, starts the
// client-facing listener, and shuts everything down in order on SIGINT or
// SIGTERM — listener, then sessions drain, then health checker, then pool,
// then admin API — matching spec §4.9/§4.14's ordering.
package main

import (
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docgate/internal/api"
	"docgate/internal/backend"
	"docgate/internal/config"
	"docgate/internal/gateway"
	"docgate/internal/health"
	"docgate/internal/metrics"
	"docgate/internal/sqltranslate"
)

const shutdownDrainTimeout = 10 * time.Second

func main() {
	configPath := flag.String("config", "configs/docgate.yaml", "path to configuration file")
	flag.Parse()

	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, nil)))
	slog.Info("docgate starting")

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("configuration loaded", "path", *configPath, "backend", cfg.Backend.Redacted())

	m := metrics.New()

	pool := backend.New(backend.Config{
		Host:                cfg.Backend.Host,
		Port:                cfg.Backend.Port,
		Database:            cfg.Backend.DBName,
		Username:            cfg.Backend.Username,
		Password:            cfg.Backend.Password,
		Min:                 cfg.Pool.MinConnections,
		Max:                 cfg.Pool.MaxConnections,
		Initial:             cfg.Pool.MinConnections,
		ConnectTimeout:      cfg.Pool.ConnectTimeout,
		IdleTimeout:         cfg.Pool.IdleTimeout,
		MaxLifetime:         cfg.Pool.MaxLifetime,
		ValidationInterval:  cfg.Pool.ValidationInterval,
		ValidateConnections: cfg.Pool.ValidateConnections,
	})
	pool.SetOnExhausted(func() {
		m.PoolExhausted()
	})

	statsDone := make(chan struct{})
	go runPoolStatsLoop(pool, m, statsDone)

	hc := health.NewChecker(pool, m, cfg.Health)
	hc.Start()

	translator := sqltranslate.NewPostgres()

	gw := gateway.New(pool, translator, m, cfg.Listen, cfg.Ping.TiesToBackend)
	if err := gw.Listen(cfg.Listen.Bind, cfg.Listen.Port); err != nil {
		slog.Error("failed to start gateway listener", "err", err)
		os.Exit(1)
	}

	apiServer := api.NewServer(pool, hc, m, cfg.Listen, cfg.Backend)
	if err := apiServer.Start(cfg.Listen.APIBind, cfg.Listen.APIPort); err != nil {
		slog.Error("failed to start admin API", "err", err)
		os.Exit(1)
	}

	configWatcher, err := config.NewWatcher(*configPath, func(newCfg *config.Config) {
		slog.Info("config changed on disk; restart docgated to apply pool/listen changes")
		_ = newCfg
	})
	if err != nil {
		slog.Warn("config hot-reload not available", "err", err)
	}

	slog.Info("docgate ready", "listen", cfg.Listen.Port, "api", cfg.Listen.APIPort)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	slog.Info("received signal, shutting down", "signal", sig)

	if configWatcher != nil {
		configWatcher.Stop()
	}
	gw.Stop(shutdownDrainTimeout)
	hc.Stop()
	pool.Shutdown(shutdownDrainTimeout)
	apiServer.Stop()
	close(statsDone)

	slog.Info("docgate stopped")
}

func runPoolStatsLoop(pool *backend.Pool, m *metrics.Collector, done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s := pool.Stats()
			m.UpdatePoolStats(s.Active, s.Idle, s.Total, s.Waiting)
		case <-done:
			return
		}
	}
}
