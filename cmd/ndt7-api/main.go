package main

import (
	"NDT7Spectra/internal/config"
	"NDT7Spectra/internal/logging"
	"NDT7Spectra/internal/metrics"
	"NDT7Spectra/internal/query"
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/apex/log"
)

var (
	app        = kingpin.New("ndt7-api", "HTTP service extracting NDT7 features and serving stored datasets.")
	configPath = app.Flag("config", "Path to the YAML config file.").Short('c').Default("configs/config.yaml").String()
	listenAddr = app.Flag("listen", "Listen address, overrides api.listen_addr.").String()
	logLevel   = app.Flag("log-level", "Log level, overrides log.level.").String()
)

func main() {
	kingpin.MustParse(app.Parse(os.Args[1:]))

	// Load configuration
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if *listenAddr != "" {
		cfg.API.ListenAddr = *listenAddr
	}
	if *logLevel != "" {
		cfg.Log.Level = *logLevel
	}
	if err := logging.Setup(cfg.Log.Level, cfg.Log.Format); err != nil {
		log.WithError(err).Fatal("failed to set up logging")
	}

	handler := &APIHandler{
		metrics:          metrics.New(),
		defaultThreshold: config.DefaultThresholds[0],
	}
	if len(cfg.Pipeline.Thresholds) > 0 {
		handler.defaultThreshold = cfg.Pipeline.Thresholds[0]
	}

	// Dataset queries need ClickHouse; extraction works without it.
	if cfg.API.ClickHouse.Host != "" {
		handler.querier, err = query.NewClickHouseQuerier(cfg.API.ClickHouse)
		if err != nil {
			log.WithError(err).Fatal("failed to create querier")
		}
	} else {
		log.Warn("no ClickHouse configured for the API, dataset queries are disabled")
	}

	// Start HTTP server
	server := &http.Server{
		Addr:    cfg.API.ListenAddr,
		Handler: NewRouter(handler),
	}

	go func() {
		log.Infof("API server starting on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatalf("could not listen on %s", server.Addr)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("API server shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}
	log.Info("API server exited")
}
