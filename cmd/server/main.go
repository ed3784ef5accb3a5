package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/handterm/handterm/internal/infrastructure/config"
	"github.com/handterm/handterm/internal/infrastructure/logging"
	"github.com/handterm/handterm/internal/infrastructure/monitoring"
	"github.com/handterm/handterm/internal/server"
	"github.com/handterm/handterm/internal/shell"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg := config.LoadOrDefault()

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	metrics := monitoring.NewMetrics()
	engine := shell.New(cfg, logger, metrics)
	srv := server.New(cfg, engine, logger, metrics)

	errs := make(chan error, 1)
	go func() {
		errs <- srv.Run()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	select {
	case s := <-sig:
		logger.Info("signal received", zap.String("signal", s.String()))
	case <-engine.Done():
		logger.Info("engine quit requested")
	case err := <-errs:
		if err != nil {
			logger.Error("server failed", zap.Error(err))
		}
	}

	engine.Quit()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("shutdown incomplete", zap.Error(err))
	}
}
