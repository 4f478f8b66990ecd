// Command rate-watcher keeps today's exchange rate fresh across day rollovers
// and exposes health and Prometheus metrics.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"gastos/internal/app"
	"gastos/internal/cli"
	applog "gastos/internal/log"
	"gastos/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(applog.ComponentWatcher)
	logger.Info("Starting rate-watcher")
	cfg := cli.LoadAndValidateConfig(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a, err := app.New(context.Background(), cfg, app.Options{Logger: logger, Registry: reg})
	if err != nil {
		logger.Error("Failed to initialize application",
			applog.FieldOperation, applog.OpStartup,
			applog.FieldError, err)
		os.Exit(1)
	}

	sess, _, err := a.Restore(context.Background())
	if err != nil || sess.IsEmpty() {
		logger.Error("No stored session, run `gastos login` first",
			applog.FieldOperation, applog.OpRestore,
			applog.FieldError, err)
		_ = a.Close()
		os.Exit(1)
	}
	logger.Info("Session restored", applog.FieldUsername, sess.Username)
	a.StartCacheCleanup(cfg.ResumeCacheTTL)

	watcher := worker.NewRateWatcher(a.Rates, cfg.WatchInterval, nil, logger)
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           watcher.Routes(reg),
		ReadHeaderTimeout: 5 * time.Second,
	}

	var wg sync.WaitGroup
	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("HTTP server shutdown failed", applog.FieldError, err)
		}
		wg.Wait()
		if err := a.Close(); err != nil {
			logger.Warn("Cleanup failed", applog.FieldOperation, applog.OpShutdown, applog.FieldError, err)
		}
	})

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = watcher.Run(ctx)
	}()

	if a.Events != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := a.Events.ConsumeWithRetry(ctx, watcher.HandleEvent)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("Event consumption stopped", applog.FieldOperation, applog.OpConsume, applog.FieldError, err)
			}
		}()
	} else {
		logger.Info("AMQP disabled, relying on periodic checks only")
	}

	go func() {
		logger.Info("Serving health and metrics", "addr", cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", applog.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
