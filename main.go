// Command quantdriver wires the Strategy Runner, Pending-Order Worker, and
// control-plane API together into one process and starts them side by side.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"quantdriver/api"
	"quantdriver/config"
	"quantdriver/entryfilter"
	"quantdriver/indicator"
	"quantdriver/logger"
	"quantdriver/marketdata"
	"quantdriver/metrics"
	"quantdriver/notifier"
	"quantdriver/runner"
	"quantdriver/store"
	"quantdriver/worker"
)

func main() {
	cfg := config.Load()
	metrics.Init()

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		logger.ErrorErr("failed to open store", err)
		os.Exit(1)
	}
	defer st.Close()

	klines := marketdata.NewBinanceKlineSource(cfg.BinanceAPIKey, cfg.BinanceSecretKey)
	priceSource := marketdata.NewWSPriceSource(cfg.PriceStreamURL, marketdata.DecodeSimpleTicker)
	defer priceSource.Close()
	prices := marketdata.NewPriceCache(priceSource, cfg.PriceCacheTTL())

	var eval indicator.Evaluator
	if cfg.IndicatorEvaluatorURL != "" {
		eval = indicator.NewHTTPEvaluator(cfg.IndicatorEvaluatorURL, cfg.IndicatorEvaluatorKey)
	}

	var filter entryfilter.Filter
	if cfg.EntryFilterURL != "" {
		filter = entryfilter.NewHTTPFilter(cfg.EntryFilterURL, cfg.EntryFilterKey)
	}

	notify := notifier.New()

	sup := runner.NewSupervisor(st, klines, prices, eval, filter, cfg)
	if err := sup.Resume(); err != nil {
		logger.ErrorErr("failed to resume running strategies", err)
	}

	w := worker.New(st, cfg, notify, prices)
	go w.Run()
	defer w.Stop()

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}
	go func() {
		logger.Infof("metrics server listening on %s", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.ErrorErr("metrics server stopped", err)
		}
	}()

	apiServer := api.NewServer(st, sup, cfg)
	go func() {
		if err := apiServer.Run(); err != nil {
			logger.ErrorErr("api server stopped", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = apiServer.Shutdown(ctx)
	_ = metricsServer.Shutdown(ctx)
}
