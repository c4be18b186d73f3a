package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	simulator "github.com/radieske/kmarket/internal/price-feed-simulator"
	"github.com/radieske/kmarket/internal/shared/config"
	"github.com/radieske/kmarket/internal/shared/logger"
	"github.com/radieske/kmarket/internal/shared/metrics"
)

var (
	// Métricas Prometheus para monitoramento de conexões e mensagens
	wsConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "feed_ws_connections",
		Help: "Clientes WebSocket conectados",
	})
	wsMessagesSent = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feed_ws_messages_sent_total",
		Help: "Total de mensagens WS enviadas",
	})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(wsConnections, wsMessagesSent)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	start := make(map[string]decimal.Decimal, len(cfg.Feed.StartPrices))
	for s, v := range cfg.Feed.StartPrices {
		p, err := decimal.NewFromString(v)
		if err != nil {
			log.Warn("invalid start price", zap.String("symbol", s), zap.String("value", v))
			continue
		}
		start[s] = p
	}
	walker := simulator.NewWalker(cfg.ServiceName, cfg.Feed.Volatility, time.Now().UnixNano(), start, cfg.Market.Symbols)

	hub := simulator.NewHub(log)
	hub.OnConnect = wsConnections.Inc
	hub.OnDisconnect = wsConnections.Dec
	hub.OnSent = wsMessagesSent.Inc

	go func() {
		interval := time.Duration(cfg.Feed.IntervalMs) * time.Millisecond
		if err := simulator.Run(ctx, log, walker, hub, interval); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("price feed stopped", zap.Error(err))
		}
	}()

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort)

	appMux := http.NewServeMux()
	appMux.HandleFunc("/ws", hub.HandleWS)
	srv := &http.Server{Addr: ":" + cfg.HTTPPort, Handler: appMux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
		_ = metricsSrv.Shutdown(sctx)
	}()

	log.Info("price feed simulator running",
		zap.String("addr", srv.Addr),
		zap.Strings("symbols", cfg.Market.Symbols),
	)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal("public server error", zap.Error(err))
	}
}
