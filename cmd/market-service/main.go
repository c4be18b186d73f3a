package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/kmarket/internal/bets"
	"github.com/radieske/kmarket/internal/feed"
	"github.com/radieske/kmarket/internal/httpapi"
	"github.com/radieske/kmarket/internal/ledger"
	"github.com/radieske/kmarket/internal/market/grid"
	"github.com/radieske/kmarket/internal/market/odds"
	"github.com/radieske/kmarket/internal/market/price"
	"github.com/radieske/kmarket/internal/producer"
	"github.com/radieske/kmarket/internal/settlement"
	"github.com/radieske/kmarket/internal/shared/cache"
	"github.com/radieske/kmarket/internal/shared/config"
	"github.com/radieske/kmarket/internal/shared/db"
	"github.com/radieske/kmarket/internal/shared/kafka"
	"github.com/radieske/kmarket/internal/shared/logger"
	"github.com/radieske/kmarket/internal/shared/metrics"
	"github.com/radieske/kmarket/internal/store"
	"github.com/radieske/kmarket/internal/stream"
	"github.com/radieske/kmarket/internal/withdraw"
)

func main() {
	// carrega config
	cfg := config.Load()

	// inicia logger
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(fmt.Errorf("logger init: %w", err))
	}
	defer log.Sync()

	log.Info("starting service", zap.String("service", cfg.ServiceName), zap.String("env", cfg.Env))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// banco: postgres em produção, sqlite para rodar sem infraestrutura
	dialect, ok := store.ParseDialect(cfg.DBDriver)
	if !ok {
		log.Fatal("unknown DB_DRIVER", zap.String("driver", cfg.DBDriver))
	}
	var sqlDB *sql.DB
	if dialect == store.Postgres {
		sqlDB, err = db.ConnectPostgres(cfg.PostgresDSN)
	} else {
		sqlDB, err = db.ConnectSQLite(cfg.SQLiteDSN)
	}
	if err != nil {
		log.Fatal("failed to connect database", zap.Error(err))
	}
	st := store.New(sqlDB, dialect)
	defer st.Close()
	if err := st.Migrate(ctx); err != nil {
		log.Fatal("migrate", zap.Error(err))
	}
	log.Info("database ready", zap.String("driver", dialect.String()))

	// conecta com cache Redis
	rdb, err := cache.ConnectRedis(cfg.RedisAddr)
	if err != nil {
		log.Fatal("failed to connect redis", zap.Error(err))
	}
	defer rdb.Close()
	log.Info("redis connected")

	// Kafka
	placedW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetPlaced)
	settledW := kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicBetSettled)
	events := producer.NewKafkaPublisher(placedW, settledW)
	defer events.Close()

	ticksR := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicPriceTicks, cfg.ServiceName+"-ticks")
	defer ticksR.Close()
	candlesR := kafka.NewReader(cfg.KafkaBrokers, cfg.TopicCandleClosed, cfg.ServiceName+"-candles")
	defer candlesR.Close()

	m := metrics.NewMarket(prometheus.DefaultRegisterer)

	// preço vivo; o espelho no Redis evita um grid vazio logo após o restart
	prices := price.NewStore(time.Duration(cfg.Market.PriceMaxAge) * time.Millisecond)
	mirror := price.NewRedisMirror(rdb, time.Duration(cfg.RedisPriceKeyTTLMs)*time.Millisecond)
	if err := mirror.Warm(ctx, prices, cfg.Market.Symbols); err != nil {
		log.Warn("price warmup failed", zap.Error(err))
	}

	tickSize, err := decimal.NewFromString(cfg.Market.TickSizePct)
	if err != nil || !tickSize.IsPositive() {
		log.Fatal("invalid GRID_TICK_SIZE_PCT", zap.String("value", cfg.Market.TickSizePct))
	}
	oddsCfg := odds.DefaultConfig()
	oddsCfg.TickSizePct = tickSize.InexactFloat64()
	oddsCfg.LockSec = float64(cfg.Market.LockSec)
	oddsCfg.WindowSec = float64(cfg.Market.WindowSec)
	engine := odds.NewEngine(oddsCfg)

	var grids []*grid.Grid
	for _, s := range cfg.Market.Symbols {
		grids = append(grids, grid.New(grid.Config{
			Symbol:      s,
			Window:      time.Duration(cfg.Market.WindowSec) * time.Second,
			Lock:        time.Duration(cfg.Market.LockSec) * time.Second,
			Grace:       time.Duration(cfg.Market.GraceSec) * time.Second,
			TickRange:   cfg.Market.TickRange,
			TickSizePct: tickSize,
		}, engine, prices))
	}
	registry := grid.NewRegistry(grids...)

	driver := &grid.Driver{
		Log:       log,
		Registry:  registry,
		Interval:  time.Second,
		Publisher: stream.NewRedisPublisher(rdb, cfg.RedisGridChannel),
		OnTick: func(symbol string, n int) {
			m.DriverTicks.Inc()
			m.LiveSlices.WithLabelValues(symbol).Set(float64(n))
		},
		OnSkip: func(string) { m.DriverSkips.Inc() },
	}

	book := ledger.NewBook(st)
	repo := bets.NewRepo(st)

	// TTL zero mantém a janela de dedup só em memória (instância única)
	var dedup settlement.Deduper = settlement.NewMemoryDeduper(cfg.Settlement.DedupSize)
	if cfg.Settlement.DedupTTL > 0 {
		dedup = settlement.NewRedisDeduper(rdb, time.Duration(cfg.Settlement.DedupTTL)*time.Second)
	}
	pipeline := &settlement.Pipeline{
		Log:         log,
		DB:          st,
		Book:        book,
		Repo:        repo,
		Grids:       registry,
		Dedup:       dedup,
		Events:      events,
		TickSizePct: tickSize,
		BatchSize:   cfg.Settlement.BatchSize,
		OnSettled:   func(symbol, outcome string) { m.Settlements.WithLabelValues(symbol, outcome).Inc() },
		OnError:     func(symbol string) { m.SettlementErrors.WithLabelValues(symbol).Inc() },
		OnDuplicate: func(symbol string) { m.DuplicateCandles.WithLabelValues(symbol).Inc() },
	}
	dispatcher := settlement.NewDispatcher(log, pipeline, cfg.Market.Symbols, 64)

	proc := &feed.Processor{
		Log:        log,
		Ticks:      ticksR,
		Candles:    candlesR,
		Prices:     prices,
		Mirror:     mirror,
		Sink:       dispatcher,
		OnConsumed: func(topic string) { m.FeedConsumed.WithLabelValues(topic).Inc() },
		OnError:    func(stage string) { m.FeedErrors.WithLabelValues(stage).Inc() },
	}

	acceptor := &bets.Acceptor{
		Log:        log,
		DB:         st,
		Book:       book,
		Repo:       repo,
		Grids:      registry,
		Events:     events,
		MinAmount:  cfg.Market.BetMinAmount,
		MaxAmount:  cfg.Market.BetMaxAmount,
		MaxGridAge: time.Duration(cfg.Market.GridMaxAge) * time.Millisecond,
		OnPlaced:   func(symbol string) { m.BetsPlaced.WithLabelValues(symbol).Inc() },
		OnRejected: func(code string) { m.BetRejections.WithLabelValues(code).Inc() },
	}

	// saque só é habilitado com chave do assinador configurada
	var withdrawals *withdraw.Service
	if cfg.Withdraw.SignerKey != "" {
		signer, err := withdraw.NewSigner(cfg.Withdraw.SignerKey, cfg.Withdraw.ChainID, cfg.Withdraw.VaultAddress)
		if err != nil {
			log.Fatal("withdraw signer", zap.Error(err))
		}
		withdrawals = &withdraw.Service{
			Log:    log,
			DB:     st,
			Book:   book,
			Signer: signer,
			TTL:    time.Duration(cfg.Withdraw.CouponTTLSec) * time.Second,
		}
		log.Info("withdrawals enabled", zap.String("signer", signer.Address().Hex()))
	}

	// WebSocket (origin liberada em ambiente local)
	hub := stream.NewHub(log, func(r *http.Request) bool { return true })
	hub.Initial = func(symbol string) ([]byte, bool) {
		g, ok := registry.Get(symbol)
		if !ok {
			return nil, false
		}
		b, err := stream.Encode(g.Snapshot())
		return b, err == nil
	}
	hub.OnConnect = m.StreamSubscribers.Inc
	hub.OnDisconnect = m.StreamSubscribers.Dec
	stream.StartRedisSubscriber(ctx, log, rdb, cfg.RedisGridChannel, hub)

	api := &httpapi.API{
		Log:               log,
		Grids:             registry,
		Acceptor:          acceptor,
		Bets:              repo,
		Book:              book,
		Withdraw:          withdrawals,
		Hub:               hub,
		OnDepositReplayed: m.DepositsReplayed.Inc,
	}
	apiSrv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           api.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// métricas e health
	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort,
		st.Ping,
		func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return driver.Run(gctx) })
	g.Go(func() error { return dispatcher.Run(gctx) })
	g.Go(func() error { return proc.RunTicks(gctx) })
	g.Go(func() error { return proc.RunCandles(gctx) })
	g.Go(func() error {
		log.Info("market-service listening", zap.String("addr", apiSrv.Addr))
		if err := apiSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("api: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdown(log, apiSrv, metricsSrv)
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("market-service stopped", zap.Error(err))
		return
	}
	log.Info("market-service stopped")
}

func shutdown(log *zap.Logger, srvs ...*http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, s := range srvs {
		if err := s.Shutdown(ctx); err != nil {
			log.Warn("shutdown", zap.String("addr", s.Addr), zap.Error(err))
		}
	}
}
