package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/radieske/kmarket/internal/price-ingest/publisher"
	"github.com/radieske/kmarket/internal/price-ingest/service"
	"github.com/radieske/kmarket/internal/shared/config"
	"github.com/radieske/kmarket/internal/shared/kafka"
	"github.com/radieske/kmarket/internal/shared/logger"
	"github.com/radieske/kmarket/internal/shared/metrics"
)

var (
	ingested = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_messages_total",
		Help: "mensagens do feed republicadas no kafka",
	}, []string{"type"})
	ingestErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ingest_errors_total",
		Help: "erros por estágio",
	}, []string{"stage"})
)

func main() {
	cfg := config.Load()
	log, err := logger.New(cfg.ServiceName, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	prometheus.MustRegister(ingested, ingestErrors)
	log.Info("Kafka brokers", zap.String("brokers", cfg.KafkaBrokers))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// criação de tópicos apenas em ambiente local/dev
	brokers := kafka.Brokers(cfg.KafkaBrokers)
	if len(brokers) == 0 {
		log.Fatal("kafka brokers not provided")
	}
	if cfg.Env == "local" || cfg.Env == "dev" {
		for _, topic := range []string{cfg.TopicPriceTicks, cfg.TopicCandleClosed} {
			tctx, cancel := context.WithTimeout(ctx, 10*time.Second)
			if err := kafka.EnsureTopic(tctx, brokers[0], topic); err != nil {
				log.Warn("failed to create kafka topic", zap.String("topic", topic), zap.Error(err))
			}
			cancel()
		}
	}

	pub := publisher.NewKafkaPublisher(
		kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicPriceTicks),
		kafka.NewWriter(cfg.KafkaBrokers, cfg.TopicCandleClosed),
		log,
	)
	defer pub.Close()

	wsClient := &service.WSClient{
		URL:       cfg.FeedWSURL,
		Log:       log,
		Publisher: pub,
		OnMessage: func(kind string) { ingested.WithLabelValues(kind).Inc() },
		OnError:   func(stage string) { ingestErrors.WithLabelValues(stage).Inc() },
	}

	metricsSrv := metrics.StartMetricsServer(log, cfg.MetricsPort)
	defer metricsSrv.Close()

	wsClient.Start(ctx)
	log.Info("shutdown signal received")
}
