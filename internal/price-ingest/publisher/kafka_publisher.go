package publisher

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	skafka "github.com/radieske/kmarket/internal/shared/kafka"
	"github.com/radieske/kmarket/pkg/contracts/events"
)

// KafkaPublisher envia ticks e candles para tópicos separados, com o símbolo
// como key (ordem preservada por símbolo dentro da partição).
type KafkaPublisher struct {
	ticks   *kafka.Writer
	candles *kafka.Writer
	log     *zap.Logger
}

func NewKafkaPublisher(ticks, candles *kafka.Writer, log *zap.Logger) *KafkaPublisher {
	return &KafkaPublisher{ticks: ticks, candles: candles, log: log}
}

func (p *KafkaPublisher) PublishTick(ctx context.Context, e events.PriceTick) error {
	if err := skafka.WriteJSON(ctx, p.ticks, e.Symbol, e); err != nil {
		p.log.Error("failed to publish price tick", zap.String("symbol", e.Symbol), zap.Error(err))
		return err
	}
	return nil
}

func (p *KafkaPublisher) PublishCandle(ctx context.Context, e events.CandleClosed) error {
	if err := skafka.WriteJSON(ctx, p.candles, e.Symbol, e); err != nil {
		p.log.Error("failed to publish candle", zap.String("symbol", e.Symbol), zap.Error(err))
		return err
	}
	p.log.Debug("published candle", zap.String("symbol", e.Symbol), zap.Int64("ts", e.Timestamp))
	return nil
}

func (p *KafkaPublisher) Close() error {
	err := p.ticks.Close()
	if cerr := p.candles.Close(); err == nil {
		err = cerr
	}
	return err
}
