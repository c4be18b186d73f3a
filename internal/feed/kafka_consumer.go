// Package feed consome o feed de preços do Kafka e alimenta o price store e a
// liquidação.
package feed

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/kmarket/internal/market/price"
	"github.com/radieske/kmarket/pkg/contracts/events"
)

// MessageReader é o subconjunto do *kafka.Reader usado aqui
type MessageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
}

type CandleSink interface {
	Submit(ctx context.Context, ev events.CandleClosed) error
}

// PriceMirror replica o último preço fora do processo (Redis); opcional
type PriceMirror interface {
	Set(ctx context.Context, symbol string, p decimal.Decimal, at time.Time) error
}

// Processor consome os tópicos de ticks e candles. Os callbacks alimentam métricas.
type Processor struct {
	Log     *zap.Logger
	Ticks   MessageReader
	Candles MessageReader
	Prices  *price.Store
	Mirror  PriceMirror
	Sink    CandleSink

	OnConsumed func(topic string)
	OnError    func(stage string)
}

// RunTicks bloqueia até o contexto ser cancelado
func (p *Processor) RunTicks(ctx context.Context) error {
	return p.loop(ctx, "price_ticks", p.Ticks, p.handleTick)
}

func (p *Processor) RunCandles(ctx context.Context) error {
	return p.loop(ctx, "candle_closed", p.Candles, p.handleCandle)
}

func (p *Processor) loop(ctx context.Context, topic string, r MessageReader, handle func(context.Context, []byte) (string, error)) error {
	for {
		m, err := r.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka read failed", zap.String("topic", topic), zap.Error(err))
			p.fail("read")
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(500 * time.Millisecond):
			}
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed(topic)
		}
		if stage, err := handle(ctx, m.Value); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("feed message dropped", zap.String("topic", topic), zap.String("stage", stage), zap.Error(err))
			p.fail(stage)
		}
	}
}

func (p *Processor) fail(stage string) {
	if p.OnError != nil {
		p.OnError(stage)
	}
}

func (p *Processor) handleTick(ctx context.Context, raw []byte) (string, error) {
	var ev events.PriceTick
	if err := json.Unmarshal(raw, &ev); err != nil {
		return "decode", err
	}
	px, err := decimal.NewFromString(ev.Price)
	if err != nil {
		return "decode", err
	}
	symbol := strings.ToUpper(ev.Symbol)
	if !p.Prices.Set(symbol, px, ev.Ts) {
		return "", nil // fora de ordem ou preço inválido
	}
	if p.Mirror != nil {
		if err := p.Mirror.Set(ctx, symbol, px, ev.Ts); err != nil {
			// o store local já foi atualizado; o espelho é best effort
			return "mirror", err
		}
	}
	return "", nil
}

func (p *Processor) handleCandle(ctx context.Context, raw []byte) (string, error) {
	var ev events.CandleClosed
	if err := json.Unmarshal(raw, &ev); err != nil {
		return "decode", err
	}
	ev.Symbol = strings.ToUpper(ev.Symbol)
	if px, err := decimal.NewFromString(ev.Price); err == nil {
		p.Prices.Set(ev.Symbol, px, ev.ClosedAt())
	}
	if err := p.Sink.Submit(ctx, ev); err != nil {
		return "dispatch", err
	}
	return "", nil
}
