package producer

import (
	"context"
	"time"

	"github.com/radieske/kmarket/internal/shared/kafka"
	"github.com/radieske/kmarket/pkg/contracts/events"
)

// KafkaPublisher publica os eventos de aposta. A key é o user_id, então os
// eventos de um mesmo usuário caem na mesma partição e mantêm a ordem.
type KafkaPublisher struct {
	Placed  *kafka.Writer
	Settled *kafka.Writer
	Now     func() time.Time
}

func NewKafkaPublisher(placed, settled *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{Placed: placed, Settled: settled, Now: time.Now}
}

func (p *KafkaPublisher) PublishBetPlaced(ctx context.Context, e events.BetPlaced) error {
	e.TsUnixMs = p.Now().UnixMilli()
	return kafka.WriteJSON(ctx, p.Placed, e.UserID, e)
}

func (p *KafkaPublisher) PublishBetSettled(ctx context.Context, e events.BetSettled) error {
	if e.Ts.IsZero() {
		e.Ts = p.Now().UTC()
	}
	return kafka.WriteJSON(ctx, p.Settled, e.UserID, e)
}

func (p *KafkaPublisher) Close() error {
	err := p.Placed.Close()
	if serr := p.Settled.Close(); err == nil {
		err = serr
	}
	return err
}
