package settlement

import (
	"context"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/kmarket/internal/shared/apperr"
	"github.com/radieske/kmarket/pkg/contracts/events"
)

// Dispatcher mantém uma fila e um worker por símbolo, preservando a ordem dos
// candles e deixando a deduplicação sem concorrência dentro do símbolo.
type Dispatcher struct {
	Log      *zap.Logger
	Pipeline *Pipeline

	queues map[string]chan events.CandleClosed
}

func NewDispatcher(log *zap.Logger, p *Pipeline, symbols []string, buffer int) *Dispatcher {
	if buffer <= 0 {
		buffer = 64
	}
	d := &Dispatcher{Log: log, Pipeline: p, queues: make(map[string]chan events.CandleClosed, len(symbols))}
	for _, s := range symbols {
		d.queues[strings.ToUpper(s)] = make(chan events.CandleClosed, buffer)
	}
	return d
}

// Submit bloqueia quando a fila do símbolo está cheia (backpressure no consumidor)
func (d *Dispatcher) Submit(ctx context.Context, ev events.CandleClosed) error {
	q, ok := d.queues[strings.ToUpper(ev.Symbol)]
	if !ok {
		return apperr.Invalid("symbol %q not traded", ev.Symbol)
	}
	select {
	case q <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run bloqueia até o contexto ser cancelado
func (d *Dispatcher) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for symbol, q := range d.queues {
		symbol, q := symbol, q
		g.Go(func() error {
			d.Log.Info("settlement worker started", zap.String("symbol", symbol))
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case ev := <-q:
					if _, err := d.Pipeline.Handle(ctx, ev); err != nil {
						d.Log.Error("settlement trigger failed",
							zap.String("symbol", symbol),
							zap.Int64("ts", ev.Timestamp),
							zap.Error(err))
					}
				}
			}
		})
	}
	return g.Wait()
}
