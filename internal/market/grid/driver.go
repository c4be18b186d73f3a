package grid

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Publisher recebe o delta de cada versão nova (ex.: Redis pub/sub para o stream WS)
type Publisher interface {
	PublishDelta(ctx context.Context, d Delta) error
}

// Driver avança todos os grids do registry em um ticker único.
// OnTick/OnSkip são ganchos opcionais para métricas.
type Driver struct {
	Log       *zap.Logger
	Registry  *Registry
	Interval  time.Duration
	Publisher Publisher
	Now       func() time.Time

	OnTick func(symbol string, slices int)
	OnSkip func(symbol string)
}

// Run bloqueia até o contexto ser cancelado
func (d *Driver) Run(ctx context.Context) error {
	interval := d.Interval
	if interval <= 0 {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	d.Log.Info("grid driver started",
		zap.Strings("symbols", d.Registry.Symbols()),
		zap.Duration("interval", interval))

	d.Step(ctx)
	for {
		select {
		case <-ctx.Done():
			d.Log.Info("grid driver stopped")
			return ctx.Err()
		case <-t.C:
			d.Step(ctx)
		}
	}
}

// Step roda um passo para todos os símbolos
func (d *Driver) Step(ctx context.Context) {
	now := time.Now()
	if d.Now != nil {
		now = d.Now()
	}
	for _, g := range d.Registry.All() {
		prev := g.Snapshot()
		if !g.Advance(now) {
			if d.OnSkip != nil {
				d.OnSkip(g.Symbol())
			}
			d.Log.Debug("grid skipped: no live price", zap.String("symbol", g.Symbol()))
			continue
		}
		snap := g.Snapshot()
		if d.OnTick != nil {
			d.OnTick(g.Symbol(), len(snap.Slices))
		}
		if d.Publisher == nil {
			continue
		}
		pctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
		if err := d.Publisher.PublishDelta(pctx, Diff(prev, snap)); err != nil {
			d.Log.Warn("grid publish failed", zap.String("symbol", g.Symbol()), zap.Error(err))
		}
		cancel()
	}
}
