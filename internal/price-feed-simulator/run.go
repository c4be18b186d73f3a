package simulator

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run emite um passo do walker a cada intervalo até o contexto ser cancelado
func Run(ctx context.Context, log *zap.Logger, w *Walker, h *Hub, interval time.Duration) error {
	if interval <= 0 {
		interval = 250 * time.Millisecond
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	log.Info("price feed started", zap.Duration("interval", interval))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-t.C:
			for _, m := range w.Step(now) {
				h.Broadcast(m)
			}
		}
	}
}
