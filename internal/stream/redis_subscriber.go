package stream

import (
	"context"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// StartRedisSubscriber escuta o canal de snapshots e repassa ao Hub até o ctx acabar
func StartRedisSubscriber(ctx context.Context, log *zap.Logger, r *redis.Client, channel string, hub *Hub) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				if err := hub.Dispatch([]byte(msg.Payload)); err != nil {
					log.Warn("grid stream: bad payload", zap.Error(err))
				}
			}
		}
	}()
}
