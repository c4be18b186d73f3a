package stream

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/kmarket/internal/market/grid"
)

// RedisPublisher implementa grid.Publisher sobre Redis Pub/Sub, para que
// qualquer réplica com clientes WebSocket receba o delta
type RedisPublisher struct {
	Client  *redis.Client
	Channel string
}

func NewRedisPublisher(c *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{Client: c, Channel: channel}
}

// Encode empacota o snapshot inteiro; usado no subscribe
func Encode(snap *grid.Snapshot) ([]byte, error) {
	body, err := json.Marshal(snap)
	if err != nil {
		return nil, err
	}
	return json.Marshal(GridUpdate{Type: "grid", Symbol: snap.Symbol, Version: snap.Version, Grid: body})
}

// EncodeDelta empacota só o que mudou desde BaseVersion
func EncodeDelta(d grid.Delta) ([]byte, error) {
	body, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	return json.Marshal(GridUpdate{Type: "grid_delta", Symbol: d.Symbol, Version: d.Version, BaseVersion: d.BaseVersion, Grid: body})
}

func (p *RedisPublisher) PublishDelta(ctx context.Context, d grid.Delta) error {
	b, err := EncodeDelta(d)
	if err != nil {
		return err
	}
	return p.Client.Publish(ctx, p.Channel, b).Err()
}
