package price

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

// RedisMirror replica o último preço no Redis com TTL, para outros processos
// e para aquecer o Store após um restart
type RedisMirror struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisMirror(c *redis.Client, ttl time.Duration) *RedisMirror {
	return &RedisMirror{Client: c, TTL: ttl}
}

func key(symbol string) string { return "price:last:" + symbol }

type mirrored struct {
	Price string `json:"price"`
	Ts    int64  `json:"ts"`
}

func (m *RedisMirror) Set(ctx context.Context, symbol string, p decimal.Decimal, at time.Time) error {
	b, err := json.Marshal(mirrored{Price: p.String(), Ts: at.UnixMilli()})
	if err != nil {
		return err
	}
	return m.Client.Set(ctx, key(symbol), b, m.TTL).Err()
}

// Get retorna ok=false quando a chave expirou
func (m *RedisMirror) Get(ctx context.Context, symbol string) (decimal.Decimal, time.Time, bool, error) {
	b, err := m.Client.Get(ctx, key(symbol)).Bytes()
	if err == redis.Nil {
		return decimal.Decimal{}, time.Time{}, false, nil
	}
	if err != nil {
		return decimal.Decimal{}, time.Time{}, false, err
	}
	var v mirrored
	if err := json.Unmarshal(b, &v); err != nil {
		return decimal.Decimal{}, time.Time{}, false, err
	}
	p, err := decimal.NewFromString(v.Price)
	if err != nil {
		return decimal.Decimal{}, time.Time{}, false, err
	}
	return p, time.UnixMilli(v.Ts).UTC(), true, nil
}

// Warm carrega no Store os preços ainda presentes no Redis
func (m *RedisMirror) Warm(ctx context.Context, s *Store, symbols []string) error {
	for _, sym := range symbols {
		p, at, ok, err := m.Get(ctx, sym)
		if err != nil {
			return err
		}
		if ok {
			s.Set(sym, p, at)
		}
	}
	return nil
}
