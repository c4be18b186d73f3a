package settlement

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Deduper marca um timestamp de fechamento como processado. MarkIfNew devolve
// false quando o par (símbolo, ts) já foi visto; Forget desfaz a marca para que
// uma reentrega seja processada.
type Deduper interface {
	MarkIfNew(ctx context.Context, symbol string, ts int64) (bool, error)
	Forget(ctx context.Context, symbol string, ts int64) error
}

// MemoryDeduper guarda os últimos N timestamps por símbolo; o mais antigo sai primeiro
type MemoryDeduper struct {
	size int

	mu   sync.Mutex
	seen map[string]*recent
}

type recent struct {
	set   map[int64]struct{}
	order []int64
}

func NewMemoryDeduper(size int) *MemoryDeduper {
	if size <= 0 {
		size = 60
	}
	return &MemoryDeduper{size: size, seen: make(map[string]*recent)}
}

func (m *MemoryDeduper) MarkIfNew(_ context.Context, symbol string, ts int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.seen[symbol]
	if !ok {
		r = &recent{set: make(map[int64]struct{}, m.size)}
		m.seen[symbol] = r
	}
	if _, dup := r.set[ts]; dup {
		return false, nil
	}
	r.set[ts] = struct{}{}
	r.order = append(r.order, ts)
	if len(r.order) > m.size {
		delete(r.set, r.order[0])
		r.order = r.order[1:]
	}
	return true, nil
}

func (m *MemoryDeduper) Forget(_ context.Context, symbol string, ts int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.seen[symbol]
	if !ok {
		return nil
	}
	if _, ok := r.set[ts]; !ok {
		return nil
	}
	delete(r.set, ts)
	for i, v := range r.order {
		if v == ts {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

// RedisDeduper sobrevive a restarts e é compartilhado entre réplicas
type RedisDeduper struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewRedisDeduper(c *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{Client: c, TTL: ttl}
}

func dedupKey(symbol string, ts int64) string {
	return fmt.Sprintf("settlement:candle:%s:%d", symbol, ts)
}

func (r *RedisDeduper) MarkIfNew(ctx context.Context, symbol string, ts int64) (bool, error) {
	return r.Client.SetNX(ctx, dedupKey(symbol, ts), 1, r.TTL).Result()
}

func (r *RedisDeduper) Forget(ctx context.Context, symbol string, ts int64) error {
	return r.Client.Del(ctx, dedupKey(symbol, ts)).Err()
}
