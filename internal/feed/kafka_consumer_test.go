package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/kmarket/internal/market/price"
	"github.com/radieske/kmarket/pkg/contracts/events"
)

// chanReader entrega mensagens de um canal e bloqueia até o ctx acabar
type chanReader struct{ ch chan kafka.Message }

func (r *chanReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	select {
	case m := <-r.ch:
		return m, nil
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	}
}

type sinkFunc func(ctx context.Context, ev events.CandleClosed) error

func (f sinkFunc) Submit(ctx context.Context, ev events.CandleClosed) error { return f(ctx, ev) }

func msg(t *testing.T, v any) kafka.Message {
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return kafka.Message{Value: b}
}

func TestRunTicks_UpdatesStore(t *testing.T) {
	now := time.Now().UTC()
	store := price.NewStore(time.Minute)
	r := &chanReader{ch: make(chan kafka.Message, 4)}

	var mu sync.Mutex
	stages := map[string]int{}
	p := &Processor{
		Log:     zap.NewNop(),
		Ticks:   r,
		Prices:  store,
		OnError: func(s string) { mu.Lock(); stages[s]++; mu.Unlock() },
	}

	r.ch <- msg(t, events.PriceTick{Symbol: "ethusdt", Price: "2001.5", Ts: now})
	r.ch <- kafka.Message{Value: []byte("{not json")}
	r.ch <- msg(t, events.PriceTick{Symbol: "ETHUSDT", Price: "x", Ts: now})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.RunTicks(ctx) }()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return stages["decode"] == 2
	}, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	px, ok := store.CurrentPrice("ETHUSDT")
	require.True(t, ok)
	assert.True(t, px.Equal(decimal.RequireFromString("2001.5")))
}

func TestRunCandles_ForwardsToSink(t *testing.T) {
	store := price.NewStore(0)
	r := &chanReader{ch: make(chan kafka.Message, 2)}
	got := make(chan events.CandleClosed, 2)
	failing := true

	var mu sync.Mutex
	stages := map[string]int{}
	p := &Processor{
		Log:     zap.NewNop(),
		Candles: r,
		Prices:  store,
		Sink: sinkFunc(func(_ context.Context, ev events.CandleClosed) error {
			if failing {
				failing = false
				return errors.New("queue closed")
			}
			got <- ev
			return nil
		}),
		OnError: func(s string) { mu.Lock(); stages[s]++; mu.Unlock() },
	}

	ts := time.Date(2025, 3, 1, 10, 0, 1, 0, time.UTC)
	r.ch <- msg(t, events.CandleClosed{Symbol: "ethusdt", Price: "2010", Timestamp: ts.UnixMilli()})
	r.ch <- msg(t, events.CandleClosed{Symbol: "ethusdt", Price: "2011", Timestamp: ts.Add(time.Second).UnixMilli()})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.RunCandles(ctx) }()

	select {
	case ev := <-got:
		assert.Equal(t, "ETHUSDT", ev.Symbol)
		assert.Equal(t, "2011", ev.Price)
	case <-time.After(time.Second):
		t.Fatal("candle não chegou ao sink")
	}
	mu.Lock()
	assert.Equal(t, 1, stages["dispatch"])
	mu.Unlock()

	px, at, ok := store.Latest("ETHUSDT")
	require.True(t, ok)
	assert.Equal(t, "2011", px.String())
	assert.Equal(t, ts.Add(time.Second), at)
}
