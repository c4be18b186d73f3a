package grid

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/kmarket/internal/market/odds"
)

// PriceSource fornece o preço vivo do símbolo; ok=false quando não há amostra recente
type PriceSource interface {
	CurrentPrice(symbol string) (decimal.Decimal, bool)
}

type Config struct {
	Symbol      string
	Window      time.Duration
	Lock        time.Duration
	Grace       time.Duration
	TickRange   int
	TickSizePct decimal.Decimal
}

// Snapshot é uma versão imutável do grid. Leitores nunca veem uma versão parcial.
type Snapshot struct {
	Symbol  string          `json:"symbol"`
	Version uint64          `json:"version"`
	AsOf    time.Time       `json:"asOf"`
	Price   decimal.Decimal `json:"price"`
	Slices  []*Slice        `json:"slices"`

	index map[int64]*Slice
}

// Slice busca pelo instante de liquidação (granularidade de segundo)
func (s *Snapshot) Slice(settlement time.Time) (*Slice, bool) {
	sl, ok := s.index[settlement.Unix()]
	return sl, ok
}

type closeSample struct {
	at    time.Time
	price decimal.Decimal
}

// Grid mantém a janela rolante de slices de um símbolo.
// Advance é o único escritor e deve rodar em uma goroutine só (o Driver).
type Grid struct {
	cfg    Config
	engine odds.Engine
	prices PriceSource

	snap atomic.Pointer[Snapshot]

	mu     sync.Mutex
	closes []closeSample
}

func New(cfg Config, engine odds.Engine, prices PriceSource) *Grid {
	g := &Grid{cfg: cfg, engine: engine, prices: prices}
	g.snap.Store(&Snapshot{Symbol: cfg.Symbol, index: map[int64]*Slice{}})
	return g
}

func (g *Grid) Symbol() string { return g.cfg.Symbol }

func (g *Grid) Snapshot() *Snapshot { return g.snap.Load() }

func (g *Grid) Slice(settlement time.Time) (*Slice, bool) {
	return g.snap.Load().Slice(settlement)
}

// RecordClose enfileira um fechamento de candle; o driver aplica no próximo Advance
func (g *Grid) RecordClose(at time.Time, price decimal.Decimal) {
	g.mu.Lock()
	g.closes = append(g.closes, closeSample{at: at.UTC(), price: price})
	g.mu.Unlock()
}

func (g *Grid) takeCloses() []closeSample {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := g.closes
	g.closes = nil
	sort.Slice(out, func(i, j int) bool { return out[i].at.Before(out[j].at) })
	return out
}

// Advance executa um passo do driver: despeja, estende, trava e recalcula.
// Sem preço vivo nada muda e retorna false.
func (g *Grid) Advance(now time.Time) bool {
	price, ok := g.prices.CurrentPrice(g.cfg.Symbol)
	if !ok || !price.IsPositive() {
		return false
	}
	now = now.UTC().Truncate(time.Second)
	prev := g.snap.Load()
	closes := g.takeCloses()

	// janela [now, now+Window): last começa um segundo antes para incluir now
	next := make([]*Slice, 0, len(prev.Slices)+1)
	last := now.Add(-time.Second)
	for _, s := range prev.Slices {
		if now.Sub(s.SettlementTime) > g.cfg.Grace {
			continue
		}
		if s.SettlementTime.After(last) {
			last = s.SettlementTime
		}
		switch {
		case s.Locked:
			// congelado: mesmo ponteiro, salvo mudança de status
			next = append(next, g.settle(s, closes))
		case s.TimeToSettlement(now) <= g.cfg.Lock:
			next = append(next, g.settle(g.lock(g.build(s.SettlementTime, price, now), now), closes))
		default:
			next = append(next, g.build(s.SettlementTime, price, now))
		}
	}

	end := now.Add(g.cfg.Window)
	for t := last.Add(time.Second); t.Before(end); t = t.Add(time.Second) {
		s := g.build(t, price, now)
		if s.TimeToSettlement(now) <= g.cfg.Lock {
			s = g.lock(s, now)
		}
		next = append(next, s)
	}

	index := make(map[int64]*Slice, len(next))
	for _, s := range next {
		index[s.SettlementTime.Unix()] = s
	}
	g.snap.Store(&Snapshot{
		Symbol:  g.cfg.Symbol,
		Version: prev.Version + 1,
		AsOf:    now,
		Price:   price,
		Slices:  next,
		index:   index,
	})
	return true
}

func (g *Grid) build(settlement time.Time, basis decimal.Decimal, now time.Time) *Slice {
	millis := settlement.Sub(now).Milliseconds()
	ticks := make([]Tick, 0, 2*g.cfg.TickRange+1)
	for t := -g.cfg.TickRange; t <= g.cfg.TickRange; t++ {
		lower, upper := Bounds(basis, t, g.cfg.TickSizePct)
		ticks = append(ticks, Tick{
			Tick:       t,
			PriceLower: lower,
			PriceUpper: upper,
			Odds:       g.engine.Odds(t, millis),
		})
	}
	return &Slice{
		ID:             sliceID(g.cfg.Symbol, settlement),
		Symbol:         g.cfg.Symbol,
		SettlementTime: settlement,
		LockAt:         settlement.Add(-g.cfg.Lock),
		BasisPrice:     basis,
		Status:         StatusPending,
		Ticks:          ticks,
	}
}

func (g *Grid) lock(s *Slice, now time.Time) *Slice {
	at := now
	s.Locked = true
	s.LockedAt = &at
	return s
}

// settle marca o slice como liquidado quando existe um fechamento em ou depois
// do instante de liquidação. Devolve o mesmo ponteiro se nada mudou.
func (g *Grid) settle(s *Slice, closes []closeSample) *Slice {
	if s.Settled() {
		return s
	}
	for _, c := range closes {
		if c.at.Before(s.SettlementTime) {
			continue
		}
		win := WinningTick(s.BasisPrice, c.price, g.cfg.TickSizePct)
		p := c.price
		cp := s.clone()
		cp.Status = StatusSettled
		cp.SettlementPrice = &p
		cp.WinningTick = &win
		return cp
	}
	return s
}
