// Package price guarda o último preço conhecido de cada símbolo.
package price

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

type sample struct {
	price decimal.Decimal
	at    time.Time
}

// Store é seguro para uso concorrente. Amostras mais velhas que MaxAge são
// tratadas como ausentes.
type Store struct {
	MaxAge time.Duration
	Now    func() time.Time

	mu     sync.RWMutex
	latest map[string]sample
}

func NewStore(maxAge time.Duration) *Store {
	return &Store{MaxAge: maxAge, Now: time.Now, latest: make(map[string]sample)}
}

// Set ignora amostras fora de ordem
func (s *Store) Set(symbol string, p decimal.Decimal, at time.Time) bool {
	if !p.IsPositive() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if cur, ok := s.latest[symbol]; ok && at.Before(cur.at) {
		return false
	}
	s.latest[symbol] = sample{price: p, at: at}
	return true
}

// CurrentPrice implementa grid.PriceSource
func (s *Store) CurrentPrice(symbol string) (decimal.Decimal, bool) {
	p, at, ok := s.Latest(symbol)
	if !ok {
		return decimal.Decimal{}, false
	}
	if s.MaxAge > 0 && s.Now().Sub(at) > s.MaxAge {
		return decimal.Decimal{}, false
	}
	return p, true
}

// Latest devolve a amostra sem checar idade
func (s *Store) Latest(symbol string) (decimal.Decimal, time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.latest[symbol]
	return v.price, v.at, ok
}
