package grid

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "pending"
	StatusSettled Status = "settled"
)

// Tick é uma faixa de preço [PriceLower, PriceUpper) dentro de um slice
type Tick struct {
	Tick       int             `json:"tick"`
	PriceLower decimal.Decimal `json:"priceLower"`
	PriceUpper decimal.Decimal `json:"priceUpper"`
	Odds       float64         `json:"odds"`
}

// Slice é uma oportunidade de liquidação em um instante fixo.
// Valores publicados em um Snapshot são somente leitura: o driver sempre cria
// uma cópia nova quando algo muda.
type Slice struct {
	ID              string           `json:"id"`
	Symbol          string           `json:"symbol"`
	SettlementTime  time.Time        `json:"settlementTime"`
	LockAt          time.Time        `json:"lockAt"`
	BasisPrice      decimal.Decimal  `json:"basisPrice"`
	Locked          bool             `json:"locked"`
	LockedAt        *time.Time       `json:"lockedAt,omitempty"`
	Status          Status           `json:"status"`
	Ticks           []Tick           `json:"ticks"`
	SettlementPrice *decimal.Decimal `json:"settlementPrice,omitempty"`
	WinningTick     *int             `json:"winningTick,omitempty"`
}

func sliceID(symbol string, settlement time.Time) string {
	return fmt.Sprintf("%s-%d", symbol, settlement.Unix())
}

// Tick procura a faixa pelo índice; os ticks ficam ordenados de -range a +range
func (s *Slice) Tick(tick int) (Tick, bool) {
	if len(s.Ticks) == 0 {
		return Tick{}, false
	}
	idx := tick - s.Ticks[0].Tick
	if idx < 0 || idx >= len(s.Ticks) {
		return Tick{}, false
	}
	return s.Ticks[idx], true
}

// TimeToSettlement pode ser negativo depois do instante de liquidação
func (s *Slice) TimeToSettlement(now time.Time) time.Duration {
	return s.SettlementTime.Sub(now)
}

func (s *Slice) Settled() bool { return s.Status == StatusSettled }

// Closed indica que o slice já não aceita apostas em now, mesmo que o driver
// ainda não tenha rodado a transição de lock
func (s *Slice) Closed(now time.Time) bool {
	return s.Locked || !now.Before(s.LockAt)
}

func (s *Slice) clone() *Slice {
	cp := *s
	return &cp
}
