package grid

import (
	"time"

	"github.com/shopspring/decimal"
)

// Delta descreve o que mudou de BaseVersion para Version. Slices travados e
// ainda não liquidados mantêm o ponteiro entre versões e ficam de fora.
// Quem não estiver em BaseVersion deve recarregar o snapshot inteiro.
type Delta struct {
	Symbol      string          `json:"symbol"`
	Version     uint64          `json:"version"`
	BaseVersion uint64          `json:"baseVersion"`
	AsOf        time.Time       `json:"asOf"`
	Price       decimal.Decimal `json:"price"`
	Changed     []*Slice        `json:"changed"`
	Removed     []string        `json:"removed"`
}

// Diff compara duas versões do mesmo grid por identidade de ponteiro
func Diff(prev, next *Snapshot) Delta {
	d := Delta{
		Symbol:  next.Symbol,
		Version: next.Version,
		AsOf:    next.AsOf,
		Price:   next.Price,
		Changed: make([]*Slice, 0),
		Removed: make([]string, 0),
	}
	if prev != nil {
		d.BaseVersion = prev.Version
	}
	for _, s := range next.Slices {
		if prev == nil || prev.index[s.SettlementTime.Unix()] != s {
			d.Changed = append(d.Changed, s)
		}
	}
	if prev != nil {
		for _, s := range prev.Slices {
			if _, ok := next.index[s.SettlementTime.Unix()]; !ok {
				d.Removed = append(d.Removed, s.ID)
			}
		}
	}
	return d
}
