package events

import "time"

// PriceTick é publicado no tópico "price_ticks" a cada amostra do feed
type PriceTick struct {
	Symbol string    `json:"symbol"`
	Price  string    `json:"price"` // decimal em texto, ex: "2000.15"
	Ts     time.Time `json:"ts"`
	Source string    `json:"source"`
}

// CandleClosed é publicado no tópico "candle_closed" quando um candle de 1s fecha.
// Entrega at-least-once: o consumidor deduplica por Timestamp.
type CandleClosed struct {
	Symbol    string `json:"symbol"`
	Price     string `json:"price"`     // preço de fechamento
	Timestamp int64  `json:"timestamp"` // unix ms do fechamento
	Source    string `json:"source"`
}

// ClosedAt converte Timestamp para time.Time
func (c CandleClosed) ClosedAt() time.Time {
	return time.UnixMilli(c.Timestamp).UTC()
}
