package events

const (
	FeedPriceTick    = "price_tick"
	FeedCandleClosed = "candle_closed"
)

// FeedMessage é o envelope trafegado no WebSocket do feed de preços.
// Exatamente um entre Tick e Candle vem preenchido, conforme Type.
type FeedMessage struct {
	Type   string        `json:"type"`
	Tick   *PriceTick    `json:"tick,omitempty"`
	Candle *CandleClosed `json:"candle,omitempty"`
}

// Symbol devolve o símbolo do payload, usado como key no Kafka
func (m FeedMessage) Symbol() string {
	switch {
	case m.Tick != nil:
		return m.Tick.Symbol
	case m.Candle != nil:
		return m.Candle.Symbol
	}
	return ""
}
