package topics

const (
	// Feed de preços
	PriceTicks   = "price_ticks"
	CandleClosed = "candle_closed"

	// Bets
	BetPlaced  = "bet_placed"
	BetSettled = "bet_settled"
)
