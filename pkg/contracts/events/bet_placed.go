package events

// BetPlaced é emitido pelo market-service após a aposta ser aceita e o saldo debitado
type BetPlaced struct {
	BetID          string `json:"bet_id"`
	UserID         string `json:"user_id"`
	Symbol         string `json:"symbol"`
	Tick           int    `json:"tick"`
	Amount         int64  `json:"amount"`
	Odds           string `json:"odds"`
	BasisPrice     string `json:"basis_price"`
	SettlementTime int64  `json:"settlement_time"` // unix segundos
	TsUnixMs       int64  `json:"ts_unix_ms"`
}
