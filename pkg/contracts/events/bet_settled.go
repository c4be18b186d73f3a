package events

import "time"

// Evento emitido pelo pipeline de liquidação após cada aposta liquidada.
type BetSettled struct {
	BetID           string    `json:"betId"`
	UserID          string    `json:"userId"`
	Symbol          string    `json:"symbol"`
	Status          string    `json:"status"` // "won" | "lost"
	Payout          int64     `json:"payout"`
	SettlementPrice string    `json:"settlementPrice"`
	WinningTick     int       `json:"winningTick"`
	Ts              time.Time `json:"ts"`
}
