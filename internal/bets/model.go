package bets

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/kmarket/internal/market/odds"
	"github.com/radieske/kmarket/internal/shared/apperr"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusWon       Status = "won"
	StatusLost      Status = "lost"
	StatusCancelled Status = "cancelled"
)

// Bet copia basis, faixa e odds do slice no aceite; a liquidação usa só esses
// valores congelados
type Bet struct {
	ID              string           `json:"id"`
	UserID          string           `json:"userId"`
	Symbol          string           `json:"symbol"`
	Amount          int64            `json:"amount"`
	Tick            int              `json:"tick"`
	TickLower       decimal.Decimal  `json:"tickLower"`
	TickUpper       decimal.Decimal  `json:"tickUpper"`
	BasisPrice      decimal.Decimal  `json:"basisPrice"`
	OddsX100        int64            `json:"oddsX100"`
	SettlementTime  time.Time        `json:"settlementTime"`
	Status          Status           `json:"status"`
	SettlementPrice *decimal.Decimal `json:"settlementPrice,omitempty"`
	Payout          *int64           `json:"payout,omitempty"`
	SettledAt       *time.Time       `json:"settledAt,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

func (b *Bet) Odds() float64 { return odds.Unscale(b.OddsX100) }

type PlaceBetRequest struct {
	UserID         string    `json:"userId"`
	Symbol         string    `json:"symbol"`
	SettlementTime time.Time `json:"settlementTime"`
	Tick           int       `json:"tick"`
	Amount         int64     `json:"amount"`
}

// Position é uma aposta ativa com o tempo restante até a liquidação
type Position struct {
	Bet
	RemainingSeconds int64 `json:"remainingSeconds"`
}

type ActivePositions struct {
	Positions   []Position `json:"positions"`
	TotalInBets int64      `json:"totalInBets"`
}

type Summary struct {
	TotalBets    int   `json:"totalBets"`
	Wins         int   `json:"wins"`
	Losses       int   `json:"losses"`
	TotalWagered int64 `json:"totalWagered"`
	TotalPayout  int64 `json:"totalPayout"`
	NetProfit    int64 `json:"netProfit"`
}

type HistoryPage struct {
	Items   []Bet   `json:"items"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	Limit   int     `json:"limit"`
	Summary Summary `json:"summary"`
}

var (
	ErrInvalidSettlementTime = apperr.New(apperr.KindNotFound, "INVALID_SETTLEMENT_TIME", "no open slice for settlement time")
	ErrSliceLocked           = apperr.New(apperr.KindStateConflict, "SLICE_LOCKED", "slice is locked")
	ErrSliceSettled          = apperr.New(apperr.KindStateConflict, "SLICE_SETTLED", "slice is settled")
	ErrInvalidTick           = apperr.New(apperr.KindStateConflict, "INVALID_TICK", "tick not offered by slice")
	ErrOddsUnavailable       = apperr.New(apperr.KindStateConflict, "ODDS_UNAVAILABLE", "odds unavailable")
	ErrBetNotFound           = apperr.New(apperr.KindNotFound, "BET_NOT_FOUND", "bet not found")
)
