// Package bets valida e registra apostas contra o grid de slices e o livro de saldos.
package bets

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/kmarket/internal/ledger"
	"github.com/radieske/kmarket/internal/market/grid"
	"github.com/radieske/kmarket/internal/market/odds"
	"github.com/radieske/kmarket/internal/shared/apperr"
	"github.com/radieske/kmarket/internal/store"
	"github.com/radieske/kmarket/pkg/contracts/events"
)

// EventPublisher recebe o evento de aposta aceita (Kafka em produção)
type EventPublisher interface {
	PublishBetPlaced(ctx context.Context, e events.BetPlaced) error
}

// Acceptor é o ponto de entrada de placeBet. Events e os ganchos são opcionais.
type Acceptor struct {
	Log    *zap.Logger
	DB     *store.DB
	Book   *ledger.Book
	Repo   *Repo
	Grids  *grid.Registry
	Events EventPublisher

	MinAmount int64
	MaxAmount int64
	// MaxGridAge limita a idade do snapshot usado para cotar; zero usa 3s
	MaxGridAge time.Duration
	Now        func() time.Time

	OnPlaced   func(symbol string)
	OnRejected func(code string)
}

func (a *Acceptor) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

// PlaceBet valida na ordem: formato, slice, estado do slice, tick, odds e por
// fim debita e grava a aposta na mesma transação. Nenhuma falha deixa efeito.
func (a *Acceptor) PlaceBet(ctx context.Context, req PlaceBetRequest) (*Bet, error) {
	b, err := a.place(ctx, req)
	if err != nil {
		if a.OnRejected != nil {
			a.OnRejected(apperr.CodeOf(err))
		}
		a.Log.Info("bet rejected",
			zap.String("user_id", req.UserID),
			zap.String("symbol", req.Symbol),
			zap.Int("tick", req.Tick),
			zap.String("code", apperr.CodeOf(err)),
			zap.Error(err))
		return nil, err
	}
	if a.OnPlaced != nil {
		a.OnPlaced(b.Symbol)
	}
	a.Log.Info("bet placed",
		zap.String("bet_id", b.ID),
		zap.String("user_id", b.UserID),
		zap.String("symbol", b.Symbol),
		zap.Int("tick", b.Tick),
		zap.Int64("amount", b.Amount),
		zap.Int64("odds_x100", b.OddsX100))

	if a.Events != nil {
		ev := events.BetPlaced{
			BetID:          b.ID,
			UserID:         b.UserID,
			Symbol:         b.Symbol,
			Tick:           b.Tick,
			Amount:         b.Amount,
			Odds:           odds.FormatScaled(b.OddsX100),
			BasisPrice:     b.BasisPrice.String(),
			SettlementTime: b.SettlementTime.Unix(),
		}
		if err := a.Events.PublishBetPlaced(ctx, ev); err != nil {
			a.Log.Warn("publish bet_placed failed", zap.String("bet_id", b.ID), zap.Error(err))
		}
	}
	return b, nil
}

func (a *Acceptor) place(ctx context.Context, req PlaceBetRequest) (*Bet, error) {
	req.Symbol = strings.ToUpper(strings.TrimSpace(req.Symbol))
	if err := a.validate(req); err != nil {
		return nil, err
	}
	g, ok := a.Grids.Get(req.Symbol)
	if !ok {
		return nil, apperr.Invalid("unknown symbol %q", req.Symbol)
	}

	now := a.now()
	snap := g.Snapshot()
	s, ok := snap.Slice(req.SettlementTime)
	if !ok {
		return nil, ErrInvalidSettlementTime.With("%s", req.SettlementTime.UTC().Format(time.RFC3339))
	}
	if s.Settled() {
		return nil, ErrSliceSettled
	}
	if s.Closed(now) {
		return nil, ErrSliceLocked
	}
	tk, ok := s.Tick(req.Tick)
	if !ok {
		return nil, ErrInvalidTick.With("tick %d", req.Tick)
	}
	// sem driver avançando (feed ausente) base e odds do slice não são as atuais
	if age := now.Sub(snap.AsOf); age > a.maxGridAge() {
		return nil, ErrOddsUnavailable.With("grid stale for %s", age.Truncate(time.Second))
	}
	scaled := odds.Scale(tk.Odds)
	if scaled <= 100 {
		return nil, ErrOddsUnavailable.With("odds %.2f", tk.Odds)
	}

	b := &Bet{
		ID:             uuid.NewString(),
		UserID:         req.UserID,
		Symbol:         req.Symbol,
		Amount:         req.Amount,
		Tick:           tk.Tick,
		TickLower:      tk.PriceLower,
		TickUpper:      tk.PriceUpper,
		BasisPrice:     s.BasisPrice,
		OddsX100:       scaled,
		SettlementTime: s.SettlementTime,
		Status:         StatusActive,
		CreatedAt:      now.UTC(),
	}

	err := a.DB.InTx(ctx, func(tx *store.Tx) error {
		if _, err := a.Book.On(tx).Debit(ctx, b.UserID, b.Amount, ledger.TypeBet,
			ledger.Meta{RefType: "bet", RefID: b.ID}); err != nil {
			return err
		}
		return a.Repo.Insert(ctx, tx, b)
	})
	if err != nil {
		return nil, err
	}
	return b, nil
}

func (a *Acceptor) maxGridAge() time.Duration {
	if a.MaxGridAge > 0 {
		return a.MaxGridAge
	}
	return 3 * time.Second
}

func (a *Acceptor) validate(req PlaceBetRequest) error {
	switch {
	case strings.TrimSpace(req.UserID) == "":
		return apperr.Invalid("userId is required")
	case req.Symbol == "":
		return apperr.Invalid("symbol is required")
	case req.SettlementTime.IsZero():
		return apperr.Invalid("settlementTime is required")
	case req.Amount <= 0:
		return apperr.Invalid("amount must be positive")
	case a.MinAmount > 0 && req.Amount < a.MinAmount:
		return apperr.Invalid("amount below minimum %d", a.MinAmount)
	case a.MaxAmount > 0 && req.Amount > a.MaxAmount:
		return apperr.Invalid("amount above maximum %d", a.MaxAmount)
	}
	return nil
}
