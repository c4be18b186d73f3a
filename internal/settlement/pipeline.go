// Package settlement liquida apostas a partir dos eventos de candle fechado.
package settlement

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/kmarket/internal/bets"
	"github.com/radieske/kmarket/internal/ledger"
	"github.com/radieske/kmarket/internal/market/grid"
	"github.com/radieske/kmarket/internal/market/odds"
	"github.com/radieske/kmarket/internal/shared/apperr"
	"github.com/radieske/kmarket/internal/store"
	"github.com/radieske/kmarket/pkg/contracts/events"
)

type EventPublisher interface {
	PublishBetSettled(ctx context.Context, e events.BetSettled) error
}

// Result resume um disparo do pipeline
type Result struct {
	Duplicate bool
	Won       int
	Lost      int
	Skipped   int
	Failed    int
	Truncated bool
}

var errAlreadySettled = errors.New("bet already settled")

// Pipeline processa um candle por vez; o Dispatcher garante um único worker por símbolo.
type Pipeline struct {
	Log    *zap.Logger
	DB     *store.DB
	Book   *ledger.Book
	Repo   *bets.Repo
	Grids  *grid.Registry
	Dedup  Deduper
	Events EventPublisher

	TickSizePct decimal.Decimal
	BatchSize   int
	Now         func() time.Time

	OnSettled   func(symbol, outcome string)
	OnError     func(symbol string)
	OnDuplicate func(symbol string)
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

// Handle liquida as apostas ativas do símbolo com settlementTime <= T usando
// o preço P do candle. O timestamp é marcado antes do processamento e desmarcado
// se a busca das apostas falhar; apostas que falharem individualmente continuam
// ativas e entram no próximo disparo.
func (p *Pipeline) Handle(ctx context.Context, ev events.CandleClosed) (Result, error) {
	var res Result
	symbol := strings.ToUpper(ev.Symbol)
	price, err := decimal.NewFromString(ev.Price)
	if err != nil || !price.IsPositive() {
		return res, apperr.Invalid("candle price %q", ev.Price)
	}

	fresh, err := p.Dedup.MarkIfNew(ctx, symbol, ev.Timestamp)
	if err != nil {
		return res, apperr.Transient(err)
	}
	if !fresh {
		res.Duplicate = true
		if p.OnDuplicate != nil {
			p.OnDuplicate(symbol)
		}
		p.Log.Debug("duplicate candle ignored", zap.String("symbol", symbol), zap.Int64("ts", ev.Timestamp))
		return res, nil
	}

	closedAt := ev.ClosedAt()
	batch := p.BatchSize
	if batch <= 0 {
		batch = 500
	}
	due, err := p.Repo.DueForSettlement(ctx, symbol, closedAt, batch)
	if err != nil {
		// nada foi liquidado: libera o timestamp para a reentrega
		if ferr := p.Dedup.Forget(ctx, symbol, ev.Timestamp); ferr != nil {
			p.Log.Error("dedup forget failed, candle redelivery will be dropped",
				zap.String("symbol", symbol), zap.Int64("ts", ev.Timestamp), zap.Error(ferr))
		}
		return res, err
	}

	for i := range due {
		b := &due[i]
		status, err := p.settleOne(ctx, b, price)
		switch {
		case errors.Is(err, errAlreadySettled):
			res.Skipped++
		case err != nil:
			res.Failed++
			if p.OnError != nil {
				p.OnError(symbol)
			}
			p.Log.Error("bet settlement failed",
				zap.String("bet_id", b.ID),
				zap.String("user_id", b.UserID),
				zap.String("symbol", symbol),
				zap.Error(err))
		case status == bets.StatusWon:
			res.Won++
		default:
			res.Lost++
		}
	}

	if len(due) == batch {
		res.Truncated = true
		p.Log.Warn("settlement batch limit reached, remainder on next trigger",
			zap.String("symbol", symbol), zap.Int("batch", batch))
	}

	if g, ok := p.Grids.Get(symbol); ok {
		g.RecordClose(closedAt, price)
	}

	if len(due) > 0 {
		p.Log.Info("settlement batch done",
			zap.String("symbol", symbol),
			zap.Time("closed_at", closedAt),
			zap.String("price", price.String()),
			zap.Int("won", res.Won),
			zap.Int("lost", res.Lost),
			zap.Int("skipped", res.Skipped),
			zap.Int("failed", res.Failed))
	}
	return res, nil
}

// settleOne credita e marca a aposta em uma única transação
func (p *Pipeline) settleOne(ctx context.Context, b *bets.Bet, price decimal.Decimal) (bets.Status, error) {
	winning := grid.WinningTick(b.BasisPrice, price, p.TickSizePct)

	status, typ := bets.StatusLost, ledger.TypeLose
	amount := odds.RefundScaled(b.Amount, b.OddsX100)
	if winning == b.Tick {
		status, typ = bets.StatusWon, ledger.TypeWin
		amount = odds.PayoutScaled(b.Amount, b.OddsX100)
	}

	now := p.now().UTC()
	err := p.DB.InTx(ctx, func(tx *store.Tx) error {
		ok, err := p.Repo.MarkSettled(ctx, tx, b.ID, status, price, amount, now)
		if err != nil {
			return err
		}
		if !ok {
			return errAlreadySettled
		}
		_, err = p.Book.On(tx).CreditClaimable(ctx, b.UserID, amount, typ, ledger.Meta{
			RefType:        "bet",
			RefID:          b.ID,
			IdempotencyKey: "settle:" + b.ID,
		})
		return err
	})
	if err != nil {
		return status, err
	}

	if p.OnSettled != nil {
		p.OnSettled(b.Symbol, string(status))
	}
	if p.Events != nil {
		ev := events.BetSettled{
			BetID:           b.ID,
			UserID:          b.UserID,
			Symbol:          b.Symbol,
			Status:          string(status),
			Payout:          amount,
			SettlementPrice: price.String(),
			WinningTick:     winning,
			Ts:              now,
		}
		if err := p.Events.PublishBetSettled(ctx, ev); err != nil {
			p.Log.Warn("publish bet_settled failed", zap.String("bet_id", b.ID), zap.Error(err))
		}
	}
	return status, nil
}
