package bets

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/kmarket/internal/shared/apperr"
	"github.com/radieske/kmarket/internal/store"
)

// Repo persiste apostas. Escritas recebem o Runner para entrar na transação
// de quem chama (aceite ou liquidação).
type Repo struct{ db *store.DB }

func NewRepo(db *store.DB) *Repo { return &Repo{db: db} }

const betColumns = `id, user_id, symbol, amount, tick, tick_lower, tick_upper, basis_price, odds_x100,
	settlement_time, status, settlement_price, payout, settled_at, created_at`

func (r *Repo) Insert(ctx context.Context, run store.Runner, b *Bet) error {
	_, err := run.Exec(ctx, `
		INSERT INTO bets(`+betColumns+`)
		VALUES(?,?,?,?,?,?,?,?,?,?,?,NULL,NULL,NULL,?)`,
		b.ID, b.UserID, b.Symbol, b.Amount, b.Tick,
		b.TickLower.String(), b.TickUpper.String(), b.BasisPrice.String(), b.OddsX100,
		b.SettlementTime.Unix(), string(b.Status), b.CreatedAt.UnixMilli())
	return err
}

// MarkSettled só altera apostas ainda ativas; false significa que outra
// liquidação chegou antes
func (r *Repo) MarkSettled(ctx context.Context, run store.Runner, id string, status Status, price decimal.Decimal, payout int64, at time.Time) (bool, error) {
	res, err := run.Exec(ctx, `
		UPDATE bets SET status = ?, settlement_price = ?, payout = ?, settled_at = ?
		 WHERE id = ? AND status = 'active'`,
		string(status), price.String(), payout, at.UnixMilli(), id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *Repo) Get(ctx context.Context, id string) (*Bet, error) {
	b, err := scanBet(r.db.QueryRow(ctx, `SELECT `+betColumns+` FROM bets WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBetNotFound.With("%s", id)
	}
	if err != nil {
		return nil, apperr.Transient(err)
	}
	return b, nil
}

// DueForSettlement lista apostas ativas do símbolo com liquidação até until,
// mais antigas primeiro, limitado a limit
func (r *Repo) DueForSettlement(ctx context.Context, symbol string, until time.Time, limit int) ([]Bet, error) {
	return r.list(ctx, `
		SELECT `+betColumns+` FROM bets
		 WHERE symbol = ? AND status = 'active' AND settlement_time <= ?
		 ORDER BY settlement_time, id
		 LIMIT ?`, symbol, until.Unix(), limit)
}

func (r *Repo) ListActive(ctx context.Context, userID string, now time.Time) (ActivePositions, error) {
	items, err := r.list(ctx, `
		SELECT `+betColumns+` FROM bets
		 WHERE user_id = ? AND status = 'active'
		 ORDER BY settlement_time, id`, userID)
	if err != nil {
		return ActivePositions{}, err
	}
	out := ActivePositions{Positions: make([]Position, 0, len(items))}
	for _, b := range items {
		rem := int64(b.SettlementTime.Sub(now) / time.Second)
		if rem < 0 {
			rem = 0
		}
		out.Positions = append(out.Positions, Position{Bet: b, RemainingSeconds: rem})
		out.TotalInBets += b.Amount
	}
	return out, nil
}

// History pagina as apostas já encerradas (page começa em 1) e resume todas elas
func (r *Repo) History(ctx context.Context, userID string, page, limit int) (HistoryPage, error) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	out := HistoryPage{Page: page, Limit: limit}

	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN status = 'won' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status = 'lost' THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN status IN ('won','lost') THEN amount ELSE 0 END), 0),
		       COALESCE(SUM(COALESCE(payout, 0)), 0)
		  FROM bets WHERE user_id = ? AND status <> 'active'`, userID).
		Scan(&out.Total, &out.Summary.Wins, &out.Summary.Losses, &out.Summary.TotalWagered, &out.Summary.TotalPayout)
	if err != nil {
		return out, apperr.Transient(err)
	}
	out.Summary.TotalBets = out.Summary.Wins + out.Summary.Losses
	out.Summary.NetProfit = out.Summary.TotalPayout - out.Summary.TotalWagered

	out.Items, err = r.list(ctx, `
		SELECT `+betColumns+` FROM bets
		 WHERE user_id = ? AND status <> 'active'
		 ORDER BY settlement_time DESC, id DESC
		 LIMIT ? OFFSET ?`, userID, limit, (page-1)*limit)
	return out, err
}

func (r *Repo) list(ctx context.Context, q string, args ...any) ([]Bet, error) {
	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		return nil, apperr.Transient(err)
	}
	defer rows.Close()

	out := make([]Bet, 0)
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, apperr.Transient(err)
		}
		out = append(out, *b)
	}
	return out, apperr.Transient(rows.Err())
}

type scanner interface {
	Scan(dest ...any) error
}

func scanBet(s scanner) (*Bet, error) {
	var (
		b                       Bet
		lower, upper, basis, st string
		settleSec, createdMs    int64
		price                   sql.NullString
		payout, settledMs       sql.NullInt64
	)
	if err := s.Scan(&b.ID, &b.UserID, &b.Symbol, &b.Amount, &b.Tick, &lower, &upper, &basis, &b.OddsX100,
		&settleSec, &st, &price, &payout, &settledMs, &createdMs); err != nil {
		return nil, err
	}
	var err error
	if b.TickLower, err = decimal.NewFromString(lower); err != nil {
		return nil, err
	}
	if b.TickUpper, err = decimal.NewFromString(upper); err != nil {
		return nil, err
	}
	if b.BasisPrice, err = decimal.NewFromString(basis); err != nil {
		return nil, err
	}
	b.Status = Status(st)
	b.SettlementTime = time.Unix(settleSec, 0).UTC()
	b.CreatedAt = time.UnixMilli(createdMs).UTC()
	if price.Valid {
		p, err := decimal.NewFromString(price.String)
		if err != nil {
			return nil, err
		}
		b.SettlementPrice = &p
	}
	if payout.Valid {
		v := payout.Int64
		b.Payout = &v
	}
	if settledMs.Valid {
		at := time.UnixMilli(settledMs.Int64).UTC()
		b.SettledAt = &at
	}
	return &b, nil
}
