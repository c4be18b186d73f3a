// Package ledger mantém os saldos por usuário (available, claimable e o
// at-risk derivado das apostas ativas) e o livro de lançamentos imutável.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/radieske/kmarket/internal/shared/apperr"
	"github.com/radieske/kmarket/internal/store"
)

// Book expõe cada operação como uma transação própria. Para compor com outras
// escritas use InTx/On.
type Book struct {
	db  *store.DB
	Now func() time.Time
}

func NewBook(db *store.DB) *Book {
	return &Book{db: db, Now: time.Now}
}

// On devolve as operações ligadas a uma transação aberta
func (b *Book) On(tx *store.Tx) *Tx {
	return &Tx{tx: tx, now: b.Now}
}

func (b *Book) InTx(ctx context.Context, fn func(tx *Tx) error) error {
	return b.db.InTx(ctx, func(tx *store.Tx) error { return fn(b.On(tx)) })
}

func (b *Book) EnsureAccount(ctx context.Context, userID string) error {
	return b.InTx(ctx, func(tx *Tx) error { return tx.EnsureAccount(ctx, userID) })
}

func (b *Book) Debit(ctx context.Context, userID string, amount int64, typ EntryType, meta Meta) (e *Entry, err error) {
	err = b.InTx(ctx, func(tx *Tx) error {
		e, err = tx.Debit(ctx, userID, amount, typ, meta)
		return err
	})
	return e, err
}

func (b *Book) CreditClaimable(ctx context.Context, userID string, amount int64, typ EntryType, meta Meta) (e *Entry, err error) {
	if amount == 0 {
		return nil, nil
	}
	err = b.InTx(ctx, func(tx *Tx) error {
		e, err = tx.CreditClaimable(ctx, userID, amount, typ, meta)
		return err
	})
	return e, err
}

// CreditAvailableIdempotent é a entrada de depósitos: a mesma chave aplicada
// duas vezes resulta em AlreadyProcessed sem alterar saldo
func (b *Book) CreditAvailableIdempotent(ctx context.Context, userID string, amount int64, meta Meta) (res CreditResult, err error) {
	err = b.InTx(ctx, func(tx *Tx) error {
		res, err = tx.CreditAvailableIdempotent(ctx, userID, amount, TypeDeposit, meta)
		return err
	})
	return res, err
}

func (b *Book) Claim(ctx context.Context, userID string) (res ClaimResult, err error) {
	err = b.InTx(ctx, func(tx *Tx) error {
		res, err = tx.Claim(ctx, userID)
		return err
	})
	return res, err
}

func (b *Book) Adjust(ctx context.Context, userID string, delta int64, meta Meta) (e *Entry, err error) {
	err = b.InTx(ctx, func(tx *Tx) error {
		e, err = tx.Adjust(ctx, userID, delta, meta)
		return err
	})
	return e, err
}

// Balance lê a conta e soma as apostas ativas
func (b *Book) Balance(ctx context.Context, userID string) (Balance, error) {
	bal := Balance{UserID: userID}
	err := b.db.QueryRow(ctx,
		`SELECT a.available, a.claimable,
		        COALESCE((SELECT SUM(amount) FROM bets WHERE user_id = a.user_id AND status = 'active'), 0)
		   FROM accounts a WHERE a.user_id = ?`, userID).Scan(&bal.Available, &bal.Claimable, &bal.AtRisk)
	if errors.Is(err, sql.ErrNoRows) {
		return bal, ErrAccountNotFound.With("%s", userID)
	}
	if err != nil {
		return bal, apperr.Transient(err)
	}
	bal.Total = bal.Available + bal.Claimable + bal.AtRisk
	return bal, nil
}

// Transactions devolve o extrato mais recente primeiro e o total de linhas do filtro
func (b *Book) Transactions(ctx context.Context, userID string, f Filter) ([]Entry, int, error) {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 20
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	where := `WHERE user_id = ?`
	args := []any{userID}
	if f.Type != "" {
		where += ` AND type = ?`
		args = append(args, string(f.Type))
	}

	var total int
	if err := b.db.QueryRow(ctx, `SELECT COUNT(*) FROM ledger_entries `+where, args...).Scan(&total); err != nil {
		return nil, 0, apperr.Transient(err)
	}

	rows, err := b.db.Query(ctx, `
		SELECT id, user_id, type, amount, balance_before, balance_after, ref_type, ref_id,
		       COALESCE(idempotency_key, ''), remark, created_at
		  FROM ledger_entries `+where+`
		 ORDER BY created_at DESC, id DESC
		 LIMIT ? OFFSET ?`, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, 0, apperr.Transient(err)
	}
	defer rows.Close()

	out := make([]Entry, 0, f.Limit)
	for rows.Next() {
		var e Entry
		var typ string
		if err := rows.Scan(&e.ID, &e.UserID, &typ, &e.Amount, &e.BalanceBefore, &e.BalanceAfter,
			&e.RefType, &e.RefID, &e.IdempotencyKey, &e.Remark, &e.CreatedAtMs); err != nil {
			return nil, 0, apperr.Transient(err)
		}
		e.Type = EntryType(typ)
		out = append(out, e)
	}
	return out, total, apperr.Transient(rows.Err())
}
