package ledger

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/radieske/kmarket/internal/store"
)

// Tx aplica operações do livro dentro de uma transação já aberta, para que
// apostas, liquidação e saque componham suas próprias escritas no mesmo commit.
// Cada método trava a linha da conta antes de ler o saldo.
type Tx struct {
	tx  *store.Tx
	now func() time.Time
}

type account struct {
	available int64
	claimable int64
	nonce     int64
}

func (t *Tx) lock(ctx context.Context, userID string) (account, error) {
	var a account
	err := t.tx.QueryRow(ctx,
		`SELECT available, claimable, withdraw_nonce FROM accounts WHERE user_id = ?`+store.ForUpdate(t.tx),
		userID).Scan(&a.available, &a.claimable, &a.nonce)
	if errors.Is(err, sql.ErrNoRows) {
		return a, ErrAccountNotFound.With("%s", userID)
	}
	return a, err
}

// EnsureAccount cria a conta zerada se ainda não existir
func (t *Tx) EnsureAccount(ctx context.Context, userID string) error {
	ts := t.now().UnixMilli()
	_, err := t.tx.Exec(ctx,
		`INSERT INTO accounts(user_id, available, claimable, created_at, updated_at) VALUES(?, 0, 0, ?, ?)
		 ON CONFLICT (user_id) DO NOTHING`, userID, ts, ts)
	return err
}

func (t *Tx) setAvailable(ctx context.Context, userID string, v int64) error {
	_, err := t.tx.Exec(ctx,
		`UPDATE accounts SET available = ?, version = version + 1, updated_at = ? WHERE user_id = ?`,
		v, t.now().UnixMilli(), userID)
	return err
}

func (t *Tx) insert(ctx context.Context, e *Entry) error {
	e.ID = uuid.NewString()
	e.CreatedAtMs = t.now().UnixMilli()
	var key any
	if e.IdempotencyKey != "" {
		key = e.IdempotencyKey
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO ledger_entries(id, user_id, type, amount, balance_before, balance_after, ref_type, ref_id, idempotency_key, remark, created_at)
		VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		e.ID, e.UserID, string(e.Type), e.Amount, e.BalanceBefore, e.BalanceAfter,
		e.RefType, e.RefID, key, e.Remark, e.CreatedAtMs)
	return err
}

func entry(userID string, typ EntryType, amount, before, after int64, meta Meta) *Entry {
	return &Entry{
		UserID:         userID,
		Type:           typ,
		Amount:         amount,
		BalanceBefore:  before,
		BalanceAfter:   after,
		RefType:        meta.RefType,
		RefID:          meta.RefID,
		IdempotencyKey: meta.IdempotencyKey,
		Remark:         meta.Remark,
	}
}

// Debit: available -= amount
func (t *Tx) Debit(ctx context.Context, userID string, amount int64, typ EntryType, meta Meta) (*Entry, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount.With("debit must be positive, got %d", amount)
	}
	a, err := t.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	if a.available < amount {
		return nil, ErrInsufficientBalance.With("available %d, requested %d", a.available, amount)
	}
	after := a.available - amount
	if err := t.setAvailable(ctx, userID, after); err != nil {
		return nil, err
	}
	e := entry(userID, typ, amount, a.available, after, meta)
	if err := t.insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CreditClaimable: claimable += amount. Valor zero não gera lançamento.
func (t *Tx) CreditClaimable(ctx context.Context, userID string, amount int64, typ EntryType, meta Meta) (*Entry, error) {
	if amount == 0 {
		return nil, nil
	}
	if amount < 0 {
		return nil, ErrInvalidAmount.With("credit must not be negative, got %d", amount)
	}
	a, err := t.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	if amount > math.MaxInt64-a.claimable {
		return nil, ErrInvalidAmount.With("claimable overflow")
	}
	after := a.claimable + amount
	if _, err := t.tx.Exec(ctx,
		`UPDATE accounts SET claimable = ?, version = version + 1, updated_at = ? WHERE user_id = ?`,
		after, t.now().UnixMilli(), userID); err != nil {
		return nil, err
	}
	e := entry(userID, typ, amount, a.claimable, after, meta)
	if err := t.insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// CreditAvailableIdempotent credita available uma única vez por chave.
// A conta é criada se não existir; a chave é checada com a linha travada.
func (t *Tx) CreditAvailableIdempotent(ctx context.Context, userID string, amount int64, typ EntryType, meta Meta) (CreditResult, error) {
	if meta.IdempotencyKey == "" {
		return CreditResult{}, ErrInvalidAmount.With("idempotency key required")
	}
	if amount <= 0 {
		return CreditResult{}, ErrInvalidAmount.With("credit must be positive, got %d", amount)
	}
	if err := t.EnsureAccount(ctx, userID); err != nil {
		return CreditResult{}, err
	}
	a, err := t.lock(ctx, userID)
	if err != nil {
		return CreditResult{}, err
	}

	var seen string
	err = t.tx.QueryRow(ctx, `SELECT id FROM ledger_entries WHERE idempotency_key = ?`, meta.IdempotencyKey).Scan(&seen)
	if err == nil {
		return CreditResult{AlreadyProcessed: true}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return CreditResult{}, err
	}

	if amount > math.MaxInt64-a.available {
		return CreditResult{}, ErrInvalidAmount.With("available overflow")
	}
	after := a.available + amount
	if err := t.setAvailable(ctx, userID, after); err != nil {
		return CreditResult{}, err
	}
	e := entry(userID, typ, amount, a.available, after, meta)
	if err := t.insert(ctx, e); err != nil {
		return CreditResult{}, err
	}
	return CreditResult{Entry: e}, nil
}

// Claim move todo o claimable para available
func (t *Tx) Claim(ctx context.Context, userID string) (ClaimResult, error) {
	a, err := t.lock(ctx, userID)
	if err != nil {
		return ClaimResult{}, err
	}
	if a.claimable == 0 {
		return ClaimResult{}, ErrNothingToClaim
	}
	if a.claimable > math.MaxInt64-a.available {
		return ClaimResult{}, ErrInvalidAmount.With("available overflow")
	}
	after := a.available + a.claimable
	if _, err := t.tx.Exec(ctx,
		`UPDATE accounts SET available = ?, claimable = 0, version = version + 1, updated_at = ? WHERE user_id = ?`,
		after, t.now().UnixMilli(), userID); err != nil {
		return ClaimResult{}, err
	}
	e := entry(userID, TypeClaim, a.claimable, a.available, after, Meta{RefType: "claim"})
	if err := t.insert(ctx, e); err != nil {
		return ClaimResult{}, err
	}
	return ClaimResult{Claimed: a.claimable, NewAvailable: after}, nil
}

// Adjust aplica um delta com sinal em available (operação administrativa)
func (t *Tx) Adjust(ctx context.Context, userID string, delta int64, meta Meta) (*Entry, error) {
	if delta == 0 {
		return nil, ErrInvalidAmount.With("adjust delta must not be zero")
	}
	a, err := t.lock(ctx, userID)
	if err != nil {
		return nil, err
	}
	if delta < 0 && a.available < -delta {
		return nil, ErrInsufficientBalance.With("available %d, adjust %d", a.available, delta)
	}
	if delta > 0 && delta > math.MaxInt64-a.available {
		return nil, ErrInvalidAmount.With("available overflow")
	}
	after := a.available + delta
	if err := t.setAvailable(ctx, userID, after); err != nil {
		return nil, err
	}
	e := entry(userID, TypeAdjust, delta, a.available, after, meta)
	if err := t.insert(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// NextWithdrawNonce reserva o nonce atual do usuário e incrementa o contador
func (t *Tx) NextWithdrawNonce(ctx context.Context, userID string) (int64, error) {
	a, err := t.lock(ctx, userID)
	if err != nil {
		return 0, err
	}
	if _, err := t.tx.Exec(ctx,
		`UPDATE accounts SET withdraw_nonce = withdraw_nonce + 1, version = version + 1, updated_at = ? WHERE user_id = ?`,
		t.now().UnixMilli(), userID); err != nil {
		return 0, err
	}
	return a.nonce, nil
}
