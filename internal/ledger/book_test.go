package ledger_test

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/kmarket/internal/ledger"
	"github.com/radieske/kmarket/internal/shared/apperr"
	"github.com/radieske/kmarket/internal/store"
	"github.com/radieske/kmarket/internal/store/storetest"
)

func newBook(t *testing.T) (*ledger.Book, *store.DB) {
	db := storetest.NewDB(t)
	return ledger.NewBook(db), db
}

func deposit(t *testing.T, b *ledger.Book, user string, amount int64, key string) {
	t.Helper()
	_, err := b.CreditAvailableIdempotent(context.Background(), user, amount, ledger.Meta{RefType: "chain_deposit", IdempotencyKey: key})
	require.NoError(t, err)
}

func TestDebit_InsufficientBalanceExample(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)
	deposit(t, b, "alice", 50000, "0xdep1") // 500.00

	_, err := b.Debit(ctx, "alice", 50001, ledger.TypeBet, ledger.Meta{})
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
	assert.Equal(t, apperr.KindInsufficientBalance, apperr.KindOf(err))

	bal, err := b.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(50000), bal.Available)

	e, err := b.Debit(ctx, "alice", 50000, ledger.TypeBet, ledger.Meta{RefType: "bet", RefID: "b1"})
	require.NoError(t, err)
	assert.Equal(t, int64(50000), e.BalanceBefore)
	assert.Equal(t, int64(0), e.BalanceAfter)

	bal, err = b.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Zero(t, bal.Available)
}

func TestDebit_RejectsNonPositive(t *testing.T) {
	b, _ := newBook(t)
	deposit(t, b, "alice", 100, "k")
	_, err := b.Debit(context.Background(), "alice", 0, ledger.TypeBet, ledger.Meta{})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
	_, err = b.Debit(context.Background(), "alice", -5, ledger.TypeBet, ledger.Meta{})
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestUnknownAccount(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)

	_, err := b.Debit(ctx, "ghost", 1, ledger.TypeBet, ledger.Meta{})
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
	_, err = b.Balance(ctx, "ghost")
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))
	_, err = b.Claim(ctx, "ghost")
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestDeposit_ReplayAppliedOnce(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)

	meta := ledger.Meta{RefType: "chain_deposit", RefID: "0xabc", IdempotencyKey: "0xabc"}
	first, err := b.CreditAvailableIdempotent(ctx, "bob", 700, meta)
	require.NoError(t, err)
	assert.False(t, first.AlreadyProcessed)
	require.NotNil(t, first.Entry)
	assert.Equal(t, ledger.TypeDeposit, first.Entry.Type)

	again, err := b.CreditAvailableIdempotent(ctx, "bob", 700, meta)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Nil(t, again.Entry)

	bal, err := b.Balance(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, int64(700), bal.Available)

	entries, total, err := b.Transactions(ctx, "bob", ledger.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, entries, 1)
	assert.Equal(t, "0xabc", entries[0].IdempotencyKey)
}

func TestDeposit_RequiresKey(t *testing.T) {
	b, _ := newBook(t)
	_, err := b.CreditAvailableIdempotent(context.Background(), "bob", 1, ledger.Meta{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestCreditClaimable_ZeroIsNoop(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)
	deposit(t, b, "carol", 10, "k1")

	e, err := b.CreditClaimable(ctx, "carol", 0, ledger.TypeLose, ledger.Meta{RefType: "bet", RefID: "x"})
	require.NoError(t, err)
	assert.Nil(t, e)

	_, total, err := b.Transactions(ctx, "carol", ledger.Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total, "só o depósito")
}

func TestClaim(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)
	deposit(t, b, "dave", 100, "k1")

	_, err := b.Claim(ctx, "dave")
	require.ErrorIs(t, err, ledger.ErrNothingToClaim)
	assert.Equal(t, apperr.KindNothingToClaim, apperr.KindOf(err))

	_, err = b.CreditClaimable(ctx, "dave", 180, ledger.TypeWin, ledger.Meta{RefType: "bet", RefID: "b1"})
	require.NoError(t, err)
	_, err = b.CreditClaimable(ctx, "dave", 55, ledger.TypeLose, ledger.Meta{RefType: "bet", RefID: "b2"})
	require.NoError(t, err)

	res, err := b.Claim(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, ledger.ClaimResult{Claimed: 235, NewAvailable: 335}, res)

	bal, err := b.Balance(ctx, "dave")
	require.NoError(t, err)
	assert.Equal(t, int64(335), bal.Available)
	assert.Zero(t, bal.Claimable)

	claims, total, err := b.Transactions(ctx, "dave", ledger.Filter{Type: ledger.TypeClaim})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, int64(100), claims[0].BalanceBefore)
	assert.Equal(t, int64(335), claims[0].BalanceAfter)
}

func TestAdjust(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)
	deposit(t, b, "erin", 100, "k1")

	_, err := b.Adjust(ctx, "erin", -101, ledger.Meta{Remark: "chargeback"})
	assert.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	e, err := b.Adjust(ctx, "erin", -40, ledger.Meta{Remark: "chargeback"})
	require.NoError(t, err)
	assert.Equal(t, int64(-40), e.Amount)
	assert.Equal(t, int64(60), e.BalanceAfter)
}

func TestNextWithdrawNonce(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)
	deposit(t, b, "fred", 1, "k1")

	for want := int64(0); want < 3; want++ {
		var got int64
		require.NoError(t, b.InTx(ctx, func(tx *ledger.Tx) error {
			var err error
			got, err = tx.NextWithdrawNonce(ctx, "fred")
			return err
		}))
		assert.Equal(t, want, got)
	}
}

func TestDebit_ConcurrentSameUser(t *testing.T) {
	ctx := context.Background()
	b, _ := newBook(t)
	deposit(t, b, "gina", 100, "k1")

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, short := 0, 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := b.Debit(ctx, "gina", 10, ledger.TypeBet, ledger.Meta{})
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else if apperr.KindOf(err) == apperr.KindInsufficientBalance {
				short++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, ok)
	assert.Equal(t, 10, short)

	bal, err := b.Balance(ctx, "gina")
	require.NoError(t, err)
	assert.Zero(t, bal.Available)
}

// Sequências aleatórias de aposta, liquidação e claim preservam
// available+claimable+atRisk, que só muda com depósitos.
func TestConservation_RandomSequences(t *testing.T) {
	ctx := context.Background()
	b, db := newBook(t)
	rng := rand.New(rand.NewSource(42))

	const user = "hank"
	external := int64(0)
	var active []string
	seq := 0

	check := func(step int) {
		bal, err := b.Balance(ctx, user)
		require.NoError(t, err)
		require.Equal(t, external, bal.Available+bal.Claimable+bal.AtRisk, "step %d", step)
		require.Equal(t, bal.Total, bal.Available+bal.Claimable+bal.AtRisk)
	}

	deposit(t, b, user, 1000, "seed")
	external = 1000
	check(0)

	for step := 1; step <= 300; step++ {
		switch op := rng.Intn(4); op {
		case 0:
			amt := int64(rng.Intn(500) + 1)
			deposit(t, b, user, amt, fmt.Sprintf("dep-%d", step))
			external += amt
		case 1:
			amt := int64(rng.Intn(300) + 1)
			seq++
			id := fmt.Sprintf("bet-%d", seq)
			err := db.InTx(ctx, func(tx *store.Tx) error {
				if _, err := b.On(tx).Debit(ctx, user, amt, ledger.TypeBet, ledger.Meta{RefType: "bet", RefID: id}); err != nil {
					return err
				}
				return insertBet(ctx, tx, id, user, amt)
			})
			if err == nil {
				active = append(active, id)
			} else {
				require.ErrorIs(t, err, ledger.ErrInsufficientBalance)
			}
		case 2:
			if len(active) == 0 {
				continue
			}
			id := active[0]
			active = active[1:]
			err := db.InTx(ctx, func(tx *store.Tx) error {
				amt, err := settleBet(ctx, tx, id)
				if err != nil {
					return err
				}
				_, err = b.On(tx).CreditClaimable(ctx, user, amt, ledger.TypeLose, ledger.Meta{RefType: "bet", RefID: id})
				return err
			})
			require.NoError(t, err)
		case 3:
			_, err := b.Claim(ctx, user)
			if err != nil {
				require.ErrorIs(t, err, ledger.ErrNothingToClaim)
			}
		}
		check(step)
	}
}

// insertBet/settleBet simulam o lado das apostas na mesma transação do livro.
// A liquidação devolve o valor integral ao claimable, o que mantém o total.
func insertBet(ctx context.Context, tx *store.Tx, id, user string, amt int64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO bets(id, user_id, symbol, amount, tick, tick_lower, tick_upper, basis_price, odds_x100, settlement_time, status, created_at)
		VALUES(?, ?, 'ETHUSDT', ?, 0, '1995', '2005', '2000', 110, 0, 'active', 0)`, id, user, amt)
	return err
}

func settleBet(ctx context.Context, tx *store.Tx, id string) (int64, error) {
	var amt int64
	if err := tx.QueryRow(ctx, `SELECT amount FROM bets WHERE id = ?`, id).Scan(&amt); err != nil {
		return 0, err
	}
	_, err := tx.Exec(ctx, `UPDATE bets SET status = 'lost', payout = ? WHERE id = ? AND status = 'active'`, amt, id)
	return amt, err
}
