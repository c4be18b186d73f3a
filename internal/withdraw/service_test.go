package withdraw

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/kmarket/internal/ledger"
	"github.com/radieske/kmarket/internal/shared/apperr"
	"github.com/radieske/kmarket/internal/store/storetest"
)

const (
	testKey   = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"
	testVault = "0x1111111111111111111111111111111111111111"
	userAddr  = "0x2222222222222222222222222222222222222222"
)

func TestSigner_RecoversAddress(t *testing.T) {
	s, err := NewSigner(testKey, 137, testVault)
	require.NoError(t, err)

	user := common.HexToAddress(userAddr)
	sigHex, err := s.Sign(user, big.NewInt(500), big.NewInt(0), big.NewInt(1_700_000_000))
	require.NoError(t, err)

	sig, err := hexutil.Decode(sigHex)
	require.NoError(t, err)
	require.Len(t, sig, 65)
	assert.Contains(t, []byte{27, 28}, sig[64])

	sig[64] -= 27
	pub, err := ethcrypto.SigToPub(s.Digest(user, big.NewInt(500), big.NewInt(0), big.NewInt(1_700_000_000)), sig)
	require.NoError(t, err)
	assert.Equal(t, s.Address(), ethcrypto.PubkeyToAddress(*pub))
}

func TestSigner_DomainBindsChain(t *testing.T) {
	a, err := NewSigner(testKey, 137, testVault)
	require.NoError(t, err)
	b, err := NewSigner(testKey, 80002, testVault)
	require.NoError(t, err)

	user := common.HexToAddress(userAddr)
	one := big.NewInt(1)
	assert.NotEqual(t, a.Digest(user, one, one, one), b.Digest(user, one, one, one))

	_, err = NewSigner("zz", 137, testVault)
	assert.Error(t, err)
	_, err = NewSigner(testKey, 137, "not-an-address")
	assert.Error(t, err)
}

func newService(t *testing.T) (*Service, *ledger.Book) {
	db := storetest.NewDB(t)
	book := ledger.NewBook(db)
	signer, err := NewSigner(testKey, 137, testVault)
	require.NoError(t, err)
	return &Service{
		Log:    zap.NewNop(),
		DB:     db,
		Book:   book,
		Signer: signer,
		TTL:    time.Hour,
		Now:    func() time.Time { return time.Unix(1_700_000_000, 0) },
	}, book
}

func TestWithdraw_DebitsAndSigns(t *testing.T) {
	ctx := context.Background()
	svc, book := newService(t)
	_, err := book.CreditAvailableIdempotent(ctx, "alice", 1000, ledger.Meta{IdempotencyKey: "0xdep"})
	require.NoError(t, err)

	c1, err := svc.Withdraw(ctx, "alice", userAddr, 300)
	require.NoError(t, err)
	assert.Equal(t, int64(0), c1.Nonce)
	assert.Equal(t, int64(1_700_003_600), c1.Expiry)
	assert.Equal(t, common.HexToAddress(userAddr).Hex(), c1.User)

	c2, err := svc.Withdraw(ctx, "alice", userAddr, 200)
	require.NoError(t, err)
	assert.Equal(t, int64(1), c2.Nonce)
	assert.NotEqual(t, c1.Signature, c2.Signature)

	bal, err := book.Balance(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, int64(500), bal.Available)

	entries, total, err := book.Transactions(ctx, "alice", ledger.Filter{Type: ledger.TypeWithdraw})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, "chain_withdraw", entries[0].RefType)
}

func TestWithdraw_InsufficientRollsBackNonce(t *testing.T) {
	ctx := context.Background()
	svc, book := newService(t)
	_, err := book.CreditAvailableIdempotent(ctx, "alice", 100, ledger.Meta{IdempotencyKey: "0xdep"})
	require.NoError(t, err)

	_, err = svc.Withdraw(ctx, "alice", userAddr, 101)
	require.ErrorIs(t, err, ledger.ErrInsufficientBalance)

	c, err := svc.Withdraw(ctx, "alice", userAddr, 100)
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Nonce, "nonce da tentativa falha não foi consumido")
}

func TestWithdraw_Validation(t *testing.T) {
	svc, _ := newService(t)
	_, err := svc.Withdraw(context.Background(), "alice", "0x123", 10)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	_, err = svc.Withdraw(context.Background(), "alice", userAddr, 0)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	svc.Signer = nil
	_, err = svc.Withdraw(context.Background(), "alice", userAddr, 10)
	assert.Equal(t, apperr.KindTransient, apperr.KindOf(err))
}
