// Package withdraw debita o saldo e emite o cupom assinado que o usuário
// resgata no contrato do vault.
package withdraw

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/radieske/kmarket/internal/ledger"
	"github.com/radieske/kmarket/internal/shared/apperr"
	"github.com/radieske/kmarket/internal/store"
)

type Coupon struct {
	User      string `json:"user"`
	Amount    int64  `json:"amount"`
	Nonce     int64  `json:"nonce"`
	Expiry    int64  `json:"expiry"`
	Signature string `json:"signature"`
	EntryID   string `json:"entryId"`
}

type Service struct {
	Log    *zap.Logger
	DB     *store.DB
	Book   *ledger.Book
	Signer *Signer
	TTL    time.Duration
	Now    func() time.Time
}

// Withdraw reserva o nonce, debita available e assina na mesma transação; se a
// assinatura falhar o débito é desfeito
func (s *Service) Withdraw(ctx context.Context, userID, address string, amount int64) (*Coupon, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, apperr.Invalid("userId is required")
	}
	if !common.IsHexAddress(address) {
		return nil, apperr.Invalid("invalid address %q", address)
	}
	if amount <= 0 {
		return nil, apperr.Invalid("amount must be positive")
	}
	if s.Signer == nil {
		return nil, apperr.Transient(fmt.Errorf("withdraw signer not configured"))
	}

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	user := common.HexToAddress(address)
	expiry := now().Add(s.TTL).Unix()

	var c Coupon
	err := s.DB.InTx(ctx, func(tx *store.Tx) error {
		lt := s.Book.On(tx)
		nonce, err := lt.NextWithdrawNonce(ctx, userID)
		if err != nil {
			return err
		}
		e, err := lt.Debit(ctx, userID, amount, ledger.TypeWithdraw, ledger.Meta{
			RefType: "chain_withdraw",
			RefID:   fmt.Sprintf("%s:%d", user.Hex(), nonce),
		})
		if err != nil {
			return err
		}
		sig, err := s.Signer.Sign(user, big.NewInt(amount), big.NewInt(nonce), big.NewInt(expiry))
		if err != nil {
			return err
		}
		c = Coupon{User: user.Hex(), Amount: amount, Nonce: nonce, Expiry: expiry, Signature: sig, EntryID: e.ID}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Log.Info("withdraw coupon issued",
		zap.String("user_id", userID),
		zap.String("address", c.User),
		zap.Int64("amount", amount),
		zap.Int64("nonce", c.Nonce))
	return &c, nil
}
