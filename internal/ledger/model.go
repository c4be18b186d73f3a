package ledger

import (
	"github.com/radieske/kmarket/internal/shared/apperr"
)

type EntryType string

const (
	TypeDeposit  EntryType = "deposit"
	TypeWithdraw EntryType = "withdraw"
	TypeBet      EntryType = "bet"
	TypeWin      EntryType = "win"
	TypeLose     EntryType = "lose"
	TypeClaim    EntryType = "claim"
	TypeAdjust   EntryType = "adjust"
)

func (t EntryType) Valid() bool {
	switch t {
	case TypeDeposit, TypeWithdraw, TypeBet, TypeWin, TypeLose, TypeClaim, TypeAdjust:
		return true
	}
	return false
}

// Meta descreve a origem do lançamento
type Meta struct {
	RefType        string
	RefID          string
	IdempotencyKey string
	Remark         string
}

// Entry é uma linha imutável do livro. BalanceBefore/After são do campo que a
// operação alterou (available ou claimable).
type Entry struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	Type           EntryType `json:"type"`
	Amount         int64     `json:"amount"`
	BalanceBefore  int64     `json:"balanceBefore"`
	BalanceAfter   int64     `json:"balanceAfter"`
	RefType        string    `json:"refType,omitempty"`
	RefID          string    `json:"refId,omitempty"`
	IdempotencyKey string    `json:"idempotencyKey,omitempty"`
	Remark         string    `json:"remark,omitempty"`
	CreatedAtMs    int64     `json:"createdAt"`
}

// Balance: AtRisk é derivado das apostas ativas, nunca armazenado
type Balance struct {
	UserID    string `json:"userId"`
	Available int64  `json:"available"`
	Claimable int64  `json:"claimable"`
	AtRisk    int64  `json:"atRisk"`
	Total     int64  `json:"total"`
}

type CreditResult struct {
	AlreadyProcessed bool   `json:"alreadyProcessed"`
	Entry            *Entry `json:"entry,omitempty"`
}

type ClaimResult struct {
	Claimed      int64 `json:"claimed"`
	NewAvailable int64 `json:"newAvailable"`
}

// Filter pagina o extrato; Type vazio traz todos
type Filter struct {
	Type   EntryType
	Limit  int
	Offset int
}

var (
	ErrInsufficientBalance = apperr.New(apperr.KindInsufficientBalance, "INSUFFICIENT_BALANCE", "insufficient balance")
	ErrNothingToClaim      = apperr.New(apperr.KindNothingToClaim, "NOTHING_TO_CLAIM", "nothing to claim")
	ErrAccountNotFound     = apperr.New(apperr.KindNotFound, "ACCOUNT_NOT_FOUND", "account not found")
	ErrInvalidAmount       = apperr.New(apperr.KindValidation, "INVALID_AMOUNT", "invalid amount")
)
