package httpapi

type PlaceBetRequest struct {
	UserID         string `json:"userId"`
	Symbol         string `json:"symbol"`
	SettlementTime int64  `json:"settlementTime"` // unix segundos
	Tick           int    `json:"tick"`
	Amount         int64  `json:"amount"`
}

type ClaimRequest struct {
	UserID string `json:"userId"`
}

// DepositRequest é chamado pelo listener on-chain; TxHash é a chave de idempotência
type DepositRequest struct {
	UserID string `json:"userId"`
	Amount int64  `json:"amount"`
	TxHash string `json:"txHash"`
}

type WithdrawRequest struct {
	UserID  string `json:"userId"`
	Address string `json:"address"`
	Amount  int64  `json:"amount"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type TransactionsResponse struct {
	Items  any `json:"items"`
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}
