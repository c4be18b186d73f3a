// Package httpapi expõe a API REST do mercado (chi) e o endpoint WebSocket do grid.
package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/kmarket/internal/bets"
	"github.com/radieske/kmarket/internal/ledger"
	"github.com/radieske/kmarket/internal/market/grid"
	"github.com/radieske/kmarket/internal/shared/apperr"
	"github.com/radieske/kmarket/internal/stream"
	"github.com/radieske/kmarket/internal/withdraw"
)

// API agrupa as dependências dos handlers. Identidade vem já autenticada no
// userId da requisição.
type API struct {
	Log      *zap.Logger
	Grids    *grid.Registry
	Acceptor *bets.Acceptor
	Bets     *bets.Repo
	Book     *ledger.Book
	Withdraw *withdraw.Service
	Hub      *stream.Hub
	Now      func() time.Time

	OnDepositReplayed func()
}

var (
	ErrSymbolNotFound   = apperr.New(apperr.KindNotFound, "SYMBOL_NOT_FOUND", "symbol not traded")
	ErrWithdrawDisabled = apperr.New(apperr.KindStateConflict, "WITHDRAW_DISABLED", "withdrawals not configured")
)

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Get("/grid/{symbol}", a.getGrid)
		r.Post("/bets", a.placeBet)
		r.Get("/bets/active", a.activeBets)
		r.Get("/bets/history", a.betHistory)
		r.Get("/balance", a.balance)
		r.Post("/claim", a.claim)
		r.Get("/transactions", a.transactions)
		r.Post("/deposits", a.deposit)
		r.Post("/withdrawals", a.withdraw)
	})
	if a.Hub != nil {
		r.Get("/ws", a.Hub.HandleWS)
	}
	return r
}

func (a *API) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError traduz o Kind para status HTTP; erros sem classificação não vazam detalhes
func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.HTTPStatus(err)
	resp := ErrorResponse{Code: apperr.CodeOf(err), Message: err.Error()}
	switch apperr.KindOf(err) {
	case apperr.KindUnknown:
		resp.Message = "internal error"
		a.Log.Error("unhandled error", zap.String("path", r.URL.Path), zap.Error(err))
	case apperr.KindTransient:
		resp.Message = "temporary failure, retry"
		a.Log.Warn("transient error", zap.String("path", r.URL.Path), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Invalid("bad json: %v", err)
	}
	return nil
}

func userID(r *http.Request) (string, error) {
	id := strings.TrimSpace(r.URL.Query().Get("userId"))
	if id == "" {
		return "", apperr.Invalid("userId required")
	}
	return id, nil
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, apperr.Invalid("%s must be a non-negative integer", name)
	}
	return n, nil
}

func (a *API) getGrid(w http.ResponseWriter, r *http.Request) {
	symbol := strings.ToUpper(chi.URLParam(r, "symbol"))
	g, ok := a.Grids.Get(symbol)
	if !ok {
		a.writeError(w, r, ErrSymbolNotFound.With("%s", symbol))
		return
	}
	writeJSON(w, http.StatusOK, g.Snapshot())
}

func (a *API) placeBet(w http.ResponseWriter, r *http.Request) {
	var req PlaceBetRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if req.SettlementTime <= 0 {
		a.writeError(w, r, apperr.Invalid("settlementTime required"))
		return
	}
	b, err := a.Acceptor.PlaceBet(r.Context(), bets.PlaceBetRequest{
		UserID:         req.UserID,
		Symbol:         req.Symbol,
		SettlementTime: time.Unix(req.SettlementTime, 0).UTC(),
		Tick:           req.Tick,
		Amount:         req.Amount,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (a *API) activeBets(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.Bets.ListActive(r.Context(), uid, a.now())
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) betHistory(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	page, err := intParam(r, "page", 1)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	out, err := a.Bets.History(r.Context(), uid, page, limit)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (a *API) balance(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	bal, err := a.Book.Balance(r.Context(), uid)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}

func (a *API) claim(w http.ResponseWriter, r *http.Request) {
	var req ClaimRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		a.writeError(w, r, apperr.Invalid("userId required"))
		return
	}
	res, err := a.Book.Claim(r.Context(), req.UserID)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	a.Log.Info("claim", zap.String("user_id", req.UserID), zap.Int64("claimed", res.Claimed))
	writeJSON(w, http.StatusOK, res)
}

func (a *API) transactions(w http.ResponseWriter, r *http.Request) {
	uid, err := userID(r)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	limit, err := intParam(r, "limit", 20)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	typ := ledger.EntryType(r.URL.Query().Get("type"))
	if typ != "" && !typ.Valid() {
		a.writeError(w, r, apperr.Invalid("unknown type %q", typ))
		return
	}
	items, total, err := a.Book.Transactions(r.Context(), uid, ledger.Filter{Type: typ, Limit: limit, Offset: offset})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TransactionsResponse{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (a *API) deposit(w http.ResponseWriter, r *http.Request) {
	var req DepositRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.UserID) == "" || strings.TrimSpace(req.TxHash) == "" {
		a.writeError(w, r, apperr.Invalid("userId and txHash required"))
		return
	}
	txHash := strings.ToLower(req.TxHash)
	res, err := a.Book.CreditAvailableIdempotent(r.Context(), req.UserID, req.Amount, ledger.Meta{
		RefType:        "chain_deposit",
		RefID:          txHash,
		IdempotencyKey: "deposit:" + txHash,
	})
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	if res.AlreadyProcessed {
		if a.OnDepositReplayed != nil {
			a.OnDepositReplayed()
		}
		a.Log.Info("deposit replayed", zap.String("user_id", req.UserID), zap.String("tx_hash", txHash))
		writeJSON(w, http.StatusOK, res)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (a *API) withdraw(w http.ResponseWriter, r *http.Request) {
	if a.Withdraw == nil {
		a.writeError(w, r, ErrWithdrawDisabled)
		return
	}
	var req WithdrawRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, r, err)
		return
	}
	c, err := a.Withdraw.Withdraw(r.Context(), req.UserID, req.Address, req.Amount)
	if err != nil {
		a.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}
