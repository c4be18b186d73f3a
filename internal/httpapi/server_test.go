package httpapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/kmarket/internal/bets"
	"github.com/radieske/kmarket/internal/httpapi"
	"github.com/radieske/kmarket/internal/ledger"
	"github.com/radieske/kmarket/internal/market/grid"
	"github.com/radieske/kmarket/internal/market/odds"
	"github.com/radieske/kmarket/internal/market/price"
	"github.com/radieske/kmarket/internal/store/storetest"
	"github.com/radieske/kmarket/internal/withdraw"
)

var t0 = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

const signerKey = "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func newServer(t *testing.T) (*httptest.Server, *int) {
	t.Helper()
	db := storetest.NewDB(t)
	now := func() time.Time { return t0 }

	prices := price.NewStore(5 * time.Second)
	prices.Now = now
	prices.Set("ETHUSDT", decimal.NewFromInt(2000), t0)
	g := grid.New(grid.Config{
		Symbol:      "ETHUSDT",
		Window:      360 * time.Second,
		Lock:        180 * time.Second,
		Grace:       30 * time.Second,
		TickRange:   20,
		TickSizePct: decimal.RequireFromString("0.5"),
	}, odds.NewEngine(odds.DefaultConfig()), prices)
	require.True(t, g.Advance(t0))
	grids := grid.NewRegistry(g)

	book := ledger.NewBook(db)
	repo := bets.NewRepo(db)
	signer, err := withdraw.NewSigner(signerKey, 137, "0x1111111111111111111111111111111111111111")
	require.NoError(t, err)

	replayed := new(int)
	api := &httpapi.API{
		Log:   zap.NewNop(),
		Grids: grids,
		Acceptor: &bets.Acceptor{
			Log: zap.NewNop(), DB: db, Book: book, Repo: repo, Grids: grids,
			MinAmount: 1, MaxAmount: 1_000_000, Now: now,
		},
		Bets:     repo,
		Book:     book,
		Withdraw: &withdraw.Service{Log: zap.NewNop(), DB: db, Book: book, Signer: signer, TTL: time.Hour, Now: now},
		Now:      now,
	}
	api.OnDepositReplayed = func() { *replayed++ }

	srv := httptest.NewServer(api.Router())
	t.Cleanup(srv.Close)
	return srv, replayed
}

func do(t *testing.T, method, url string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	out := map[string]any{}
	_ = json.NewDecoder(res.Body).Decode(&out)
	return res, out
}

func deposit(t *testing.T, srv *httptest.Server, user, hash string, amount int64) int {
	t.Helper()
	res, _ := do(t, http.MethodPost, srv.URL+"/v1/deposits", httpapi.DepositRequest{UserID: user, Amount: amount, TxHash: hash})
	return res.StatusCode
}

func TestGrid(t *testing.T) {
	srv, _ := newServer(t)

	res, body := do(t, http.MethodGet, srv.URL+"/v1/grid/ethusdt", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "ETHUSDT", body["symbol"])
	assert.Len(t, body["slices"], 360)

	res, body = do(t, http.MethodGet, srv.URL+"/v1/grid/DOGEUSDT", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "SYMBOL_NOT_FOUND", body["code"])
}

func TestDeposit_Idempotent(t *testing.T) {
	srv, replayed := newServer(t)

	assert.Equal(t, http.StatusCreated, deposit(t, srv, "alice", "0xABC", 1000))
	assert.Equal(t, http.StatusOK, deposit(t, srv, "alice", "0xabc", 1000))
	assert.Equal(t, 1, *replayed)

	res, body := do(t, http.MethodGet, srv.URL+"/v1/balance?userId=alice", nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.EqualValues(t, 1000, body["available"])

	res, body = do(t, http.MethodPost, srv.URL+"/v1/deposits", httpapi.DepositRequest{UserID: "alice", Amount: 5})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", body["code"])
}

func TestPlaceBet_Flow(t *testing.T) {
	srv, _ := newServer(t)
	require.Equal(t, http.StatusCreated, deposit(t, srv, "alice", "0x1", 1000))

	at := t0.Add(300 * time.Second).Unix()
	res, body := do(t, http.MethodPost, srv.URL+"/v1/bets", httpapi.PlaceBetRequest{
		UserID: "alice", Symbol: "ETHUSDT", SettlementTime: at, Tick: 2, Amount: 100,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	assert.Equal(t, "active", body["status"])

	res, body = do(t, http.MethodGet, srv.URL+"/v1/balance?userId=alice", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.EqualValues(t, 900, body["available"])
	assert.EqualValues(t, 100, body["atRisk"])

	res, body = do(t, http.MethodGet, srv.URL+"/v1/bets/active?userId=alice", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Len(t, body["positions"], 1)
	assert.EqualValues(t, 100, body["totalInBets"])

	res, body = do(t, http.MethodGet, srv.URL+"/v1/transactions?userId=alice&type=bet", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.EqualValues(t, 1, body["total"])
}

func TestPlaceBet_Rejections(t *testing.T) {
	srv, _ := newServer(t)
	require.Equal(t, http.StatusCreated, deposit(t, srv, "alice", "0x1", 50))

	cases := []struct {
		name   string
		req    httpapi.PlaceBetRequest
		status int
		code   string
	}{
		{"locked slice", httpapi.PlaceBetRequest{UserID: "alice", Symbol: "ETHUSDT", SettlementTime: t0.Add(60 * time.Second).Unix(), Tick: 0, Amount: 10}, http.StatusConflict, "SLICE_LOCKED"},
		{"unknown time", httpapi.PlaceBetRequest{UserID: "alice", Symbol: "ETHUSDT", SettlementTime: t0.Add(time.Hour).Unix(), Tick: 0, Amount: 10}, http.StatusNotFound, "INVALID_SETTLEMENT_TIME"},
		{"insufficient", httpapi.PlaceBetRequest{UserID: "alice", Symbol: "ETHUSDT", SettlementTime: t0.Add(300 * time.Second).Unix(), Tick: 0, Amount: 51}, http.StatusUnprocessableEntity, "INSUFFICIENT_BALANCE"},
		{"missing time", httpapi.PlaceBetRequest{UserID: "alice", Symbol: "ETHUSDT", Tick: 0, Amount: 10}, http.StatusBadRequest, "INVALID_REQUEST"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, body := do(t, http.MethodPost, srv.URL+"/v1/bets", tc.req)
			assert.Equal(t, tc.status, res.StatusCode)
			assert.Equal(t, tc.code, body["code"])
		})
	}

	res, body := do(t, http.MethodGet, srv.URL+"/v1/balance?userId=alice", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.EqualValues(t, 50, body["available"])
}

func TestBalance_Errors(t *testing.T) {
	srv, _ := newServer(t)

	res, body := do(t, http.MethodGet, srv.URL+"/v1/balance", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "INVALID_REQUEST", body["code"])

	res, body = do(t, http.MethodGet, srv.URL+"/v1/balance?userId=ghost", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "ACCOUNT_NOT_FOUND", body["code"])
}

func TestClaim_NothingToClaim(t *testing.T) {
	srv, _ := newServer(t)
	require.Equal(t, http.StatusCreated, deposit(t, srv, "alice", "0x1", 10))

	res, body := do(t, http.MethodPost, srv.URL+"/v1/claim", httpapi.ClaimRequest{UserID: "alice"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
	assert.Equal(t, "NOTHING_TO_CLAIM", body["code"])
}

func TestWithdraw(t *testing.T) {
	srv, _ := newServer(t)
	require.Equal(t, http.StatusCreated, deposit(t, srv, "alice", "0x1", 300))

	res, body := do(t, http.MethodPost, srv.URL+"/v1/withdrawals", httpapi.WithdrawRequest{
		UserID: "alice", Address: "0x2222222222222222222222222222222222222222", Amount: 200,
	})
	require.Equal(t, http.StatusCreated, res.StatusCode, body)
	assert.EqualValues(t, 0, body["nonce"])
	assert.NotEmpty(t, body["signature"])

	res, _ = do(t, http.MethodPost, srv.URL+"/v1/withdrawals", httpapi.WithdrawRequest{
		UserID: "alice", Address: "0x2222222222222222222222222222222222222222", Amount: 200,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)
}

func TestHistory_BadParams(t *testing.T) {
	srv, _ := newServer(t)

	res, _ := do(t, http.MethodGet, srv.URL+"/v1/bets/history?userId=alice&page=x", nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)

	res, body := do(t, http.MethodGet, srv.URL+"/v1/bets/history?userId=alice&page=1&limit="+strconv.Itoa(10), nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.EqualValues(t, 0, body["total"])
}
