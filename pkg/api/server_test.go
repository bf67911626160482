package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fracshare/marketd/pkg/engine"
	"github.com/fracshare/marketd/pkg/engine/ledger"
	"github.com/fracshare/marketd/pkg/market"
	"github.com/fracshare/marketd/pkg/util"
)

const testProperty = "prop-harbor-7"

func newTestServer(t *testing.T) (*Server, *engine.Engine) {
	t.Helper()

	log := zap.NewNop().Sugar()
	led, err := ledger.New(t.TempDir(), log)
	require.NoError(t, err)
	t.Cleanup(func() { led.Close() })

	reg := market.NewRegistry()
	listing, err := market.NewListing(testProperty, "7 Harbor Way", 1000, 1, 500)
	require.NoError(t, err)
	require.NoError(t, reg.Register(listing))

	clock := util.NewManualClock(time.Unix(1_700_000_000, 0))
	eng := engine.New(reg, led, clock, log)
	return NewServer(eng, []string{"*"}, log), eng
}

func doJSON(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]string{"status": "ok"}, decode[map[string]string](t, rec))
}

func TestGetListings(t *testing.T) {
	s, _ := newTestServer(t)
	rec := doJSON(t, s, http.MethodGet, "/api/v1/listings", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	listings := decode[[]ListingInfo](t, rec)
	require.Len(t, listings, 1)
	assert.Equal(t, testProperty, listings[0].PropertyID)
	assert.Equal(t, "active", listings[0].Status)
	assert.Equal(t, int64(1000), listings[0].TotalShares)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/listings/prop-nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDepositAndWallet(t *testing.T) {
	s, _ := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/investors/bob/deposits", DepositRequest{Amount: "1000.00"})
	require.Equal(t, http.StatusOK, rec.Code)
	wallet := decode[WalletInfo](t, rec)
	assert.Equal(t, "1000.00", wallet.Balance)
	assert.Equal(t, "0.00", wallet.CommittedFunds)
	assert.Equal(t, "1000.00", wallet.Available)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/investors/bob/deposits", DepositRequest{Amount: "10.005"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/investors/bob/wallet", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1000.00", decode[WalletInfo](t, rec).Balance)
}

func TestSubmitOrderLifecycle(t *testing.T) {
	s, eng := newTestServer(t)

	require.NoError(t, eng.GrantShares("alice", testProperty, 10))
	require.NoError(t, eng.Deposit("bob", 200_000))

	// Alice lists 10 shares at 100.00.
	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
		InvestorID: "alice", PropertyID: testProperty, Side: "sell", Shares: 10, Price: "100.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	sell := decode[SubmitOrderResponse](t, rec)
	assert.Equal(t, "open", sell.Order.Status)
	assert.Empty(t, sell.Trades)

	// Bob lifts 4 at a better limit; executes at the maker's 100.00.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
		InvestorID: "bob", PropertyID: testProperty, Side: "buy", Shares: 4, Price: "105.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	buy := decode[SubmitOrderResponse](t, rec)
	assert.Equal(t, "filled", buy.Order.Status)
	require.Len(t, buy.Trades, 1)
	assert.Equal(t, "100.00", buy.Trades[0].Price)
	assert.Equal(t, int64(4), buy.Trades[0].Shares)

	// Book shows the resting remainder.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/listings/"+testProperty+"/book", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	snap := decode[BookSnapshot](t, rec)
	assert.Empty(t, snap.Bids)
	require.Len(t, snap.Asks, 1)
	assert.Equal(t, "100.00", snap.Asks[0].Price)
	assert.Equal(t, int64(6), snap.Asks[0].Shares)

	// Trade tape has the fill.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/listings/"+testProperty+"/trades", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	trades := decode[[]TradeInfo](t, rec)
	require.Len(t, trades, 1)
	assert.Equal(t, "100.00", trades[0].Price)

	// Positions reflect the transfer.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/investors/bob/positions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	positions := decode[[]PositionInfo](t, rec)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(4), positions[0].OwnedShares)

	// Alice's orders listing shows the partial fill.
	rec = doJSON(t, s, http.MethodGet, "/api/v1/investors/alice/orders", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	orders := decode[[]OrderInfo](t, rec)
	require.Len(t, orders, 1)
	assert.Equal(t, "partially_filled", orders[0].Status)
	assert.Equal(t, int64(6), orders[0].Remaining)

	// Cancel releases the remainder.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/cancel", CancelOrderRequest{
		InvestorID: "alice", OrderID: sell.Order.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "cancelled", decode[OrderInfo](t, rec).Status)
}

func TestSubmitOrderErrors(t *testing.T) {
	s, eng := newTestServer(t)
	require.NoError(t, eng.GrantShares("alice", testProperty, 5))

	cases := []struct {
		name string
		req  SubmitOrderRequest
		code int
	}{
		{"bad side", SubmitOrderRequest{InvestorID: "alice", PropertyID: testProperty, Side: "short", Shares: 1, Price: "10.00"}, http.StatusBadRequest},
		{"sub-cent price", SubmitOrderRequest{InvestorID: "alice", PropertyID: testProperty, Side: "sell", Shares: 1, Price: "10.001"}, http.StatusBadRequest},
		{"unknown property", SubmitOrderRequest{InvestorID: "alice", PropertyID: "prop-nope", Side: "sell", Shares: 1, Price: "10.00"}, http.StatusNotFound},
		{"insufficient shares", SubmitOrderRequest{InvestorID: "alice", PropertyID: testProperty, Side: "sell", Shares: 6, Price: "10.00"}, http.StatusUnprocessableEntity},
		{"insufficient funds", SubmitOrderRequest{InvestorID: "bob", PropertyID: testProperty, Side: "buy", Shares: 1, Price: "10.00"}, http.StatusUnprocessableEntity},
		{"zero shares", SubmitOrderRequest{InvestorID: "alice", PropertyID: testProperty, Side: "sell", Shares: 0, Price: "10.00"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", tc.req)
			assert.Equal(t, tc.code, rec.Code)

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestCancelOrderErrors(t *testing.T) {
	s, eng := newTestServer(t)
	require.NoError(t, eng.GrantShares("alice", testProperty, 5))
	require.NoError(t, eng.Deposit("bob", 100_000))

	rec := doJSON(t, s, http.MethodPost, "/api/v1/orders/cancel", CancelOrderRequest{InvestorID: "bob", OrderID: "no-such"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/cancel", CancelOrderRequest{InvestorID: "bob"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sellRec := doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
		InvestorID: "alice", PropertyID: testProperty, Side: "sell", Shares: 5, Price: "100.00",
	})
	require.Equal(t, http.StatusCreated, sellRec.Code)
	sell := decode[SubmitOrderResponse](t, sellRec)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/cancel", CancelOrderRequest{InvestorID: "bob", OrderID: sell.Order.ID})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Fill it, then cancelling again conflicts.
	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
		InvestorID: "bob", PropertyID: testProperty, Side: "buy", Shares: 5, Price: "100.00",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/orders/cancel", CancelOrderRequest{InvestorID: "alice", OrderID: sell.Order.ID})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestGrantShares(t *testing.T) {
	s, eng := newTestServer(t)

	rec := doJSON(t, s, http.MethodPost, "/api/v1/investors/alice/shares", GrantSharesRequest{PropertyID: testProperty, Shares: 25})
	assert.Equal(t, http.StatusNoContent, rec.Code)

	positions, err := eng.Positions("alice")
	require.NoError(t, err)
	require.Len(t, positions, 1)
	assert.Equal(t, int64(25), positions[0].OwnedShares)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/investors/alice/shares", GrantSharesRequest{PropertyID: "prop-nope", Shares: 5})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, s, http.MethodPost, "/api/v1/investors/alice/shares", GrantSharesRequest{PropertyID: testProperty, Shares: 0})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetTradesLimit(t *testing.T) {
	s, eng := newTestServer(t)
	require.NoError(t, eng.GrantShares("alice", testProperty, 6))
	require.NoError(t, eng.Deposit("bob", 200_000))

	for i := 0; i < 3; i++ {
		rec := doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
			InvestorID: "alice", PropertyID: testProperty, Side: "sell", Shares: 2, Price: "100.00",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		rec = doJSON(t, s, http.MethodPost, "/api/v1/orders", SubmitOrderRequest{
			InvestorID: "bob", PropertyID: testProperty, Side: "buy", Shares: 2, Price: "100.00",
		})
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := doJSON(t, s, http.MethodGet, "/api/v1/listings/"+testProperty+"/trades?limit=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]TradeInfo](t, rec), 2)

	rec = doJSON(t, s, http.MethodGet, "/api/v1/listings/"+testProperty+"/trades?limit=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
