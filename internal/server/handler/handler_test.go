package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pulsemarket/pulsed/internal/condition"
	"github.com/pulsemarket/pulsed/internal/domain"
	"github.com/pulsemarket/pulsed/internal/ledger"
)

var (
	testOwner    = common.HexToAddress("0x00000000000000000000000000000000000000aa")
	testCreator  = common.HexToAddress("0x0000000000000000000000000000000000000001")
	testBettor   = common.HexToAddress("0x0000000000000000000000000000000000000002")
	testContract = common.HexToAddress("0x000000000000000000000000000000000000dead")
)

// ledgerReader adapts the ledger's synchronous reads to the MarketReader
// surface the handlers consume.
type ledgerReader struct {
	l *ledger.Ledger
}

func (r ledgerReader) GetMarket(_ context.Context, id uint64) (domain.Market, error) {
	return r.l.GetMarket(id)
}

func (r ledgerReader) ListMarkets(_ context.Context, opts domain.ListOpts) []domain.Market {
	return r.l.GetMarkets(opts.Offset, opts.Limit)
}

func (r ledgerReader) Count(_ context.Context) int {
	return r.l.MarketCount()
}

func newTestLedger(t *testing.T) *ledger.Ledger {
	t.Helper()

	minBet, _ := new(big.Int).SetString("1000000000000000", 10)
	minBond, _ := new(big.Int).SetString("10000000000000000", 10)

	return ledger.New(ledger.Params{
		MinBet:          minBet,
		MinCreationBond: minBond,
		PlatformFeeBps:  100,
		CreatorFeeBps:   200,
		MaxQuestionLen:  280,
		Owner:           testOwner,
	}, nil, slog.Default())
}

func jsonBody(t *testing.T, v any) *bytes.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

// createTestMarket drives the creation endpoint and returns the decoded
// market.
func createTestMarket(t *testing.T, h *MarketHandler) domain.Market {
	t.Helper()

	cond := condition.MustEncode(condition.Condition{
		Op:        condition.OpGT,
		Threshold: big.NewInt(100),
	})
	body := jsonBody(t, createMarketRequest{
		Creator:         testCreator.Hex(),
		Question:        "Will the watched transfer exceed 100?",
		WatchedContract: testContract.Hex(),
		EventTopic:      domain.TopicTransfer.Hex(),
		ConditionData:   cond,
		DurationSeconds: 3600,
		BondWei:         "10000000000000000",
	})

	req := httptest.NewRequest(http.MethodPost, "/api/markets", body)
	rec := httptest.NewRecorder()
	h.CreateMarket(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var m domain.Market
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m
}

func TestCreateMarketEndpoint(t *testing.T) {
	l := newTestLedger(t)
	h := NewMarketHandler(ledgerReader{l}, l, slog.Default())

	m := createTestMarket(t, h)
	assert.Equal(t, uint64(0), m.ID)
	assert.Equal(t, domain.MarketStatusActive, m.Status)
	assert.Equal(t, "10000000000000000", m.TotalYesBets.String())
}

func TestCreateMarketEndpointValidation(t *testing.T) {
	l := newTestLedger(t)
	h := NewMarketHandler(ledgerReader{l}, l, slog.Default())

	cases := []struct {
		name string
		req  createMarketRequest
		want int
	}{
		{
			name: "bad creator address",
			req: createMarketRequest{
				Creator:         "not-an-address",
				Question:        "valid?",
				WatchedContract: testContract.Hex(),
				DurationSeconds: 3600,
				BondWei:         "10000000000000000",
			},
			want: http.StatusBadRequest,
		},
		{
			name: "bad bond",
			req: createMarketRequest{
				Creator:         testCreator.Hex(),
				Question:        "valid?",
				WatchedContract: testContract.Hex(),
				DurationSeconds: 3600,
				BondWei:         "lots",
			},
			want: http.StatusBadRequest,
		},
		{
			name: "bond below minimum",
			req: createMarketRequest{
				Creator:         testCreator.Hex(),
				Question:        "valid?",
				WatchedContract: testContract.Hex(),
				DurationSeconds: 3600,
				BondWei:         "1",
			},
			want: http.StatusBadRequest,
		},
		{
			name: "empty question",
			req: createMarketRequest{
				Creator:         testCreator.Hex(),
				Question:        "  ",
				WatchedContract: testContract.Hex(),
				DurationSeconds: 3600,
				BondWei:         "10000000000000000",
			},
			want: http.StatusBadRequest,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/markets", jsonBody(t, tc.req))
			rec := httptest.NewRecorder()
			h.CreateMarket(rec, req)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestGetMarketEndpoint(t *testing.T) {
	l := newTestLedger(t)
	h := NewMarketHandler(ledgerReader{l}, l, slog.Default())
	createTestMarket(t, h)

	req := httptest.NewRequest(http.MethodGet, "/api/markets/0", nil)
	req.SetPathValue("id", "0")
	rec := httptest.NewRecorder()
	h.GetMarket(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/markets/9", nil)
	req.SetPathValue("id", "9")
	rec = httptest.NewRecorder()
	h.GetMarket(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/markets/abc", nil)
	req.SetPathValue("id", "abc")
	rec = httptest.NewRecorder()
	h.GetMarket(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListMarketsEndpoint(t *testing.T) {
	l := newTestLedger(t)
	h := NewMarketHandler(ledgerReader{l}, l, slog.Default())
	for i := 0; i < 3; i++ {
		createTestMarket(t, h)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/markets?limit=2&offset=1", nil)
	rec := httptest.NewRecorder()
	h.ListMarkets(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Markets []domain.Market `json:"markets"`
		Total   int             `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Markets, 2)
	assert.Equal(t, uint64(1), resp.Markets[0].ID)
	assert.Equal(t, uint64(2), resp.Markets[1].ID)
	assert.Equal(t, 3, resp.Total)
}

func TestPlaceBetEndpoint(t *testing.T) {
	l := newTestLedger(t)
	mh := NewMarketHandler(ledgerReader{l}, l, slog.Default())
	bh := NewBetHandler(l, slog.Default())
	m := createTestMarket(t, mh)

	place := func(bettor string, amount string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/markets/0/bets",
			jsonBody(t, placeBetRequest{Bettor: bettor, IsYes: false, AmountWei: amount}))
		req.SetPathValue("id", "0")
		rec := httptest.NewRecorder()
		bh.PlaceBet(rec, req)
		return rec
	}

	rec := place(testBettor.Hex(), "2000000000000000")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var bet domain.Bet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bet))
	assert.Equal(t, m.ID, bet.MarketID)
	assert.False(t, bet.IsYes)

	// One bet per address per market.
	rec = place(testBettor.Hex(), "2000000000000000")
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Below the minimum stake.
	rec = place(common.HexToAddress("0x05").Hex(), "1")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetBetEndpoint(t *testing.T) {
	l := newTestLedger(t)
	mh := NewMarketHandler(ledgerReader{l}, l, slog.Default())
	bh := NewBetHandler(l, slog.Default())
	createTestMarket(t, mh)

	// No bet: the zero-valued bet, not an error.
	req := httptest.NewRequest(http.MethodGet, "/api/markets/0/bets/"+testBettor.Hex(), nil)
	req.SetPathValue("id", "0")
	req.SetPathValue("address", testBettor.Hex())
	rec := httptest.NewRecorder()
	bh.GetBet(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var bet domain.Bet
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bet))
	assert.False(t, bet.Exists())
}

func TestSubscribeEndpoint(t *testing.T) {
	l := newTestLedger(t)
	mh := NewMarketHandler(ledgerReader{l}, l, slog.Default())
	sh := NewSubscriptionHandler(l, false, slog.Default())
	createTestMarket(t, mh)

	subscribe := func(caller string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/markets/0/subscribe",
			jsonBody(t, subscribeRequest{Caller: caller}))
		req.SetPathValue("id", "0")
		rec := httptest.NewRecorder()
		sh.Subscribe(rec, req)
		return rec
	}

	rec := subscribe(testBettor.Hex())
	assert.Equal(t, http.StatusCreated, rec.Code)

	rec = subscribe(testBettor.Hex())
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestSubscribeEndpointRestrictedToCreator(t *testing.T) {
	l := newTestLedger(t)
	mh := NewMarketHandler(ledgerReader{l}, l, slog.Default())
	sh := NewSubscriptionHandler(l, true, slog.Default())
	createTestMarket(t, mh)

	req := httptest.NewRequest(http.MethodPost, "/api/markets/0/subscribe",
		jsonBody(t, subscribeRequest{Caller: testBettor.Hex()}))
	req.SetPathValue("id", "0")
	rec := httptest.NewRecorder()
	sh.Subscribe(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/markets/0/subscribe",
		jsonBody(t, subscribeRequest{Caller: testCreator.Hex()}))
	req.SetPathValue("id", "0")
	rec = httptest.NewRecorder()
	sh.Subscribe(rec, req)
	assert.Equal(t, http.StatusCreated, rec.Code)
}

func TestListSubscriptionsEndpoint(t *testing.T) {
	l := newTestLedger(t)
	sh := NewSubscriptionHandler(l, false, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/subscriptions", nil)
	rec := httptest.NewRecorder()
	sh.ListSubscriptions(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"subscriptions":[]}`, rec.Body.String())
}

func TestReactEndpoint(t *testing.T) {
	l := newTestLedger(t)
	mh := NewMarketHandler(ledgerReader{l}, l, slog.Default())
	rh := NewSettlementHandler(l, false, "", slog.Default())
	createTestMarket(t, mh)
	require.NoError(t, l.SubscribeMarket(0))

	payload := make([]byte, 32)
	big.NewInt(200).FillBytes(payload)

	body := jsonBody(t, reactRequest{
		ChainID:  50312,
		Contract: testContract.Hex(),
		Topic0:   domain.TopicTransfer.Hex(),
		Data:     hexutil.Bytes(payload),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/react", body)
	rec := httptest.NewRecorder()
	rh.React(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp reactResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []uint64{0}, resp.SettledMarketIDs)

	// A duplicate delivery settles nothing further.
	req = httptest.NewRequest(http.MethodPost, "/api/react", jsonBody(t, reactRequest{
		Contract: testContract.Hex(),
		Topic0:   domain.TopicTransfer.Hex(),
		Data:     hexutil.Bytes(payload),
	}))
	rec = httptest.NewRecorder()
	rh.React(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.SettledMarketIDs)
}

func TestReactEndpointRestricted(t *testing.T) {
	l := newTestLedger(t)
	rh := NewSettlementHandler(l, true, "relay-secret", slog.Default())

	body := jsonBody(t, reactRequest{Contract: testContract.Hex()})
	req := httptest.NewRequest(http.MethodPost, "/api/react", body)
	rec := httptest.NewRecorder()
	rh.React(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/react",
		jsonBody(t, reactRequest{Contract: testContract.Hex()}))
	req.Header.Set("X-Relay-Token", "relay-secret")
	rec = httptest.NewRecorder()
	rh.React(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestCancelEndpoint(t *testing.T) {
	l := newTestLedger(t)
	mh := NewMarketHandler(ledgerReader{l}, l, slog.Default())
	rh := NewSettlementHandler(l, false, "", slog.Default())
	createTestMarket(t, mh)

	// The deadline has not passed yet.
	req := httptest.NewRequest(http.MethodPost, "/api/markets/0/cancel", nil)
	req.SetPathValue("id", "0")
	rec := httptest.NewRecorder()
	rh.CancelExpired(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestClaimEndpoints(t *testing.T) {
	l := newTestLedger(t)
	mh := NewMarketHandler(ledgerReader{l}, l, slog.Default())
	ph := NewPayoutHandler(l, slog.Default())
	createTestMarket(t, mh)
	require.NoError(t, l.SubscribeMarket(0))

	payload := make([]byte, 32)
	big.NewInt(200).FillBytes(payload)
	require.Len(t, l.React(domain.Observation{
		Contract: testContract,
		Topic0:   domain.TopicTransfer,
		Data:     payload,
	}), 1)

	// The creator won (bond on Yes, outcome Yes, empty No pool).
	req := httptest.NewRequest(http.MethodPost, "/api/markets/0/claim",
		jsonBody(t, claimRequest{Claimant: testCreator.Hex()}))
	req.SetPathValue("id", "0")
	rec := httptest.NewRecorder()
	ph.ClaimWinnings(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp payoutResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "10000000000000000", resp.Amount)

	// Repeat claims conflict.
	req = httptest.NewRequest(http.MethodPost, "/api/markets/0/claim",
		jsonBody(t, claimRequest{Claimant: testCreator.Hex()}))
	req.SetPathValue("id", "0")
	rec = httptest.NewRecorder()
	ph.ClaimWinnings(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Vault balance reflects the claim and drains on withdraw.
	req = httptest.NewRequest(http.MethodGet, "/api/balances/"+testCreator.Hex(), nil)
	req.SetPathValue("address", testCreator.Hex())
	rec = httptest.NewRecorder()
	ph.GetBalance(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "10000000000000000", resp.Amount)

	req = httptest.NewRequest(http.MethodPost, "/api/balances/"+testCreator.Hex()+"/withdraw", nil)
	req.SetPathValue("address", testCreator.Hex())
	rec = httptest.NewRecorder()
	ph.WithdrawBalance(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "10000000000000000", resp.Amount)
}

func TestPlatformFeeEndpoints(t *testing.T) {
	l := newTestLedger(t)
	ph := NewPayoutHandler(l, slog.Default())

	req := httptest.NewRequest(http.MethodGet, "/api/platform-fees", nil)
	rec := httptest.NewRecorder()
	ph.GetPlatformFees(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"amount_wei":"0"}`, rec.Body.String())

	// Nothing accrued: the owner sweep conflicts, a stranger is forbidden.
	req = httptest.NewRequest(http.MethodPost, "/api/platform-fees/withdraw",
		jsonBody(t, platformWithdrawRequest{Caller: testBettor.Hex()}))
	rec = httptest.NewRecorder()
	ph.WithdrawPlatformFees(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/api/platform-fees/withdraw",
		jsonBody(t, platformWithdrawRequest{Caller: testOwner.Hex()}))
	rec = httptest.NewRecorder()
	ph.WithdrawPlatformFees(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}
