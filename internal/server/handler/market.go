package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// MarketReader defines the read methods the market handler requires. It is
// declared locally so the handler package does not depend on the concrete
// service implementation.
type MarketReader interface {
	GetMarket(ctx context.Context, id uint64) (domain.Market, error)
	ListMarkets(ctx context.Context, opts domain.ListOpts) []domain.Market
	Count(ctx context.Context) int
}

// MarketCreator is the ledger's market creation operation.
type MarketCreator interface {
	CreateMarket(
		creator common.Address,
		question string,
		watchedContract common.Address,
		eventTopic common.Hash,
		conditionData []byte,
		duration time.Duration,
		bond *big.Int,
	) (domain.Market, error)
}

// MarketHandler serves market creation and browsing endpoints.
type MarketHandler struct {
	reader  MarketReader
	creator MarketCreator
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler.
func NewMarketHandler(reader MarketReader, creator MarketCreator, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		reader:  reader,
		creator: creator,
		logger:  logger.With(slog.String("handler", "market")),
	}
}

// createMarketRequest is the JSON body for market creation. Wei amounts are
// decimal strings; condition data is 0x-hex.
type createMarketRequest struct {
	Creator         string        `json:"creator"`
	Question        string        `json:"question"`
	WatchedContract string        `json:"watched_contract"`
	EventTopic      string        `json:"event_topic"`
	ConditionData   hexutil.Bytes `json:"condition_data"`
	DurationSeconds int64         `json:"duration_seconds"`
	BondWei         string        `json:"bond_wei"`
}

// CreateMarket opens a new market.
// POST /api/markets
func (h *MarketHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	creator, ok := parseAddress(req.Creator)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid creator address")
		return
	}
	watched, ok := parseAddress(req.WatchedContract)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid watched contract address")
		return
	}
	bond, ok := parseWei(req.BondWei)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bond amount")
		return
	}

	m, err := h.creator.CreateMarket(
		creator,
		req.Question,
		watched,
		common.HexToHash(req.EventTopic),
		req.ConditionData,
		time.Duration(req.DurationSeconds)*time.Second,
		bond,
	)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "market created",
		slog.Uint64("market_id", m.ID),
		slog.String("creator", creator.Hex()),
	)

	writeJSON(w, http.StatusCreated, m)
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.Market `json:"markets"`
	Total   int             `json:"total"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// ListMarkets returns markets in creation order with pagination.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	markets := h.reader.ListMarkets(r.Context(), opts)
	if markets == nil {
		markets = []domain.Market{}
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: markets,
		Total:   h.reader.Count(r.Context()),
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// GetMarket returns a single market.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	m, err := h.reader.GetMarket(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
