package handler

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// SettlementEngine defines the reactive operations the handler requires.
type SettlementEngine interface {
	React(obs domain.Observation) []uint64
	CancelExpiredMarket(marketID uint64) error
}

// SettlementHandler serves the reactive callback and the expiry
// cancellation endpoint. With restrictReact set, React callers must present
// the relay token; the reference configuration leaves it open so anything
// observing the chain can settle.
type SettlementHandler struct {
	engine        SettlementEngine
	restrictReact bool
	relayToken    string
	logger        *slog.Logger
}

// NewSettlementHandler creates a SettlementHandler.
func NewSettlementHandler(engine SettlementEngine, restrictReact bool, relayToken string, logger *slog.Logger) *SettlementHandler {
	return &SettlementHandler{
		engine:        engine,
		restrictReact: restrictReact,
		relayToken:    relayToken,
		logger:        logger.With(slog.String("handler", "settlement")),
	}
}

// reactRequest mirrors the reactive callback signature: a raw log entry.
type reactRequest struct {
	ChainID  uint64        `json:"chain_id"`
	Contract string        `json:"contract"`
	Topic0   string        `json:"topic0"`
	Topic1   string        `json:"topic1"`
	Topic2   string        `json:"topic2"`
	Topic3   string        `json:"topic3"`
	Data     hexutil.Bytes `json:"data"`
}

type reactResponse struct {
	SettledMarketIDs []uint64 `json:"settled_market_ids"`
}

// React accepts an observed log entry and settles every subscribed market
// it matches. Duplicate or late deliveries are absorbed: the response then
// simply lists no settled markets.
// POST /api/react
func (h *SettlementHandler) React(w http.ResponseWriter, r *http.Request) {
	if h.restrictReact {
		token := r.Header.Get("X-Relay-Token")
		if subtle.ConstantTimeCompare([]byte(token), []byte(h.relayToken)) != 1 {
			writeError(w, http.StatusForbidden, domain.ErrUnauthorized.Error())
			return
		}
	}

	var req reactRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	contract, ok := parseAddress(req.Contract)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid contract address")
		return
	}

	settled := h.engine.React(domain.Observation{
		ChainID:  req.ChainID,
		Contract: contract,
		Topic0:   common.HexToHash(req.Topic0),
		Topic1:   common.HexToHash(req.Topic1),
		Topic2:   common.HexToHash(req.Topic2),
		Topic3:   common.HexToHash(req.Topic3),
		Data:     req.Data,
	})
	if settled == nil {
		settled = []uint64{}
	}

	writeJSON(w, http.StatusOK, reactResponse{SettledMarketIDs: settled})
}

// CancelExpired cancels an active market whose deadline has passed.
// Callable by anyone.
// POST /api/markets/{id}/cancel
func (h *SettlementHandler) CancelExpired(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	if err := h.engine.CancelExpiredMarket(id); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "expired market cancelled", slog.Uint64("market_id", id))

	writeJSON(w, http.StatusOK, map[string]uint64{"market_id": id})
}
