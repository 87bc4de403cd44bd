package handler

import (
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// BettingLedger defines the stake operations the bet handler requires.
type BettingLedger interface {
	PlaceBet(bettor common.Address, marketID uint64, isYes bool, amount *big.Int) (domain.Bet, error)
	GetBet(marketID uint64, bettor common.Address) (domain.Bet, error)
}

// BetHandler serves stake placement and lookup endpoints.
type BetHandler struct {
	ledger BettingLedger
	logger *slog.Logger
}

// NewBetHandler creates a BetHandler.
func NewBetHandler(ledger BettingLedger, logger *slog.Logger) *BetHandler {
	return &BetHandler{
		ledger: ledger,
		logger: logger.With(slog.String("handler", "bet")),
	}
}

type placeBetRequest struct {
	Bettor    string `json:"bettor"`
	IsYes     bool   `json:"is_yes"`
	AmountWei string `json:"amount_wei"`
}

// PlaceBet escrows a stake on one side of a market.
// POST /api/markets/{id}/bets
func (h *BetHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req placeBetRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	bettor, ok := parseAddress(req.Bettor)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bettor address")
		return
	}
	amount, ok := parseWei(req.AmountWei)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bet amount")
		return
	}

	bet, err := h.ledger.PlaceBet(bettor, id, req.IsYes, amount)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "bet placed",
		slog.Uint64("market_id", id),
		slog.String("bettor", bettor.Hex()),
		slog.Bool("is_yes", req.IsYes),
	)

	writeJSON(w, http.StatusCreated, bet)
}

// GetBet returns the bet an address holds on a market; the zero-valued bet
// if none.
// GET /api/markets/{id}/bets/{address}
func (h *BetHandler) GetBet(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}
	bettor, ok := parseAddress(r.PathValue("address"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid bettor address")
		return
	}

	bet, err := h.ledger.GetBet(id, bettor)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bet)
}
