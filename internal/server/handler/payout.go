package handler

import (
	"log/slog"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
)

// PayoutLedger defines the funds-moving operations the handler requires.
type PayoutLedger interface {
	ClaimWinnings(claimant common.Address, marketID uint64) (*big.Int, error)
	ClaimRefund(claimant common.Address, marketID uint64) (*big.Int, error)
	WithdrawCreatorFee(caller common.Address, marketID uint64) (*big.Int, error)
	WithdrawPlatformFees(caller common.Address) (*big.Int, error)
	PlatformFeeBalance() *big.Int
	BalanceOf(addr common.Address) *big.Int
	Withdraw(addr common.Address) *big.Int
}

// PayoutHandler serves claims, fee withdrawals and vault balances.
type PayoutHandler struct {
	ledger PayoutLedger
	logger *slog.Logger
}

// NewPayoutHandler creates a PayoutHandler.
func NewPayoutHandler(ledger PayoutLedger, logger *slog.Logger) *PayoutHandler {
	return &PayoutHandler{
		ledger: ledger,
		logger: logger.With(slog.String("handler", "payout")),
	}
}

type claimRequest struct {
	Claimant string `json:"claimant"`
}

type payoutResponse struct {
	MarketID uint64 `json:"market_id,omitempty"`
	Address  string `json:"address"`
	Amount   string `json:"amount_wei"`
}

// ClaimWinnings pays a winning bettor on a resolved market.
// POST /api/markets/{id}/claim
func (h *PayoutHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, h.ledger.ClaimWinnings, "winnings claimed")
}

// ClaimRefund returns a bettor's stake from a cancelled market.
// POST /api/markets/{id}/refund
func (h *PayoutHandler) ClaimRefund(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, h.ledger.ClaimRefund, "refund claimed")
}

// WithdrawCreatorFee sweeps a resolved market's creator fee to its creator.
// POST /api/markets/{id}/creator-fee
func (h *PayoutHandler) WithdrawCreatorFee(w http.ResponseWriter, r *http.Request) {
	h.claim(w, r, h.ledger.WithdrawCreatorFee, "creator fee withdrawn")
}

func (h *PayoutHandler) claim(w http.ResponseWriter, r *http.Request, op func(common.Address, uint64) (*big.Int, error), msg string) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req claimRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	claimant, ok := parseAddress(req.Claimant)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid claimant address")
		return
	}

	amount, err := op(claimant, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), msg,
		slog.Uint64("market_id", id),
		slog.String("address", claimant.Hex()),
		slog.String("amount_wei", amount.String()))

	writeJSON(w, http.StatusOK, payoutResponse{
		MarketID: id,
		Address:  claimant.Hex(),
		Amount:   amount.String(),
	})
}

type platformWithdrawRequest struct {
	Caller string `json:"caller"`
}

// WithdrawPlatformFees sweeps all accrued platform fees to the owner.
// POST /api/platform-fees/withdraw
func (h *PayoutHandler) WithdrawPlatformFees(w http.ResponseWriter, r *http.Request) {
	var req platformWithdrawRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	caller, ok := parseAddress(req.Caller)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid caller address")
		return
	}

	amount, err := h.ledger.WithdrawPlatformFees(caller)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "platform fees withdrawn",
		slog.String("address", caller.Hex()),
		slog.String("amount_wei", amount.String()))

	writeJSON(w, http.StatusOK, payoutResponse{
		Address: caller.Hex(),
		Amount:  amount.String(),
	})
}

// GetPlatformFees returns platform fees accrued and not yet swept.
// GET /api/platform-fees
func (h *PayoutHandler) GetPlatformFees(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"amount_wei": h.ledger.PlatformFeeBalance().String(),
	})
}

// GetBalance returns an address's withdrawable vault balance.
// GET /api/balances/{address}
func (h *PayoutHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r.PathValue("address"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	writeJSON(w, http.StatusOK, payoutResponse{
		Address: addr.Hex(),
		Amount:  h.ledger.BalanceOf(addr).String(),
	})
}

// WithdrawBalance drains an address's entire vault balance. Draining zero is
// fine; the wallet layer outside this service moves the real value.
// POST /api/balances/{address}/withdraw
func (h *PayoutHandler) WithdrawBalance(w http.ResponseWriter, r *http.Request) {
	addr, ok := parseAddress(r.PathValue("address"))
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid address")
		return
	}

	amount := h.ledger.Withdraw(addr)

	h.logger.InfoContext(r.Context(), "balance withdrawn",
		slog.String("address", addr.Hex()),
		slog.String("amount_wei", amount.String()))

	writeJSON(w, http.StatusOK, payoutResponse{
		Address: addr.Hex(),
		Amount:  amount.String(),
	})
}
