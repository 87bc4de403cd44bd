package handler

import (
	"log/slog"
	"net/http"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// SubscriptionRegistry defines the subscription operations the handler
// requires.
type SubscriptionRegistry interface {
	SubscribeMarket(marketID uint64) error
	Subscriptions() []domain.EventKey
	SubscriptionsDetailed() []domain.Subscription
	GetMarket(id uint64) (domain.Market, error)
}

// SubscriptionHandler serves watch-list endpoints. When restrictToCreator
// is set, only the market creator may subscribe their market; the reference
// configuration leaves it open since subscribing is purely additive.
type SubscriptionHandler struct {
	registry           SubscriptionRegistry
	restrictToCreator  bool
	logger             *slog.Logger
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(registry SubscriptionRegistry, restrictToCreator bool, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		registry:          registry,
		restrictToCreator: restrictToCreator,
		logger:            logger.With(slog.String("handler", "subscription")),
	}
}

type subscribeRequest struct {
	Caller string `json:"caller"`
}

// Subscribe registers a market on the relay watch-list.
// POST /api/markets/{id}/subscribe
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	id, err := marketIDParam(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid market id")
		return
	}

	var req subscribeRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	if h.restrictToCreator {
		caller, ok := parseAddress(req.Caller)
		if !ok {
			writeError(w, http.StatusBadRequest, "invalid caller address")
			return
		}
		m, err := h.registry.GetMarket(id)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		if caller != m.Creator {
			writeError(w, http.StatusForbidden, domain.ErrNotCreator.Error())
			return
		}
	}

	if err := h.registry.SubscribeMarket(id); err != nil {
		writeDomainError(w, err)
		return
	}

	h.logger.InfoContext(r.Context(), "market subscribed", slog.Uint64("market_id", id))

	writeJSON(w, http.StatusCreated, map[string]uint64{"market_id": id})
}

// ListSubscriptions returns the relay watch-list.
// GET /api/subscriptions
func (h *SubscriptionHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	subs := h.registry.SubscriptionsDetailed()
	if subs == nil {
		subs = []domain.Subscription{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"subscriptions": subs})
}
