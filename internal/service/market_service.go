package service

import (
	"context"
	"log/slog"

	"github.com/pulsemarket/pulsed/internal/domain"
	"github.com/pulsemarket/pulsed/internal/ledger"
)

// MarketService fronts ledger reads with the market cache for the API's hot
// paths. Mutations bypass it and go straight to the ledger.
type MarketService struct {
	ledger *ledger.Ledger
	cache  domain.MarketCache
	logger *slog.Logger
}

// NewMarketService creates a MarketService. Cache may be nil, in which case
// every read hits the ledger.
func NewMarketService(led *ledger.Ledger, cache domain.MarketCache, logger *slog.Logger) *MarketService {
	return &MarketService{
		ledger: led,
		cache:  cache,
		logger: logger.With(slog.String("component", "market_service")),
	}
}

// GetMarket returns a market snapshot, preferring the cache.
func (s *MarketService) GetMarket(ctx context.Context, id uint64) (domain.Market, error) {
	if s.cache != nil {
		if m, err := s.cache.Get(ctx, id); err == nil {
			return m, nil
		}
	}

	m, err := s.ledger.GetMarket(id)
	if err != nil {
		return domain.Market{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, m); err != nil {
			s.logger.WarnContext(ctx, "cache set failed",
				slog.Uint64("market_id", id),
				slog.String("error", err.Error()),
			)
		}
	}
	return m, nil
}

// ListMarkets returns markets in creation order.
func (s *MarketService) ListMarkets(ctx context.Context, opts domain.ListOpts) []domain.Market {
	return s.ledger.GetMarkets(opts.Offset, opts.Limit)
}

// Count returns the number of markets ever created.
func (s *MarketService) Count(ctx context.Context) int {
	return s.ledger.MarketCount()
}
