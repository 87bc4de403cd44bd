package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// SubscriptionStore implements domain.SubscriptionStore using PostgreSQL.
type SubscriptionStore struct {
	pool *pgxpool.Pool
}

// NewSubscriptionStore creates a new SubscriptionStore backed by the given
// connection pool.
func NewSubscriptionStore(pool *pgxpool.Pool) *SubscriptionStore {
	return &SubscriptionStore{pool: pool}
}

// Insert records a market's subscription. A market subscribes at most once;
// replays of the same event are absorbed by the conflict clause.
func (s *SubscriptionStore) Insert(ctx context.Context, marketID uint64, key domain.EventKey) error {
	const query = `
		INSERT INTO subscriptions (market_id, watched_contract, event_topic)
		VALUES ($1, $2, $3)
		ON CONFLICT (market_id) DO NOTHING`

	_, err := s.pool.Exec(ctx, query,
		int64(marketID), key.Contract.Hex(), key.Topic.Hex(),
	)
	if err != nil {
		return fmt.Errorf("postgres: insert subscription for market %d: %w", marketID, err)
	}
	return nil
}

// List returns every registered (contract, topic) pair with the market ids
// listening on it.
func (s *SubscriptionStore) List(ctx context.Context) ([]domain.Subscription, error) {
	const query = `
		SELECT watched_contract, event_topic, ARRAY_AGG(market_id ORDER BY market_id)
		FROM subscriptions
		GROUP BY watched_contract, event_topic
		ORDER BY watched_contract, event_topic`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list subscriptions: %w", err)
	}
	defer rows.Close()

	var out []domain.Subscription
	for rows.Next() {
		var (
			contract string
			topic    string
			ids      []int64
		)
		if err := rows.Scan(&contract, &topic, &ids); err != nil {
			return nil, fmt.Errorf("postgres: scan subscription: %w", err)
		}

		sub := domain.Subscription{
			Key: domain.EventKey{
				Contract: common.HexToAddress(contract),
				Topic:    common.HexToHash(topic),
			},
			MarketIDs: make([]uint64, 0, len(ids)),
		}
		for _, id := range ids {
			sub.MarketIDs = append(sub.MarketIDs, uint64(id))
		}
		out = append(out, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate subscriptions: %w", err)
	}
	return out, nil
}
