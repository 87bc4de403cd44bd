package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// BetStore implements domain.BetStore using PostgreSQL.
type BetStore struct {
	pool *pgxpool.Pool
}

// NewBetStore creates a new BetStore backed by the given connection pool.
func NewBetStore(pool *pgxpool.Pool) *BetStore {
	return &BetStore{pool: pool}
}

// Upsert inserts or updates a bet read model. Only the claimed flag ever
// changes after insert; the stake itself is immutable.
func (s *BetStore) Upsert(ctx context.Context, b domain.Bet) error {
	const query = `
		INSERT INTO bets (market_id, bettor, is_yes, amount, claimed, placed_at, updated_at)
		VALUES ($1, $2, $3, $4::numeric, $5, $6, NOW())
		ON CONFLICT (market_id, bettor) DO UPDATE SET
			claimed    = EXCLUDED.claimed,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		int64(b.MarketID), b.Bettor.Hex(), b.IsYes,
		b.Amount.String(), b.Claimed, b.PlacedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert bet (%d, %s): %w", b.MarketID, b.Bettor.Hex(), err)
	}
	return nil
}

// Get returns the bet an address holds on a market.
func (s *BetStore) Get(ctx context.Context, marketID uint64, bettor string) (domain.Bet, error) {
	const query = `
		SELECT market_id, bettor, is_yes, amount::text, claimed, placed_at
		FROM bets WHERE market_id = $1 AND bettor = $2`

	b, err := scanBet(s.pool.QueryRow(ctx, query, int64(marketID), common.HexToAddress(bettor).Hex()))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Bet{}, fmt.Errorf("postgres: bet (%d, %s): %w", marketID, bettor, domain.ErrNotFound)
		}
		return domain.Bet{}, fmt.Errorf("postgres: get bet (%d, %s): %w", marketID, bettor, err)
	}
	return b, nil
}

// ListByMarket returns every bet on a market.
func (s *BetStore) ListByMarket(ctx context.Context, marketID uint64) ([]domain.Bet, error) {
	const query = `
		SELECT market_id, bettor, is_yes, amount::text, claimed, placed_at
		FROM bets WHERE market_id = $1 ORDER BY placed_at`

	rows, err := s.pool.Query(ctx, query, int64(marketID))
	if err != nil {
		return nil, fmt.Errorf("postgres: list bets for market %d: %w", marketID, err)
	}
	defer rows.Close()

	var out []domain.Bet
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan bet: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate bets: %w", err)
	}
	return out, nil
}

func scanBet(row pgx.Row) (domain.Bet, error) {
	var (
		b      domain.Bet
		id     int64
		bettor string
		amount string
	)
	if err := row.Scan(&id, &bettor, &b.IsYes, &amount, &b.Claimed, &b.PlacedAt); err != nil {
		return domain.Bet{}, err
	}

	b.MarketID = uint64(id)
	b.Bettor = common.HexToAddress(bettor)

	var err error
	if b.Amount, err = parseWei(amount); err != nil {
		return domain.Bet{}, err
	}
	return b, nil
}
