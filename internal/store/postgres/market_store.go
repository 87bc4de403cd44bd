package postgres

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const marketColumns = `
	id, creator, question, watched_contract, event_topic, condition_data,
	end_time, total_yes_bets::text, total_no_bets::text, status, outcome,
	created_at, resolved_at, creator_fee_accrued::text, creator_fee_withdrawn`

// Upsert inserts or updates a single market read model.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	const query = `
		INSERT INTO markets (
			id, creator, question, watched_contract, event_topic,
			condition_data, end_time, total_yes_bets, total_no_bets,
			status, outcome, created_at, resolved_at,
			creator_fee_accrued, creator_fee_withdrawn, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8::numeric, $9::numeric,
			$10, $11, $12, $13,
			$14::numeric, $15, NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			total_yes_bets        = EXCLUDED.total_yes_bets,
			total_no_bets         = EXCLUDED.total_no_bets,
			status                = EXCLUDED.status,
			outcome               = EXCLUDED.outcome,
			resolved_at           = EXCLUDED.resolved_at,
			creator_fee_accrued   = EXCLUDED.creator_fee_accrued,
			creator_fee_withdrawn = EXCLUDED.creator_fee_withdrawn,
			updated_at            = NOW()`

	_, err := s.pool.Exec(ctx, query,
		int64(m.ID), m.Creator.Hex(), m.Question,
		m.WatchedContract.Hex(), m.EventTopic.Hex(),
		[]byte(m.ConditionData), m.EndTime,
		m.TotalYesBets.String(), m.TotalNoBets.String(),
		string(m.Status), string(m.Outcome),
		m.CreatedAt, m.ResolvedAt,
		m.CreatorFeeAccrued.String(), m.CreatorFeeWithdrawn,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %d: %w", m.ID, err)
	}
	return nil
}

// GetByID returns a single market read model.
func (s *MarketStore) GetByID(ctx context.Context, id uint64) (domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets WHERE id = $1`

	m, err := scanMarket(s.pool.QueryRow(ctx, query, int64(id)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Market{}, fmt.Errorf("postgres: market %d: %w", id, domain.ErrNotFound)
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %d: %w", id, err)
	}
	return m, nil
}

// List returns markets in creation-id order with pagination.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets ORDER BY id LIMIT $1 OFFSET $2`

	rows, err := s.pool.Query(ctx, query, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

// ListTerminalBefore returns markets that reached a terminal state before
// the cutoff. Used by the archiver.
func (s *MarketStore) ListTerminalBefore(ctx context.Context, before time.Time) ([]domain.Market, error) {
	query := `SELECT ` + marketColumns + ` FROM markets
		WHERE status <> $1 AND COALESCE(resolved_at, end_time) < $2
		ORDER BY id`

	rows, err := s.pool.Query(ctx, query, string(domain.MarketStatusActive), before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal markets: %w", err)
	}
	defer rows.Close()

	return collectMarkets(rows)
}

// Count returns the number of market read models.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM markets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return n, nil
}

func collectMarkets(rows pgx.Rows) ([]domain.Market, error) {
	var out []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate markets: %w", err)
	}
	return out, nil
}

func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m             domain.Market
		id            int64
		creator       string
		watched       string
		topic         string
		conditionData []byte
		yes, no, fee  string
		status        string
		outcome       string
	)
	err := row.Scan(
		&id, &creator, &m.Question, &watched, &topic, &conditionData,
		&m.EndTime, &yes, &no, &status, &outcome,
		&m.CreatedAt, &m.ResolvedAt, &fee, &m.CreatorFeeWithdrawn,
	)
	if err != nil {
		return domain.Market{}, err
	}

	m.ID = uint64(id)
	m.Creator = common.HexToAddress(creator)
	m.WatchedContract = common.HexToAddress(watched)
	m.EventTopic = common.HexToHash(topic)
	m.ConditionData = hexutil.Bytes(conditionData)
	m.Status = domain.MarketStatus(status)
	m.Outcome = domain.Outcome(outcome)

	if m.TotalYesBets, err = parseWei(yes); err != nil {
		return domain.Market{}, err
	}
	if m.TotalNoBets, err = parseWei(no); err != nil {
		return domain.Market{}, err
	}
	if m.CreatorFeeAccrued, err = parseWei(fee); err != nil {
		return domain.Market{}, err
	}
	return m, nil
}

func parseWei(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("invalid numeric value %q", s)
	}
	return v, nil
}
