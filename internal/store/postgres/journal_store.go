package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// JournalStore implements domain.JournalStore using PostgreSQL. The journal
// is append-only: every envelope the ledger emits lands here exactly once,
// keyed by envelope id.
type JournalStore struct {
	pool *pgxpool.Pool
}

// NewJournalStore creates a new JournalStore backed by the given connection
// pool.
func NewJournalStore(pool *pgxpool.Pool) *JournalStore {
	return &JournalStore{pool: pool}
}

// Append records an envelope. Replaying an envelope id is a no-op so the
// projector can safely retry.
func (s *JournalStore) Append(ctx context.Context, env domain.Envelope) error {
	payload, err := json.Marshal(env.Payload)
	if err != nil {
		return fmt.Errorf("postgres: marshal journal payload: %w", err)
	}

	const query = `
		INSERT INTO journal (id, event_type, market_id, emitted_at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO NOTHING`

	_, err = s.pool.Exec(ctx, query,
		env.ID, string(env.Type), int64(env.MarketID), env.EmittedAt, payload,
	)
	if err != nil {
		return fmt.Errorf("postgres: append journal entry %s: %w", env.ID, err)
	}
	return nil
}

// ListByMarket returns a market's journal entries in emission order.
func (s *JournalStore) ListByMarket(ctx context.Context, marketID uint64, opts domain.ListOpts) ([]domain.Envelope, error) {
	const query = `
		SELECT id, event_type, market_id, emitted_at, payload
		FROM journal WHERE market_id = $1
		ORDER BY emitted_at LIMIT $2 OFFSET $3`

	rows, err := s.pool.Query(ctx, query, int64(marketID), opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal for market %d: %w", marketID, err)
	}
	defer rows.Close()

	return collectEnvelopes(rows)
}

// ListBefore returns all journal entries emitted before the cutoff, in
// emission order. Used by the archiver.
func (s *JournalStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Envelope, error) {
	const query = `
		SELECT id, event_type, market_id, emitted_at, payload
		FROM journal WHERE emitted_at < $1
		ORDER BY emitted_at`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list journal before %s: %w", before, err)
	}
	defer rows.Close()

	return collectEnvelopes(rows)
}

func collectEnvelopes(rows pgx.Rows) ([]domain.Envelope, error) {
	var out []domain.Envelope
	for rows.Next() {
		var (
			env       domain.Envelope
			eventType string
			marketID  int64
			payload   []byte
		)
		if err := rows.Scan(&env.ID, &eventType, &marketID, &env.EmittedAt, &payload); err != nil {
			return nil, fmt.Errorf("postgres: scan journal entry: %w", err)
		}
		env.Type = domain.EventType(eventType)
		env.MarketID = uint64(marketID)
		env.Payload = json.RawMessage(payload)
		out = append(out, env)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate journal: %w", err)
	}
	return out, nil
}
