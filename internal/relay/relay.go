// Package relay watches the chain for the log events that subscribed
// markets are waiting on and feeds each one into the settlement engine.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/pulsemarket/pulsed/internal/domain"
)

// Engine is the settlement surface the relay drives. React absorbs
// duplicate and late deliveries, so the relay never needs delivery
// bookkeeping of its own.
type Engine interface {
	React(obs domain.Observation) []uint64
	Subscriptions() []domain.EventKey
}

// errWatchListChanged forces a resubscribe with the current watch list.
var errWatchListChanged = errors.New("relay: watch list changed")

// Relay subscribes to filtered chain logs over a WebSocket RPC endpoint and
// forwards each matching log to the engine. It reconnects on disconnect and
// resubscribes whenever the set of watched (contract, topic) pairs changes.
type Relay struct {
	wsURL           string
	chainID         uint64
	engine          Engine
	refreshInterval time.Duration
	logger          *slog.Logger
	closeOnce       sync.Once
	done            chan struct{}
}

// Config holds the relay configuration.
type Config struct {
	WSURL           string
	ChainID         uint64
	RefreshInterval time.Duration
}

// New creates a Relay driving the given engine.
func New(cfg Config, engine Engine, logger *slog.Logger) *Relay {
	refresh := cfg.RefreshInterval
	if refresh <= 0 {
		refresh = 15 * time.Second
	}
	return &Relay{
		wsURL:           cfg.WSURL,
		chainID:         cfg.ChainID,
		engine:          engine,
		refreshInterval: refresh,
		logger:          logger.With(slog.String("component", "relay")),
		done:            make(chan struct{}),
	}
}

// Run connects, subscribes to the logs the current watch list asks for, and
// runs until ctx is cancelled. Reconnects with backoff on disconnect.
func (r *Relay) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		default:
		}

		err := r.runConnection(ctx)
		if err == nil || errors.Is(err, errWatchListChanged) {
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		r.logger.Warn("chain subscription lost, reconnecting",
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-time.After(2 * time.Second):
		}
	}
}

// runConnection holds one log subscription open until the context is
// cancelled, the watch list changes, or the connection drops.
func (r *Relay) runConnection(ctx context.Context) error {
	keys := r.engine.Subscriptions()
	if len(keys) == 0 {
		// Nothing to watch yet. Poll until a market subscribes.
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case <-time.After(r.refreshInterval):
			return nil
		}
	}

	client, err := ethclient.DialContext(ctx, r.wsURL)
	if err != nil {
		return err
	}
	defer client.Close()

	query := buildQuery(keys)
	logs := make(chan types.Log, 128)

	sub, err := client.SubscribeFilterLogs(ctx, query, logs)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	r.logger.Info("watching chain logs",
		slog.Uint64("chain_id", r.chainID),
		slog.Int("contracts", len(query.Addresses)),
		slog.Int("keys", len(keys)),
	)

	fingerprint := watchFingerprint(keys)
	ticker := time.NewTicker(r.refreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case err := <-sub.Err():
			return err
		case lg := <-logs:
			r.deliver(lg)
		case <-ticker.C:
			if watchFingerprint(r.engine.Subscriptions()) != fingerprint {
				return errWatchListChanged
			}
		}
	}
}

// deliver translates a raw chain log into an observation and hands it to
// the engine.
func (r *Relay) deliver(lg types.Log) {
	if lg.Removed || len(lg.Topics) == 0 {
		return
	}

	obs := domain.Observation{
		ChainID:  r.chainID,
		Contract: lg.Address,
		Topic0:   lg.Topics[0],
		Data:     lg.Data,
	}
	if len(lg.Topics) > 1 {
		obs.Topic1 = lg.Topics[1]
	}
	if len(lg.Topics) > 2 {
		obs.Topic2 = lg.Topics[2]
	}
	if len(lg.Topics) > 3 {
		obs.Topic3 = lg.Topics[3]
	}

	settled := r.engine.React(obs)
	if len(settled) > 0 {
		r.logger.Info("log settled markets",
			slog.String("contract", lg.Address.Hex()),
			slog.String("topic0", obs.Topic0.Hex()),
			slog.Any("market_ids", settled),
		)
	}
}

// Close stops the relay.
func (r *Relay) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}

// buildQuery widens the watch list into a filter query: any watched contract
// crossed with any watched signature topic. The engine re-checks the exact
// (contract, topic) pair on delivery, so the overmatch is harmless.
func buildQuery(keys []domain.EventKey) ethereum.FilterQuery {
	addrSet := make(map[common.Address]struct{})
	topicSet := make(map[common.Hash]struct{})
	for _, k := range keys {
		addrSet[k.Contract] = struct{}{}
		topicSet[k.Topic] = struct{}{}
	}

	addrs := make([]common.Address, 0, len(addrSet))
	for a := range addrSet {
		addrs = append(addrs, a)
	}
	topics := make([]common.Hash, 0, len(topicSet))
	for t := range topicSet {
		topics = append(topics, t)
	}

	return ethereum.FilterQuery{
		Addresses: addrs,
		Topics:    [][]common.Hash{topics},
	}
}

// watchFingerprint returns a stable digest of the watch list so the refresh
// tick can detect membership changes.
func watchFingerprint(keys []domain.EventKey) string {
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k.Contract.Hex()+"/"+k.Topic.Hex())
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}
