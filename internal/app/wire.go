package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/pulsemarket/pulsed/internal/blob/s3"
	"github.com/pulsemarket/pulsed/internal/cache/redis"
	"github.com/pulsemarket/pulsed/internal/config"
	"github.com/pulsemarket/pulsed/internal/domain"
	"github.com/pulsemarket/pulsed/internal/ledger"
	"github.com/pulsemarket/pulsed/internal/service"
	"github.com/pulsemarket/pulsed/internal/store/postgres"
)

// Dependencies bundles everything the application modes need to operate.
// Wire constructs it; the returned cleanup function tears it down.
type Dependencies struct {
	// Core state machine and its event fan-out.
	Ledger     *ledger.Ledger
	Dispatcher *service.Dispatcher
	MarketSvc  *service.MarketService

	// Durable stores.
	MarketStore       domain.MarketStore
	BetStore          domain.BetStore
	SubscriptionStore domain.SubscriptionStore
	JournalStore      domain.JournalStore

	// Redis-backed infrastructure.
	MarketCache domain.MarketCache
	EventBus    domain.EventBus
	RateLimiter domain.RateLimiter

	// Cold storage. Nil unless archiving is enabled.
	Archiver domain.Archiver
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function to be
// called on shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL: read models and the event journal ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Postgres.DSN,
		Host:     cfg.Postgres.Host,
		Port:     cfg.Postgres.Port,
		Database: cfg.Postgres.Database,
		User:     cfg.Postgres.User,
		Password: cfg.Postgres.Password,
		SSLMode:  cfg.Postgres.SSLMode,
		MaxConns: cfg.Postgres.PoolMaxConns,
		MinConns: cfg.Postgres.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.MarketStore = postgres.NewMarketStore(pool)
	deps.BetStore = postgres.NewBetStore(pool)
	deps.SubscriptionStore = postgres.NewSubscriptionStore(pool)
	deps.JournalStore = postgres.NewJournalStore(pool)

	// --- Redis: cache, event bus, rate limiter ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	cacheTTL := config.Duration(cfg.Redis.CacheTTL, 0)
	deps.MarketCache = redis.NewMarketCache(redisClient, cacheTTL)
	deps.EventBus = redis.NewEventBus(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)

	// --- Ledger and dispatcher ---
	params, err := ledgerParams(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}

	// The ledger emits into the dispatcher, which re-reads ledger state to
	// project it. The forwarding sink breaks the construction cycle; no
	// event flows before Wire returns.
	var dispatcher *service.Dispatcher
	sink := domain.EventSinkFunc(func(env domain.Envelope) {
		dispatcher.Emit(env)
	})

	deps.Ledger = ledger.New(params, sink, logger)
	dispatcher = service.NewDispatcher(deps.Ledger, service.DispatcherStores{
		Journal: deps.JournalStore,
		Markets: deps.MarketStore,
		Bets:    deps.BetStore,
		Subs:    deps.SubscriptionStore,
	}, deps.EventBus, deps.MarketCache, logger)
	deps.Dispatcher = dispatcher

	deps.MarketSvc = service.NewMarketService(deps.Ledger, deps.MarketCache, logger)

	// --- S3 archive (optional) ---
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.Endpoint,
			Region:         cfg.Archive.Region,
			Bucket:         cfg.Archive.Bucket,
			AccessKey:      cfg.Archive.AccessKey,
			SecretKey:      cfg.Archive.SecretKey,
			UseSSL:         cfg.Archive.UseSSL,
			ForcePathStyle: cfg.Archive.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}

		deps.Archiver = s3blob.NewArchiver(
			s3blob.NewWriter(s3Client),
			deps.JournalStore,
			deps.MarketStore,
			logger,
		)
	}

	return deps, cleanup, nil
}

// ledgerParams translates the market configuration into ledger parameters.
func ledgerParams(cfg *config.Config) (ledger.Params, error) {
	minBet, err := cfg.Market.MinBet()
	if err != nil {
		return ledger.Params{}, fmt.Errorf("wire: %w", err)
	}
	minBond, err := cfg.Market.MinCreationBond()
	if err != nil {
		return ledger.Params{}, fmt.Errorf("wire: %w", err)
	}

	var owner common.Address
	if cfg.Market.OwnerAddress != "" {
		if !common.IsHexAddress(cfg.Market.OwnerAddress) {
			return ledger.Params{}, fmt.Errorf("wire: invalid owner address %q", cfg.Market.OwnerAddress)
		}
		owner = common.HexToAddress(cfg.Market.OwnerAddress)
	}

	return ledger.Params{
		MinBet:          minBet,
		MinCreationBond: minBond,
		PlatformFeeBps:  cfg.Market.PlatformFeeBps,
		CreatorFeeBps:   cfg.Market.CreatorFeeBps,
		MaxQuestionLen:  cfg.Market.MaxQuestionLen,
		Owner:           owner,
	}, nil
}
