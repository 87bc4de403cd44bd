package app

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pulsemarket/pulsed/internal/config"
	"github.com/pulsemarket/pulsed/internal/relay"
	"github.com/pulsemarket/pulsed/internal/server"
	"github.com/pulsemarket/pulsed/internal/server/handler"
	"github.com/pulsemarket/pulsed/internal/server/ws"
)

// version is stamped at build time via -ldflags.
var version = "dev"

// ServeMode runs the HTTP API, the WebSocket hub, and the event dispatcher.
// Settlement input arrives only through POST /api/react.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Dispatcher.Run(ctx)
	})

	a.startServer(ctx, g, deps)

	return waitGroup(g)
}

// FullMode runs everything serve mode runs, plus the chain relay feeding
// observed logs into the settlement engine and, when configured, the
// periodic journal archive sweep.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return deps.Dispatcher.Run(ctx)
	})

	chainRelay := relay.New(relay.Config{
		WSURL:           a.cfg.Chain.WsURL,
		ChainID:         a.cfg.Chain.ChainID,
		RefreshInterval: config.Duration(a.cfg.Chain.RefreshInterval, 10*time.Second),
	}, deps.Ledger, a.logger)
	g.Go(func() error {
		defer chainRelay.Close()
		return chainRelay.Run(ctx)
	})

	if deps.Archiver != nil {
		g.Go(func() error {
			return a.runArchiveSweep(ctx, deps)
		})
	}

	a.startServer(ctx, g, deps)

	return waitGroup(g)
}

// startServer assembles the handler set, the middleware chain and the
// WebSocket hub, then runs the HTTP server under the group with a graceful
// shutdown tied to the group context.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	hub := ws.NewHub(deps.EventBus, a.logger)
	g.Go(func() error {
		err := hub.Run(ctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	handlers := server.Handlers{
		Health:  handler.NewHealthHandler(version),
		Markets: handler.NewMarketHandler(deps.MarketSvc, deps.Ledger, a.logger),
		Bets:    handler.NewBetHandler(deps.Ledger, a.logger),
		Subscriptions: handler.NewSubscriptionHandler(
			deps.Ledger,
			a.cfg.Settlement.RestrictSubscribe,
			a.logger,
		),
		Settlement: handler.NewSettlementHandler(
			deps.Ledger,
			a.cfg.Settlement.RestrictReact,
			a.cfg.Settlement.RelayToken,
			a.logger,
		),
		Payouts: handler.NewPayoutHandler(deps.Ledger, a.logger),
	}

	srv := server.NewServer(server.Config{
		Port:            a.cfg.Server.Port,
		CORSOrigins:     a.cfg.Server.CORSOrigins,
		APIKey:          a.cfg.Server.APIKey,
		RateLimit:       a.cfg.Server.RateLimit,
		RateLimitWindow: config.Duration(a.cfg.Server.RateLimitWindow, time.Second),
	}, handlers, hub, deps.RateLimiter, a.logger)

	g.Go(func() error {
		return srv.Start()
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// runArchiveSweep periodically exports journal entries and terminal market
// snapshots older than the retention window to cold storage.
func (a *App) runArchiveSweep(ctx context.Context, deps *Dependencies) error {
	interval := config.Duration(a.cfg.Archive.Interval, time.Hour)
	retain := config.Duration(a.cfg.Archive.RetainFor, 24*time.Hour)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	a.logger.InfoContext(ctx, "archive sweep started",
		slog.Duration("interval", interval),
		slog.Duration("retain_for", retain),
	)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			cutoff := time.Now().UTC().Add(-retain)

			if n, err := deps.Archiver.ArchiveJournal(ctx, cutoff); err != nil {
				a.logger.WarnContext(ctx, "journal archive sweep failed",
					slog.String("error", err.Error()),
				)
			} else if n > 0 {
				a.logger.InfoContext(ctx, "journal archive sweep done",
					slog.Int64("records", n),
				)
			}

			if n, err := deps.Archiver.ArchiveTerminalMarkets(ctx, cutoff); err != nil {
				a.logger.WarnContext(ctx, "market archive sweep failed",
					slog.String("error", err.Error()),
				)
			} else if n > 0 {
				a.logger.InfoContext(ctx, "market archive sweep done",
					slog.Int64("records", n),
				)
			}
		}
	}
}

// waitGroup waits for the group, treating context cancellation as a clean
// shutdown.
func waitGroup(g *errgroup.Group) error {
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
