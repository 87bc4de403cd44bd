// Package server assembles the HTTP API: route registration, the middleware
// chain, and server lifecycle.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsemarket/pulsed/internal/domain"
	"github.com/pulsemarket/pulsed/internal/server/handler"
	"github.com/pulsemarket/pulsed/internal/server/middleware"
	"github.com/pulsemarket/pulsed/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port        int
	CORSOrigins []string
	APIKey      string // if empty, authentication is disabled

	// Rate limiting applies per client IP when a limiter is wired in.
	RateLimit       int
	RateLimitWindow time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health        *handler.HealthHandler
	Markets       *handler.MarketHandler
	Bets          *handler.BetHandler
	Subscriptions *handler.SubscriptionHandler
	Settlement    *handler.SettlementHandler
	Payouts       *handler.PayoutHandler
}

// Server is the HTTP + WebSocket API for the market ledger.
type Server struct {
	httpServer *http.Server
	mux        *http.ServeMux
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
// It wires up middleware (logging, CORS, auth, optional rate limiting) and
// attaches the WebSocket hub.
func NewServer(cfg Config, handlers Handlers, wsHub *ws.Hub, limiter domain.RateLimiter, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	// Health check (no auth required).
	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)

	// Market lifecycle.
	mux.HandleFunc("POST /api/markets", handlers.Markets.CreateMarket)
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("POST /api/markets/{id}/cancel", handlers.Settlement.CancelExpired)

	// Betting.
	mux.HandleFunc("POST /api/markets/{id}/bets", handlers.Bets.PlaceBet)
	mux.HandleFunc("GET /api/markets/{id}/bets/{address}", handlers.Bets.GetBet)

	// Reactive subscriptions and the settlement callback.
	mux.HandleFunc("POST /api/markets/{id}/subscribe", handlers.Subscriptions.Subscribe)
	mux.HandleFunc("GET /api/subscriptions", handlers.Subscriptions.ListSubscriptions)
	mux.HandleFunc("POST /api/react", handlers.Settlement.React)

	// Claims and withdrawals.
	mux.HandleFunc("POST /api/markets/{id}/claim", handlers.Payouts.ClaimWinnings)
	mux.HandleFunc("POST /api/markets/{id}/refund", handlers.Payouts.ClaimRefund)
	mux.HandleFunc("POST /api/markets/{id}/creator-fee", handlers.Payouts.WithdrawCreatorFee)
	mux.HandleFunc("GET /api/platform-fees", handlers.Payouts.GetPlatformFees)
	mux.HandleFunc("POST /api/platform-fees/withdraw", handlers.Payouts.WithdrawPlatformFees)
	mux.HandleFunc("GET /api/balances/{address}", handlers.Payouts.GetBalance)
	mux.HandleFunc("POST /api/balances/{address}/withdraw", handlers.Payouts.WithdrawBalance)

	// WebSocket feed.
	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.Auth(cfg.APIKey)(h)
	if limiter != nil && cfg.RateLimit > 0 {
		h = middleware.RateLimit(limiter, cfg.RateLimit, cfg.RateLimitWindow)(h)
	}
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		mux:        mux,
		logger:     logger,
	}
}

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("server: starting",
		slog.String("addr", s.httpServer.Addr),
	)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server: shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}
