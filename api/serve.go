package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/rogerio-castellano/stock-ledger/internal/auth"
	"github.com/rogerio-castellano/stock-ledger/internal/cache"
	"github.com/rogerio-castellano/stock-ledger/internal/config"
	"github.com/rogerio-castellano/stock-ledger/internal/events"
	api "github.com/rogerio-castellano/stock-ledger/internal/http"
	"github.com/rogerio-castellano/stock-ledger/internal/http/handlers"
	"github.com/rogerio-castellano/stock-ledger/internal/http/rate_limiter"
	"github.com/rogerio-castellano/stock-ledger/internal/inventory"
	"github.com/rogerio-castellano/stock-ledger/internal/metrics"
	"github.com/rogerio-castellano/stock-ledger/internal/repo"
)

const shutdownTimeout = 10 * time.Second

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	cfg, log, database, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	m := metrics.New()

	projections, revocations, closeRedis, err := stores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeRedis()

	pub, err := newPublisher(cfg, log)
	if err != nil {
		return err
	}
	defer pub.Close()

	authService := auth.NewService(
		repo.NewSQLUserRepository(database),
		auth.NewTokenIssuer(cfg.JWT.Secret, cfg.JWT.TTL, cfg.JWT.Issuer),
		revocations,
		m,
		log.With().Str("component", "auth").Logger(),
	)
	inv := inventory.NewService(
		repo.NewSQLProductRepository(database),
		repo.NewSQLMovementRepository(database),
		projections,
		pub,
		m,
		log.With().Str("component", "inventory").Logger(),
	)

	limiter := rate_limiter.New(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	go limiter.Cleanup(ctx)

	router := api.NewRouter(api.Deps{
		Server:     handlers.NewServer(inv, authService, log),
		Auth:       authService,
		Metrics:    m,
		Limiter:    limiter,
		TrustProxy: cfg.HTTP.TrustProxy,
		Logger:     log,
		Health:     database.PingContext,
	})

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.HTTP.Addr).Msg("server running")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// stores picks Redis for the projection cache and token revocations when it
// is enabled, otherwise process-local memory.
func stores(ctx context.Context, cfg *config.Config, log zerolog.Logger) (cache.ProjectionCache, auth.Revoker, func(), error) {
	if !cfg.Redis.Enabled {
		log.Info().Msg("redis disabled, using in-memory cache and revocations")
		revocations := cache.NewMemoryRevocations()
		go revocations.Cleanup(ctx, time.Minute)
		return cache.NewMemoryProjectionCache(cfg.Cache.TTL), revocations, func() {}, nil
	}

	rs, err := cache.NewRedisService(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, nil, err
	}
	log.Info().Str("addr", cfg.Redis.Addr).Msg("connected to redis")
	closeFn := func() {
		if err := rs.Close(); err != nil {
			log.Warn().Err(err).Msg("closing redis")
		}
	}
	return cache.NewRedisProjectionCache(rs, cfg.Cache.TTL), cache.NewRedisRevocations(rs), closeFn, nil
}

func newPublisher(cfg *config.Config, log zerolog.Logger) (events.Publisher, error) {
	if !cfg.NATS.Enabled {
		return events.NopPublisher{}, nil
	}
	p, err := events.ConnectNATS(cfg.NATS.URL, cfg.NATS.SubjectPrefix)
	if err != nil {
		return nil, err
	}
	log.Info().Str("url", cfg.NATS.URL).Str("prefix", cfg.NATS.SubjectPrefix).Msg("publishing events to nats")
	return p, nil
}
