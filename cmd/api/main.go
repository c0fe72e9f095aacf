package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"provably-fair-backend/internal/config"
	"provably-fair-backend/internal/handlers"
	"provably-fair-backend/internal/lib/logger/sl"
	"provably-fair-backend/internal/middleware"
	"provably-fair-backend/internal/services"
	"provably-fair-backend/internal/storage"
	"provably-fair-backend/internal/storage/memory"
	"provably-fair-backend/internal/storage/postgres"
	"provably-fair-backend/internal/storage/redisstore"
)

func main() {
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", sl.Err(err))
		os.Exit(1)
	}

	log := setupLogger(cfg.Env)
	if envErr != nil {
		log.Debug("no .env file found, using environment variables")
	}
	log.Info("starting fairness engine",
		slog.String("env", cfg.Env),
		slog.String("storage", cfg.StorageBackend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, limiter, err := openStore(ctx, cfg)
	if err != nil {
		log.Error("failed to init storage", sl.Err(err))
		os.Exit(1)
	}
	defer store.Close()

	signer, err := services.NewSigner(cfg.SigningKey)
	if err != nil {
		log.Error("failed to init signer", sl.Err(err))
		os.Exit(1)
	}
	if cfg.SigningKey == "" {
		log.Warn("SIGNING_KEY not set, using an ephemeral key", slog.String("public_key", signer.PublicKeyHex()))
	}

	jwtSecret := cfg.JWTSecret
	if jwtSecret == "" {
		log.Warn("JWT_SECRET not set, operator routes will reject every token")
	}
	tokens := services.NewJWTService(jwtSecret)

	audit := services.NewAuditTrail(store, log, cfg.AuditRetention)
	seeds := services.NewSeedService(store, audit, log, cfg.SeedTTL)
	ledger := services.NewRoundLedger(seeds, store, signer, audit, log, cfg.RejectNonceReuse)
	verifier := services.NewVerifier(seeds, store, signer, audit, log)

	wsHandler := handlers.NewWebSocketHandler(log)
	audit.SetBroadcaster(wsHandler)

	go runMaintenance(ctx, log, cfg.PruneInterval, seeds, audit)

	if cfg.Env == config.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}

	routerCfg := handlers.RouterConfig{
		Fairness:       handlers.NewFairnessHandler(seeds, ledger, verifier, audit, signer, store, log),
		WebSocket:      wsHandler,
		Tokens:         tokens,
		RoundRateLimit: cfg.RoundRateLimit,
		Middleware:     []gin.HandlerFunc{middleware.RequestLogger(log)},
	}
	if limiter != nil {
		routerCfg.Limiter = limiter
	}
	router := handlers.NewRouter(routerCfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", sl.Err(err))
		}
	}()

	log.Info("server started", slog.String("address", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server failed", sl.Err(err))
		os.Exit(1)
	}

	log.Info("server stopped")
}

// openStore returns the configured backend. The limiter is only non-nil for
// Redis, the one backend that keeps rate limit counters.
func openStore(ctx context.Context, cfg *config.Config) (storage.Store, *redisstore.Store, error) {
	switch cfg.StorageBackend {
	case config.BackendRedis:
		s, err := redisstore.New(ctx, redisstore.Options{
			Addr:     cfg.RedisURL,
			Password: cfg.RedisPass,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case config.BackendPostgres:
		s, err := postgres.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return s, nil, nil
	default:
		return memory.New(), nil, nil
	}
}

func runMaintenance(ctx context.Context, log *slog.Logger, every time.Duration, seeds *services.SeedService, audit *services.AuditTrail) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := seeds.DiscardExpired(ctx); err != nil {
				log.Error("failed to discard expired seeds", sl.Err(err))
			} else if n > 0 {
				log.Info("discarded expired seeds", slog.Int("count", n))
			}

			if n, err := audit.Prune(ctx); err != nil {
				log.Error("failed to prune audit log", sl.Err(err))
			} else if n > 0 {
				log.Info("pruned audit log", slog.Int64("count", n))
			}
		}
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}
