package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/Poker/internal/adapters/http"
	wssignal "github.com/dkeye/Poker/internal/adapters/signal"
	"github.com/dkeye/Poker/internal/app"
	"github.com/dkeye/Poker/internal/config"
	"github.com/dkeye/Poker/internal/storage/sqlite"
	"github.com/dkeye/Poker/internal/usage"
)

const (
	shutdownTimeout = 5 * time.Second
	restoreTimeout  = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		log.Fatal().Err(err).Msg("poker server failed")
	}
}

func run() error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	closeLog, err := setupLogger(cfg)
	if err != nil {
		return err
	}
	defer closeLog()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	tracker := usage.NewTracker(store, usage.DefaultBuffer)
	persister := app.NewPersister(store, cfg.Room.PersistDebounce)
	reg := app.NewRegistry(app.RegistryOptions{
		MaxRooms:      cfg.Room.MaxRooms,
		SweepInterval: cfg.Room.SweepInterval,
		StaleAfter:    cfg.Room.StaleAfter,
		Persister:     persister,
		Usage:         tracker,
	})

	restoreCtx, restoreCancel := context.WithTimeout(ctx, restoreTimeout)
	restored, err := persister.Restore(restoreCtx, reg)
	restoreCancel()
	if err != nil {
		log.Error().Err(err).Msg("restore rooms")
	} else {
		log.Info().Int("rooms", restored).Msg("rooms restored")
	}

	ctl := wssignal.NewController(reg, wssignal.Options{
		ReadLimit:      cfg.WS.ReadLimit,
		PingPeriod:     cfg.WS.PingPeriod,
		PongWait:       cfg.WS.PongWait,
		MaxConnections: cfg.WS.MaxConnections,
		DedupTTL:       cfg.WS.DedupTTL,
		AllowedOrigins: cfg.AllowedOrigins,
		Usage:          tracker,
	})
	limiter := router.NewRateLimiter(cfg.RateLimit, 10_000, cfg.RateInterval)
	r := router.SetupRouter(ctx, cfg, router.Deps{
		Rooms:   reg,
		Signal:  ctl,
		Counter: store,
		Limiter: limiter,
	})

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("Poker server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error { return reg.Run(gctx) })
	g.Go(func() error { return tracker.Run(gctx) })
	g.Go(func() error { return router.RunLimiterPrune(gctx, limiter, 2*cfg.RateInterval) })
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("Shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Server forced to shutdown")
		}
		return nil
	})

	err = g.Wait()
	persister.Close()
	log.Info().Msg("Server exited gracefully")
	return err
}

func setupLogger(cfg *config.Config) (func(), error) {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", cfg.LogLevel, err)
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = zerolog.ConsoleWriter{Out: os.Stderr}
	closer := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, f)
		closer = func() { _ = f.Close() }
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	return closer, nil
}
