package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tradecraft/tradecraft/internal/config"
	"github.com/tradecraft/tradecraft/internal/domain"
	"github.com/tradecraft/tradecraft/internal/engine"
	"github.com/tradecraft/tradecraft/internal/feed"
	"github.com/tradecraft/tradecraft/internal/handler"
	"github.com/tradecraft/tradecraft/internal/service"
	"github.com/tradecraft/tradecraft/internal/store"
)

// backingStore is everything the process needs from a store
// implementation: the engine's write-through surface, the service's
// reporting surface, and a Close for shutdown.
type backingStore interface {
	engine.OrderStore
	service.Store
	io.Closer
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, _ := zerolog.ParseLevel(cfg.LogLevel)
	zerolog.SetGlobalLevel(level)
	log.Logger = zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Open the durable store; an empty DATA_DIR runs without durability.
	var db backingStore
	if cfg.DataDir != "" {
		pdb, err := store.OpenPebble(cfg.DataDir)
		if err != nil {
			log.Fatal().Err(err).Str("data_dir", cfg.DataDir).Msg("failed to open store")
		}
		db = pdb
		log.Info().Str("data_dir", cfg.DataDir).Msg("pebble store opened")
	} else {
		db = store.NewMemory()
		log.Warn().Msg("DATA_DIR is empty, running without durability")
	}

	// Continue the event sequence where the store left off, then
	// rebuild every symbol's book from its open orders.
	maxSeq, err := db.MaxSequence()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to read max sequence")
	}
	seq := engine.NewSequencer(maxSeq)

	books := engine.NewBookManager()
	matcher := engine.NewMatcher(books, db, seq)
	if err := matcher.Rebuild(); err != nil {
		log.Fatal().Err(err).Msg("failed to rebuild order books")
	}
	log.Info().Uint64("sequence", maxSeq).Msg("recovery complete")

	symbols := domain.NewSymbolRegistry(cfg.Symbols...)

	// Fill feed.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := feed.NewHub()
	go hub.Run(ctx)

	orderSvc := service.NewOrderService(matcher, db, symbols, hub)
	router := handler.NewRouter(orderSvc, hub, cfg.BookDepth, log.Logger)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	go func() {
		log.Info().Str("addr", addr).Strs("symbols", cfg.Symbols).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutdown signal received")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	cancel()

	if err := db.Close(); err != nil {
		log.Error().Err(err).Msg("store close error")
	}

	log.Info().Msg("server stopped")
}
