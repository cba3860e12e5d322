package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/worklink-ua/backend/internal/config"
	"github.com/worklink-ua/backend/internal/handler"
	"github.com/worklink-ua/backend/internal/realtime"
	chatservice "github.com/worklink-ua/backend/internal/service/chat"
	"github.com/worklink-ua/backend/internal/store"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	// Load .env file if present
	if err := godotenv.Load(); err != nil {
		logger.Debug().Err(err).Msg("no .env file, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	st, err := openStore(cfg.Store, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	feedHub := realtime.NewFeedHub(logger)
	typingHub := realtime.NewTypingHub(logger)
	chatSvc := chatservice.NewService(st, feedHub, typingHub, logger)

	router := handler.NewRouter(chatSvc, handler.Config{
		TypingWindow:   cfg.Realtime.TypingWindow,
		MutationRPS:    cfg.Realtime.MutationRPS,
		MutationBurst:  cfg.Realtime.MutationBurst,
		AllowedOrigins: cfg.Realtime.AllowedOrigins,
	}, logger)

	startServer(ctx, cfg.Server, router, logger)
}

func openStore(cfg config.StoreConfig, logger zerolog.Logger) (store.Store, error) {
	if cfg.Path == "" {
		logger.Info().Msg("using in-memory store")
		return store.NewMemory(), nil
	}
	logger.Info().Str("path", cfg.Path).Msg("using pebble store")
	return store.OpenPebble(cfg.Path)
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler, logger zerolog.Logger) {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info().Str("addr", serverCfg.Addr).Msg("chat backend listening")
	if err := runServer(ctx, srv); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
