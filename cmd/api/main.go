package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-helpdesk/backend/internal/config"
	"github.com/zhouzirui/z-helpdesk/backend/internal/handler"
	"github.com/zhouzirui/z-helpdesk/backend/internal/log"
	"github.com/zhouzirui/z-helpdesk/backend/internal/service/chat"
	"github.com/zhouzirui/z-helpdesk/backend/internal/service/conversation"
	"github.com/zhouzirui/z-helpdesk/backend/internal/service/recordstore"
	"github.com/zhouzirui/z-helpdesk/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Configure(log.Config{})
		logger := log.WithComponent("main")
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	log.Configure(log.Config{Level: cfg.Log.Level})
	logger := log.WithComponent("main")
	if envErr != nil {
		logger.Debug().Err(envErr).Msg("no .env file, using process environment only")
	}

	if err := run(ctx, cfg); err != nil {
		logger.Fatal().Err(err).Msg("server error")
	}
}

// run wires every component and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	logger := log.WithComponent("main")

	store, closeStore, err := openRecordStore(cfg.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	backend, closeBackend, err := openSessionBackend(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeBackend()

	transcripts := chat.NewService(chat.DefaultMaxMessages)
	sessions := session.NewStore(backend,
		session.WithTTL(cfg.Session.TTL),
		session.WithSweepInterval(cfg.Session.SweepInterval),
		session.WithRemoveHook(transcripts.Drop),
		session.WithSweepHook(func(cutoff time.Time) { transcripts.Prune(cutoff) }),
	)

	engine := conversation.NewEngine(sessions, store, conversation.Config{
		Menu:            cfg.Dialogue.Menu(),
		Location:        cfg.Dialogue.Location,
		EscalationEvent: cfg.Dialogue.EscalationEvent,
	}, conversation.WithRecorder(transcripts))

	router := handler.NewRouter(engine, transcripts, handler.Options{
		WebhookTimeout:     cfg.Server.WebhookTimeout,
		RateLimitPerMinute: cfg.Server.RateLimitPerMinute,
		ChatWSEnabled:      cfg.Server.ChatWSEnabled,
		LanguageCode:       cfg.Dialogue.LanguageCode,
		AllowedOrigins:     cfg.Server.AllowedOrigins,
	})

	sweepCtx, cancelSweep := context.WithCancel(ctx)
	defer cancelSweep()
	go sessions.RunSweeper(sweepCtx)

	logger.Info().
		Str("addr", cfg.Server.Addr).
		Str("record_store", cfg.Store.Driver).
		Str("session_backend", cfg.Session.Backend).
		Str("menu", cfg.Dialogue.MenuVariant).
		Msg("helpdesk webhook listening")

	return startServer(ctx, cfg.Server, router)
}

func openRecordStore(cfg config.StoreConfig) (recordstore.Client, func(), error) {
	switch cfg.Driver {
	case config.StoreDriverSQLite:
		store, err := recordstore.OpenSQLite(cfg.SQLitePath, cfg.Timeout)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil
	default:
		client, err := recordstore.NewHTTPClient(recordstore.HTTPConfig{
			URL:     cfg.URL,
			APIKey:  cfg.APIKey,
			Timeout: cfg.Timeout,
		}, nil)
		if err != nil {
			return nil, nil, err
		}
		return client, func() {}, nil
	}
}

func openSessionBackend(ctx context.Context, cfg config.SessionConfig) (session.Backend, func(), error) {
	switch cfg.Backend {
	case config.SessionBackendRedis:
		client, err := session.NewRedisClient(ctx, session.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("session backend: %w", err)
		}
		return session.NewRedisBackend(client, cfg.TTL), func() { _ = client.Close() }, nil
	default:
		return session.NewMemoryBackend(), func() {}, nil
	}
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) error {
	srv := &http.Server{
		Addr:              serverCfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return runServer(ctx, srv)
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
