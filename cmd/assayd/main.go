package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/provelo/assay/internal/config"
	"github.com/provelo/assay/internal/daemon"
	"github.com/provelo/assay/internal/domain"
	"github.com/provelo/assay/internal/judge"
	"github.com/provelo/assay/internal/queue"
	"github.com/provelo/assay/internal/session"
	"github.com/provelo/assay/internal/storage/postgres"
	"github.com/provelo/assay/internal/storage/sqlite"
)

func main() {
	if err := run(); err != nil {
		slog.Error("daemon error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logLevel := slog.LevelInfo
	if cfg.Debug {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)

	scoring, err := config.LoadScoring(cfg.ScoringPath)
	if err != nil {
		return fmt.Errorf("load scoring config: %w", err)
	}

	ctx := context.Background()

	store, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sessions := session.NewService(store, scoring, logger)

	var theoryJudge judge.Judge = judge.NewKeywordJudge()
	if cfg.JudgeURL != "" {
		resilientCfg := judge.DefaultResilientConfig()
		resilientCfg.Logger = logger
		theoryJudge = judge.NewResilientJudge(judge.NewHTTPJudge(cfg.JudgeURL), resilientCfg)
	}

	var originality *judge.OriginalityClient
	if cfg.OriginalityURL != "" {
		originality = judge.NewOriginalityClient(cfg.OriginalityURL)
	}

	server := daemon.NewServer(daemon.ServerConfig{
		Config:      cfg,
		Sessions:    sessions,
		TheoryJudge: theoryJudge,
		Originality: originality,
	})

	var consumer *queue.Consumer
	if cfg.QueueEnabled {
		conn, err := queue.NewConnection(cfg.RabbitMQURL)
		if err != nil {
			return fmt.Errorf("connect queue: %w", err)
		}
		defer conn.Close()

		consumer = queue.NewConsumer(conn, eventHandler(sessions), queue.DefaultConsumerConfig())
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start consumer: %w", err)
		}
	}

	done := make(chan struct{})
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigCh

		slog.Info("received signal, shutting down", "signal", sig.String())

		if consumer != nil {
			consumer.Stop()
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		close(done)
	}()

	if err := server.Start(); err != http.ErrServerClosed {
		return fmt.Errorf("server error: %w", err)
	}

	<-done
	slog.Info("daemon stopped")
	return nil
}

// openStore selects the storage driver from config.
func openStore(ctx context.Context, cfg *config.Config) (session.Store, func(), error) {
	switch cfg.StorageDriver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		store := postgres.NewSessionStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return store, pool.Close, nil

	case "memory":
		return session.NewMemoryStore(), func() {}, nil

	default:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("open sqlite: %w", err)
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return sqlite.NewSessionStore(db), func() { db.Close() }, nil
	}
}

// eventHandler adapts the session service to the queue consumer.
func eventHandler(sessions *session.Service) queue.EventHandler {
	return func(ctx context.Context, envelope *queue.EventEnvelope) error {
		return sessions.RecordEvent(ctx, envelope.SessionID, domain.BehavioralEvent{
			ID:         envelope.ID,
			TaskID:     envelope.TaskID,
			Type:       domain.EventType(envelope.Type),
			Meta:       envelope.Meta,
			OccurredAt: envelope.OccurredAt,
		})
	}
}
