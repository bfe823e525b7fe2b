package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"clinical-intake-agent/internal/agent"
	"clinical-intake-agent/internal/config"
	"clinical-intake-agent/internal/intake"
	"clinical-intake-agent/internal/platform/telegram"
	"clinical-intake-agent/internal/report"
)

// app holds the wired components shared by serve and chat.
type app struct {
	service intake.Service
	stt     intake.Transcriber
	db      *sql.DB
}

func (a *app) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

func buildApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	a := &app{}

	// 1. Session registry
	var repo intake.Repository
	switch cfg.Store.Driver {
	case "postgres":
		db, err := openDB(ctx, cfg.Store.DatabaseURL, logger)
		if err != nil {
			return nil, err
		}
		a.db = db
		if cfg.Store.AutoMigrate {
			if err := migrateUp(cfg.Store.MigrationsPath, cfg.Store.DatabaseURL, logger); err != nil {
				db.Close()
				return nil, err
			}
		}
		repo = intake.NewPostgresRepository(db)
	default:
		repo = intake.NewMemoryRepository()
	}

	// 2. Clients
	oracle, err := agent.NewOpenAIOracle(agent.Config{
		Model:       cfg.Oracle.Model,
		BaseURL:     cfg.Oracle.BaseURL,
		APIKey:      cfg.Oracle.APIKey,
		Temperature: cfg.Oracle.Temperature,
		Timeout:     cfg.Oracle.Timeout,
		MaxRetries:  cfg.Oracle.MaxRetries,
		RateLimit:   cfg.Oracle.RateLimit,
		Burst:       cfg.Oracle.Burst,
	}, logger.Named("oracle"))
	if err != nil {
		a.Close()
		return nil, err
	}

	if cfg.STT.URL != "" {
		a.stt = agent.NewWhisperClient(cfg.STT.URL, cfg.STT.Timeout)
	}

	var reporter intake.Reporter
	if cfg.Report.Enabled() {
		tg := telegram.NewClient(cfg.Report.TelegramToken,
			telegram.WithBaseURL(cfg.Report.TelegramBaseURL),
			telegram.WithTimeout(cfg.Report.TelegramTimeout))
		reporter = report.NewService(tg, cfg.Report.DoctorChatID, cfg.Report.FontPaths, logger.Named("report"))
	} else {
		logger.Warn("report.telegram_token or report.doctor_chat_id not set, triage reports will not be sent")
	}

	// 3. Services
	controller := intake.NewController(oracle,
		intake.WithRecentWindow(cfg.Interview.RecentWindow),
		intake.WithControllerLogger(logger.Named("controller")))
	a.service = intake.NewService(repo, controller, reporter, logger.Named("service"))
	return a, nil
}

// openDB waits for the database to accept connections.
func openDB(ctx context.Context, dsn string, logger *zap.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	const attempts = 10
	for i := 1; i <= attempts; i++ {
		if err = db.PingContext(ctx); err == nil {
			logger.Info("connected to database")
			return db, nil
		}
		logger.Info("waiting for database", zap.Int("attempt", i), zap.Int("of", attempts), zap.Error(err))
		select {
		case <-time.After(2 * time.Second):
		case <-ctx.Done():
			db.Close()
			return nil, ctx.Err()
		}
	}
	db.Close()
	return nil, fmt.Errorf("could not connect to database: %w", err)
}

func newMigrate(source, dsn string) (*migrate.Migrate, error) {
	m, err := migrate.New(source, dsn)
	if err != nil {
		return nil, fmt.Errorf("migration init failed: %w", err)
	}
	return m, nil
}

func migrateUp(source, dsn string, logger *zap.Logger) error {
	m, err := newMigrate(source, dsn)
	if err != nil {
		return err
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	logger.Info("migrations applied", zap.String("source", source))
	return nil
}
