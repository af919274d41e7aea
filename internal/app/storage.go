package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/iho/storeledger/internal/adapter/http/handler"
	postgresRepo "github.com/iho/storeledger/internal/adapter/repository/postgres"
	sqliteRepo "github.com/iho/storeledger/internal/adapter/repository/sqlite"
	"github.com/iho/storeledger/internal/infrastructure/config"
	"github.com/iho/storeledger/internal/infrastructure/postgres"
	"github.com/iho/storeledger/internal/usecase"
)

// storage is one storage backend's repositories and lifecycle hooks.
type storage struct {
	txManager usecase.TransactionManager
	accounts  usecase.AccountRepository
	entries   usecase.EntryRepository
	parties   usecase.PartyRepository
	products  usecase.ProductRepository
	invoices  usecase.InvoiceRepository
	outbox    usecase.OutboxRepository
	retrier   usecase.Retrier

	ready handler.ReadinessCheck
	close func() error
}

func openStorage(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	switch cfg.StorageDriver {
	case config.StorageSQLite:
		return openSQLite(cfg, logger)
	default:
		return openPostgres(ctx, cfg, logger)
	}
}

func openPostgres(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	if err := postgres.RunMigrations(cfg.DatabaseURL, cfg.MigrationsPath, logger); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, cfg.DatabaseTimeout)
	defer cancel()

	pool, err := postgres.NewPool(connectCtx, cfg.DatabaseURL, cfg.DatabaseMaxConns, cfg.DatabaseMinConns)
	if err != nil {
		return nil, err
	}
	logger.Info().Msg("connected to postgres")

	return &storage{
		txManager: postgresRepo.NewTxManager(pool),
		accounts:  postgresRepo.NewAccountRepository(pool),
		entries:   postgresRepo.NewEntryRepository(pool),
		parties:   postgresRepo.NewPartyRepository(pool),
		products:  postgresRepo.NewProductRepository(pool),
		invoices:  postgresRepo.NewInvoiceRepository(pool),
		outbox:    postgresRepo.NewOutboxRepository(pool),
		retrier:   postgresRepo.NewRetrier(logger),
		ready:     handler.ReadinessCheck{Name: "postgres", Check: pool.Ping},
		close: func() error {
			pool.Close()
			return nil
		},
	}, nil
}

func openSQLite(cfg *config.Config, logger zerolog.Logger) (*storage, error) {
	db, err := sqliteRepo.Open(cfg.SQLitePath, logger)
	if err != nil {
		return nil, err
	}
	logger.Info().Str("path", cfg.SQLitePath).Msg("opened sqlite database")

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	return &storage{
		txManager: sqliteRepo.NewTxManager(db),
		accounts:  sqliteRepo.NewAccountRepository(db),
		entries:   sqliteRepo.NewEntryRepository(db),
		parties:   sqliteRepo.NewPartyRepository(db),
		products:  sqliteRepo.NewProductRepository(db),
		invoices:  sqliteRepo.NewInvoiceRepository(db),
		outbox:    sqliteRepo.NewOutboxRepository(db),
		retrier:   sqliteRepo.NewRetrier(logger),
		ready:     handler.ReadinessCheck{Name: "sqlite", Check: sqlDB.PingContext},
		close:     func() error { return sqliteRepo.Close(db) },
	}, nil
}
