package store

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"options-paper-ledger/internal/config"
	"options-paper-ledger/internal/database"
)

// Open builds the record store selected by cfg.Store.Driver.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (RecordStore, error) {
	l := logger.With(zap.String("driver", cfg.Store.Driver))

	switch cfg.Store.Driver {
	case "sqlite", "":
		db, err := database.NewDatabase(cfg.Database.DSN)
		if err != nil {
			return nil, err
		}
		l.Info("Using SQLite record store", zap.String("dsn", cfg.Database.DSN))
		return NewGormStore(db, logger), nil
	case "csv":
		l.Info("Using CSV record store", zap.String("path", cfg.CSV.Path))
		return NewCSVStore(cfg.CSV.Path, logger), nil
	case "sheets":
		l.Info("Using spreadsheet record store",
			zap.String("spreadsheet_id", cfg.Sheets.SpreadsheetID),
			zap.String("worksheet", cfg.Sheets.Worksheet))
		st, err := NewSheetsStore(ctx, &cfg.Sheets, logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "dynamodb":
		l.Info("Using DynamoDB record store", zap.String("table", cfg.DynamoDB.Table))
		st, err := NewDynamoStore(ctx, &cfg.DynamoDB, logger)
		if err != nil {
			return nil, err
		}
		return st, nil
	case "memory":
		l.Warn("Using in-memory record store, trades will not survive a restart")
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
