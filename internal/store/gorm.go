package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"options-paper-ledger/internal/database"
	"options-paper-ledger/internal/models"
)

// GormStore keeps ledger rows in a SQL table through gorm.
type GormStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

var (
	_ RecordStore = (*GormStore)(nil)
	_ Sequencer   = (*GormStore)(nil)
)

// NewGormStore wraps an open database connection.
func NewGormStore(db *gorm.DB, logger *zap.Logger) *GormStore {
	return &GormStore{db: db, logger: logger.Named("gorm-store")}
}

// EnsureHeader migrates the trades table. The SQL columns are fixed, so the
// header is only checked against them.
func (s *GormStore) EnsureHeader(ctx context.Context, header []string) error {
	for _, col := range header {
		if _, ok := models.SQLColumns[col]; !ok {
			return fmt.Errorf("%w: %q has no SQL column", ErrUnknownColumn, col)
		}
	}
	if err := database.AutoMigrate(s.db.WithContext(ctx)); err != nil {
		return unavailable("migrate", err)
	}
	return nil
}

func (s *GormStore) ReadAll(ctx context.Context) ([]models.Row, error) {
	var trs []models.TradeRow
	if err := s.db.WithContext(ctx).Order("position").Find(&trs).Error; err != nil {
		return nil, unavailable("read rows", err)
	}

	rows := make([]models.Row, len(trs))
	for i, tr := range trs {
		rows[i] = tr.Row()
	}
	return rows, nil
}

func (s *GormStore) Append(ctx context.Context, row models.Row) error {
	tr := models.NewTradeRow(row)
	if err := s.db.WithContext(ctx).Create(&tr).Error; err != nil {
		return unavailable("append row", err)
	}
	s.logger.Debug("Appended row", zap.Uint("position", tr.Position), zap.String("id", tr.TradeID))
	return nil
}

func (s *GormStore) UpdateFields(ctx context.Context, position int, fields models.Row) error {
	if position < 0 {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, position)
	}

	updates := make(map[string]interface{}, len(fields))
	for col, v := range fields {
		sqlCol, ok := models.SQLColumns[col]
		if !ok {
			return fmt.Errorf("%w: %q", ErrUnknownColumn, col)
		}
		updates[sqlCol] = v
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var tr models.TradeRow
		err := tx.Order("position").Offset(position).Limit(1).Take(&tr).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %d", ErrRowOutOfRange, position)
		}
		if err != nil {
			return unavailable("locate row", err)
		}

		if err := tx.Model(&models.TradeRow{}).Where("position = ?", tr.Position).Updates(updates).Error; err != nil {
			return unavailable("update row", err)
		}
		return nil
	})
}

// AppendNext assigns MAX(id)+1 and inserts the row in the same transaction,
// so two writers sharing the database cannot hand out the same id.
func (s *GormStore) AppendNext(ctx context.Context, build func(nextID int64) models.Row) (int64, error) {
	var nextID int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxID sql.NullInt64
		if err := tx.Model(&models.TradeRow{}).Select("MAX(CAST(id AS INTEGER))").Row().Scan(&maxID); err != nil {
			return unavailable("scan max id", err)
		}
		nextID = maxID.Int64 + 1

		tr := models.NewTradeRow(build(nextID))
		if err := tx.Create(&tr).Error; err != nil {
			return unavailable("append row", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return nextID, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
