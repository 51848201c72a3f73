package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/okian/vnclub/internal/domain/model"
	"github.com/okian/vnclub/pkg/logger"
)

const defaultBusyTimeout = 5 * time.Second

// Open opens the SQLite database at path through the pure-Go driver.
// SQLite allows one writer, so the pool is capped at a single connection.
func Open(path string) (*gorm.DB, error) {
	db, err := gorm.Open(gormsqlite.Dialector{
		DriverName: "sqlite",
		DSN:        path,
	}, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// SQLStore implements Store on top of gorm.
type SQLStore struct {
	db          *gorm.DB
	busyTimeout time.Duration
	logger      logger.Logger
}

// NewSQLStore wraps an open database. Call RunMigrations first.
func NewSQLStore(ctx context.Context, db *gorm.DB, opts ...Option) (*SQLStore, error) {
	s := &SQLStore{
		db:          db,
		busyTimeout: defaultBusyTimeout,
		logger:      logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		fmt.Sprintf("PRAGMA busy_timeout = %d", s.busyTimeout.Milliseconds()),
	}
	for _, p := range pragmas {
		if err := s.db.WithContext(ctx).Exec(p).Error; err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
	}
	s.logger.Debug(ctx, "sqlite store ready", logger.Duration("busy_timeout", s.busyTimeout))
	return s, nil
}

// Ping checks the connection.
func (s *SQLStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database.
func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// InsertTitle implements catalog.Store.
func (s *SQLStore) InsertTitle(ctx context.Context, e model.TitleEntry) error {
	m := titleFromDomain(e)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("title %s: %w", e.ID, model.ErrDuplicateTitle)
		}
		return err
	}
	return nil
}

// DeleteTitle implements catalog.Store.
func (s *SQLStore) DeleteTitle(ctx context.Context, id string) (model.TitleEntry, error) {
	var m titleModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
			return notFound(err, "title "+id)
		}
		return tx.Delete(&titleModel{}, "id = ?", id).Error
	})
	if err != nil {
		return model.TitleEntry{}, err
	}
	return m.toDomain(), nil
}

// ListTitles implements catalog.Store.
func (s *SQLStore) ListTitles(ctx context.Context) ([]model.TitleEntry, error) {
	rows := make([]titleModel, 0)
	if err := s.db.WithContext(ctx).Order("start_period DESC, rowid ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]model.TitleEntry, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out, nil
}

// GetMetadata implements metadata.Store.
func (s *SQLStore) GetMetadata(ctx context.Context, id string) (model.MetadataEntry, error) {
	var m metadataModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return model.MetadataEntry{}, notFound(err, "metadata "+id)
	}
	return m.toDomain(), nil
}

// UpsertMetadata implements metadata.Store.
func (s *SQLStore) UpsertMetadata(ctx context.Context, e model.MetadataEntry) error {
	m := metadataFromDomain(e)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&m).Error
}

// InsertCompletion implements ledger.Store.
func (s *SQLStore) InsertCompletion(ctx context.Context, e model.CompletionEvent) (int64, error) {
	m := completionFromDomain(e)
	if err := s.db.WithContext(ctx).Create(&m).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("user %s title %s: %w", e.UserID, model.Deref(e.TitleID), model.ErrDuplicateCompletion)
		}
		return 0, err
	}
	return m.ID, nil
}

// GetCompletion implements ledger.Store.
func (s *SQLStore) GetCompletion(ctx context.Context, id int64) (model.CompletionEvent, error) {
	var m completionModel
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return model.CompletionEvent{}, notFound(err, fmt.Sprintf("completion %d", id))
	}
	return m.toDomain(), nil
}

// DeleteCompletion implements ledger.Store.
func (s *SQLStore) DeleteCompletion(ctx context.Context, id int64) (model.CompletionEvent, error) {
	var m completionModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
			return notFound(err, fmt.Sprintf("completion %d", id))
		}
		return tx.Delete(&completionModel{}, "id = ?", id).Error
	})
	if err != nil {
		return model.CompletionEvent{}, err
	}
	return m.toDomain(), nil
}

// UpdateReview implements ledger.Store.
func (s *SQLStore) UpdateReview(ctx context.Context, id int64, patch model.ReviewPatch) (model.CompletionEvent, error) {
	fields := map[string]any{}
	if patch.Rating != nil {
		fields["rating"] = *patch.Rating
	}
	if patch.Comment != nil {
		fields["comment"] = *patch.Comment
	}

	var m completionModel
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if len(fields) == 0 {
			if err := tx.Where("id = ?", id).First(&m).Error; err != nil {
				return notFound(err, fmt.Sprintf("completion %d", id))
			}
			return nil
		}
		res := tx.Model(&completionModel{}).Where("id = ?", id).Updates(fields)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("completion %d: %w", id, model.ErrNotFound)
		}
		return tx.Where("id = ?", id).First(&m).Error
	})
	if err != nil {
		return model.CompletionEvent{}, err
	}
	return m.toDomain(), nil
}

// HasCompletion implements ledger.Store.
func (s *SQLStore) HasCompletion(ctx context.Context, userID, titleID string) (bool, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&completionModel{}).
		Where("user_id = ? AND title_id = ?", userID, titleID).
		Count(&n).Error
	return n > 0, err
}

// SumPoints implements ledger.Store.
func (s *SQLStore) SumPoints(ctx context.Context, userID string, f model.Filter) (int, error) {
	var total int
	q := applyFilter(s.db.WithContext(ctx).Model(&completionModel{}), f).Where("user_id = ?", userID)
	if err := q.Select("COALESCE(SUM(points), 0)").Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

// ListByUser implements ledger.Store.
func (s *SQLStore) ListByUser(ctx context.Context, userID string) ([]model.CompletionEvent, error) {
	rows := make([]completionModel, 0)
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("period DESC, id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return completionsToDomain(rows), nil
}

// Scan implements ledger.Store.
func (s *SQLStore) Scan(ctx context.Context, f model.Filter) ([]model.CompletionEvent, error) {
	rows := make([]completionModel, 0)
	if err := applyFilter(s.db.WithContext(ctx), f).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return completionsToDomain(rows), nil
}

func applyFilter(q *gorm.DB, f model.Filter) *gorm.DB {
	if f.Period != "" {
		q = q.Where("period = ?", f.Period.String())
	}
	if f.CommunityID != "" {
		q = q.Where("community_id = ?", f.CommunityID)
	}
	return q
}

func completionsToDomain(rows []completionModel) []model.CompletionEvent {
	out := make([]model.CompletionEvent, 0, len(rows))
	for _, m := range rows {
		out = append(out, m.toDomain())
	}
	return out
}

func notFound(err error, what string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("%s: %w", what, model.ErrNotFound)
	}
	return err
}
