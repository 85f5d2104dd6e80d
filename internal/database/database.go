package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"homeworth/server/config"
	"homeworth/server/internal/models"
)

type Database struct {
	db     *gorm.DB
	logger *logrus.Logger
}

func NewDatabase(cfg config.DatabaseConfig, logger *logrus.Logger) (*Database, error) {
	if logger == nil {
		logger = logrus.New()
	}

	var dialector gorm.Dialector
	switch cfg.Driver {
	case "", "sqlite":
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}

		sqlDB, err := sql.Open("sqlite3", sqliteDSN(cfg.Path))
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// sqlite allows a single writer; serialising through one connection avoids SQLITE_BUSY
		sqlDB.SetMaxOpenConns(1)
		dialector = sqlite.New(sqlite.Config{Conn: sqlDB})
	case "mysql":
		if cfg.DSN == "" {
			return nil, errors.New("mysql driver requires DB_DSN")
		}
		dialector = mysql.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}

	level := gormlogger.Silent
	if cfg.Debug {
		level = gormlogger.Info
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(level)})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gorm: %w", err)
	}

	return &Database{db: db, logger: logger}, nil
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// NewTestDB opens a migrated sqlite database inside dir.
func NewTestDB(dir string) (*Database, error) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	db, err := NewDatabase(config.DatabaseConfig{
		Driver: "sqlite",
		Path:   filepath.Join(dir, "test.db"),
	}, logger)
	if err != nil {
		return nil, err
	}
	if err := db.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) GetDB() *gorm.DB {
	return d.db
}

// Transaction runs fn in a single transaction bound to ctx. Any error, including a
// panic inside fn, rolls back everything fn wrote.
func (d *Database) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(fn)
}

// FindEstimate returns the newest estimate stored under key, or nil when there is none.
func (d *Database) FindEstimate(ctx context.Context, key string) (*models.Estimate, error) {
	var estimate models.Estimate
	err := d.db.WithContext(ctx).
		Preload("Property").
		Where("lookup_key = ?", key).
		Order("id DESC").
		First(&estimate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query estimate: %w", err)
	}
	return &estimate, nil
}

// ListEstimates returns stored estimates, newest first.
func (d *Database) ListEstimates(ctx context.Context, limit, offset int) ([]models.Estimate, error) {
	var estimates []models.Estimate
	err := d.db.WithContext(ctx).
		Preload("Property").
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&estimates).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list estimates: %w", err)
	}
	return estimates, nil
}

// EvictEstimates deletes every estimate stored under key so the next lookup misses.
func (d *Database) EvictEstimates(ctx context.Context, key string) (int64, error) {
	result := d.db.WithContext(ctx).Where("lookup_key = ?", key).Delete(&models.Estimate{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to evict estimates: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// FirstOrCreateProperty inserts p unless a property with the same lookup key exists, in
// which case the stored row is returned. created reports which branch was taken.
func FirstOrCreateProperty(tx *gorm.DB, p *models.Property) (*models.Property, bool, error) {
	if p.LookupKey == "" {
		return nil, false, errors.New("property lookup key is empty")
	}

	result := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "lookup_key"}},
		DoNothing: true,
	}).Create(p)
	if result.Error != nil {
		return nil, false, fmt.Errorf("failed to insert property: %w", result.Error)
	}
	if result.RowsAffected == 1 && p.ID != 0 {
		return p, true, nil
	}

	var existing models.Property
	if err := tx.Where("lookup_key = ?", p.LookupKey).First(&existing).Error; err != nil {
		return nil, false, fmt.Errorf("failed to load existing property: %w", err)
	}
	return &existing, false, nil
}

// FindPropertyByKey returns the property stored under key, or nil.
func (d *Database) FindPropertyByKey(ctx context.Context, key string) (*models.Property, error) {
	var p models.Property
	err := d.db.WithContext(ctx).Where("lookup_key = ?", key).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query property: %w", err)
	}
	return &p, nil
}

// GetProperty returns the property with the given id, or nil.
func (d *Database) GetProperty(ctx context.Context, id uint) (*models.Property, error) {
	var p models.Property
	err := d.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query property: %w", err)
	}
	return &p, nil
}

func (d *Database) ListProperties(ctx context.Context, limit, offset int) ([]models.Property, error) {
	var properties []models.Property
	err := d.db.WithContext(ctx).Order("id").Limit(limit).Offset(offset).Find(&properties).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list properties: %w", err)
	}
	return properties, nil
}

// ListPropertyURLs returns the source page of every property that was scraped.
func (d *Database) ListPropertyURLs(ctx context.Context) ([]string, error) {
	var urls []string
	err := d.db.WithContext(ctx).
		Model(&models.Property{}).
		Where("source_url <> ''").
		Order("id").
		Pluck("source_url", &urls).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list property urls: %w", err)
	}
	return urls, nil
}

// ClearAll removes every stored record and returns the number of deleted rows.
func (d *Database) ClearAll(ctx context.Context) (int64, error) {
	var deleted int64
	err := d.Transaction(ctx, func(tx *gorm.DB) error {
		global := tx.Session(&gorm.Session{AllowGlobalUpdate: true})
		for _, model := range []any{
			&models.ContextFact{},
			&models.PriceHistoryEntry{},
			&models.Estimate{},
			&models.Property{},
		} {
			result := global.Delete(model)
			if result.Error != nil {
				return fmt.Errorf("failed to clear %T: %w", model, result.Error)
			}
			deleted += result.RowsAffected
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	d.logger.WithField("deleted", deleted).Info("Cleared all stored records")
	return deleted, nil
}

func (d *Database) GetStats(ctx context.Context) (models.PropertyStats, error) {
	var stats models.PropertyStats
	db := d.db.WithContext(ctx)
	counts := []struct {
		model any
		dest  *int64
	}{
		{&models.Property{}, &stats.TotalProperties},
		{&models.Estimate{}, &stats.TotalEstimates},
		{&models.PriceHistoryEntry{}, &stats.TotalPrices},
		{&models.ContextFact{}, &stats.TotalFacts},
	}
	for _, c := range counts {
		if err := db.Model(c.model).Count(c.dest).Error; err != nil {
			return stats, fmt.Errorf("failed to count %T: %w", c.model, err)
		}
	}
	return stats, nil
}
