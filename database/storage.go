package database

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/datapipe/logger"
	"github.com/kbukum/datapipe/storage"
)

func init() {
	storage.RegisterFactory(storage.ProviderSQL, func(_ storage.Config, providerCfg any, log *logger.Logger) (storage.Storage, error) {
		c := &Config{}
		if providerCfg != nil {
			pc, ok := providerCfg.(*Config)
			if !ok {
				return nil, fmt.Errorf("database: expected *database.Config, got %T", providerCfg)
			}
			c = pc
		}
		db, err := Open(context.Background(), *c, log)
		if err != nil {
			return nil, err
		}
		return NewStorage(context.Background(), db)
	})
}

// Storage implements storage.Storage on one table of db. Each upload is a
// single upsert, so readers never see a partial object.
type Storage struct {
	db    *DB
	table string
}

// NewStorage migrates the object table and returns the backend.
func NewStorage(ctx context.Context, db *DB) (*Storage, error) {
	s := &Storage{db: db, table: db.cfg.Table}
	if err := s.tx(ctx).AutoMigrate(&Object{}); err != nil {
		return nil, fmt.Errorf("storage: migrate %s: %w", s.table, err)
	}
	return s, nil
}

func (s *Storage) tx(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Table(s.table)
}

// Upload inserts or replaces the object at path.
func (s *Storage) Upload(ctx context.Context, path string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return fmt.Errorf("storage: sql read upload: %w", err)
	}
	obj := Object{Path: path, Data: data, Size: int64(len(data))}
	err = s.tx(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "path"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "size", "updated_at"}),
	}).Create(&obj).Error
	if err != nil {
		return fmt.Errorf("storage: sql upload: %w", err)
	}
	return nil
}

// Download returns the object at path.
func (s *Storage) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	var obj Object
	if err := s.tx(ctx).Where("path = ?", path).Take(&obj).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, path)
		}
		return nil, fmt.Errorf("storage: sql download: %w", err)
	}
	return io.NopCloser(bytes.NewReader(obj.Data)), nil
}

// Delete removes the object at path.
func (s *Storage) Delete(ctx context.Context, path string) error {
	if err := s.tx(ctx).Where("path = ?", path).Delete(&Object{}).Error; err != nil {
		return fmt.Errorf("storage: sql delete: %w", err)
	}
	return nil
}

// Exists checks whether an object exists at path.
func (s *Storage) Exists(ctx context.Context, path string) (bool, error) {
	var n int64
	if err := s.tx(ctx).Where("path = ?", path).Count(&n).Error; err != nil {
		return false, fmt.Errorf("storage: sql exists: %w", err)
	}
	return n > 0, nil
}

// List returns the objects whose path starts with prefix, without data.
// Paths are compared as bytes, since len(prefix) counts bytes.
func (s *Storage) List(ctx context.Context, prefix string) ([]storage.FileInfo, error) {
	var rows []Object
	err := s.tx(ctx).
		Select("path", "size", "updated_at").
		Where("substr(CAST(path AS BLOB), 1, ?) = CAST(? AS BLOB)", len(prefix), prefix).
		Order("path").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("storage: sql list: %w", err)
	}
	files := make([]storage.FileInfo, len(rows))
	for i, r := range rows {
		files[i] = storage.FileInfo{Path: r.Path, Size: r.Size, LastModified: r.UpdatedAt}
	}
	return files, nil
}

// Close closes the underlying database.
func (s *Storage) Close() error {
	return s.db.Close()
}

// compile-time check
var _ storage.Storage = (*Storage)(nil)
