// Package catalog persists completed downloads as library entries backed
// by SQLite.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Entry is one item in the game library.
type Entry struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null;index"`
	Platform  string    `json:"platform" gorm:"index"`
	FilePath  string    `json:"file_path" gorm:"not null"`
	SourceDir string    `json:"source_dir"`
	Metadata  string    `json:"metadata,omitempty" gorm:"type:text"` // JSON blob
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

type Store struct {
	db *gorm.DB
}

func NewStore(dbPath string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.AutoMigrate(&Entry{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return &Store{db: db}, nil
}

// Register satisfies the engine's catalog collaborator contract.
func (s *Store) Register(name, platform, filePath, sourceDir string, metadata map[string]string) error {
	entry := &Entry{
		ID:        uuid.New().String(),
		Name:      name,
		Platform:  platform,
		FilePath:  filePath,
		SourceDir: sourceDir,
	}
	if len(metadata) > 0 {
		blob, err := json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		entry.Metadata = string(blob)
	}
	return s.db.Create(entry).Error
}

func (s *Store) FindByID(id string) (*Entry, error) {
	var entry Entry
	if err := s.db.First(&entry, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &entry, nil
}

func (s *Store) List() ([]*Entry, error) {
	var entries []*Entry
	err := s.db.Order("created_at DESC").Find(&entries).Error
	return entries, err
}

func (s *Store) ListByPlatform(platform string) ([]*Entry, error) {
	var entries []*Entry
	err := s.db.Where("platform = ?", platform).Order("name ASC").Find(&entries).Error
	return entries, err
}

func (s *Store) Delete(id string) error {
	return s.db.Delete(&Entry{}, "id = ?", id).Error
}

func (s *Store) Count() (int64, error) {
	var count int64
	err := s.db.Model(&Entry{}).Count(&count).Error
	return count, err
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
