package database

import (
	"errors"
	"time"

	"github.com/livedoc-hq/livedoc/backend/internal/documents"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationBackfillDocumentTypes = "2026-08-12_backfill_document_types"

type migrationRecord struct {
	Name             string `gorm:"column:name;primaryKey;size:190;not null"`
	AppliedAtSeconds int64  `gorm:"column:applied_at_s;not null"`
}

func (migrationRecord) TableName() string {
	return "db_migrations"
}

type migrationDefinition struct {
	name  string
	apply func(*gorm.DB) error
}

func applyMigrations(db *gorm.DB, logger *zap.Logger) error {
	migrations := []migrationDefinition{
		{name: migrationBackfillDocumentTypes, apply: backfillDocumentTypes},
	}

	for _, migration := range migrations {
		var record migrationRecord
		err := db.Where("name = ?", migration.name).Take(&record).Error
		if err == nil {
			continue
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		if err := migration.apply(db); err != nil {
			return err
		}
		appliedAt := time.Now().UTC().Unix()
		if err := db.Create(&migrationRecord{Name: migration.name, AppliedAtSeconds: appliedAt}).Error; err != nil {
			return err
		}
		if logger != nil {
			logger.Info("database migration applied", zap.String("migration", migration.name))
		}
	}
	return nil
}

// Rows written before doc_type existed carry an empty string.
func backfillDocumentTypes(db *gorm.DB) error {
	return db.Model(&documents.Document{}).
		Where("doc_type = ''").
		Update("doc_type", string(documents.DocTypeDocumentation)).Error
}
