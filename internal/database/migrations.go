package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const migrationDedupeAssociationRows = "2026-07-18_dedupe_association_rows"

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
		{name: migrationDedupeAssociationRows, apply: dedupeAssociationRows},
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

// dedupeAssociationRows repairs association tables written before the
// composite primary keys were introduced, keeping one row per pair.
func dedupeAssociationRows(db *gorm.DB) error {
	if err := db.Exec(
		"DELETE FROM page_folders WHERE rowid NOT IN (SELECT MIN(rowid) FROM page_folders GROUP BY page_id, folder_id);",
	).Error; err != nil {
		return err
	}
	return db.Exec(
		"DELETE FROM page_tags WHERE rowid NOT IN (SELECT MIN(rowid) FROM page_tags GROUP BY page_id, tag_id);",
	).Error
}
