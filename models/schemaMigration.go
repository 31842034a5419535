package models

import (
	"embed"
	"sort"
	"strings"
	"time"

	"gorm.io/gorm"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// SchemaMigration is the ledger of applied SQL migrations, keyed by filename.
type SchemaMigration struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Filename  string    `gorm:"size:255;not null;uniqueIndex" json:"filename"`
	AppliedAt time.Time `gorm:"autoCreateTime" json:"applied_at"`
}

// ApplySQLMigrations applies the embedded migrations/*.sql files in lexical
// order, each inside its own transaction, recording every applied filename in
// the schema_migrations ledger. Already-recorded filenames are skipped, so the
// call is safe to repeat on every startup.
func ApplySQLMigrations(db *gorm.DB) error {
	entries, err := migrationFiles.ReadDir("migrations")
	if err != nil {
		return err
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	for _, name := range names {
		var count int64
		if err := db.Model(&SchemaMigration{}).Where("filename = ?", name).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}

		raw, err := migrationFiles.ReadFile("migrations/" + name)
		if err != nil {
			return err
		}

		err = db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Exec(string(raw)).Error; err != nil {
				return err
			}
			return tx.Create(&SchemaMigration{Filename: name}).Error
		})
		if err != nil {
			return err
		}
	}
	return nil
}
