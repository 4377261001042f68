package gorm

import (
	"github.com/go-gormigrate/gormigrate/v2"
	"gorm.io/gorm"
)

// runMigrations runs all database migrations using gormigrate.
func runMigrations(db *gorm.DB) error {
	m := gormigrate.New(db, gormigrate.DefaultOptions, []*gormigrate.Migration{
		// Migration 001: Core tables
		{
			ID: "001_core_tables",
			Migrate: func(tx *gorm.DB) error {
				if err := tx.AutoMigrate(&Interaction{}); err != nil {
					return err
				}
				if err := tx.AutoMigrate(&SessionSnapshot{}); err != nil {
					return err
				}
				return tx.AutoMigrate(&ContentOrder{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("interactions", "session_snapshots", "content_orders")
			},
		},

		// Migration 002: Personalization strengths
		{
			ID: "002_personalization_strengths",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&PersonalizationStrength{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("personalization_strengths")
			},
		},

		// Migration 003: Content catalog
		{
			ID: "003_content_items",
			Migrate: func(tx *gorm.DB) error {
				return tx.AutoMigrate(&ContentItem{})
			},
			Rollback: func(tx *gorm.DB) error {
				return tx.Migrator().DropTable("content_items")
			},
		},
	})

	return m.Migrate()
}
