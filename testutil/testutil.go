// Package testutil spins up isolated in-memory databases with the full
// schema so service and handler tests run without a Postgres instance.
package testutil

import (
	"fmt"
	"testing"

	"human-or-ai-backend/models"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// NewTestDB opens a fresh in-memory database and migrates the schema.
// Each call gets its own database so tests never share state.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	// Single connection keeps the shared-cache memory DB free of
	// cross-connection table locks.
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(
		&models.Category{},
		&models.Passage{},
		&models.GameSession{},
		&models.Guess{},
		&models.UserStats{},
		&models.SeedImport{},
	); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

// SeedCategories inserts a small fixed category set: 1 and 2 are
// human-leaning, 3 is AI-leaning.
func SeedCategories(t *testing.T, db *gorm.DB) {
	t.Helper()

	categories := []models.Category{
		{ID: 1, Name: "Classic Literature", Domain: models.DomainHuman},
		{ID: 2, Name: "Sci-Fi", Domain: models.DomainHuman},
		{ID: 3, Name: "AI: Expository – Corporate", Domain: models.DomainAI},
	}
	for _, c := range categories {
		if err := db.Create(&c).Error; err != nil {
			t.Fatalf("failed to seed category %q: %v", c.Name, err)
		}
	}
}

// SeedPassage inserts a passage with a fixed rand key so sampling tests
// control the circle layout exactly.
func SeedPassage(t *testing.T, db *gorm.DB, categoryID int, sourceType string, randKey float64) models.Passage {
	t.Helper()

	p := models.Passage{
		Text:       fmt.Sprintf("passage in category %d with key %.3f", categoryID, randKey),
		CategoryID: categoryID,
		SourceType: sourceType,
		RandKey:    randKey,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("failed to seed passage: %v", err)
	}
	return p
}
