package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"human-or-ai-backend/models"
	"human-or-ai-backend/utils"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PackSource abstracts where seed packs come from (R2 in production,
// a stub in tests).
type PackSource interface {
	List(ctx context.Context, prefix string) ([]utils.SeedPackInfo, error)
	Fetch(ctx context.Context, key string) ([]byte, error)
}

// SeedImporter ingests passage packs (JSON files with optional
// categories plus a batch of passages) and records each processed
// pack in the seed_imports ledger so content teams can drop a file in
// the bucket and have it picked up exactly once.
type SeedImporter struct {
	DB     *gorm.DB
	Source PackSource
	Prefix string
}

func NewSeedImporter(db *gorm.DB, source PackSource) *SeedImporter {
	prefix := os.Getenv("SEED_PACK_PREFIX")
	if prefix == "" {
		prefix = "seed-packs/"
	}
	return &SeedImporter{DB: db, Source: source, Prefix: prefix}
}

// SeedPack is the on-disk pack format.
type SeedPack struct {
	Categories []SeedCategory `json:"categories"`
	Passages   []SeedPassage  `json:"passages"`
}

type SeedCategory struct {
	ID          int                    `json:"id"`
	Name        string                 `json:"name"`
	Domain      string                 `json:"domain"`
	CSSCategory string                 `json:"css_category"`
	ThemeTokens map[string]interface{} `json:"theme_tokens"`
	Notes       string                 `json:"notes"`
}

type SeedPassage struct {
	Text               string   `json:"text"`
	CategoryID         int      `json:"category_id"`
	SourceType         string   `json:"source_type"`
	ReadingLevel       int      `json:"reading_level"`
	StyleTags          []string `json:"style_tags"`
	SourceTitle        string   `json:"source_title"`
	SourceAuthor       string   `json:"source_author"`
	SourceYear         *int     `json:"source_year"`
	SourcePublicDomain bool     `json:"source_public_domain"`
	SourceCitation     string   `json:"source_citation"`
	GeneratorModel     string   `json:"generator_model"`
	PromptSignature    string   `json:"prompt_signature"`
	Verified           bool     `json:"verified"`
}

// PollSeedPacks runs the importer on an interval until ctx is done.
func PollSeedPacks(ctx context.Context, imp *SeedImporter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// One pass at startup so a freshly deployed instance seeds
	// immediately instead of waiting a full interval.
	if err := imp.ImportNew(ctx); err != nil {
		log.Printf("[SeedImport] initial pass failed: %v", err)
	}

	for {
		select {
		case <-ctx.Done():
			log.Println("[SeedImport] stopping")
			return
		case <-ticker.C:
			if err := imp.ImportNew(ctx); err != nil {
				log.Printf("[SeedImport] pass failed: %v", err)
			}
		}
	}
}

// ImportNew lists the bucket and ingests every pack not yet in the
// ledger (or re-uploaded under a new ETag).
func (imp *SeedImporter) ImportNew(ctx context.Context) error {
	var packs []utils.SeedPackInfo
	err := utils.Retry(3, 500*time.Millisecond, func() error {
		var listErr error
		packs, listErr = imp.Source.List(ctx, imp.Prefix)
		return listErr
	})
	if err != nil {
		return fmt.Errorf("list seed packs: %w", err)
	}

	for _, info := range packs {
		var ledger models.SeedImport
		err := imp.DB.Where("key = ?", info.Key).First(&ledger).Error
		if err == nil && ledger.ETag == info.ETag {
			continue // already imported
		}
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("read import ledger: %w", err)
		}

		if err := imp.importPack(ctx, info); err != nil {
			log.Printf("❌ [SeedImport] pack %s failed: %v", info.Key, err)
			continue // a bad pack must not block the rest
		}
	}
	return nil
}

func (imp *SeedImporter) importPack(ctx context.Context, info utils.SeedPackInfo) error {
	var data []byte
	err := utils.Retry(3, 500*time.Millisecond, func() error {
		var fetchErr error
		data, fetchErr = imp.Source.Fetch(ctx, info.Key)
		return fetchErr
	})
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}

	var pack SeedPack
	if err := json.Unmarshal(data, &pack); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	for i, p := range pack.Passages {
		if p.SourceType != models.SourceHuman && p.SourceType != models.SourceAI {
			return fmt.Errorf("passage %d: bad source_type %q", i, p.SourceType)
		}
		if p.Text == "" {
			return fmt.Errorf("passage %d: empty text", i)
		}
	}

	err = imp.DB.Transaction(func(tx *gorm.DB) error {
		for _, c := range pack.Categories {
			cat := models.Category{
				ID:          c.ID,
				Name:        c.Name,
				Domain:      c.Domain,
				CSSCategory: c.CSSCategory,
				ThemeTokens: datatypes.JSONMap(c.ThemeTokens),
				Notes:       c.Notes,
			}
			// Re-running a pack with a known category is not an error.
			if err := tx.FirstOrCreate(&cat, models.Category{ID: c.ID}).Error; err != nil {
				return err
			}
		}

		for _, p := range pack.Passages {
			passage := models.Passage{
				Text:               p.Text,
				CategoryID:         p.CategoryID,
				SourceType:         p.SourceType,
				ReadingLevel:       p.ReadingLevel,
				StyleTags:          datatypes.NewJSONSlice(p.StyleTags),
				SourceTitle:        p.SourceTitle,
				SourceAuthor:       p.SourceAuthor,
				SourceYear:         p.SourceYear,
				SourcePublicDomain: p.SourcePublicDomain,
				SourceCitation:     p.SourceCitation,
				GeneratorModel:     p.GeneratorModel,
				PromptSignature:    p.PromptSignature,
				Verified:           p.Verified,
				// RandKey assigned by the model hook at insert
			}
			if err := tx.Create(&passage).Error; err != nil {
				return err
			}
		}

		ledger := models.SeedImport{
			Key:        info.Key,
			ETag:       info.ETag,
			Categories: len(pack.Categories),
			Passages:   len(pack.Passages),
		}
		return tx.Save(&ledger).Error
	})
	if err != nil {
		return fmt.Errorf("insert: %w", err)
	}

	log.Printf("🌱 [SeedImport] imported %s (%d categories, %d passages)",
		info.Key, len(pack.Categories), len(pack.Passages))
	return nil
}
