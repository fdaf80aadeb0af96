package models

import (
	"time"

	"github.com/gosimple/slug"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	DomainHuman = "human"
	DomainAI    = "ai"
)

// Category groups passages by writing style (e.g. "Classic Literature",
// "AI: Expository – Corporate"). The frontend themes each question card
// from CSSCategory + ThemeTokens.
type Category struct {
	ID          int               `json:"id" gorm:"primaryKey"`
	Name        string            `json:"name" gorm:"uniqueIndex;not null"`
	Domain      string            `json:"domain"` // human or ai, which side the category leans
	CSSCategory string            `json:"css_category"`
	ThemeTokens datatypes.JSONMap `json:"theme_tokens"`
	Notes       string            `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// BeforeCreate derives the CSS class name from the display name unless
// the seed pack set one explicitly.
func (c *Category) BeforeCreate(tx *gorm.DB) error {
	if c.CSSCategory == "" {
		c.CSSCategory = slug.Make(c.Name)
	}
	return nil
}
