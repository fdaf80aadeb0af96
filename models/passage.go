package models

import (
	"math/rand"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SourceHuman = "human"
	SourceAI    = "ai"
)

// Passage is one text sample with a concealed ground-truth origin.
// SourceType is immutable after creation and must NEVER be serialized
// into a question payload: it is the answer.
type Passage struct {
	ID         int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Text       string `json:"text" gorm:"type:text;not null"`
	CategoryID int    `json:"category_id" gorm:"index;not null"`
	SourceType string `json:"source_type" gorm:"type:varchar(8);not null;check:source_type IN ('human','ai')"`

	ReadingLevel int                         `json:"reading_level" gorm:"default:0"`
	StyleTags    datatypes.JSONSlice[string] `json:"style_tags"`

	// 📚 Attribution (human passages)
	SourceTitle        string `json:"source_title,omitempty"`
	SourceAuthor       string `json:"source_author,omitempty"`
	SourceYear         *int   `json:"source_year,omitempty"`
	SourcePublicDomain bool   `json:"source_public_domain" gorm:"default:false"`
	SourceCitation     string `json:"source_citation,omitempty"`

	// 🤖 Provenance (AI passages)
	GeneratorModel  string `json:"generator_model,omitempty"`
	PromptSignature string `json:"prompt_signature,omitempty"`

	Verified bool `json:"verified" gorm:"default:false"`

	// RandKey is a uniform random value in [0,1) assigned once at insert
	// and never updated. It turns "pick a random unseen passage" into an
	// index walk instead of a full-table shuffle.
	RandKey float64 `json:"-" gorm:"index;not null"`

	Timestamps

	Category Category `json:"-" gorm:"foreignKey:CategoryID"`
}

func (p *Passage) BeforeCreate(tx *gorm.DB) error {
	if p.RandKey == 0 {
		p.RandKey = rand.Float64()
	}
	return nil
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}
