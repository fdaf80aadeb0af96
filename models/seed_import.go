package models

import "time"

// SeedImport is the ledger of passage packs already loaded from the R2
// bucket so the import worker never ingests the same pack twice. A new
// ETag under a known key means the pack was re-uploaded and gets
// imported again.
type SeedImport struct {
	Key        string    `json:"key" gorm:"primaryKey"`
	ETag       string    `json:"etag"`
	Categories int       `json:"categories" gorm:"default:0"`
	Passages   int       `json:"passages" gorm:"default:0"`
	ImportedAt time.Time `json:"imported_at" gorm:"autoCreateTime"`
}
