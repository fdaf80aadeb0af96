package models

import "time"

// Guess is the append-only record of one answer. IsCorrect is derived
// once at write time and never recomputed. The (session_id, passage_id)
// unique index makes a double submit a benign "already answered" signal
// instead of a double-counted score.
type Guess struct {
	ID          int64   `json:"id" gorm:"primaryKey;autoIncrement"`
	SessionID   string  `json:"session_id" gorm:"type:uuid;not null;uniqueIndex:idx_guess_once,priority:1"`
	UserID      *string `json:"user_id,omitempty" gorm:"type:uuid;index"`
	PassageID   int64   `json:"passage_id" gorm:"not null;uniqueIndex:idx_guess_once,priority:2"`
	GuessSource string  `json:"guess_source" gorm:"type:varchar(8);not null;check:guess_source IN ('human','ai')"`
	IsCorrect   bool    `json:"is_correct"`
	TimeMS      int     `json:"time_ms" gorm:"column:time_ms;default:0;check:time_ms >= 0"`

	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}
