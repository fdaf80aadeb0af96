package models

import "time"

// UserStats is the one-row-per-user aggregate, maintained incrementally
// on every guess rather than recomputed. StreakBest is a high-water
// mark across all of a user's sessions and never decreases.
type UserStats struct {
	UserID         string     `json:"user_id" gorm:"primaryKey;type:uuid"`
	GamesPlayed    int        `json:"games_played" gorm:"default:0"` // bumped when a played session closes
	TotalQuestions int        `json:"total_questions" gorm:"default:0"`
	Correct        int        `json:"correct" gorm:"default:0"`
	StreakBest     int        `json:"streak_best" gorm:"default:0"`
	LastPlayedAt   *time.Time `json:"last_played_at,omitempty"`
}

func (UserStats) TableName() string { return "user_stats" }
