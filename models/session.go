package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	SessionOpen   = "open"
	SessionClosed = "closed"
)

// GameSession is one continuous play attempt. Counters are only ever
// moved by atomic SQL increments inside the guess transaction, never
// read-modify-write in application code.
type GameSession struct {
	ID     string  `json:"id" gorm:"primaryKey;type:uuid"`
	UserID *string `json:"user_id,omitempty" gorm:"type:uuid;index"` // nil = anonymous play
	Status string  `json:"status" gorm:"type:varchar(8);default:'open';check:status IN ('open','closed')"`

	Score             int `json:"score" gorm:"default:0"`
	Streak            int `json:"streak" gorm:"default:0"`
	QuestionsAnswered int `json:"questions_answered" gorm:"default:0"`

	// Empty filter = all categories eligible.
	CategoryFilter datatypes.JSONSlice[int] `json:"category_filter"`

	StartedAt time.Time  `json:"started_at" gorm:"autoCreateTime"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}
