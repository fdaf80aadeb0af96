package services

import (
	"errors"
	"time"

	"human-or-ai-backend/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// StatsService is the reporting side: it reads the same tables as the
// lifecycle but performs no mutation.
type StatsService struct {
	DB *gorm.DB
}

func NewStatsService(db *gorm.DB) *StatsService {
	return &StatsService{DB: db}
}

// MeStats returns the caller's lifetime aggregate, zeroed when they
// have never played.
func (s *StatsService) MeStats(userID string) (*models.UserStats, error) {
	var stats models.UserStats
	err := s.DB.Where("user_id = ?", userID).First(&stats).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.UserStats{UserID: userID}, nil
	}
	if err != nil {
		return nil, storeErr("failed to load user stats", err)
	}
	return &stats, nil
}

// SessionTotals mirrors the frontend's running-score widget.
type SessionTotals struct {
	TotalQuestions int `json:"total_questions"`
	Correct        int `json:"correct"`
	StreakBest     int `json:"streak_best"`
}

// SessionStats reads one session's counters. An unknown session yields
// zeroed totals; the widget renders the same either way.
func (s *StatsService) SessionStats(sessionID string) (*SessionTotals, error) {
	if sessionID == "" {
		return nil, validationErr("missing session_id")
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, validationErr("invalid session_id")
	}

	var totals SessionTotals
	res := s.DB.Model(&models.GameSession{}).
		Select("questions_answered AS total_questions, score AS correct, streak AS streak_best").
		Where("id = ?", sessionID).
		Scan(&totals)
	if res.Error != nil {
		return nil, storeErr("failed to load session stats", res.Error)
	}
	return &totals, nil
}

// LeaderboardEntry ranks players by accuracy among those with enough
// answered questions to mean something.
type LeaderboardEntry struct {
	UserID         string     `json:"user_id"`
	TotalQuestions int        `json:"total_questions"`
	Correct        int        `json:"correct"`
	Accuracy       float64    `json:"accuracy"`
	StreakBest     int        `json:"streak_best"`
	LastPlayedAt   *time.Time `json:"last_played_at"`
}

func (s *StatsService) Leaderboard(minQuestions, limit int) ([]LeaderboardEntry, error) {
	if minQuestions < 1 {
		minQuestions = 30
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var entries []LeaderboardEntry
	err := s.DB.Raw(`
		SELECT user_id, total_questions, correct,
		       CASE WHEN total_questions > 0 THEN correct * 1.0 / total_questions ELSE 0 END AS accuracy,
		       streak_best, last_played_at
		FROM user_stats
		WHERE total_questions >= ?
		ORDER BY accuracy DESC, total_questions DESC
		LIMIT ?
	`, minQuestions, limit).Scan(&entries).Error
	if err != nil {
		return nil, storeErr("failed to load leaderboard", err)
	}
	if entries == nil {
		entries = []LeaderboardEntry{}
	}
	return entries, nil
}

// SessionSummary is one row of a user's play history.
type SessionSummary struct {
	ID                string     `json:"id"`
	Status            string     `json:"status"`
	Score             int        `json:"score"`
	Streak            int        `json:"streak"`
	QuestionsAnswered int        `json:"questions_answered"`
	CategoryFilter    []int      `json:"category_filter"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	Accuracy          *float64   `json:"accuracy,omitempty"`
	DurationSeconds   *int       `json:"duration_seconds,omitempty"`
	AvgResponseMS     float64    `json:"avg_response_ms"`
}

// SessionHistory returns a user's sessions, newest first, paginated.
func (s *StatsService) SessionHistory(userID string, page, size int) (map[string]interface{}, error) {
	if userID == "" {
		return nil, unauthorizedErr("session history requires an identity")
	}
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	var total int64
	if err := s.DB.Model(&models.GameSession{}).
		Where("user_id = ?", userID).
		Count(&total).Error; err != nil {
		return nil, storeErr("failed to count sessions", err)
	}

	var sessions []models.GameSession
	if err := s.DB.Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(size).Offset(offset).
		Find(&sessions).Error; err != nil {
		return nil, storeErr("failed to load sessions", err)
	}

	// One grouped pass over the page's guesses for timing aggregates.
	avgByID := map[string]float64{}
	if len(sessions) > 0 {
		ids := make([]string, len(sessions))
		for i, sess := range sessions {
			ids[i] = sess.ID
		}
		var rows []struct {
			SessionID string
			AvgMS     float64
		}
		if err := s.DB.Model(&models.Guess{}).
			Select("session_id, AVG(time_ms) AS avg_ms").
			Where("session_id IN ?", ids).
			Group("session_id").
			Scan(&rows).Error; err != nil {
			return nil, storeErr("failed to aggregate guess timings", err)
		}
		for _, r := range rows {
			avgByID[r.SessionID] = r.AvgMS
		}
	}

	items := make([]SessionSummary, 0, len(sessions))
	for _, sess := range sessions {
		item := SessionSummary{
			ID:                sess.ID,
			Status:            sess.Status,
			Score:             sess.Score,
			Streak:            sess.Streak,
			QuestionsAnswered: sess.QuestionsAnswered,
			CategoryFilter:    []int(sess.CategoryFilter),
			StartedAt:         sess.StartedAt,
			EndedAt:           sess.EndedAt,
			AvgResponseMS:     avgByID[sess.ID],
		}
		if sess.QuestionsAnswered > 0 {
			acc := float64(sess.Score) / float64(sess.QuestionsAnswered)
			item.Accuracy = &acc
		}
		if sess.EndedAt != nil {
			dur := int(sess.EndedAt.Sub(sess.StartedAt).Seconds())
			item.DurationSeconds = &dur
		}
		items = append(items, item)
	}

	totalPages := int((total + int64(size) - 1) / int64(size))
	return map[string]interface{}{
		"sessions":    items,
		"page":        page,
		"size":        size,
		"total_items": total,
		"total_pages": totalPages,
	}, nil
}
