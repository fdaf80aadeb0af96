package services

import (
	"errors"
	"math/rand"
	"sync"
	"time"

	"human-or-ai-backend/models"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AuthPolicy decides whether lifecycle operations accept anonymous
// callers. A deployment picks exactly one policy at construction;
// there is no per-request switching.
type AuthPolicy string

const (
	AuthAnonymousAllowed AuthPolicy = "anonymous"
	AuthRequired         AuthPolicy = "required"
)

// SessionService owns the session/question/guess lifecycle. It holds no
// session state in process. Everything lives in the database, so any
// instance can serve any request.
type SessionService struct {
	DB     *gorm.DB
	Policy AuthPolicy

	randMu sync.Mutex
	rand   *rand.Rand // cut-point source for passage sampling
}

func NewSessionService(db *gorm.DB, policy AuthPolicy) *SessionService {
	if policy == "" {
		policy = AuthAnonymousAllowed
	}
	return &SessionService{
		DB:     db,
		Policy: policy,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *SessionService) cutPoint() float64 {
	s.randMu.Lock()
	defer s.randMu.Unlock()
	return s.rand.Float64()
}

// StartSession creates a fresh open session. An empty categoryFilter
// means no restriction.
func (s *SessionService) StartSession(userID *string, categoryFilter []int) (*models.GameSession, error) {
	if s.Policy == AuthRequired && userID == nil {
		return nil, unauthorizedErr("authentication required to start a session")
	}
	if categoryFilter == nil {
		categoryFilter = []int{}
	}

	sess := &models.GameSession{
		ID:             uuid.NewString(),
		UserID:         userID,
		Status:         models.SessionOpen,
		CategoryFilter: datatypes.NewJSONSlice(categoryFilter),
	}
	if err := s.DB.Create(sess).Error; err != nil {
		return nil, storeErr("failed to create session", err)
	}
	return sess, nil
}

// Question is what the player sees. It never carries the passage's
// source_type, which would leak the answer before the guess lands.
type Question struct {
	ID           int64             `json:"id"`
	Text         string            `json:"text"`
	CategoryName string            `json:"category_name"`
	CSSCategory  string            `json:"css_category"`
	ThemeTokens  datatypes.JSONMap `json:"theme_tokens"`
}

// NextQuestion picks one unseen passage for the session, or nil when
// the candidate set is exhausted (a valid empty result, not an error).
//
// Sampling draws a uniform cut point k and takes the passage with the
// smallest rand_key >= k, wrapping to the smallest key overall when k
// lands past the largest. Treating rand_key as a circular ordering
// keeps the draw unbiased without a full-table shuffle or random
// offset scan.
//
// Exclusion is session-scoped: a new session may replay passages the
// same user saw in earlier sessions.
func (s *SessionService) NextQuestion(sessionID string, userID *string) (*Question, error) {
	if sessionID == "" {
		return nil, validationErr("missing session_id")
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, validationErr("invalid session_id")
	}
	if s.Policy == AuthRequired && userID == nil {
		return nil, unauthorizedErr("authentication required")
	}

	var sess models.GameSession
	q := s.DB.Where("id = ? AND status = ?", sessionID, models.SessionOpen)
	if s.Policy == AuthRequired {
		q = q.Where("user_id = ?", *userID)
	}
	if err := q.First(&sess).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr("session not found")
		}
		return nil, storeErr("failed to load session", err)
	}

	var answered []int64
	if err := s.DB.Model(&models.Guess{}).
		Where("session_id = ?", sessionID).
		Pluck("passage_id", &answered).Error; err != nil {
		return nil, storeErr("failed to load answered passages", err)
	}

	// Always parameterized bindings: ids are untrusted input and never
	// interpolated into SQL text.
	eligible := func() *gorm.DB {
		q := s.DB.Model(&models.Passage{}).
			Select("passages.id, passages.text, categories.name AS category_name, categories.css_category, categories.theme_tokens").
			Joins("JOIN categories ON categories.id = passages.category_id")
		if len(sess.CategoryFilter) > 0 {
			q = q.Where("passages.category_id IN ?", []int(sess.CategoryFilter))
		}
		if len(answered) > 0 {
			q = q.Where("passages.id NOT IN ?", answered)
		}
		return q
	}

	k := s.cutPoint()

	var out Question
	res := eligible().
		Where("passages.rand_key >= ?", k).
		Order("passages.rand_key ASC").
		Limit(1).
		Scan(&out)
	if res.Error != nil {
		return nil, storeErr("passage selection failed", res.Error)
	}
	if res.RowsAffected == 0 {
		// Wrap around the circle.
		res = eligible().
			Where("passages.rand_key < ?", k).
			Order("passages.rand_key ASC").
			Limit(1).
			Scan(&out)
		if res.Error != nil {
			return nil, storeErr("passage selection failed", res.Error)
		}
	}
	if res.RowsAffected == 0 {
		return nil, nil // nothing eligible left
	}
	return &out, nil
}

// GuessResult is the reveal. Truth is only ever observable after the
// guess row is committed.
type GuessResult struct {
	Correct         bool   `json:"correct"`
	Truth           string `json:"truth"`
	Score           int    `json:"score"`
	Streak          int    `json:"streak"`
	AlreadyAnswered bool   `json:"already_answered,omitempty"`
}

// errDuplicateGuess aborts the transaction so the already-recorded
// outcome can be re-read on a clean connection.
var errDuplicateGuess = errors.New("guess already recorded")

// SubmitGuess scores one answer: append the guess, bump the session
// counters with atomic SQL increments, and upsert the user aggregate,
// all inside one transaction. A repeat submit for the same passage
// trips the unique index and resolves to the recorded outcome instead
// of double-counting.
func (s *SessionService) SubmitGuess(sessionID string, userID *string, passageID int64, guessSource string, timeMS int) (*GuessResult, error) {
	switch {
	case sessionID == "":
		return nil, validationErr("missing session_id")
	case passageID <= 0:
		return nil, validationErr("missing passage_id")
	case guessSource != models.SourceHuman && guessSource != models.SourceAI:
		return nil, validationErr("guess_source must be 'human' or 'ai'")
	case timeMS < 0:
		return nil, validationErr("time_ms must be >= 0")
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, validationErr("invalid session_id")
	}
	if s.Policy == AuthRequired && userID == nil {
		return nil, unauthorizedErr("authentication required")
	}

	var result *GuessResult
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var passage models.Passage
		if err := tx.Select("id, source_type").First(&passage, passageID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErr("passage not found")
			}
			return storeErr("failed to load passage", err)
		}

		var sess models.GameSession
		if err := tx.Where("id = ?", sessionID).First(&sess).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErr("session not found")
			}
			return storeErr("failed to load session", err)
		}
		if sess.Status != models.SessionOpen {
			return notFoundErr("session is not open")
		}
		// Owned sessions only accept guesses from their owner. Anonymous
		// sessions carry no identity to check against.
		if sess.UserID != nil && (userID == nil || *userID != *sess.UserID) {
			return unauthorizedErr("session belongs to another user")
		}

		correct := guessSource == passage.SourceType

		// Guesses on an anonymous session still credit the caller's
		// stats when an identity is present.
		statsOwner := userID
		if statsOwner == nil {
			statsOwner = sess.UserID
		}

		guess := models.Guess{
			SessionID:   sessionID,
			UserID:      statsOwner,
			PassageID:   passageID,
			GuessSource: guessSource,
			IsCorrect:   correct,
			TimeMS:      timeMS,
		}
		if err := tx.Create(&guess).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errDuplicateGuess
			}
			return storeErr("failed to record guess", err)
		}

		updates := map[string]interface{}{
			"questions_answered": gorm.Expr("questions_answered + 1"),
		}
		if correct {
			updates["score"] = gorm.Expr("score + 1")
			updates["streak"] = gorm.Expr("streak + 1")
		} else {
			updates["streak"] = 0
		}
		res := tx.Model(&models.GameSession{}).
			Where("id = ? AND status = ?", sessionID, models.SessionOpen).
			Updates(updates)
		if res.Error != nil {
			return storeErr("failed to update session counters", res.Error)
		}
		if res.RowsAffected == 0 {
			return notFoundErr("session is not open")
		}

		// The response must reflect post-update counters, never the
		// stale pre-update read.
		var after models.GameSession
		if err := tx.Select("score, streak").Where("id = ?", sessionID).First(&after).Error; err != nil {
			return storeErr("failed to re-read session", err)
		}

		if statsOwner != nil {
			if err := upsertUserStats(tx, *statsOwner, correct, after.Streak); err != nil {
				return err
			}
		}

		result = &GuessResult{
			Correct: correct,
			Truth:   passage.SourceType,
			Score:   after.Score,
			Streak:  after.Streak,
		}
		return nil
	})
	if errors.Is(err, errDuplicateGuess) {
		return s.recordedResult(sessionID, passageID)
	}
	if err != nil {
		return nil, asGameError(err, "guess transaction failed")
	}
	return result, nil
}

// upsertUserStats creates the aggregate row on a user's first guess and
// increments it thereafter. All arithmetic happens in SQL so two
// concurrent guesses never lose an increment to a read-modify-write
// race. The CASE keeps streak_best a monotone high-water mark.
func upsertUserStats(tx *gorm.DB, userID string, correct bool, streakNow int) error {
	now := time.Now()
	correctDelta := 0
	if correct {
		correctDelta = 1
	}
	stats := models.UserStats{
		UserID:         userID,
		TotalQuestions: 1,
		Correct:        correctDelta,
		StreakBest:     streakNow,
		LastPlayedAt:   &now,
	}
	err := tx.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"total_questions": gorm.Expr("user_stats.total_questions + 1"),
			"correct":         gorm.Expr("user_stats.correct + ?", correctDelta),
			"streak_best":     gorm.Expr("CASE WHEN user_stats.streak_best < ? THEN ? ELSE user_stats.streak_best END", streakNow, streakNow),
			"last_played_at":  now,
		}),
	}).Create(&stats).Error
	if err != nil {
		return storeErr("failed to upsert user stats", err)
	}
	return nil
}

// recordedResult serves the benign "already answered" path: the outcome
// that landed first, with the session's current counters.
func (s *SessionService) recordedResult(sessionID string, passageID int64) (*GuessResult, error) {
	var row struct {
		IsCorrect  bool
		SourceType string
		Score      int
		Streak     int
	}
	res := s.DB.Model(&models.Guess{}).
		Select("guesses.is_correct, passages.source_type, game_sessions.score, game_sessions.streak").
		Joins("JOIN passages ON passages.id = guesses.passage_id").
		Joins("JOIN game_sessions ON game_sessions.id = guesses.session_id").
		Where("guesses.session_id = ? AND guesses.passage_id = ?", sessionID, passageID).
		Scan(&row)
	if res.Error != nil {
		return nil, storeErr("failed to load recorded guess", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, notFoundErr("guess not found")
	}
	return &GuessResult{
		Correct:         row.IsCorrect,
		Truth:           row.SourceType,
		Score:           row.Score,
		Streak:          row.Streak,
		AlreadyAnswered: true,
	}, nil
}

// EndSession transitions open → closed, stamps ended_at, and bumps the
// owner's games_played once the session actually saw play. Ending an
// already-closed session is a no-op, not an error.
func (s *SessionService) EndSession(sessionID string, userID *string) (*models.GameSession, error) {
	if sessionID == "" {
		return nil, validationErr("missing session_id")
	}
	if _, err := uuid.Parse(sessionID); err != nil {
		return nil, validationErr("invalid session_id")
	}

	var out models.GameSession
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		var sess models.GameSession
		if err := tx.Where("id = ?", sessionID).First(&sess).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return notFoundErr("session not found")
			}
			return storeErr("failed to load session", err)
		}
		if sess.UserID != nil && (userID == nil || *userID != *sess.UserID) {
			return unauthorizedErr("session belongs to another user")
		}
		if sess.Status == models.SessionClosed {
			out = sess
			return nil
		}

		now := time.Now()
		res := tx.Model(&models.GameSession{}).
			Where("id = ? AND status = ?", sessionID, models.SessionOpen).
			Updates(map[string]interface{}{
				"status":   models.SessionClosed,
				"ended_at": now,
			})
		if res.Error != nil {
			return storeErr("failed to close session", res.Error)
		}

		// games_played only counts sessions with at least one answer.
		if res.RowsAffected > 0 && sess.UserID != nil && sess.QuestionsAnswered > 0 {
			if err := tx.Model(&models.UserStats{}).
				Where("user_id = ?", *sess.UserID).
				Update("games_played", gorm.Expr("games_played + 1")).Error; err != nil {
				return storeErr("failed to bump games_played", err)
			}
		}

		if err := tx.Where("id = ?", sessionID).First(&out).Error; err != nil {
			return storeErr("failed to re-read session", err)
		}
		return nil
	})
	if err != nil {
		return nil, asGameError(err, "end-session transaction failed")
	}
	return &out, nil
}

// CloseStaleSessions ends open sessions that started before the cutoff.
// Runs through the same EndSession path so games_played stays honest.
func (s *SessionService) CloseStaleSessions(maxAge time.Duration) (int, error) {
	cutoff := time.Now().Add(-maxAge)

	var stale []models.GameSession
	if err := s.DB.Where("status = ? AND started_at <= ?", models.SessionOpen, cutoff).
		Find(&stale).Error; err != nil {
		return 0, storeErr("failed to list stale sessions", err)
	}

	closed := 0
	for _, sess := range stale {
		if _, err := s.EndSession(sess.ID, sess.UserID); err != nil {
			return closed, err
		}
		closed++
	}
	return closed, nil
}
