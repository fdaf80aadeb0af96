package services

import (
	"testing"
	"time"

	"human-or-ai-backend/models"
	"human-or-ai-backend/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedUserStats(t *testing.T, db *gorm.DB, userID string, total, correct, streakBest int) {
	t.Helper()
	now := time.Now()
	require.NoError(t, db.Create(&models.UserStats{
		UserID:         userID,
		GamesPlayed:    1,
		TotalQuestions: total,
		Correct:        correct,
		StreakBest:     streakBest,
		LastPlayedAt:   &now,
	}).Error)
}

func TestMeStats(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewStatsService(db)

	t.Run("never played", func(t *testing.T) {
		stats, err := svc.MeStats("ghost-user")
		require.NoError(t, err)
		assert.Equal(t, "ghost-user", stats.UserID)
		assert.Zero(t, stats.TotalQuestions)
		assert.Zero(t, stats.Correct)
		assert.Zero(t, stats.StreakBest)
		assert.Nil(t, stats.LastPlayedAt)
	})

	t.Run("existing row", func(t *testing.T) {
		seedUserStats(t, db, "player-1", 40, 31, 7)
		stats, err := svc.MeStats("player-1")
		require.NoError(t, err)
		assert.Equal(t, 40, stats.TotalQuestions)
		assert.Equal(t, 31, stats.Correct)
		assert.Equal(t, 7, stats.StreakBest)
		assert.NotNil(t, stats.LastPlayedAt)
	})
}

func TestSessionStats(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.SeedCategories(t, db)
	sessions := NewSessionService(db, AuthAnonymousAllowed)
	svc := NewStatsService(db)

	_, err := svc.SessionStats("")
	assert.Equal(t, ErrValidation, errKind(t, err))
	_, err = svc.SessionStats("garbage")
	assert.Equal(t, ErrValidation, errKind(t, err))

	t.Run("unknown session zeroes", func(t *testing.T) {
		totals, err := svc.SessionStats(uuid.NewString())
		require.NoError(t, err)
		assert.Zero(t, totals.TotalQuestions)
		assert.Zero(t, totals.Correct)
		assert.Zero(t, totals.StreakBest)
	})

	t.Run("live counters", func(t *testing.T) {
		human := testutil.SeedPassage(t, db, 1, models.SourceHuman, 0.2)
		ai := testutil.SeedPassage(t, db, 3, models.SourceAI, 0.6)

		sess, err := sessions.StartSession(nil, nil)
		require.NoError(t, err)
		_, err = sessions.SubmitGuess(sess.ID, nil, human.ID, models.SourceHuman, 0)
		require.NoError(t, err)
		_, err = sessions.SubmitGuess(sess.ID, nil, ai.ID, models.SourceHuman, 0)
		require.NoError(t, err)

		totals, err := svc.SessionStats(sess.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, totals.TotalQuestions)
		assert.Equal(t, 1, totals.Correct)
	})
}

func TestLeaderboard(t *testing.T) {
	db := testutil.NewTestDB(t)
	svc := NewStatsService(db)

	seedUserStats(t, db, "sharp", 40, 38, 12)     // 95%
	seedUserStats(t, db, "steady", 100, 80, 9)    // 80%
	seedUserStats(t, db, "casual", 10, 10, 10)    // perfect but under threshold
	seedUserStats(t, db, "grinder", 200, 160, 15) // 80%, more volume than steady

	entries, err := svc.Leaderboard(30, 50)
	require.NoError(t, err)
	require.Len(t, entries, 3, "under-threshold players must not rank")

	assert.Equal(t, "sharp", entries[0].UserID)
	assert.InDelta(t, 0.95, entries[0].Accuracy, 0.001)
	// Equal accuracy ties break on volume.
	assert.Equal(t, "grinder", entries[1].UserID)
	assert.Equal(t, "steady", entries[2].UserID)

	t.Run("limit applies", func(t *testing.T) {
		entries, err := svc.Leaderboard(30, 2)
		require.NoError(t, err)
		assert.Len(t, entries, 2)
	})

	t.Run("empty board is a list", func(t *testing.T) {
		entries, err := svc.Leaderboard(10000, 50)
		require.NoError(t, err)
		require.NotNil(t, entries)
		assert.Empty(t, entries)
	})
}

func TestSessionHistory(t *testing.T) {
	db := testutil.NewTestDB(t)
	testutil.SeedCategories(t, db)
	sessions := NewSessionService(db, AuthAnonymousAllowed)
	svc := NewStatsService(db)

	_, err := svc.SessionHistory("", 1, 20)
	assert.Equal(t, ErrUnauthorized, errKind(t, err))

	userID := uuid.NewString()
	human := testutil.SeedPassage(t, db, 1, models.SourceHuman, 0.2)
	ai := testutil.SeedPassage(t, db, 3, models.SourceAI, 0.6)

	// Three sessions: one played and closed, one played and open, one
	// never touched.
	played, err := sessions.StartSession(&userID, nil)
	require.NoError(t, err)
	_, err = sessions.SubmitGuess(played.ID, &userID, human.ID, models.SourceHuman, 1000)
	require.NoError(t, err)
	_, err = sessions.SubmitGuess(played.ID, &userID, ai.ID, models.SourceHuman, 3000)
	require.NoError(t, err)
	_, err = sessions.EndSession(played.ID, &userID)
	require.NoError(t, err)

	open, err := sessions.StartSession(&userID, []int{1})
	require.NoError(t, err)
	_, err = sessions.SubmitGuess(open.ID, &userID, human.ID, models.SourceHuman, 500)
	require.NoError(t, err)

	_, err = sessions.StartSession(&userID, nil)
	require.NoError(t, err)

	// Someone else's session never leaks in.
	other := uuid.NewString()
	_, err = sessions.StartSession(&other, nil)
	require.NoError(t, err)

	out, err := svc.SessionHistory(userID, 1, 20)
	require.NoError(t, err)
	assert.Equal(t, int64(3), out["total_items"])
	assert.Equal(t, 1, out["total_pages"])

	items := out["sessions"].([]SessionSummary)
	require.Len(t, items, 3)

	byID := map[string]SessionSummary{}
	for _, it := range items {
		byID[it.ID] = it
	}

	closedRow := byID[played.ID]
	assert.Equal(t, models.SessionClosed, closedRow.Status)
	assert.Equal(t, 2, closedRow.QuestionsAnswered)
	assert.Equal(t, 1, closedRow.Score)
	require.NotNil(t, closedRow.Accuracy)
	assert.InDelta(t, 0.5, *closedRow.Accuracy, 0.001)
	require.NotNil(t, closedRow.DurationSeconds)
	assert.InDelta(t, 2000, closedRow.AvgResponseMS, 0.001)
	assert.NotNil(t, closedRow.EndedAt)

	openRow := byID[open.ID]
	assert.Equal(t, models.SessionOpen, openRow.Status)
	assert.Equal(t, []int{1}, openRow.CategoryFilter)
	assert.Nil(t, openRow.EndedAt)
	assert.Nil(t, openRow.DurationSeconds)
	assert.InDelta(t, 500, openRow.AvgResponseMS, 0.001)

	t.Run("pagination", func(t *testing.T) {
		out, err := svc.SessionHistory(userID, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, int64(3), out["total_items"])
		assert.Equal(t, 2, out["total_pages"])
		assert.Len(t, out["sessions"].([]SessionSummary), 2)

		out, err = svc.SessionHistory(userID, 2, 2)
		require.NoError(t, err)
		assert.Len(t, out["sessions"].([]SessionSummary), 1)
	})
}
