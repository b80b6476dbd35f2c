package tracker

import (
	"testing"
	"time"

	"github.com/local/studyhub/api/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))
	return db
}

func seedChapter(t *testing.T, db *gorm.DB, chapterID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Chapter{
		ChapterID:     chapterID,
		CourseID:      "course1",
		ChapterNumber: len(chapterID), // unique enough per test
		Title:         "Chapter " + chapterID,
	}).Error)
}

func seedQuiz(t *testing.T, db *gorm.DB, quizID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Quiz{
		QuizID:        quizID,
		ChapterID:     "ch1",
		QuestionText:  "2+2?",
		QuestionType:  "multiple_choice",
		Options:       `["3","4"]`,
		CorrectAnswer: "4",
	}).Error)
}

func TestStartSessionAndGet(t *testing.T) {
	tr := New(newTestDB(t))

	id, err := tr.StartSession("u1", "mobile")
	require.NoError(t, err)
	require.NotEmpty(t, id)

	session, err := tr.GetSession(id)
	require.NoError(t, err)
	assert.Equal(t, "u1", session.UserID)
	assert.Equal(t, "mobile", session.DeviceType)
	assert.False(t, session.StartedAt.IsZero())
	assert.False(t, session.LastActive.Before(session.StartedAt))
}

func TestTouchUnknownSession(t *testing.T) {
	tr := New(newTestDB(t))

	err := tr.Touch("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = tr.GetSession("nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestTouchUpdatesLastActive(t *testing.T) {
	tr := New(newTestDB(t))

	id, err := tr.StartSession("u1", "web")
	require.NoError(t, err)

	before, err := tr.GetSession(id)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, tr.Touch(id))

	after, err := tr.GetSession(id)
	require.NoError(t, err)
	assert.True(t, after.LastActive.After(before.LastActive))
}

func TestRecordProgressValidation(t *testing.T) {
	db := newTestDB(t)
	tr := New(db)
	seedChapter(t, db, "ch1")

	id, err := tr.StartSession("u1", "mobile")
	require.NoError(t, err)

	bad := 150.0
	tests := []struct {
		name       string
		completion float64
		audioPos   int
		quizScore  *float64
	}{
		{"completion above 100", 150, 0, nil},
		{"completion below 0", -1, 0, nil},
		{"negative audio position", 50, -5, nil},
		{"quiz score out of range", 50, 0, &bad},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tr.RecordProgress(id, "ch1", tt.completion, tt.audioPos, tt.quizScore)
			assert.ErrorIs(t, err, ErrInvalidProgressValue)
		})
	}

	// Boundary values are accepted and retrievable unchanged.
	require.NoError(t, tr.RecordProgress(id, "ch1", 100, 0, nil))
	history, err := tr.ProgressHistory(id)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 100.0, history[0].CompletionPercentage)
}

func TestRecordProgressRequiresParents(t *testing.T) {
	db := newTestDB(t)
	tr := New(db)
	seedChapter(t, db, "ch1")

	err := tr.RecordProgress("ghost", "ch1", 50, 0, nil)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	id, err := tr.StartSession("u1", "mobile")
	require.NoError(t, err)

	err = tr.RecordProgress(id, "missing-chapter", 50, 0, nil)
	assert.ErrorIs(t, err, ErrReferentialIntegrity)
}

func TestProgressHistoryIsAppendOnly(t *testing.T) {
	db := newTestDB(t)
	tr := New(db)
	seedChapter(t, db, "ch1")

	id, err := tr.StartSession("u1", "mobile")
	require.NoError(t, err)

	require.NoError(t, tr.RecordProgress(id, "ch1", 50, 120, nil))
	require.NoError(t, tr.RecordProgress(id, "ch1", 75, 180, nil))

	history, err := tr.ProgressHistory(id)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 50.0, history[0].CompletionPercentage)
	assert.Equal(t, 75.0, history[1].CompletionPercentage)
	assert.False(t, history[1].UpdatedAt.Before(history[0].UpdatedAt))

	summary, err := tr.SessionSummary(id)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.ChaptersTouched)
	assert.InDelta(t, 62.5, summary.AvgCompletion, 1e-9)
}

func TestSessionSummaryListeningTime(t *testing.T) {
	db := newTestDB(t)
	tr := New(db)
	seedChapter(t, db, "ch1")
	seedChapter(t, db, "ch02")

	id, err := tr.StartSession("u1", "mobile")
	require.NoError(t, err)

	// Replaying a chapter reports overlapping positions; only the furthest
	// point per chapter counts toward listening time.
	require.NoError(t, tr.RecordProgress(id, "ch1", 50, 120, nil))
	require.NoError(t, tr.RecordProgress(id, "ch1", 75, 180, nil))
	require.NoError(t, tr.RecordProgress(id, "ch1", 80, 90, nil))
	require.NoError(t, tr.RecordProgress(id, "ch02", 10, 60, nil))

	summary, err := tr.SessionSummary(id)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.ChaptersTouched)
	assert.Equal(t, 240, summary.TotalListeningSeconds)
}

func TestSessionSummaryUnknownSession(t *testing.T) {
	tr := New(newTestDB(t))
	_, err := tr.SessionSummary("ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestRecordQuizResponse(t *testing.T) {
	db := newTestDB(t)
	tr := New(db)
	seedChapter(t, db, "ch1")
	seedQuiz(t, db, "q1")

	id, err := tr.StartSession("u1", "mobile")
	require.NoError(t, err)

	_, err = tr.RecordQuizResponse(id, "q1", "4", true, -1)
	assert.ErrorIs(t, err, ErrInvalidProgressValue)

	_, err = tr.RecordQuizResponse(id, "missing", "4", true, 2)
	assert.ErrorIs(t, err, ErrReferentialIntegrity)

	_, err = tr.RecordQuizResponse("ghost", "q1", "4", true, 2)
	assert.ErrorIs(t, err, ErrSessionNotFound)

	// Two answers to the same quiz are two rows, in submission order.
	first, err := tr.RecordQuizResponse(id, "q1", "3", false, 4.5)
	require.NoError(t, err)
	second, err := tr.RecordQuizResponse(id, "q1", "4", true, 2.0)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	responses, err := tr.ResponsesForSession(id)
	require.NoError(t, err)
	require.Len(t, responses, 2)
	assert.Equal(t, "3", responses[0].UserAnswer)
	assert.Equal(t, "4", responses[1].UserAnswer)

	summary, err := tr.SessionSummary(id)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.QuizAnswers)
	assert.Equal(t, 1, summary.QuizCorrect)
}

func TestLibrarySummary(t *testing.T) {
	db := newTestDB(t)
	tr := New(db)

	docs := []struct {
		id, level, category string
		pages, minutes      int
	}{
		{"d1", "M1", "statistics", 10, 20},
		{"d2", "M1", "statistics", 30, 40},
		{"d3", "M2", "databases", 5, 15},
	}
	for _, d := range docs {
		require.NoError(t, db.Create(&models.Document{
			DocID: d.id, FilePath: d.id + ".pdf", Level: d.level,
			Category: d.category, PageCount: d.pages,
		}).Error)
		require.NoError(t, db.Create(&models.DocumentMetadata{
			DocID: d.id, EstimatedMinutes: d.minutes,
		}).Error)
	}

	stats, err := tr.LibrarySummary()
	require.NoError(t, err)
	require.Len(t, stats, 2)

	assert.Equal(t, "M1", stats[0].Level)
	assert.Equal(t, "statistics", stats[0].Category)
	assert.Equal(t, 2, stats[0].DocumentCount)
	assert.Equal(t, 40, stats[0].TotalPages)
	assert.InDelta(t, 30.0, stats[0].AvgEstimatedMins, 1e-9)

	assert.Equal(t, "M2", stats[1].Level)
	assert.Equal(t, 1, stats[1].DocumentCount)
}

func TestActiveSessions(t *testing.T) {
	db := newTestDB(t)
	tr := New(db)

	id, err := tr.StartSession("u1", "mobile")
	require.NoError(t, err)

	// Backdate a second session past the window.
	stale := &models.UserSession{
		SessionID: "stale", UserID: "u2", DeviceType: "web",
		StartedAt:  time.Now().Add(-2 * time.Hour),
		LastActive: time.Now().Add(-2 * time.Hour),
	}
	require.NoError(t, db.Create(stale).Error)

	active, err := tr.ActiveSessions(time.Hour)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, id, active[0].SessionID)
}
