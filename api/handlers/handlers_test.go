package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/local/studyhub/api/models"
	"github.com/local/studyhub/api/relay"
	"github.com/local/studyhub/api/retrieval"
	"github.com/local/studyhub/api/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestHandler(t *testing.T) (*Handler, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, models.AutoMigrate(db))

	h := &Handler{
		db:       db,
		searcher: retrieval.New(db, nil),
		tracker:  tracker.New(db),
		hub:      relay.NewHub(),
	}
	return h, db
}

func newTestRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.POST("/api/courses/search", h.SearchCourses)
	r.POST("/api/progress", h.RecordProgress)
	r.POST("/api/quiz/answer", h.AnswerQuiz)
	r.POST("/api/sync/control", h.AudioControl)
	r.GET("/api/stats/session/:sessionId", h.SessionStats)
	r.POST("/mobile/create-session", h.CreateSession)
	r.POST("/mobile/sync-position", h.SyncPosition)
	r.GET("/mobile/session/:sessionId", h.GetSessionState)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestSearchEndpointStatuses(t *testing.T) {
	h, db := newTestHandler(t)
	r := newTestRouter(h)

	require.NoError(t, db.Create(&models.Document{
		DocID: "d1", FilePath: "d1.pdf", Level: "M1", Category: "statistics",
		ExtractedTitle: "Stats 101",
	}).Error)
	require.NoError(t, db.Create(&models.DocumentChunk{
		ChunkID: "d1_chunk_0", DocID: "d1", ChunkIndex: 0,
		Content: "variance and standard deviation", PageNumber: 1,
	}).Error)

	// Missing query fails binding.
	w := doJSON(t, r, http.MethodPost, "/api/courses/search", gin.H{"level": "M1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Whitespace query passes binding but fails validation.
	w = doJSON(t, r, http.MethodPost, "/api/courses/search", gin.H{"query": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Filter that matches no indexed document.
	w = doJSON(t, r, http.MethodPost, "/api/courses/search", gin.H{"query": "variance", "level": "M3"})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/courses/search", gin.H{"query": "variance", "level": "M1"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, float64(1), body["count"])
}

func TestSessionLifecycleOverHTTP(t *testing.T) {
	h, db := newTestHandler(t)
	r := newTestRouter(h)

	require.NoError(t, db.Create(&models.Chapter{
		ChapterID: "ch1", CourseID: "c1", ChapterNumber: 1, Title: "Intro",
	}).Error)

	w := doJSON(t, r, http.MethodPost, "/mobile/create-session", gin.H{
		"user_id": "u1", "device_type": "mobile",
	})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID, _ := decode(t, w)["session_id"].(string)
	require.NotEmpty(t, sessionID)

	w = doJSON(t, r, http.MethodPost, "/api/progress", gin.H{
		"session_id": sessionID, "chapter_id": "ch1",
		"completion_percentage": 50, "audio_position_seconds": 120,
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = doJSON(t, r, http.MethodGet, "/mobile/session/"+sessionID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	state := decode(t, w)
	summary, _ := state["summary"].(map[string]any)
	require.NotNil(t, summary)
	assert.Equal(t, float64(1), summary["chapters_touched"])

	w = doJSON(t, r, http.MethodGet, "/api/stats/session/"+sessionID, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestProgressErrorMapping(t *testing.T) {
	h, db := newTestHandler(t)
	r := newTestRouter(h)

	require.NoError(t, db.Create(&models.Chapter{
		ChapterID: "ch1", CourseID: "c1", ChapterNumber: 1, Title: "Intro",
	}).Error)

	w := doJSON(t, r, http.MethodPost, "/mobile/create-session", gin.H{
		"user_id": "u1", "device_type": "web",
	})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID, _ := decode(t, w)["session_id"].(string)

	// Unknown session.
	w = doJSON(t, r, http.MethodPost, "/api/progress", gin.H{
		"session_id": "ghost", "chapter_id": "ch1", "completion_percentage": 10,
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Unknown chapter.
	w = doJSON(t, r, http.MethodPost, "/api/progress", gin.H{
		"session_id": sessionID, "chapter_id": "nope", "completion_percentage": 10,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Out-of-range completion.
	w = doJSON(t, r, http.MethodPost, "/api/progress", gin.H{
		"session_id": sessionID, "chapter_id": "ch1", "completion_percentage": 150,
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAnswerQuizOverHTTP(t *testing.T) {
	h, db := newTestHandler(t)
	r := newTestRouter(h)

	require.NoError(t, db.Create(&models.Chapter{
		ChapterID: "ch1", CourseID: "c1", ChapterNumber: 1, Title: "Intro",
	}).Error)
	require.NoError(t, db.Create(&models.Quiz{
		QuizID: "q1", ChapterID: "ch1", QuestionText: "2+2?",
		QuestionType: "multiple_choice", Options: `["3","4"]`,
		CorrectAnswer: "4", Explanation: "basic arithmetic",
	}).Error)

	w := doJSON(t, r, http.MethodPost, "/mobile/create-session", gin.H{
		"user_id": "u1", "device_type": "mobile",
	})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID, _ := decode(t, w)["session_id"].(string)

	w = doJSON(t, r, http.MethodPost, "/api/quiz/answer", gin.H{
		"session_id": sessionID, "quiz_id": "missing", "answer": "4",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = doJSON(t, r, http.MethodPost, "/api/quiz/answer", gin.H{
		"session_id": sessionID, "quiz_id": "q1", "answer": "4",
		"response_time_seconds": 2.5,
	})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, true, body["is_correct"])
	assert.Equal(t, "basic arithmetic", body["explanation"])

	w = doJSON(t, r, http.MethodPost, "/api/quiz/answer", gin.H{
		"session_id": sessionID, "quiz_id": "q1", "answer": "3",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["is_correct"])
}

func TestAudioControlAndSyncPosition(t *testing.T) {
	h, _ := newTestHandler(t)
	r := newTestRouter(h)

	w := doJSON(t, r, http.MethodPost, "/mobile/create-session", gin.H{
		"user_id": "u1", "device_type": "mobile",
	})
	require.Equal(t, http.StatusOK, w.Code)
	sessionID, _ := decode(t, w)["session_id"].(string)

	// Invalid action is rejected by binding.
	w = doJSON(t, r, http.MethodPost, "/api/sync/control", gin.H{
		"session_id": sessionID, "action": "rewind",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown session maps to 404.
	w = doJSON(t, r, http.MethodPost, "/api/sync/control", gin.H{
		"session_id": "ghost", "action": "play",
	})
	assert.Equal(t, http.StatusNotFound, w.Code)

	events, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	w = doJSON(t, r, http.MethodPost, "/api/sync/control", gin.H{
		"session_id": sessionID, "action": "play",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["delivered"])

	ev := <-events
	assert.Equal(t, relay.TypeAudioControl, ev.Type)
	assert.Equal(t, relay.ActionPlay, ev.Action)

	w = doJSON(t, r, http.MethodPost, "/mobile/sync-position", gin.H{
		"session_id": sessionID, "position_seconds": 90,
	})
	require.Equal(t, http.StatusOK, w.Code)

	ev = <-events
	assert.Equal(t, relay.ActionSeek, ev.Action)
	assert.Equal(t, 90, ev.Position)
}
