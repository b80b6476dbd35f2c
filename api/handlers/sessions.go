package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/local/studyhub/api/models"
	"github.com/local/studyhub/api/relay"
	"github.com/rs/zerolog/log"
)

type createSessionRequest struct {
	UserID     string `json:"user_id" binding:"required"`
	DeviceType string `json:"device_type" binding:"required"`
}

func (h *Handler) CreateSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sessionID, err := h.tracker.StartSession(req.UserID, req.DeviceType)
	if err != nil {
		abortWith(c, err)
		return
	}

	log.Info().Str("session_id", sessionID).Str("user_id", req.UserID).Msg("Session created")
	c.JSON(http.StatusOK, gin.H{"session_id": sessionID})
}

func (h *Handler) GetSessionState(c *gin.Context) {
	sessionID := c.Param("sessionId")

	session, err := h.tracker.GetSession(sessionID)
	if err != nil {
		abortWith(c, err)
		return
	}

	summary, err := h.tracker.SessionSummary(sessionID)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session":     session,
		"summary":     summary,
		"connections": h.hub.ConnectionCount(sessionID),
	})
}

type syncPositionRequest struct {
	SessionID       string `json:"session_id" binding:"required"`
	PositionSeconds int    `json:"position_seconds"`
}

// SyncPosition relays the current playback position to the session's other
// devices. Persisted progress goes through RecordProgress; this endpoint is
// the lightweight pass-through.
func (h *Handler) SyncPosition(c *gin.Context) {
	var req syncPositionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tracker.Touch(req.SessionID); err != nil {
		abortWith(c, err)
		return
	}

	delivered := h.hub.Publish(req.SessionID, relay.Event{
		Type:     relay.TypeAudioControl,
		Action:   relay.ActionSeek,
		Position: req.PositionSeconds,
	})
	c.JSON(http.StatusOK, gin.H{"synced": true, "delivered": delivered})
}

type audioControlRequest struct {
	SessionID       string `json:"session_id" binding:"required"`
	Action          string `json:"action" binding:"required,oneof=play pause seek"`
	PositionSeconds int    `json:"position_seconds"`
}

func (h *Handler) AudioControl(c *gin.Context) {
	var req audioControlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.tracker.Touch(req.SessionID); err != nil {
		abortWith(c, err)
		return
	}

	delivered := h.hub.Publish(req.SessionID, relay.Event{
		Type:     relay.TypeAudioControl,
		Action:   req.Action,
		Position: req.PositionSeconds,
	})
	c.JSON(http.StatusOK, gin.H{"delivered": delivered})
}

type progressRequest struct {
	SessionID            string   `json:"session_id" binding:"required"`
	ChapterID            string   `json:"chapter_id" binding:"required"`
	CompletionPercentage float64  `json:"completion_percentage"`
	AudioPositionSeconds int      `json:"audio_position_seconds"`
	QuizScore            *float64 `json:"quiz_score"`
}

func (h *Handler) RecordProgress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.tracker.RecordProgress(req.SessionID, req.ChapterID,
		req.CompletionPercentage, req.AudioPositionSeconds, req.QuizScore)
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"recorded": true})
}

type quizAnswerRequest struct {
	SessionID           string  `json:"session_id" binding:"required"`
	QuizID              string  `json:"quiz_id" binding:"required"`
	Answer              string  `json:"answer" binding:"required"`
	ResponseTimeSeconds float64 `json:"response_time_seconds"`
}

// AnswerQuiz grades the submitted answer against the stored question,
// appends the response and relays the outcome to the session's devices.
func (h *Handler) AnswerQuiz(c *gin.Context) {
	var req quizAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var quiz models.Quiz
	if err := h.db.Where("quiz_id = ?", req.QuizID).First(&quiz).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Quiz not found"})
		return
	}

	isCorrect := req.Answer == quiz.CorrectAnswer
	responseID, err := h.tracker.RecordQuizResponse(req.SessionID, req.QuizID, req.Answer, isCorrect, req.ResponseTimeSeconds)
	if err != nil {
		abortWith(c, err)
		return
	}

	h.hub.Publish(req.SessionID, relay.Event{
		Type: relay.TypeQuizAnswer,
		Payload: map[string]any{
			"quiz_id":    req.QuizID,
			"is_correct": isCorrect,
		},
	})

	c.JSON(http.StatusOK, gin.H{
		"response_id": responseID,
		"is_correct":  isCorrect,
		"explanation": quiz.Explanation,
	})
}

func (h *Handler) LibraryStats(c *gin.Context) {
	stats, err := h.tracker.LibrarySummary()
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stats": stats})
}

func (h *Handler) SessionStats(c *gin.Context) {
	summary, err := h.tracker.SessionSummary(c.Param("sessionId"))
	if err != nil {
		abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// Events streams the session's relay events over SSE until the client
// disconnects.
func (h *Handler) Events(c *gin.Context) {
	sessionID := c.Param("sessionId")

	exists, err := h.tracker.SessionExists(sessionID)
	if err != nil {
		abortWith(c, err)
		return
	}
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}

	events, cancel := h.hub.Subscribe(sessionID)
	defer cancel()

	h.hub.Publish(sessionID, relay.Event{
		Type:      relay.TypeConnected,
		Payload:   map[string]any{"session_id": sessionID},
		Timestamp: time.Now(),
	})

	c.Stream(func(w io.Writer) bool {
		select {
		case ev, ok := <-events:
			if !ok {
				return false
			}
			c.SSEvent("message", ev)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
}
