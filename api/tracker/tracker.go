// Package tracker manages user sessions and their append-only progress and
// quiz-response history. Sessions are never deleted; every write bumps the
// session's last_active timestamp.
package tracker

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/local/studyhub/api/models"
	"gorm.io/gorm"
)

var (
	// ErrSessionNotFound is returned by every operation that references an
	// unknown session id. One policy, applied everywhere.
	ErrSessionNotFound = errors.New("session not found")
	// ErrInvalidProgressValue is returned for values outside their domain:
	// percentages outside [0,100], negative positions or response times.
	ErrInvalidProgressValue = errors.New("invalid progress value")
	// ErrReferentialIntegrity is returned for writes referencing a parent
	// row (chapter, quiz) that does not exist.
	ErrReferentialIntegrity = errors.New("referential integrity violation")
	// ErrStorageUnavailable is returned when the store cannot be reached.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

type Tracker struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Tracker {
	return &Tracker{db: db}
}

// StartSession creates a new session and returns its id.
func (t *Tracker) StartSession(userID, deviceType string) (string, error) {
	now := time.Now()
	session := &models.UserSession{
		SessionID:  uuid.New().String(),
		UserID:     userID,
		DeviceType: deviceType,
		StartedAt:  now,
		LastActive: now,
	}
	if err := t.db.Create(session).Error; err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return session.SessionID, nil
}

// Touch updates the session's last_active timestamp.
func (t *Tracker) Touch(sessionID string) error {
	res := t.db.Model(&models.UserSession{}).
		Where("session_id = ?", sessionID).
		Update("last_active", time.Now())
	if res.Error != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// GetSession returns the session row.
func (t *Tracker) GetSession(sessionID string) (models.UserSession, error) {
	var session models.UserSession
	err := t.db.Where("session_id = ?", sessionID).First(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session, ErrSessionNotFound
	}
	if err != nil {
		return session, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return session, nil
}

// SessionExists reports whether the session id is known. Used by the event
// relay to gate subscriptions.
func (t *Tracker) SessionExists(sessionID string) (bool, error) {
	var count int64
	if err := t.db.Model(&models.UserSession{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return count > 0, nil
}

// ActiveSessions returns sessions active within the given window, most
// recently active first.
func (t *Tracker) ActiveSessions(window time.Duration) ([]models.UserSession, error) {
	var sessions []models.UserSession
	cutoff := time.Now().Add(-window)
	err := t.db.Where("last_active >= ?", cutoff).Order("last_active DESC").Find(&sessions).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return sessions, nil
}

// RecordProgress appends a progress snapshot. History is retained: a new
// row per call, never an update. Percentages must be in [0,100] and the
// audio position non-negative.
func (t *Tracker) RecordProgress(sessionID, chapterID string, completion float64, audioPositionSeconds int, quizScore *float64) error {
	if completion < 0 || completion > 100 {
		return fmt.Errorf("%w: completion_percentage %v", ErrInvalidProgressValue, completion)
	}
	if audioPositionSeconds < 0 {
		return fmt.Errorf("%w: audio_position_seconds %d", ErrInvalidProgressValue, audioPositionSeconds)
	}
	if quizScore != nil && (*quizScore < 0 || *quizScore > 100) {
		return fmt.Errorf("%w: quiz_score %v", ErrInvalidProgressValue, *quizScore)
	}

	if err := t.requireSession(sessionID); err != nil {
		return err
	}
	if err := t.requireRow(&models.Chapter{}, "chapter_id", chapterID); err != nil {
		return err
	}

	row := &models.UserProgress{
		SessionID:            sessionID,
		ChapterID:            chapterID,
		CompletionPercentage: completion,
		AudioPositionSeconds: audioPositionSeconds,
		QuizScore:            quizScore,
		UpdatedAt:            time.Now(),
	}
	if err := t.db.Create(row).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return t.Touch(sessionID)
}

// RecordQuizResponse appends one submitted answer and returns its id.
func (t *Tracker) RecordQuizResponse(sessionID, quizID, userAnswer string, isCorrect bool, responseTimeSeconds float64) (string, error) {
	if responseTimeSeconds < 0 {
		return "", fmt.Errorf("%w: response_time_seconds %v", ErrInvalidProgressValue, responseTimeSeconds)
	}

	if err := t.requireSession(sessionID); err != nil {
		return "", err
	}
	if err := t.requireRow(&models.Quiz{}, "quiz_id", quizID); err != nil {
		return "", err
	}

	row := &models.QuizResponse{
		ResponseID:       uuid.New().String(),
		SessionID:        sessionID,
		QuizID:           quizID,
		UserAnswer:       userAnswer,
		IsCorrect:        isCorrect,
		ResponseTimeSecs: responseTimeSeconds,
		AnsweredAt:       time.Now(),
	}
	if err := t.db.Create(row).Error; err != nil {
		return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := t.Touch(sessionID); err != nil {
		return "", err
	}
	return row.ResponseID, nil
}

// ProgressHistory returns all progress snapshots of a session in insertion
// order.
func (t *Tracker) ProgressHistory(sessionID string) ([]models.UserProgress, error) {
	if err := t.requireSession(sessionID); err != nil {
		return nil, err
	}
	var rows []models.UserProgress
	if err := t.db.Where("session_id = ?", sessionID).Order("id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return rows, nil
}

// ResponsesForSession returns all quiz responses of a session in submission
// order.
func (t *Tracker) ResponsesForSession(sessionID string) ([]models.QuizResponse, error) {
	if err := t.requireSession(sessionID); err != nil {
		return nil, err
	}
	var rows []models.QuizResponse
	if err := t.db.Where("session_id = ?", sessionID).Order("answered_at ASC, response_id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return rows, nil
}

func (t *Tracker) requireSession(sessionID string) error {
	exists, err := t.SessionExists(sessionID)
	if err != nil {
		return err
	}
	if !exists {
		return ErrSessionNotFound
	}
	return nil
}

func (t *Tracker) requireRow(model interface{}, column, id string) error {
	var count int64
	if err := t.db.Model(model).Where(column+" = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s %q", ErrReferentialIntegrity, column, id)
	}
	return nil
}
