package tracker

import (
	"fmt"
)

// LibraryStat is the per-level/category view over indexed documents.
type LibraryStat struct {
	Level            string  `json:"level"`
	Category         string  `json:"category"`
	DocumentCount    int     `json:"document_count"`
	TotalPages       int     `json:"total_pages"`
	AvgEstimatedMins float64 `json:"avg_estimated_duration_min"`
}

// SessionStat is the per-session aggregate view.
type SessionStat struct {
	SessionID             string  `json:"session_id"`
	ChaptersTouched       int     `json:"chapters_touched"`
	AvgCompletion         float64 `json:"avg_completion_percentage"`
	TotalListeningSeconds int     `json:"total_listening_seconds"`
	QuizAnswers           int     `json:"quiz_answers"`
	QuizCorrect           int     `json:"quiz_correct"`
}

// LibrarySummary groups documents by level and category: how many, how many
// pages in total, and the average estimated reading duration.
func (t *Tracker) LibrarySummary() ([]LibraryStat, error) {
	var stats []LibraryStat
	err := t.db.Table("documents").
		Select("documents.level, documents.category, COUNT(*) AS document_count, " +
			"COALESCE(SUM(documents.page_count), 0) AS total_pages, " +
			"COALESCE(AVG(document_metadata.estimated_duration_min), 0) AS avg_estimated_mins").
		Joins("LEFT JOIN document_metadata ON document_metadata.doc_id = documents.doc_id").
		Group("documents.level, documents.category").
		Order("documents.level, documents.category").
		Find(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return stats, nil
}

// SessionSummary aggregates a session's whole progress history: distinct
// chapters touched and the average completion across all snapshots.
//
// Total listening time sums the per-chapter maximum audio position rather
// than every snapshot, so replaying a chapter or reporting the position
// twice does not double-count.
func (t *Tracker) SessionSummary(sessionID string) (SessionStat, error) {
	stat := SessionStat{SessionID: sessionID}
	if err := t.requireSession(sessionID); err != nil {
		return stat, err
	}

	row := t.db.Raw(`
		SELECT COUNT(DISTINCT chapter_id) AS chapters,
		       COALESCE(AVG(completion_percentage), 0) AS avg_completion
		FROM user_progress WHERE session_id = ?`, sessionID).
		Row()
	if err := row.Scan(&stat.ChaptersTouched, &stat.AvgCompletion); err != nil {
		return stat, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	row = t.db.Raw(`
		SELECT COALESCE(SUM(max_pos), 0) FROM (
			SELECT MAX(audio_position_seconds) AS max_pos
			FROM user_progress WHERE session_id = ? GROUP BY chapter_id
		)`, sessionID).
		Row()
	if err := row.Scan(&stat.TotalListeningSeconds); err != nil {
		return stat, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	row = t.db.Raw(`
		SELECT COUNT(*), COALESCE(SUM(CASE WHEN is_correct THEN 1 ELSE 0 END), 0)
		FROM quiz_responses WHERE session_id = ?`, sessionID).
		Row()
	if err := row.Scan(&stat.QuizAnswers, &stat.QuizCorrect); err != nil {
		return stat, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	return stat, nil
}
