package models

import (
	"time"

	"gorm.io/gorm"
)

// Course represents one catalog entry imported from the course listings.
// Rows are created by the administrative import and never mutated after.
type Course struct {
	CourseID    string    `gorm:"primaryKey;column:course_id" json:"course_id"`
	Level       string    `gorm:"index" json:"level"` // M1, M2
	Title       string    `json:"title"`
	Category    string    `gorm:"index" json:"category"`
	Professor   string    `json:"professor,omitempty"`
	Semester    string    `json:"semester,omitempty"`
	Credits     int       `json:"credits,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Chapter belongs to exactly one course. ChapterNumber is unique within a
// course; the composite index enforces what every consumer already assumes.
type Chapter struct {
	ChapterID     string    `gorm:"primaryKey;column:chapter_id" json:"chapter_id"`
	CourseID      string    `gorm:"column:course_id;uniqueIndex:idx_course_chapter_num" json:"course_id"`
	ChapterNumber int       `gorm:"column:chapter_number;uniqueIndex:idx_course_chapter_num" json:"chapter_number"`
	Title         string    `json:"title"`
	ContentPath   string    `gorm:"column:content_path" json:"content_path"`
	DurationMin   int       `gorm:"column:duration_minutes" json:"duration_minutes"`
	Difficulty    string    `gorm:"column:difficulty_level" json:"difficulty_level"`
	CreatedAt     time.Time `json:"created_at"`
}

// Document represents one ingested source file. FilePath is unique:
// re-indexing the same path updates the row rather than duplicating it.
type Document struct {
	DocID          string    `gorm:"primaryKey;column:doc_id" json:"doc_id"`
	FilePath       string    `gorm:"column:file_path;uniqueIndex" json:"file_path"`
	Level          string    `gorm:"index" json:"level"`
	Category       string    `gorm:"index" json:"category"`
	Filename       string    `json:"filename"`
	FileHash       string    `gorm:"column:file_hash" json:"file_hash"`
	PageCount      int       `gorm:"column:page_count" json:"page_count"`
	ExtractedTitle string    `gorm:"column:extracted_title" json:"extracted_title"`
	IndexedAt      time.Time `gorm:"column:indexed_at" json:"indexed_at"`
}

// DocumentChunk is one retrievable slice of a document's text. For any
// document the chunk_index values form a contiguous 0-based range; the
// indexer rewrites the whole set on every re-index to keep that true.
type DocumentChunk struct {
	ChunkID    string `gorm:"primaryKey;column:chunk_id" json:"chunk_id"`
	DocID      string `gorm:"column:doc_id;uniqueIndex:idx_doc_chunk_index" json:"doc_id"`
	ChunkIndex int    `gorm:"column:chunk_index;uniqueIndex:idx_doc_chunk_index" json:"chunk_index"`
	Content    string `json:"content"`
	PageNumber int    `gorm:"column:page_number" json:"page_number"`
}

// DocumentMetadata holds derived attributes, one row per document.
type DocumentMetadata struct {
	DocID            string `gorm:"primaryKey;column:doc_id" json:"doc_id"`
	Keywords         string `json:"keywords"` // comma-separated
	Topics           string `json:"topics"`   // comma-separated
	Difficulty       string `gorm:"column:difficulty_level" json:"difficulty_level"`
	EstimatedMinutes int    `gorm:"column:estimated_duration_min" json:"estimated_duration_min"`
}

// GeneratedContent is a generated artifact (podcast, summary) attached to a
// chapter. Generation itself happens outside this service; the table exists
// so those collaborators share the schema.
type GeneratedContent struct {
	ContentID   string    `gorm:"primaryKey;column:content_id" json:"content_id"`
	ChapterID   string    `gorm:"column:chapter_id;index" json:"chapter_id"`
	ContentType string    `gorm:"column:content_type" json:"content_type"`
	FilePath    string    `gorm:"column:file_path" json:"file_path"`
	DurationSec int       `gorm:"column:duration_seconds" json:"duration_seconds"`
	CreatedAt   time.Time `json:"created_at"`
}

// UserSession is one browsing instance on one device. Sessions are retained
// indefinitely; only LastActive is ever updated.
type UserSession struct {
	SessionID  string    `gorm:"primaryKey;column:session_id" json:"session_id"`
	UserID     string    `gorm:"column:user_id;index" json:"user_id"`
	DeviceType string    `gorm:"column:device_type" json:"device_type"`
	StartedAt  time.Time `gorm:"column:started_at" json:"started_at"`
	LastActive time.Time `gorm:"column:last_active" json:"last_active"`
}

// UserProgress is an append-only snapshot of where a session stands in a
// chapter. Multiple rows per session/chapter pair are expected; aggregates
// read the whole history.
type UserProgress struct {
	ID                   uint      `gorm:"primaryKey" json:"id"`
	SessionID            string    `gorm:"column:session_id;index" json:"session_id"`
	ChapterID            string    `gorm:"column:chapter_id;index" json:"chapter_id"`
	CompletionPercentage float64   `gorm:"column:completion_percentage" json:"completion_percentage"`
	AudioPositionSeconds int       `gorm:"column:audio_position_seconds" json:"audio_position_seconds"`
	QuizScore            *float64  `gorm:"column:quiz_score" json:"quiz_score,omitempty"`
	UpdatedAt            time.Time `gorm:"column:updated_at" json:"updated_at"`
}

// Quiz is one question attached to a chapter. Options are stored as a JSON
// array, matching what the generation collaborator returns.
type Quiz struct {
	QuizID        string    `gorm:"primaryKey;column:quiz_id" json:"quiz_id"`
	ChapterID     string    `gorm:"column:chapter_id;index" json:"chapter_id"`
	QuestionText  string    `gorm:"column:question_text" json:"question_text"`
	QuestionType  string    `gorm:"column:question_type" json:"question_type"`
	Options       string    `json:"options"` // JSON-encoded array
	CorrectAnswer string    `gorm:"column:correct_answer" json:"correct_answer"`
	Explanation   string    `json:"explanation"`
	Difficulty    string    `json:"difficulty"`
	CreatedAt     time.Time `json:"created_at"`
}

// QuizResponse records one submitted answer. Append-only, never updated.
type QuizResponse struct {
	ResponseID       string    `gorm:"primaryKey;column:response_id" json:"response_id"`
	SessionID        string    `gorm:"column:session_id;index" json:"session_id"`
	QuizID           string    `gorm:"column:quiz_id;index" json:"quiz_id"`
	UserAnswer       string    `gorm:"column:user_answer" json:"user_answer"`
	IsCorrect        bool      `gorm:"column:is_correct" json:"is_correct"`
	ResponseTimeSecs float64   `gorm:"column:response_time_seconds" json:"response_time_seconds"`
	AnsweredAt       time.Time `gorm:"column:answered_at" json:"answered_at"`
}

// Table names are the storage contract the indexer and presentation layer
// share; pin them so GORM pluralization never drifts from the schema.

func (Course) TableName() string           { return "courses" }
func (Chapter) TableName() string          { return "chapters" }
func (Document) TableName() string         { return "documents" }
func (DocumentChunk) TableName() string    { return "document_chunks" }
func (DocumentMetadata) TableName() string { return "document_metadata" }
func (GeneratedContent) TableName() string { return "generated_content" }
func (UserSession) TableName() string      { return "user_sessions" }
func (UserProgress) TableName() string     { return "user_progress" }
func (Quiz) TableName() string             { return "quizzes" }
func (QuizResponse) TableName() string     { return "quiz_responses" }

// AutoMigrate runs all migrations
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Course{},
		&Chapter{},
		&Document{},
		&DocumentChunk{},
		&DocumentMetadata{},
		&GeneratedContent{},
		&UserSession{},
		&UserProgress{},
		&Quiz{},
		&QuizResponse{},
	)
}
