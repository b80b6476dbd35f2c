package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/local/studyhub/api/config"
	"github.com/local/studyhub/api/indexer"
	"github.com/local/studyhub/api/models"
	"github.com/local/studyhub/api/relay"
	"github.com/local/studyhub/api/retrieval"
	"github.com/local/studyhub/api/services"
	"github.com/local/studyhub/api/tracker"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

const answerSystemPrompt = `You are a study assistant for master-level data science courses.
Answer the student's question using ONLY the course excerpts below. Cite the
source title when you use an excerpt. If the excerpts do not cover the
question, say so instead of guessing.

Course excerpts:
{context}`

const quizSystemPrompt = `You are a study assistant generating quiz questions from course material.
Return a JSON object: {"questions": [{"question_text": "...", "question_type": "multiple_choice",
"options": ["...", "...", "...", "..."], "correct_answer": "...", "explanation": "...",
"difficulty": "beginner|intermediate|advanced"}]}. The correct_answer must be one of the options.`

type Handler struct {
	db         *gorm.DB
	cfg        *config.Config
	searcher   *retrieval.Searcher
	tracker    *tracker.Tracker
	indexer    *indexer.Indexer
	hub        *relay.Hub
	aiProvider services.AIProvider
}

func New(db *gorm.DB, cfg *config.Config) *Handler {
	aiProvider := services.NewAIProvider(cfg.ModelProvider, cfg.AnthropicAPIKey, cfg.AnthropicModel)
	if cfg.ModelProvider == "openai" {
		aiProvider = services.NewAIProvider("openai", cfg.OpenAIAPIKey, cfg.OpenAIModel)
	}

	return &Handler{
		db:         db,
		cfg:        cfg,
		searcher:   retrieval.New(db, nil),
		tracker:    tracker.New(db),
		indexer:    indexer.New(db, cfg.MaterialsPath),
		hub:        relay.NewHub(),
		aiProvider: aiProvider,
	}
}

// statusFor maps the typed core errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, retrieval.ErrInvalidQuery),
		errors.Is(err, retrieval.ErrInvalidLimit),
		errors.Is(err, tracker.ErrInvalidProgressValue):
		return http.StatusBadRequest
	case errors.Is(err, tracker.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, retrieval.ErrNoMatchingFilter),
		errors.Is(err, tracker.ErrReferentialIntegrity):
		return http.StatusUnprocessableEntity
	case errors.Is(err, retrieval.ErrStorageUnavailable),
		errors.Is(err, tracker.ErrStorageUnavailable),
		errors.Is(err, indexer.ErrStorageUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func abortWith(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "ok",
		"model_provider": h.aiProvider.GetProviderName(),
	})
}

type courseListing struct {
	DocID      string `json:"doc_id"`
	FilePath   string `json:"file_path"`
	Level      string `json:"level"`
	Category   string `json:"category"`
	Filename   string `json:"filename"`
	Title      string `json:"title"`
	PageCount  int    `json:"page_count"`
	Topics     string `json:"topics"`
	Difficulty string `json:"difficulty"`
}

func (h *Handler) ListCourses(c *gin.Context) {
	var listings []courseListing
	err := h.db.Table("documents").
		Select("documents.doc_id, documents.file_path, documents.level, documents.category, "+
			"documents.filename, documents.extracted_title AS title, documents.page_count, "+
			"document_metadata.topics, document_metadata.difficulty_level AS difficulty").
		Joins("LEFT JOIN document_metadata ON document_metadata.doc_id = documents.doc_id").
		Order("documents.level, documents.category, documents.filename").
		Find(&listings).Error
	if err != nil {
		log.Error().Err(err).Msg("Failed to list documents")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to list documents"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"courses": listings, "count": len(listings)})
}

func (h *Handler) GetCourseDetail(c *gin.Context) {
	docID := c.Param("docId")

	var doc models.Document
	if err := h.db.Where("doc_id = ?", docID).First(&doc).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Document not found"})
		return
	}

	var meta models.DocumentMetadata
	h.db.Where("doc_id = ?", docID).First(&meta)

	var chunkCount int64
	h.db.Model(&models.DocumentChunk{}).Where("doc_id = ?", docID).Count(&chunkCount)

	c.JSON(http.StatusOK, gin.H{
		"document":    doc,
		"metadata":    meta,
		"chunk_count": chunkCount,
	})
}

type searchRequest struct {
	Query    string `json:"query" binding:"required"`
	Level    string `json:"level"`
	Category string `json:"category"`
	Limit    int    `json:"limit"`
}

func (h *Handler) SearchCourses(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	results, err := h.searcher.Search(req.Query, retrieval.SearchOptions{
		Level:    req.Level,
		Category: req.Category,
		Limit:    req.Limit,
	})
	if err != nil {
		abortWith(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "count": len(results)})
}

func (h *Handler) Reindex(c *gin.Context) {
	stats, err := h.indexer.ScanAndIndex()
	if err != nil {
		log.Error().Err(err).Msg("Reindex failed")
		abortWith(c, err)
		return
	}

	log.Info().
		Int("total", stats.TotalFiles).
		Int("new", stats.NewIndexed).
		Int("updated", stats.Updated).
		Msg("Reindex complete")
	c.JSON(http.StatusOK, stats)
}

type askRequest struct {
	Question  string `json:"question" binding:"required"`
	Level     string `json:"level"`
	Category  string `json:"category"`
	Limit     int    `json:"limit"`
	SessionID string `json:"session_id"`
}

type askResponse struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations"`
}

const contextCharBudget = 6000

func (h *Handler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	limit := req.Limit
	if limit == 0 {
		limit = h.cfg.SearchLimit
	}

	results, err := h.searcher.Search(req.Question, retrieval.SearchOptions{
		Level:    req.Level,
		Category: req.Category,
		Limit:    limit,
	})
	if err != nil {
		abortWith(c, err)
		return
	}

	context, citations := retrieval.AssembleContext(results, contextCharBudget)
	if context == "" {
		context = "No relevant course excerpts were found."
	}
	systemPrompt := strings.ReplaceAll(answerSystemPrompt, "{context}", context)

	answer, err := h.aiProvider.GenerateText(req.Question, systemPrompt)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate answer")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to generate answer"})
		return
	}

	if req.SessionID != "" {
		if err := h.tracker.Touch(req.SessionID); err != nil {
			log.Warn().Err(err).Str("session_id", req.SessionID).Msg("Failed to touch session")
		}
	}

	c.JSON(http.StatusOK, askResponse{Answer: answer, Citations: citations})
}

type generatedQuiz struct {
	QuestionText  string   `json:"question_text"`
	QuestionType  string   `json:"question_type"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Difficulty    string   `json:"difficulty"`
}

// GenerateQuiz builds quiz questions over a document's first chunks. When a
// chapter_id is supplied the questions are persisted against that chapter
// so answers can be recorded later.
func (h *Handler) GenerateQuiz(c *gin.Context) {
	docID := c.Param("docId")
	count, _ := strconv.Atoi(c.DefaultQuery("count", "5"))
	if count < 1 || count > 20 {
		count = 5
	}
	chapterID := c.Query("chapter_id")

	var chunks []models.DocumentChunk
	if err := h.db.Where("doc_id = ?", docID).Order("chunk_index ASC").Limit(10).Find(&chunks).Error; err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to retrieve chunks"})
		return
	}
	if len(chunks) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "No content found for this document"})
		return
	}

	var content strings.Builder
	for _, chunk := range chunks {
		content.WriteString(chunk.Content)
		content.WriteString("\n\n")
	}

	prompt := fmt.Sprintf("Generate %d quiz questions from this course material:\n\n%s", count, content.String())
	response, err := h.aiProvider.GenerateJSON(prompt, quizSystemPrompt)
	if err != nil {
		log.Error().Err(err).Msg("Failed to generate quiz")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to generate quiz"})
		return
	}

	var parsed struct {
		Questions []generatedQuiz `json:"questions"`
	}
	if err := json.Unmarshal([]byte(services.StripCodeFence(response)), &parsed); err != nil {
		log.Error().Err(err).Str("response", response).Msg("Failed to parse quiz JSON")
		c.JSON(http.StatusBadGateway, gin.H{"error": "Failed to parse generated quiz"})
		return
	}

	type quizOut struct {
		QuizID string `json:"quiz_id,omitempty"`
		generatedQuiz
	}
	out := make([]quizOut, 0, len(parsed.Questions))
	for _, q := range parsed.Questions {
		entry := quizOut{generatedQuiz: q}

		if chapterID != "" {
			optionsJSON, _ := json.Marshal(q.Options)
			row := models.Quiz{
				QuizID:        uuid.New().String(),
				ChapterID:     chapterID,
				QuestionText:  q.QuestionText,
				QuestionType:  q.QuestionType,
				Options:       string(optionsJSON),
				CorrectAnswer: q.CorrectAnswer,
				Explanation:   q.Explanation,
				Difficulty:    q.Difficulty,
				CreatedAt:     time.Now(),
			}
			if err := h.db.Create(&row).Error; err != nil {
				log.Warn().Err(err).Msg("Failed to save quiz question")
			} else {
				entry.QuizID = row.QuizID
			}
		}
		out = append(out, entry)
	}

	c.JSON(http.StatusOK, gin.H{"doc_id": docID, "questions": out})
}
