// Package retrieval selects document chunks relevant to a free-text query
// and pairs them with citation info from the owning document. It is
// read-only: context assembly for the generation call happens here, the
// call itself does not.
package retrieval

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/local/studyhub/api/models"
	"gorm.io/gorm"
)

var (
	// ErrInvalidQuery is returned for empty or whitespace-only queries.
	ErrInvalidQuery = errors.New("invalid query")
	// ErrInvalidLimit is returned for negative result limits.
	ErrInvalidLimit = errors.New("invalid limit")
	// ErrNoMatchingFilter is returned when a level/category filter names a
	// value no indexed document carries. Explicit, so callers can tell a
	// bad filter apart from "no chunks matched".
	ErrNoMatchingFilter = errors.New("no document matches filter")
	// ErrStorageUnavailable is returned when the store cannot be queried.
	// Never ambiguous with an empty result set.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DefaultLimit is used when the caller does not specify a result cap.
const DefaultLimit = 6

// SearchOptions are the optional knobs of a search. A zero Limit means
// "use DefaultLimit"; a negative one is rejected.
type SearchOptions struct {
	Level    string
	Category string
	Limit    int
}

// Result is one scored chunk with the citation fields of its document.
type Result struct {
	ChunkID       string  `json:"chunk_id"`
	DocID         string  `json:"doc_id"`
	Content       string  `json:"content"`
	PageNumber    int     `json:"page_number"`
	DocumentTitle string  `json:"document_title"`
	DocumentPath  string  `json:"document_path"`
	Score         float64 `json:"score"`
}

// Searcher runs retrieval queries against the chunk store.
type Searcher struct {
	db     *gorm.DB
	scorer Scorer
}

// New returns a Searcher. A nil scorer falls back to token overlap.
func New(db *gorm.DB, scorer Scorer) *Searcher {
	if scorer == nil {
		scorer = TokenOverlapScorer{}
	}
	return &Searcher{db: db, scorer: scorer}
}

type candidateRow struct {
	ChunkID        string
	DocID          string
	ChunkIndex     int
	Content        string
	PageNumber     int
	Level          string
	ExtractedTitle string
	FilePath       string
}

// Search returns at most opts.Limit chunks scored against query, best
// first. Ties are broken by document level, then document id, then chunk
// index, so results are deterministic.
func (s *Searcher) Search(query string, opts SearchOptions) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrInvalidQuery
	}

	limit := opts.Limit
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidLimit, opts.Limit)
	}

	if err := s.validateFilter("level", opts.Level); err != nil {
		return nil, err
	}
	if err := s.validateFilter("category", opts.Category); err != nil {
		return nil, err
	}

	q := s.db.Table("document_chunks").
		Select("document_chunks.chunk_id, document_chunks.doc_id, document_chunks.chunk_index, " +
			"document_chunks.content, document_chunks.page_number, " +
			"documents.level, documents.extracted_title, documents.file_path").
		Joins("JOIN documents ON documents.doc_id = document_chunks.doc_id")
	if opts.Level != "" {
		q = q.Where("documents.level = ?", opts.Level)
	}
	if opts.Category != "" {
		q = q.Where("documents.category = ?", opts.Category)
	}

	var rows []candidateRow
	if err := q.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	type scored struct {
		row   candidateRow
		score float64
	}
	var matched []scored
	for _, row := range rows {
		score := s.scorer.Score(query, row.Content)
		if score <= 0 {
			continue
		}
		matched = append(matched, scored{row: row, score: score})
	}

	sort.SliceStable(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if a.score != b.score {
			return a.score > b.score
		}
		if a.row.Level != b.row.Level {
			return a.row.Level < b.row.Level
		}
		if a.row.DocID != b.row.DocID {
			return a.row.DocID < b.row.DocID
		}
		return a.row.ChunkIndex < b.row.ChunkIndex
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}

	results := make([]Result, 0, len(matched))
	for _, m := range matched {
		results = append(results, Result{
			ChunkID:       m.row.ChunkID,
			DocID:         m.row.DocID,
			Content:       m.row.Content,
			PageNumber:    m.row.PageNumber,
			DocumentTitle: m.row.ExtractedTitle,
			DocumentPath:  m.row.FilePath,
			Score:         m.score,
		})
	}
	return results, nil
}

// validateFilter rejects filter values no document carries instead of
// silently matching nothing.
func (s *Searcher) validateFilter(column, value string) error {
	if value == "" {
		return nil
	}
	var count int64
	if err := s.db.Model(&models.Document{}).Where(column+" = ?", value).Count(&count).Error; err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s %q", ErrNoMatchingFilter, column, value)
	}
	return nil
}

// AssembleContext formats results into the context block and citation list
// the generation collaborator consumes. Results past maxChars are dropped;
// a maxChars of 0 means no cap.
func AssembleContext(results []Result, maxChars int) (string, []string) {
	var parts []string
	var citations []string
	used := 0

	for _, r := range results {
		block := fmt.Sprintf("[Source: %s, page %d]\n%s", r.DocumentTitle, r.PageNumber, r.Content)
		if maxChars > 0 && used+len(block) > maxChars && len(parts) > 0 {
			break
		}
		parts = append(parts, block)
		citations = append(citations, fmt.Sprintf("%s (%s), page %d", r.DocumentTitle, r.DocumentPath, r.PageNumber))
		used += len(block)
	}

	return strings.Join(parts, "\n---\n"), citations
}
