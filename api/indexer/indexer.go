// Package indexer scans the course-materials tree and keeps the document
// and chunk tables in sync with the PDFs on disk. It is the producer side
// of the retrieval contract: per document, chunk_index is always a
// contiguous 0-based sequence, and file_path identifies the row across
// re-indexing runs.
package indexer

import (
	"crypto/md5"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/local/studyhub/api/models"
	"github.com/local/studyhub/api/services"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrStorageUnavailable is returned when the store cannot be written.
var ErrStorageUnavailable = errors.New("storage unavailable")

// Outcomes of indexing a single file.
const (
	OutcomeNew       = "new"
	OutcomeUpdated   = "updated"
	OutcomeUnchanged = "unchanged"
)

// Stats summarizes one scan run.
type Stats struct {
	TotalFiles int `json:"total_files"`
	NewIndexed int `json:"new_indexed"`
	Updated    int `json:"updated"`
	Unchanged  int `json:"unchanged"`
	Errors     int `json:"errors"`
}

type Indexer struct {
	db   *gorm.DB
	root string
}

// New returns an Indexer over the course-materials root, laid out as
// <root>/{m1,m2}/<category>/**/*.pdf.
func New(db *gorm.DB, root string) *Indexer {
	return &Indexer{db: db, root: root}
}

// ScanAndIndex walks the materials tree and indexes every PDF. Per-file
// failures are counted, logged and skipped; the scan itself keeps going.
func (ix *Indexer) ScanAndIndex() (Stats, error) {
	var stats Stats

	for _, level := range []string{"m1", "m2"} {
		levelPath := filepath.Join(ix.root, level)
		entries, err := os.ReadDir(levelPath)
		if err != nil {
			log.Warn().Str("level", level).Msg("Level directory not found, skipping")
			continue
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			category := entry.Name()

			err := filepath.WalkDir(filepath.Join(levelPath, category), func(path string, d fs.DirEntry, err error) error {
				if err != nil || d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".pdf") {
					return err
				}
				stats.TotalFiles++

				outcome, ferr := ix.IndexFile(path, strings.ToUpper(level), category)
				switch {
				case ferr != nil:
					stats.Errors++
					log.Error().Err(ferr).Str("file", path).Msg("Failed to index document")
				case outcome == OutcomeNew:
					stats.NewIndexed++
					log.Info().Str("file", filepath.Base(path)).Msg("Indexed")
				case outcome == OutcomeUpdated:
					stats.Updated++
					log.Info().Str("file", filepath.Base(path)).Msg("Re-indexed")
				default:
					stats.Unchanged++
				}
				return nil
			})
			if err != nil {
				return stats, err
			}
		}
	}

	return stats, nil
}

// IndexFile indexes one PDF. An unchanged content hash short-circuits;
// otherwise the document row is upserted and its chunks fully rewritten.
func (ix *Indexer) IndexFile(path, level, category string) (string, error) {
	hash, err := fileHash(path)
	if err != nil {
		return "", err
	}

	docID := docIDFor(path, level, category)

	var existing models.Document
	found := true
	if err := ix.db.Where("doc_id = ?", docID).First(&existing).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
		}
		found = false
	}
	if found && existing.FileHash == hash {
		return OutcomeUnchanged, nil
	}

	pages, pageCount, err := services.ExtractPages(path)
	if err != nil {
		return "", err
	}

	relPath := path
	if rel, rerr := filepath.Rel(filepath.Dir(ix.root), path); rerr == nil {
		relPath = rel
	}

	doc := models.Document{
		DocID:          docID,
		FilePath:       relPath,
		Level:          level,
		Category:       category,
		Filename:       filepath.Base(path),
		FileHash:       hash,
		PageCount:      pageCount,
		ExtractedTitle: extractTitle(pages, filepath.Base(path)),
		IndexedAt:      time.Now(),
	}

	if err := ix.Store(doc, pages); err != nil {
		return "", err
	}

	if found {
		return OutcomeUpdated, nil
	}
	return OutcomeNew, nil
}

// Store writes a document, its chunks and its derived metadata in one
// transaction. Chunks are deleted and rewritten so the contiguous 0-based
// chunk_index contract holds after every run.
func (ix *Indexer) Store(doc models.Document, pages []services.PageText) error {
	chunks := services.ChunkPages(pages)

	var full strings.Builder
	for _, p := range pages {
		full.WriteString(p.Text)
		full.WriteString("\n")
	}
	meta := deriveMetadata(full.String(), doc.ExtractedTitle)
	meta.DocID = doc.DocID

	err := ix.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&doc).Error; err != nil {
			return err
		}
		if err := tx.Where("doc_id = ?", doc.DocID).Delete(&models.DocumentChunk{}).Error; err != nil {
			return err
		}
		for i, chunk := range chunks {
			row := models.DocumentChunk{
				ChunkID:    fmt.Sprintf("%s_chunk_%d", doc.DocID, i),
				DocID:      doc.DocID,
				ChunkIndex: i,
				Content:    chunk.Text,
				PageNumber: chunk.Page,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{UpdateAll: true}).Create(&meta).Error
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	return nil
}

func fileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// docIDFor builds the deterministic LEVEL_category_filename id.
func docIDFor(path, level, category string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ReplaceAll(fmt.Sprintf("%s_%s_%s", level, category, stem), " ", "_")
}
