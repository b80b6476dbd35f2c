package services

import (
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

const (
	ChunkSize    = 1000 // characters per chunk
	ChunkOverlap = 200  // overlap between chunks
)

// PageText is the extracted text of a single PDF page.
type PageText struct {
	Number int
	Text   string
}

// PageChunk is one retrieval chunk with the page it starts on.
type PageChunk struct {
	Text string
	Page int
}

// ExtractPages extracts text from a PDF file, page by page. Pages that fail
// to decode are skipped so one bad page does not sink the document.
func ExtractPages(filepath string) ([]PageText, int, error) {
	f, r, err := pdf.Open(filepath)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open PDF: %w", err)
	}
	defer f.Close()

	totalPage := r.NumPage()
	var pages []PageText

	for pageIndex := 1; pageIndex <= totalPage; pageIndex++ {
		p := r.Page(pageIndex)
		if p.V.IsNull() {
			continue
		}

		text, err := p.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) == "" {
			continue
		}

		pages = append(pages, PageText{Number: pageIndex, Text: text})
	}

	return pages, totalPage, nil
}

// ChunkPages splits page texts into overlapping chunks, preferring to cut at
// a sentence boundary once past half a chunk. Each chunk records the page it
// starts on so results can cite a page number.
func ChunkPages(pages []PageText) []PageChunk {
	if len(pages) == 0 {
		return nil
	}

	// Flatten while remembering which rune offset each page starts at.
	var builder strings.Builder
	type pageStart struct {
		offset int
		number int
	}
	var starts []pageStart
	offset := 0
	for _, p := range pages {
		starts = append(starts, pageStart{offset: offset, number: p.Number})
		runes := []rune(p.Text)
		builder.WriteString(p.Text)
		builder.WriteString("\n\n")
		offset += len(runes) + 2
	}

	runes := []rune(builder.String())
	pageAt := func(pos int) int {
		page := starts[0].number
		for _, s := range starts {
			if s.offset > pos {
				break
			}
			page = s.number
		}
		return page
	}

	var chunks []PageChunk
	start := 0
	for start < len(runes) {
		end := start + ChunkSize
		if end > len(runes) {
			end = len(runes)
		} else {
			// Cut at the last sentence end if it lands past half a chunk.
			window := string(runes[start:end])
			if cut := strings.LastIndex(window, "."); cut > ChunkSize/2 {
				end = start + len([]rune(window[:cut+1]))
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if len(chunk) > 0 {
			chunks = append(chunks, PageChunk{Text: chunk, Page: pageAt(start)})
		}

		// Move forward, but overlap
		next := end - ChunkOverlap
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
