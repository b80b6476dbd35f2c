package retrieval

import (
	"strings"
	"sync"
	"unicode"

	"github.com/local/studyhub/api/services"
)

// Scorer rates how relevant a chunk's content is to a query. Higher is
// better; zero or below means "not a match".
type Scorer interface {
	Score(query, content string) float64
}

// TokenOverlapScorer is the lexical baseline: the fraction of query tokens
// present in the chunk, with a bonus when the whole query appears verbatim.
type TokenOverlapScorer struct{}

func (TokenOverlapScorer) Score(query, content string) float64 {
	queryTokens := tokenize(query)
	if len(queryTokens) == 0 {
		return 0
	}

	contentTokens := make(map[string]struct{})
	for _, tok := range tokenize(content) {
		contentTokens[tok] = struct{}{}
	}

	hits := 0
	for _, tok := range queryTokens {
		if _, ok := contentTokens[tok]; ok {
			hits++
		}
	}

	score := float64(hits) / float64(len(queryTokens))
	if len(queryTokens) > 1 && strings.Contains(strings.ToLower(content), strings.ToLower(strings.TrimSpace(query))) {
		score += 0.25
	}
	return score
}

func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// EmbeddingScorer scores by cosine similarity of embeddings. It is the
// pluggable vector extension; the query embedding is cached so one search
// costs one query-side call.
type EmbeddingScorer struct {
	Provider services.EmbeddingProvider

	mu         sync.Mutex
	lastQuery  string
	lastVector []float64
}

func NewEmbeddingScorer(provider services.EmbeddingProvider) *EmbeddingScorer {
	return &EmbeddingScorer{Provider: provider}
}

func (e *EmbeddingScorer) Score(query, content string) float64 {
	queryVec, err := e.queryVector(query)
	if err != nil {
		return 0
	}
	contentVec, err := e.Provider.Embed(content)
	if err != nil {
		return 0
	}
	return services.CosineSimilarity(queryVec, contentVec)
}

func (e *EmbeddingScorer) queryVector(query string) ([]float64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if query == e.lastQuery && e.lastVector != nil {
		return e.lastVector, nil
	}
	vec, err := e.Provider.Embed(query)
	if err != nil {
		return nil, err
	}
	e.lastQuery = query
	e.lastVector = vec
	return vec, nil
}
