package services

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// EmbeddingProvider is the interface for embedding providers
type EmbeddingProvider interface {
	Embed(text string) ([]float64, error)
	GetDimension() int
	GetModelName() string
}

// OpenAIEmbedding implements OpenAI embeddings
type OpenAIEmbedding struct {
	APIKey    string
	Model     string
	Dimension int
}

// OllamaEmbedding implements Ollama local embeddings
type OllamaEmbedding struct {
	Host      string
	Model     string
	Dimension int
}

func NewEmbeddingProvider(provider, apiKey, model, ollamaHost string) EmbeddingProvider {
	switch strings.ToLower(provider) {
	case "ollama":
		return &OllamaEmbedding{
			Host:      ollamaHost,
			Model:     model,
			Dimension: 768, // nomic-embed-text dimension
		}
	default:
		dim := 1536
		if model == "text-embedding-3-large" {
			dim = 3072
		}
		if model == "" {
			model = "text-embedding-3-small"
		}
		return &OpenAIEmbedding{
			APIKey:    apiKey,
			Model:     model,
			Dimension: dim,
		}
	}
}

func (o *OpenAIEmbedding) GetDimension() int {
	return o.Dimension
}

func (o *OpenAIEmbedding) GetModelName() string {
	return o.Model
}

func (o *OpenAIEmbedding) Embed(text string) ([]float64, error) {
	body, err := postJSON("https://api.openai.com/v1/embeddings", map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", o.APIKey),
	}, map[string]interface{}{
		"input": text,
		"model": o.Model,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []struct {
			Embedding []float64 `json:"embedding"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Data) == 0 {
		return nil, fmt.Errorf("no embedding data in response")
	}
	return result.Data[0].Embedding, nil
}

func (ol *OllamaEmbedding) GetDimension() int {
	return ol.Dimension
}

func (ol *OllamaEmbedding) GetModelName() string {
	return ol.Model
}

func (ol *OllamaEmbedding) Embed(text string) ([]float64, error) {
	body, err := postJSON(fmt.Sprintf("%s/api/embeddings", ol.Host), nil, map[string]interface{}{
		"model":  ol.Model,
		"prompt": text,
	})
	if err != nil {
		return nil, err
	}

	var result struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}
	return result.Embedding, nil
}

// CosineSimilarity calculates the cosine similarity between two vectors
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	if normA == 0 || normB == 0 {
		return 0.0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
