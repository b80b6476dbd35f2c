package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	ModelProvider     string
	AnthropicAPIKey   string
	AnthropicModel    string
	OpenAIAPIKey      string
	OpenAIModel       string
	EmbeddingProvider string
	EmbeddingModel    string
	OllamaHost        string
	Port              string
	DBPath            string
	MaterialsPath     string
	MaxUploadSize     int64
	SearchLimit       int
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		ModelProvider:     getEnv("MODEL_PROVIDER", "anthropic"),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:    getEnv("ANTHROPIC_MODEL", "claude-3-5-sonnet-20241022"),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		EmbeddingProvider: getEnv("EMBEDDING_PROVIDER", "openai"),
		EmbeddingModel:    getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		OllamaHost:        getEnv("OLLAMA_HOST", "http://localhost:11434"),
		Port:              getEnv("PORT", "8080"),
		DBPath:            getEnv("DB_PATH", "./storage/studyhub.db"),
		MaterialsPath:     getEnv("MATERIALS_PATH", "./data/course_materials"),
		MaxUploadSize:     52428800, // 50MB default
		SearchLimit:       getEnvInt("SEARCH_LIMIT", 6),
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
