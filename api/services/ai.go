package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// AIProvider is the interface for AI model providers. The rest of the
// application treats the model as an opaque collaborator behind this
// interface: it receives assembled context and returns text.
type AIProvider interface {
	GenerateText(prompt string, systemPrompt string) (string, error)
	GenerateJSON(prompt string, systemPrompt string) (string, error)
	GetProviderName() string
}

// AnthropicProvider implements Claude AI
type AnthropicProvider struct {
	APIKey string
	Model  string
}

// OpenAIProvider implements OpenAI
type OpenAIProvider struct {
	APIKey string
	Model  string
}

func NewAIProvider(provider, apiKey, model string) AIProvider {
	switch strings.ToLower(provider) {
	case "openai":
		return &OpenAIProvider{APIKey: apiKey, Model: model}
	default:
		return &AnthropicProvider{APIKey: apiKey, Model: model}
	}
}

func postJSON(url string, headers map[string]string, reqBody any) ([]byte, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (%d): %s", resp.StatusCode, string(body))
	}

	return body, nil
}

func (a *AnthropicProvider) GetProviderName() string {
	return "anthropic"
}

func (a *AnthropicProvider) GenerateText(prompt string, systemPrompt string) (string, error) {
	body, err := postJSON("https://api.anthropic.com/v1/messages", map[string]string{
		"x-api-key":         a.APIKey,
		"anthropic-version": "2023-06-01",
	}, map[string]interface{}{
		"model":      a.Model,
		"max_tokens": 4096,
		"system":     systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	})
	if err != nil {
		return "", err
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Content) == 0 {
		return "", fmt.Errorf("no content in response")
	}
	return result.Content[0].Text, nil
}

// GenerateJSON is the same as GenerateText for Anthropic (no special JSON mode)
func (a *AnthropicProvider) GenerateJSON(prompt string, systemPrompt string) (string, error) {
	return a.GenerateText(prompt, systemPrompt)
}

func (o *OpenAIProvider) GetProviderName() string {
	return "openai"
}

func (o *OpenAIProvider) generate(prompt, systemPrompt string, jsonMode bool) (string, error) {
	reqBody := map[string]interface{}{
		"model": o.Model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt},
		},
		"max_tokens": 4096,
	}
	if jsonMode {
		reqBody["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := postJSON("https://api.openai.com/v1/chat/completions", map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", o.APIKey),
	}, reqBody)
	if err != nil {
		return "", err
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}
	return result.Choices[0].Message.Content, nil
}

func (o *OpenAIProvider) GenerateText(prompt string, systemPrompt string) (string, error) {
	return o.generate(prompt, systemPrompt, false)
}

// GenerateJSON is for JSON-formatted responses (like quiz generation)
func (o *OpenAIProvider) GenerateJSON(prompt string, systemPrompt string) (string, error) {
	return o.generate(prompt, systemPrompt, true)
}

// StripCodeFence removes a markdown code fence wrapper from a model reply.
func StripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
