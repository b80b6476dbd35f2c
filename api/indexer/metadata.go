package indexer

import (
	"strings"
	"unicode"

	"github.com/local/studyhub/api/models"
	"github.com/local/studyhub/api/services"
)

// technicalKeywords are the data-science terms scanned for when deriving
// document keywords.
var technicalKeywords = []string{
	"regression", "classification", "clustering", "neural", "deep learning",
	"cnn", "rnn", "lstm", "transformer", "gradient", "optimization",
	"numpy", "pandas", "scikit-learn", "tensorflow", "pytorch",
	"supervised", "unsupervised", "reinforcement", "probability",
	"statistics", "variance", "covariance", "distribution",
}

var topicBuckets = []struct {
	topic    string
	keywords []string
}{
	{"Deep Learning", []string{"neural", "deep", "cnn", "rnn"}},
	{"Machine Learning", []string{"regression", "classification"}},
	{"Python", []string{"numpy", "pandas", "python"}},
	{"Statistics", []string{"probability", "statistics"}},
}

// deriveMetadata extracts keywords, topic buckets, a difficulty guess and a
// reading-duration estimate (250 words per minute, floor of 10) from the
// document text.
func deriveMetadata(content, title string) models.DocumentMetadata {
	lower := strings.ToLower(content)

	var keywords []string
	for _, kw := range technicalKeywords {
		if strings.Contains(lower, kw) {
			keywords = append(keywords, kw)
			if len(keywords) == 10 {
				break
			}
		}
	}

	var topics []string
	for _, bucket := range topicBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, bucket.topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		topics = []string{"General"}
	}

	head := lower
	if len(head) > 500 {
		head = head[:500]
	}
	difficulty := "intermediate"
	titleLower := strings.ToLower(title)
	switch {
	case strings.Contains(titleLower, "advanced") || strings.Contains(head, "expert"):
		difficulty = "advanced"
	case strings.Contains(titleLower, "introduction") || strings.Contains(head, "basics"):
		difficulty = "beginner"
	}

	minutes := len(strings.Fields(content)) / 250
	if minutes < 10 {
		minutes = 10
	}

	return models.DocumentMetadata{
		Keywords:         strings.Join(keywords, ","),
		Topics:           strings.Join(topics, ","),
		Difficulty:       difficulty,
		EstimatedMinutes: minutes,
	}
}

var titleMarkers = []string{"chapitre", "chapter", "cours", "introduction"}

// extractTitle looks for a plausible title line in the first pages, falling
// back to a cleaned-up filename.
func extractTitle(pages []services.PageText, filename string) string {
	var head string
	if len(pages) > 0 {
		head = pages[0].Text
	}

	lines := strings.Split(head, "\n")
	if len(lines) > 20 {
		lines = lines[:20]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) <= 10 || len(line) >= 100 {
			continue
		}
		if line == strings.ToUpper(line) && strings.ContainsFunc(line, unicode.IsLetter) {
			return line
		}
		lower := strings.ToLower(line)
		for _, marker := range titleMarkers {
			if strings.Contains(lower, marker) {
				return line
			}
		}
	}

	stem := strings.TrimSuffix(filename, ".pdf")
	stem = strings.ReplaceAll(stem, "_", " ")
	return titleCase(stem)
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}
