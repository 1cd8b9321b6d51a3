package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"animerec/internal/metrics"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
	"github.com/tmc/langchaingo/llms"
)

// titleListKey is the single key the model is told to put its titles under.
const titleListKey = "anime_list"

// Recommender turns free-text preferences into candidate anime titles.
type Recommender interface {
	Recommend(ctx context.Context, userInput string) ([]string, error)
}

// LLMRecommender asks a language model for titles. The backing provider is
// whatever llms.Model it was built with.
type LLMRecommender struct {
	model       llms.Model
	provider    string
	temperature float64
	logger      *logrus.Logger
}

type RecommenderConfig struct {
	Model       llms.Model
	Provider    string
	Temperature float64
	Logger      *logrus.Logger
}

func NewLLMRecommender(config *RecommenderConfig) *LLMRecommender {
	if config.Logger == nil {
		config.Logger = logrus.New()
	}
	return &LLMRecommender{
		model:       config.Model,
		provider:    config.Provider,
		temperature: config.Temperature,
		logger:      config.Logger,
	}
}

// Recommend returns the titles the model produced, in its order. The 3-5
// count requested in the prompt is not enforced.
func (r *LLMRecommender) Recommend(ctx context.Context, userInput string) ([]string, error) {
	start := time.Now()
	titles, err := r.recommend(ctx, userInput)
	metrics.RecordLLM(r.provider, Outcome(err), time.Since(start))
	return titles, err
}

func (r *LLMRecommender) recommend(ctx context.Context, userInput string) ([]string, error) {
	r.logger.WithFields(logrus.Fields{
		"provider": r.provider,
		"input":    userInput,
	}).Info("Requesting recommendations...")

	text, err := llms.GenerateFromSinglePrompt(ctx, r.model, BuildPrompt(userInput),
		llms.WithJSONMode(),
		llms.WithTemperature(r.temperature),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s call failed: %w", ErrTransport, r.provider, err)
	}

	titles, err := ParseTitleList(text)
	if err != nil {
		return nil, err
	}

	r.logger.WithFields(logrus.Fields{
		"provider": r.provider,
		"titles":   titles,
	}).Debug("Model returned titles")

	return titles, nil
}

// BuildPrompt embeds the user's text verbatim in the recommendation prompt.
func BuildPrompt(userInput string) string {
	return fmt.Sprintf(`You are an expert anime recommender.
User request: "%s"

Please recommend 3 to 5 anime titles based on the request.
Return ONLY a strictly valid JSON object with a key "%s" containing the titles.
Example: {"%s": ["Naruto", "Bleach"]}
Use English or Romaji titles that are easy to search on AniList.`, userInput, titleListKey, titleListKey)
}

// ParseTitleList extracts the title list from a model reply. Replies wrapped
// in a Markdown code fence are accepted.
func ParseTitleList(text string) ([]string, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &obj); err != nil {
		return nil, fmt.Errorf("%w: reply is not a JSON object: %w (raw: %s)", ErrMalformedPayload, err, snippet(cleaned, 200))
	}

	raw, ok := obj[titleListKey]
	if !ok {
		return nil, fmt.Errorf("%w: reply has no %q key", ErrSchemaMismatch, titleListKey)
	}

	var titles []string
	if err := json.Unmarshal(raw, &titles); err != nil {
		return nil, fmt.Errorf("%w: %q is not a list of strings: %w", ErrSchemaMismatch, titleListKey, err)
	}
	if titles == nil {
		titles = []string{}
	}
	return titles, nil
}

// snippet cuts s to at most n runes for log and error messages.
func snippet(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
