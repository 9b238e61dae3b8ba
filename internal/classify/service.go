// Package classify assigns a document to one of a set of candidate folder
// categories using a chat completion model.
//
// The model is asked for a JSON object {category, confidence, reasoning}.
// ParseResponse turns whatever text comes back into a Result; it is the only
// place that decides whether a category claim is trusted.
package classify

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"

	"docpipe/internal/errs"
	"docpipe/internal/logger"
)

// Classifier assigns a category to document text.
type Classifier interface {
	Classify(ctx context.Context, text string, categories []Category) (*Result, error)
}

// Completer is the part of *openai.Client the service uses.
type Completer interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// ServiceConfig configures the OpenAI-backed classifier.
type ServiceConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Service implements Classifier with the OpenAI chat completion API.
type Service struct {
	client Completer
	config ServiceConfig
	log    zerolog.Logger
}

// NewService creates a classifier using apiKey.
func NewService(apiKey string, config ServiceConfig) (*Service, error) {
	const op = "NewService"

	if apiKey == "" {
		return nil, fmt.Errorf("%s: %w", op, errs.NewValidationError("OPENAI_API_KEY", "OPENAI_API_KEY is required for classification"))
	}
	return NewServiceWithClient(openai.NewClient(apiKey), config), nil
}

// NewServiceWithClient creates a classifier with an explicit client (for testing).
func NewServiceWithClient(client Completer, config ServiceConfig) *Service {
	if config.Model == "" {
		config.Model = openai.GPT4oMini
	}
	if config.MaxTokens == 0 {
		config.MaxTokens = 300
	}
	return &Service{
		client: client,
		config: config,
		log:    logger.WithComponent("classify"),
	}
}

// Classify asks the model for a category and parses its answer.
func (s *Service) Classify(ctx context.Context, text string, categories []Category) (*Result, error) {
	const op = "Classify"

	if strings.TrimSpace(text) == "" {
		return nil, errs.NewValidationError("text", "document has no text to classify")
	}

	log := logger.FromContext(ctx, s.log)
	if len(categories) == 0 {
		log.Warn().Msg("No candidate categories, only Uncategorized is possible")
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       s.config.Model,
		Temperature: s.config.Temperature,
		MaxTokens:   s.config.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: systemPrompt(),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: buildPrompt(text, categories),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%s: chat completion failed: %w", op, err)
	}

	if len(resp.Choices) == 0 {
		return nil, errs.NewParsingError("no response choices from model", nil)
	}

	content := resp.Choices[0].Message.Content
	log.Debug().
		Str("model", s.config.Model).
		Str("response", content).
		Msg("Received classification response")

	result, err := ParseResponse(content, categories)
	if err != nil {
		return nil, err
	}

	ev := log.Info().
		Float64("confidence", result.Confidence).
		Str("reasoning", result.Reasoning)
	if result.Matched() {
		ev = ev.Str("category", *result.CategoryName)
	}
	ev.Msg("Document classified")

	return result, nil
}
