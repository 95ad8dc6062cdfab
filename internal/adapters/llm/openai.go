// Package llm provides the content generators: an OpenAI-backed one and a
// template fallback used when no API key is configured or a completion
// cannot be parsed.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/tradeup/x-engager/internal/core/domain"
	"github.com/tradeup/x-engager/internal/core/ports"
)

const (
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 60 * time.Second

	baseBackoff = 2 * time.Second
	maxBackoff  = 32 * time.Second
)

var ErrAPIKeyNotSet = errors.New("OpenAI API key not set")

// ErrNotRelevant is returned when the model judges a tweet unrelated to
// Pokémon cards; callers skip that tweet instead of replying off topic.
var ErrNotRelevant = errors.New("tweet not related to Pokémon cards")

type Config struct {
	APIKey      string
	Model       string
	MaxRetries  int
	Temperature float64
}

// OpenAIGenerator implements ports.Generator against the Chat Completions
// API. Rate-limit responses retry with exponential backoff; parse failures
// fall through to the template generator.
type OpenAIGenerator struct {
	logger      *slog.Logger
	client      openai.Client
	model       string
	maxRetries  int
	temperature float64
	timeout     time.Duration
	fallback    *TemplateGenerator
}

func NewOpenAIGenerator(logger *slog.Logger, cfg Config) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, ErrAPIKeyNotSet
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.9
	}

	return &OpenAIGenerator{
		logger:      logger,
		client:      openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:       cfg.Model,
		maxRetries:  cfg.MaxRetries,
		temperature: cfg.Temperature,
		timeout:     defaultTimeout,
		fallback:    NewTemplateGenerator(),
	}, nil
}

func (g *OpenAIGenerator) GeneratePost(ctx context.Context, topic string) (domain.GeneratedPost, error) {
	response, err := g.complete(ctx, postPrompt(topic))
	if err != nil {
		g.logger.Warn("completion failed, using template fallback", "topic", topic, "error", err)
		return g.fallback.GeneratePost(ctx, topic)
	}

	post, err := parsePost(response, topic)
	if err != nil {
		g.logger.Warn("unparseable completion, using template fallback", "topic", topic, "error", err)
		return g.fallback.GeneratePost(ctx, topic)
	}
	return post, nil
}

func (g *OpenAIGenerator) GenerateReply(ctx context.Context, tweet domain.SourceTweet) (string, error) {
	response, err := g.complete(ctx, replyPrompt(tweet))
	if err != nil {
		return "", err
	}
	reply, ok := parseReply(response)
	if !ok {
		return "", ErrNotRelevant
	}
	return reply, nil
}

// complete runs one chat completion, retrying 429s with exponential backoff.
func (g *OpenAIGenerator) complete(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(math.Pow(2, float64(attempt-1))) * baseBackoff
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
		}

		completion, err := g.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Model: shared.ChatModel(g.model),
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.UserMessage(prompt),
			},
			Temperature: openai.Float(g.temperature),
		})
		if err != nil {
			lastErr = err
			if isRateLimitError(err) {
				continue
			}
			return "", fmt.Errorf("chat completion: %w", err)
		}

		if len(completion.Choices) == 0 {
			return "", fmt.Errorf("no completion choices returned")
		}
		return completion.Choices[0].Message.Content, nil
	}

	return "", fmt.Errorf("%w: %v", domain.ErrRateLimited, lastErr)
}

func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}

var _ ports.Generator = (*OpenAIGenerator)(nil)
