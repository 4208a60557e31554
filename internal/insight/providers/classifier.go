package providers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/mohammad-safakhou/brandlens/config"
	openai "github.com/sashabaranov/go-openai"
)

const classifierSystemPrompt = `You classify brands into a three-digit industry taxonomy.
100-199 business and finance
200-299 entertainment and media
300-399 science and technology
400-499 health and wellness
500-599 sports
600-999 other consumer categories (for example 901 retail)
Answer with the single most specific code followed by the category name.`

// ChatCompleter is the part of the OpenAI client the classifier uses.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// Classifier asks a chat model for the brand's taxonomy code. It satisfies
// category.Classifier; the answer is free text.
type Classifier struct {
	client ChatCompleter
	model  string
	cfg    config.OpenAIConfig
}

// NewClassifier returns nil when no API key is configured, which makes the
// category resolver fall back to the "all" bucket.
func NewClassifier(cfg config.OpenAIConfig, hc *http.Client) *Classifier {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	if hc != nil {
		oc.HTTPClient = hc
	}
	return NewClassifierWith(openai.NewClientWithConfig(oc), cfg)
}

func NewClassifierWith(c ChatCompleter, cfg config.OpenAIConfig) *Classifier {
	return &Classifier{client: c, model: cfg.Model, cfg: cfg}
}

func (c *Classifier) Classify(ctx context.Context, brand string) (string, error) {
	if c == nil || c.client == nil {
		return "", errNotConfigured
	}
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: classifierSystemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: fmt.Sprintf("Brand: %s", brand)},
		},
		Temperature: 0,
		MaxTokens:   20,
	})
	if err != nil {
		return "", fmt.Errorf("classify %q: %w", brand, err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("classifier returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
