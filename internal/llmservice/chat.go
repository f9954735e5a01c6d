package llmservice

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"

	"document-qa/internal/config"
)

// ChatGenerator answers through any OpenAI-compatible chat endpoint.
type ChatGenerator struct {
	llm llms.Model
	cfg config.GenConfig
}

// NewChatGenerator builds a langchaingo OpenAI client from cfg.
func NewChatGenerator(cfg config.GenConfig) (*ChatGenerator, error) {
	llm, err := openai.New(
		openai.WithBaseURL(cfg.BaseURL),
		openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
		openai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, err
	}
	return NewChatGeneratorWithModel(llm, cfg), nil
}

// NewChatGeneratorWithModel wraps an existing langchaingo model.
func NewChatGeneratorWithModel(llm llms.Model, cfg config.GenConfig) *ChatGenerator {
	return &ChatGenerator{llm: llm, cfg: cfg}
}

// Generate sends the answer prompt as a single human message. The request is
// bounded by the configured timeout in addition to ctx.
func (g *ChatGenerator) Generate(ctx context.Context, question, docContext string) (string, error) {
	if g.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.cfg.Timeout)
		defer cancel()
	}

	msgContent := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeHuman, BuildPrompt(question, docContext)),
	}

	log.Debug().Str("model", g.cfg.Model).Msg("Generating content")
	res, err := g.llm.GenerateContent(ctx, msgContent,
		llms.WithTemperature(g.cfg.Temperature),
		llms.WithTopP(g.cfg.TopP),
		llms.WithMaxTokens(g.cfg.MaxTokens),
	)
	if err != nil {
		return "", classify(err)
	}
	if len(res.Choices) == 0 {
		return "", errors.New("generation service returned no choices")
	}
	return CleanAnswer(res.Choices[0].Content), nil
}

// Endpoint is the configured base URL.
func (g *ChatGenerator) Endpoint() string {
	return g.cfg.BaseURL
}

// Model is the configured chat model.
func (g *ChatGenerator) Model() string {
	return g.cfg.Model
}
