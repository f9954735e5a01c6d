package llmservice

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"document-qa/internal/config"
)

const generatePath = "/api/generate"

// OllamaClient calls Ollama's /api/generate endpoint without streaming.
type OllamaClient struct {
	url    string
	cfg    config.GenConfig
	client *http.Client
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	TopP        float64 `json:"top_p"`
	NumPredict  int     `json:"num_predict"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// NewOllamaClient creates a client bounded by cfg.Timeout.
func NewOllamaClient(cfg config.GenConfig) *OllamaClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &OllamaClient{
		url:    strings.TrimSuffix(cfg.BaseURL, "/") + generatePath,
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
	}
}

// Generate sends the answer prompt and returns the cleaned completion.
func (c *OllamaClient) Generate(ctx context.Context, question, docContext string) (string, error) {
	payload := generateRequest{
		Model:  c.cfg.Model,
		Prompt: BuildPrompt(question, docContext),
		Stream: false,
		Options: generateOptions{
			Temperature: c.cfg.Temperature,
			TopP:        c.cfg.TopP,
			NumPredict:  c.cfg.MaxTokens,
		},
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	log.Debug().Str("url", c.url).Str("model", c.cfg.Model).Int("prompt_len", len(payload.Prompt)).
		Msg("Requesting completion")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		if cerr := classify(err); cerr != err {
			return "", cerr
		}
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}
	return CleanAnswer(out.Response), nil
}

// Endpoint is the URL requests are sent to.
func (c *OllamaClient) Endpoint() string {
	return c.url
}

// Model is the model name sent with each request.
func (c *OllamaClient) Model() string {
	return c.cfg.Model
}
