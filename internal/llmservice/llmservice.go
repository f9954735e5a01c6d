// Package llmservice talks to the remote models that turn retrieved context
// into answers.
package llmservice

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strings"
	"syscall"

	"document-qa/internal/config"
	"document-qa/internal/models"
)

var (
	// ErrUnreachable means the generation service refused or dropped the connection.
	ErrUnreachable = errors.New("cannot connect to generation service")
	// ErrTimeout means the generation request did not finish in time.
	ErrTimeout = errors.New("generation request timed out")
)

// StatusError is returned when the generation service answers with a non-200 status.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generation service returned status %d: %s", e.Code, e.Body)
}

// Generator produces an answer to question grounded in docContext.
type Generator interface {
	Generate(ctx context.Context, question, docContext string) (string, error)
}

const (
	ProviderOllama = "ollama"
	ProviderOpenAI = "openai"
)

// New builds the generator for cfg.Provider. Ollama is the default.
func New(cfg config.GenConfig) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOllama, "":
		return NewOllamaClient(cfg), nil
	case ProviderOpenAI:
		g, err := NewChatGenerator(cfg)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown generation provider %q", cfg.Provider)
	}
}

var thinkRe = regexp.MustCompile(models.ThinkTag)

// BuildPrompt renders the answer prompt for question and the retrieved context.
func BuildPrompt(question, docContext string) string {
	return fmt.Sprintf(models.AnswerPromptTemplate, docContext, question)
}

// CleanAnswer strips reasoning blocks some models emit and trims whitespace.
func CleanAnswer(answer string) string {
	return strings.TrimSpace(thinkRe.ReplaceAllString(answer, ""))
}

// classify maps transport failures onto ErrTimeout and ErrUnreachable.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) && errors.Is(urlErr.Err, net.ErrClosed) {
		return fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return err
}
