package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"document-qa/internal/llmservice"
	"document-qa/internal/models"
)

// Answer responds to question using chunks retrieved from the index. When
// documentID is set the search is limited to that document. nResults <= 0
// uses the service default.
//
// Answer never returns an error: every failure is reported as a
// user-facing message in place of the answer.
func (s *Service) Answer(ctx context.Context, question, documentID string, nResults int) string {
	if strings.TrimSpace(question) == "" {
		return models.MsgInvalidQuestion
	}
	if nResults <= 0 {
		nResults = s.nResults
	}

	results, msg := s.retrieve(ctx, question, documentID, nResults)
	if msg != "" {
		return msg
	}

	docContext := BuildContext(results)
	log.Debug().Int("chunks", len(results)).Int("context_len", len(docContext)).Msg("Found relevant chunks")

	answer, err := s.generator.Generate(ctx, question, docContext)
	if err != nil {
		log.Error().Err(err).Msg("Error generating answer")
		return s.generationFailure(err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return models.MsgEmptyAnswer
	}
	return answer
}

// retrieve returns the ranked chunks for question, or a message explaining
// why there is nothing to answer from.
func (s *Service) retrieve(ctx context.Context, question, documentID string, n int) ([]models.QueryResult, string) {
	count, err := s.index.Count(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Error getting collection count")
		return nil, models.MsgIndexUnavailable
	}
	if count == 0 {
		return nil, models.MsgNoDocuments
	}

	vector, err := s.embedder.EmbedQuery(ctx, question)
	if err != nil {
		log.Error().Err(err).Msg("Error embedding question")
		return nil, fmt.Sprintf(models.MsgQueryFailed, err)
	}

	var where map[string]string
	if documentID != "" {
		where = models.DocumentFilter(documentID)
	}
	log.Debug().Interface("where", where).Int("n_results", n).Msg("Querying index")

	results, err := s.index.Query(ctx, vector, n, where)
	if err != nil {
		log.Error().Err(err).Msg("Error querying index")
		return nil, models.MsgIndexUnavailable
	}
	if len(results) > 0 {
		return results, ""
	}

	if documentID == "" {
		return nil, fmt.Sprintf(models.MsgNoRelevantDocs, question)
	}

	// The scoped search missed. Only check whether other documents would
	// have matched; their content is never used for the answer.
	broad, err := s.index.Query(ctx, vector, n, nil)
	if err != nil {
		log.Error().Err(err).Msg("Error querying index without document filter")
		return nil, models.MsgIndexUnavailable
	}
	if len(broad) > 0 {
		return nil, fmt.Sprintf(models.MsgScopedMiss, documentID)
	}
	return nil, models.MsgNoRelevantContent
}

// BuildContext joins chunk texts in ranked order, separated by a blank line.
func BuildContext(results []models.QueryResult) string {
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return strings.Join(texts, models.ContextSeparator)
}

type describedGenerator interface {
	Endpoint() string
	Model() string
}

func (s *Service) generationFailure(err error) string {
	endpoint, model := "the configured endpoint", "configured"
	if d, ok := s.generator.(describedGenerator); ok {
		endpoint, model = d.Endpoint(), d.Model()
	}

	var statusErr *llmservice.StatusError
	switch {
	case errors.Is(err, llmservice.ErrUnreachable):
		return fmt.Sprintf(models.MsgGenUnreachable, endpoint, model)
	case errors.Is(err, llmservice.ErrTimeout):
		return models.MsgGenTimeout
	case errors.As(err, &statusErr):
		return fmt.Sprintf(models.MsgGenStatus, statusErr.Code, model)
	default:
		return fmt.Sprintf(models.MsgGenFailed, err)
	}
}
