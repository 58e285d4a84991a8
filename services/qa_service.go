package services

import (
	"context"
	"errors"
	"fmt"

	"docqa-backend/internal/ai"
	"docqa-backend/internal/logger"
	"docqa-backend/models"
	"docqa-backend/utils"
)

// Generator produces an answer from a question, grounding passages and the
// prior conversation turns. Implemented by the Gemini client.
type Generator interface {
	Generate(ctx context.Context, question string, passages []string, history []models.ChatMessage) (string, error)
}

// QAService answers questions against the indexed corpus, threading
// conversation memory through each question/answer cycle.
type QAService struct {
	embedder   Embedder
	generator  Generator
	index      VectorIndex
	memory     *MemoryStore
	maxContext int
}

func NewQAService(embedder Embedder, generator Generator, index VectorIndex, memory *MemoryStore, maxContext int) *QAService {
	return &QAService{
		embedder:   embedder,
		generator:  generator,
		index:      index,
		memory:     memory,
		maxContext: maxContext,
	}
}

// Retrieve embeds the query and returns the most relevant chunks, scoped to
// documentIDs when given. Results carry document id and file name for
// citation. Nothing is cached: every call re-embeds and re-queries.
func (s *QAService) Retrieve(ctx context.Context, query string, documentIDs []string) ([]models.ScoredChunk, error) {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	chunks, err := s.index.Search(ctx, vector, s.maxContext, documentIDs)
	if err != nil {
		return nil, err
	}
	return chunks, nil
}

// Answer runs one question/answer cycle: resolve or create the
// conversation, retrieve passages, generate, then append the turn and
// persist. A failed generation leaves the conversation untouched.
func (s *QAService) Answer(ctx context.Context, question, conversationID string, documentIDs []string) (*models.AskResponse, error) {
	conv, resolvedID := s.memory.GetOrCreate(conversationID)

	chunks, err := s.Retrieve(ctx, question, documentIDs)
	if err != nil {
		return nil, err
	}

	passages := make([]string, len(chunks))
	sources := make([]models.Source, len(chunks))
	for i, chunk := range chunks {
		passages[i] = chunk.Text
		sources[i] = models.Source{
			Content: chunk.Text,
			Metadata: models.SourceMetadata{
				DocumentID: chunk.DocumentID,
				FileName:   chunk.FileName,
			},
		}
	}

	history := conv.Messages()

	answer, err := s.generator.Generate(ctx, question, passages, history)
	if err != nil {
		if errors.Is(err, ai.ErrUnavailable) {
			return nil, fmt.Errorf("%w: %v", ErrGenerationUnavailable, err)
		}
		return nil, fmt.Errorf("failed to generate answer: %w", err)
	}

	s.memory.AppendTurn(conv, question, answer)
	logger.Info("Answer generated", "conversation_id", resolvedID,
		"sources", len(sources), "scoped", len(documentIDs) > 0)

	return &models.AskResponse{
		Answer:         utils.FormatForDirection(answer),
		Sources:        sources,
		ConversationID: resolvedID,
		Direction:      utils.Direction(answer),
	}, nil
}

// GetConversation returns the stored history for a conversation id.
func (s *QAService) GetConversation(conversationID string) (*models.ConversationHistory, error) {
	conv, ok := s.memory.Get(conversationID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrConversationNotFound, conversationID)
	}
	return &models.ConversationHistory{
		ConversationID: conversationID,
		ChatHistory:    conv.Messages(),
	}, nil
}

// ListConversations returns all known conversation ids.
func (s *QAService) ListConversations() []string {
	return s.memory.ListIDs()
}
