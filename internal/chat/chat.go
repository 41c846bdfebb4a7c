// Package chat holds study conversations about a flashcard set.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/prompt"
	"github.com/monetadev/moneta/internal/retrieval"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/rs/zerolog"
)

// Retriever finds user-scoped context chunks.
type Retriever interface {
	Retrieve(ctx context.Context, req retrieval.Request) ([]vectorstore.Chunk, error)
}

// Config controls the Service.
type Config struct {
	Threshold   float64
	TopK        int
	MaxTokens   int
	Temperature float64
}

// DefaultConfig returns the standard chat settings.
func DefaultConfig() Config {
	return Config{Threshold: 0.6, TopK: 5, MaxTokens: 1024, Temperature: 0.7}
}

// Service answers chat messages.
type Service struct {
	provider  llm.Provider
	retriever Retriever
	sets      study.FlashcardSetRepository
	memory    Memory
	config    Config
	log       zerolog.Logger
}

// New creates a Service.
func New(provider llm.Provider, retriever Retriever, sets study.FlashcardSetRepository, memory Memory, cfg Config, log zerolog.Logger) *Service {
	return &Service{
		provider:  provider,
		retriever: retriever,
		sets:      sets,
		memory:    memory,
		config:    cfg,
		log:       log,
	}
}

// Chat sends message in the conversation about setID and returns the reply.
// Conversations are keyed per user, so two users never share one.
func (s *Service) Chat(ctx context.Context, conversationID string, setID uuid.UUID, message string) (string, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return "", err
	}
	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message is empty")
	}
	key := owner.String() + ":" + setID.String() + ":" + conversationID

	conv, err := s.memory.Load(ctx, key)
	if err != nil {
		return "", err
	}
	if conv.System == "" {
		conv.System, err = s.seed(ctx, owner, setID)
		if err != nil {
			return "", err
		}
		if err := s.memory.SetSystem(ctx, key, conv.System); err != nil {
			return "", err
		}
	}

	chunks, err := s.retriever.Retrieve(ctx, retrieval.Request{
		Query:     message,
		Threshold: s.config.Threshold,
		TopK:      s.config.TopK,
	})
	if err != nil {
		return "", err
	}
	content := message
	if len(chunks) > 0 {
		content += "\n\nContext from my documents:\n" + retrieval.JoinChunks(chunks)
	}

	msgs := append(conv.Messages, llm.Message{Role: llm.RoleUser, Content: content})
	resp, err := s.provider.Generate(llm.WithPurpose(ctx, llm.PurposeChat), llm.Request{
		System:      conv.System,
		Messages:    msgs,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat reply: %w", err)
	}
	reply := strings.TrimSpace(resp.Text())

	err = s.memory.Append(ctx, key,
		llm.Message{Role: llm.RoleUser, Content: message},
		llm.Message{Role: llm.RoleAssistant, Content: reply},
	)
	if err != nil {
		return "", err
	}

	s.log.Debug().
		Str("conversation", conversationID).
		Int("history", len(conv.Messages)).
		Int("context", len(chunks)).
		Msg("chat reply")
	return reply, nil
}

// Reset forgets a conversation.
func (s *Service) Reset(ctx context.Context, conversationID string, setID uuid.UUID) error {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return err
	}
	return s.memory.Clear(ctx, owner.String()+":"+setID.String()+":"+conversationID)
}

func (s *Service) seed(ctx context.Context, owner, setID uuid.UUID) (string, error) {
	set, err := s.sets.FindByID(ctx, setID)
	if err != nil {
		return "", err
	}
	if set.AuthorID != owner && !set.IsPublic {
		return "", study.NotFound(study.KindFlashcardSet, setID)
	}
	return prompt.Render(prompt.ChatSystem, prompt.Vars{
		"title":       set.Title,
		"description": set.Description,
		"flashcards":  set.FlashcardLines(),
	})
}
