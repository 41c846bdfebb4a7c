// Package pipeline is the public operation surface of the content pipeline.
// It wires the ingestor, retriever, engines and repositories together and
// owns the persistence handoff.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/attempt"
	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/chat"
	"github.com/monetadev/moneta/internal/generation"
	"github.com/monetadev/moneta/internal/grading"
	"github.com/monetadev/moneta/internal/ingest"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/retrieval"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/rs/zerolog"
)

// Deps are the collaborators of a Service. Zero-valued configs use their
// package defaults; a nil Memory keeps chats in process.
type Deps struct {
	Provider llm.Provider
	Embedder llm.Embedder
	Vectors  vectorstore.Store

	Sets     study.FlashcardSetRepository
	Quizzes  study.QuizRepository
	Attempts study.QuizAttemptRepository

	Memory chat.Memory

	Ingest     *ingest.Config
	Generation *generation.Config
	Grading    *grading.Config
	Chat       *chat.Config

	Log zerolog.Logger
}

// Service exposes every pipeline operation.
type Service struct {
	ingestor  *ingest.Ingestor
	generator *generation.Engine
	grader    *grading.Grader
	attempts  *attempt.Reconciler
	chat      *chat.Service
	sets      study.FlashcardSetRepository
	quizzes   study.QuizRepository
	log       zerolog.Logger
}

// New builds a Service.
func New(d Deps) *Service {
	ingestCfg := ingest.DefaultConfig()
	if d.Ingest != nil {
		ingestCfg = *d.Ingest
	}
	genCfg := generation.DefaultConfig()
	if d.Generation != nil {
		genCfg = *d.Generation
	}
	gradeCfg := grading.DefaultConfig()
	if d.Grading != nil {
		gradeCfg = *d.Grading
	}
	chatCfg := chat.DefaultConfig()
	if d.Chat != nil {
		chatCfg = *d.Chat
	}
	memory := d.Memory
	if memory == nil {
		memory = chat.NewInProcessMemory(chat.DefaultMaxMessages)
	}

	ingestor := ingest.New(d.Vectors, d.Embedder, ingestCfg, d.Log.With().Str("component", "ingest").Logger())
	retriever := retrieval.New(d.Vectors, d.Embedder, d.Log.With().Str("component", "retrieval").Logger())

	return &Service{
		ingestor:  ingestor,
		generator: generation.New(d.Provider, retriever, ingestor, d.Sets, genCfg, d.Log.With().Str("component", "generation").Logger()),
		grader:    grading.New(d.Provider, retriever, d.Quizzes, d.Sets, gradeCfg, d.Log.With().Str("component", "grading").Logger()),
		attempts:  attempt.New(d.Attempts, d.Quizzes, d.Sets, d.Log.With().Str("component", "attempt").Logger()),
		chat:      chat.New(d.Provider, retriever, d.Sets, memory, chatCfg, d.Log.With().Str("component", "chat").Logger()),
		sets:      d.Sets,
		quizzes:   d.Quizzes,
		log:       d.Log,
	}
}

// EmbedDocument indexes a document for the current user and returns its
// original filename.
func (s *Service) EmbedDocument(ctx context.Context, doc ingest.Document) (string, error) {
	return s.ingestor.EmbedDocument(ctx, doc)
}

// DeleteDocumentEmbedding removes a document's chunks.
func (s *Service) DeleteDocumentEmbedding(ctx context.Context, docID string) (int, error) {
	return s.ingestor.DeleteDocumentEmbedding(ctx, docID)
}

// GenerateFlashcardSet generates a flashcard set without saving it.
func (s *Service) GenerateFlashcardSet(ctx context.Context, opts generation.FlashcardOptions) (*study.GeneratedFlashcardSet, error) {
	return s.generator.GenerateFlashcardSet(ctx, opts)
}

// GenerateQuiz generates a quiz without saving it.
func (s *Service) GenerateQuiz(ctx context.Context, opts generation.QuizOptions) (*study.GeneratedQuiz, error) {
	return s.generator.GenerateQuiz(ctx, opts)
}

// GradeQuiz grades a submission with the model and records the attempt.
func (s *Service) GradeQuiz(ctx context.Context, input study.AttemptInput) (*attempt.Result, error) {
	graded, quiz, err := s.grader.Grade(ctx, input)
	if err != nil {
		return nil, err
	}
	return s.attempts.FromGraded(ctx, graded, quiz.ID)
}

// CheckQuiz grades a submission against the stored answer key, without the
// model, and records the attempt.
func (s *Service) CheckQuiz(ctx context.Context, input study.AttemptInput) (*attempt.Result, error) {
	return s.attempts.FromInput(ctx, input)
}

// Attempts exposes attempt history queries.
func (s *Service) Attempts() *attempt.Reconciler {
	return s.attempts
}

// Chat answers a study chat message about a flashcard set.
func (s *Service) Chat(ctx context.Context, conversationID string, setID uuid.UUID, message string) (string, error) {
	return s.chat.Chat(ctx, conversationID, setID, message)
}

// ResetChat forgets a conversation.
func (s *Service) ResetChat(ctx context.Context, conversationID string, setID uuid.UUID) error {
	return s.chat.Reset(ctx, conversationID, setID)
}

// SaveOptions controls SaveFlashcardSet.
type SaveOptions struct {
	Public bool

	// Attach lists documents indexed alongside the set and tagged with its
	// id.
	Attach []ingest.Document
}

// SaveFlashcardSet persists a generated set for the current user. Attached
// documents are indexed first; if indexing or the save fails, chunks
// already written for them are deleted again.
func (s *Service) SaveFlashcardSet(ctx context.Context, g *study.GeneratedFlashcardSet, opts SaveOptions) (*study.FlashcardSet, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	set, err := study.NewFlashcardSetFromGenerated(g, owner)
	if err != nil {
		return nil, err
	}
	set.IsPublic = opts.Public

	var embedded []string
	rollback := func(cause error) error {
		for _, id := range embedded {
			if _, derr := s.ingestor.DeleteDocumentEmbedding(ctx, id); derr != nil {
				s.log.Error().Err(derr).Str("doc", id).Msg("remove chunks of unsaved flashcard set")
				cause = errors.Join(cause, derr)
			}
		}
		return cause
	}

	for _, doc := range opts.Attach {
		if doc.ID == "" {
			doc.ID = uuid.NewString()
		}
		doc.FlashcardSetID = set.ID
		if _, err := s.ingestor.EmbedDocument(ctx, doc); err != nil {
			embedded = append(embedded, doc.ID)
			return nil, rollback(err)
		}
		embedded = append(embedded, doc.ID)
	}

	if err := s.sets.Save(ctx, set); err != nil {
		return nil, rollback(fmt.Errorf("save flashcard set: %w", err))
	}
	s.log.Info().
		Str("set", set.ID.String()).
		Int("flashcards", len(set.Flashcards)).
		Int("documents", len(opts.Attach)).
		Msg("flashcard set saved")
	return set, nil
}

// SaveQuiz persists a generated quiz built from setID for the current user.
func (s *Service) SaveQuiz(ctx context.Context, g *study.GeneratedQuiz, setID uuid.UUID) (*study.Quiz, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := s.FlashcardSet(ctx, setID); err != nil {
		return nil, err
	}
	quiz, err := study.NewQuizFromGenerated(g, owner, setID)
	if err != nil {
		return nil, err
	}
	if err := s.quizzes.Save(ctx, quiz); err != nil {
		return nil, fmt.Errorf("save quiz: %w", err)
	}
	s.log.Info().Str("quiz", quiz.ID.String()).Int("questions", len(quiz.Questions)).Msg("quiz saved")
	return quiz, nil
}

// FlashcardSet returns a set the current user authored or that is public.
func (s *Service) FlashcardSet(ctx context.Context, id uuid.UUID) (*study.FlashcardSet, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	set, err := s.sets.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if set.AuthorID != owner && !set.IsPublic {
		return nil, study.NotFound(study.KindFlashcardSet, id)
	}
	return set, nil
}

// FlashcardSets lists the current user's sets.
func (s *Service) FlashcardSets(ctx context.Context) ([]study.FlashcardSet, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.sets.ListByAuthor(ctx, owner)
}

// Quiz returns a quiz the current user authored, or one whose set is public.
func (s *Service) Quiz(ctx context.Context, id uuid.UUID) (*study.Quiz, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	quiz, err := s.quizzes.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if quiz.AuthorID == owner {
		return quiz, nil
	}
	set, err := s.sets.FindByID(ctx, quiz.FlashcardSetID)
	if err != nil || !set.IsPublic {
		return nil, study.NotFound(study.KindQuiz, id)
	}
	return quiz, nil
}

// Quizzes lists the current user's quizzes.
func (s *Service) Quizzes(ctx context.Context) ([]study.Quiz, error) {
	owner, err := auth.UserID(ctx)
	if err != nil {
		return nil, err
	}
	return s.quizzes.ListByAuthor(ctx, owner)
}
