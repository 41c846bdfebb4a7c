package chat

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/monetadev/moneta/internal/auth"
	"github.com/monetadev/moneta/internal/llm"
	"github.com/monetadev/moneta/internal/retrieval"
	"github.com/monetadev/moneta/internal/store"
	"github.com/monetadev/moneta/internal/study"
	"github.com/monetadev/moneta/internal/vectorstore"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*Service, *llm.MockProvider, *study.FlashcardSet, context.Context) {
	t.Helper()
	db, err := store.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	user := uuid.New()
	set := &study.FlashcardSet{
		Title:       "Genetics",
		Description: "Basics of heredity",
		AuthorID:    user,
		Flashcards: []study.Flashcard{
			{ID: uuid.New(), Position: 1, Term: "Allele", Definition: "A variant form of a gene"},
		},
	}
	require.NoError(t, db.FlashcardSets().Save(context.Background(), set))

	emb := llm.NewHashEmbedder(128)
	vectors := vectorstore.NewMemory()
	vecs, err := emb.Embed(context.Background(), []string{"dominant alleles mask recessive alleles"})
	require.NoError(t, err)
	require.NoError(t, vectors.Upsert(context.Background(), []vectorstore.Chunk{{
		ID:        "c1",
		Text:      "dominant alleles mask recessive alleles",
		Embedding: vecs[0],
		Metadata:  map[string]string{vectorstore.KeyOwner: user.String(), vectorstore.KeySourceDoc: "d1"},
	}}))

	provider := llm.NewMockProvider()
	svc := New(provider, retrieval.New(vectors, emb, zerolog.Nop()), db.FlashcardSets(), NewInProcessMemory(4), DefaultConfig(), zerolog.Nop())
	return svc, provider, set, auth.WithUser(context.Background(), user)
}

func TestChat_SeedsAndRemembers(t *testing.T) {
	svc, provider, set, ctx := setup(t)
	provider.AddText("An allele is a gene variant.")
	provider.AddText("Dominant alleles mask recessive ones.")

	reply, err := svc.Chat(ctx, "c", set.ID, "What is an allele?")
	require.NoError(t, err)
	assert.Equal(t, "An allele is a gene variant.", reply)

	first := provider.Calls[0]
	assert.Contains(t, first.System, `flashcard set "Genetics"`)
	assert.Contains(t, first.System, "Position: 1, Term: Allele")
	require.Len(t, first.Messages, 1)

	_, err = svc.Chat(ctx, "c", set.ID, "dominant alleles mask recessive alleles")
	require.NoError(t, err)
	second := provider.Calls[1]
	assert.Equal(t, first.System, second.System)
	require.Len(t, second.Messages, 3)
	assert.Equal(t, "What is an allele?", second.Messages[0].Content)
	assert.Equal(t, llm.RoleAssistant, second.Messages[1].Role)
	assert.Contains(t, second.Messages[2].Content, "Context from my documents")
}

func TestChat_MemoryIsCapped(t *testing.T) {
	svc, provider, set, ctx := setup(t)
	for i := 0; i < 3; i++ {
		provider.AddText(fmt.Sprintf("reply %d", i))
		_, err := svc.Chat(ctx, "c", set.ID, fmt.Sprintf("question %d", i))
		require.NoError(t, err)
	}
	last, _ := provider.LastCall()
	assert.Len(t, last.Messages, 5, "four remembered messages plus the new one")
	assert.Equal(t, "question 0", last.Messages[0].Content)
}

func TestChat_ConversationsArePerUser(t *testing.T) {
	svc, provider, set, ctx := setup(t)
	provider.AddText("hi")
	_, err := svc.Chat(ctx, "c", set.ID, "hello")
	require.NoError(t, err)

	other := auth.WithUser(context.Background(), uuid.New())
	_, err = svc.Chat(other, "c", set.ID, "hello")
	var nf *study.ReferenceNotFoundError
	assert.True(t, errors.As(err, &nf), "private set is hidden from other users")
}

func TestChat_Reset(t *testing.T) {
	svc, provider, set, ctx := setup(t)
	provider.AddText("one")
	provider.AddText("two")
	_, err := svc.Chat(ctx, "c", set.ID, "first")
	require.NoError(t, err)
	require.NoError(t, svc.Reset(ctx, "c", set.ID))
	_, err = svc.Chat(ctx, "c", set.ID, "second")
	require.NoError(t, err)
	last, _ := provider.LastCall()
	assert.Len(t, last.Messages, 1)
}

func TestChat_Errors(t *testing.T) {
	svc, _, set, ctx := setup(t)
	_, err := svc.Chat(ctx, "c", set.ID, "   ")
	assert.Error(t, err)
	_, err = svc.Chat(context.Background(), "c", set.ID, "hi")
	assert.ErrorIs(t, err, auth.ErrUnauthenticated)

	_, err = svc.Chat(ctx, "c", uuid.New(), "hi")
	var nf *study.ReferenceNotFoundError
	assert.True(t, errors.As(err, &nf))
}

func TestInProcessMemory(t *testing.T) {
	ctx := context.Background()
	m := NewInProcessMemory(2)
	require.NoError(t, m.Append(ctx, "a", llm.Message{Content: "1"}, llm.Message{Content: "2"}, llm.Message{Content: "3"}))
	c, err := m.Load(ctx, "a")
	require.NoError(t, err)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, "2", c.Messages[0].Content)

	c.Messages[0].Content = "changed"
	again, _ := m.Load(ctx, "a")
	assert.Equal(t, "2", again.Messages[0].Content)

	empty, err := m.Load(ctx, "missing")
	require.NoError(t, err)
	assert.Empty(t, empty.Messages)
}

func TestRedisMemory(t *testing.T) {
	url := os.Getenv("MONETA_TEST_REDIS_URL")
	if url == "" {
		t.Skip("MONETA_TEST_REDIS_URL not set")
	}
	opts, err := redis.ParseURL(url)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	m := NewRedisMemory(client, 2)
	id := uuid.NewString()
	t.Cleanup(func() { m.Clear(ctx, id) })

	require.NoError(t, m.SetSystem(ctx, id, "sys"))
	require.NoError(t, m.Append(ctx, id,
		llm.Message{Role: llm.RoleUser, Content: "1"},
		llm.Message{Role: llm.RoleAssistant, Content: "2"},
		llm.Message{Role: llm.RoleUser, Content: "3"},
	))
	c, err := m.Load(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "sys", c.System)
	require.Len(t, c.Messages, 2)
	assert.Equal(t, llm.RoleAssistant, c.Messages[0].Role)
	assert.Equal(t, "3", c.Messages[1].Content)
}
