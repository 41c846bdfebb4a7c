package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/monetadev/moneta/internal/llm"
	"github.com/redis/go-redis/v9"
)

// DefaultMaxMessages is how many messages a conversation remembers.
const DefaultMaxMessages = 100

// Conversation is the remembered state of one chat.
type Conversation struct {
	System   string
	Messages []llm.Message
}

// Memory stores conversations. Implementations keep at most their
// configured number of most recent messages per conversation.
type Memory interface {
	Load(ctx context.Context, id string) (Conversation, error)
	SetSystem(ctx context.Context, id, system string) error
	Append(ctx context.Context, id string, msgs ...llm.Message) error
	Clear(ctx context.Context, id string) error
}

// InProcessMemory keeps conversations in a map.
type InProcessMemory struct {
	mu    sync.Mutex
	max   int
	convs map[string]*Conversation
}

// NewInProcessMemory creates an InProcessMemory. max <= 0 uses
// DefaultMaxMessages.
func NewInProcessMemory(max int) *InProcessMemory {
	if max <= 0 {
		max = DefaultMaxMessages
	}
	return &InProcessMemory{max: max, convs: make(map[string]*Conversation)}
}

func (m *InProcessMemory) Load(_ context.Context, id string) (Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.convs[id]
	if !ok {
		return Conversation{}, nil
	}
	out := Conversation{System: c.System, Messages: make([]llm.Message, len(c.Messages))}
	copy(out.Messages, c.Messages)
	return out, nil
}

func (m *InProcessMemory) SetSystem(_ context.Context, id, system string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.get(id).System = system
	return nil
}

func (m *InProcessMemory) Append(_ context.Context, id string, msgs ...llm.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.get(id)
	c.Messages = append(c.Messages, msgs...)
	if over := len(c.Messages) - m.max; over > 0 {
		c.Messages = append([]llm.Message(nil), c.Messages[over:]...)
	}
	return nil
}

func (m *InProcessMemory) Clear(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.convs, id)
	return nil
}

func (m *InProcessMemory) get(id string) *Conversation {
	c, ok := m.convs[id]
	if !ok {
		c = &Conversation{}
		m.convs[id] = c
	}
	return c
}

// RedisMemory keeps each conversation as a string key for the system prompt
// and a capped list of JSON-encoded messages.
type RedisMemory struct {
	client *redis.Client
	prefix string
	max    int
}

// NewRedisMemory creates a RedisMemory. max <= 0 uses DefaultMaxMessages.
func NewRedisMemory(client *redis.Client, max int) *RedisMemory {
	if max <= 0 {
		max = DefaultMaxMessages
	}
	return &RedisMemory{client: client, prefix: "moneta:chat:", max: max}
}

type storedMessage struct {
	Role    llm.Role `json:"role"`
	Content string   `json:"content"`
}

func (m *RedisMemory) systemKey(id string) string   { return m.prefix + id + ":system" }
func (m *RedisMemory) messagesKey(id string) string { return m.prefix + id + ":messages" }

func (m *RedisMemory) Load(ctx context.Context, id string) (Conversation, error) {
	var c Conversation
	system, err := m.client.Get(ctx, m.systemKey(id)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return c, fmt.Errorf("load chat system prompt: %w", err)
	}
	c.System = system

	raw, err := m.client.LRange(ctx, m.messagesKey(id), 0, -1).Result()
	if err != nil {
		return c, fmt.Errorf("load chat messages: %w", err)
	}
	for _, r := range raw {
		var sm storedMessage
		if err := json.Unmarshal([]byte(r), &sm); err != nil {
			return c, fmt.Errorf("decode chat message: %w", err)
		}
		c.Messages = append(c.Messages, llm.Message{Role: sm.Role, Content: sm.Content})
	}
	return c, nil
}

func (m *RedisMemory) SetSystem(ctx context.Context, id, system string) error {
	return m.client.Set(ctx, m.systemKey(id), system, 0).Err()
}

func (m *RedisMemory) Append(ctx context.Context, id string, msgs ...llm.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	values := make([]any, len(msgs))
	for i, msg := range msgs {
		b, err := json.Marshal(storedMessage{Role: msg.Role, Content: msg.Content})
		if err != nil {
			return err
		}
		values[i] = b
	}

	key := m.messagesKey(id)
	_, err := m.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, values...)
		p.LTrim(ctx, key, int64(-m.max), -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append chat messages: %w", err)
	}
	return nil
}

func (m *RedisMemory) Clear(ctx context.Context, id string) error {
	return m.client.Del(ctx, m.systemKey(id), m.messagesKey(id)).Err()
}
