package services

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"docqa-backend/internal/logger"
	"docqa-backend/internal/telemetry"
	"docqa-backend/models"

	"github.com/google/uuid"
)

const conversationFileName = "conversations.json"

// Conversation is one append-only message history. Messages are never
// mutated or removed; the history only grows.
type Conversation struct {
	mu       sync.Mutex
	messages []models.ChatMessage
}

// Messages returns a copy of the history in chronological order.
func (c *Conversation) Messages() []models.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ChatMessage, len(c.messages))
	copy(out, c.messages)
	return out
}

func (c *Conversation) append(humanText, aiText string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages,
		models.ChatMessage{Type: models.MessageTypeHuman, Content: humanText},
		models.ChatMessage{Type: models.MessageTypeAI, Content: aiText},
	)
}

// MemoryStore holds every conversation history, keyed by conversation id,
// and persists them all to one JSON file rewritten after each mutation.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation
	path          string
	metrics       *telemetry.Metrics
}

func NewMemoryStore(dataDir string, metrics *telemetry.Metrics) (*MemoryStore, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	s := &MemoryStore{
		conversations: make(map[string]*Conversation),
		path:          filepath.Join(dataDir, conversationFileName),
		metrics:       metrics,
	}
	s.load()
	return s, nil
}

// GetOrCreate returns the conversation for the given id, or a fresh empty
// conversation under a newly generated id when the id is empty or unknown.
// A new conversation is persisted immediately, before any message lands in
// it, so its id survives a restart.
func (s *MemoryStore) GetOrCreate(conversationID string) (*Conversation, string) {
	if conversationID != "" {
		s.mu.RLock()
		conv, ok := s.conversations[conversationID]
		s.mu.RUnlock()
		if ok {
			return conv, conversationID
		}
	}

	newID := uuid.NewString()
	conv := &Conversation{}

	s.mu.Lock()
	s.conversations[newID] = conv
	s.mu.Unlock()

	logger.Info("Created new conversation", "conversation_id", newID)
	s.persist()
	return conv, newID
}

// Get returns the conversation for id, if it exists.
func (s *MemoryStore) Get(conversationID string) (*Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[conversationID]
	return conv, ok
}

// ListIDs returns all known conversation ids. Order is not significant and
// is not preserved across reloads.
func (s *MemoryStore) ListIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	return ids
}

// AppendTurn appends one human message and one AI message, in that order,
// then persists the whole store.
func (s *MemoryStore) AppendTurn(conv *Conversation, humanText, aiText string) {
	conv.append(humanText, aiText)
	s.persist()
}

// Save serializes every conversation to the backing file. Exposed for
// shutdown; mutations persist themselves.
func (s *MemoryStore) Save() error {
	s.mu.RLock()
	snapshot := make(map[string][]models.ChatMessage, len(s.conversations))
	for id, conv := range s.conversations {
		snapshot[id] = conv.Messages()
	}
	s.mu.RUnlock()

	return writeJSONAtomic(s.path, snapshot)
}

// persist is Save with the mutation error policy: log, count, keep the
// in-memory state authoritative.
func (s *MemoryStore) persist() {
	if err := s.Save(); err != nil {
		logger.Error("Failed to persist conversation store", "path", s.path, "error", err)
		if s.metrics != nil {
			s.metrics.RecordPersistenceError("conversations")
		}
		return
	}
	logger.Debug("Conversation store persisted")
}

// load reconstructs all conversations from the backing file. A message with
// an unrecognized type is kept as a human message rather than failing the
// whole load.
func (s *MemoryStore) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Error("Failed to read conversation store", "path", s.path, "error", err)
		}
		return
	}

	var raw map[string][]models.ChatMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		logger.Error("Failed to parse conversation store, starting empty", "path", s.path, "error", err)
		return
	}

	for id, messages := range raw {
		conv := &Conversation{messages: make([]models.ChatMessage, 0, len(messages))}
		for _, msg := range messages {
			if msg.Type != models.MessageTypeHuman && msg.Type != models.MessageTypeAI {
				msg.Type = models.MessageTypeHuman
			}
			conv.messages = append(conv.messages, msg)
		}
		s.conversations[id] = conv
	}
	logger.Info("Conversation store loaded", "conversations", len(s.conversations))
}
