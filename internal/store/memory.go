package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Memory is a process-local Store. It is safe for concurrent use.
type Memory struct {
	mu            sync.RWMutex
	conversations map[string]string
	known         map[string]bool
	messages      map[string][]Message
	idempotency   map[string]string
	now           func() time.Time
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		conversations: make(map[string]string),
		known:         make(map[string]bool),
		messages:      make(map[string][]Message),
		idempotency:   make(map[string]string),
		now:           time.Now,
	}
}

func (m *Memory) EnsureConversation(_ context.Context, entityID, platform, threadID string) (string, error) {
	key := conversationKey(entityID, platform, threadID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if cid, ok := m.conversations[key]; ok {
		return cid, nil
	}
	cid := uuid.NewString()
	m.conversations[key] = cid
	m.known[cid] = true
	return cid, nil
}

func (m *Memory) IngestMessage(_ context.Context, conversationID string, msg Message, idempotencyKey string) (string, error) {
	msg, err := validate(msg)
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.known[conversationID] {
		return "", ErrNotFound
	}

	idemKey := conversationID + ":" + idempotencyKey
	if idempotencyKey != "" {
		if id, ok := m.idempotency[idemKey]; ok {
			return id, nil
		}
	}

	msg.ID = uuid.NewString()
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = m.now()
	}
	m.messages[conversationID] = append(m.messages[conversationID], msg)
	if idempotencyKey != "" {
		m.idempotency[idemKey] = msg.ID
	}
	return msg.ID, nil
}

func (m *Memory) ListRecent(_ context.Context, conversationID string, limit int) ([]Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !m.known[conversationID] {
		return nil, ErrNotFound
	}

	msgs := m.messages[conversationID]
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
