// Package store keeps conversations and their messages. The intake engine
// only reads from it to recover the previous slot set.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spigell/hire-intake/internal/slots"
)

var (
	// ErrNotFound is returned for unknown conversations.
	ErrNotFound = errors.New("conversation not found")
	// ErrInvalidRole is returned when a message role is not recognized.
	ErrInvalidRole = errors.New("invalid message role")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// ParseRole validates a role name.
func ParseRole(name string) (Role, error) {
	switch r := Role(strings.ToLower(strings.TrimSpace(name))); r {
	case RoleUser, RoleAssistant, RoleTool, RoleSystem:
		return r, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidRole, name)
}

// Meta is the structured part of a message. Assistant messages carry the
// stage and slots that were stored after the turn.
type Meta struct {
	Stage  string       `json:"stage,omitempty"`
	Slots  *slots.Slots `json:"slots,omitempty"`
	Intent string       `json:"intent,omitempty"`
}

// Message is one stored chat message.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Meta      Meta      `json:"meta"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is the conversation store contract.
type Store interface {
	// EnsureConversation returns the id of the conversation identified by the
	// triple, creating it on first use.
	EnsureConversation(ctx context.Context, entityID, platform, threadID string) (string, error)
	// IngestMessage stores msg once per idempotency key and returns its id.
	// Repeating a key returns the id of the first message.
	IngestMessage(ctx context.Context, conversationID string, msg Message, idempotencyKey string) (string, error)
	// ListRecent returns up to limit of the newest messages, oldest first.
	ListRecent(ctx context.Context, conversationID string, limit int) ([]Message, error)
}

func conversationKey(entityID, platform, threadID string) string {
	return entityID + ":" + platform + ":" + threadID
}

func validate(msg Message) (Message, error) {
	role, err := ParseRole(string(msg.Role))
	if err != nil {
		return msg, err
	}
	msg.Role = role
	return msg, nil
}
