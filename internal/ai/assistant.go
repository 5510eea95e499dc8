// Package ai defines the contract of the language-model collaborator that
// polishes assistant replies.
package ai

import (
	"context"
	"errors"
)

// ErrNoCredentials is returned when a provider is enabled without an API key.
var ErrNoCredentials = errors.New("ai credentials are not configured")

// Rewriter rephrases a reply without changing its meaning. Implementations
// are advisory: callers fall back to the original text on any error.
type Rewriter interface {
	Rewrite(ctx context.Context, text, tone, policy string) (string, error)
}

// RewriterFunc adapts a function to the Rewriter interface.
type RewriterFunc func(ctx context.Context, text, tone, policy string) (string, error)

// Rewrite calls f.
func (f RewriterFunc) Rewrite(ctx context.Context, text, tone, policy string) (string, error) {
	return f(ctx, text, tone, policy)
}
