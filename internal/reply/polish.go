package reply

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/spigell/hire-intake/internal/ai"
)

// Outcome describes what happened to a rewrite attempt.
type Outcome string

const (
	OutcomeOK       Outcome = "ok"
	OutcomeFallback Outcome = "fallback"
	OutcomeSkipped  Outcome = "skipped"
)

// DefaultRewriteTimeout bounds a rewrite when the caller passes no timeout.
const DefaultRewriteTimeout = 3 * time.Second

var errBlankRewrite = errors.New("rewrite returned blank text")

// Polished is the text to send plus how it was produced. Err carries the
// cause of a fallback for logging; it is never shown to the user.
type Polished struct {
	Text    string
	Outcome Outcome
	Err     error
}

// Polish asks rw to rephrase text within timeout. On a nil rewriter, empty
// text, error, timeout or blank output the deterministic text is returned.
func Polish(ctx context.Context, rw ai.Rewriter, text, tone, policy string, timeout time.Duration) Polished {
	if rw == nil || strings.TrimSpace(text) == "" {
		return Polished{Text: text, Outcome: OutcomeSkipped}
	}
	if timeout <= 0 {
		timeout = DefaultRewriteTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type result struct {
		text string
		err  error
	}
	done := make(chan result, 1)
	go func() {
		out, err := rw.Rewrite(ctx, text, tone, policy)
		done <- result{text: out, err: err}
	}()

	select {
	case <-ctx.Done():
		return Polished{Text: text, Outcome: OutcomeFallback, Err: ctx.Err()}
	case res := <-done:
		if res.err != nil {
			return Polished{Text: text, Outcome: OutcomeFallback, Err: res.err}
		}
		if strings.TrimSpace(res.text) == "" {
			return Polished{Text: text, Outcome: OutcomeFallback, Err: errBlankRewrite}
		}
		return Polished{Text: strings.TrimSpace(res.text), Outcome: OutcomeOK}
	}
}
