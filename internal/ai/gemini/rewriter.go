package gemini

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	_ "embed"

	"go.uber.org/zap"
)

type contentGenerator interface {
	GenerateContent(ctx context.Context, system, message string) (string, error)
}

//go:embed prompt.md
var systemTemplate string

const (
	defaultTone    = "concise, friendly"
	maxPolicyRunes = 4000
	maxToneRunes   = 120
)

// RewriteTemperature is the sampling temperature recommended for rewrites.
const RewriteTemperature float32 = 0.2

// Rewriter polishes assistant replies through Gemini.
type Rewriter struct {
	generator contentGenerator
	logger    *zap.Logger
}

// NewRewriter wraps a generator. The generator should be built with
// RewriteTemperature.
func NewRewriter(generator contentGenerator, logger *zap.Logger) *Rewriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Rewriter{generator: generator, logger: logger}
}

// Rewrite returns a rephrased text. Empty output is an error so the caller
// falls back to the original.
func (r *Rewriter) Rewrite(ctx context.Context, text, tone, policy string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if r == nil || r.generator == nil {
		return "", errors.New("gemini rewriter is not initialized")
	}

	system := buildSystem(tone, policy)
	message := "Rewrite (do not change meaning):\n---\n" + text + "\n---"

	r.logger.Debug("rewrite request",
		zap.Int("text_length", utf8.RuneCountInString(text)),
		zap.Int("policy_length", utf8.RuneCountInString(policy)),
	)

	raw, err := r.generator.GenerateContent(ctx, system, message)
	if err != nil {
		return "", err
	}

	out := cleanOutput(raw)
	if out == "" {
		return "", errors.New("rewrite returned empty text")
	}
	return out, nil
}

func buildSystem(tone, policy string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(systemTemplate))

	tone = sanitizeLine(tone, maxToneRunes)
	if tone == "" {
		tone = defaultTone
	}
	b.WriteString("\nTone hint: ")
	b.WriteString(tone)

	if policy = truncateRunes(strings.TrimSpace(policy), maxPolicyRunes); policy != "" {
		b.WriteString("\n\n[POLICY EXCERPT]\n")
		b.WriteString(policy)
	}
	return b.String()
}

// sanitizeLine collapses whitespace so a tone value cannot inject new
// instruction lines.
func sanitizeLine(s string, limit int) string {
	return truncateRunes(strings.Join(strings.Fields(s), " "), limit)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	return string([]rune(s)[:limit])
}

// cleanOutput strips code fences and the "---" delimiters models like to echo.
func cleanOutput(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```text")
		raw = strings.TrimPrefix(raw, "```")
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "---")
	raw = strings.TrimSuffix(raw, "---")
	return strings.TrimSpace(raw)
}
