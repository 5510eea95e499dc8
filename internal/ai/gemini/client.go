package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/spigell/hire-intake/internal/ai"
	"github.com/spigell/hire-intake/internal/logger"
)

const (
	defaultModel = "gemini-2.5-flash"
	providerName = "gemini"
)

type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

type chatCreator interface {
	Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error)
}

type genaiChats struct {
	chats *genai.Chats
}

func (c genaiChats) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	chat, err := c.chats.Create(ctx, model, config, history)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

// Generator wraps the Google GenAI client to send a single system-instructed
// message and return the textual answer. Calls are not retried.
type Generator struct {
	chats        chatCreator
	model        string
	temperature  *float32
	maxLogLength int
	logger       *zap.Logger
}

// Options configures a Generator.
type Options struct {
	Model        string
	Temperature  float32
	MaxLogLength int
	Logger       *zap.Logger
}

// NewGenerator creates a new Generator configured for the Gemini API backend.
func NewGenerator(ctx context.Context, apiKey string, opts Options) (*Generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, fmt.Errorf("gemini: %w", ai.ErrNoCredentials)
	}

	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return newGenerator(genaiChats{chats: client.Chats}, opts), nil
}

func newGenerator(chats chatCreator, opts Options) *Generator {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = defaultModel
	}

	g := &Generator{
		chats:        chats,
		model:        model,
		maxLogLength: opts.MaxLogLength,
		logger:       logger.WithCommonFields(opts.Logger, providerName, model),
	}
	if opts.Temperature > 0 {
		g.temperature = genai.Ptr(opts.Temperature)
	}
	return g
}

// GenerateContent sends message under the system instruction and returns the
// joined text of the response.
func (g *Generator) GenerateContent(ctx context.Context, system, message string) (string, error) {
	if g == nil || g.chats == nil {
		return "", errors.New("gemini generator is not initialized")
	}

	message = strings.TrimSpace(message)
	if message == "" {
		return "", errors.New("message must not be empty")
	}

	config := &genai.GenerateContentConfig{Temperature: g.temperature}
	if system = strings.TrimSpace(system); system != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	if g.maxLogLength > 0 {
		g.logger.Debug("gemini request",
			zap.String("message", logger.TruncateForLog(message, g.maxLogLength)),
		)
	}

	chat, err := g.chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return "", fmt.Errorf("create chat: %w", err)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: message})
	if err != nil {
		return "", fmt.Errorf("send message: %w", err)
	}

	output := joinCandidates(resp)
	if output == "" {
		return "", errors.New("gemini api returned empty response")
	}

	if g.maxLogLength > 0 {
		g.logger.Debug("gemini response",
			zap.String("response", logger.TruncateForLog(output, g.maxLogLength)),
		)
	}

	return output, nil
}

func joinCandidates(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}

	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}

	return strings.TrimSpace(builder.String())
}

func (g *Generator) Model() string {
	if g == nil {
		return ""
	}
	return g.model
}
