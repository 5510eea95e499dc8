package gemini

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"google.golang.org/genai"
)

type fakeChatCreator struct {
	mu    sync.Mutex
	calls []chatCallRecord
	queue []fakeChatResponse
}

type chatCallRecord struct {
	model  string
	config *genai.GenerateContentConfig
	chat   *fakeChat
}

type fakeChatResponse struct {
	resp *genai.GenerateContentResponse
	err  error
}

type fakeChat struct {
	mu       sync.Mutex
	response fakeChatResponse
	messages []string
}

func (f *fakeChat) SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, part := range parts {
		f.messages = append(f.messages, part.Text)
	}
	return f.response.resp, f.response.err
}

func (f *fakeChatCreator) enqueue(resp *genai.GenerateContentResponse, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, fakeChatResponse{resp: resp, err: err})
}

func (f *fakeChatCreator) Create(ctx context.Context, model string, config *genai.GenerateContentConfig, history []*genai.Content) (chatSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.queue) == 0 {
		return nil, errors.New("unexpected call")
	}
	res := f.queue[0]
	f.queue = f.queue[1:]
	chat := &fakeChat{response: res}
	f.calls = append(f.calls, chatCallRecord{model: model, config: config, chat: chat})
	return chat, nil
}

func textResponse(parts ...string) *genai.GenerateContentResponse {
	content := &genai.Content{}
	for _, p := range parts {
		content.Parts = append(content.Parts, &genai.Part{Text: p})
	}
	return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{Content: content}}}
}

func TestGeneratorSendsSystemInstruction(t *testing.T) {
	chats := &fakeChatCreator{}
	chats.enqueue(textResponse("first", "  ", "second"), nil)

	g := newGenerator(chats, Options{Model: "gemini-pro", Temperature: RewriteTemperature, MaxLogLength: 20, Logger: zap.NewNop()})

	output, err := g.GenerateContent(context.Background(), "system", "message")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if output != "first\nsecond" {
		t.Fatalf("unexpected output: %q", output)
	}

	if len(chats.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(chats.calls))
	}
	call := chats.calls[0]
	if call.model != "gemini-pro" {
		t.Fatalf("unexpected model: %q", call.model)
	}
	if call.config == nil || call.config.SystemInstruction == nil {
		t.Fatalf("expected system instruction to be set")
	}
	if got := call.config.SystemInstruction.Parts[0].Text; got != "system" {
		t.Fatalf("unexpected system instruction: %q", got)
	}
	if call.config.Temperature == nil || *call.config.Temperature != RewriteTemperature {
		t.Fatalf("expected temperature to be set")
	}
	if len(call.chat.messages) != 1 || call.chat.messages[0] != "message" {
		t.Fatalf("unexpected chat message: %+v", call.chat.messages)
	}
}

func TestGeneratorDoesNotRetry(t *testing.T) {
	chats := &fakeChatCreator{}
	chats.enqueue(nil, genai.APIError{Code: 500, Status: "INTERNAL"})
	chats.enqueue(textResponse("never"), nil)

	g := newGenerator(chats, Options{})

	if _, err := g.GenerateContent(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error")
	}
	if len(chats.calls) != 1 {
		t.Fatalf("expected single call, got %d", len(chats.calls))
	}
	if g.Model() != defaultModel {
		t.Fatalf("expected default model, got %q", g.Model())
	}
}

func TestGeneratorEmptyResponse(t *testing.T) {
	chats := &fakeChatCreator{}
	chats.enqueue(&genai.GenerateContentResponse{}, nil)

	g := newGenerator(chats, Options{})
	if _, err := g.GenerateContent(context.Background(), "", "msg"); err == nil {
		t.Fatal("expected error on empty response")
	}
	if chats.calls[0].config.SystemInstruction != nil {
		t.Fatalf("expected no system instruction for blank system prompt")
	}
}

func TestGeneratorRejectsEmptyMessage(t *testing.T) {
	g := newGenerator(&fakeChatCreator{}, Options{})
	if _, err := g.GenerateContent(context.Background(), "sys", "   "); err == nil {
		t.Fatal("expected error for empty message")
	}

	var nilGen *Generator
	if _, err := nilGen.GenerateContent(context.Background(), "sys", "msg"); err == nil {
		t.Fatal("expected error for nil generator")
	}
}
