package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Model is a scripted chat model for tests. Rules match a substring of
// the latest user message, case-insensitively, in registration order.
// A rule may request tool calls; once the conversation carries tool
// results the rule's final text is returned, which lets the genkit tool
// loop terminate naturally.
//
// Safe for concurrent use.
type Model struct {
	mu       sync.Mutex
	rules    []modelRule
	fallback string
	calls    []ModelCall
}

type modelRule struct {
	pattern string
	text    string
	tools   []*ai.ToolRequest
}

// ModelCall records one generate invocation.
type ModelCall struct {
	UserMessage string
	Response    string
}

// NewModel creates a scripted model with the given fallback text.
func NewModel(fallback string) *Model {
	return &Model{fallback: fallback}
}

// Respond makes the model answer with text when the user message
// contains pattern.
func (m *Model) Respond(pattern, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, modelRule{pattern: strings.ToLower(pattern), text: text})
}

// RespondWithTools makes the model first request the given tool calls,
// then answer with text once tool results are in the conversation.
func (m *Model) RespondWithTools(pattern string, tools []*ai.ToolRequest, text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rules = append(m.rules, modelRule{pattern: strings.ToLower(pattern), text: text, tools: tools})
}

// Calls returns a copy of all recorded generate calls.
func (m *Model) Calls() []ModelCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]ModelCall, len(m.calls))
	copy(cp, m.calls)
	return cp
}

// Register defines the model on g as "mock/chat".
func (m *Model) Register(g *genkit.Genkit) ai.Model {
	return genkit.DefineModel(g, "mock/chat", &ai.ModelOptions{
		Label: "Mock Chat Model",
		Supports: &ai.ModelSupports{
			Multiturn:  true,
			Tools:      true,
			SystemRole: true,
			Media:      false,
		},
	}, m.generate)
}

func (m *Model) generate(ctx context.Context, req *ai.ModelRequest, cb ai.ModelStreamCallback) (*ai.ModelResponse, error) {
	var userText string
	toolsAnswered := false
	for i := len(req.Messages) - 1; i >= 0; i-- {
		msg := req.Messages[i]
		if msg.Role == ai.RoleTool {
			toolsAnswered = true
		}
		if msg.Role == ai.RoleUser && userText == "" {
			userText = msg.Text()
		}
	}

	m.mu.Lock()
	var matched *modelRule
	lower := strings.ToLower(userText)
	for i := range m.rules {
		if strings.Contains(lower, m.rules[i].pattern) {
			matched = &m.rules[i]
			break
		}
	}
	text := m.fallback
	if matched != nil {
		text = matched.text
	}
	m.calls = append(m.calls, ModelCall{UserMessage: userText, Response: text})
	m.mu.Unlock()

	// Tool requests go out only once per conversation.
	if matched != nil && len(matched.tools) > 0 && !toolsAnswered {
		parts := make([]*ai.Part, 0, len(matched.tools))
		for _, tr := range matched.tools {
			parts = append(parts, &ai.Part{Kind: ai.PartToolRequest, ToolRequest: tr})
		}
		return &ai.ModelResponse{
			Request: req,
			Message: &ai.Message{Role: ai.RoleModel, Content: parts},
		}, nil
	}

	if cb != nil {
		// Stream in two chunks so callers exercise accumulation.
		half := len(text) / 2
		for _, piece := range []string{text[:half], text[half:]} {
			if piece == "" {
				continue
			}
			if err := cb(ctx, &ai.ModelResponseChunk{
				Content: []*ai.Part{ai.NewTextPart(piece)},
			}); err != nil {
				return nil, err
			}
		}
	}

	return &ai.ModelResponse{
		Request: req,
		Message: ai.NewModelMessage(ai.NewTextPart(text)),
	}, nil
}
