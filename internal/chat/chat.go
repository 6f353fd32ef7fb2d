// Package chat implements the retrieval-augmented conversation agent.
// The model decides when to call the knowledge tools; the agent loop,
// history persistence and resilience around the model live here.
package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"

	"github.com/DuongD0/multimodal-rag/internal/log"
	"github.com/DuongD0/multimodal-rag/internal/session"
)

// fallbackResponseMessage is returned when the model produces an empty
// response.
const fallbackResponseMessage = "I apologize, but I couldn't generate a response. Please try rephrasing your question."

// Sentinel errors for agent operations.
var (
	ErrInvalidSession  = errors.New("invalid session")
	ErrExecutionFailed = errors.New("execution failed")
)

// Response is the complete result of one agent turn.
type Response struct {
	FinalText    string
	ToolRequests []*ai.ToolRequest
}

// StreamCallback receives response chunks as the model generates them.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// Config carries the required parameters for the Agent.
type Config struct {
	Genkit   *genkit.Genkit
	Sessions *session.Store
	Logger   log.Logger
	Tools    []ai.Tool // pre-registered via tools.Register

	ModelName   string // provider-qualified, e.g. "ollama/llama3.2"
	MaxTurns    int    // agentic loop bound
	Temperature float64
	MaxTokens   int

	RetryConfig RetryConfig   // zero value uses defaults
	RateLimiter *rate.Limiter // nil uses the default limiter
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.Sessions == nil {
		return errors.New("session store is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	if cfg.ModelName == "" {
		return errors.New("model name is required")
	}
	return nil
}

// Agent runs retrieval-augmented conversations. It is stateless between
// calls; all configuration is captured immutably at construction, so a
// single Agent is safe for concurrent use.
type Agent struct {
	modelName   string
	maxTurns    int
	temperature float64
	maxTokens   int

	retryConfig RetryConfig
	rateLimiter *rate.Limiter

	g         *genkit.Genkit
	sessions  *session.Store
	logger    log.Logger
	tools     []ai.Tool
	toolRefs  []ai.ToolRef
	toolNames string
}

// New creates an Agent from cfg.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	// Default: 10 requests/sec sustained, burst of 30.
	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.NewNop()
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	a := &Agent{
		modelName:   cfg.ModelName,
		maxTurns:    maxTurns,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		retryConfig: retryConfig,
		rateLimiter: rl,
		g:           cfg.Genkit,
		sessions:    cfg.Sessions,
		logger:      logger,
		tools:       cfg.Tools,
		toolRefs:    toolRefs,
		toolNames:   strings.Join(names, ", "),
	}

	a.logger.Info("chat agent initialized",
		"model", a.modelName, "tools", a.toolNames, "max_turns", a.maxTurns)
	return a, nil
}

// Execute runs one non-streaming agent turn.
func (a *Agent) Execute(ctx context.Context, sessionID, input string) (*Response, error) {
	return a.ExecuteStream(ctx, sessionID, input, nil)
}

// ExecuteStream runs one agent turn, invoking callback for each response
// chunk when it is non-nil. The turn's user input and final response are
// appended to the session history.
func (a *Agent) ExecuteStream(ctx context.Context, sessionID, input string, callback StreamCallback) (*Response, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: empty input", ErrExecutionFailed)
	}
	if _, err := a.sessions.Get(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSession, sessionID)
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	history, err := a.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	resp, err := a.generate(ctx, input, history, callback)
	if err != nil {
		return nil, err
	}

	responseText := resp.Text()
	// Empty text alongside tool requests is valid agentic behavior; only
	// a fully empty response gets the fallback.
	if strings.TrimSpace(responseText) == "" && len(resp.ToolRequests()) == 0 {
		a.logger.Warn("model returned empty response", "session_id", sessionID)
		responseText = fallbackResponseMessage
	}

	newMessages := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart(input)),
		ai.NewModelMessage(ai.NewTextPart(responseText)),
	}
	if err := a.sessions.Append(ctx, sessionID, newMessages); err != nil {
		// Best-effort: the user already has the answer.
		a.logger.Warn("appending messages to history", "session_id", sessionID, "error", err)
	}

	return &Response{
		FinalText:    responseText,
		ToolRequests: resp.ToolRequests(),
	}, nil
}

func (a *Agent) generate(ctx context.Context, input string, history []*ai.Message, callback StreamCallback) (*ai.ModelResponse, error) {
	// Genkit mutates message content in place while rendering, so shared
	// history objects must be copied per request.
	messages := deepCopyMessages(history)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(input)))

	opts := []ai.GenerateOption{
		ai.WithModelName(a.modelName),
		ai.WithSystem(systemPrompt),
		ai.WithMessages(messages...),
		ai.WithTools(a.toolRefs...),
		ai.WithMaxTurns(a.maxTurns),
		ai.WithConfig(&ai.GenerationCommonConfig{
			Temperature:     a.temperature,
			MaxOutputTokens: a.maxTokens,
		}),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(ai.ModelStreamCallback(callback)))
	}

	a.logger.Debug("generating response",
		"tools", a.toolNames, "max_turns", a.maxTurns, "history_len", len(history))

	return a.generateWithRetry(ctx, opts)
}

// deepCopyMessages creates independent copies of messages and their
// parts. Tool request and response payloads are copied by reference.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{Role: msg.Role, Content: parts}
	}
	return copied
}

func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
			Input: p.ToolRequest.Input,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Ref:    p.ToolResponse.Ref,
			Output: p.ToolResponse.Output,
		}
	}
	return cp
}
