package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// Input is the request payload of the chat flow.
type Input struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId"`
}

// Output is the response payload of the chat flow.
type Output struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// StreamChunk carries one partial text fragment of a streaming response.
type StreamChunk struct {
	Text string `json:"text"`
}

// FlowName is the registered name of the chat flow.
const FlowName = "mmrag/chat"

// Flow is the chat agent's genkit streaming flow type, exported for
// genkit.Handler in the api package.
type Flow = core.Flow[Input, Output, StreamChunk]

// genkit.DefineStreamingFlow panics on re-registration, so the flow is a
// package-level singleton.
var (
	flowOnce sync.Once
	flow     *Flow
)

// NewFlow returns the chat flow singleton, defining it on first call.
// Later calls return the existing flow and ignore the arguments.
func NewFlow(g *genkit.Genkit, agent *Agent) *Flow {
	flowOnce.Do(func() {
		flow = agent.defineFlow(g)
	})
	return flow
}

// ResetFlowForTesting clears the flow singleton so tests can register
// against fresh genkit instances. Not safe for concurrent use.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flow = nil
}

func (a *Agent) defineFlow(g *genkit.Genkit) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			if input.SessionID == "" {
				return Output{}, fmt.Errorf("%w: session ID is required", ErrInvalidSession)
			}

			var callback StreamCallback
			if streamCb != nil {
				callback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					if chunk == nil {
						return nil
					}
					for _, part := range chunk.Content {
						if part.Text == "" {
							continue
						}
						if err := streamCb(ctx, StreamChunk{Text: part.Text}); err != nil {
							return err
						}
					}
					return nil
				}
			}

			resp, err := a.ExecuteStream(ctx, input.SessionID, input.Query, callback)
			if err != nil {
				return Output{SessionID: input.SessionID}, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
			}

			return Output{
				Response:  resp.FinalText,
				SessionID: input.SessionID,
			}, nil
		},
	)
}
