package session

import (
	"context"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuongD0/multimodal-rag/internal/log"
	"github.com/DuongD0/multimodal-rag/internal/testutil"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(testutil.OpenDB(t), log.NewNop())
}

func TestStore_CreateAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, "ml papers", "llama3.2")
	require.NoError(t, err)
	assert.NotEmpty(t, sess.ID)
	assert.False(t, sess.CreatedAt.IsZero())

	got, err := s.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "ml papers", got.Title)
	assert.Equal(t, "llama3.2", got.ModelName)
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Get(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_ListOrderedByActivity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	first, err := s.Create(ctx, "first", "")
	require.NoError(t, err)
	time.Sleep(5 * time.Millisecond)
	second, err := s.Create(ctx, "second", "")
	require.NoError(t, err)

	sessions, err := s.List(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)

	// Appending to the older session moves it to the front.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, s.Append(ctx, first.ID, []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("hello")),
	}))
	sessions, err = s.List(ctx, 10, 0)
	require.NoError(t, err)
	assert.Equal(t, first.ID, sessions[0].ID)
}

func TestStore_AppendAndHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, "", "")
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, sess.ID, []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("what is attention?")),
		ai.NewModelMessage(ai.NewTextPart("a weighting mechanism")),
	}))
	require.NoError(t, s.Append(ctx, sess.ID, []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("tell me more")),
	}))

	history, err := s.History(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, ai.RoleUser, history[0].Role)
	assert.Equal(t, "what is attention?", history[0].Text())
	assert.Equal(t, ai.RoleModel, history[1].Role)
	assert.Equal(t, "tell me more", history[2].Text())

	msgs, err := s.Messages(ctx, sess.ID, 10, 0)
	require.NoError(t, err)
	for i, m := range msgs {
		assert.Equal(t, i+1, m.SequenceNumber)
	}
}

func TestStore_AppendToMissingSession(t *testing.T) {
	s := newTestStore(t)
	err := s.Append(context.Background(), "ghost", []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("hi")),
	})
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_AppendNothing(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Append(context.Background(), "any", nil))
}

func TestStore_DeleteCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, "", "")
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, sess.ID, []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("hello")),
	}))

	require.NoError(t, s.Delete(ctx, sess.ID))
	assert.ErrorIs(t, s.Delete(ctx, sess.ID), ErrSessionNotFound)

	msgs, err := s.Messages(ctx, sess.ID, 10, 0)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestStore_HistoryRoundTripsToolParts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, "", "")
	require.NoError(t, err)

	toolMsg := &ai.Message{
		Role: ai.RoleModel,
		Content: []*ai.Part{{
			Kind: ai.PartToolRequest,
			ToolRequest: &ai.ToolRequest{
				Name:  "search_knowledge_base",
				Input: map[string]any{"query": "attention"},
			},
		}},
	}
	require.NoError(t, s.Append(ctx, sess.ID, []*ai.Message{toolMsg}))

	history, err := s.History(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Len(t, history[0].Content, 1)
	assert.Equal(t, ai.PartToolRequest, history[0].Content[0].Kind)
	assert.Equal(t, "search_knowledge_base", history[0].Content[0].ToolRequest.Name)
}
