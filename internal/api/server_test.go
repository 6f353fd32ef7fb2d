package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/firebase/genkit/go/genkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DuongD0/multimodal-rag/internal/chat"
	"github.com/DuongD0/multimodal-rag/internal/document"
	"github.com/DuongD0/multimodal-rag/internal/knowledge"
	"github.com/DuongD0/multimodal-rag/internal/log"
	"github.com/DuongD0/multimodal-rag/internal/session"
	"github.com/DuongD0/multimodal-rag/internal/testutil"
	"github.com/DuongD0/multimodal-rag/internal/tools"
	"github.com/DuongD0/multimodal-rag/internal/vecstore"
)

type serverEnv struct {
	server   *Server
	sessions *session.Store
	model    *testutil.Model
	embedder *testutil.Embedder
	docsDir  string
}

func newServerEnv(t *testing.T) *serverEnv {
	t.Helper()
	ctx := context.Background()
	g := genkit.Init(ctx)

	model := testutil.NewModel("default answer")
	model.Register(g)

	embedder := testutil.NewEmbedder(8)
	vectors, err := vecstore.New("", log.NewNop())
	require.NoError(t, err)
	store := knowledge.New(embedder, vectors, 4, log.NewNop())

	db := testutil.OpenDB(t)
	registry := knowledge.NewRegistry(db)
	ingestor := knowledge.NewIngestor(store, registry, document.NewChunker(20, 4), log.NewNop())

	kit, err := tools.NewKit(store, ingestor, 4, log.NewNop())
	require.NoError(t, err)
	registered, err := tools.Register(g, kit)
	require.NoError(t, err)

	sessions := session.New(db, log.NewNop())

	agent, err := chat.New(chat.Config{
		Genkit:    g,
		Sessions:  sessions,
		Logger:    log.NewNop(),
		Tools:     registered,
		ModelName: "mock/chat",
	})
	require.NoError(t, err)

	chat.ResetFlowForTesting()
	t.Cleanup(chat.ResetFlowForTesting)
	flow := chat.NewFlow(g, agent)

	server, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		ChatFlow:  flow,
		Sessions:  sessions,
		Knowledge: store,
		Ingestor:  ingestor,
		Registry:  registry,
		DB:        db,
	})
	require.NoError(t, err)

	return &serverEnv{
		server:   server,
		sessions: sessions,
		model:    model,
		embedder: embedder,
		docsDir:  t.TempDir(),
	}
}

func (e *serverEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.server.Handler().ServeHTTP(rec, req)
	return rec
}

func (e *serverEnv) writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.docsDir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), out),
		"body: %s", rec.Body.String())
}

func TestHealth(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

func TestReady(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
	assert.Contains(t, body, "indexedChunks")
}

func TestSessionLifecycle(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/sessions", map[string]string{
		"title":     "paper questions",
		"modelName": "mock/chat",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created session.Session
	decodeBody(t, rec, &created)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, "paper questions", created.Title)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Sessions []session.Session `json:"sessions"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Sessions, 1)

	rec = env.do(t, http.MethodDelete, "/api/v1/sessions/"+created.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+created.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSessionNotFound(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/sessions/no-such-id", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "not_found", body.Code)
}

func TestSessionMessages(t *testing.T) {
	env := newServerEnv(t)
	env.model.Respond("hello", "hi there")

	sess, err := env.sessions.Create(context.Background(), "", "mock/chat")
	require.NoError(t, err)

	rec := env.do(t, http.MethodPost, "/api/v1/chat/stream", chat.Input{
		Query:     "hello",
		SessionID: sess.ID,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/sessions/"+sess.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Messages []session.Message `json:"messages"`
	}
	decodeBody(t, rec, &body)
	require.Len(t, body.Messages, 2)
	assert.Equal(t, session.RoleUser, body.Messages[0].Role)
	assert.Equal(t, "hello", body.Messages[0].Text())
	assert.Equal(t, session.RoleModel, body.Messages[1].Role)
}

func TestIngestDocument(t *testing.T) {
	env := newServerEnv(t)
	path := env.writeDoc(t, "notes.txt", "vectors encode meaning for retrieval")

	rec := env.do(t, http.MethodPost, "/api/v1/documents", map[string]string{
		"filePath": path,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var result knowledge.IngestResult
	decodeBody(t, rec, &result)
	assert.Equal(t, "notes.txt", result.Source)
	assert.Equal(t, 1, result.Pages)
	assert.Positive(t, result.Chunks)
}

func TestIngestDocument_MissingFile(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/documents", map[string]string{
		"filePath": filepath.Join(env.docsDir, "missing.txt"),
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "ingest_failed", body.Code)
}

func TestIngestDocument_MissingPath(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/documents", map[string]string{})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListAndDeleteDocuments(t *testing.T) {
	env := newServerEnv(t)
	path := env.writeDoc(t, "paper.txt", "attention is all you need")

	rec := env.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"filePath": path})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/documents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Documents []knowledge.Record `json:"documents"`
	}
	decodeBody(t, rec, &list)
	require.Len(t, list.Documents, 1)
	assert.Equal(t, "paper.txt", list.Documents[0].Source)

	rec = env.do(t, http.MethodDelete, "/api/v1/documents/paper.txt", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var deleted map[string]any
	decodeBody(t, rec, &deleted)
	assert.Equal(t, "paper.txt", deleted["source"])

	rec = env.do(t, http.MethodGet, "/api/v1/documents", nil)
	decodeBody(t, rec, &list)
	assert.Empty(t, list.Documents)
}

func TestDeleteDocument_NotFound(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodDelete, "/api/v1/documents/ghost.pdf", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSearch(t *testing.T) {
	env := newServerEnv(t)
	path := env.writeDoc(t, "paper.txt", "transformers process sequences in parallel")

	rec := env.do(t, http.MethodPost, "/api/v1/documents", map[string]string{"filePath": path})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/v1/search?q=transformers&k=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Results []searchResult `json:"results"`
	}
	decodeBody(t, rec, &body)
	require.NotEmpty(t, body.Results)
	assert.Equal(t, "paper.txt", body.Results[0].Source)
	assert.Equal(t, 1, body.Results[0].Page)
	assert.NotEmpty(t, body.Results[0].Text)
}

func TestSearch_MissingQuery(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/search", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "missing_query", body.Code)
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.ErrorContains(t, err, "session store is required")
}

func TestRequestIDHeader(t *testing.T) {
	env := newServerEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/documents", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRateLimitExceeded(t *testing.T) {
	env := newServerEnv(t)

	var limited bool
	for i := 0; i < 100; i++ {
		rec := env.do(t, http.MethodGet, "/api/v1/documents", nil)
		if rec.Code == http.StatusTooManyRequests {
			assert.Equal(t, "1", rec.Header().Get("Retry-After"))
			limited = true
			break
		}
	}
	assert.True(t, limited, "expected a 429 after exhausting the burst")
}

func TestHealthBypassesRateLimit(t *testing.T) {
	env := newServerEnv(t)

	for i := 0; i < 100; i++ {
		rec := env.do(t, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code, fmt.Sprintf("request %d", i))
	}
}
