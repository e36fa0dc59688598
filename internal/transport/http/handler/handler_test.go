package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ragchat/internal/ai"
	"ragchat/internal/app"
	"ragchat/internal/chunker"
	"ragchat/internal/loader"
	"ragchat/internal/model"
	"ragchat/internal/session"
	"ragchat/internal/vectorstore"
)

const testMaxFileBytes = 1 << 20

type stubEmbedder struct{}

func (stubEmbedder) Embed(_ context.Context, _ ai.EmbeddingConfig, text string) ([]float32, error) {
	return []float32{float32(len(text)%7) + 1, 1, 0.5}, nil
}

func (e stubEmbedder) EmbedBatch(ctx context.Context, cfg ai.EmbeddingConfig, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i], _ = e.Embed(ctx, cfg, text)
	}
	return out, nil
}

type stubGenerator struct {
	answer string
}

func (g stubGenerator) Complete(_ context.Context, _ ai.ChatConfig, _ []ai.ChatMessage) (string, error) {
	return g.answer, nil
}

type stubDocStore struct {
	mu     sync.Mutex
	nextID uint
	docs   map[uint]model.Document
}

func newStubDocStore() *stubDocStore {
	return &stubDocStore{nextID: 1, docs: make(map[uint]model.Document)}
}

func (s *stubDocStore) Create(doc *model.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc.ID = s.nextID
	doc.CreatedAt = time.Now()
	s.nextID++
	s.docs[doc.ID] = *doc
	return nil
}

func (s *stubDocStore) List() ([]model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Document, 0, len(s.docs))
	for _, d := range s.docs {
		out = append(out, d)
	}
	return out, nil
}

func (s *stubDocStore) GetByID(id uint) (*model.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return nil, nil
	}
	return &d, nil
}

func (s *stubDocStore) DeleteByID(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.docs, id)
	return nil
}

type stubInteractionReader struct {
	interactions []model.Interaction
}

func (r *stubInteractionReader) ListBySessionID(sessionID string, limit int) ([]model.Interaction, error) {
	var out []model.Interaction
	for _, it := range r.interactions {
		if it.SessionID == sessionID {
			out = append(out, it)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type testEnv struct {
	router   *gin.Engine
	docStore *stubDocStore
	reader   *stubInteractionReader
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	index := vectorstore.NewMemoryIndex()
	docStore := newStubDocStore()
	embedder := stubEmbedder{}
	embCfg := ai.EmbeddingConfig{Model: "text-embedding-3-small"}

	ingest := app.NewIngestService(
		loader.New(testMaxFileBytes),
		chunker.New(1000, 200),
		embedder,
		embCfg,
		index,
		docStore,
		logger,
	)

	sessions := session.NewStore(time.Hour, 100)
	t.Cleanup(sessions.Close)
	retriever := app.NewRetriever(embedder, embCfg, index)
	reader := &stubInteractionReader{}
	chat := app.NewChatService(
		sessions,
		retriever,
		stubGenerator{answer: "the retrieved answer"},
		ai.ChatConfig{},
		nil,
		nil,
		reader,
		app.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond},
		2,
		"please retry later",
		logger,
	)

	router := gin.New()
	docHandler := NewDocumentHandler(ingest, testMaxFileBytes)
	chatHandler := NewChatHandler(chat)
	router.POST("/upload-doc", docHandler.Upload)
	router.GET("/list-docs", docHandler.List)
	router.POST("/delete-doc", docHandler.Delete)
	router.POST("/chat", chatHandler.Chat)
	router.GET("/chat/history", chatHandler.History)

	return &testEnv{router: router, docStore: docStore, reader: reader}
}

type apiBody struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, req *http.Request) (int, apiBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	var body apiBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func uploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/upload-doc", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func jsonRequest(t *testing.T, method, target string, payload any) *http.Request {
	t.Helper()
	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	return req
}

const uploadHTML = `<html><body>
<h1>Shipping policy</h1>
<p>Orders ship within two business days. Express delivery arrives overnight.</p>
</body></html>`
