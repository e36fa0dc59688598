package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ragchat/internal/ai"
	"ragchat/internal/model"
	"ragchat/internal/session"
	"ragchat/internal/vectorstore"
)

const testFallback = "I'm currently experiencing high traffic. Please try again in a few seconds."

func testRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func newTestChatService(t *testing.T, gen *fakeGenerator, pub AsyncInteractionPublisher) (*ChatService, *session.Store) {
	t.Helper()
	sessions := session.NewStore(time.Hour, 100)
	t.Cleanup(sessions.Close)

	index := vectorstore.NewMemoryIndex()
	seedIndex(t, index)

	retriever := NewRetriever(&fakeEmbedder{}, ai.EmbeddingConfig{Model: "test-embed"}, index)
	svc := NewChatService(
		sessions,
		retriever,
		gen,
		ai.ChatConfig{BaseURL: "http://llm.test", APIKey: "key"},
		pub,
		nil,
		&fakeInteractionReader{},
		testRetryPolicy(),
		2,
		testFallback,
		zap.NewNop(),
	)
	return svc, sessions
}

func seedIndex(t *testing.T, index vectorstore.Index) {
	t.Helper()
	embedder := &fakeEmbedder{}
	texts := []string{
		"Refunds are issued within 14 days of purchase.",
		"Shipping takes 3 to 5 business days.",
	}
	chunks := make([]model.Chunk, len(texts))
	for i, text := range texts {
		vec, err := embedder.Embed(context.Background(), ai.EmbeddingConfig{}, text)
		require.NoError(t, err)
		chunks[i] = model.Chunk{DocumentID: 1, Seq: i, Content: text}
		chunks[i].SetEmbedding(vec)
	}
	require.NoError(t, index.Add(context.Background(), chunks))
}

func TestAskAnswersAndAppendsTurn(t *testing.T) {
	gen := &fakeGenerator{replies: []fakeReply{{text: "Within 14 days."}}}
	pub := &capturingPublisher{}
	svc, sessions := newTestChatService(t, gen, pub)

	result, err := svc.Ask(context.Background(), AskInput{
		Question: "What is the refund policy?",
	})
	require.NoError(t, err)

	assert.Equal(t, "Within 14 days.", result.Answer)
	assert.False(t, result.Degraded)
	assert.Equal(t, model.DefaultChatModel, result.Model)

	// Omitted session id is generated as a UUID.
	_, err = uuid.Parse(result.SessionID)
	assert.NoError(t, err)

	sess := sessions.Acquire(result.SessionID)
	sess.Lock()
	turns := sess.Turns()
	sess.Unlock()
	require.Len(t, turns, 1)
	assert.Equal(t, "What is the refund policy?", turns[0].Question)
	assert.Equal(t, "Within 14 days.", turns[0].Answer)

	published := pub.published()
	require.Len(t, published, 1)
	assert.False(t, published[0].Degraded)
	assert.Equal(t, result.SessionID, published[0].SessionID)
}

func TestAskSkipsContextualizeOnFirstTurn(t *testing.T) {
	gen := &fakeGenerator{replies: []fakeReply{{text: "answer one"}}}
	svc, _ := newTestChatService(t, gen, nil)

	_, err := svc.Ask(context.Background(), AskInput{Question: "first question"})
	require.NoError(t, err)

	// Empty history means no reformulation round trip.
	assert.Equal(t, 1, gen.callCount())
}

func TestAskContextualizesWithHistory(t *testing.T) {
	gen := &fakeGenerator{replies: []fakeReply{
		{text: "answer one"},
		{text: "standalone question"},
		{text: "answer two"},
	}}
	svc, _ := newTestChatService(t, gen, nil)

	first, err := svc.Ask(context.Background(), AskInput{Question: "first question"})
	require.NoError(t, err)

	second, err := svc.Ask(context.Background(), AskInput{
		Question:  "what about that?",
		SessionID: first.SessionID,
	})
	require.NoError(t, err)
	assert.Equal(t, "answer two", second.Answer)

	// Second ask runs contextualize + generate.
	require.Equal(t, 3, gen.callCount())
	contextualizePrompt := gen.prompts[1]
	require.NotEmpty(t, contextualizePrompt)
	assert.Equal(t, "system", contextualizePrompt[0].Role)
	assert.Contains(t, contextualizePrompt[0].Content, "standalone question")

	// The final prompt carries retrieved context and prior turns.
	qaPrompt := gen.prompts[2]
	require.GreaterOrEqual(t, len(qaPrompt), 5)
	assert.Contains(t, qaPrompt[1].Content, "Context:")
	assert.Equal(t, "user", qaPrompt[2].Role)
	assert.Equal(t, "first question", qaPrompt[2].Content)
	assert.Equal(t, "assistant", qaPrompt[3].Role)
}

func TestAskRateLimitedReturnsFallback(t *testing.T) {
	rateLimited := &ai.TransientError{StatusCode: 429, Body: "slow down"}
	gen := &fakeGenerator{replies: []fakeReply{
		{err: rateLimited},
		{err: rateLimited},
		{err: rateLimited},
	}}
	pub := &capturingPublisher{}
	svc, sessions := newTestChatService(t, gen, pub)

	result, err := svc.Ask(context.Background(), AskInput{
		Question:  "What is the refund policy?",
		SessionID: "sess-degraded",
	})
	require.NoError(t, err)
	assert.True(t, result.Degraded)
	assert.Equal(t, testFallback, result.Answer)
	assert.Equal(t, 3, gen.callCount())

	// The fallback never enters session memory.
	sess := sessions.Acquire("sess-degraded")
	sess.Lock()
	turns := sess.Turns()
	sess.Unlock()
	assert.Empty(t, turns)

	// But the interaction log records the exchange, tagged degraded.
	published := pub.published()
	require.Len(t, published, 1)
	assert.True(t, published[0].Degraded)
	assert.Equal(t, testFallback, published[0].Answer)
}

func TestAskRecoversWithinRetryBudget(t *testing.T) {
	gen := &fakeGenerator{replies: []fakeReply{
		{err: &ai.TransientError{StatusCode: 429}},
		{text: "recovered answer"},
	}}
	svc, _ := newTestChatService(t, gen, nil)

	result, err := svc.Ask(context.Background(), AskInput{Question: "retry me"})
	require.NoError(t, err)
	assert.False(t, result.Degraded)
	assert.Equal(t, "recovered answer", result.Answer)
}

func TestAskFatalGenerationErrorPropagates(t *testing.T) {
	fatal := errors.New("llm response status 401: bad key")
	gen := &fakeGenerator{replies: []fakeReply{{err: fatal}}}
	svc, _ := newTestChatService(t, gen, nil)

	_, err := svc.Ask(context.Background(), AskInput{Question: "hello"})
	require.Error(t, err)
	assert.ErrorIs(t, err, fatal)
	// Fatal errors are not retried.
	assert.Equal(t, 1, gen.callCount())
}

func TestAskValidation(t *testing.T) {
	svc, _ := newTestChatService(t, &fakeGenerator{}, nil)

	_, err := svc.Ask(context.Background(), AskInput{Question: "   "})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = svc.Ask(context.Background(), AskInput{
		Question: "hi",
		Model:    model.ChatModel("gpt-99-turbo"),
	})
	assert.ErrorIs(t, err, ErrUnsupportedModel)
}

func TestAskSequentialTurnsStayOrdered(t *testing.T) {
	gen := &fakeGenerator{}
	svc, sessions := newTestChatService(t, gen, nil)

	const n = 5
	for i := 0; i < n; i++ {
		_, err := svc.Ask(context.Background(), AskInput{
			Question:  questionN(i),
			SessionID: "ordered",
		})
		require.NoError(t, err)
	}

	sess := sessions.Acquire("ordered")
	sess.Lock()
	turns := sess.Turns()
	sess.Unlock()
	require.Len(t, turns, n)
	for i := 0; i < n; i++ {
		assert.Equal(t, questionN(i), turns[i].Question)
	}
}

func questionN(i int) string {
	return string(rune('a'+i)) + " question"
}

func TestGetHistoryReadsRepository(t *testing.T) {
	reader := &fakeInteractionReader{interactions: []model.Interaction{
		{SessionID: "s1", Question: "q1", Answer: "a1"},
		{SessionID: "s1", Question: "q2", Answer: "a2"},
		{SessionID: "other", Question: "qx", Answer: "ax"},
	}}
	sessions := session.NewStore(time.Hour, 10)
	defer sessions.Close()
	svc := NewChatService(
		sessions,
		NewRetriever(&fakeEmbedder{}, ai.EmbeddingConfig{}, vectorstore.NewMemoryIndex()),
		&fakeGenerator{},
		ai.ChatConfig{},
		nil,
		nil,
		reader,
		testRetryPolicy(),
		2,
		testFallback,
		zap.NewNop(),
	)

	history, err := svc.GetHistory(context.Background(), "s1", 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "q1", history[0].Question)

	_, err = svc.GetHistory(context.Background(), "", 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
}
