package app

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"ragchat/internal/ai"
	"ragchat/internal/model"
	"ragchat/internal/session"
)

const contextualizeSystemPrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, formulate a standalone question " +
	"which can be understood without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

const qaSystemPrompt = "You are a helpful AI assistant. Use the following context to answer the user's question."

// GenerationClient is the slice of the LLM client the orchestrator needs.
// Satisfied by *ai.OpenAICompatibleClient.
type GenerationClient interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
}

// AsyncInteractionPublisher hands finished exchanges to the logging
// pipeline without blocking the request.
type AsyncInteractionPublisher interface {
	Publish(ctx context.Context, interaction model.Interaction) error
}

// HistoryCache fronts the relational interaction log for the history
// endpoint.
type HistoryCache interface {
	GetHistory(ctx context.Context, sessionID string) ([]model.Interaction, bool, error)
	SetHistory(ctx context.Context, sessionID string, interactions []model.Interaction) error
	DeleteHistory(ctx context.Context, sessionID string) error
	MarkDirty(ctx context.Context, sessionID string) error
	IsDirty(ctx context.Context, sessionID string) (bool, error)
}

// InteractionReader reads the persisted interaction log. Satisfied by
// *repository.InteractionRepository.
type InteractionReader interface {
	ListBySessionID(sessionID string, limit int) ([]model.Interaction, error)
}

// ChatService orchestrates one retrieval-augmented answer per call:
// contextualize, retrieve, assemble, generate with retry, persist.
type ChatService struct {
	sessions     *session.Store
	retriever    *Retriever
	generator    GenerationClient
	llmBase      ai.ChatConfig // Model filled per request
	publisher    AsyncInteractionPublisher
	historyCache HistoryCache
	interactions InteractionReader
	retry        RetryPolicy
	topK         int
	fallback     string
	logger       *zap.Logger
}

func NewChatService(
	sessions *session.Store,
	retriever *Retriever,
	generator GenerationClient,
	llmBase ai.ChatConfig,
	publisher AsyncInteractionPublisher,
	historyCache HistoryCache,
	interactions InteractionReader,
	retry RetryPolicy,
	topK int,
	fallback string,
	logger *zap.Logger,
) *ChatService {
	if topK <= 0 {
		topK = 2
	}
	return &ChatService{
		sessions:     sessions,
		retriever:    retriever,
		generator:    generator,
		llmBase:      llmBase,
		publisher:    publisher,
		historyCache: historyCache,
		interactions: interactions,
		retry:        retry,
		topK:         topK,
		fallback:     fallback,
		logger:       logger,
	}
}

type AskInput struct {
	Question  string
	SessionID string // empty: a new session id is generated
	Model     model.ChatModel
}

type AskResult struct {
	Answer    string          `json:"answer"`
	SessionID string          `json:"session_id"`
	Model     model.ChatModel `json:"model"`
	Degraded  bool            `json:"-"`
}

// Ask produces one answer. Terminal states: answered (nil error), degraded
// (rate limits exhausted, fallback answer, nil error), failed (non-nil
// error). The session lock is held for the whole round so concurrent
// submits on one session serialize in request order; the turn is appended
// only once the full question+answer pair is known.
func (s *ChatService) Ask(ctx context.Context, input AskInput) (*AskResult, error) {
	question := strings.TrimSpace(input.Question)
	if question == "" {
		return nil, ErrInvalidInput
	}
	chatModel := input.Model
	if chatModel == "" {
		chatModel = model.DefaultChatModel
	}
	if !chatModel.Valid() {
		return nil, ErrUnsupportedModel
	}
	sessionID := strings.TrimSpace(input.SessionID)
	if sessionID == "" {
		sessionID = session.NewSessionID()
	}

	sess := s.sessions.Acquire(sessionID)
	sess.Lock()
	defer sess.Unlock()

	history := sess.Turns()
	standalone := s.contextualize(ctx, chatModel, history, question)

	chunks, err := s.retriever.Retrieve(ctx, standalone, s.topK)
	if err != nil {
		return nil, err
	}

	messages := assemblePrompt(history, chunks, question)
	cfg := s.llmBase
	cfg.Model = chatModel.String()

	var answer string
	genErr := s.retry.Do(ctx, func() error {
		var completeErr error
		answer, completeErr = s.generator.Complete(ctx, cfg, messages)
		return completeErr
	}, ai.IsTransient)

	if genErr != nil {
		if !ai.IsTransient(genErr) {
			return nil, genErr
		}
		// Rate limiting never surfaces as an error. The fallback is not
		// appended to session memory; it would pollute the history the
		// contextualizer sees.
		s.logger.Warn("generation rate limited, returning fallback",
			zap.String("session_id", sessionID), zap.Error(genErr))
		s.logInteraction(ctx, sessionID, chatModel, question, s.fallback, true)
		return &AskResult{
			Answer:    s.fallback,
			SessionID: sessionID,
			Model:     chatModel,
			Degraded:  true,
		}, nil
	}

	answer = strings.TrimSpace(answer)
	if answer == "" {
		answer = "The model returned an empty response."
	}

	sess.Append(question, answer)
	s.logInteraction(ctx, sessionID, chatModel, question, answer, false)

	return &AskResult{
		Answer:    answer,
		SessionID: sessionID,
		Model:     chatModel,
	}, nil
}

// contextualize reformulates the question into a standalone one using the
// chat history. Only runs when history is non-empty; on failure the raw
// question is retrieved against instead, which degrades relevance but not
// availability.
func (s *ChatService) contextualize(ctx context.Context, chatModel model.ChatModel, history []session.Turn, question string) string {
	if len(history) == 0 {
		return question
	}

	messages := make([]ai.ChatMessage, 0, 2*len(history)+2)
	messages = append(messages, ai.ChatMessage{Role: "system", Content: contextualizeSystemPrompt})
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, ai.ChatMessage{Role: "user", Content: question})

	cfg := s.llmBase
	cfg.Model = chatModel.String()
	standalone, err := s.generator.Complete(ctx, cfg, messages)
	if err != nil {
		s.logger.Warn("contextualize failed, using raw question", zap.Error(err))
		return question
	}
	if standalone = strings.TrimSpace(standalone); standalone == "" {
		return question
	}
	return standalone
}

func assemblePrompt(history []session.Turn, chunks []model.Chunk, question string) []ai.ChatMessage {
	var contextBlock strings.Builder
	for i, chunk := range chunks {
		if i > 0 {
			contextBlock.WriteString("\n---\n")
		}
		contextBlock.WriteString(chunk.Content)
	}

	messages := make([]ai.ChatMessage, 0, 2*len(history)+3)
	messages = append(messages,
		ai.ChatMessage{Role: "system", Content: qaSystemPrompt},
		ai.ChatMessage{Role: "system", Content: "Context: " + contextBlock.String()},
	)
	messages = append(messages, historyMessages(history)...)
	messages = append(messages, ai.ChatMessage{Role: "user", Content: question})
	return messages
}

func historyMessages(history []session.Turn) []ai.ChatMessage {
	messages := make([]ai.ChatMessage, 0, 2*len(history))
	for _, turn := range history {
		messages = append(messages,
			ai.ChatMessage{Role: "user", Content: turn.Question},
			ai.ChatMessage{Role: "assistant", Content: turn.Answer},
		)
	}
	return messages
}

// logInteraction enqueues the exchange for async relational persistence
// and invalidates the cached history. Logging failures are not the
// caller's problem: the answer is already produced.
func (s *ChatService) logInteraction(ctx context.Context, sessionID string, chatModel model.ChatModel, question, answer string, degraded bool) {
	if s.historyCache != nil {
		_ = s.historyCache.MarkDirty(ctx, sessionID)
		_ = s.historyCache.DeleteHistory(ctx, sessionID)
	}
	if s.publisher == nil {
		return
	}
	err := s.publisher.Publish(ctx, model.Interaction{
		SessionID: sessionID,
		Question:  question,
		Answer:    answer,
		Model:     chatModel.String(),
		Degraded:  degraded,
	})
	if err != nil {
		s.logger.Error("publish interaction failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}

// GetHistory returns a session's persisted interactions, served from the
// redis cache when it is fresh.
func (s *ChatService) GetHistory(ctx context.Context, sessionID string, limit int) ([]model.Interaction, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, ErrInvalidInput
	}

	if s.historyCache != nil {
		dirty, err := s.historyCache.IsDirty(ctx, sessionID)
		if err == nil && !dirty {
			if cached, hit, cacheErr := s.historyCache.GetHistory(ctx, sessionID); cacheErr == nil && hit {
				return cached, nil
			}
		}
	}

	interactions, err := s.interactions.ListBySessionID(sessionID, limit)
	if err != nil {
		return nil, err
	}
	if s.historyCache != nil {
		if dirty, dirtyErr := s.historyCache.IsDirty(ctx, sessionID); dirtyErr == nil && !dirty {
			_ = s.historyCache.SetHistory(ctx, sessionID, interactions)
		}
	}
	return interactions, nil
}
