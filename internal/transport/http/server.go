package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"ragchat/internal/ai"
	appsvc "ragchat/internal/app"
	"ragchat/internal/bootstrap"
	"ragchat/internal/cache"
	"ragchat/internal/chunker"
	"ragchat/internal/loader"
	rabbitmqClient "ragchat/internal/platform/rabbitmq"
	"ragchat/internal/repository"
	"ragchat/internal/transport/http/handler"
	"ragchat/internal/transport/http/middleware"
	"ragchat/internal/vectorstore"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(middleware.RequestLogger(app.Logger), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	llmClient := ai.NewOpenAICompatibleClient()
	embCfg := ai.EmbeddingConfig{
		BaseURL: app.Config.LLM.BaseURL,
		APIKey:  app.Config.LLM.APIKey,
		Model:   app.Config.LLM.EmbeddingModel,
	}
	chatBase := ai.ChatConfig{
		BaseURL: app.Config.LLM.BaseURL,
		APIKey:  app.Config.LLM.APIKey,
	}

	index := vectorstore.NewMySQLIndex(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	interactionRepo := repository.NewInteractionRepository(app.MySQL)

	ingestService := appsvc.NewIngestService(
		loader.New(app.Config.Upload.MaxFileBytes),
		chunker.New(app.Config.RAG.ChunkSize, app.Config.RAG.ChunkOverlap),
		llmClient,
		embCfg,
		index,
		docRepo,
		app.Logger,
	)

	historyCache := cache.NewHistoryCache(
		app.Redis,
		time.Duration(app.Config.Redis.HistoryTTLSeconds)*time.Second,
		time.Duration(app.Config.Redis.HistoryDirtyTTLSeconds)*time.Second,
	)
	publisher := rabbitmqClient.NewInteractionPublisher(app.MQConn, app.Config.RabbitMQ.InteractionPersistQueue)
	chatService := appsvc.NewChatService(
		app.Sessions,
		appsvc.NewRetriever(llmClient, embCfg, index),
		llmClient,
		chatBase,
		publisher,
		historyCache,
		interactionRepo,
		appsvc.RetryPolicy{
			MaxAttempts: app.Config.RAG.RetryAttempts,
			BaseDelay:   time.Duration(app.Config.RAG.RetryBaseSeconds) * time.Second,
			MaxDelay:    time.Duration(app.Config.RAG.RetryMaxWaitSeconds) * time.Second,
		},
		app.Config.RAG.TopK,
		app.Config.RAG.FallbackAnswer,
		app.Logger,
	)

	documentHandler := handler.NewDocumentHandler(ingestService, app.Config.Upload.MaxFileBytes)
	chatHandler := handler.NewChatHandler(chatService)

	v1 := router.Group("/api/v1")
	v1.POST("/upload-doc", documentHandler.Upload)
	v1.GET("/list-docs", documentHandler.List)
	v1.POST("/delete-doc", documentHandler.Delete)
	v1.POST("/chat", chatHandler.Chat)
	v1.GET("/chat/history", chatHandler.History)

	return router
}
