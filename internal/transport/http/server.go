package http

import (
	"time"

	"github.com/gin-gonic/gin"

	"kbhub/internal/ai"
	appsvc "kbhub/internal/app"
	"kbhub/internal/bootstrap"
	"kbhub/internal/cache"
	"kbhub/internal/platform/rabbitmq"
	"kbhub/internal/repository"
	"kbhub/internal/transport/http/handler"
	"kbhub/internal/transport/http/middleware"
)

func NewRouter(app *bootstrap.App) *gin.Engine {
	gin.SetMode(app.Config.App.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())

	healthHandler := handler.NewHealthHandler(app)
	router.GET("/healthz", healthHandler.Check)

	userRepo := repository.NewUserRepository(app.MySQL)
	kbRepo := repository.NewKnowledgeBaseRepository(app.MySQL)
	memberRepo := repository.NewMembershipRepository(app.MySQL)
	docRepo := repository.NewDocumentRepository(app.MySQL)
	chunkRepo := repository.NewChunkRepository(app.MySQL)
	activityRepo := repository.NewActivityRepository(app.MySQL)
	memoryRepo := repository.NewMemoryRepository(app.MySQL)

	feedCache := cache.NewFeedCache(app.Redis, time.Duration(app.Config.Redis.FeedTTLSeconds)*time.Second)
	activityPublisher := rabbitmq.NewActivityPublisher(app.MQConn, app.Config.RabbitMQ.ActivityQueue)

	authService := appsvc.NewAuthService(
		userRepo,
		app.Config.Auth.JWTSecret,
		time.Duration(app.Config.Auth.JWTExpireMinute)*time.Minute,
	)
	activityService := appsvc.NewActivityService(
		activityRepo, userRepo, kbRepo, memberRepo, activityPublisher, feedCache,
	)
	kbService := appsvc.NewKBService(kbRepo, memberRepo, docRepo, userRepo, activityService)

	llmClient := ai.NewOpenAICompatibleClient()
	ragService := appsvc.NewRAGService(
		kbService,
		docRepo,
		chunkRepo,
		llmClient,
		ai.EmbeddingConfig{
			BaseURL: app.Config.LLM.BaseURL,
			APIKey:  app.Config.LLM.APIKey,
			Model:   app.Config.LLM.EmbeddingModel,
		},
		ai.ChatConfig{
			BaseURL: app.Config.LLM.BaseURL,
			APIKey:  app.Config.LLM.APIKey,
			Model:   app.Config.LLM.Model,
		},
		app.Config.RAG.ChunkSize,
		app.Config.RAG.ChunkOverlap,
		activityService,
	)
	memoryService := appsvc.NewMemoryService(
		kbService,
		memoryRepo,
		llmClient,
		ai.EmbeddingConfig{
			BaseURL: app.Config.LLM.BaseURL,
			APIKey:  app.Config.LLM.APIKey,
			Model:   app.Config.LLM.EmbeddingModel,
		},
	)

	authHandler := handler.NewAuthHandler(authService)
	userHandler := handler.NewUserHandler(authService)
	kbHandler := handler.NewKBHandler(kbService, ragService)
	queryHandler := handler.NewQueryHandler(ragService)
	memoryHandler := handler.NewMemoryHandler(memoryService)
	activityHandler := handler.NewActivityHandler(activityService)

	authJWT := middleware.AuthJWT(app.Config.Auth.JWTSecret)

	api := router.Group("/api")
	authGroup := api.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.GET("/me", authJWT, authHandler.Me)

	api.GET("/users/search", authJWT, userHandler.Search)

	kbGroup := api.Group("/knowledge-bases")
	kbGroup.Use(authJWT)
	kbGroup.GET("", kbHandler.List)
	kbGroup.POST("", kbHandler.Create)
	kbGroup.POST("/query", queryHandler.BatchQuery)
	kbGroup.GET("/:id", kbHandler.Get)
	kbGroup.PATCH("/:id", kbHandler.Update)
	kbGroup.DELETE("/:id", kbHandler.Delete)
	kbGroup.GET("/:id/documents", kbHandler.ListDocuments)
	kbGroup.POST("/:id/documents", kbHandler.UploadDocument)
	kbGroup.GET("/:id/members", kbHandler.ListMembers)
	kbGroup.POST("/:id/members", kbHandler.AddMember)
	kbGroup.PATCH("/:id/members/:user_id", kbHandler.UpdateMember)
	kbGroup.DELETE("/:id/members/:user_id", kbHandler.RemoveMember)
	kbGroup.POST("/:id/memory", memoryHandler.Add)
	kbGroup.POST("/:id/memory/query", memoryHandler.Query)
	kbGroup.POST("/:id/memory/cleanup", memoryHandler.Cleanup)

	api.GET("/activities", authJWT, activityHandler.List)

	return router
}
