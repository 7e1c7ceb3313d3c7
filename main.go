package main

import (
	"context"
	"log"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"messenger-service/internal/auth"
	"messenger-service/internal/config"
	"messenger-service/internal/db"
	"messenger-service/internal/handlers"
	"messenger-service/internal/middleware"
	"messenger-service/internal/observability"
	"messenger-service/internal/presence"
	"messenger-service/internal/rabbitmq"
	"messenger-service/internal/repositories"
	"messenger-service/internal/storage"
	"messenger-service/internal/telemetry"
	"messenger-service/internal/ws"
)

const serviceName = "messenger-service"

func main() {
	cfg := config.Load()

	shutdownTracing := telemetry.InitTracing(context.Background(), serviceName, cfg.Environment, cfg.OTLPEndpoint, cfg.TracingEnabled)
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(ctx)
	}()

	database, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to db: %v", err)
	}
	defer database.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	publisher := rabbitmq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	defer publisher.Close()
	log.Printf("event publisher mode=%s reason=%q", rabbitmq.PublisherMode(publisher), rabbitmq.PublisherNoopReason(publisher))
	audit := telemetry.NewAuditEmitter(publisher, "audit_log.messenger", serviceName, cfg.Environment)
	observability.SetPublisher(publisher)

	tokens := auth.NewManager(cfg.JWTSecret, 24*time.Hour)
	typing := presence.NewTypingStore(redisClient)
	blobs := storage.NewClient(cfg.BlobEndpoint, cfg.BlobAPIKey, cfg.BlobAPISecret)

	userRepo := repositories.NewUserRepo(database)
	requestRepo := repositories.NewChatRequestRepo(database)
	convRepo := repositories.NewConversationRepo(database)
	messageRepo := repositories.NewMessageRepo(database)
	groupRepo := repositories.NewGroupRepo(database)
	groupMessageRepo := repositories.NewGroupMessageRepo(database)
	callRepo := repositories.NewCallRepo(database)

	hub := ws.NewHub()

	authHandler := handlers.NewAuthHandler(userRepo, tokens, audit)
	requestHandler := handlers.NewChatRequestHandler(requestRepo, userRepo, convRepo, audit)
	convHandler := handlers.NewConversationHandler(convRepo, userRepo)
	messageHandler := handlers.NewMessageHandler(convRepo, messageRepo, userRepo, typing, hub)
	groupHandler := handlers.NewGroupHandler(groupRepo, userRepo, audit)
	groupMessageHandler := handlers.NewGroupMessageHandler(groupRepo, groupMessageRepo, userRepo, typing, hub)
	callHandler := handlers.NewCallHandler(callRepo, userRepo)
	profileHandler := handlers.NewProfileHandler(userRepo, convRepo, requestRepo, messageRepo)
	uploadHandler := handlers.NewUploadHandler(blobs)
	adminHandler := handlers.NewAdminHandler(userRepo, groupRepo, messageRepo, groupMessageRepo, audit)

	convWS := ws.NewConversationWebSocketHandler(hub, convRepo, tokens)
	groupWS := ws.NewGroupWebSocketHandler(hub, groupRepo, tokens)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))
	router.Use(observability.HTTPMetricsMiddleware())

	router.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"status": "ok"}) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/auth/register", authHandler.Register)
	router.POST("/auth/login", authHandler.Login)

	authed := router.Group("/", middleware.AuthMiddleware(tokens))

	authed.DELETE("/auth/account", authHandler.DeleteAccount)

	authed.POST("/chat-requests", requestHandler.Create)
	authed.GET("/chat-requests", requestHandler.List)
	authed.PATCH("/chat-requests/:id", requestHandler.Respond)
	authed.DELETE("/chat-requests/:id", requestHandler.Delete)
	authed.GET("/users/:id/connection", requestHandler.Connection)

	authed.GET("/conversations", convHandler.List)
	authed.POST("/conversations", convHandler.Create)
	authed.GET("/conversations/:id", convHandler.Get)
	authed.PUT("/conversations/:id", convHandler.Update)
	authed.DELETE("/conversations/:id", convHandler.Leave)

	authed.GET("/conversations/:id/messages", messageHandler.List)
	authed.POST("/conversations/:id/messages", messageHandler.Post)
	authed.GET("/conversations/:id/messages/search", messageHandler.Search)
	authed.PATCH("/conversations/:id/messages/:message_id", messageHandler.Edit)
	authed.DELETE("/conversations/:id/messages/:message_id", messageHandler.Delete)
	authed.POST("/conversations/:id/messages/:message_id/reactions", messageHandler.ToggleReaction)
	authed.GET("/conversations/:id/messages/:message_id/reactions", messageHandler.ListReactions)
	authed.GET("/conversations/:id/messages/:message_id/reads", messageHandler.ListReads)
	authed.POST("/conversations/:id/typing", messageHandler.SetTyping)
	authed.GET("/conversations/:id/typing", messageHandler.GetTyping)
	authed.POST("/conversations/:id/read", messageHandler.MarkRead)
	authed.GET("/conversations/:id/media", messageHandler.ListMedia)

	authed.POST("/groups", groupHandler.Create)
	authed.GET("/groups", groupHandler.List)
	authed.GET("/groups/:id", groupHandler.Get)
	authed.PATCH("/groups/:id", groupHandler.Update)
	authed.DELETE("/groups/:id", groupHandler.Delete)
	authed.GET("/groups/:id/members", groupHandler.ListMembers)
	authed.POST("/groups/:id/members", groupHandler.Join)
	authed.PUT("/groups/:id/members", groupHandler.AddMember)
	authed.DELETE("/groups/:id/members", groupHandler.Leave)
	authed.PATCH("/groups/:id/members/:user_id", groupHandler.UpdateMember)
	authed.DELETE("/groups/:id/members/:user_id", groupHandler.KickMember)

	authed.GET("/groups/:id/messages", groupMessageHandler.List)
	authed.POST("/groups/:id/messages", groupMessageHandler.Post)
	authed.GET("/groups/:id/messages/search", groupMessageHandler.Search)
	authed.PATCH("/groups/:id/messages/:message_id", groupMessageHandler.Edit)
	authed.DELETE("/groups/:id/messages/:message_id", groupMessageHandler.Delete)
	authed.POST("/groups/:id/messages/:message_id/reactions", groupMessageHandler.ToggleReaction)
	authed.GET("/groups/:id/messages/:message_id/reactions", groupMessageHandler.ListReactions)
	authed.POST("/groups/:id/typing", groupMessageHandler.SetTyping)
	authed.GET("/groups/:id/typing", groupMessageHandler.GetTyping)
	authed.POST("/groups/:id/read", groupMessageHandler.MarkRead)

	authed.POST("/calls", callHandler.Create)
	authed.GET("/calls", callHandler.Get)
	authed.GET("/calls/history", callHandler.History)
	authed.PATCH("/calls/:id", callHandler.Update)
	authed.DELETE("/calls/:id", callHandler.Delete)

	authed.GET("/profile", profileHandler.Get)
	authed.PUT("/profile", profileHandler.Update)
	authed.GET("/profile/status", profileHandler.GetStatus)
	authed.PUT("/profile/status", profileHandler.SetStatus)
	authed.GET("/profile/export", profileHandler.Export)

	authed.POST("/upload", uploadHandler.Upload)
	authed.DELETE("/upload", uploadHandler.Delete)

	admin := authed.Group("/admin", middleware.RequireAdmin())
	admin.GET("/users", adminHandler.ListUsers)
	admin.GET("/users/:id", adminHandler.GetUser)
	admin.PATCH("/users/:id", adminHandler.UpdateUser)
	admin.DELETE("/users/:id", adminHandler.DeleteUser)
	admin.GET("/groups", adminHandler.ListGroups)
	admin.DELETE("/groups/:id", adminHandler.DeleteGroup)

	router.GET("/ws/conversations/:conversation_id", convWS.Handle)
	router.GET("/ws/groups/:group_id", groupWS.Handle)

	log.Printf("listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
