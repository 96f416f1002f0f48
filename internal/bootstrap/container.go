package bootstrap

import (
	"context"
	"log"

	"ai-agent-gateway/internal/config"
	"ai-agent-gateway/internal/controller"
	"ai-agent-gateway/internal/pkg/logger"
	"ai-agent-gateway/internal/repository/unitofwork"
	"ai-agent-gateway/internal/service"
	"ai-agent-gateway/internal/websocket"
	"ai-agent-gateway/pkg/agentpool"
	"ai-agent-gateway/pkg/limiter"
	"ai-agent-gateway/pkg/llm/factory"
	pktNats "ai-agent-gateway/pkg/nats"
	"ai-agent-gateway/pkg/responsecache"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type Container struct {
	// Controllers
	AgentController        controller.IAgentController
	ConversationController controller.IConversationController

	// Background Services (Exposed for main.go to run)
	ConsumerService service.IConsumerService

	// WebSockets
	WebSocketHub   *websocket.Hub
	GatewayHandler *websocket.GatewayHandler
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	uowFactory := unitofwork.NewRepositoryFactory(db)
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.App.Environment == "production")

	// 2. Event Bus
	watermillLogger := watermill.NewStdLogger(false, false)
	pubSub := gochannel.NewGoChannel(
		gochannel.Config{},
		watermillLogger,
	)

	// NATS
	natsPub, err := pktNats.NewPublisher(cfg.App.NatsURL)
	if err != nil {
		log.Printf("[WARN] Failed to connect to NATS Publisher: %v", err)
	}

	// Redis
	opt, err := redis.ParseURL(cfg.App.RedisURL)
	if err != nil {
		log.Printf("[WARN] Failed to parse Redis URL: %v. Using direct Addr", err)
		opt = &redis.Options{
			Addr: cfg.App.RedisURL,
		}
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Printf("[WARN] Failed to connect to Redis: %v", err)
	}

	// 3. Provider registry and agent pool
	providers := factory.NewRegistry(factory.Config{
		OpenAIKey:     cfg.Keys.OpenAI,
		AnthropicKey:  cfg.Keys.Anthropic,
		GoogleAIKey:   cfg.Keys.GoogleAI,
		OllamaBaseURL: cfg.Gateway.OllamaBaseURL,
	})

	agentService := service.NewAgentService(uowFactory, providers)
	pool := agentpool.New(cfg.Gateway.AgentPoolCapacity, agentService.EngineConstructor())
	cache := responsecache.New(cfg.Gateway.ResponseCacheTTL)

	// 4. Services
	conversationService := service.NewConversationService(uowFactory)
	subscriptionService := service.NewSubscriptionService(uowFactory)
	usageLimiter := limiter.NewRedisLimiter(rdb, subscriptionService)

	consumerService := service.NewConsumerService(
		pubSub,
		cfg.Gateway.UsageTopic,
		conversationService,
		sysLogger,
	)

	gatewayService := service.NewGatewayService(
		conversationService,
		subscriptionService,
		pool,
		cache,
		usageLimiter,
		pubSub,
		cfg.Gateway.UsageTopic,
		natsPub,
		sysLogger,
	)

	// 5. WebSocket Hub
	wsLogger := logger.NewIsolatedLogger("logs/gateway_ws.log")
	wsHub := websocket.NewHub(rdb, wsLogger)
	go wsHub.Run()

	gatewayHandler := websocket.NewGatewayHandler(wsHub, gatewayService, agentService, wsLogger)

	// 6. Controllers
	agentController := controller.NewAgentController(agentService)
	conversationController := controller.NewConversationController(conversationService)

	return &Container{
		AgentController:        agentController,
		ConversationController: conversationController,
		ConsumerService:        consumerService,
		WebSocketHub:           wsHub,
		GatewayHandler:         gatewayHandler,
	}
}
