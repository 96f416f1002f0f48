package main

import (
	"context"
	"log"

	"ai-agent-gateway/internal/bootstrap"
	"ai-agent-gateway/internal/config"
	"ai-agent-gateway/internal/server"
	"ai-agent-gateway/internal/tracer"
	"ai-agent-gateway/pkg/database"

	"github.com/fatih/color"
)

func main() {
	// 0. Initialize Tracer (no-op unless OTEL_ENABLED=true)
	shutdownTracer := tracer.InitTracer()
	defer shutdownTracer(context.Background())

	// 1. Load Configuration
	cfg := config.Load()

	color.Cyan("AI Agent Gateway")
	color.White("  environment: %s", cfg.App.Environment)
	color.White("  pool capacity: %d agents", cfg.Gateway.AgentPoolCapacity)
	color.White("  response cache ttl: %s", cfg.Gateway.ResponseCacheTTL)

	// 2. Initialize Database
	gormDB, err := database.NewGormDBFromDSN(cfg.Database.Connection)
	if err != nil {
		log.Panicf("Unable to connect to GORM DB: %v", err)
	}

	// 3. Bootstrap Dependencies (Container)
	container := bootstrap.NewContainer(gormDB, cfg)

	// 4. Start Background Services
	go func() {
		log.Println("Background: Starting Usage Consumer...")
		if err := container.ConsumerService.Consume(context.Background()); err != nil {
			log.Printf("Background Consumer Error: %v", err)
		}
	}()

	// 5. Initialize Server
	srv := server.New(cfg, container)

	// 6. Run Server
	log.Fatal(srv.Run())
}
