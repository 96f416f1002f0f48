package main

import (
	"log"
	"os"
	"time"

	"ai-agent-gateway/internal/model"
	"ai-agent-gateway/pkg/database"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("Info: No .env file found, using system env")
	}

	dsn := os.Getenv("DB_CONNECTION_STRING")
	if dsn == "" {
		log.Fatal("Error: DB_CONNECTION_STRING is not set")
	}

	db, err := database.NewGormDBFromDSN(dsn)
	if err != nil {
		log.Fatal("Error: Failed to connect to database:", err)
	}

	seedPlans(db)
	seedAgents(db)
	color.Green("Seeding complete.")
}

func seedPlans(db *gorm.DB) {
	plans := []model.Plan{
		{
			Id:                 uuid.New(),
			Name:               "Free",
			Slug:               "free",
			ApiRequestsPerHour: 20,
			AgentChatEnabled:   true,
			StreamingEnabled:   false,
		},
		{
			Id:                 uuid.New(),
			Name:               "Pro",
			Slug:               "pro",
			ApiRequestsPerHour: 500,
			AgentChatEnabled:   true,
			StreamingEnabled:   true,
		},
		{
			Id:                 uuid.New(),
			Name:               "Enterprise",
			Slug:               "enterprise",
			ApiRequestsPerHour: -1, // unlimited
			AgentChatEnabled:   true,
			StreamingEnabled:   true,
		},
	}

	for _, plan := range plans {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "slug"}},
			DoNothing: true,
		}).Create(&plan).Error
		if err != nil {
			log.Printf("Warn: failed to seed plan %s: %v", plan.Slug, err)
		}
	}
	color.White("Seeded %d plans", len(plans))
}

func seedAgents(db *gorm.DB) {
	agents := []model.Agent{
		{
			Id:           uuid.New(),
			AgentId:      "neochat",
			Name:         "NeoChat",
			Provider:     "openai",
			ModelId:      "gpt-4o-mini",
			SystemPrompt: "You are NeoChat, a friendly general-purpose conversational assistant.",
			Temperature:  0.7,
			MaxTokens:    1000,
			TopP:         1.0,

			MemoryEnabled: true,
			Behaviors:     datatypes.JSON([]byte(`["streaming"]`)),
			IsActive:      true,
			CreatedAt:     time.Now(),
		},
		{
			Id:           uuid.New(),
			AgentId:      "aethon",
			Name:         "Aethon",
			Provider:     "anthropic",
			ModelId:      "claude-sonnet-4-20250514",
			SystemPrompt: "You are Aethon, a thoughtful research companion. Cite your reasoning.",
			Temperature:  0.5,
			MaxTokens:    2000,
			TopP:         1.0,

			MemoryEnabled: true,
			Behaviors:     datatypes.JSON([]byte(`["streaming","safety_disclaimer"]`)),
			IsActive:      true,
			CreatedAt:     time.Now(),
		},
		{
			Id:           uuid.New(),
			AgentId:      "quicksilver",
			Name:         "Quicksilver",
			Provider:     "googleai",
			ModelId:      "gemini-2.0-flash",
			SystemPrompt: "You are Quicksilver. Answer in the fewest words that fully answer the question.",
			Temperature:  0.3,
			MaxTokens:    500,
			TopP:         0.9,

			MemoryEnabled: false,
			Behaviors:     datatypes.JSON([]byte(`[]`)),
			IsActive:      true,
			CreatedAt:     time.Now(),
		},
		{
			Id:           uuid.New(),
			AgentId:      "localhost",
			Name:         "Localhost",
			Provider:     "ollama",
			ModelId:      "llama3",
			SystemPrompt: "You are a self-hosted assistant running on local hardware.",
			Temperature:  0.7,
			MaxTokens:    1000,
			TopP:         1.0,

			MemoryEnabled: true,
			Behaviors:     datatypes.JSON([]byte(`[]`)),
			IsActive:      true,
			CreatedAt:     time.Now(),
		},
	}

	for _, agent := range agents {
		err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "agent_id"}},
			DoNothing: true,
		}).Create(&agent).Error
		if err != nil {
			log.Printf("Warn: failed to seed agent %s: %v", agent.AgentId, err)
		}
	}
	color.White("Seeded %d agents", len(agents))
}
