package model

import (
	"time"

	"github.com/google/uuid"
)

type Plan struct {
	Id                 uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name               string
	Slug               string `gorm:"uniqueIndex"`
	ApiRequestsPerHour int
	AgentChatEnabled   bool
	StreamingEnabled   bool
}

type UserSubscription struct {
	Id               uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserId           uuid.UUID `gorm:"type:uuid;index"`
	PlanId           uuid.UUID `gorm:"type:uuid"`
	Status           string    `gorm:"index"`
	CurrentPeriodEnd time.Time
	CreatedAt        time.Time
}
