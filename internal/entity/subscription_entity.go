package entity

import (
	"time"

	"github.com/google/uuid"
)

const (
	SubscriptionStatusActive   = "active"
	SubscriptionStatusCanceled = "canceled"
	SubscriptionStatusExpired  = "expired"
)

type Plan struct {
	Id                 uuid.UUID
	Name               string
	Slug               string
	ApiRequestsPerHour int // negative means unlimited
	AgentChatEnabled   bool
	StreamingEnabled   bool
}

type UserSubscription struct {
	Id               uuid.UUID
	UserId           uuid.UUID
	PlanId           uuid.UUID
	Status           string
	CurrentPeriodEnd time.Time
	CreatedAt        time.Time
}
