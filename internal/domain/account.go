package domain

import "time"

// Plan tiers. Each tier maps to a monthly message ceiling (see quota package).
const (
	TierFree = "free"
	TierPro  = "pro"
)

type Account struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	PlanTier  string    `json:"plan_tier"`
	CreatedAt time.Time `json:"created_at"`
}
