package quota

import (
	"context"
	"fmt"

	"github.com/snigdhasv/email-delivery-service/internal/domain"
)

// Monthly message ceilings per plan tier.
var tierLimits = map[string]int{
	domain.TierFree: 100,
	domain.TierPro:  10000,
}

// LimitFor returns the monthly ceiling for a tier. Unknown tiers get the
// free ceiling.
func LimitFor(tier string) int {
	if limit, ok := tierLimits[tier]; ok {
		return limit
	}
	return tierLimits[domain.TierFree]
}

// ExceededError is returned when an account has used up its monthly quota.
type ExceededError struct {
	Used  int
	Limit int
	Tier  string
}

func (e *ExceededError) Error() string {
	return fmt.Sprintf("monthly quota exceeded: %d/%d (%s tier)", e.Used, e.Limit, e.Tier)
}

// UsageStore is the slice of the record store the gate needs.
type UsageStore interface {
	MonthlyUsage(ctx context.Context, accountID string) (int, error)
}

// Gate enforces per-account monthly quotas. It must run before any delivery
// record is created so over-quota requests produce zero side effects.
type Gate struct {
	store UsageStore
}

func NewGate(store UsageStore) *Gate {
	return &Gate{store: store}
}

// Check returns the account's current usage and limit, or an *ExceededError
// if the account is at or above its ceiling.
func (g *Gate) Check(ctx context.Context, account *domain.Account) (used, limit int, err error) {
	used, err = g.store.MonthlyUsage(ctx, account.ID)
	if err != nil {
		return 0, 0, fmt.Errorf("checking quota: %w", err)
	}

	limit = LimitFor(account.PlanTier)
	if used >= limit {
		return used, limit, &ExceededError{Used: used, Limit: limit, Tier: account.PlanTier}
	}

	return used, limit, nil
}
