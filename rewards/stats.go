/*
stats.go - Read-only statistics aggregation

Derived rollups over ledger and account state: eco tier from cumulative
recycled weight, per-account ledger totals, and the points leaderboard.
Holds no state and enforces no invariants of its own.
*/
package rewards

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecopoints/rewards-engine/domain"
)

// Eco-tier thresholds in cumulative recycled kilograms.
var (
	tierDiamondKg = decimal.NewFromInt(1000)
	tierGoldKg    = decimal.NewFromInt(500)
	tierSilverKg  = decimal.NewFromInt(100)
	tierBronzeKg  = decimal.NewFromInt(10)
)

// EcoTier classifies an account by cumulative recycled weight.
func EcoTier(totalKg decimal.Decimal) string {
	switch {
	case totalKg.GreaterThanOrEqual(tierDiamondKg):
		return "Diamond"
	case totalKg.GreaterThanOrEqual(tierGoldKg):
		return "Gold"
	case totalKg.GreaterThanOrEqual(tierSilverKg):
		return "Silver"
	case totalKg.GreaterThanOrEqual(tierBronzeKg):
		return "Bronze"
	default:
		return "Newbie"
	}
}

// AccountOverview combines current account state with ledger rollups.
type AccountOverview struct {
	AccountID     string
	Points        int64
	CheckinStreak int
	LastCheckin   *time.Time
	Stats         domain.AccountStats
	EcoTier       string
	Ledger        domain.RecordTotals
}

// LeaderboardEntry is one row of the points leaderboard.
type LeaderboardEntry struct {
	Rank          int
	AccountID     string
	Name          string
	Points        int64
	TotalKg       decimal.Decimal
	CheckinStreak int
	EcoTier       string
	MemberSince   time.Time
}

// StatsService reads account and ledger state. It never writes.
type StatsService struct {
	store domain.Store
}

func NewStatsService(store domain.Store) *StatsService {
	return &StatsService{store: store}
}

// Overview returns the combined statistics for one account.
func (s *StatsService) Overview(ctx context.Context, accountID string) (*AccountOverview, error) {
	acct, err := s.store.GetAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}

	totals, err := s.store.RecordTotals(ctx, accountID)
	if err != nil {
		return nil, err
	}

	return &AccountOverview{
		AccountID:     acct.ID,
		Points:        acct.Points,
		CheckinStreak: acct.CheckinStreak,
		LastCheckin:   acct.LastCheckin,
		Stats:         acct.Stats,
		EcoTier:       EcoTier(acct.Stats.TotalKg),
		Ledger:        totals,
	}, nil
}

// Leaderboard returns the top accounts by points, stable order, plus the
// number of active accounts the ranking draws from.
func (s *StatsService) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, int, error) {
	if limit <= 0 {
		limit = 10
	}
	accounts, err := s.store.TopAccountsByPoints(ctx, limit)
	if err != nil {
		return nil, 0, err
	}
	total, err := s.store.CountAccounts(ctx)
	if err != nil {
		return nil, 0, err
	}

	entries := make([]LeaderboardEntry, len(accounts))
	for i, a := range accounts {
		entries[i] = LeaderboardEntry{
			Rank:          i + 1,
			AccountID:     a.ID,
			Name:          a.Name,
			Points:        a.Points,
			TotalKg:       a.Stats.TotalKg,
			CheckinStreak: a.CheckinStreak,
			EcoTier:       EcoTier(a.Stats.TotalKg),
			MemberSince:   a.CreatedAt,
		}
	}
	return entries, total, nil
}
