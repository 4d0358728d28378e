package rewards_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopoints/rewards-engine/domain"
	"github.com/ecopoints/rewards-engine/rewards"
)

// =============================================================================
// ECO TIERS
// =============================================================================

func TestEcoTier_Thresholds(t *testing.T) {
	cases := []struct {
		totalKg string
		tier    string
	}{
		{"0", "Newbie"},
		{"9.99", "Newbie"},
		{"10", "Bronze"},
		{"99.9", "Bronze"},
		{"100", "Silver"},
		{"499", "Silver"},
		{"500", "Gold"},
		{"999.99", "Gold"},
		{"1000", "Diamond"},
		{"5000", "Diamond"},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.tier, rewards.EcoTier(kg(tc.totalKg)), "totalKg=%s", tc.totalKg)
	}
}

// =============================================================================
// OVERVIEW
// =============================================================================

func TestStatsService_Overview_CombinesAccountAndLedger(t *testing.T) {
	// GIVEN: An account with an exchange, a check-in, and a redemption
	// WHEN: Fetching the overview
	// THEN: Ledger rollups count kinds and split earned/redeemed, and the
	//       eco tier reflects the cumulative weight

	ledger, store := newTestLedger(t)
	issuer := rewards.NewVoucherIssuer(ledger, store, nil)
	stats := rewards.NewStatsService(store)
	seedAccount(t, store, "acct-1", 0)
	ctx := context.Background()

	_, _, err := ledger.ExchangeWaste(ctx, rewards.ExchangeInput{
		AccountID: "acct-1", Weight: kg("15"), PlasticType: domain.PlasticPET,
	})
	require.NoError(t, err)

	tracker := rewards.NewCheckinTracker(ledger, nil)
	_, _, err = tracker.Checkin(ctx, "acct-1", monday)
	require.NoError(t, err)

	_, _, err = issuer.Redeem(ctx, redeemInput("acct-1", 100))
	require.NoError(t, err)

	ov, err := stats.Overview(ctx, "acct-1")
	require.NoError(t, err)

	// Exchange: 150 base + 15 bonus = 165; check-in: +2; redeem: -100
	assert.Equal(t, int64(67), ov.Points)
	assert.Equal(t, "Bronze", ov.EcoTier)
	assert.Equal(t, 3, ov.Ledger.TotalRecords)
	assert.Equal(t, 1, ov.Ledger.ExchangeRecords)
	assert.Equal(t, 1, ov.Ledger.CheckinRecords)
	assert.Equal(t, int64(167), ov.Ledger.TotalEarned)
	assert.Equal(t, int64(100), ov.Ledger.TotalRedeemed)
	assert.Equal(t, "15", ov.Ledger.TotalWasteKg)
}

func TestStatsService_Overview_UnknownAccount(t *testing.T) {
	_, store := newTestLedger(t)
	stats := rewards.NewStatsService(store)

	_, err := stats.Overview(context.Background(), "ghost")
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

// =============================================================================
// LEADERBOARD
// =============================================================================

func TestStatsService_Leaderboard_OrderedByPoints(t *testing.T) {
	// GIVEN: Five accounts with different balances
	// WHEN: Fetching a top-3 leaderboard
	// THEN: Entries come back points-descending with 1-based ranks and the
	//       population size covers all accounts

	ledger, store := newTestLedger(t)
	stats := rewards.NewStatsService(store)
	ctx := context.Background()

	for i, points := range []int64{50, 300, 120, 10, 200} {
		id := fmt.Sprintf("acct-%d", i)
		seedAccount(t, store, id, 0)
		if points > 0 {
			_, err := ledger.ApplyDelta(ctx, id, domain.KindBonus, points, "seed", domain.RecordMetadata{})
			require.NoError(t, err)
		}
	}

	entries, total, err := stats.Leaderboard(ctx, 3)
	require.NoError(t, err)

	assert.Equal(t, 5, total)
	require.Len(t, entries, 3)
	assert.Equal(t, int64(300), entries[0].Points)
	assert.Equal(t, int64(200), entries[1].Points)
	assert.Equal(t, int64(120), entries[2].Points)
	for i, e := range entries {
		assert.Equal(t, i+1, e.Rank)
	}
}

func TestStatsService_Leaderboard_SkipsInactiveAccounts(t *testing.T) {
	// GIVEN: Two active accounts and one deactivated account
	// WHEN: Fetching the leaderboard
	// THEN: The inactive account appears in neither the entries nor the
	//       population total

	_, store := newTestLedger(t)
	stats := rewards.NewStatsService(store)
	ctx := context.Background()

	seedAccount(t, store, "acct-1", 200)
	seedAccount(t, store, "acct-2", 100)
	dormant := domain.Account{
		ID:      "acct-3",
		Name:    "Dormant",
		Email:   "dormant@example.com",
		Points:  9999,
		Active:  false,
		Version: 1,
	}
	require.NoError(t, store.CreateAccount(ctx, dormant))

	entries, total, err := stats.Leaderboard(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, 2, total)
	require.Len(t, entries, 2)
	assert.Equal(t, "acct-1", entries[0].AccountID)
	assert.Equal(t, "acct-2", entries[1].AccountID)
}

func TestStatsService_Leaderboard_DefaultLimit(t *testing.T) {
	_, store := newTestLedger(t)
	stats := rewards.NewStatsService(store)

	entries, total, err := stats.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	assert.Empty(t, entries)
	assert.Zero(t, total)
}
