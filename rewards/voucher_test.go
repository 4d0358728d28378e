package rewards_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopoints/rewards-engine/domain"
	"github.com/ecopoints/rewards-engine/rewards"
	"github.com/ecopoints/rewards-engine/store/memory"
)

// collidingStore reports every candidate code as taken, forcing the
// issuer through its bounded redraw loop.
type collidingStore struct {
	*memory.Store
}

func (s *collidingStore) VoucherCodeExists(context.Context, string) (bool, error) {
	return true, nil
}

// collideOnceStore rejects the first candidate code, then delegates.
type collideOnceStore struct {
	*memory.Store
	collided bool
}

func (s *collideOnceStore) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	if !s.collided {
		s.collided = true
		return true, nil
	}
	return s.Store.VoucherCodeExists(ctx, code)
}

func redeemInput(accountID string, points int64) rewards.RedeemInput {
	return rewards.RedeemInput{
		AccountID:      accountID,
		PointsRequired: points,
		VoucherType:    "shopping",
		VoucherValue:   50000,
		VoucherName:    "Grocery voucher",
	}
}

func TestRedeem_DebitsAndReservesCode(t *testing.T) {
	// GIVEN: An account with 150 points
	// WHEN: Redeeming a 100-point voucher
	// THEN: Balance drops to 50, the record carries a 12-char [A-Z0-9]
	//       code and the voucher details, pointsEarned is -100

	ledger, store := newTestLedger(t)
	issuer := rewards.NewVoucherIssuer(ledger, store, nil)
	seedAccount(t, store, "acct-1", 150)

	rec, acct, err := issuer.Redeem(context.Background(), redeemInput("acct-1", 100))
	require.NoError(t, err)

	assert.Equal(t, int64(-100), rec.PointsEarned)
	assert.Equal(t, int64(150), rec.PointsBefore)
	assert.Equal(t, int64(50), rec.PointsAfter)
	assert.Equal(t, domain.KindRedemption, rec.Kind)
	assert.Equal(t, int64(50), acct.Points)

	require.Len(t, rec.VoucherCode, 12)
	for _, c := range rec.VoucherCode {
		valid := (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		assert.True(t, valid, "code character %q outside [A-Z0-9]", c)
	}

	require.NotNil(t, rec.Metadata.Voucher)
	assert.Equal(t, "Grocery voucher", rec.Metadata.Voucher.Name)
	assert.Equal(t, "shopping", rec.Metadata.Voucher.Type)
	assert.Equal(t, int64(50000), rec.Metadata.Voucher.Value)
}

func TestRedeem_InsufficientBalance(t *testing.T) {
	// GIVEN: An account with 90 points
	// WHEN: Redeeming a 100-point voucher
	// THEN: Rejected; no record, no code reserved, balance untouched

	ledger, store := newTestLedger(t)
	issuer := rewards.NewVoucherIssuer(ledger, store, nil)
	seedAccount(t, store, "acct-1", 90)
	ctx := context.Background()

	_, _, err := issuer.Redeem(ctx, redeemInput("acct-1", 100))
	assert.ErrorIs(t, err, domain.ErrInsufficientBalance)

	acct, err := store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(90), acct.Points)

	recs, _, err := store.ListRecords(ctx, domain.RecordFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRedeem_ValidationBounds(t *testing.T) {
	ledger, store := newTestLedger(t)
	issuer := rewards.NewVoucherIssuer(ledger, store, nil)
	seedAccount(t, store, "acct-1", 20000)
	ctx := context.Background()

	cases := []struct {
		name string
		in   rewards.RedeemInput
	}{
		{"points below minimum", rewards.RedeemInput{AccountID: "acct-1", PointsRequired: 99, VoucherType: "shopping", VoucherValue: 50000}},
		{"points above maximum", rewards.RedeemInput{AccountID: "acct-1", PointsRequired: 10001, VoucherType: "shopping", VoucherValue: 50000}},
		{"value below minimum", rewards.RedeemInput{AccountID: "acct-1", PointsRequired: 100, VoucherType: "shopping", VoucherValue: 9999}},
		{"value above maximum", rewards.RedeemInput{AccountID: "acct-1", PointsRequired: 100, VoucherType: "shopping", VoucherValue: 1000001}},
		{"unknown type", rewards.RedeemInput{AccountID: "acct-1", PointsRequired: 100, VoucherType: "crypto", VoucherValue: 50000}},
		{"description too long", rewards.RedeemInput{AccountID: "acct-1", PointsRequired: 100, VoucherType: "shopping", VoucherValue: 50000, Description: strings.Repeat("x", 501)}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := issuer.Redeem(ctx, tc.in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}
}

func TestRedeem_ConcurrentRedemptions_CodesUnique(t *testing.T) {
	// GIVEN: An account with plenty of points
	// WHEN: Ten concurrent redemptions
	// THEN: Every committed redemption carries a distinct code and the
	//       balance reflects exactly the committed debits

	ledger, store := newTestLedger(t)
	issuer := rewards.NewVoucherIssuer(ledger, store, nil)
	seedAccount(t, store, "acct-1", 10000)
	ctx := context.Background()

	const workers = 10
	var wg sync.WaitGroup
	codes := make([]string, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec, _, err := issuer.Redeem(ctx, redeemInput("acct-1", 100))
			errs[n] = err
			if err == nil {
				codes[n] = rec.VoucherCode
			}
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	committed := 0
	for i := range codes {
		if errs[i] != nil {
			continue
		}
		committed++
		assert.False(t, seen[codes[i]], "duplicate voucher code %s", codes[i])
		seen[codes[i]] = true
	}

	acct, err := store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(10000-committed*100), acct.Points)
}

func TestRedeem_CodeSpaceExhausted(t *testing.T) {
	// GIVEN: A store where every candidate code is already reserved
	// WHEN: Redeeming a voucher
	// THEN: The bounded redraw loop gives up with CodeSpaceExhausted,
	//       leaving the balance untouched and no record behind

	ledger, store := newTestLedger(t)
	issuer := rewards.NewVoucherIssuer(ledger, &collidingStore{Store: store}, nil)
	seedAccount(t, store, "acct-1", 500)
	ctx := context.Background()

	_, _, err := issuer.Redeem(ctx, redeemInput("acct-1", 100))
	assert.ErrorIs(t, err, domain.ErrCodeSpaceExhausted)

	acct, err := store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), acct.Points)

	recs, _, err := store.ListRecords(ctx, domain.RecordFilter{AccountID: "acct-1"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRedeem_RedrawsAfterCollision(t *testing.T) {
	// GIVEN: A store that rejects the first candidate code
	// WHEN: Redeeming a voucher
	// THEN: The issuer redraws and commits with a fresh code

	ledger, store := newTestLedger(t)
	issuer := rewards.NewVoucherIssuer(ledger, &collideOnceStore{Store: store}, nil)
	seedAccount(t, store, "acct-1", 500)

	rec, acct, err := issuer.Redeem(context.Background(), redeemInput("acct-1", 100))
	require.NoError(t, err)
	assert.Len(t, rec.VoucherCode, 12)
	assert.Equal(t, int64(400), acct.Points)
}

func TestRedeem_DefaultVoucherName(t *testing.T) {
	ledger, store := newTestLedger(t)
	issuer := rewards.NewVoucherIssuer(ledger, store, nil)
	seedAccount(t, store, "acct-1", 500)

	in := redeemInput("acct-1", 100)
	in.VoucherName = ""
	rec, _, err := issuer.Redeem(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, "Shopping voucher", rec.Metadata.Voucher.Name)
}
