package submission_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecopoints/rewards-engine/domain"
	"github.com/ecopoints/rewards-engine/store/memory"
	"github.com/ecopoints/rewards-engine/submission"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestWorkflow(t *testing.T) (*submission.Workflow, *memory.Store) {
	t.Helper()
	store := memory.New()
	wf := submission.NewWorkflow(store, nil)
	return wf, store
}

func seedAccount(t *testing.T, store *memory.Store, id string) {
	t.Helper()
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	err := store.CreateAccount(context.Background(), domain.Account{
		ID:        id,
		Name:      "Test Account",
		Email:     id + "@example.com",
		Stats:     domain.AccountStats{TotalKg: decimal.Zero},
		Active:    true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	})
	require.NoError(t, err)
}

func kg(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func submitInput(accountID string) submission.SubmitInput {
	return submission.SubmitInput{
		AccountID:   accountID,
		PlasticType: domain.PlasticPET,
		Weight:      kg("20"),
		Location:    "Binh Thanh collection point",
	}
}

// =============================================================================
// SUBMIT
// =============================================================================

func TestWorkflow_Submit_PendingWithComputedValues(t *testing.T) {
	// GIVEN: An active account
	// WHEN: Submitting 20 kg of PET
	// THEN: Pending submission with 200 + 10 = 210 points, 210000 VND,
	//       price fixed at 10000/kg, no timestamps yet

	wf, store := newTestWorkflow(t)
	seedAccount(t, store, "acct-1")

	sub, err := wf.Submit(context.Background(), submitInput("acct-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.SubmissionPending, sub.Status)
	assert.Equal(t, int64(200), sub.Points)
	assert.Equal(t, int64(10), sub.BonusPoints)
	assert.Equal(t, int64(210), sub.TotalPoints)
	assert.Equal(t, int64(210000), sub.TotalEarnings)
	assert.Equal(t, int64(submission.PricePerKg), sub.PricePerKg)
	assert.Nil(t, sub.ConfirmedAt)
	assert.Nil(t, sub.CompletedAt)
}

func TestWorkflow_Submit_Validation(t *testing.T) {
	wf, store := newTestWorkflow(t)
	seedAccount(t, store, "acct-1")
	ctx := context.Background()

	in := submitInput("acct-1")
	in.PlasticType = domain.PlasticAll // "all" is exchange-only
	_, err := wf.Submit(ctx, in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = submitInput("acct-1")
	in.Weight = kg("0.05")
	_, err = wf.Submit(ctx, in)
	assert.ErrorIs(t, err, domain.ErrValidation)

	in = submitInput("acct-1")
	in.Location = ""
	_, err = wf.Submit(ctx, in)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestWorkflow_Submit_UnknownAccount(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	_, err := wf.Submit(context.Background(), submitInput("ghost"))
	assert.ErrorIs(t, err, domain.ErrAccountNotFound)
}

// =============================================================================
// STATE MACHINE
// =============================================================================

func TestWorkflow_ConfirmThenComplete(t *testing.T) {
	// GIVEN: A pending submission
	// WHEN: Confirming, then completing
	// THEN: Timestamps are set exactly once and the confirm credits the
	//       account statistics, never the points balance

	wf, store := newTestWorkflow(t)
	seedAccount(t, store, "acct-1")
	ctx := context.Background()

	sub, err := wf.Submit(ctx, submitInput("acct-1"))
	require.NoError(t, err)

	confirmed, err := wf.Confirm(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionConfirmed, confirmed.Status)
	require.NotNil(t, confirmed.ConfirmedAt)
	assert.Nil(t, confirmed.CompletedAt)

	acct, err := store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), acct.Points, "confirm must not touch the points balance")
	assert.Equal(t, int64(210), acct.Stats.TotalPoints)
	assert.Equal(t, int64(210000), acct.Stats.TotalEarnings)
	assert.True(t, acct.Stats.TotalKg.Equal(kg("20")))
	assert.Equal(t, int64(1), acct.Stats.TotalOrders)

	completed, err := wf.Complete(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionCompleted, completed.Status)
	require.NotNil(t, completed.CompletedAt)
	assert.Equal(t, confirmed.ConfirmedAt.Unix(), completed.ConfirmedAt.Unix())
}

func TestWorkflow_CompleteBeforeConfirm_Rejected(t *testing.T) {
	// GIVEN: A pending submission
	// WHEN: Completing without confirming first
	// THEN: InvalidTransition, nothing changes

	wf, store := newTestWorkflow(t)
	seedAccount(t, store, "acct-1")
	ctx := context.Background()

	sub, err := wf.Submit(ctx, submitInput("acct-1"))
	require.NoError(t, err)

	_, err = wf.Complete(ctx, sub.ID)
	var transErr *domain.InvalidTransitionError
	require.ErrorAs(t, err, &transErr)
	assert.Equal(t, domain.SubmissionPending, transErr.From)
	assert.Equal(t, domain.SubmissionCompleted, transErr.To)

	got, err := wf.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionPending, got.Status)
}

func TestWorkflow_CancelPending(t *testing.T) {
	wf, store := newTestWorkflow(t)
	seedAccount(t, store, "acct-1")
	ctx := context.Background()

	sub, err := wf.Submit(ctx, submitInput("acct-1"))
	require.NoError(t, err)

	cancelled, err := wf.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionCancelled, cancelled.Status)

	// Terminal: no further transitions
	_, err = wf.Confirm(ctx, sub.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = wf.Cancel(ctx, sub.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestWorkflow_CancelAfterConfirm_KeepsStatsAndConfirmedAt(t *testing.T) {
	// GIVEN: A confirmed submission whose stats credit already applied
	// WHEN: Cancelling it
	// THEN: The stats increment stays and ConfirmedAt remains set, so the
	//       inflation is auditable

	wf, store := newTestWorkflow(t)
	seedAccount(t, store, "acct-1")
	ctx := context.Background()

	sub, err := wf.Submit(ctx, submitInput("acct-1"))
	require.NoError(t, err)
	_, err = wf.Confirm(ctx, sub.ID)
	require.NoError(t, err)

	cancelled, err := wf.Cancel(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SubmissionCancelled, cancelled.Status)
	assert.NotNil(t, cancelled.ConfirmedAt)

	acct, err := store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(210), acct.Stats.TotalPoints, "cancel does not reverse the stats credit")
	assert.Equal(t, int64(1), acct.Stats.TotalOrders)
}

func TestWorkflow_DoubleConfirm_Rejected(t *testing.T) {
	wf, store := newTestWorkflow(t)
	seedAccount(t, store, "acct-1")
	ctx := context.Background()

	sub, err := wf.Submit(ctx, submitInput("acct-1"))
	require.NoError(t, err)
	_, err = wf.Confirm(ctx, sub.ID)
	require.NoError(t, err)

	_, err = wf.Confirm(ctx, sub.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// The stats credit applied exactly once
	acct, err := store.GetAccount(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(210), acct.Stats.TotalPoints)
}

func TestWorkflow_TransitionUnknownSubmission(t *testing.T) {
	wf, _ := newTestWorkflow(t)
	ctx := context.Background()

	_, err := wf.Confirm(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)
	_, err = wf.Get(ctx, "ghost")
	assert.ErrorIs(t, err, domain.ErrSubmissionNotFound)
}

// =============================================================================
// LISTING
// =============================================================================

func TestWorkflow_List_FiltersByStatusAndAccount(t *testing.T) {
	// GIVEN: Submissions from two accounts, one confirmed
	// WHEN: Listing with filters
	// THEN: Status and account filters narrow the result

	wf, store := newTestWorkflow(t)
	seedAccount(t, store, "acct-1")
	seedAccount(t, store, "acct-2")
	ctx := context.Background()

	s1, err := wf.Submit(ctx, submitInput("acct-1"))
	require.NoError(t, err)
	_, err = wf.Submit(ctx, submitInput("acct-1"))
	require.NoError(t, err)
	_, err = wf.Submit(ctx, submitInput("acct-2"))
	require.NoError(t, err)

	_, err = wf.Confirm(ctx, s1.ID)
	require.NoError(t, err)

	subs, page, err := wf.List(ctx, domain.SubmissionFilter{Status: domain.SubmissionPending})
	require.NoError(t, err)
	assert.Len(t, subs, 2)
	assert.Equal(t, 2, page.Total)

	subs, page, err = wf.List(ctx, domain.SubmissionFilter{AccountID: "acct-2"})
	require.NoError(t, err)
	assert.Len(t, subs, 1)
	assert.Equal(t, 1, page.Total)
}
