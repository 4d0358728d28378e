/*
Package submission implements the waste-submission workflow.

PURPOSE:
  A raw waste deposit is submitted by a user, then driven by an
  administrative actor through a state machine:

      pending -> confirmed -> completed
      pending -> cancelled
      confirmed -> cancelled

  Confirmed and completed are otherwise irreversible.

THIS IS NOT THE BALANCE LEDGER:
  Confirmation mutates Account.Stats (total points, earnings, kg,
  orders) by the submission's values computed at submission time. It
  never touches Account.Points and never writes a LedgerRecord. The two
  reward pathways also use different bonus formulas; see
  domain/calculator.go.

KNOWN INCONSISTENCY (kept as observed):
  Cancelling a submission after confirmation does not reverse the stats
  increment the confirmation applied. ConfirmedAt stays set on the
  cancelled submission so the inflation remains auditable.

SEE ALSO:
  - domain/types.go: Submission entity and CanTransition
  - rewards/ledger.go: the other (points) pathway
*/
package submission

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ecopoints/rewards-engine/domain"
)

// PricePerKg is the flat VND price fixed on every submission at
// submission time. It is not recomputed on later transitions.
const PricePerKg = 10000

// maxConfirmAttempts bounds the optimistic retry of the confirm commit,
// which races with ledger writes on the same account row.
const maxConfirmAttempts = 5

// Workflow drives submissions through their states.
type Workflow struct {
	store domain.TxStore
	log   *logrus.Entry
	clock func() time.Time
}

func NewWorkflow(store domain.TxStore, logger *logrus.Logger) *Workflow {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Workflow{
		store: store,
		log:   logger.WithField("component", "submission"),
		clock: time.Now,
	}
}

// SetClock overrides the time source for tests.
func (w *Workflow) SetClock(clock func() time.Time) { w.clock = clock }

// =============================================================================
// SUBMIT
// =============================================================================

// SubmitInput is a new waste deposit.
type SubmitInput struct {
	AccountID   string
	PlasticType domain.PlasticType
	Weight      decimal.Decimal
	Location    string
	Notes       string
	Images      []string
}

// Submit records a deposit in the pending state with its points,
// earnings, and price fixed by the submission-pathway formula.
func (w *Workflow) Submit(ctx context.Context, in SubmitInput) (*domain.Submission, error) {
	if err := validateSubmit(in); err != nil {
		return nil, err
	}

	acct, err := w.store.GetAccount(ctx, in.AccountID)
	if err != nil {
		return nil, fmt.Errorf("load account: %w", err)
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}
	if !acct.Active {
		return nil, domain.ErrAccountInactive
	}

	calc := domain.CalculateSubmissionPoints(in.Weight)
	now := w.clock()

	sub := domain.Submission{
		ID:            uuid.NewString(),
		AccountID:     in.AccountID,
		PlasticType:   in.PlasticType,
		Weight:        in.Weight,
		Points:        calc.Points,
		BonusPoints:   calc.BonusPoints,
		TotalPoints:   calc.TotalPoints,
		PricePerKg:    PricePerKg,
		TotalEarnings: calc.TotalEarnings,
		Status:        domain.SubmissionPending,
		Location:      in.Location,
		Notes:         in.Notes,
		Images:        in.Images,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := w.store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("create submission: %w", err)
	}

	w.log.WithFields(logrus.Fields{
		"submission": sub.ID,
		"account":    sub.AccountID,
		"weight_kg":  sub.Weight,
		"points":     sub.TotalPoints,
	}).Info("submission created")

	return &sub, nil
}

func validateSubmit(in SubmitInput) error {
	if !domain.ValidSubmissionPlastic(in.PlasticType) {
		return &domain.ValidationError{Field: "plastic_type", Message: "must be pet, bag, box, or mixed"}
	}
	if !domain.ValidWeight(in.Weight) {
		return &domain.ValidationError{
			Field:   "weight",
			Message: fmt.Sprintf("must be between %s and %s kg", domain.MinWeight, domain.MaxWeight),
		}
	}
	if in.Location == "" || len(in.Location) > domain.MaxLocationLen {
		return &domain.ValidationError{
			Field:   "location",
			Message: fmt.Sprintf("required, at most %d characters", domain.MaxLocationLen),
		}
	}
	if len(in.Notes) > domain.MaxNotesLen {
		return &domain.ValidationError{
			Field:   "notes",
			Message: fmt.Sprintf("at most %d characters", domain.MaxNotesLen),
		}
	}
	return nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Confirm moves a pending submission to confirmed, sets ConfirmedAt
// exactly once, and credits the submission's computed values to the
// account statistics, all in one transaction.
func (w *Workflow) Confirm(ctx context.Context, id string) (*domain.Submission, error) {
	var result *domain.Submission
	var lastErr error

	for attempt := 0; attempt < maxConfirmAttempts; attempt++ {
		sub, err := w.loadForTransition(ctx, id, domain.SubmissionConfirmed)
		if err != nil {
			return nil, err
		}

		acct, err := w.store.GetAccount(ctx, sub.AccountID)
		if err != nil {
			return nil, fmt.Errorf("load account: %w", err)
		}
		if acct == nil {
			return nil, domain.ErrAccountNotFound
		}

		now := w.clock()
		updated := *sub
		updated.Status = domain.SubmissionConfirmed
		updated.ConfirmedAt = &now
		updated.UpdatedAt = now

		credited := *acct
		credited.Stats.TotalPoints += sub.TotalPoints
		credited.Stats.TotalEarnings += sub.TotalEarnings
		credited.Stats.TotalKg = credited.Stats.TotalKg.Add(sub.Weight)
		credited.Stats.TotalOrders++
		credited.UpdatedAt = now

		err = w.store.WithTx(ctx, func(s domain.Store) error {
			if err := s.UpdateSubmission(ctx, updated, domain.SubmissionPending); err != nil {
				return err
			}
			return s.UpdateAccount(ctx, credited, acct.Version)
		})
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			lastErr = err
			continue
		}
		if err != nil {
			return nil, err
		}

		result = &updated
		break
	}
	if result == nil {
		return nil, fmt.Errorf("confirm after %d attempts: %w", maxConfirmAttempts, lastErr)
	}

	w.log.WithFields(logrus.Fields{
		"submission": result.ID,
		"account":    result.AccountID,
		"points":     result.TotalPoints,
	}).Info("submission confirmed")

	return result, nil
}

// Complete moves a confirmed submission to completed and sets
// CompletedAt exactly once. No statistic effect.
func (w *Workflow) Complete(ctx context.Context, id string) (*domain.Submission, error) {
	sub, err := w.loadForTransition(ctx, id, domain.SubmissionCompleted)
	if err != nil {
		return nil, err
	}

	now := w.clock()
	updated := *sub
	updated.Status = domain.SubmissionCompleted
	updated.CompletedAt = &now
	updated.UpdatedAt = now

	if err := w.store.UpdateSubmission(ctx, updated, domain.SubmissionConfirmed); err != nil {
		return nil, err
	}

	w.log.WithField("submission", id).Info("submission completed")
	return &updated, nil
}

// Cancel moves a pending or confirmed submission to cancelled. A stats
// increment from a prior confirmation is not rolled back.
func (w *Workflow) Cancel(ctx context.Context, id string) (*domain.Submission, error) {
	sub, err := w.loadForTransition(ctx, id, domain.SubmissionCancelled)
	if err != nil {
		return nil, err
	}

	now := w.clock()
	updated := *sub
	updated.Status = domain.SubmissionCancelled
	updated.UpdatedAt = now

	if err := w.store.UpdateSubmission(ctx, updated, sub.Status); err != nil {
		return nil, err
	}

	w.log.WithFields(logrus.Fields{
		"submission": id,
		"from":       sub.Status,
	}).Info("submission cancelled")
	return &updated, nil
}

// loadForTransition fetches the submission and checks the state machine.
func (w *Workflow) loadForTransition(ctx context.Context, id string, next domain.SubmissionStatus) (*domain.Submission, error) {
	sub, err := w.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load submission: %w", err)
	}
	if sub == nil {
		return nil, domain.ErrSubmissionNotFound
	}
	if !sub.CanTransition(next) {
		return nil, &domain.InvalidTransitionError{SubmissionID: id, From: sub.Status, To: next}
	}
	return sub, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns one submission.
func (w *Workflow) Get(ctx context.Context, id string) (*domain.Submission, error) {
	sub, err := w.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub == nil {
		return nil, domain.ErrSubmissionNotFound
	}
	return sub, nil
}

// List returns submissions matching the filter, newest first, with the
// pagination envelope.
func (w *Workflow) List(ctx context.Context, f domain.SubmissionFilter) ([]domain.Submission, domain.Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 10
	}
	subs, total, err := w.store.ListSubmissions(ctx, f)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return subs, domain.NewPage(f.Page, f.PageSize, total), nil
}
