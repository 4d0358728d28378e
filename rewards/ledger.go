/*
ledger.go - Balance ledger: the only writer of Account.Points

PURPOSE:
  Owns every mutation of an account's point balance. Each mutation
  atomically writes the new balance and exactly one immutable ledger
  record snapshotting the balance before and after.

CRITICAL INVARIANTS:
  1. PointsAfter = PointsBefore + delta, always
  2. PointsAfter >= 0 (debits beyond the balance are rejected)
  3. Records for one account form a chain: each PointsBefore equals the
     previous record's PointsAfter
  4. Balance write + record write commit or roll back together

CONCURRENCY:
  Handlers run concurrently against the same account, so the
  read-modify-write of Points is guarded by optimistic locking: the
  account row carries a version, UpdateAccount rejects a stale version,
  and the ledger retries the whole read-compute-commit cycle a bounded
  number of times before surfacing ErrConcurrencyConflict.

SEE ALSO:
  - domain/store.go: the version-check contract the stores implement
  - checkin.go, voucher.go: specializations built on this ledger
*/
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ecopoints/rewards-engine/domain"
	"github.com/ecopoints/rewards-engine/metrics"
)

// maxCommitAttempts bounds the optimistic-lock retry loop. Conflicts are
// rare (two concurrent writes to one account), so a small budget suffices.
const maxCommitAttempts = 5

// BalanceLedger applies signed point deltas to accounts.
type BalanceLedger struct {
	store domain.TxStore
	log   *logrus.Entry
	clock func() time.Time
}

// NewBalanceLedger creates a ledger over the given transactional store.
// logger may be nil, in which case the standard logger is used.
func NewBalanceLedger(store domain.TxStore, logger *logrus.Logger) *BalanceLedger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &BalanceLedger{
		store: store,
		log:   logger.WithField("component", "balance_ledger"),
		clock: time.Now,
	}
}

// SetClock overrides the time source. Tests use this to pin timestamps.
func (l *BalanceLedger) SetClock(clock func() time.Time) { l.clock = clock }

// =============================================================================
// MUTATION - the single read-modify-write path
// =============================================================================

// mutation describes one balance-changing action. prepare is invoked with
// the freshly loaded account on every commit attempt, so deltas that
// depend on account state (check-in awards) are recomputed after a
// conflict. extra, when set, applies additional account field updates in
// the same commit (stats, streak, last check-in).
type mutation struct {
	kind        domain.RecordKind
	wasteAmount decimal.Decimal
	voucherCode string
	prepare     func(a *domain.Account) (delta int64, description string, meta domain.RecordMetadata, err error)
	extra       func(a *domain.Account)
}

// run executes the mutation with bounded optimistic-lock retries.
func (l *BalanceLedger) run(ctx context.Context, accountID string, m mutation) (*domain.LedgerRecord, *domain.Account, error) {
	var lastErr error

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		acct, err := l.store.GetAccount(ctx, accountID)
		if err != nil {
			return nil, nil, fmt.Errorf("load account: %w", err)
		}
		if acct == nil {
			return nil, nil, domain.ErrAccountNotFound
		}
		if !acct.Active {
			return nil, nil, domain.ErrAccountInactive
		}

		delta, description, meta, err := m.prepare(acct)
		if err != nil {
			return nil, nil, err
		}

		after := acct.Points + delta
		if after < 0 {
			return nil, nil, &domain.InsufficientBalanceError{
				AccountID: accountID,
				Available: acct.Points,
				Requested: -delta,
			}
		}

		now := l.clock()
		rec := domain.LedgerRecord{
			ID:           uuid.NewString(),
			AccountID:    accountID,
			Kind:         m.kind,
			WasteAmount:  m.wasteAmount,
			PointsEarned: delta,
			PointsBefore: acct.Points,
			PointsAfter:  after,
			Description:  description,
			Status:       domain.RecordCompleted,
			VoucherCode:  m.voucherCode,
			Metadata:     meta,
			CreatedAt:    now,
		}

		updated := *acct
		updated.Points = after
		if m.extra != nil {
			m.extra(&updated)
		}
		updated.UpdatedAt = now

		err = l.store.WithTx(ctx, func(s domain.Store) error {
			if err := s.UpdateAccount(ctx, updated, acct.Version); err != nil {
				return err
			}
			return s.AppendRecord(ctx, rec)
		})
		if errors.Is(err, domain.ErrConcurrencyConflict) {
			metrics.LedgerRetries.Inc()
			lastErr = err
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		// The store incremented the persisted version on commit.
		updated.Version = acct.Version + 1

		if delta > 0 {
			metrics.PointsGranted.WithLabelValues(string(m.kind)).Add(float64(delta))
		}
		l.log.WithFields(logrus.Fields{
			"account": accountID,
			"kind":    m.kind,
			"delta":   delta,
			"before":  rec.PointsBefore,
			"after":   rec.PointsAfter,
			"record":  rec.ID,
		}).Info("ledger record committed")

		return &rec, &updated, nil
	}

	return nil, nil, fmt.Errorf("commit after %d attempts: %w", maxCommitAttempts, lastErr)
}

// =============================================================================
// APPLY DELTA - the generic operation
// =============================================================================

// ApplyDelta applies a signed point delta to the account and returns the
// resulting ledger record. Debits that would take the balance negative
// fail with InsufficientBalance.
func (l *BalanceLedger) ApplyDelta(ctx context.Context, accountID string, kind domain.RecordKind, points int64, description string, meta domain.RecordMetadata) (*domain.LedgerRecord, error) {
	rec, _, err := l.run(ctx, accountID, mutation{
		kind: kind,
		prepare: func(*domain.Account) (int64, string, domain.RecordMetadata, error) {
			return points, description, meta, nil
		},
	})
	return rec, err
}

// =============================================================================
// EXCHANGE WASTE - waste -> points, the primary earn action
// =============================================================================

// ExchangeInput is the waste-exchange request after authentication.
type ExchangeInput struct {
	AccountID   string
	Weight      decimal.Decimal
	Location    string
	PlasticType domain.PlasticType
}

// ExchangeWaste converts a waste weight into points using the
// exchange-pathway formula, credits the account, and bumps the recycled
// totals in the same commit.
func (l *BalanceLedger) ExchangeWaste(ctx context.Context, in ExchangeInput) (*domain.LedgerRecord, *domain.Account, error) {
	if !domain.ValidWeight(in.Weight) {
		return nil, nil, &domain.ValidationError{
			Field:   "weight",
			Message: fmt.Sprintf("must be between %s and %s kg", domain.MinWeight, domain.MaxWeight),
		}
	}
	if !domain.ValidExchangePlastic(in.PlasticType) {
		return nil, nil, &domain.ValidationError{Field: "plastic_type", Message: "unknown plastic type"}
	}
	if len(in.Location) > domain.MaxLocationLen {
		return nil, nil, &domain.ValidationError{
			Field:   "location",
			Message: fmt.Sprintf("must be at most %d characters", domain.MaxLocationLen),
		}
	}

	calc := domain.CalculateExchangePoints(in.Weight)

	return l.run(ctx, in.AccountID, mutation{
		kind:        domain.KindWasteExchange,
		wasteAmount: in.Weight,
		prepare: func(*domain.Account) (int64, string, domain.RecordMetadata, error) {
			desc := fmt.Sprintf("Exchanged %s kg of waste for %d points", in.Weight, calc.TotalPoints)
			meta := domain.RecordMetadata{Exchange: &domain.ExchangeMetadata{
				PlasticType:  in.PlasticType,
				WeightKg:     in.Weight,
				BonusApplied: calc.HasBonus,
				BonusPoints:  calc.BonusPoints,
				Location:     in.Location,
			}}
			return calc.TotalPoints, desc, meta, nil
		},
		extra: func(a *domain.Account) {
			a.Stats.TotalKg = a.Stats.TotalKg.Add(in.Weight)
			a.Stats.TotalOrders++
		},
	})
}
