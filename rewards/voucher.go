/*
voucher.go - Voucher issuance: points -> redemption code

PURPOSE:
  Debits the account, reserves a unique 12-character redemption code, and
  records the redemption as one atomic unit. A code is never valid
  without its matching debit, and a debit never commits without a
  reserved code.

CODE GENERATION:
  Codes are drawn from [A-Z0-9] with crypto/rand. The code space (36^12)
  makes collisions practically unobservable, but the contract still
  retries on collision rather than assuming uniqueness, and the retry
  loop is bounded: after maxCodeAttempts redraws the issuer gives up with
  CodeSpaceExhausted instead of spinning forever. The store's unique
  index on voucher codes is the authoritative reservation; the pre-check
  only avoids wasting a commit on a known collision.
*/
package rewards

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/ecopoints/rewards-engine/domain"
	"github.com/ecopoints/rewards-engine/metrics"
)

const (
	voucherCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	voucherCodeLength   = 12

	// maxCodeAttempts bounds the redraw loop.
	maxCodeAttempts = 5
)

// Voucher categories accepted at redemption.
var voucherTypes = map[string]bool{
	"shopping":      true,
	"ecommerce":     true,
	"food":          true,
	"entertainment": true,
}

// RedeemInput is a voucher redemption request after authentication.
type RedeemInput struct {
	AccountID      string
	PointsRequired int64
	VoucherType    string
	VoucherValue   int64
	VoucherName    string
	Description    string
	IconClass      string
}

// VoucherIssuer exchanges points for redemption codes through the
// balance ledger.
type VoucherIssuer struct {
	ledger *BalanceLedger
	store  domain.TxStore
	log    *logrus.Entry
}

func NewVoucherIssuer(ledger *BalanceLedger, store domain.TxStore, logger *logrus.Logger) *VoucherIssuer {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &VoucherIssuer{
		ledger: ledger,
		store:  store,
		log:    logger.WithField("component", "voucher"),
	}
}

// Redeem debits PointsRequired from the account and returns the
// redemption record carrying the reserved voucher code. Fails with
// InsufficientBalance when the account holds fewer points than required.
func (v *VoucherIssuer) Redeem(ctx context.Context, in RedeemInput) (*domain.LedgerRecord, *domain.Account, error) {
	if err := validateRedeem(in); err != nil {
		return nil, nil, err
	}

	name := in.VoucherName
	if name == "" {
		name = "Shopping voucher"
	}
	details := &domain.VoucherDetails{
		Name:        name,
		Type:        in.VoucherType,
		Value:       in.VoucherValue,
		Description: in.Description,
		IconClass:   in.IconClass,
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateVoucherCode()
		if err != nil {
			return nil, nil, fmt.Errorf("generate voucher code: %w", err)
		}

		// Cheap pre-check; the unique index remains authoritative.
		taken, err := v.store.VoucherCodeExists(ctx, code)
		if err != nil {
			return nil, nil, fmt.Errorf("check voucher code: %w", err)
		}
		if taken {
			metrics.VoucherCollisions.Inc()
			continue
		}

		rec, acct, err := v.ledger.run(ctx, in.AccountID, mutation{
			kind:        domain.KindRedemption,
			voucherCode: code,
			prepare: func(a *domain.Account) (int64, string, domain.RecordMetadata, error) {
				if a.Points < in.PointsRequired {
					return 0, "", domain.RecordMetadata{}, &domain.InsufficientBalanceError{
						AccountID: in.AccountID,
						Available: a.Points,
						Requested: in.PointsRequired,
					}
				}
				desc := fmt.Sprintf("Redeemed %d points for voucher %s", in.PointsRequired, name)
				return -in.PointsRequired, desc, domain.RecordMetadata{Voucher: details}, nil
			},
		})
		if errors.Is(err, domain.ErrVoucherCodeTaken) {
			// Lost a race on the unique index. Redraw.
			metrics.VoucherCollisions.Inc()
			continue
		}
		if err != nil {
			return nil, nil, err
		}

		v.log.WithFields(logrus.Fields{
			"account": in.AccountID,
			"points":  in.PointsRequired,
			"code":    code,
		}).Info("voucher issued")

		return rec, acct, nil
	}

	return nil, nil, domain.ErrCodeSpaceExhausted
}

func validateRedeem(in RedeemInput) error {
	if in.PointsRequired < domain.MinRedeemPoints || in.PointsRequired > domain.MaxRedeemPoints {
		return &domain.ValidationError{
			Field:   "points_required",
			Message: fmt.Sprintf("must be between %d and %d", domain.MinRedeemPoints, domain.MaxRedeemPoints),
		}
	}
	if in.VoucherValue < domain.MinVoucherValue || in.VoucherValue > domain.MaxVoucherValue {
		return &domain.ValidationError{
			Field:   "voucher_value",
			Message: fmt.Sprintf("must be between %d and %d", domain.MinVoucherValue, domain.MaxVoucherValue),
		}
	}
	if !voucherTypes[in.VoucherType] {
		return &domain.ValidationError{Field: "voucher_type", Message: "unknown voucher type"}
	}
	if len(in.Description) > domain.MaxDescriptionLen {
		return &domain.ValidationError{
			Field:   "description",
			Message: fmt.Sprintf("at most %d characters", domain.MaxDescriptionLen),
		}
	}
	return nil
}

// generateVoucherCode draws a 12-character code from [A-Z0-9].
func generateVoucherCode() (string, error) {
	buf := make([]byte, voucherCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = voucherCodeAlphabet[int(b)%len(voucherCodeAlphabet)]
	}
	return string(buf), nil
}
