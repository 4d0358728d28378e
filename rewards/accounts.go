/*
accounts.go - Account registration and ledger queries

Registration is minimal on purpose: credential issuance and verification
live outside this service, which only needs an identity to hang a
balance on. Accounts start with zero points and are never hard-deleted;
deactivation is a soft flag.
*/
package rewards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/ecopoints/rewards-engine/domain"
)

// AccountService creates accounts and serves ledger history.
type AccountService struct {
	store domain.TxStore
	log   *logrus.Entry
	clock func() time.Time
}

func NewAccountService(store domain.TxStore, logger *logrus.Logger) *AccountService {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &AccountService{
		store: store,
		log:   logger.WithField("component", "accounts"),
		clock: time.Now,
	}
}

// Register creates an account with a zero balance.
func (s *AccountService) Register(ctx context.Context, name, email string) (*domain.Account, error) {
	name = strings.TrimSpace(name)
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || len(name) > 100 {
		return nil, &domain.ValidationError{Field: "name", Message: "required, at most 100 characters"}
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, &domain.ValidationError{Field: "email", Message: "must be a valid email address"}
	}

	now := s.clock()
	acct := domain.Account{
		ID:     uuid.NewString(),
		Name:   name,
		Email:  email,
		Points: 0,
		Stats: domain.AccountStats{
			TotalKg: decimal.Zero,
		},
		Active:    true,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.store.CreateAccount(ctx, acct); err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{"account": acct.ID, "email": email}).Info("account registered")
	return &acct, nil
}

// Get returns one account.
func (s *AccountService) Get(ctx context.Context, id string) (*domain.Account, error) {
	acct, err := s.store.GetAccount(ctx, id)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, domain.ErrAccountNotFound
	}
	return acct, nil
}

// ListRecords returns the account's ledger history, newest first.
func (s *AccountService) ListRecords(ctx context.Context, f domain.RecordFilter) ([]domain.LedgerRecord, domain.Page, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.PageSize < 1 {
		f.PageSize = 20
	}
	if f.Kind != "" {
		switch f.Kind {
		case domain.KindWasteExchange, domain.KindDailyCheckin, domain.KindBonus, domain.KindRedemption:
		default:
			return nil, domain.Page{}, &domain.ValidationError{
				Field:   "kind",
				Message: fmt.Sprintf("unknown record kind %q", f.Kind),
			}
		}
	}

	recs, total, err := s.store.ListRecords(ctx, f)
	if err != nil {
		return nil, domain.Page{}, err
	}
	return recs, domain.NewPage(f.Page, f.PageSize, total), nil
}

// ListVouchers returns the account's redemption records that carry a
// voucher code, newest first.
func (s *AccountService) ListVouchers(ctx context.Context, accountID string, page, pageSize int) ([]domain.LedgerRecord, domain.Page, error) {
	return s.ListRecords(ctx, domain.RecordFilter{
		AccountID:    accountID,
		Kind:         domain.KindRedemption,
		VouchersOnly: true,
		Page:         page,
		PageSize:     pageSize,
	})
}
