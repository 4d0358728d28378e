/*
store.go - Persistence contracts for accounts, records, and submissions

PURPOSE:
  Defines the interface between the domain services and the database.
  Implementations: store/sqlite (production) and store/memory (tests).

CONCURRENCY CONTRACT:
  Account mutations are serialized per account with optimistic locking:
  UpdateAccount carries the version the caller read, and the store MUST
  reject the write with ErrConcurrencyConflict if the stored version has
  moved. Combined with WithTx, this guarantees that a balance write and
  its ledger record commit or roll back together, and that records for
  one account form a total order chained by before/after balances.

APPEND-ONLY RECORDS:
  There is no update or delete for ledger records. Corrections would be
  new records of opposite sign.

UNIQUENESS:
  AppendRecord MUST reject a duplicate voucher code with
  ErrVoucherCodeTaken. The voucher issuer relies on this as the
  authoritative reservation; VoucherCodeExists is only a cheap pre-check.
*/
package domain

import "context"

// RecordFilter selects ledger records for listing. Results are newest
// first. Page is 1-based.
type RecordFilter struct {
	AccountID    string
	Kind         RecordKind // optional; empty means all kinds
	VouchersOnly bool       // only records carrying a voucher code
	Page         int
	PageSize     int
}

// SubmissionFilter selects submissions for listing. Results are newest
// first. AccountID empty means all accounts (administrative view).
type SubmissionFilter struct {
	AccountID   string
	Status      SubmissionStatus // optional
	PlasticType PlasticType      // optional
	Page        int
	PageSize    int
}

// RecordTotals are ledger rollups for one account, computed by the store.
type RecordTotals struct {
	TotalRecords    int    `json:"total_records"`
	TotalWasteKg    string `json:"total_waste_kg"` // decimal string to avoid float drift in SQL sums
	TotalEarned     int64  `json:"total_earned"`   // sum of positive deltas
	TotalRedeemed   int64  `json:"total_redeemed"` // sum of negative deltas, as a positive number
	ExchangeRecords int    `json:"exchange_records"`
	CheckinRecords  int    `json:"checkin_records"`
}

// Store handles persistence for the rewards core.
//
// Methods returning a single entity return (nil, nil) when the entity
// does not exist; services translate that into the NotFound sentinels.
type Store interface {
	// Accounts
	CreateAccount(ctx context.Context, a Account) error
	GetAccount(ctx context.Context, id string) (*Account, error)
	// UpdateAccount writes a, expecting the stored version to equal
	// expectedVersion, and increments the version on success.
	UpdateAccount(ctx context.Context, a Account, expectedVersion int64) error
	// TopAccountsByPoints returns active accounts ordered by points
	// descending, oldest first among ties (stable leaderboard order).
	TopAccountsByPoints(ctx context.Context, limit int) ([]Account, error)
	// CountAccounts counts active accounts, matching the population
	// TopAccountsByPoints ranks over.
	CountAccounts(ctx context.Context) (int, error)

	// Ledger records (append-only)
	AppendRecord(ctx context.Context, rec LedgerRecord) error
	ListRecords(ctx context.Context, f RecordFilter) ([]LedgerRecord, int, error)
	RecordTotals(ctx context.Context, accountID string) (RecordTotals, error)
	VoucherCodeExists(ctx context.Context, code string) (bool, error)

	// Submissions
	CreateSubmission(ctx context.Context, s Submission) error
	GetSubmission(ctx context.Context, id string) (*Submission, error)
	// UpdateSubmission writes s, expecting the stored status to equal
	// expectedStatus. ErrConcurrencyConflict if the status moved.
	UpdateSubmission(ctx context.Context, s Submission, expectedStatus SubmissionStatus) error
	ListSubmissions(ctx context.Context, f SubmissionFilter) ([]Submission, int, error)
}

// TxStore wraps Store with transaction support. WithTx executes fn
// against a transactional view; if fn returns an error every write is
// rolled back, otherwise all writes commit together.
type TxStore interface {
	Store
	WithTx(ctx context.Context, fn func(Store) error) error
}
