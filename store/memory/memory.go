// Package memory provides an in-memory Store implementation for tests
// and development. It mirrors the sqlite store's semantics: optimistic
// version checks on accounts, status-guarded submission updates, a
// unique constraint on voucher codes, and snapshot-rollback transactions.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/ecopoints/rewards-engine/domain"
)

// =============================================================================
// MEMORY STORE
// =============================================================================

type Store struct {
	mu           sync.RWMutex
	accounts     map[string]domain.Account
	emails       map[string]string // email -> account id
	records      []domain.LedgerRecord
	voucherCodes map[string]bool
	submissions  map[string]domain.Submission
}

func New() *Store {
	return &Store{
		accounts:     make(map[string]domain.Account),
		emails:       make(map[string]string),
		voucherCodes: make(map[string]bool),
		submissions:  make(map[string]domain.Submission),
	}
}

var _ domain.TxStore = (*Store)(nil)

// =============================================================================
// ACCOUNTS
// =============================================================================

func (m *Store) CreateAccount(_ context.Context, a domain.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createAccountLocked(a)
}

func (m *Store) createAccountLocked(a domain.Account) error {
	if _, ok := m.accounts[a.ID]; ok {
		return domain.ErrAccountExists
	}
	if _, ok := m.emails[a.Email]; ok {
		return domain.ErrAccountExists
	}
	m.accounts[a.ID] = a
	m.emails[a.Email] = a.ID
	return nil
}

func (m *Store) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getAccountLocked(id)
}

func (m *Store) getAccountLocked(id string) (*domain.Account, error) {
	a, ok := m.accounts[id]
	if !ok {
		return nil, nil
	}
	cp := a
	return &cp, nil
}

func (m *Store) UpdateAccount(_ context.Context, a domain.Account, expectedVersion int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateAccountLocked(a, expectedVersion)
}

func (m *Store) updateAccountLocked(a domain.Account, expectedVersion int64) error {
	stored, ok := m.accounts[a.ID]
	if !ok {
		return domain.ErrAccountNotFound
	}
	if stored.Version != expectedVersion {
		return domain.ErrConcurrencyConflict
	}
	a.Version = expectedVersion + 1
	m.accounts[a.ID] = a
	return nil
}

func (m *Store) TopAccountsByPoints(_ context.Context, limit int) ([]domain.Account, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.topAccountsLocked(limit)
}

func (m *Store) topAccountsLocked(limit int) ([]domain.Account, error) {
	var out []domain.Account
	for _, a := range m.accounts {
		if a.Active {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Points != out[j].Points {
			return out[i].Points > out[j].Points
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Store) CountAccounts(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.countAccountsLocked(), nil
}

func (m *Store) countAccountsLocked() int {
	n := 0
	for _, a := range m.accounts {
		if a.Active {
			n++
		}
	}
	return n
}

// =============================================================================
// LEDGER RECORDS (append-only)
// =============================================================================

func (m *Store) AppendRecord(_ context.Context, rec domain.LedgerRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appendRecordLocked(rec)
}

func (m *Store) appendRecordLocked(rec domain.LedgerRecord) error {
	if rec.VoucherCode != "" {
		if m.voucherCodes[rec.VoucherCode] {
			return domain.ErrVoucherCodeTaken
		}
		m.voucherCodes[rec.VoucherCode] = true
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *Store) ListRecords(_ context.Context, f domain.RecordFilter) ([]domain.LedgerRecord, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listRecordsLocked(f)
}

func (m *Store) listRecordsLocked(f domain.RecordFilter) ([]domain.LedgerRecord, int, error) {
	// Newest first: records are stored in append order.
	var matched []domain.LedgerRecord
	for i := len(m.records) - 1; i >= 0; i-- {
		rec := m.records[i]
		if f.AccountID != "" && rec.AccountID != f.AccountID {
			continue
		}
		if f.Kind != "" && rec.Kind != f.Kind {
			continue
		}
		if f.VouchersOnly && rec.VoucherCode == "" {
			continue
		}
		matched = append(matched, rec)
	}

	total := len(matched)
	return paginate(matched, f.Page, f.PageSize), total, nil
}

func (m *Store) RecordTotals(_ context.Context, accountID string) (domain.RecordTotals, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.recordTotalsLocked(accountID)
}

func (m *Store) recordTotalsLocked(accountID string) (domain.RecordTotals, error) {
	totals := domain.RecordTotals{}
	kg := decimal.Zero
	for _, rec := range m.records {
		if rec.AccountID != accountID {
			continue
		}
		totals.TotalRecords++
		kg = kg.Add(rec.WasteAmount)
		if rec.PointsEarned >= 0 {
			totals.TotalEarned += rec.PointsEarned
		} else {
			totals.TotalRedeemed += -rec.PointsEarned
		}
		switch rec.Kind {
		case domain.KindWasteExchange:
			totals.ExchangeRecords++
		case domain.KindDailyCheckin:
			totals.CheckinRecords++
		}
	}
	totals.TotalWasteKg = kg.String()
	return totals, nil
}

func (m *Store) VoucherCodeExists(_ context.Context, code string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.voucherCodes[code], nil
}

// =============================================================================
// SUBMISSIONS
// =============================================================================

func (m *Store) CreateSubmission(_ context.Context, s domain.Submission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.createSubmissionLocked(s)
}

func (m *Store) createSubmissionLocked(s domain.Submission) error {
	m.submissions[s.ID] = s
	return nil
}

func (m *Store) GetSubmission(_ context.Context, id string) (*domain.Submission, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getSubmissionLocked(id)
}

func (m *Store) getSubmissionLocked(id string) (*domain.Submission, error) {
	s, ok := m.submissions[id]
	if !ok {
		return nil, nil
	}
	cp := s
	cp.Images = append([]string(nil), s.Images...)
	return &cp, nil
}

func (m *Store) UpdateSubmission(_ context.Context, s domain.Submission, expectedStatus domain.SubmissionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.updateSubmissionLocked(s, expectedStatus)
}

func (m *Store) updateSubmissionLocked(s domain.Submission, expectedStatus domain.SubmissionStatus) error {
	stored, ok := m.submissions[s.ID]
	if !ok {
		return domain.ErrSubmissionNotFound
	}
	if stored.Status != expectedStatus {
		return domain.ErrConcurrencyConflict
	}
	m.submissions[s.ID] = s
	return nil
}

func (m *Store) ListSubmissions(_ context.Context, f domain.SubmissionFilter) ([]domain.Submission, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listSubmissionsLocked(f)
}

func (m *Store) listSubmissionsLocked(f domain.SubmissionFilter) ([]domain.Submission, int, error) {
	var matched []domain.Submission
	for _, s := range m.submissions {
		if f.AccountID != "" && s.AccountID != f.AccountID {
			continue
		}
		if f.Status != "" && s.Status != f.Status {
			continue
		}
		if f.PlasticType != "" && s.PlasticType != f.PlasticType {
			continue
		}
		matched = append(matched, s)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return strings.Compare(matched[i].ID, matched[j].ID) < 0
	})

	total := len(matched)
	return paginate(matched, f.Page, f.PageSize), total, nil
}

func paginate[T any](items []T, page, pageSize int) []T {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		return items
	}
	start := (page - 1) * pageSize
	if start >= len(items) {
		return nil
	}
	end := start + pageSize
	if end > len(items) {
		end = len(items)
	}
	out := make([]T, end-start)
	copy(out, items[start:end])
	return out
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback on error
// =============================================================================

// WithTx executes fn under the store lock against an unlocked view. On
// error the pre-transaction snapshot is restored, so partial writes are
// never observable.
func (m *Store) WithTx(ctx context.Context, fn func(domain.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	view := &txView{parent: m}

	if err := fn(view); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type memorySnapshot struct {
	accounts     map[string]domain.Account
	emails       map[string]string
	records      []domain.LedgerRecord
	voucherCodes map[string]bool
	submissions  map[string]domain.Submission
}

func (m *Store) snapshot() memorySnapshot {
	snap := memorySnapshot{
		accounts:     make(map[string]domain.Account, len(m.accounts)),
		emails:       make(map[string]string, len(m.emails)),
		records:      append([]domain.LedgerRecord(nil), m.records...),
		voucherCodes: make(map[string]bool, len(m.voucherCodes)),
		submissions:  make(map[string]domain.Submission, len(m.submissions)),
	}
	for k, v := range m.accounts {
		snap.accounts[k] = v
	}
	for k, v := range m.emails {
		snap.emails[k] = v
	}
	for k, v := range m.voucherCodes {
		snap.voucherCodes[k] = v
	}
	for k, v := range m.submissions {
		snap.submissions[k] = v
	}
	return snap
}

func (m *Store) restore(snap memorySnapshot) {
	m.accounts = snap.accounts
	m.emails = snap.emails
	m.records = snap.records
	m.voucherCodes = snap.voucherCodes
	m.submissions = snap.submissions
}

// txView exposes the locked store to a transaction body. The parent
// already holds the write lock, so methods bypass locking.
type txView struct {
	parent *Store
}

var _ domain.Store = (*txView)(nil)

func (v *txView) CreateAccount(_ context.Context, a domain.Account) error {
	return v.parent.createAccountLocked(a)
}

func (v *txView) GetAccount(_ context.Context, id string) (*domain.Account, error) {
	return v.parent.getAccountLocked(id)
}

func (v *txView) UpdateAccount(_ context.Context, a domain.Account, expectedVersion int64) error {
	return v.parent.updateAccountLocked(a, expectedVersion)
}

func (v *txView) TopAccountsByPoints(_ context.Context, limit int) ([]domain.Account, error) {
	return v.parent.topAccountsLocked(limit)
}

func (v *txView) CountAccounts(_ context.Context) (int, error) {
	return v.parent.countAccountsLocked(), nil
}

func (v *txView) AppendRecord(_ context.Context, rec domain.LedgerRecord) error {
	return v.parent.appendRecordLocked(rec)
}

func (v *txView) ListRecords(_ context.Context, f domain.RecordFilter) ([]domain.LedgerRecord, int, error) {
	return v.parent.listRecordsLocked(f)
}

func (v *txView) RecordTotals(_ context.Context, accountID string) (domain.RecordTotals, error) {
	return v.parent.recordTotalsLocked(accountID)
}

func (v *txView) VoucherCodeExists(_ context.Context, code string) (bool, error) {
	return v.parent.voucherCodes[code], nil
}

func (v *txView) CreateSubmission(_ context.Context, s domain.Submission) error {
	return v.parent.createSubmissionLocked(s)
}

func (v *txView) GetSubmission(_ context.Context, id string) (*domain.Submission, error) {
	return v.parent.getSubmissionLocked(id)
}

func (v *txView) UpdateSubmission(_ context.Context, s domain.Submission, expectedStatus domain.SubmissionStatus) error {
	return v.parent.updateSubmissionLocked(s, expectedStatus)
}

func (v *txView) ListSubmissions(_ context.Context, f domain.SubmissionFilter) ([]domain.Submission, int, error) {
	return v.parent.listSubmissionsLocked(f)
}
