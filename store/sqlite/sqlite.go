/*
Package sqlite provides the SQLite-backed implementation of the storage
contracts in domain/store.go.

PURPOSE:
  Persists accounts, ledger records, and waste submissions. In
  production, the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

CONCURRENCY GUARANTEES ENFORCED HERE:
  - Optimistic locking: accounts carry a version column; UpdateAccount
    matches on (id, version) and reports ErrConcurrencyConflict when the
    row moved. UpdateSubmission matches on (id, status) the same way.
  - Unique voucher codes: a partial unique index rejects a duplicate
    code at commit time, mapped to ErrVoucherCodeTaken.
  - WithTx: all writes inside the closure share one SQL transaction.

APPEND-ONLY ENFORCEMENT:
  ledger_records has no UPDATE or DELETE path. CHECK constraints assert
  the balance arithmetic (after = before + earned, after >= 0) as a
  second line of defense behind the ledger service.

KEY TABLES:
  accounts:       Current balance, streak, statistics, version
  ledger_records: Immutable history of all point movements
  submissions:    Waste-submission workflow state

INDEXES:
  - idx_accounts_points:       Leaderboard query (hot path)
  - idx_records_account:       Per-account history, newest first
  - idx_records_voucher_code:  Enforces global voucher-code uniqueness
  - idx_submissions_account:   Per-account submission listing

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) so readers don't
  block the single writer.

USAGE:
  store, err := sqlite.New("./data/rewards.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - domain/store.go: Interface definitions
  - store/memory: In-memory implementation with the same semantics
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ecopoints/rewards-engine/domain"
)

// Store implements domain.TxStore using SQLite.
type Store struct {
	db *sql.DB
}

var _ domain.TxStore = (*Store)(nil)

// New opens (or creates) the database at dbPath and migrates the schema.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// A single connection keeps :memory: databases coherent and avoids
	// SQLITE_BUSY between concurrent writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		points INTEGER NOT NULL DEFAULT 0 CHECK (points >= 0),
		checkin_streak INTEGER NOT NULL DEFAULT 0,
		last_checkin TEXT,
		total_kg TEXT NOT NULL DEFAULT '0',
		total_earnings INTEGER NOT NULL DEFAULT 0,
		total_points INTEGER NOT NULL DEFAULT 0,
		total_orders INTEGER NOT NULL DEFAULT 0,
		active INTEGER NOT NULL DEFAULT 1,
		version INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_accounts_points
		ON accounts(points DESC, created_at ASC);

	-- Append-only. seq gives the commit order per account.
	CREATE TABLE IF NOT EXISTS ledger_records (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		account_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		waste_amount TEXT NOT NULL DEFAULT '0',
		points_earned INTEGER NOT NULL,
		points_before INTEGER NOT NULL CHECK (points_before >= 0),
		points_after INTEGER NOT NULL CHECK (points_after >= 0),
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		voucher_code TEXT,
		metadata_json TEXT,
		created_at TEXT NOT NULL,
		CHECK (points_after = points_before + points_earned)
	);

	CREATE INDEX IF NOT EXISTS idx_records_account
		ON ledger_records(account_id, seq DESC);
	CREATE INDEX IF NOT EXISTS idx_records_account_kind
		ON ledger_records(account_id, kind);

	-- CRITICAL: voucher codes are globally unique. This index is the
	-- authoritative reservation the voucher issuer relies on.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_records_voucher_code
		ON ledger_records(voucher_code) WHERE voucher_code IS NOT NULL;

	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		plastic_type TEXT NOT NULL,
		weight TEXT NOT NULL,
		points INTEGER NOT NULL,
		bonus_points INTEGER NOT NULL,
		total_points INTEGER NOT NULL,
		price_per_kg INTEGER NOT NULL,
		total_earnings INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		location TEXT NOT NULL,
		notes TEXT,
		images_json TEXT,
		confirmed_at TEXT,
		completed_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_account
		ON submissions(account_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_submissions_status
		ON submissions(status);
	CREATE INDEX IF NOT EXISTS idx_submissions_plastic
		ON submissions(plastic_type);
	`
	_, err := s.db.Exec(schema)
	return err
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// session implements domain.Store over either the pool or a transaction.
type session struct {
	q dbtx
}

// =============================================================================
// STORE DELEGATION
// =============================================================================

func (s *Store) CreateAccount(ctx context.Context, a domain.Account) error {
	return (&session{q: s.db}).CreateAccount(ctx, a)
}
func (s *Store) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	return (&session{q: s.db}).GetAccount(ctx, id)
}
func (s *Store) UpdateAccount(ctx context.Context, a domain.Account, expectedVersion int64) error {
	return (&session{q: s.db}).UpdateAccount(ctx, a, expectedVersion)
}
func (s *Store) TopAccountsByPoints(ctx context.Context, limit int) ([]domain.Account, error) {
	return (&session{q: s.db}).TopAccountsByPoints(ctx, limit)
}
func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	return (&session{q: s.db}).CountAccounts(ctx)
}
func (s *Store) AppendRecord(ctx context.Context, rec domain.LedgerRecord) error {
	return (&session{q: s.db}).AppendRecord(ctx, rec)
}
func (s *Store) ListRecords(ctx context.Context, f domain.RecordFilter) ([]domain.LedgerRecord, int, error) {
	return (&session{q: s.db}).ListRecords(ctx, f)
}
func (s *Store) RecordTotals(ctx context.Context, accountID string) (domain.RecordTotals, error) {
	return (&session{q: s.db}).RecordTotals(ctx, accountID)
}
func (s *Store) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	return (&session{q: s.db}).VoucherCodeExists(ctx, code)
}
func (s *Store) CreateSubmission(ctx context.Context, sub domain.Submission) error {
	return (&session{q: s.db}).CreateSubmission(ctx, sub)
}
func (s *Store) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	return (&session{q: s.db}).GetSubmission(ctx, id)
}
func (s *Store) UpdateSubmission(ctx context.Context, sub domain.Submission, expectedStatus domain.SubmissionStatus) error {
	return (&session{q: s.db}).UpdateSubmission(ctx, sub, expectedStatus)
}
func (s *Store) ListSubmissions(ctx context.Context, f domain.SubmissionFilter) ([]domain.Submission, int, error) {
	return (&session{q: s.db}).ListSubmissions(ctx, f)
}

// WithTx executes fn within one SQL transaction. Any error from fn
// rolls everything back.
func (s *Store) WithTx(ctx context.Context, fn func(domain.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&session{q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}

// =============================================================================
// ACCOUNTS
// =============================================================================

func (c *session) CreateAccount(ctx context.Context, a domain.Account) error {
	_, err := c.q.ExecContext(ctx, `
		INSERT INTO accounts
		(id, name, email, points, checkin_streak, last_checkin,
		 total_kg, total_earnings, total_points, total_orders,
		 active, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.Name, a.Email, a.Points, a.CheckinStreak, nullTime(a.LastCheckin),
		a.Stats.TotalKg.String(), a.Stats.TotalEarnings, a.Stats.TotalPoints, a.Stats.TotalOrders,
		a.Active, a.Version, formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if isUniqueConstraintError(err) {
		return domain.ErrAccountExists
	}
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

const accountColumns = `id, name, email, points, checkin_streak, last_checkin,
	total_kg, total_earnings, total_points, total_orders,
	active, version, created_at, updated_at`

func (c *session) GetAccount(ctx context.Context, id string) (*domain.Account, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = ?`, id)
	a, err := scanAccount(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}
	return a, nil
}

func (c *session) UpdateAccount(ctx context.Context, a domain.Account, expectedVersion int64) error {
	res, err := c.q.ExecContext(ctx, `
		UPDATE accounts SET
			name = ?, email = ?, points = ?, checkin_streak = ?, last_checkin = ?,
			total_kg = ?, total_earnings = ?, total_points = ?, total_orders = ?,
			active = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`,
		a.Name, a.Email, a.Points, a.CheckinStreak, nullTime(a.LastCheckin),
		a.Stats.TotalKg.String(), a.Stats.TotalEarnings, a.Stats.TotalPoints, a.Stats.TotalOrders,
		a.Active, formatTime(a.UpdatedAt),
		a.ID, expectedVersion,
	)
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	if n == 0 {
		// Either the account is gone or the version moved.
		var exists int
		row := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE id = ?`, a.ID)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("update account: %w", err)
		}
		if exists == 0 {
			return domain.ErrAccountNotFound
		}
		return domain.ErrConcurrencyConflict
	}
	return nil
}

func (c *session) TopAccountsByPoints(ctx context.Context, limit int) ([]domain.Account, error) {
	rows, err := c.q.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM accounts
		 WHERE active = 1
		 ORDER BY points DESC, created_at ASC
		 LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	defer rows.Close()

	var out []domain.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (c *session) CountAccounts(ctx context.Context) (int, error) {
	var n int
	err := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts WHERE active = 1`).Scan(&n)
	return n, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(r rowScanner) (*domain.Account, error) {
	var a domain.Account
	var lastCheckin sql.NullString
	var totalKg, createdAt, updatedAt string

	err := r.Scan(&a.ID, &a.Name, &a.Email, &a.Points, &a.CheckinStreak, &lastCheckin,
		&totalKg, &a.Stats.TotalEarnings, &a.Stats.TotalPoints, &a.Stats.TotalOrders,
		&a.Active, &a.Version, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	a.Stats.TotalKg = mustDecimal(totalKg)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)
	if lastCheckin.Valid {
		t := parseTime(lastCheckin.String)
		a.LastCheckin = &t
	}
	return &a, nil
}

// =============================================================================
// LEDGER RECORDS
// =============================================================================

func (c *session) AppendRecord(ctx context.Context, rec domain.LedgerRecord) error {
	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("encode record metadata: %w", err)
	}

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO ledger_records
		(id, account_id, kind, waste_amount, points_earned, points_before,
		 points_after, description, status, voucher_code, metadata_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.AccountID, rec.Kind, rec.WasteAmount.String(),
		rec.PointsEarned, rec.PointsBefore, rec.PointsAfter,
		rec.Description, rec.Status, nullString(rec.VoucherCode),
		string(metadataJSON), formatTime(rec.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) && strings.Contains(err.Error(), "voucher_code") {
			return domain.ErrVoucherCodeTaken
		}
		return fmt.Errorf("append record: %w", err)
	}
	return nil
}

const recordColumns = `id, account_id, kind, waste_amount, points_earned,
	points_before, points_after, description, status, voucher_code,
	metadata_json, created_at`

func (c *session) ListRecords(ctx context.Context, f domain.RecordFilter) ([]domain.LedgerRecord, int, error) {
	where, args := recordWhere(f)

	var total int
	if err := c.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_records`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count records: %w", err)
	}

	page, pageSize := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}

	query := `SELECT ` + recordColumns + ` FROM ledger_records` + where +
		` ORDER BY seq DESC LIMIT ? OFFSET ?`
	rows, err := c.q.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var out []domain.LedgerRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, *rec)
	}
	return out, total, rows.Err()
}

func recordWhere(f domain.RecordFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.AccountID != "" {
		clauses = append(clauses, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Kind != "" {
		clauses = append(clauses, "kind = ?")
		args = append(args, f.Kind)
	}
	if f.VouchersOnly {
		clauses = append(clauses, "voucher_code IS NOT NULL")
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanRecord(r rowScanner) (*domain.LedgerRecord, error) {
	var rec domain.LedgerRecord
	var wasteAmount, createdAt string
	var voucherCode, metadataJSON sql.NullString

	err := r.Scan(&rec.ID, &rec.AccountID, &rec.Kind, &wasteAmount,
		&rec.PointsEarned, &rec.PointsBefore, &rec.PointsAfter,
		&rec.Description, &rec.Status, &voucherCode, &metadataJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	rec.WasteAmount = mustDecimal(wasteAmount)
	rec.CreatedAt = parseTime(createdAt)
	if voucherCode.Valid {
		rec.VoucherCode = voucherCode.String
	}
	if metadataJSON.Valid && metadataJSON.String != "" {
		if err := json.Unmarshal([]byte(metadataJSON.String), &rec.Metadata); err != nil {
			return nil, fmt.Errorf("decode record metadata: %w", err)
		}
	}
	return &rec, nil
}

func (c *session) RecordTotals(ctx context.Context, accountID string) (domain.RecordTotals, error) {
	var totals domain.RecordTotals

	// SUM over a TEXT decimal column would go through float and drift;
	// fold the weights in Go instead.
	rows, err := c.q.QueryContext(ctx,
		`SELECT kind, waste_amount, points_earned FROM ledger_records WHERE account_id = ?`,
		accountID)
	if err != nil {
		return totals, fmt.Errorf("record totals: %w", err)
	}
	defer rows.Close()

	kg := decimal.Zero
	for rows.Next() {
		var kind, wasteAmount string
		var earned int64
		if err := rows.Scan(&kind, &wasteAmount, &earned); err != nil {
			return totals, fmt.Errorf("record totals: %w", err)
		}
		totals.TotalRecords++
		kg = kg.Add(mustDecimal(wasteAmount))
		if earned >= 0 {
			totals.TotalEarned += earned
		} else {
			totals.TotalRedeemed += -earned
		}
		switch domain.RecordKind(kind) {
		case domain.KindWasteExchange:
			totals.ExchangeRecords++
		case domain.KindDailyCheckin:
			totals.CheckinRecords++
		}
	}
	totals.TotalWasteKg = kg.String()
	return totals, rows.Err()
}

func (c *session) VoucherCodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := c.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM ledger_records WHERE voucher_code = ?`, code).Scan(&n)
	return n > 0, err
}

// =============================================================================
// SUBMISSIONS
// =============================================================================

func (c *session) CreateSubmission(ctx context.Context, sub domain.Submission) error {
	imagesJSON, err := json.Marshal(sub.Images)
	if err != nil {
		return fmt.Errorf("encode submission images: %w", err)
	}

	_, err = c.q.ExecContext(ctx, `
		INSERT INTO submissions
		(id, account_id, plastic_type, weight, points, bonus_points, total_points,
		 price_per_kg, total_earnings, status, location, notes, images_json,
		 confirmed_at, completed_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sub.ID, sub.AccountID, sub.PlasticType, sub.Weight.String(),
		sub.Points, sub.BonusPoints, sub.TotalPoints,
		sub.PricePerKg, sub.TotalEarnings, sub.Status, sub.Location, sub.Notes,
		string(imagesJSON), nullTime(sub.ConfirmedAt), nullTime(sub.CompletedAt),
		formatTime(sub.CreatedAt), formatTime(sub.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert submission: %w", err)
	}
	return nil
}

const submissionColumns = `id, account_id, plastic_type, weight, points,
	bonus_points, total_points, price_per_kg, total_earnings, status,
	location, notes, images_json, confirmed_at, completed_at, created_at, updated_at`

func (c *session) GetSubmission(ctx context.Context, id string) (*domain.Submission, error) {
	row := c.q.QueryRowContext(ctx,
		`SELECT `+submissionColumns+` FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return sub, nil
}

func (c *session) UpdateSubmission(ctx context.Context, sub domain.Submission, expectedStatus domain.SubmissionStatus) error {
	imagesJSON, err := json.Marshal(sub.Images)
	if err != nil {
		return fmt.Errorf("encode submission images: %w", err)
	}

	res, err := c.q.ExecContext(ctx, `
		UPDATE submissions SET
			plastic_type = ?, weight = ?, points = ?, bonus_points = ?,
			total_points = ?, price_per_kg = ?, total_earnings = ?, status = ?,
			location = ?, notes = ?, images_json = ?, confirmed_at = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		sub.PlasticType, sub.Weight.String(), sub.Points, sub.BonusPoints,
		sub.TotalPoints, sub.PricePerKg, sub.TotalEarnings, sub.Status,
		sub.Location, sub.Notes, string(imagesJSON), nullTime(sub.ConfirmedAt),
		nullTime(sub.CompletedAt), formatTime(sub.UpdatedAt),
		sub.ID, expectedStatus,
	)
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	if n == 0 {
		var exists int
		row := c.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM submissions WHERE id = ?`, sub.ID)
		if err := row.Scan(&exists); err != nil {
			return fmt.Errorf("update submission: %w", err)
		}
		if exists == 0 {
			return domain.ErrSubmissionNotFound
		}
		return domain.ErrConcurrencyConflict
	}
	return nil
}

func (c *session) ListSubmissions(ctx context.Context, f domain.SubmissionFilter) ([]domain.Submission, int, error) {
	where, args := submissionWhere(f)

	var total int
	if err := c.q.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM submissions`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	page, pageSize := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}

	query := `SELECT ` + submissionColumns + ` FROM submissions` + where +
		` ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?`
	rows, err := c.q.QueryContext(ctx, query, append(args, pageSize, (page-1)*pageSize)...)
	if err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan submission: %w", err)
		}
		out = append(out, *sub)
	}
	return out, total, rows.Err()
}

func submissionWhere(f domain.SubmissionFilter) (string, []any) {
	var clauses []string
	var args []any
	if f.AccountID != "" {
		clauses = append(clauses, "account_id = ?")
		args = append(args, f.AccountID)
	}
	if f.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, f.Status)
	}
	if f.PlasticType != "" {
		clauses = append(clauses, "plastic_type = ?")
		args = append(args, f.PlasticType)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func scanSubmission(r rowScanner) (*domain.Submission, error) {
	var sub domain.Submission
	var weight, createdAt, updatedAt string
	var notes, imagesJSON, confirmedAt, completedAt sql.NullString

	err := r.Scan(&sub.ID, &sub.AccountID, &sub.PlasticType, &weight, &sub.Points,
		&sub.BonusPoints, &sub.TotalPoints, &sub.PricePerKg, &sub.TotalEarnings,
		&sub.Status, &sub.Location, &notes, &imagesJSON, &confirmedAt, &completedAt,
		&createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	sub.Weight = mustDecimal(weight)
	sub.Notes = notes.String
	sub.CreatedAt = parseTime(createdAt)
	sub.UpdatedAt = parseTime(updatedAt)
	if imagesJSON.Valid && imagesJSON.String != "" {
		if err := json.Unmarshal([]byte(imagesJSON.String), &sub.Images); err != nil {
			return nil, fmt.Errorf("decode submission images: %w", err)
		}
	}
	if confirmedAt.Valid {
		t := parseTime(confirmedAt.String)
		sub.ConfirmedAt = &t
	}
	if completedAt.Valid {
		t := parseTime(completedAt.String)
		sub.CompletedAt = &t
	}
	return &sub, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
