/*
Package domain provides the core types for the recycling rewards ledger.

PURPOSE:
  This package contains the entities shared by every service in the
  system: accounts with a points balance, immutable ledger records
  documenting each balance change, and waste submissions moving through
  an administrative workflow.

KEY CONCEPTS IN THIS FILE (types.go):
  - Account: identity owning a points balance, check-in streak, and
    aggregate recycling statistics
  - LedgerRecord: an immutable before/after snapshot of one balance change
  - Submission: a raw waste deposit awaiting administrative confirmation
  - Tagged metadata: kind-specific record context (plastic type, streak,
    voucher details) as typed variants, not a loose bag of fields

DESIGN PRINCIPLES:
  1. Immutability: ledger records are never modified after creation
  2. Precision: decimal.Decimal for weights, int64 for points
  3. Two pathways: the ledger mutates Account.Points; the submission
     workflow mutates Account.Stats. They do not overlap.

SEE ALSO:
  - calculator.go: point formulas for both pathways
  - store.go: persistence contracts
  - errors.go: error taxonomy
*/
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// VALIDATION BOUNDS
// =============================================================================

// Input ranges enforced at the action surface. Weights are kilograms,
// voucher values are VND.
var (
	MinWeight = decimal.RequireFromString("0.1")
	MaxWeight = decimal.NewFromInt(1000)
)

const (
	MinRedeemPoints = 100
	MaxRedeemPoints = 10000
	MinVoucherValue = 10000
	MaxVoucherValue = 1000000

	MaxDescriptionLen = 500
	MaxLocationLen    = 200
	MaxNotesLen       = 500
)

// =============================================================================
// PLASTIC TYPES
// =============================================================================

type PlasticType string

const (
	PlasticPET   PlasticType = "pet"
	PlasticBag   PlasticType = "bag"
	PlasticBox   PlasticType = "box"
	PlasticMixed PlasticType = "mixed"
	PlasticAll   PlasticType = "all"
	PlasticNone  PlasticType = ""
)

// ValidExchangePlastic reports whether p is accepted by the waste-exchange
// pathway. The exchange pathway treats the plastic type as optional context.
func ValidExchangePlastic(p PlasticType) bool {
	switch p {
	case PlasticPET, PlasticBag, PlasticBox, PlasticAll, PlasticNone:
		return true
	}
	return false
}

// ValidSubmissionPlastic reports whether p is accepted by the submission
// workflow, where the type is mandatory and "mixed" replaces "all".
func ValidSubmissionPlastic(p PlasticType) bool {
	switch p {
	case PlasticPET, PlasticBag, PlasticBox, PlasticMixed:
		return true
	}
	return false
}

// =============================================================================
// ACCOUNT
// =============================================================================

// AccountStats are aggregate recycling rollups owned by the two write
// pathways: ExchangeWaste increments TotalKg/TotalOrders inside the ledger
// commit; the submission workflow increments all four fields on confirm.
// The statistics aggregator only ever reads them.
type AccountStats struct {
	TotalKg       decimal.Decimal
	TotalEarnings int64
	TotalPoints   int64
	TotalOrders   int64
}

// Account is the identity owning a points balance.
//
// INVARIANTS:
//   - Points never goes negative
//   - Version increments on every committed mutation (optimistic locking;
//     see store.go for the concurrency contract)
//   - LastCheckin is nil until the first daily check-in
type Account struct {
	ID            string
	Name          string
	Email         string
	Points        int64
	CheckinStreak int
	LastCheckin   *time.Time
	Stats         AccountStats
	Active        bool
	Version       int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// LEDGER RECORD
// =============================================================================

type RecordKind string

const (
	KindWasteExchange RecordKind = "waste_exchange"
	KindDailyCheckin  RecordKind = "daily_checkin"
	KindBonus         RecordKind = "bonus"
	KindRedemption    RecordKind = "redemption"
)

type RecordStatus string

const (
	RecordPending   RecordStatus = "pending"
	RecordCompleted RecordStatus = "completed"
	RecordCancelled RecordStatus = "cancelled"
)

// ExchangeMetadata is attached to waste_exchange records.
type ExchangeMetadata struct {
	PlasticType  PlasticType     `json:"plastic_type,omitempty"`
	WeightKg     decimal.Decimal `json:"weight_kg"`
	BonusApplied bool            `json:"bonus_applied"`
	BonusPoints  decimal.Decimal `json:"bonus_points"`
	Location     string          `json:"location,omitempty"`
}

// CheckinMetadata is attached to daily_checkin records.
type CheckinMetadata struct {
	Streak      int  `json:"streak"`
	Weekend     bool `json:"weekend"`
	StreakBonus bool `json:"streak_bonus"`
}

// VoucherDetails describe the voucher a redemption record reserved.
type VoucherDetails struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Value       int64  `json:"value"`
	Description string `json:"description,omitempty"`
	IconClass   string `json:"icon_class,omitempty"`
}

// RecordMetadata is a tagged union keyed by the record kind. Exactly one
// variant is non-nil for exchange/check-in/redemption records; bonus
// records carry none.
type RecordMetadata struct {
	Exchange *ExchangeMetadata `json:"exchange,omitempty"`
	Checkin  *CheckinMetadata  `json:"checkin,omitempty"`
	Voucher  *VoucherDetails   `json:"voucher,omitempty"`
}

// LedgerRecord is an immutable entry documenting one balance change.
//
// INVARIANTS:
//   - PointsAfter = PointsBefore + PointsEarned, always
//   - PointsAfter >= 0
//   - Records for one account chain: each PointsBefore equals the
//     previous record's PointsAfter
//   - Never mutated after creation
type LedgerRecord struct {
	ID           string
	AccountID    string
	Kind         RecordKind
	WasteAmount  decimal.Decimal // >= 0, zero for non-exchange kinds
	PointsEarned int64           // signed; negative for redemptions
	PointsBefore int64
	PointsAfter  int64
	Description  string
	Status       RecordStatus
	VoucherCode  string // unique when present, "" otherwise
	Metadata     RecordMetadata
	CreatedAt    time.Time
}

// =============================================================================
// WASTE SUBMISSION
// =============================================================================

type SubmissionStatus string

const (
	SubmissionPending   SubmissionStatus = "pending"
	SubmissionConfirmed SubmissionStatus = "confirmed"
	SubmissionCompleted SubmissionStatus = "completed"
	SubmissionCancelled SubmissionStatus = "cancelled"
)

// Submission is a raw waste deposit moving through the administrative
// workflow pending -> confirmed -> completed (or -> cancelled).
//
// Points and earnings are computed once, at submission time, with the
// submission-pathway formula, and never recomputed. Confirmation mutates
// Account.Stats directly; it does not write a LedgerRecord and does not
// touch Account.Points.
type Submission struct {
	ID          string
	AccountID   string
	PlasticType PlasticType
	Weight      decimal.Decimal

	Points        int64
	BonusPoints   int64
	TotalPoints   int64
	PricePerKg    int64
	TotalEarnings int64

	Status   SubmissionStatus
	Location string
	Notes    string
	Images   []string

	ConfirmedAt *time.Time
	CompletedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanTransition reports whether the workflow allows moving to next.
func (s *Submission) CanTransition(next SubmissionStatus) bool {
	switch next {
	case SubmissionConfirmed:
		return s.Status == SubmissionPending
	case SubmissionCompleted:
		return s.Status == SubmissionConfirmed
	case SubmissionCancelled:
		return s.Status == SubmissionPending || s.Status == SubmissionConfirmed
	}
	return false
}

// =============================================================================
// PAGINATION
// =============================================================================

// Page is the pagination envelope returned by list queries.
type Page struct {
	CurrentPage int  `json:"current_page"`
	TotalPages  int  `json:"total_pages"`
	Total       int  `json:"total"`
	HasNext     bool `json:"has_next"`
	HasPrev     bool `json:"has_prev"`
}

// NewPage builds the envelope for a page of size pageSize out of total items.
func NewPage(page, pageSize, total int) Page {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 1
	}
	totalPages := (total + pageSize - 1) / pageSize
	return Page{
		CurrentPage: page,
		TotalPages:  totalPages,
		Total:       total,
		HasNext:     page*pageSize < total,
		HasPrev:     page > 1,
	}
}
