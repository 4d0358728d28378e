/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Request types carry validator struct tags checked by the shared
  validator instance before handing off to domain logic. The domain
  services re-validate business rules; the tags only reject obviously
  malformed payloads early.

DECIMALS:
  Weights travel as decimal.Decimal, which accepts both JSON numbers and
  strings on input and always emits a string on output, so clients never
  see float drift on "0.1".

SEE ALSO:
  - handlers.go: Uses these types
  - domain/types.go: The internal model these map from
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecopoints/rewards-engine/domain"
	"github.com/ecopoints/rewards-engine/rewards"
)

// =============================================================================
// ACCOUNTS
// =============================================================================

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	Points        int64           `json:"points"`
	CheckinStreak int             `json:"checkin_streak"`
	LastCheckin   *string         `json:"last_checkin,omitempty"`
	TotalKg       decimal.Decimal `json:"total_kg"`
	TotalEarnings int64           `json:"total_earnings"`
	TotalPoints   int64           `json:"total_points"`
	TotalOrders   int64           `json:"total_orders"`
	EcoTier       string          `json:"eco_tier"`
	Active        bool            `json:"active"`
	CreatedAt     string          `json:"created_at"`
}

// RegisterAccountRequest is the request to register an account.
type RegisterAccountRequest struct {
	Name  string `json:"name" validate:"required,max=100"`
	Email string `json:"email" validate:"required,email"`
}

// =============================================================================
// LEDGER ACTIONS
// =============================================================================

// ExchangeRequest converts a waste weight into points.
type ExchangeRequest struct {
	Weight      decimal.Decimal `json:"weight" validate:"required"`
	PlasticType string          `json:"plastic_type" validate:"omitempty,oneof=pet bag box all"`
	Location    string          `json:"location" validate:"max=200"`
}

// RedeemRequest exchanges points for a voucher.
type RedeemRequest struct {
	PointsRequired int64  `json:"points_required" validate:"required,min=100,max=10000"`
	VoucherType    string `json:"voucher_type" validate:"required,oneof=shopping ecommerce food entertainment"`
	VoucherValue   int64  `json:"voucher_value" validate:"required,min=10000,max=1000000"`
	VoucherName    string `json:"voucher_name" validate:"max=100"`
	Description    string `json:"description" validate:"max=500"`
	IconClass      string `json:"icon_class" validate:"max=50"`
}

// RecordDTO represents one ledger record in API responses.
type RecordDTO struct {
	ID           string                `json:"id"`
	AccountID    string                `json:"account_id"`
	Kind         string                `json:"kind"`
	WasteAmount  decimal.Decimal       `json:"waste_amount"`
	PointsEarned int64                 `json:"points_earned"`
	PointsBefore int64                 `json:"points_before"`
	PointsAfter  int64                 `json:"points_after"`
	Description  string                `json:"description"`
	Status       string                `json:"status"`
	VoucherCode  string                `json:"voucher_code,omitempty"`
	Metadata     domain.RecordMetadata `json:"metadata,omitempty"`
	CreatedAt    string                `json:"created_at"`
}

// ActionResponse pairs the committed record with the account it left behind.
type ActionResponse struct {
	Record  RecordDTO  `json:"record"`
	Account AccountDTO `json:"account"`
}

// RecordListResponse is a page of ledger records.
type RecordListResponse struct {
	Records    []RecordDTO `json:"records"`
	Pagination domain.Page `json:"pagination"`
}

// =============================================================================
// CALCULATORS
// =============================================================================

// CalculateRequest is a weight to run through a point formula.
type CalculateRequest struct {
	Weight decimal.Decimal `json:"weight" validate:"required"`
}

// ExchangeCalculationDTO is the exchange-pathway preview.
type ExchangeCalculationDTO struct {
	Weight      decimal.Decimal `json:"weight"`
	BasePoints  decimal.Decimal `json:"base_points"`
	BonusPoints decimal.Decimal `json:"bonus_points"`
	TotalPoints int64           `json:"total_points"`
	HasBonus    bool            `json:"has_bonus"`
}

// SubmissionCalculationDTO is the submission-pathway preview, including
// the VND earnings estimate.
type SubmissionCalculationDTO struct {
	Weight        decimal.Decimal `json:"weight"`
	Points        int64           `json:"points"`
	BonusPoints   int64           `json:"bonus_points"`
	TotalPoints   int64           `json:"total_points"`
	TotalEarnings int64           `json:"total_earnings"`
	HasBonus      bool            `json:"has_bonus"`
}

// =============================================================================
// SUBMISSIONS
// =============================================================================

// SubmitSubmissionRequest is a new waste deposit.
type SubmitSubmissionRequest struct {
	PlasticType string          `json:"plastic_type" validate:"required,oneof=pet bag box mixed"`
	Weight      decimal.Decimal `json:"weight" validate:"required"`
	Location    string          `json:"location" validate:"required,max=200"`
	Notes       string          `json:"notes" validate:"max=500"`
	Images      []string        `json:"images" validate:"max=5,dive,max=500"`
}

// SubmissionDTO represents a waste submission in API responses.
type SubmissionDTO struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	PlasticType   string          `json:"plastic_type"`
	Weight        decimal.Decimal `json:"weight"`
	Points        int64           `json:"points"`
	BonusPoints   int64           `json:"bonus_points"`
	TotalPoints   int64           `json:"total_points"`
	PricePerKg    int64           `json:"price_per_kg"`
	TotalEarnings int64           `json:"total_earnings"`
	Status        string          `json:"status"`
	Location      string          `json:"location"`
	Notes         string          `json:"notes,omitempty"`
	Images        []string        `json:"images,omitempty"`
	ConfirmedAt   *string         `json:"confirmed_at,omitempty"`
	CompletedAt   *string         `json:"completed_at,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

// SubmissionListResponse is a page of submissions.
type SubmissionListResponse struct {
	Submissions []SubmissionDTO `json:"submissions"`
	Pagination  domain.Page     `json:"pagination"`
}

// =============================================================================
// STATISTICS
// =============================================================================

// StatsDTO combines account state with ledger rollups.
type StatsDTO struct {
	AccountID     string              `json:"account_id"`
	Points        int64               `json:"points"`
	CheckinStreak int                 `json:"checkin_streak"`
	LastCheckin   *string             `json:"last_checkin,omitempty"`
	TotalKg       decimal.Decimal     `json:"total_kg"`
	TotalEarnings int64               `json:"total_earnings"`
	TotalPoints   int64               `json:"total_points"`
	TotalOrders   int64               `json:"total_orders"`
	EcoTier       string              `json:"eco_tier"`
	Ledger        domain.RecordTotals `json:"ledger"`
}

// LeaderboardEntryDTO is one row of the points leaderboard.
type LeaderboardEntryDTO struct {
	Rank          int             `json:"rank"`
	AccountID     string          `json:"account_id"`
	Name          string          `json:"name"`
	Points        int64           `json:"points"`
	TotalKg       decimal.Decimal `json:"total_kg"`
	CheckinStreak int             `json:"checkin_streak"`
	EcoTier       string          `json:"eco_tier"`
	MemberSince   string          `json:"member_since"`
}

// LeaderboardResponse is the leaderboard plus the population size.
type LeaderboardResponse struct {
	Entries       []LeaderboardEntryDTO `json:"entries"`
	TotalAccounts int                   `json:"total_accounts"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toAccountDTO(a *domain.Account) AccountDTO {
	return AccountDTO{
		ID:            a.ID,
		Name:          a.Name,
		Email:         a.Email,
		Points:        a.Points,
		CheckinStreak: a.CheckinStreak,
		LastCheckin:   formatTimePtr(a.LastCheckin),
		TotalKg:       a.Stats.TotalKg,
		TotalEarnings: a.Stats.TotalEarnings,
		TotalPoints:   a.Stats.TotalPoints,
		TotalOrders:   a.Stats.TotalOrders,
		EcoTier:       rewards.EcoTier(a.Stats.TotalKg),
		Active:        a.Active,
		CreatedAt:     a.CreatedAt.Format(time.RFC3339),
	}
}

func toRecordDTO(rec *domain.LedgerRecord) RecordDTO {
	return RecordDTO{
		ID:           rec.ID,
		AccountID:    rec.AccountID,
		Kind:         string(rec.Kind),
		WasteAmount:  rec.WasteAmount,
		PointsEarned: rec.PointsEarned,
		PointsBefore: rec.PointsBefore,
		PointsAfter:  rec.PointsAfter,
		Description:  rec.Description,
		Status:       string(rec.Status),
		VoucherCode:  rec.VoucherCode,
		Metadata:     rec.Metadata,
		CreatedAt:    rec.CreatedAt.Format(time.RFC3339),
	}
}

func toSubmissionDTO(sub *domain.Submission) SubmissionDTO {
	return SubmissionDTO{
		ID:            sub.ID,
		AccountID:     sub.AccountID,
		PlasticType:   string(sub.PlasticType),
		Weight:        sub.Weight,
		Points:        sub.Points,
		BonusPoints:   sub.BonusPoints,
		TotalPoints:   sub.TotalPoints,
		PricePerKg:    sub.PricePerKg,
		TotalEarnings: sub.TotalEarnings,
		Status:        string(sub.Status),
		Location:      sub.Location,
		Notes:         sub.Notes,
		Images:        sub.Images,
		ConfirmedAt:   formatTimePtr(sub.ConfirmedAt),
		CompletedAt:   formatTimePtr(sub.CompletedAt),
		CreatedAt:     sub.CreatedAt.Format(time.RFC3339),
		UpdatedAt:     sub.UpdatedAt.Format(time.RFC3339),
	}
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.Format(time.RFC3339)
	return &s
}
