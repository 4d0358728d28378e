/*
handlers.go - HTTP API handlers for the recycling rewards engine

PURPOSE:
  Exposes the rewards core via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Accounts:
    POST   /api/accounts                   Register account
    GET    /api/accounts/{id}              Get account details
    GET    /api/accounts/{id}/stats        Statistics overview
    GET    /api/accounts/{id}/records      Ledger history
    GET    /api/accounts/{id}/vouchers     Redeemed vouchers

  Actions:
    POST   /api/accounts/{id}/exchange     Exchange waste for points
    POST   /api/accounts/{id}/checkin      Daily check-in
    POST   /api/accounts/{id}/redeem       Redeem points for voucher
    POST   /api/accounts/{id}/submissions  Submit waste deposit

  Calculators:
    POST   /api/points/calculator          Exchange-formula preview
    POST   /api/recycle/calculate          Submission-formula preview

  Submissions (administrative):
    GET    /api/submissions                List submissions
    GET    /api/submissions/{id}           Get submission
    POST   /api/submissions/{id}/confirm   Confirm (credits statistics)
    POST   /api/submissions/{id}/complete  Complete
    POST   /api/submissions/{id}/cancel    Cancel

  Other:
    GET    /api/leaderboard                Points leaderboard
    GET    /metrics                        Prometheus metrics

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input (validator tags, then domain rules)
  3. Call domain logic (ledger, workflow, stats)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input, insufficient balance
  - 404: Account or submission not found
  - 409: Double check-in, illegal transition, duplicate email, lock conflict
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"

	"github.com/ecopoints/rewards-engine/domain"
	"github.com/ecopoints/rewards-engine/metrics"
	"github.com/ecopoints/rewards-engine/rewards"
	"github.com/ecopoints/rewards-engine/submission"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Accounts    *rewards.AccountService
	Ledger      *rewards.BalanceLedger
	Checkins    *rewards.CheckinTracker
	Vouchers    *rewards.VoucherIssuer
	Stats       *rewards.StatsService
	Submissions *submission.Workflow

	log      *logrus.Entry
	validate *validator.Validate
}

// NewHandler creates a handler wired to the given services. logger may be
// nil, in which case the standard logger is used.
func NewHandler(
	accounts *rewards.AccountService,
	ledger *rewards.BalanceLedger,
	checkins *rewards.CheckinTracker,
	vouchers *rewards.VoucherIssuer,
	stats *rewards.StatsService,
	submissions *submission.Workflow,
	logger *logrus.Logger,
) *Handler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Handler{
		Accounts:    accounts,
		Ledger:      ledger,
		Checkins:    checkins,
		Vouchers:    vouchers,
		Stats:       stats,
		Submissions: submissions,
		log:         logger.WithField("component", "api"),
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// =============================================================================
// ACCOUNT HANDLERS
// =============================================================================

// RegisterAccount creates a new account with a zero balance.
func (h *Handler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	var req RegisterAccountRequest
	if !h.decode(w, r, &req) {
		return
	}

	acct, err := h.Accounts.Register(r.Context(), req.Name, req.Email)
	h.observe("register", err)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toAccountDTO(acct))
}

// GetAccount returns a single account.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acct, err := h.Accounts.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(acct))
}

// GetAccountStats returns the statistics overview for one account.
func (h *Handler) GetAccountStats(w http.ResponseWriter, r *http.Request) {
	ov, err := h.Stats.Overview(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, StatsDTO{
		AccountID:     ov.AccountID,
		Points:        ov.Points,
		CheckinStreak: ov.CheckinStreak,
		LastCheckin:   formatTimePtr(ov.LastCheckin),
		TotalKg:       ov.Stats.TotalKg,
		TotalEarnings: ov.Stats.TotalEarnings,
		TotalPoints:   ov.Stats.TotalPoints,
		TotalOrders:   ov.Stats.TotalOrders,
		EcoTier:       ov.EcoTier,
		Ledger:        ov.Ledger,
	})
}

// ListRecords returns the account's ledger history, newest first.
func (h *Handler) ListRecords(w http.ResponseWriter, r *http.Request) {
	f := domain.RecordFilter{
		AccountID: chi.URLParam(r, "id"),
		Kind:      domain.RecordKind(r.URL.Query().Get("kind")),
		Page:      queryInt(r, "page", 1),
		PageSize:  queryInt(r, "page_size", 20),
	}

	recs, page, err := h.Accounts.ListRecords(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RecordListResponse{
		Records:    toRecordDTOs(recs),
		Pagination: page,
	})
}

// ListVouchers returns the account's redeemed vouchers, newest first.
func (h *Handler) ListVouchers(w http.ResponseWriter, r *http.Request) {
	recs, page, err := h.Accounts.ListVouchers(r.Context(),
		chi.URLParam(r, "id"), queryInt(r, "page", 1), queryInt(r, "page_size", 20))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, RecordListResponse{
		Records:    toRecordDTOs(recs),
		Pagination: page,
	})
}

// =============================================================================
// LEDGER ACTION HANDLERS
// =============================================================================

// ExchangeWaste converts a waste weight into points.
func (h *Handler) ExchangeWaste(w http.ResponseWriter, r *http.Request) {
	var req ExchangeRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, acct, err := h.Ledger.ExchangeWaste(r.Context(), rewards.ExchangeInput{
		AccountID:   chi.URLParam(r, "id"),
		Weight:      req.Weight,
		Location:    req.Location,
		PlasticType: domain.PlasticType(req.PlasticType),
	})
	h.observe("exchange", err)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ActionResponse{
		Record:  toRecordDTO(rec),
		Account: toAccountDTO(acct),
	})
}

// Checkin records a daily check-in for the account.
func (h *Handler) Checkin(w http.ResponseWriter, r *http.Request) {
	rec, acct, err := h.Checkins.Checkin(r.Context(), chi.URLParam(r, "id"), time.Now())
	h.observe("checkin", err)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ActionResponse{
		Record:  toRecordDTO(rec),
		Account: toAccountDTO(acct),
	})
}

// Redeem exchanges points for a voucher code.
func (h *Handler) Redeem(w http.ResponseWriter, r *http.Request) {
	var req RedeemRequest
	if !h.decode(w, r, &req) {
		return
	}

	rec, acct, err := h.Vouchers.Redeem(r.Context(), rewards.RedeemInput{
		AccountID:      chi.URLParam(r, "id"),
		PointsRequired: req.PointsRequired,
		VoucherType:    req.VoucherType,
		VoucherValue:   req.VoucherValue,
		VoucherName:    req.VoucherName,
		Description:    req.Description,
		IconClass:      req.IconClass,
	})
	h.observe("redeem", err)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, ActionResponse{
		Record:  toRecordDTO(rec),
		Account: toAccountDTO(acct),
	})
}

// =============================================================================
// CALCULATOR HANDLERS
// =============================================================================

// CalculateExchange previews the exchange-pathway formula for a weight.
// No account required, nothing is persisted.
func (h *Handler) CalculateExchange(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !domain.ValidWeight(req.Weight) {
		writeError(w, http.StatusBadRequest, "weight must be between 0.1 and 1000 kg", nil)
		return
	}

	calc := domain.CalculateExchangePoints(req.Weight)
	writeJSON(w, http.StatusOK, ExchangeCalculationDTO{
		Weight:      req.Weight,
		BasePoints:  calc.BasePoints,
		BonusPoints: calc.BonusPoints,
		TotalPoints: calc.TotalPoints,
		HasBonus:    calc.HasBonus,
	})
}

// CalculateSubmission previews the submission-pathway formula for a weight.
func (h *Handler) CalculateSubmission(w http.ResponseWriter, r *http.Request) {
	var req CalculateRequest
	if !h.decode(w, r, &req) {
		return
	}
	if !domain.ValidWeight(req.Weight) {
		writeError(w, http.StatusBadRequest, "weight must be between 0.1 and 1000 kg", nil)
		return
	}

	calc := domain.CalculateSubmissionPoints(req.Weight)
	writeJSON(w, http.StatusOK, SubmissionCalculationDTO{
		Weight:        req.Weight,
		Points:        calc.Points,
		BonusPoints:   calc.BonusPoints,
		TotalPoints:   calc.TotalPoints,
		TotalEarnings: calc.TotalEarnings,
		HasBonus:      calc.HasBonus,
	})
}

// =============================================================================
// SUBMISSION HANDLERS
// =============================================================================

// CreateSubmission records a waste deposit in the pending state.
func (h *Handler) CreateSubmission(w http.ResponseWriter, r *http.Request) {
	var req SubmitSubmissionRequest
	if !h.decode(w, r, &req) {
		return
	}

	sub, err := h.Submissions.Submit(r.Context(), submission.SubmitInput{
		AccountID:   chi.URLParam(r, "id"),
		PlasticType: domain.PlasticType(req.PlasticType),
		Weight:      req.Weight,
		Location:    req.Location,
		Notes:       req.Notes,
		Images:      req.Images,
	})
	h.observe("submit", err)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toSubmissionDTO(sub))
}

// GetSubmission returns one submission.
func (h *Handler) GetSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := h.Submissions.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTO(sub))
}

// ListSubmissions returns submissions matching the query filters. Without
// an account_id filter this is the administrative view over all accounts.
func (h *Handler) ListSubmissions(w http.ResponseWriter, r *http.Request) {
	f := domain.SubmissionFilter{
		AccountID:   r.URL.Query().Get("account_id"),
		Status:      domain.SubmissionStatus(r.URL.Query().Get("status")),
		PlasticType: domain.PlasticType(r.URL.Query().Get("plastic_type")),
		Page:        queryInt(r, "page", 1),
		PageSize:    queryInt(r, "page_size", 10),
	}

	subs, page, err := h.Submissions.List(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]SubmissionDTO, len(subs))
	for i := range subs {
		dtos[i] = toSubmissionDTO(&subs[i])
	}
	writeJSON(w, http.StatusOK, SubmissionListResponse{
		Submissions: dtos,
		Pagination:  page,
	})
}

// ConfirmSubmission moves a pending submission to confirmed and credits
// the account statistics.
func (h *Handler) ConfirmSubmission(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "confirm", h.Submissions.Confirm)
}

// CompleteSubmission moves a confirmed submission to completed.
func (h *Handler) CompleteSubmission(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "complete", h.Submissions.Complete)
}

// CancelSubmission moves a pending or confirmed submission to cancelled.
func (h *Handler) CancelSubmission(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, "cancel", h.Submissions.Cancel)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, action string,
	fn func(ctx context.Context, id string) (*domain.Submission, error)) {
	sub, err := fn(r.Context(), chi.URLParam(r, "id"))
	h.observe(action, err)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSubmissionDTO(sub))
}

// =============================================================================
// LEADERBOARD
// =============================================================================

// Leaderboard returns the top accounts by points.
func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, total, err := h.Stats.Leaderboard(r.Context(), queryInt(r, "limit", 10))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	dtos := make([]LeaderboardEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = LeaderboardEntryDTO{
			Rank:          e.Rank,
			AccountID:     e.AccountID,
			Name:          e.Name,
			Points:        e.Points,
			TotalKg:       e.TotalKg,
			CheckinStreak: e.CheckinStreak,
			EcoTier:       e.EcoTier,
			MemberSince:   e.MemberSince.Format("2006-01-02"),
		}
	}
	writeJSON(w, http.StatusOK, LeaderboardResponse{
		Entries:       dtos,
		TotalAccounts: total,
	})
}

// =============================================================================
// SHARED PLUMBING
// =============================================================================

// decode parses the JSON body into dst and runs validator tags. Writes
// the error response itself and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// observe records the action outcome metric.
func (h *Handler) observe(action string, err error) {
	outcome := metrics.Outcome(err, domain.IsClientError, domain.IsRetryable)
	metrics.ActionsTotal.WithLabelValues(action, outcome).Inc()
}

// writeDomainError maps a domain error to an HTTP status.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case domain.IsNotFound(err):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, domain.ErrAlreadyCheckedIn),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrAccountExists),
		errors.Is(err, domain.ErrConcurrencyConflict):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case domain.IsClientError(err):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	default:
		h.log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func toRecordDTOs(recs []domain.LedgerRecord) []RecordDTO {
	dtos := make([]RecordDTO, len(recs))
	for i := range recs {
		dtos[i] = toRecordDTO(&recs[i])
	}
	return dtos
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// errorResponse is the JSON error envelope.
type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

// writeError writes a JSON error response. The detail is included only
// for client errors; internal error details stay in the logs.
func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := errorResponse{Error: msg}
	if err != nil && status < http.StatusInternalServerError {
		resp.Detail = err.Error()
	}
	writeJSON(w, status, resp)
}
