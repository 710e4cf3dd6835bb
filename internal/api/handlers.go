package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	apperrors "github.com/refina-analytics/internal/errors"
	"github.com/refina-analytics/internal/logging"
	"github.com/refina-analytics/internal/service"
	"github.com/refina-analytics/internal/types"
)

// Request bodies. Dates are "2006-01-02" or RFC3339 strings.

type initialSyncRequest struct {
	SecretKey string `json:"secretKey"`
	UserID    string `json:"userID,omitempty"`
}

type dateRangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type dateOptionRequest struct {
	Date  string            `json:"date,omitempty"`
	Year  *int              `json:"year,omitempty"`
	Month *int              `json:"month,omitempty"`
	Day   *int              `json:"day,omitempty"`
	Range *dateRangeRequest `json:"range,omitempty"`
}

type userTransactionsRequest struct {
	UserID     string            `json:"userID"`
	WalletID   string            `json:"walletID,omitempty"`
	DateOption dateOptionRequest `json:"dateOption"`
}

type userBalanceRequest struct {
	UserID      string            `json:"userID"`
	WalletID    string            `json:"walletID,omitempty"`
	Aggregation types.Aggregation `json:"aggregation"`
	Range       *dateRangeRequest `json:"range,omitempty"`
}

type userFinancialSummaryRequest struct {
	UserID   string            `json:"userID"`
	WalletID string            `json:"walletID,omitempty"`
	Range    *dateRangeRequest `json:"range,omitempty"`
}

type userNetWorthCompositionRequest struct {
	UserID string `json:"userID"`
}

// syncResponse is the body of a successful initial sync
type syncResponse struct {
	Status     bool                `json:"status"`
	StatusCode int                 `json:"statusCode"`
	Message    string              `json:"message"`
	Result     *service.SyncResult `json:"result,omitempty"`
}

// handleInitialSync runs the materialization pipeline on request
func (s *Server) handleInitialSync(w http.ResponseWriter, r *http.Request) {
	var req initialSyncRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	if s.config.InitialSyncKey == "" ||
		subtle.ConstantTimeCompare([]byte(req.SecretKey), []byte(s.config.InitialSyncKey)) != 1 {
		respondError(w, r, apperrors.NewForbiddenError(msgInvalidSecret))
		return
	}

	// A dropped client connection must not abort a run halfway through its
	// writes, so the run only inherits the request's values.
	ctx := context.WithoutCancel(r.Context())

	logging.FromContext(ctx).WithField("user_id", req.UserID).Info("Initial sync requested")

	result, err := s.syncRunner.Run(ctx, service.SyncRequest{UserID: req.UserID})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, syncResponse{
		Status:     true,
		StatusCode: http.StatusOK,
		Message:    msgSyncCompleted,
		Result:     result,
	})
}

// handleUserTransactions returns per-category totals over the selected days
func (s *Server) handleUserTransactions(w http.ResponseWriter, r *http.Request) {
	var req userTransactionsRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	userID, err := resolveUserID(r.Context(), req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	option, err := s.parseDateOption(req.DateOption)
	if err != nil {
		respondError(w, r, err)
		return
	}

	totals, err := s.querier.CategoryTotals(r.Context(), service.CategoryTotalsQuery{
		UserID:     userID,
		WalletID:   req.WalletID,
		DateOption: option,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, totals)
}

// handleUserBalance returns the balance history at the requested granularity
func (s *Server) handleUserBalance(w http.ResponseWriter, r *http.Request) {
	var req userBalanceRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	userID, err := resolveUserID(r.Context(), req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	if !req.Aggregation.Valid() {
		respondError(w, r, apperrors.NewValidationError("aggregation", "must be one of daily, weekly, monthly"))
		return
	}

	dateRange, err := s.parseRequiredRange(req.Range)
	if err != nil {
		respondError(w, r, err)
		return
	}

	points, err := s.querier.Balances(r.Context(), service.BalanceQuery{
		UserID:      userID,
		WalletID:    req.WalletID,
		Aggregation: req.Aggregation,
		Range:       dateRange,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, points)
}

// handleUserFinancialSummary returns the monthly financial summaries
func (s *Server) handleUserFinancialSummary(w http.ResponseWriter, r *http.Request) {
	var req userFinancialSummaryRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	userID, err := resolveUserID(r.Context(), req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	dateRange, err := s.parseRequiredRange(req.Range)
	if err != nil {
		respondError(w, r, err)
		return
	}

	summaries, err := s.querier.FinancialSummaries(r.Context(), service.SummaryQuery{
		UserID:   userID,
		WalletID: req.WalletID,
		Range:    dateRange,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, summaries)
}

// handleUserNetWorthComposition returns the user's current asset split
func (s *Server) handleUserNetWorthComposition(w http.ResponseWriter, r *http.Request) {
	var req userNetWorthCompositionRequest
	if err := parseJSONBody(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	userID, err := resolveUserID(r.Context(), req.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	composition, err := s.querier.NetWorthComposition(r.Context(), userID)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondJSON(w, http.StatusOK, composition)
}

// parseDateOption validates the category date filter. Ranges may be partial
// here; an incomplete range is simply not applied.
func (s *Server) parseDateOption(req dateOptionRequest) (service.DateOption, error) {
	var option service.DateOption

	if req.Date != "" {
		d, err := s.parseDate("dateOption.date", req.Date)
		if err != nil {
			return option, err
		}
		option.Date = &d
	}

	if req.Year != nil {
		if *req.Year < 1900 || *req.Year > 2100 {
			return option, apperrors.NewValidationError("dateOption.year", "must be between 1900 and 2100")
		}
		option.Year = *req.Year
	}
	if req.Month != nil {
		if *req.Month < 1 || *req.Month > 12 {
			return option, apperrors.NewValidationError("dateOption.month", "must be between 1 and 12")
		}
		option.Month = *req.Month
	}
	if req.Day != nil {
		if *req.Day < 1 || *req.Day > 31 {
			return option, apperrors.NewValidationError("dateOption.day", "must be between 1 and 31")
		}
		option.Day = *req.Day
	}

	if req.Range != nil {
		option.Range = &service.DateRange{}
		if req.Range.Start != "" {
			start, err := s.parseDate("dateOption.range.start", req.Range.Start)
			if err != nil {
				return option, err
			}
			option.Range.Start = &start
		}
		if req.Range.End != "" {
			end, err := s.parseDate("dateOption.range.end", req.Range.End)
			if err != nil {
				return option, err
			}
			option.Range.End = &end
		}
	}

	return option, nil
}

// parseRequiredRange validates an optional range whose ends are both
// required once it is present
func (s *Server) parseRequiredRange(req *dateRangeRequest) (*service.DateRange, error) {
	if req == nil {
		return nil, nil
	}
	if req.Start == "" {
		return nil, apperrors.NewValidationError("range.start", "is required")
	}
	if req.End == "" {
		return nil, apperrors.NewValidationError("range.end", "is required")
	}

	start, err := s.parseDate("range.start", req.Start)
	if err != nil {
		return nil, err
	}
	end, err := s.parseDate("range.end", req.End)
	if err != nil {
		return nil, err
	}
	if end.Before(start) {
		return nil, apperrors.NewValidationError("range", "end must not be before start")
	}

	return &service.DateRange{Start: &start, End: &end}, nil
}

// parseDate reads a calendar date. Timestamps are converted to the server's
// analytics zone before the day is taken.
func (s *Server) parseDate(param, value string) (time.Time, error) {
	if d, err := time.Parse(time.DateOnly, value); err == nil {
		return d, nil
	}

	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(param, "must be a date (YYYY-MM-DD) or an RFC3339 timestamp")
	}

	t = t.In(s.config.Location)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
}
