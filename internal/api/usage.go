package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/auth"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/internal/storage"
	"github.com/sidewayz8solutions/sidewayz-legalreviewiq/pkg/models"
)

// handleGetUsage reports the caller's analyses this month against their plan
func (s *Server) handleGetUsage(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(w, r)
	if !ok {
		return
	}

	usage, err := s.usageFor(r.Context(), userID)
	if err != nil {
		s.logger.Error("load usage", "err", err)
		respondError(w, http.StatusInternalServerError, "failed to fetch usage")
		return
	}

	respondJSON(w, http.StatusOK, usage)
}

// usageFor counts this calendar month's analyses. Limit and Remaining are nil on unlimited plans.
func (s *Server) usageFor(ctx context.Context, userID uuid.UUID) (*models.Usage, error) {
	user, err := s.stores.Users.GetByID(ctx, userID.String())
	if err != nil {
		return nil, err
	}

	periodStart := storage.MonthStart(s.now())
	used, err := s.stores.Usage.CountSince(ctx, userID, storage.EventContractAnalysis, periodStart)
	if err != nil {
		return nil, err
	}

	usage := &models.Usage{
		Plan:        string(user.Plan),
		Used:        used,
		PeriodStart: periodStart,
	}
	if user.Plan != auth.PlanPremium {
		limit := s.config.FreeMonthlyAnalyses
		remaining := max(0, limit-used)
		usage.Limit = &limit
		usage.Remaining = &remaining
	}
	return usage, nil
}
