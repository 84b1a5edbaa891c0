package api

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/taskhub/internal/api/shared"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/service"
)

// StatsHandler serves the analytics endpoints.
type StatsHandler struct {
	statsService service.StatsService
	logger       *slog.Logger
}

// NewStatsHandler creates a new StatsHandler.
func NewStatsHandler(statsService service.StatsService, logger *slog.Logger) *StatsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsHandler{
		statsService: statsService,
		logger:       logger.With(slog.String("component", "stats_handler")),
	}
}

// TaskAnalytics handles GET /analytics/tasks.
func (h *StatsHandler) TaskAnalytics(w http.ResponseWriter, r *http.Request) {
	identity, ok := getIdentity(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	analytics, err := h.statsService.TaskAnalytics(r.Context(), identity)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute task analytics")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Task analytics retrieved successfully", analytics)
}

// UserStatistics handles GET /analytics/users?userId=.
func (h *StatsHandler) UserStatistics(w http.ResponseWriter, r *http.Request) {
	identity, ok := getIdentity(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	user, err := getQueryUUID(r, "userId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	statistics, err := h.statsService.UserStatistics(r.Context(), identity, user)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute user statistics")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "User statistics retrieved successfully", statistics)
}

// TeamStatistics handles GET /analytics/teams?teamId=.
func (h *StatsHandler) TeamStatistics(w http.ResponseWriter, r *http.Request) {
	identity, ok := getIdentity(w, r, logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	team, err := getQueryUUID(r, "teamId")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	statistics, err := h.statsService.TeamStatistics(r.Context(), identity, team)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to compute team statistics")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Team statistics retrieved successfully", statistics)
}
