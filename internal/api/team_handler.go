package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/taskhub/internal/api/shared"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/service"
)

// TeamHandler handles team requests.
type TeamHandler struct {
	teamService service.TeamService
	logger      *slog.Logger
}

// NewTeamHandler creates a new TeamHandler.
func NewTeamHandler(teamService service.TeamService, logger *slog.Logger) *TeamHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &TeamHandler{
		teamService: teamService,
		logger:      logger.With(slog.String("component", "team_handler")),
	}
}

// CreateTeam handles POST /teams.
func (h *TeamHandler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	identity, ok := getIdentity(w, r, log)
	if !ok {
		return
	}

	var req CreateTeamRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	team, err := h.teamService.CreateTeam(r.Context(), identity, service.CreateTeamInput{
		Name:    strings.TrimSpace(req.Name),
		Manager: parseOptionalUUID(req.Manager),
		Members: parseUUIDs(req.Members),
	})
	if err != nil {
		HandleAPIError(w, r, err, "Failed to create team")
		return
	}

	log.Info("team created",
		slog.String("team_id", team.ID.String()),
		slog.Int("members", len(team.Members)))
	shared.RespondWithData(w, r, http.StatusCreated, "Team created successfully", team)
}

// GetTeam handles GET /teams/{id}.
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	identity, id, ok := handleIdentityAndPathUUID(w, r, "id", logger.FromContextOrDefault(r.Context(), h.logger))
	if !ok {
		return
	}

	team, err := h.teamService.GetTeam(r.Context(), identity, id)
	if err != nil {
		HandleAPIError(w, r, err, "Failed to get team")
		return
	}

	shared.RespondWithData(w, r, http.StatusOK, "Team retrieved successfully", team)
}
