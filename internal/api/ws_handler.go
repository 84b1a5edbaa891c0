package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/platform/logger"
)

// RealtimeChannel serves websocket connections for an authenticated caller.
// notify.Hub implements it.
type RealtimeChannel interface {
	Serve(w http.ResponseWriter, r *http.Request, identity uuid.UUID) error
}

// WSHandler upgrades GET /ws to a websocket on the real-time channel.
type WSHandler struct {
	channel RealtimeChannel
	logger  *slog.Logger
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(channel RealtimeChannel, logger *slog.Logger) *WSHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WSHandler{
		channel: channel,
		logger:  logger.With(slog.String("component", "ws_handler")),
	}
}

// Connect handles GET /ws. The connection only ever joins the caller's own
// group.
func (h *WSHandler) Connect(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)
	principal, ok := getPrincipal(w, r, log)
	if !ok {
		return
	}

	// Serve writes its own HTTP error when the upgrade fails.
	if err := h.channel.Serve(w, r, principal.User.ID); err != nil {
		log.Warn("websocket session failed",
			slog.String("user_id", principal.User.ID.String()),
			slog.String("error", err.Error()))
	}
}
