package api

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/taskhub/internal/api/shared"
	"github.com/phrazzld/taskhub/internal/authz"
	"github.com/phrazzld/taskhub/internal/domain"
	"github.com/phrazzld/taskhub/internal/platform/logger"
	"github.com/phrazzld/taskhub/internal/service"
	"github.com/phrazzld/taskhub/internal/store"
)

// getPrincipal extracts the authenticated caller placed in the request
// context by the authentication middleware. It writes a 401 response when
// there is none.
func getPrincipal(w http.ResponseWriter, r *http.Request, log *slog.Logger) (*service.Principal, bool) {
	principal, ok := shared.PrincipalFromContext(r.Context())
	if !ok {
		if log == nil {
			log = logger.FromContextOrDefault(r.Context(), slog.Default())
		}
		log.Warn("principal not found in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized, "")
		return nil, false
	}
	return principal, true
}

// getIdentity is getPrincipal reduced to what authorization needs.
func getIdentity(w http.ResponseWriter, r *http.Request, log *slog.Logger) (authz.Identity, bool) {
	principal, ok := getPrincipal(w, r, log)
	if !ok {
		return authz.Identity{}, false
	}
	return authz.IdentityOf(principal.User), true
}

// getPathUUID extracts a UUID from the URL path parameters.
//
// Parameters:
//   - r: The HTTP request
//   - paramName: The name of the path parameter to extract
//
// Returns:
//   - (uuid.UUID, nil): The parsed UUID if valid
//   - (uuid.UUID{}, error): A zero UUID and appropriate error if parameter is missing or invalid
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// handleIdentityAndPathUUID is a composite helper that extracts both the
// caller's identity and a UUID from the path parameters. It writes an error
// response if either extraction fails.
func handleIdentityAndPathUUID(
	w http.ResponseWriter,
	r *http.Request,
	paramName string,
	log *slog.Logger,
) (authz.Identity, uuid.UUID, bool) {
	if log == nil {
		log = logger.FromContextOrDefault(r.Context(), slog.Default())
	}

	identity, ok := getIdentity(w, r, log)
	if !ok {
		return authz.Identity{}, uuid.Nil, false
	}

	pathID, err := getPathUUID(r, paramName)
	if err != nil {
		log.Warn("invalid "+paramName,
			slog.String("param_name", paramName),
			slog.String("value", chi.URLParam(r, paramName)))
		HandleAPIError(w, r, err, "")
		return authz.Identity{}, uuid.Nil, false
	}

	return identity, pathID, true
}

// getPageRequest reads the page and limit query parameters. Missing values
// fall back to the store defaults; out-of-range values are clamped.
func getPageRequest(r *http.Request) (store.PageRequest, error) {
	var req store.PageRequest
	q := r.URL.Query()

	if raw := q.Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			return req, domain.NewValidationError("page", "must be a number", domain.ErrValidation)
		}
		req.Page = page
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return req, domain.NewValidationError("limit", "must be a number", domain.ErrValidation)
		}
		req.Limit = limit
	}

	return req.Normalize(), nil
}

// getQueryUUID reads an optional UUID query parameter.
func getQueryUUID(r *http.Request, name string) (uuid.NullUUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return uuid.NullUUID{}, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.NullUUID{}, domain.NewValidationError(name, "has invalid format", domain.ErrInvalidID)
	}
	return uuid.NullUUID{UUID: id, Valid: true}, nil
}

// decodeAndValidate decodes the JSON body into dst and validates it. It
// writes a 400 response and returns false on failure.
func decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := shared.DecodeJSON(r, dst); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	if err := shared.ValidateRequest(dst); err != nil {
		HandleAPIError(w, r, err, "")
		return false
	}
	return true
}
