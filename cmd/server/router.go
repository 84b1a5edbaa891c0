package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/taskhub/internal/api"
	apiMiddleware "github.com/phrazzld/taskhub/internal/api/middleware"
	"github.com/phrazzld/taskhub/internal/api/shared"
	"github.com/phrazzld/taskhub/internal/domain"
)

// setupRouter creates the application router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	authHandler := api.NewAuthHandler(app.authService, app.logger)
	userHandler := api.NewUserHandler(app.userService, app.logger)
	taskHandler := api.NewTaskHandler(app.taskService, app.logger)
	teamHandler := api.NewTeamHandler(app.teamService, app.logger)
	statsHandler := api.NewStatsHandler(app.statsService, app.logger)

	authMiddleware := apiMiddleware.NewAuthMiddleware(app.authService)
	loginLimiter := apiMiddleware.NewRateLimiter(app.config.Auth.LoginRatePerMinute, app.config.Auth.LoginBurst)
	staffOnly := apiMiddleware.RequireRoles(domain.RoleAdmin, domain.RoleManager)
	adminOnly := apiMiddleware.RequireRoles(domain.RoleAdmin)

	r.Route("/api/v1", func(r chi.Router) {
		// Public
		r.Post("/auth/signup", authHandler.Signup)
		r.With(loginLimiter.Limit).Post("/auth/login", authHandler.Login)
		r.Post("/auth/refresh", authHandler.RefreshToken)
		r.Get("/health", app.health)

		r.Group(func(r chi.Router) {
			r.Use(authMiddleware.Authenticate)

			r.Post("/auth/logout", authHandler.Logout)

			r.Get("/users/me", userHandler.GetProfile)
			r.Put("/users/me", userHandler.UpdateProfile)
			r.With(staffOnly).Get("/users", userHandler.ListUsers)
			r.Group(func(r chi.Router) {
				r.Use(adminOnly)
				r.Delete("/users/{id}", userHandler.DeleteUser)
				r.Put("/users/{id}/role", userHandler.SetRole)
				r.Put("/users/{id}/status", userHandler.SetStatus)
			})

			r.Post("/tasks", taskHandler.CreateTask)
			r.Get("/tasks", taskHandler.ListTasks)
			r.Get("/tasks/assigned", taskHandler.ListAssigned)
			r.Get("/tasks/{id}", taskHandler.GetTask)
			r.Put("/tasks/{id}", taskHandler.UpdateTask)
			r.Delete("/tasks/{id}", taskHandler.DeleteTask)
			r.Post("/tasks/{id}/assign", taskHandler.AssignTask)
			r.Put("/tasks/{id}/assignment", taskHandler.UpdateAssignment)

			r.Get("/analytics/tasks", statsHandler.TaskAnalytics)
			r.Get("/analytics/users", statsHandler.UserStatistics)
			r.Get("/analytics/teams", statsHandler.TeamStatistics)

			r.With(staffOnly).Post("/teams", teamHandler.CreateTeam)
			r.Get("/teams/{id}", teamHandler.GetTeam)

			if app.hub != nil {
				r.Get("/ws", api.NewWSHandler(app.hub, app.logger).Connect)
			}
		})
	})

	r.Get("/health", app.health)

	return r
}

// health reports liveness. It does not touch the database.
func (app *application) health(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, api.HealthResponse{Status: "ok"})
}
