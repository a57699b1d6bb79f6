package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/civicworks/volunteerhub/internal/api/applications"
	"github.com/civicworks/volunteerhub/internal/api/auth"
	"github.com/civicworks/volunteerhub/internal/api/middleware"
	"github.com/civicworks/volunteerhub/internal/api/notifications"
	"github.com/civicworks/volunteerhub/internal/api/organizations"
	"github.com/civicworks/volunteerhub/internal/api/projects"
	"github.com/civicworks/volunteerhub/internal/api/reviews"
	"github.com/civicworks/volunteerhub/internal/api/tasks"
	"github.com/civicworks/volunteerhub/internal/api/users"
	"github.com/civicworks/volunteerhub/internal/models"
)

// setupRouter creates and configures the chi router with all routes.
func (s *Server) setupRouter() *chi.Mux {
	r := chi.NewRouter()

	jwtService := auth.NewJWTService(s.config.JWTSecret, s.config.AccessTokenTTL)
	lockoutTracker := auth.NewLockoutTracker(s.config.LockoutThreshold, s.config.LockoutDuration)

	ipLimiter := middleware.NewRateLimiter(s.config.RateLimitPerIP)
	userLimiter := middleware.NewRateLimiter(s.config.RateLimitPerUser)

	// Global middleware
	r.Use(middleware.RequestLogger(s.config.Verbose))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.PrometheusMiddleware)
	r.Use(middleware.Recoverer)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Auth routes (mostly public)
		r.Route("/auth", func(r chi.Router) {
			authHandler := auth.NewHandler(
				s.storage,
				jwtService,
				lockoutTracker,
				s.config.RefreshTokenTTL,
			)

			// Public routes with IP rate limiting
			r.Group(func(r chi.Router) {
				r.Use(middleware.RateLimitByIP(ipLimiter))
				r.Post("/login", authHandler.Login)
				r.Post("/refresh", authHandler.Refresh)
			})

			// Protected routes
			r.Group(func(r chi.Router) {
				r.Use(middleware.JWTAuth(jwtService))
				r.Post("/logout", authHandler.Logout)
			})
		})

		// Everything below requires a valid token
		r.Group(func(r chi.Router) {
			r.Use(middleware.JWTAuth(jwtService))
			r.Use(middleware.RateLimitByUser(userLimiter))

			userHandler := users.NewHandler(s.storage)
			orgHandler := organizations.NewHandler(s.storage)
			projectHandler := projects.NewHandler(s.storage, s.projects)
			taskHandler := tasks.NewHandler(s.storage, s.tasks)
			applicationHandler := applications.NewHandler(s.storage, s.workflow)
			reviewHandler := reviews.NewHandler(s.storage, s.workflow)
			notificationHandler := notifications.NewHandler(s.storage)

			r.Route("/users", func(r chi.Router) {
				// Current user endpoints (any authenticated user)
				r.Get("/me", userHandler.GetCurrentUser)
				r.Put("/me/password", userHandler.ChangePassword)
				r.Post("/me/volunteer-profile", userHandler.CreateVolunteerProfile)

				// Admin-only endpoints
				r.Group(func(r chi.Router) {
					r.Use(middleware.RequireRole(models.RoleAdmin))
					r.Get("/", userHandler.List)
					r.Post("/", userHandler.Create)
				})

				// Per-user endpoints (admin or self)
				r.Route("/{id}", func(r chi.Router) {
					r.Use(middleware.RequireAdminOrSelf)
					r.Get("/", userHandler.GetByID)
					r.Put("/", userHandler.Update)

					// Delete is admin-only
					r.Group(func(r chi.Router) {
						r.Use(middleware.RequireRole(models.RoleAdmin))
						r.Delete("/", userHandler.Delete)
					})
				})
			})

			r.Route("/organizations", func(r chi.Router) {
				r.Get("/", orgHandler.List)
				r.Post("/", orgHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", orgHandler.GetByID)
					r.Put("/", orgHandler.Update)
					r.Get("/members", orgHandler.GetMembers)
					r.Post("/members", orgHandler.AddMember)
					r.Delete("/members/{userID}", orgHandler.RemoveMember)
				})
			})

			r.Route("/projects", func(r chi.Router) {
				r.Get("/", projectHandler.List)
				r.Post("/", projectHandler.Create)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", projectHandler.GetByID)
					r.Put("/", projectHandler.Update)
					r.Post("/publish", projectHandler.Publish)
					r.Post("/finish", projectHandler.Finish)

					r.Get("/scope", projectHandler.ListScopes)
					r.Put("/scope", projectHandler.UpdateScope)

					r.Get("/staff", projectHandler.ListStaff)
					r.Post("/staff", projectHandler.AddStaff)
					r.Put("/staff/{roleID}", projectHandler.UpdateStaff)
					r.Delete("/staff/{roleID}", projectHandler.DeleteStaff)

					r.Post("/follow", projectHandler.ToggleFollow)
					r.Get("/logs", projectHandler.ListLogs)
					r.Get("/channels", projectHandler.ListChannels)

					r.Get("/applications", applicationHandler.ListByProject)
					r.Get("/reviews", reviewHandler.ListPending)
					r.Put("/volunteers/{roleID}", applicationHandler.UpdateVolunteerRole)

					r.Route("/tasks", func(r chi.Router) {
						r.Get("/", taskHandler.List)
						r.Post("/", taskHandler.Create)

						r.Route("/{taskID}", func(r chi.Router) {
							r.Get("/", taskHandler.Get)
							r.Put("/", taskHandler.Save)
							r.Delete("/", taskHandler.Delete)
							r.Post("/toggle-accepting", taskHandler.ToggleAccepting)
							r.Post("/complete", taskHandler.Complete)

							r.Get("/requirements", taskHandler.ListRequirements)
							r.Post("/requirements", taskHandler.AddRequirement)
							r.Delete("/requirements/{reqID}", taskHandler.DeleteRequirement)

							r.Post("/applications", applicationHandler.Apply)
							r.Get("/applications", applicationHandler.ListByTask)
							r.Post("/cancel", applicationHandler.Cancel)
							r.Delete("/volunteers/{roleID}", applicationHandler.DeleteVolunteerRole)

							r.Get("/reviews", reviewHandler.ListByTask)
						})
					})
				})
			})

			r.Route("/applications/{appID}", func(r chi.Router) {
				r.Post("/accept", applicationHandler.Accept)
				r.Post("/reject", applicationHandler.Reject)
			})

			r.Route("/reviews/{reviewID}", func(r chi.Router) {
				r.Post("/accept", reviewHandler.Accept)
				r.Post("/reject", reviewHandler.Reject)
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", notificationHandler.List)
				r.Get("/unread-count", notificationHandler.UnreadCount)
				r.Post("/read-all", notificationHandler.MarkAllRead)
				r.Post("/{notificationID}/read", notificationHandler.MarkRead)
			})
		})
	})

	// Health check (public, no rate limit)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		OK(w, map[string]string{"status": "ok"})
	})

	return r
}
