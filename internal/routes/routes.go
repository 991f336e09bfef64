package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/libshelf/accounts/internal/auth"
	"github.com/libshelf/accounts/internal/handlers"
	"github.com/libshelf/accounts/internal/middleware"
	pkghttp "github.com/libshelf/accounts/pkg/http"
)

// RegisterRoutes registers all application routes
func RegisterRoutes(
	router chi.Router,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	tokenManager *auth.TokenManager,
) {
	// Brute-force protection on the credential-bearing endpoints
	rateLimitConfig := middleware.DefaultAuthRateLimit()

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		pkghttp.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	router.Route("/api/users", func(r chi.Router) {
		// Public lifecycle routes
		r.Post("/register", authHandler.Register)
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/login", authHandler.Login)
		r.Get("/verify-email", authHandler.VerifyEmail)
		r.Post("/resend-verification", authHandler.ResendVerification)
		r.With(middleware.RateLimitByIP(rateLimitConfig)).Post("/forgot-password", authHandler.ForgotPassword)
		r.Post("/verify-otp", authHandler.VerifyOTP)
		r.Post("/reset-password", authHandler.ResetPassword)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthMiddleware(tokenManager))

			r.Get("/", userHandler.ListUsers)
			r.Get("/me", userHandler.Me)
			r.Get("/{id}", userHandler.GetUser)
			r.Put("/{id}", userHandler.UpdateUser)

			// Destructive operations stay admin-only
			r.With(auth.RequireAdmin()).Delete("/{id}", userHandler.DeleteUser)
		})
	})
}
