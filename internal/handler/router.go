/*
Package handler provides the HTTP handlers and routing setup for the SixMarket API.

This file defines the main Router, applying middleware for CORS, request ids, logging,
panic recovery, metrics and IP-based rate limiting before delegating to the handlers.
*/
package handler

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"sixmarket/internal/pkg/auth/jwt"
	"sixmarket/internal/pkg/errs"
	"sixmarket/internal/pkg/limiter"
	"sixmarket/internal/pkg/logx"
	"sixmarket/internal/pkg/metrics"
	"sixmarket/internal/pkg/resp"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"golang.org/x/time/rate"
)

const (
	AuthRate  = 0.2
	AuthBurst = 5
)

// Router sets up the main HTTP routing table for the application.
// Rate limiter cleanup goroutines stop when ctx is done.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	presignLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(deps.Config.PresignRate), deps.Config.PresignBurst)
	authLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(AuthRate), AuthBurst)

	r := chi.NewRouter()

	corsAllowedOrigins := []string{}
	if deps.Config.IsDevelopment() {
		corsAllowedOrigins = []string{"*"}
	} else if len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   corsAllowedOrigins,
		AllowedMethods:   []string{"GET", "HEAD", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{},
		AllowCredentials: true,
		MaxAge:           300,
	})
	r.Use(c.Handler)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		resp.RespondError(w, r, errs.NewError(errs.ErrRouteNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		resp.RespondError(w, r, errs.NewError(errs.ErrMethodNotAllowed))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		resp.RespondSuccess(w, r, map[string]string{
			"status":  "ok",
			"service": "SixMarket API",
		})
	})
	r.Handle("/metrics", promhttp.Handler())

	if deps.ObjectStore != nil {
		r.Handle("/_objects/*", http.StripPrefix("/_objects", deps.ObjectStore))
	}

	r.Route("/api", func(api chi.Router) {
		api.Use(jwt.IdentityExtractorMiddleware(deps.Config.JWTSecret))

		api.Route("/auth", func(auth chi.Router) {
			auth.Use(authLimiter.Middleware)
			auth.Post("/register", HandleRegister(deps))
			auth.Post("/login", HandleLogin(deps))
		})

		api.Get("/user/profile", HandleGetUserProfile(deps))

		api.With(presignLimiter.Middleware).
			HandleFunc("/aws/getPresignedUrl", allowMethods(HandlePresignUploads(deps), http.MethodPost))

		api.Route("/listings", func(listings chi.Router) {
			// Static paths accept every method so that a wrong method is answered
			// with 405 here instead of falling through to /{id}.
			listings.HandleFunc("/createNewListing", requireSession(allowMethods(HandleCreateListing(deps), http.MethodPost)))
			listings.HandleFunc("/recent", allowMethods(HandleRecentListings(deps), http.MethodGet, http.MethodHead))
			listings.Get("/{id}", HandleGetListing(deps))
		})
	})

	return r
}

// requireSession answers 401 before anything else when the request carries no valid session.
func requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if jwt.GetPayloadFromContext(r) == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}
		next(w, r)
	}
}

// allowMethods answers 405 with an Allow header for any method outside methods.
func allowMethods(next http.HandlerFunc, methods ...string) http.HandlerFunc {
	allow := strings.Join(methods, ", ")
	return func(w http.ResponseWriter, r *http.Request) {
		if !slices.Contains(methods, r.Method) {
			w.Header().Set("Allow", allow)
			resp.RespondError(w, r, errs.NewError(errs.ErrMethodNotAllowed))
			return
		}
		next(w, r)
	}
}
