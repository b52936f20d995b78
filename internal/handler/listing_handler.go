package handler

import (
	"net/http"

	"sixmarket/internal/app/listing"
	"sixmarket/internal/pkg/auth/jwt"
	"sixmarket/internal/pkg/errs"
	"sixmarket/internal/pkg/req"
	"sixmarket/internal/pkg/resp"

	"github.com/go-chi/chi/v5"
)

// HandleCreateListing creates a listing owned by the session user. Images must be the
// storage keys returned by the presign endpoint, in display order.
func HandleCreateListing(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		var input listing.CreateInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		created, err := deps.Listings.Create(r.Context(), identity.Email, input)
		if err != nil {
			resp.RespondError(w, r, toCustomError(err))
			return
		}

		resp.RespondCreated(w, r, created)
	}
}

// HandleGetListing returns one listing with presigned image URLs.
func HandleGetListing(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if id == "" {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		view, err := deps.Listings.Get(r.Context(), id)
		if err != nil {
			resp.RespondError(w, r, toCustomError(err))
			return
		}

		resp.RespondSuccess(w, r, view)
	}
}

// HandleRecentListings returns the newest listings. HEAD answers 200 without touching storage.
func HandleRecentListings(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodHead {
			w.WriteHeader(http.StatusOK)
			return
		}

		views, err := deps.Listings.Recent(r.Context())
		if err != nil {
			resp.RespondError(w, r, toCustomError(err))
			return
		}

		resp.RespondSuccess(w, r, views)
	}
}
