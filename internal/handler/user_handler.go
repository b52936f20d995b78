package handler

import (
	"errors"
	"net/http"

	"sixmarket/internal/app/user"
	"sixmarket/internal/pkg/auth/jwt"
	"sixmarket/internal/pkg/errs"
	"sixmarket/internal/pkg/resp"

	"github.com/google/uuid"
)

// HandleGetUserProfile returns the account behind the session token.
func HandleGetUserProfile(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity := jwt.GetPayloadFromContext(r)
		if identity == nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		id, err := uuid.Parse(identity.ID)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
			return
		}

		u, err := deps.Users.GetByID(r.Context(), id)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				resp.RespondError(w, r, errs.NewError(errs.ErrUnauthorized))
				return
			}
			resp.RespondError(w, r, toCustomError(err))
			return
		}

		resp.RespondSuccess(w, r, map[string]any{"user": u})
	}
}
