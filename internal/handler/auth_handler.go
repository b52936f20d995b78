package handler

import (
	"errors"
	"net/http"
	"net/mail"
	"strings"
	"sync"
	"unicode/utf8"

	"sixmarket/internal/app/user"
	"sixmarket/internal/pkg/auth/jwt"
	"sixmarket/internal/pkg/errs"
	"sixmarket/internal/pkg/logx"
	"sixmarket/internal/pkg/req"
	"sixmarket/internal/pkg/resp"

	"golang.org/x/crypto/bcrypt"
)

// dummyPasswordHash is compared against on unknown emails so login takes the same time
// whether or not the account exists.
var dummyPasswordHash = sync.OnceValue(func() []byte {
	hash, err := bcrypt.GenerateFromPassword([]byte("sixmarket-no-such-user"), bcrypt.DefaultCost)
	if err != nil {
		logx.Error(err, "failed to generate dummy password hash")
	}
	return hash
})

const (
	minPasswordLen = 6
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
	maxNameLen       = 50
)

type RegisterInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

// AuthResponse is returned by register and login.
type AuthResponse struct {
	Token string     `json:"token"`
	User  *user.User `json:"user"`
}

// HandleRegister creates an account and returns a session token for it.
func HandleRegister(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input RegisterInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		email := user.NormalizeEmail(input.Email)
		if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		name := strings.TrimSpace(input.Name)
		if name == "" || utf8.RuneCountInString(name) > maxNameLen {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		if utf8.RuneCountInString(input.Password) < minPasswordLen || len(input.Password) > maxPasswordBytes {
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidParams))
			return
		}

		hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
		if err != nil {
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown, err))
			return
		}

		u := &user.User{Email: email, Name: name, PasswordHash: string(hashedPassword)}
		if err := deps.Users.Create(r.Context(), u); err != nil {
			if errors.Is(err, user.ErrAlreadyExists) {
				logx.Warn("registration conflict: email already exists")
			}
			resp.RespondError(w, r, toCustomError(err))
			return
		}

		token, err := issueToken(deps, u)
		if err != nil {
			logx.Error(err, "failed to generate token after registration")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondCreated(w, r, AuthResponse{Token: token, User: u})
	}
}

type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin verifies credentials and issues a JWT token.
// Unknown emails and wrong passwords produce the same error.
func HandleLogin(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input LoginInput
		if customErr := req.BindJSON(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		u, err := deps.Users.GetByEmail(r.Context(), input.Email)
		if err != nil {
			if errors.Is(err, user.ErrNotFound) {
				_ = bcrypt.CompareHashAndPassword(dummyPasswordHash(), []byte(input.Password))
				logx.Ctx(r.Context()).Warn().Msg("login: unknown email")
				resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
				return
			}
			resp.RespondError(w, r, toCustomError(err))
			return
		}

		if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(input.Password)); err != nil {
			logx.Ctx(r.Context()).Warn().Str("user_id", u.ID.String()).Msg("login: password mismatch")
			resp.RespondError(w, r, errs.NewError(errs.ErrInvalidCredentials))
			return
		}

		token, err := issueToken(deps, u)
		if err != nil {
			logx.Error(err, "login: jwt generation failed")
			resp.RespondError(w, r, errs.NewError(errs.ErrUnknown))
			return
		}

		resp.RespondSuccess(w, r, AuthResponse{Token: token, User: u})
	}
}

func issueToken(deps *AppDeps, u *user.User) (string, error) {
	payload := &jwt.Payload{
		ID:    u.ID.String(),
		Email: u.Email,
		Name:  u.Name,
	}
	return jwt.GenerateToken(payload, deps.Config.JWTSecret, jwt.SessionExpiration)
}
