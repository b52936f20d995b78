package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"sixmarket/internal/app/asset"
	"sixmarket/internal/app/listing"
	"sixmarket/internal/app/user"
	"sixmarket/internal/configs"
	"sixmarket/internal/pkg/errs"
)

// UploadIssuer issues upload grants for a batch of files.
type UploadIssuer interface {
	IssueUploads(ctx context.Context, reqs []asset.UploadRequest) ([]asset.Grant, error)
}

// ListingService is the listing writer and reader.
type ListingService interface {
	Create(ctx context.Context, email string, in listing.CreateInput) (*listing.Listing, error)
	Get(ctx context.Context, id string) (*listing.View, error)
	Recent(ctx context.Context) ([]listing.View, error)
}

// AppDeps holds everything the handlers need. ObjectStore is set only for the memory
// storage driver, which serves its own presigned URLs under /_objects.
type AppDeps struct {
	Config      *configs.AppConfig
	Issuer      UploadIssuer
	Listings    ListingService
	Users       user.Repository
	ObjectStore http.Handler
}

// toCustomError maps domain errors to API errors. Unrecognized errors become ErrUnknown
// and are logged by errs.NewError.
func toCustomError(err error) *errs.CustomError {
	switch {
	case errors.Is(err, listing.ErrValidation):
		detail := strings.TrimPrefix(err.Error(), listing.ErrValidation.Error())
		detail = strings.TrimPrefix(detail, ": ")
		if detail == "" {
			return errs.NewError(errs.ErrListingInvalid)
		}
		return errs.NewError(errs.ErrListingInvalid, detail)
	case errors.Is(err, asset.ErrInvalidRequest):
		return errs.NewError(errs.ErrInvalidParams)
	case errors.Is(err, listing.ErrNotFound):
		return errs.NewError(errs.ErrListingNotFound)
	case errors.Is(err, user.ErrNotFound):
		return errs.NewError(errs.ErrUserNotFound)
	case errors.Is(err, user.ErrAlreadyExists):
		return errs.NewError(errs.ErrUserAlreadyExists)
	case errors.Is(err, asset.ErrIssuerUnavailable):
		return errs.NewError(errs.ErrIssuerUnavailable)
	default:
		return errs.NewError(errs.ErrUnknown, err)
	}
}
