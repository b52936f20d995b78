package listing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sixmarket/internal/app/user"
	"sixmarket/internal/pkg/logx"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Image failure policies for reads.
const (
	// ImagePolicyFail fails the whole read when any image URL cannot be signed.
	ImagePolicyFail = "fail"

	// ImagePolicyNull replaces an unsignable image with null and logs the failure.
	ImagePolicyNull = "null"
)

// UserFinder resolves the session identity to a user row.
type UserFinder interface {
	GetByEmail(ctx context.Context, email string) (*user.User, error)
}

// URLSigner turns a storage key into a download URL.
type URLSigner interface {
	DownloadURL(ctx context.Context, key string) (string, error)
}

// Service implements the listing writer and reader.
type Service struct {
	repo        Repository
	users       UserFinder
	signer      URLSigner
	imagePolicy string
	logger      zerolog.Logger
}

// NewService wires a Service. An unknown imagePolicy behaves as ImagePolicyFail.
func NewService(repo Repository, users UserFinder, signer URLSigner, imagePolicy string) *Service {
	if imagePolicy != ImagePolicyNull {
		imagePolicy = ImagePolicyFail
	}
	return &Service{
		repo:        repo,
		users:       users,
		signer:      signer,
		imagePolicy: imagePolicy,
		logger:      logx.Component("listing_service"),
	}
}

// Create persists a listing owned by the user with the given email.
// Images are stored exactly as given, in order.
func (s *Service) Create(ctx context.Context, email string, in CreateInput) (*Listing, error) {
	owner, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		return nil, err
	}

	l, err := buildListing(owner.ID, in)
	if err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, l); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("listing_id", l.ID.String()).
		Str("user_id", owner.ID.String()).
		Int("images", len(l.Images)).
		Msg("Listing created")
	return l, nil
}

func buildListing(ownerID uuid.UUID, in CreateInput) (*Listing, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrValidation)
	}

	if strings.TrimSpace(in.CategoryID) == "" {
		return nil, fmt.Errorf("%w: categoryId is required", ErrValidation)
	}
	categoryID, err := uuid.Parse(strings.TrimSpace(in.CategoryID))
	if err != nil {
		return nil, fmt.Errorf("%w: categoryId is not a valid id", ErrValidation)
	}

	condition, err := ParseCondition(in.Condition)
	if err != nil {
		return nil, err
	}

	if in.Price < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrValidation)
	}

	tagIDs := make([]uuid.UUID, 0, len(in.Tags))
	for _, raw := range in.Tags {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("%w: tag %q is not a valid id", ErrValidation, raw)
		}
		tagIDs = append(tagIDs, id)
	}

	images := in.Images
	if images == nil {
		images = []string{}
	}

	canDeliver := false
	if in.CanDeliver != nil {
		canDeliver = *in.CanDeliver
	}

	return &Listing{
		ID:          uuid.New(),
		UserID:      ownerID,
		CategoryID:  categoryID,
		Name:        name,
		Description: in.Description,
		Condition:   condition,
		Price:       int(in.Price),
		Location:    in.Location,
		CanDeliver:  canDeliver,
		Images:      images,
		TagIDs:      tagIDs,
	}, nil
}

// Get returns the listing with id, its images replaced by download URLs.
// An id that is not a UUID cannot match any listing and yields ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*View, error) {
	listingID, err := uuid.Parse(strings.TrimSpace(id))
	if err != nil {
		return nil, ErrNotFound
	}

	rec, err := s.repo.Get(ctx, listingID)
	if err != nil {
		return nil, err
	}

	v, err := s.view(ctx, rec)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Recent returns up to RecentLimit listings, newest first. No listings yields an empty slice.
func (s *Service) Recent(ctx context.Context) ([]View, error) {
	records, err := s.repo.Recent(ctx, RecentLimit)
	if err != nil {
		return nil, err
	}

	views := make([]View, 0, len(records))
	for i := range records {
		v, err := s.view(ctx, &records[i])
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// view copies rec into a View and signs every image key. rec.Images is left untouched.
func (s *Service) view(ctx context.Context, rec *Record) (View, error) {
	images := make([]*string, len(rec.Images))
	for i, key := range rec.Images {
		u, err := s.signer.DownloadURL(ctx, key)
		if err != nil {
			if s.imagePolicy == ImagePolicyNull && !errors.Is(err, context.Canceled) {
				s.logger.Warn().Err(err).
					Str("listing_id", rec.ID.String()).
					Str("key", key).
					Msg("Image URL unavailable, returning null")
				continue
			}
			return View{}, err
		}
		images[i] = &u
	}

	tags := rec.Tags
	if tags == nil {
		tags = []Tag{}
	}

	return View{
		Listing:  rec.Listing,
		Images:   images,
		User:     rec.User,
		Category: rec.Category,
		Tags:     tags,
	}, nil
}
