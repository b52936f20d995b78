package listing

import (
	"context"
	"testing"
	"time"

	"sixmarket/internal/app/db/dbtest"
	"sixmarket/internal/app/user"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgRepository(t *testing.T) {
	pool := dbtest.NewPool(t)
	ctx := context.Background()

	owner := &user.User{Email: "seller@example.com", Name: "Seller", PasswordHash: "x"}
	require.NoError(t, user.NewRepository(pool).Create(ctx, owner))

	repo := NewRepository(pool)

	recent, err := repo.Recent(ctx, RecentLimit)
	require.NoError(t, err)
	assert.Empty(t, recent)

	l := &Listing{
		ID:         uuid.New(),
		UserID:     owner.ID,
		CategoryID: uuid.MustParse(dbtest.CategoryElectronics),
		Name:       "Camera",
		Condition:  ConditionGood,
		Price:      150,
		Images:     []string{"uploads/1_b.png", "uploads/0_a.jpg"},
		TagIDs:     []uuid.UUID{uuid.MustParse(dbtest.TagVintage), uuid.MustParse(dbtest.TagRare)},
	}
	require.NoError(t, repo.Create(ctx, l))
	assert.False(t, l.CreatedAt.IsZero())

	got, err := repo.Get(ctx, l.ID)
	require.NoError(t, err)
	assert.Equal(t, l.Images, got.Images, "key order is preserved")
	assert.Equal(t, ConditionGood, got.Condition)
	assert.Equal(t, "Seller", got.User.Name)
	assert.Equal(t, "Electronics", got.Category.Name)
	assert.Len(t, got.Tags, 2)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	t.Run("unknown tag rolls back", func(t *testing.T) {
		bad := &Listing{
			ID:         uuid.New(),
			UserID:     owner.ID,
			CategoryID: uuid.MustParse(dbtest.CategoryBooks),
			Name:       "Book",
			Condition:  ConditionNew,
			TagIDs:     []uuid.UUID{uuid.New()},
		}
		err := repo.Create(ctx, bad)
		assert.ErrorIs(t, err, ErrValidation)

		_, err = repo.Get(ctx, bad.ID)
		assert.ErrorIs(t, err, ErrNotFound, "listing row must not survive a failed tag link")
	})

	t.Run("unknown category", func(t *testing.T) {
		err := repo.Create(ctx, &Listing{
			ID: uuid.New(), UserID: owner.ID, CategoryID: uuid.New(), Name: "X", Condition: ConditionNew,
		})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("recent is newest first and limited", func(t *testing.T) {
		for i := 0; i < 6; i++ {
			time.Sleep(2 * time.Millisecond)
			require.NoError(t, repo.Create(ctx, &Listing{
				ID: uuid.New(), UserID: owner.ID, CategoryID: uuid.MustParse(dbtest.CategoryBooks),
				Name: "Book", Condition: ConditionNew,
			}))
		}

		recent, err := repo.Recent(ctx, RecentLimit)
		require.NoError(t, err)
		require.Len(t, recent, RecentLimit)
		for i := 1; i < len(recent); i++ {
			assert.False(t, recent[i].CreatedAt.After(recent[i-1].CreatedAt))
		}
		assert.NotNil(t, recent[0].Images)
	})
}
