package listing

import (
	"context"
	"errors"
	"fmt"

	"sixmarket/internal/app/db"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists listings.
type Repository interface {
	// Create writes l and its tag links in one transaction and fills the timestamps.
	// References to missing users, categories or tags fail with ErrValidation.
	Create(ctx context.Context, l *Listing) error

	// Get loads one listing with owner, category and tags.
	Get(ctx context.Context, id uuid.UUID) (*Record, error)

	// Recent loads up to limit listings, newest first.
	Recent(ctx context.Context, limit int) ([]Record, error)
}

// PgRepository implements Repository on a pgx pool.
type PgRepository struct {
	pool *pgxpool.Pool
}

// NewRepository returns a PostgreSQL-backed Repository.
func NewRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// Create implements Repository.
func (r *PgRepository) Create(ctx context.Context, l *Listing) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin listing tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if l.Images == nil {
		l.Images = []string{}
	}

	err = tx.QueryRow(ctx,
		`INSERT INTO listings
		   (id, user_id, category_id, name, description, condition, price, location, can_deliver, images)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING created_at, updated_at`,
		l.ID, l.UserID, l.CategoryID, l.Name, l.Description, string(l.Condition),
		l.Price, l.Location, l.CanDeliver, l.Images,
	).Scan(&l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return translateWriteError("insert listing", err)
	}

	if len(l.TagIDs) > 0 {
		tagIDs := make([]string, len(l.TagIDs))
		for i, id := range l.TagIDs {
			tagIDs[i] = id.String()
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO listing_tags (listing_id, tag_id)
			 SELECT $1, unnest($2::uuid[])
			 ON CONFLICT DO NOTHING`,
			l.ID, tagIDs,
		)
		if err != nil {
			return translateWriteError("link listing tags", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit listing tx: %w", err)
	}
	return nil
}

func translateWriteError(op string, err error) error {
	switch {
	case db.IsForeignKeyViolation(err):
		return fmt.Errorf("%w: referenced category, tag or user does not exist", ErrValidation)
	case db.IsCheckViolation(err):
		return fmt.Errorf("%w: %s", ErrValidation, op)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

const recordSelect = `
SELECT l.id, l.user_id, l.category_id, l.name, l.description, l.condition, l.price,
       l.location, l.can_deliver, l.images, l.created_at, l.updated_at,
       u.name, c.name
FROM listings l
JOIN users u ON u.id = l.user_id
JOIN categories c ON c.id = l.category_id`

// Get implements Repository.
func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	rec, err := scanRecord(r.pool.QueryRow(ctx, recordSelect+` WHERE l.id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select listing: %w", err)
	}

	records := []Record{*rec}
	if err := r.loadTags(ctx, records); err != nil {
		return nil, err
	}
	return &records[0], nil
}

// Recent implements Repository.
func (r *PgRepository) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.pool.Query(ctx,
		recordSelect+` ORDER BY l.created_at DESC, l.id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select recent listings: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent listing: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent listings: %w", err)
	}

	if err := r.loadTags(ctx, records); err != nil {
		return nil, err
	}
	return records, nil
}

// loadTags fills Tags and TagIDs of every record with a single query.
func (r *PgRepository) loadTags(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, len(records))
	index := make(map[uuid.UUID]int, len(records))
	for i := range records {
		ids[i] = records[i].ID.String()
		index[records[i].ID] = i
		records[i].Tags = []Tag{}
		records[i].TagIDs = []uuid.UUID{}
	}

	rows, err := r.pool.Query(ctx,
		`SELECT lt.listing_id, t.id, t.name
		 FROM listing_tags lt
		 JOIN tags t ON t.id = lt.tag_id
		 WHERE lt.listing_id = ANY($1::uuid[])
		 ORDER BY t.name`, ids)
	if err != nil {
		return fmt.Errorf("select listing tags: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var listingID uuid.UUID
		var tag Tag
		if err := rows.Scan(&listingID, &tag.ID, &tag.Name); err != nil {
			return fmt.Errorf("scan listing tag: %w", err)
		}
		if i, ok := index[listingID]; ok {
			records[i].Tags = append(records[i].Tags, tag)
			records[i].TagIDs = append(records[i].TagIDs, tag.ID)
		}
	}
	return rows.Err()
}

func scanRecord(row pgx.Row) (*Record, error) {
	var rec Record
	var condition string
	err := row.Scan(
		&rec.ID, &rec.UserID, &rec.CategoryID, &rec.Name, &rec.Description, &condition, &rec.Price,
		&rec.Location, &rec.CanDeliver, &rec.Images, &rec.CreatedAt, &rec.UpdatedAt,
		&rec.User.Name, &rec.Category.Name,
	)
	if err != nil {
		return nil, err
	}
	rec.Condition = Condition(condition)
	rec.User.ID = rec.UserID
	rec.Category.ID = rec.CategoryID
	if rec.Images == nil {
		rec.Images = []string{}
	}
	return &rec, nil
}
