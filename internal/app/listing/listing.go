/*
Package listing stores marketplace listings and serves them to readers.

A listing's images are persisted as object storage keys, written once at creation. Reads
replace every key with a freshly presigned download URL in the response only; the stored
keys are never rewritten.
*/
package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrNotFound is returned when no listing has the requested id.
	ErrNotFound = errors.New("listing not found")

	// ErrValidation wraps every rejected create input.
	ErrValidation = errors.New("invalid listing")
)

// RecentLimit is the number of listings Recent returns.
const RecentLimit = 5

// Condition is the state of the item for sale.
type Condition string

const (
	ConditionNew     Condition = "NEW"
	ConditionLikeNew Condition = "LIKE_NEW"
	ConditionGood    Condition = "GOOD"
	ConditionFair    Condition = "FAIR"
	ConditionPoor    Condition = "POOR"
)

// ParseCondition accepts a condition case-insensitively. Empty means ConditionNew.
func ParseCondition(s string) (Condition, error) {
	c := Condition(strings.ToUpper(strings.TrimSpace(s)))
	switch c {
	case "":
		return ConditionNew, nil
	case ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair, ConditionPoor:
		return c, nil
	}
	return "", fmt.Errorf("%w: unknown condition %q", ErrValidation, s)
}

// Listing is the persisted record. Images holds storage keys in upload order.
type Listing struct {
	ID          uuid.UUID   `json:"id"`
	UserID      uuid.UUID   `json:"userId"`
	CategoryID  uuid.UUID   `json:"categoryId"`
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Condition   Condition   `json:"condition"`
	Price       int         `json:"price"`
	Location    string      `json:"location"`
	CanDeliver  bool        `json:"canDeliver"`
	Images      []string    `json:"images"`
	TagIDs      []uuid.UUID `json:"tagIds"`
	CreatedAt   time.Time   `json:"createdAt"`
	UpdatedAt   time.Time   `json:"updatedAt"`
}

// Owner is the public part of the listing's user.
type Owner struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Category of a listing.
type Category struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Tag attached to a listing.
type Tag struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// Record is a listing joined with its owner, category and tags, as loaded from storage.
type Record struct {
	Listing
	User     Owner
	Category Category
	Tags     []Tag
}

// View is the read model. Images shadows Listing.Images with download URLs; an entry is
// nil when its URL could not be signed under the "null" image policy.
type View struct {
	Listing
	Images   []*string `json:"images"`
	User     Owner     `json:"user"`
	Category Category  `json:"category"`
	Tags     []Tag     `json:"tags"`
}

// CreateInput is the body of a create request.
type CreateInput struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Condition   string   `json:"condition"`
	Price       Price    `json:"price"`
	Location    string   `json:"location"`
	CanDeliver  *bool    `json:"canDeliver"`
	Images      []string `json:"images"`
	CategoryID  string   `json:"categoryId"`
	Tags        []string `json:"tags"`
}

// Price accepts a JSON number or a numeric string. Fractions are truncated toward zero.
type Price int

// UnmarshalJSON implements json.Unmarshaler.
func (p *Price) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*p = 0
		return nil
	}

	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		raw = strings.TrimSpace(s)
		if raw == "" {
			*p = 0
			return nil
		}
	}

	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || math.Abs(f) > math.MaxInt32 {
		return fmt.Errorf("price %q is not a number", raw)
	}
	*p = Price(math.Trunc(f))
	return nil
}
