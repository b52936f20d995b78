package asset

import (
	"strconv"
	"time"

	"sixmarket/internal/pkg/randx"
)

const (
	// KeyPrefix is the directory every uploaded object lives under.
	KeyPrefix = "uploads/"

	// KeyTokenLength is the length of the random token in UniqueKeys keys.
	KeyTokenLength = 8
)

// KeyGenerator derives the storage key for an uploaded file. Key never fails.
// File names are kept verbatim: S3 accepts arbitrary UTF-8 keys.
type KeyGenerator interface {
	Key(fileName string) string
}

// LegacyKeys produces uploads/<unix-millis>_<fileName>.
// Two files with the same name in the same millisecond get the same key.
type LegacyKeys struct {
	Now func() time.Time
}

// Key implements KeyGenerator.
func (g LegacyKeys) Key(fileName string) string {
	return KeyPrefix + millis(g.Now) + "_" + fileName
}

// UniqueKeys produces uploads/<unix-millis>_<token>_<fileName> with a random base62 token.
type UniqueKeys struct {
	Now   func() time.Time
	Token func() string
}

// Key implements KeyGenerator.
func (g UniqueKeys) Key(fileName string) string {
	token := g.Token
	if token == nil {
		token = func() string { return randx.MustBase62(KeyTokenLength) }
	}
	return KeyPrefix + millis(g.Now) + "_" + token() + "_" + fileName
}

// NewKeyGenerator returns LegacyKeys for scheme "legacy" and UniqueKeys otherwise.
func NewKeyGenerator(scheme string, now func() time.Time) KeyGenerator {
	if scheme == "legacy" {
		return LegacyKeys{Now: now}
	}
	return UniqueKeys{Now: now}
}

func millis(now func() time.Time) string {
	if now == nil {
		now = time.Now
	}
	return strconv.FormatInt(now().UnixMilli(), 10)
}
