/*
Package randx generates cryptographically secure random tokens and identifiers.
*/
package randx

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"

	"github.com/google/uuid"
)

const (
	// Base62Chars defines the character set used for Base62 encoding (0-9, A-Z, a-z).
	Base62Chars = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

	// Base62Len is the total number of characters in the Base62 character set (62).
	Base62Len = int64(len(Base62Chars))
)

// Base62 returns a random Base62 string of the given length drawn from crypto/rand.
func Base62(length int) (string, error) {
	result := make([]byte, length)

	for i := range length {
		num, err := rand.Int(rand.Reader, big.NewInt(Base62Len))
		if err != nil {
			return "", fmt.Errorf("failed to generate random base62 token: %w", err)
		}

		result[i] = Base62Chars[num.Int64()]
	}

	return string(result), nil
}

// MustBase62 is Base62 for callers that cannot fail: when crypto/rand is unavailable it
// falls back to the hex digits of a UUIDv4, which still carries enough entropy for keys.
func MustBase62(length int) string {
	token, err := Base62(length)
	if err == nil {
		return token
	}

	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	for len(hex) < length {
		hex += strings.ReplaceAll(uuid.NewString(), "-", "")
	}
	return hex[:length]
}
