package jwt

import "github.com/golang-jwt/jwt"

// Payload is the JWT claim set of a SixMarket session.
// The writer resolves the seller from Email, mirroring a session lookup by email.
type Payload struct {
	// StandardClaims carries expiry, issued-at and issuer.
	jwt.StandardClaims `json:"standard_claims"`

	// ID is the user's UUID.
	ID string `json:"id"`

	// Email is the account email the session was issued for.
	Email string `json:"email"`

	// Name is the display name at the time of issuance.
	Name string `json:"name,omitempty"`
}
