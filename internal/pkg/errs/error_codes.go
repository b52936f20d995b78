/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrUnsupportedMediaType indicates that the request header Content-Type is not supported.
	ErrUnsupportedMediaType = 1002

	// ErrInvalidJSONFormat indicates that the request body JSON format is incorrect (e.g., syntax error).
	ErrInvalidJSONFormat = 1003

	// ErrExtraContentInBody indicates that the request body contained extra content after valid JSON data.
	ErrExtraContentInBody = 1004

	// ErrRequestEntityTooLarge indicates that the request body size exceeded the server limit.
	ErrRequestEntityTooLarge = 1006

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1007

	// ErrMethodNotAllowed indicates that the route exists but does not accept the request method.
	ErrMethodNotAllowed = 1008

	// ErrRouteNotFound indicates that no route matches the request path.
	ErrRouteNotFound = 1009
)

// 2xxx: Listing Business Logic Errors
const (
	// ErrListingInvalid indicates that required listing fields are missing or malformed.
	ErrListingInvalid = 2101

	// ErrListingNotFound indicates that no listing matches the requested identifier.
	ErrListingNotFound = 2102
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrUnauthorized indicates that the request carries no valid session.
	ErrUnauthorized = 3101

	// ErrUserNotFound indicates that the authenticated identity has no user record.
	ErrUserNotFound = 3102

	// ErrUserAlreadyExists indicates that the email is already registered.
	ErrUserAlreadyExists = 3103

	// ErrInvalidCredentials indicates that the email and password do not match.
	ErrInvalidCredentials = 3104
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrIssuerUnavailable indicates that presigned URLs could not be generated.
	ErrIssuerUnavailable = 5001
)
