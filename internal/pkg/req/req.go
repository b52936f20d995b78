/*
Package req provides helper functions for HTTP request parsing and data binding.

It wraps JSON decoding with content-type, size and trailing-data checks so handlers
receive either a populated struct or a ready-to-send *errs.CustomError.
*/
package req

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"sixmarket/internal/pkg/errs"
)

// MaxJSONBodySize limits JSON request bodies (1 MB). Image bytes never pass through
// the API, only file names and types, so bodies stay small.
const MaxJSONBodySize int64 = 1 << 20

// BindJSON decodes the JSON body of r into dst.
// Unknown fields are rejected so typos in field names surface as 400 instead of silently
// dropping data.
func BindJSON(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	return bindJSON(w, r, dst, true)
}

// BindJSONLenient is BindJSON without the unknown field check. Extra fields sent by
// clients are ignored.
func BindJSONLenient(w http.ResponseWriter, r *http.Request, dst any) *errs.CustomError {
	return bindJSON(w, r, dst, false)
}

func bindJSON(w http.ResponseWriter, r *http.Request, dst any, strict bool) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	r.Body = http.MaxBytesReader(w, r.Body, MaxJSONBodySize)

	decoder := json.NewDecoder(r.Body)
	if strict {
		decoder.DisallowUnknownFields()
	}

	if err := decoder.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errs.NewError(errs.ErrRequestEntityTooLarge)
		}
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
