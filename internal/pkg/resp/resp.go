/*
Package resp provides helper functions for constructing and sending HTTP JSON responses.

Successful responses carry the resource itself as the JSON body, so API clients decode
listings and URL grants directly. Errors share a single body shape with a business code
and a client-facing message.
*/
package resp

import (
	"encoding/json"
	"net/http"

	"sixmarket/internal/pkg/errs"
	"sixmarket/internal/pkg/logx"
)

// ErrorResponse is the JSON body returned for every failed request.
type ErrorResponse struct {
	// Code is the business error code, see the errs package.
	Code int `json:"code"`

	// Error is the client-facing error message.
	Error string `json:"error"`
}

// RespondJSON sets the Content-Type and sends the JSON payload with the given status.
func RespondJSON(w http.ResponseWriter, r *http.Request, httpStatus int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	response, err := json.Marshal(payload)
	if err != nil {
		logx.Error(
			err,
			"Error encoding JSON response",
			"http_status", httpStatus,
		)

		http.Error(w, "Error encoding JSON response", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(httpStatus)
	w.Write(response)
}

// RespondSuccess sends data with HTTP 200 OK.
func RespondSuccess(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusOK, data)
}

// RespondCreated sends data with HTTP 201 Created.
func RespondCreated(w http.ResponseWriter, r *http.Request, data any) {
	RespondJSON(w, r, http.StatusCreated, data)
}

// RespondError sends an HTTP response containing custom error information.
func RespondError(w http.ResponseWriter, r *http.Request, customErr *errs.CustomError) {
	if customErr == nil {
		customErr = errs.NewError(errs.ErrUnknown)
	}

	RespondJSON(w, r, customErr.Status, ErrorResponse{
		Code:  customErr.Code,
		Error: customErr.Message,
	})
}
