package handler

import (
	"net/http"

	"sixmarket/internal/app/asset"
	"sixmarket/internal/pkg/logx"
	"sixmarket/internal/pkg/req"
	"sixmarket/internal/pkg/resp"
)

// PresignUploadsInput is the body of a grant request.
type PresignUploadsInput struct {
	Files []asset.UploadRequest `json:"files"`
}

// HandlePresignUploads issues one upload grant per requested file, in request order.
// No session is required; the route is rate limited per IP instead. Entries are decoded
// leniently: only a missing or non-list files field is rejected.
func HandlePresignUploads(deps *AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var input PresignUploadsInput
		if customErr := req.BindJSONLenient(w, r, &input); customErr != nil {
			resp.RespondError(w, r, customErr)
			return
		}

		grants, err := deps.Issuer.IssueUploads(r.Context(), input.Files)
		if err != nil {
			resp.RespondError(w, r, toCustomError(err))
			return
		}

		logx.Ctx(r.Context()).Debug().Int("files", len(grants)).Msg("Presigned upload URLs issued")
		resp.RespondSuccess(w, r, map[string]any{
			"urls": grants,
		})
	}
}
