/*
Package uploader is the client side of the image upload protocol.

An Orchestrator requests upload grants for a whole batch in one call, then PUTs each file
to its presigned URL strictly in order and collects the storage keys of the files that made
it. Publish then creates a listing with those keys, the way the web form does.
*/
package uploader

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"sixmarket/internal/app/asset"
	"sixmarket/internal/app/listing"
	"sixmarket/internal/pkg/logx"

	"github.com/rs/zerolog"
)

// ErrUploadAborted is returned when no grants could be obtained for the batch.
// Nothing has been uploaded when it is returned.
var ErrUploadAborted = errors.New("upload aborted")

// API is the subset of Client the Orchestrator needs.
type API interface {
	RequestUploadURLs(ctx context.Context, files []asset.UploadRequest) ([]asset.Grant, error)
	Put(ctx context.Context, uploadURL, contentType string, body io.Reader, size int64) error
	CreateListing(ctx context.Context, in listing.CreateInput) (*listing.Listing, error)
}

// Policy decides what happens after a failed PUT.
type Policy int

const (
	// StopOnFirstFailure stops at the first failed file; later files are Skipped.
	StopOnFirstFailure Policy = iota
	// ContinueOnFailure attempts every file.
	ContinueOnFailure
)

// State of a single file in a batch.
type State int

const (
	StatePending State = iota
	StateUploading
	StateSucceeded
	StateFailed
	StateSkipped
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateUploading:
		return "uploading"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	case StateSkipped:
		return "skipped"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// File is one file to upload. Open is called once, right before the PUT.
type File struct {
	Name string
	Type string
	Size int64
	Open func() (io.ReadCloser, error)
}

// FileFromBytes wraps in-memory data.
func FileFromBytes(name, mimeType string, data []byte) File {
	return File{
		Name: name,
		Type: mimeType,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FileFromPath describes a local image. The MIME type comes from the extension, and files
// that are not images or exceed asset.MaxImageSize are rejected.
func FileFromPath(path string) (File, error) {
	info, err := os.Stat(path)
	if err != nil {
		return File{}, err
	}
	if info.IsDir() {
		return File{}, fmt.Errorf("%s is a directory", path)
	}

	name := filepath.Base(path)
	mimeType, ok := asset.MIMEFromFileName(name)
	if !ok {
		return File{}, fmt.Errorf("%s: unsupported image type", name)
	}
	if info.Size() > asset.MaxImageSize {
		return File{}, fmt.Errorf("%s: larger than %d MB", name, asset.MaxImageSizeMB)
	}

	return File{
		Name: name,
		Type: mimeType,
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}, nil
}

// FileResult is the outcome for one file.
type FileResult struct {
	Index int
	Name  string
	Key   string
	State State
	Err   error
}

// Result of a batch. Keys holds the keys of succeeded files in batch order.
type Result struct {
	Files []FileResult
	Keys  []string

	aborted error
}

// Err returns a *PartialUploadError when any file did not upload, nil otherwise.
func (r *Result) Err() error {
	if r == nil {
		return nil
	}

	perr := &PartialUploadError{Total: len(r.Files), Uploaded: len(r.Keys), Cause: r.aborted}
	for _, f := range r.Files {
		if f.State == StateSucceeded {
			continue
		}
		perr.NotUploaded = append(perr.NotUploaded, f)
		if perr.Cause == nil && f.Err != nil {
			perr.Cause = f.Err
		}
	}
	if len(perr.NotUploaded) == 0 {
		return nil
	}
	return perr
}

// PartialUploadError reports a batch where only some files were uploaded.
type PartialUploadError struct {
	Total       int
	Uploaded    int
	NotUploaded []FileResult
	Cause       error
}

func (e *PartialUploadError) Error() string {
	msg := fmt.Sprintf("uploaded %d of %d files", e.Uploaded, e.Total)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *PartialUploadError) Unwrap() error { return e.Cause }

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPolicy sets the failure policy. The default is StopOnFirstFailure.
func WithPolicy(p Policy) Option {
	return func(o *Orchestrator) { o.policy = p }
}

// WithObserver registers a callback invoked on every state change.
func WithObserver(fn func(FileResult)) Option {
	return func(o *Orchestrator) { o.observe = fn }
}

// Orchestrator drives sequential batch uploads.
type Orchestrator struct {
	api     API
	policy  Policy
	observe func(FileResult)
	logger  zerolog.Logger
}

// NewOrchestrator returns an Orchestrator using api.
func NewOrchestrator(api API, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		api:    api,
		policy: StopOnFirstFailure,
		logger: logx.Component("uploader"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Upload requests grants for files and uploads them one by one.
// An empty batch makes no calls. The returned error is non-nil only when the batch was
// aborted before any upload; per-file failures are reported through Result.Err.
func (o *Orchestrator) Upload(ctx context.Context, files []File) (*Result, error) {
	res := &Result{Files: make([]FileResult, len(files)), Keys: []string{}}
	for i, f := range files {
		res.Files[i] = FileResult{Index: i, Name: f.Name, State: StatePending}
	}
	if len(files) == 0 {
		return res, nil
	}

	reqs := make([]asset.UploadRequest, len(files))
	for i, f := range files {
		reqs[i] = asset.UploadRequest{FileName: f.Name, FileType: f.Type}
	}

	grants, err := o.api.RequestUploadURLs(ctx, reqs)
	switch {
	case err != nil:
		err = fmt.Errorf("%w: request upload urls: %w", ErrUploadAborted, err)
	case len(grants) == 0:
		err = fmt.Errorf("%w: issuer returned no grants", ErrUploadAborted)
	case len(grants) != len(files):
		err = fmt.Errorf("%w: issuer returned %d grants for %d files", ErrUploadAborted, len(grants), len(files))
	}
	if err != nil {
		o.logger.Error().Err(err).Int("files", len(files)).Msg("Upload batch aborted")
		o.skipFrom(res, 0)
		res.aborted = err
		return res, err
	}

	for i, f := range files {
		if ctxErr := ctx.Err(); ctxErr != nil {
			o.skipFrom(res, i)
			break
		}

		fr := &res.Files[i]
		fr.Key = grants[i].Key
		o.transition(fr, StateUploading, nil)

		if err := o.put(ctx, f, grants[i].UploadURL); err != nil {
			o.transition(fr, StateFailed, err)
			o.logger.Warn().Err(err).Str("file", f.Name).Msg("File upload failed")
			if o.policy == StopOnFirstFailure {
				o.skipFrom(res, i+1)
				break
			}
			continue
		}

		o.transition(fr, StateSucceeded, nil)
		res.Keys = append(res.Keys, fr.Key)
	}

	o.logger.Info().Int("files", len(files)).Int("uploaded", len(res.Keys)).Msg("Upload batch finished")
	return res, nil
}

// Publish uploads files and then creates the listing with whatever keys were collected,
// even when some or all uploads failed. Inspect the returned Result for upload problems.
func (o *Orchestrator) Publish(ctx context.Context, files []File, in listing.CreateInput) (*listing.Listing, *Result, error) {
	res, err := o.Upload(ctx, files)
	if err != nil && !errors.Is(err, ErrUploadAborted) {
		return nil, res, err
	}

	in.Images = res.Keys
	created, err := o.api.CreateListing(ctx, in)
	if err != nil {
		return nil, res, fmt.Errorf("create listing: %w", err)
	}
	return created, res, nil
}

func (o *Orchestrator) put(ctx context.Context, f File, uploadURL string) error {
	if f.Open == nil {
		return fmt.Errorf("%s: no content", f.Name)
	}
	body, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer body.Close()

	size := f.Size
	if size <= 0 {
		size = -1
	}
	return o.api.Put(ctx, uploadURL, f.Type, body, size)
}

func (o *Orchestrator) skipFrom(res *Result, start int) {
	for i := start; i < len(res.Files); i++ {
		if res.Files[i].State == StatePending {
			o.transition(&res.Files[i], StateSkipped, nil)
		}
	}
}

func (o *Orchestrator) transition(fr *FileResult, to State, err error) {
	fr.State = to
	fr.Err = err
	if o.observe != nil {
		o.observe(*fr)
	}
}

// Names lists the file names of a batch, for log output.
func Names(files []File) string {
	names := make([]string, len(files))
	for i, f := range files {
		names[i] = f.Name
	}
	return strings.Join(names, ", ")
}
