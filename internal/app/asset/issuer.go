/*
Package asset issues presigned grants for the direct-to-bucket image protocol.

Clients ask for upload grants in one batch, PUT the bytes straight to the object store, and
later reference the returned keys in a listing. Readers turn stored keys back into short-lived
download URLs. The API server never handles image bytes.
*/
package asset

import (
	"context"
	"errors"
	"fmt"
	"time"

	"sixmarket/internal/app/storage"
	"sixmarket/internal/pkg/logx"
	"sixmarket/internal/pkg/metrics"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
)

var (
	// ErrInvalidRequest is returned when the upload batch is absent.
	ErrInvalidRequest = errors.New("files list is required")

	// ErrIssuerUnavailable wraps every signing failure of the object store client.
	ErrIssuerUnavailable = errors.New("presigned url issuer unavailable")
)

// Default validity windows.
const (
	DefaultUploadTTL   = 60 * time.Second
	DefaultDownloadTTL = 300 * time.Second
)

// UploadRequest describes one file the client intends to upload.
type UploadRequest struct {
	FileName string `json:"fileName"`
	FileType string `json:"fileType"`
}

// Grant pairs a presigned upload URL with the key the object will live at.
type Grant struct {
	UploadURL string `json:"uploadUrl"`
	Key       string `json:"key"`
}

// IssuerConfig configures validity windows and the optional download URL cache.
// A zero CacheTTL disables the cache.
type IssuerConfig struct {
	UploadTTL   time.Duration
	DownloadTTL time.Duration
	CacheTTL    time.Duration
	CacheSize   int
}

// Issuer presigns upload and download URLs through an injected storage.Presigner.
type Issuer struct {
	presigner storage.Presigner
	keys      KeyGenerator
	cfg       IssuerConfig
	cache     *expirable.LRU[string, string]
	logger    zerolog.Logger
}

// NewIssuer builds an Issuer. Zero TTLs fall back to the defaults.
func NewIssuer(presigner storage.Presigner, keys KeyGenerator, cfg IssuerConfig) *Issuer {
	if cfg.UploadTTL <= 0 {
		cfg.UploadTTL = DefaultUploadTTL
	}
	if cfg.DownloadTTL <= 0 {
		cfg.DownloadTTL = DefaultDownloadTTL
	}
	if keys == nil {
		keys = UniqueKeys{}
	}

	iss := &Issuer{
		presigner: presigner,
		keys:      keys,
		cfg:       cfg,
		logger:    logx.Component("asset_issuer"),
	}

	if cfg.CacheTTL > 0 && cfg.CacheTTL < cfg.DownloadTTL {
		size := cfg.CacheSize
		if size <= 0 {
			size = 4096
		}
		iss.cache = expirable.NewLRU[string, string](size, nil, cfg.CacheTTL)
	}

	return iss
}

// IssueUploads returns one grant per request, in request order.
// A nil batch is rejected; an empty batch yields an empty result.
// Entries are not validated individually: a blank name or type still gets a grant.
func (i *Issuer) IssueUploads(ctx context.Context, reqs []UploadRequest) ([]Grant, error) {
	if reqs == nil {
		return nil, ErrInvalidRequest
	}

	grants := make([]Grant, 0, len(reqs))
	for _, r := range reqs {
		key := i.keys.Key(r.FileName)

		u, err := i.presigner.PresignUpload(ctx, key, r.FileType, i.cfg.UploadTTL)
		if err != nil {
			metrics.PresignFailuresTotal.WithLabelValues("upload").Inc()
			i.logger.Error().Err(err).Str("key", key).Msg("Upload presign failed")
			return nil, fmt.Errorf("%w: presign upload %q: %w", ErrIssuerUnavailable, key, err)
		}

		metrics.PresignedURLsTotal.WithLabelValues("upload").Inc()
		grants = append(grants, Grant{UploadURL: u, Key: key})
	}

	i.logger.Debug().Int("count", len(grants)).Msg("Upload grants issued")
	return grants, nil
}

// DownloadURL presigns a GET for key. With the cache enabled, a URL signed less than
// CacheTTL ago is reused, so it always has at least DownloadTTL-CacheTTL of validity left.
func (i *Issuer) DownloadURL(ctx context.Context, key string) (string, error) {
	if i.cache != nil {
		if u, ok := i.cache.Get(key); ok {
			metrics.DownloadURLCacheTotal.WithLabelValues("hit").Inc()
			return u, nil
		}
		metrics.DownloadURLCacheTotal.WithLabelValues("miss").Inc()
	}

	u, err := i.presigner.PresignDownload(ctx, key, i.cfg.DownloadTTL)
	if err != nil {
		metrics.PresignFailuresTotal.WithLabelValues("download").Inc()
		i.logger.Error().Err(err).Str("key", key).Msg("Download presign failed")
		return "", fmt.Errorf("%w: presign download %q: %w", ErrIssuerUnavailable, key, err)
	}

	metrics.PresignedURLsTotal.WithLabelValues("download").Inc()
	if i.cache != nil {
		i.cache.Add(key, u)
	}
	return u, nil
}
