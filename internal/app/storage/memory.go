package storage

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// MaxMemoryObjectSize caps a single PUT against the MemoryStore.
const MaxMemoryObjectSize = 10 << 20

const (
	opPut = "put"
	opGet = "get"
)

type memoryObject struct {
	contentType string
	data        []byte
}

// MemoryStore is an in-process object store that signs its own URLs with HMAC-SHA256.
// It enforces the same contract as S3 presigned URLs: expiry, key binding, content type
// binding for uploads, and single use of each upload URL.
//
// MemoryStore is an http.Handler and must be mounted so that the request path, after any
// prefix stripping, is "/" followed by the object key.
type MemoryStore struct {
	baseURL string
	secret  []byte
	now     func() time.Time

	mu      sync.RWMutex
	objects map[string]memoryObject
	// used holds consumed upload signatures until they expire.
	used map[string]time.Time
}

// NewMemoryStore returns an empty store that signs URLs under baseURL.
// A nil clock defaults to time.Now.
func NewMemoryStore(baseURL string, secret []byte, now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		secret:  secret,
		now:     now,
		objects: make(map[string]memoryObject),
		used:    make(map[string]time.Time),
	}
}

// PresignUpload implements Presigner.
func (m *MemoryStore) PresignUpload(ctx context.Context, key string, mimeType string, duration time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" {
		return "", errors.New("empty object key")
	}
	return m.signedURL(opPut, key, mimeType, m.now().Add(duration)), nil
}

// PresignDownload implements Presigner.
func (m *MemoryStore) PresignDownload(ctx context.Context, key string, duration time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if key == "" {
		return "", errors.New("empty object key")
	}
	return m.signedURL(opGet, key, "", m.now().Add(duration)), nil
}

// Upload stores body at key without a signature check.
func (m *MemoryStore) Upload(ctx context.Context, key string, contentType string, body io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := io.ReadAll(io.LimitReader(body, MaxMemoryObjectSize+1))
	if err != nil {
		return fmt.Errorf("failed to read object body: %w", err)
	}
	if len(data) > MaxMemoryObjectSize {
		return fmt.Errorf("object %s exceeds %d bytes", key, MaxMemoryObjectSize)
	}
	m.put(key, contentType, data)
	return nil
}

// Object returns a stored object, mainly for tests and diagnostics.
func (m *MemoryStore) Object(key string) (contentType string, data []byte, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	obj, ok := m.objects[key]
	if !ok {
		return "", nil, false
	}
	return obj.contentType, bytes.Clone(obj.data), true
}

// Len returns the number of stored objects.
func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.objects)
}

// ServeHTTP accepts signed PUTs and serves signed GETs.
func (m *MemoryStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	key := strings.TrimPrefix(r.URL.Path, "/")
	if key == "" {
		http.Error(w, "missing object key", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodPut:
		m.servePut(w, r, key)
	case http.MethodGet, http.MethodHead:
		m.serveGet(w, r, key)
	default:
		w.Header().Set("Allow", "GET, HEAD, PUT")
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (m *MemoryStore) servePut(w http.ResponseWriter, r *http.Request, key string) {
	q := r.URL.Query()
	contentType := r.Header.Get("Content-Type")

	exp, ok := m.verify(q, opPut, key, contentType)
	if !ok {
		http.Error(w, "signature does not match or has expired", http.StatusForbidden)
		return
	}

	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxMemoryObjectSize))
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			http.Error(w, "object too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "failed to read body", http.StatusBadRequest)
		return
	}

	sig := q.Get("sig")

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	for s, until := range m.used {
		if now.After(until) {
			delete(m.used, s)
		}
	}
	if _, seen := m.used[sig]; seen {
		http.Error(w, "upload URL already used", http.StatusForbidden)
		return
	}
	m.used[sig] = exp
	m.objects[key] = memoryObject{contentType: contentType, data: data}

	w.WriteHeader(http.StatusOK)
}

func (m *MemoryStore) serveGet(w http.ResponseWriter, r *http.Request, key string) {
	if _, ok := m.verify(r.URL.Query(), opGet, key, ""); !ok {
		http.Error(w, "signature does not match or has expired", http.StatusForbidden)
		return
	}

	m.mu.RLock()
	obj, ok := m.objects[key]
	m.mu.RUnlock()
	if !ok {
		http.Error(w, "no such key", http.StatusNotFound)
		return
	}

	if obj.contentType != "" {
		w.Header().Set("Content-Type", obj.contentType)
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(obj.data)))
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodGet {
		_, _ = w.Write(obj.data)
	}
}

func (m *MemoryStore) put(key, contentType string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{contentType: contentType, data: data}
}

func (m *MemoryStore) signedURL(op, key, contentType string, exp time.Time) string {
	q := url.Values{}
	q.Set("op", op)
	q.Set("exp", strconv.FormatInt(exp.Unix(), 10))
	q.Set("sig", m.sign(op, key, contentType, exp.Unix()))
	return m.baseURL + "/" + escapeKey(key) + "?" + q.Encode()
}

// verify checks the signature and expiry carried in q and returns the expiry time.
func (m *MemoryStore) verify(q url.Values, op, key, contentType string) (time.Time, bool) {
	if q.Get("op") != op {
		return time.Time{}, false
	}
	expUnix, err := strconv.ParseInt(q.Get("exp"), 10, 64)
	if err != nil {
		return time.Time{}, false
	}
	exp := time.Unix(expUnix, 0)
	if m.now().After(exp) {
		return time.Time{}, false
	}

	got, err := hex.DecodeString(q.Get("sig"))
	if err != nil {
		return time.Time{}, false
	}
	want, _ := hex.DecodeString(m.sign(op, key, contentType, expUnix))
	if !hmac.Equal(got, want) {
		return time.Time{}, false
	}
	return exp, true
}

func (m *MemoryStore) sign(op, key, contentType string, exp int64) string {
	mac := hmac.New(sha256.New, m.secret)
	fmt.Fprintf(mac, "%s\n%s\n%s\n%d", op, key, contentType, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

// escapeKey path-escapes each segment of key, keeping the slashes.
func escapeKey(key string) string {
	parts := strings.Split(key, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
