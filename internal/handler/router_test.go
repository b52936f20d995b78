package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"sixmarket/internal/app/asset"
	"sixmarket/internal/app/listing"
	"sixmarket/internal/app/storage"
	"sixmarket/internal/app/user"
	"sixmarket/internal/configs"
	"sixmarket/internal/pkg/auth/jwt"
	"sixmarket/internal/pkg/errs"
	"sixmarket/internal/pkg/resp"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testCategory = uuid.MustParse("00000000-0000-4000-8000-000000000001")

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*user.User
}

func (f *fakeUsers) Create(_ context.Context, u *user.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	u.Email = user.NormalizeEmail(u.Email)
	if _, ok := f.byEmail[u.Email]; ok {
		return user.ErrAlreadyExists
	}
	u.ID = uuid.New()
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	f.byEmail[u.Email] = u
	return nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u, ok := f.byEmail[user.NormalizeEmail(email)]; ok {
		return u, nil
	}
	return nil, user.ErrNotFound
}

func (f *fakeUsers) GetByID(_ context.Context, id uuid.UUID) (*user.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, user.ErrNotFound
}

type fakeListings struct {
	mu      sync.Mutex
	records []listing.Record
}

func (f *fakeListings) Create(_ context.Context, l *listing.Listing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l.CategoryID != testCategory {
		return listing.ErrValidation
	}
	l.CreatedAt = time.Now().Add(time.Duration(len(f.records)) * time.Second)
	l.UpdatedAt = l.CreatedAt
	f.records = append(f.records, listing.Record{
		Listing:  *l,
		User:     listing.Owner{ID: l.UserID, Name: "Seller"},
		Category: listing.Category{ID: l.CategoryID, Name: "Electronics"},
	})
	return nil
}

func (f *fakeListings) Get(_ context.Context, id uuid.UUID) (*listing.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.records {
		if f.records[i].ID == id {
			rec := f.records[i]
			return &rec, nil
		}
	}
	return nil, listing.ErrNotFound
}

func (f *fakeListings) Recent(_ context.Context, limit int) ([]listing.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]listing.Record(nil), f.records...)
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type testEnv struct {
	h     http.Handler
	cfg   *configs.AppConfig
	store *storage.MemoryStore
	users *fakeUsers
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cfg := &configs.AppConfig{
		Environment:  "development",
		JWTSecret:    "test-secret",
		PresignRate:  100,
		PresignBurst: 100,
	}

	store := storage.NewMemoryStore("http://api.test/_objects", []byte("object-secret"), nil)
	issuer := asset.NewIssuer(store, asset.LegacyKeys{Now: func() time.Time { return time.UnixMilli(1700000000000) }}, asset.IssuerConfig{})
	users := &fakeUsers{byEmail: map[string]*user.User{}}

	deps := &AppDeps{
		Config:      cfg,
		Issuer:      issuer,
		Listings:    listing.NewService(&fakeListings{}, users, issuer, listing.ImagePolicyFail),
		Users:       users,
		ObjectStore: store,
	}

	return &testEnv{h: Router(ctx, deps), cfg: cfg, store: store, users: users}
}

func (e *testEnv) do(t *testing.T, method, target string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, target, rdr)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		r.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, r)
	return rec
}

func (e *testEnv) token(t *testing.T, email string) string {
	t.Helper()
	u := &user.User{Email: email, Name: "Seller"}
	require.NoError(t, e.users.Create(context.Background(), u))
	tok, err := jwt.GenerateToken(&jwt.Payload{ID: u.ID.String(), Email: u.Email, Name: u.Name}, e.cfg.JWTSecret, time.Hour)
	require.NoError(t, err)
	return tok
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) int {
	t.Helper()
	var body resp.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Code
}

type grantsBody struct {
	URLs []asset.Grant `json:"urls"`
}

func TestPresign(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/aws/getPresignedUrl", map[string]any{
		"files": []asset.UploadRequest{
			{FileName: "a.jpg", FileType: "image/jpeg"},
			{FileName: "b.png", FileType: "image/png"},
		},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body grantsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.URLs, 2)
	assert.Equal(t, "uploads/1700000000000_a.jpg", body.URLs[0].Key)
	assert.Equal(t, "uploads/1700000000000_b.png", body.URLs[1].Key)
	assert.True(t, strings.HasPrefix(body.URLs[0].UploadURL, "http://api.test/_objects/uploads/"))

	rec = env.do(t, http.MethodPost, "/api/aws/getPresignedUrl", map[string]any{"files": []any{}}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"urls":[]}`, rec.Body.String())
}

func TestPresign_EntriesNotValidatedIndividually(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/aws/getPresignedUrl", map[string]any{
		"files": []map[string]any{
			{"fileName": "a.jpg", "fileType": "image/jpeg", "size": 3},
			{"fileType": "image/png"},
			{},
		},
		"listingDraft": "abc",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var body grantsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.URLs, 3)
	assert.Equal(t, "uploads/1700000000000_a.jpg", body.URLs[0].Key)
}

func TestPresign_Errors(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name     string
		method   string
		body     any
		status   int
		code     int
		rawCType string
	}{
		{"missing files", http.MethodPost, map[string]any{}, http.StatusBadRequest, errs.ErrInvalidParams, ""},
		{"null files", http.MethodPost, map[string]any{"files": nil}, http.StatusBadRequest, errs.ErrInvalidParams, ""},
		{"files not a list", http.MethodPost, map[string]any{"files": "a.jpg"}, http.StatusBadRequest, errs.ErrInvalidJSONFormat, ""},
		{"wrong method", http.MethodGet, nil, http.StatusMethodNotAllowed, errs.ErrMethodNotAllowed, ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.method, "/api/aws/getPresignedUrl", tc.body, "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}

	rec := env.do(t, http.MethodPut, "/api/aws/getPresignedUrl", nil, "")
	assert.Equal(t, "POST", rec.Header().Get("Allow"))

	r := httptest.NewRequest(http.MethodPost, "/api/aws/getPresignedUrl", strings.NewReader("files=a"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	env.h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestPresign_RateLimited(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.PresignBurst = 1
	env.cfg.PresignRate = 0.001

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	h := Router(ctx, &AppDeps{
		Config: env.cfg,
		Issuer: asset.NewIssuer(env.store, asset.LegacyKeys{}, asset.IssuerConfig{}),
	})

	body := map[string]any{"files": []asset.UploadRequest{{FileName: "a.jpg", FileType: "image/jpeg"}}}
	first := (&testEnv{h: h}).do(t, http.MethodPost, "/api/aws/getPresignedUrl", body, "")
	second := (&testEnv{h: h}).do(t, http.MethodPost, "/api/aws/getPresignedUrl", body, "")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, errs.ErrRateLimitExceeded, errorCode(t, second))
}

func TestListingFlow_UploadCreateRead(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "seller@example.com")

	rec := env.do(t, http.MethodPost, "/api/aws/getPresignedUrl", map[string]any{
		"files": []asset.UploadRequest{
			{FileName: "a.jpg", FileType: "image/jpeg"},
			{FileName: "b.png", FileType: "image/png"},
		},
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var grants grantsBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &grants))

	contents := []string{"jpeg-bytes", "png-bytes"}
	types := []string{"image/jpeg", "image/png"}
	keys := make([]string, 0, len(grants.URLs))
	for i, g := range grants.URLs {
		r := httptest.NewRequest(http.MethodPut, g.UploadURL, strings.NewReader(contents[i]))
		r.Header.Set("Content-Type", types[i])
		w := httptest.NewRecorder()
		env.h.ServeHTTP(w, r)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		keys = append(keys, g.Key)
	}

	rec = env.do(t, http.MethodPost, "/api/listings/createNewListing", map[string]any{
		"name":       "Camera",
		"price":      "43",
		"categoryId": testCategory.String(),
		"images":     keys,
	}, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created listing.Listing
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, keys, created.Images, "create returns the stored keys")
	assert.Equal(t, 43, created.Price)
	assert.Equal(t, listing.ConditionNew, created.Condition)
	assert.False(t, created.CanDeliver)

	rec = env.do(t, http.MethodGet, "/api/listings/"+created.ID.String(), nil, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var view struct {
		ID       uuid.UUID         `json:"id"`
		Images   []string          `json:"images"`
		Category listing.Category  `json:"category"`
		User     listing.Owner     `json:"user"`
		Tags     []json.RawMessage `json:"tags"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	require.Len(t, view.Images, 2)
	assert.Equal(t, "Electronics", view.Category.Name)
	assert.NotNil(t, view.Tags)

	for i, u := range view.Images {
		assert.Contains(t, u, "/_objects/"+keys[i]+"?")
		w := httptest.NewRecorder()
		env.h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, u, nil))
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, contents[i], w.Body.String())
	}

	rec = env.do(t, http.MethodGet, "/api/listings/recent", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var recent []json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recent))
	assert.Len(t, recent, 1)
}

func TestCreateListing_Errors(t *testing.T) {
	env := newTestEnv(t)
	token := env.token(t, "seller@example.com")

	orphan, err := jwt.GenerateToken(&jwt.Payload{ID: uuid.NewString(), Email: "ghost@example.com"}, env.cfg.JWTSecret, time.Hour)
	require.NoError(t, err)

	valid := map[string]any{"name": "Camera", "categoryId": testCategory.String()}

	tests := []struct {
		name   string
		method string
		body   any
		token  string
		status int
		code   int
	}{
		{"no session", http.MethodPost, valid, "", http.StatusUnauthorized, errs.ErrUnauthorized},
		{"bad token", http.MethodPost, valid, "not-a-jwt", http.StatusUnauthorized, errs.ErrUnauthorized},
		{"unknown user", http.MethodPost, valid, orphan, http.StatusNotFound, errs.ErrUserNotFound},
		{"missing name", http.MethodPost, map[string]any{"categoryId": testCategory.String()}, token, http.StatusBadRequest, errs.ErrListingInvalid},
		{"unknown category", http.MethodPost, map[string]any{"name": "x", "categoryId": uuid.NewString()}, token, http.StatusBadRequest, errs.ErrListingInvalid},
		{"bad condition", http.MethodPost, map[string]any{"name": "x", "categoryId": testCategory.String(), "condition": "MINT"}, token, http.StatusBadRequest, errs.ErrListingInvalid},
		{"unknown field", http.MethodPost, map[string]any{"name": "x", "color": "red"}, token, http.StatusBadRequest, errs.ErrInvalidJSONFormat},
		{"wrong method", http.MethodGet, nil, token, http.StatusMethodNotAllowed, errs.ErrMethodNotAllowed},
		{"wrong method without session", http.MethodGet, nil, "", http.StatusUnauthorized, errs.ErrUnauthorized},
		{"put without session", http.MethodPut, valid, "", http.StatusUnauthorized, errs.ErrUnauthorized},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := env.do(t, tc.method, "/api/listings/createNewListing", tc.body, tc.token)
			assert.Equal(t, tc.status, rec.Code, rec.Body.String())
			assert.Equal(t, tc.code, errorCode(t, rec))
		})
	}

	rec := env.do(t, http.MethodPost, "/api/listings/createNewListing", map[string]any{"categoryId": testCategory.String()}, token)
	var body resp.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "Invalid listing: name is required", body.Error)
}

func TestGetListing_Errors(t *testing.T) {
	env := newTestEnv(t)

	for _, id := range []string{"not-a-uuid", "abc"} {
		rec := env.do(t, http.MethodGet, "/api/listings/"+id, nil, "")
		assert.Equal(t, http.StatusNotFound, rec.Code, id)
		assert.Equal(t, errs.ErrListingNotFound, errorCode(t, rec), id)
	}

	rec := env.do(t, http.MethodGet, "/api/listings/"+uuid.NewString(), nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.ErrListingNotFound, errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/listings/"+uuid.NewString(), map[string]any{}, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestRecentListings(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/listings/recent", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = env.do(t, http.MethodHead, "/api/listings/recent", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/api/listings/recent", map[string]any{}, "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "GET, HEAD", rec.Header().Get("Allow"))
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"email": "Buyer@Example.com", "password": "secret123", "name": "Buyer",
	}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var reg struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.NotEmpty(t, reg.Token)
	assert.Equal(t, "buyer@example.com", reg.User["email"])
	assert.NotContains(t, reg.User, "PasswordHash")

	rec = env.do(t, http.MethodPost, "/api/auth/register", map[string]any{
		"email": "buyer@example.com", "password": "secret123", "name": "Again",
	}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, errs.ErrUserAlreadyExists, errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "buyer@example.com", "password": "wrong-password",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errs.ErrInvalidCredentials, errorCode(t, rec))

	rec = env.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "buyer@example.com", "password": "secret123",
	}, "")
	require.Equal(t, http.StatusOK, rec.Code)

	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))

	rec = env.do(t, http.MethodGet, "/api/user/profile", nil, login.Token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "buyer@example.com")
}

func TestRegister_Validation(t *testing.T) {
	env := newTestEnv(t)

	for _, body := range []map[string]any{
		{"email": "not-an-email", "password": "secret123", "name": "A"},
		{"email": "a@example.com", "password": "123", "name": "A"},
		{"email": "a@example.com", "password": "secret123", "name": "  "},
	} {
		rec := env.do(t, http.MethodPost, "/api/auth/register", body, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

func TestMiscRoutes(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = env.do(t, http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "sixmarket_http_requests_total")

	rec = env.do(t, http.MethodGet, "/nope", nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, errs.ErrRouteNotFound, errorCode(t, rec))

	rec = env.do(t, http.MethodGet, "/api/user/profile", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type failingSigner struct{}

func (failingSigner) DownloadURL(context.Context, string) (string, error) {
	return "", fmt.Errorf("%w: signing offline", asset.ErrIssuerUnavailable)
}

func TestGetListing_ImageFailurePolicy(t *testing.T) {
	repo := &fakeListings{}
	l := &listing.Listing{ID: uuid.New(), CategoryID: testCategory, Name: "Camera", Images: []string{"uploads/1_a.jpg"}}
	require.NoError(t, repo.Create(context.Background(), l))

	for _, tc := range []struct {
		policy string
		status int
		body   string
	}{
		{listing.ImagePolicyFail, http.StatusInternalServerError, `"code":5001`},
		{listing.ImagePolicyNull, http.StatusOK, `"images":[null]`},
	} {
		t.Run(tc.policy, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			t.Cleanup(cancel)

			h := Router(ctx, &AppDeps{
				Config:   &configs.AppConfig{Environment: "development", JWTSecret: "test-secret", PresignRate: 1, PresignBurst: 1},
				Listings: listing.NewService(repo, &fakeUsers{byEmail: map[string]*user.User{}}, failingSigner{}, tc.policy),
			})

			rec := (&testEnv{h: h}).do(t, http.MethodGet, "/api/listings/"+l.ID.String(), nil, "")
			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}

func TestLogin_UnknownEmailStillHashes(t *testing.T) {
	cost, err := bcrypt.Cost(dummyPasswordHash())
	require.NoError(t, err)
	assert.Equal(t, bcrypt.DefaultCost, cost, "unknown emails pay the same bcrypt cost as real ones")

	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/login", map[string]any{
		"email": "nobody@example.com", "password": "secret123",
	}, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, errs.ErrInvalidCredentials, errorCode(t, rec))
}
