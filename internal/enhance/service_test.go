package enhance

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HubEvolution/EvolutionHub-sub002/internal/api"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/config"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/owner"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/provider"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/quota"
	"github.com/HubEvolution/EvolutionHub-sub002/internal/storage"
)

var pngImage = append([]byte{0x89, 'P', 'N', 'G', 0x0D, 0x0A, 0x1A, 0x0A}, []byte("payload")...)

// memStore is an in-memory stand-in for the Postgres blob store.
type memStore struct {
	mu    sync.Mutex
	blobs map[string]*storage.Blob
}

func newMemStore() *memStore {
	return &memStore{blobs: make(map[string]*storage.Blob)}
}

func (m *memStore) Put(_ context.Context, key, contentType string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = &storage.Blob{Key: key, ContentType: contentType, Data: data}
	return nil
}

func (m *memStore) Get(_ context.Context, key string) (*storage.Blob, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blobs[key], nil
}

func (m *memStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}

// failingProvider always returns the configured error.
type failingProvider struct {
	err error
}

func (f *failingProvider) Name() string { return "failing" }

func (f *failingProvider) Run(context.Context, provider.Request) (*provider.Result, error) {
	return nil, f.err
}

func setupService(t *testing.T, prov provider.Provider) (*Service, *memStore, *quota.Checker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	checker := quota.NewChecker(quota.NewCounterStore(rdb))
	store := newMemStore()
	cfg := config.EnhanceConfig{MaxFileSize: 1 << 20, StoragePrefix: "test"}
	return NewService(cfg, checker, store, prov, nil), store, checker, mr
}

func TestEnhance_Success(t *testing.T) {
	svc, store, _, _ := setupService(t, provider.NewEcho())
	o := owner.User(uuid.New(), "free")

	res, err := svc.Enhance(context.Background(), o, Input{Model: "real-esrgan", Image: pngImage})
	require.NoError(t, err)

	assert.Equal(t, "real-esrgan", res.Model)
	assert.True(t, strings.HasPrefix(res.InputURL, "/files/test/uploads/user/"))
	require.NotNil(t, res.Usage)
	assert.Equal(t, 1, res.Usage.Daily.Used)

	blob, _ := store.Get(context.Background(), strings.TrimPrefix(res.InputURL, "/files/"))
	require.NotNil(t, blob)
	assert.Equal(t, "image/png", blob.ContentType)
}

func TestEnhance_WiredEchoStoresOnce(t *testing.T) {
	svc, store, _, _ := setupService(t, provider.NewEcho())
	o := owner.User(uuid.New(), "free")

	res, err := svc.Enhance(context.Background(), o, Input{Model: "real-esrgan", Image: pngImage})
	require.NoError(t, err)

	// The echo provider returns the input unchanged, so the result store is
	// skipped and both URLs point at the single stored upload.
	assert.True(t, res.Echoed)
	assert.Equal(t, res.InputURL, res.OutputURL)
	assert.Len(t, store.blobs, 1)
}

func TestEnhance_UnsupportedModel(t *testing.T) {
	svc, _, _, _ := setupService(t, provider.NewEcho())

	_, err := svc.Enhance(context.Background(), owner.Guest("g1"), Input{Model: "nope", Image: pngImage})
	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.TypeValidationError, appErr.Type)
}

func TestEnhance_ScaleAbovePlanLimit(t *testing.T) {
	svc, _, _, _ := setupService(t, provider.NewEcho())
	o := owner.User(uuid.New(), "free")

	_, err := svc.Enhance(context.Background(), o, Input{
		Model: "real-esrgan", Image: pngImage, Params: Params{Scale: 4},
	})
	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.TypeValidationError, appErr.Type)
}

func TestEnhance_ScaleSixRejected(t *testing.T) {
	svc, _, _, _ := setupService(t, provider.NewEcho())
	o := owner.User(uuid.New(), "pro")

	_, err := svc.Enhance(context.Background(), o, Input{
		Model: "real-esrgan", Image: pngImage, Params: Params{Scale: 6},
	})
	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.TypeValidationError, appErr.Type)
}

func TestEnhance_FaceEnhanceGatedByPlan(t *testing.T) {
	svc, _, _, _ := setupService(t, provider.NewEcho())

	_, err := svc.Enhance(context.Background(), owner.Guest("g1"), Input{
		Model: "real-esrgan", Image: pngImage, Params: Params{FaceEnhance: true},
	})
	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.TypeValidationError, appErr.Type)
}

func TestEnhance_RejectsNonImage(t *testing.T) {
	svc, _, _, _ := setupService(t, provider.NewEcho())

	_, err := svc.Enhance(context.Background(), owner.Guest("g1"), Input{
		Model: "real-esrgan", Image: []byte("not an image"),
	})
	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.TypeValidationError, appErr.Type)
}

func TestEnhance_QuotaExhausted(t *testing.T) {
	svc, _, _, _ := setupService(t, provider.NewEcho())
	o := owner.Guest("g1")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := svc.Enhance(ctx, o, Input{Model: "real-esrgan", Image: pngImage})
		require.NoError(t, err)
	}

	_, err := svc.Enhance(ctx, o, Input{Model: "real-esrgan", Image: pngImage})
	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.TypeQuotaExceeded, appErr.Type)
}

func TestEnhance_ProviderFailureReleasesQuota(t *testing.T) {
	svc, store, checker, _ := setupService(t, &failingProvider{err: provider.BuildError(500, "boom")})
	o := owner.User(uuid.New(), "free")
	ctx := context.Background()

	_, err := svc.Enhance(ctx, o, Input{Model: "real-esrgan", Image: pngImage})
	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.TypeServerError, appErr.Type)

	status, err := checker.Usage(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Daily.Used)

	// Nothing references the upload after a failed enhancement; it is gone.
	assert.Empty(t, store.blobs)
}

func TestEnhance_ProviderForbiddenSurfaced(t *testing.T) {
	svc, _, _, _ := setupService(t, &failingProvider{err: provider.BuildError(401, "bad token")})

	_, err := svc.Enhance(context.Background(), owner.Guest("g1"), Input{Model: "real-esrgan", Image: pngImage})
	var appErr *api.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, api.TypeForbidden, appErr.Type)
	assert.NotContains(t, appErr.Message, "bad token")
}

func TestEnhance_MissingCredentialsEchoes(t *testing.T) {
	svc, _, _, _ := setupService(t, &failingProvider{err: provider.ErrMissingCredentials})
	o := owner.Guest("g1")

	res, err := svc.Enhance(context.Background(), o, Input{Model: "real-esrgan", Image: pngImage})
	require.NoError(t, err)
	assert.True(t, res.Echoed)
	// The echoed branch skips the result store: both URLs point at the upload.
	assert.Equal(t, res.InputURL, res.OutputURL)
}

func TestEnhance_Provider404Echoes(t *testing.T) {
	svc, store, _, _ := setupService(t, &failingProvider{err: provider.BuildError(404, "no such model")})

	res, err := svc.Enhance(context.Background(), owner.Guest("g1"), Input{Model: "real-esrgan", Image: pngImage})
	require.NoError(t, err)
	assert.True(t, res.Echoed)
	assert.Equal(t, res.InputURL, res.OutputURL)
	assert.Len(t, store.blobs, 1)
}

func TestEnhance_UnexpectedProviderError(t *testing.T) {
	svc, _, checker, _ := setupService(t, &failingProvider{err: errors.New("connection refused")})
	o := owner.Guest("g1")
	ctx := context.Background()

	_, err := svc.Enhance(ctx, o, Input{Model: "real-esrgan", Image: pngImage})
	assert.ErrorIs(t, err, api.ErrInternalServer)

	status, err := checker.Usage(ctx, o)
	require.NoError(t, err)
	assert.Equal(t, 0, status.Daily.Used)
}

func TestSniffContentType(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want string
		ok   bool
	}{
		{"jpeg", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00}, "image/jpeg", true},
		{"png", pngImage, "image/png", true},
		{"webp", append([]byte("RIFF"), append([]byte{1, 2, 3, 4}, []byte("WEBPrest")...)...), "image/webp", true},
		{"gif", []byte("GIF89a..."), "", false},
		{"empty", nil, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SniffContentType(tt.data)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestProviderInput_MergesDefaults(t *testing.T) {
	m, ok := ModelFor("real-esrgan")
	require.True(t, ok)

	input := m.ProviderInput(Params{Scale: 4, FaceEnhance: true})
	assert.Equal(t, 4, input["scale"])
	assert.Equal(t, true, input["face_enhance"])

	input = m.ProviderInput(Params{})
	assert.Equal(t, 2, input["scale"])
	assert.Equal(t, false, input["face_enhance"])
}
