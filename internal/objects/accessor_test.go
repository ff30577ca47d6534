package objects

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allenheltondev/momento-bag-of-tricks/internal/cache"
	"github.com/allenheltondev/momento-bag-of-tricks/internal/store"
)

type fakeCache struct {
	data     map[string][]byte
	getErr   error
	setErr   error
	setCalls int
	lastTTL  time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{data: map[string][]byte{}}
}

func (f *fakeCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	if f.getErr != nil {
		return nil, false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	f.setCalls++
	f.lastTTL = ttl
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	return nil
}

type fakeStore struct {
	data        map[string][]byte
	getErr      error
	putErr      error
	putCalls    int
	lastPutOpts store.PutOptions
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return v, nil
}

func (f *fakeStore) Put(_ context.Context, key string, body []byte, opts store.PutOptions) error {
	f.putCalls++
	f.lastPutOpts = opts
	if f.putErr != nil {
		return f.putErr
	}
	f.data[key] = body
	return nil
}

func testAccessor() (*Accessor, *fakeCache, *fakeStore) {
	log := logrus.New()
	log.SetOutput(io.Discard)
	fc := newFakeCache()
	fs := newFakeStore()
	return NewAccessor(fc, fs, time.Hour, log), fc, fs
}

func TestLoad_CacheHit_JSON(t *testing.T) {
	a, fc, _ := testAccessor()
	fc.data["k"] = []byte(`{"a":1}`)

	v, err := a.Load(context.Background(), "k", TransformJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)
}

func TestLoad_CacheMiss_StoreHit_NoRepopulation(t *testing.T) {
	a, fc, fs := testAccessor()
	fs.data["k"] = []byte("from the store")

	v, err := a.Load(context.Background(), "k", TransformString)
	require.NoError(t, err)
	assert.Equal(t, "from the store", v)

	// The fallback hit does not repair the cache.
	assert.Zero(t, fc.setCalls)
}

func TestLoad_NotFound_EmptyDefaults(t *testing.T) {
	a, _, _ := testAccessor()
	ctx := context.Background()

	v, err := a.Load(ctx, "absent", TransformJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, v)

	v, err = a.Load(ctx, "absent", TransformString)
	require.NoError(t, err)
	assert.Equal(t, "", v)

	v, err = a.Load(ctx, "absent", TransformBinary)
	require.NoError(t, err)
	assert.Equal(t, []byte{}, v)
}

func TestLoad_CacheError_FallsThroughToStore(t *testing.T) {
	a, fc, fs := testAccessor()
	fc.getErr = errors.New("backend down")
	fs.data["k"] = []byte(`{"ok":true}`)

	v, err := a.Load(context.Background(), "k", TransformJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"ok": true}, v)
}

func TestLoad_StoreError_Propagates(t *testing.T) {
	a, _, fs := testAccessor()
	fs.getErr = errors.New("store exploded")

	_, err := a.Load(context.Background(), "k", TransformString)
	assert.Error(t, err)
}

func TestLoad_DefaultTransformIsString(t *testing.T) {
	a, fc, _ := testAccessor()
	fc.data["k"] = []byte("plain")

	v, err := a.Load(context.Background(), "k", "")
	require.NoError(t, err)
	assert.Equal(t, "plain", v)
}

func TestLoad_UnknownTransform(t *testing.T) {
	a, _, _ := testAccessor()

	_, err := a.Load(context.Background(), "k", Transform("xml"))
	assert.Error(t, err)
}

func TestLoad_TypedWrappers(t *testing.T) {
	a, fc, _ := testAccessor()
	fc.data["j"] = []byte(`{"n":2}`)
	fc.data["s"] = []byte("text")
	fc.data["b"] = []byte{0x01, 0x02}
	ctx := context.Background()

	j, err := a.LoadJSON(ctx, "j")
	require.NoError(t, err)
	assert.Equal(t, float64(2), j["n"])

	s, err := a.LoadString(ctx, "s")
	require.NoError(t, err)
	assert.Equal(t, "text", s)

	b, err := a.LoadBytes(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x02}, b)
}

func TestSave_ThenLoad_JSONRoundTrip(t *testing.T) {
	a, _, _ := testAccessor()
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "k", map[string]any{"a": 1}, SaveOptions{}))

	v, err := a.Load(ctx, "k", TransformJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"a": float64(1)}, v)
}

func TestSave_StructSerializedAsJSON(t *testing.T) {
	a, _, fs := testAccessor()

	type payload struct {
		Name string `json:"name"`
	}
	require.NoError(t, a.Save(context.Background(), "k", payload{Name: "ada"}, SaveOptions{}))
	assert.JSONEq(t, `{"name":"ada"}`, string(fs.data["k"]))
	assert.Equal(t, "application/json", fs.lastPutOpts.ContentType)
}

func TestSave_StringAndBytesPassThrough(t *testing.T) {
	a, _, fs := testAccessor()
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "s", "as-is", SaveOptions{}))
	assert.Equal(t, []byte("as-is"), fs.data["s"])
	assert.Equal(t, "text/plain", fs.lastPutOpts.ContentType)

	require.NoError(t, a.Save(ctx, "b", []byte{0xDE, 0xAD}, SaveOptions{}))
	assert.Equal(t, []byte{0xDE, 0xAD}, fs.data["b"])
	assert.Equal(t, "application/octet-stream", fs.lastPutOpts.ContentType)
}

func TestSave_PublicVisibility(t *testing.T) {
	a, _, fs := testAccessor()
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "private", "v", SaveOptions{}))
	assert.False(t, fs.lastPutOpts.PublicRead)

	require.NoError(t, a.Save(ctx, "public", "v", SaveOptions{Public: true}))
	assert.True(t, fs.lastPutOpts.PublicRead)
}

func TestSave_TTLOverride(t *testing.T) {
	a, fc, _ := testAccessor()
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "k", "v", SaveOptions{}))
	assert.Equal(t, time.Hour, fc.lastTTL)

	require.NoError(t, a.Save(ctx, "k", "v", SaveOptions{TTL: 5 * time.Minute}))
	assert.Equal(t, 5*time.Minute, fc.lastTTL)
}

func TestSave_CacheWriteError_StillSucceeds(t *testing.T) {
	a, fc, fs := testAccessor()
	fc.setErr = errors.New("backend down")

	require.NoError(t, a.Save(context.Background(), "k", "v", SaveOptions{}))
	assert.Equal(t, []byte("v"), fs.data["k"])
}

func TestSave_StoreError_Propagates(t *testing.T) {
	a, fc, fs := testAccessor()
	fs.putErr = errors.New("store exploded")

	err := a.Save(context.Background(), "k", "v", SaveOptions{})
	assert.Error(t, err)
	// The cache is never written when the durable write failed.
	assert.Zero(t, fc.setCalls)
}

func TestSave_NilValue(t *testing.T) {
	a, _, _ := testAccessor()

	assert.Error(t, a.Save(context.Background(), "k", nil, SaveOptions{}))
}

func TestAccessor_WithRedisCache(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	log := logrus.New()
	log.SetOutput(io.Discard)
	cacheClient := cache.New(cache.Options{
		Addr:       mr.Addr(),
		Name:       "objects",
		DefaultTTL: time.Hour,
	}, log)
	defer cacheClient.Close()

	fs := newFakeStore()
	a := NewAccessor(cacheClient, fs, time.Hour, log)
	ctx := context.Background()

	require.NoError(t, a.Save(ctx, "cfg", map[string]any{"enabled": true}, SaveOptions{}))

	// The read is served from the cache; wipe the store to prove it.
	fs.data = map[string][]byte{}
	v, err := a.Load(ctx, "cfg", TransformJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"enabled": true}, v)

	// After the cache entry expires the store miss surfaces as empty.
	mr.FastForward(2 * time.Hour)
	v, err = a.Load(ctx, "cfg", TransformJSON)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, v)
}
