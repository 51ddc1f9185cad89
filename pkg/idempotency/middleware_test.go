package idempotency

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
}

func newFakeRedis() *fakeRedis { return &fakeRedis{data: map[string]string{}} }

func (f *fakeRedis) SetNX(_ context.Context, key string, value interface{}, _ time.Duration) *redis.BoolCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	f.data[key] = toString(value)
	return redis.NewBoolResult(true, nil)
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, _ time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = toString(value)
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range keys {
		delete(f.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func toString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	default:
		return ""
	}
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestStoreSeen(t *testing.T) {
	s := NewStore(newFakeRedis(), time.Minute)
	key := s.Key("order.events", 0, 42)
	assert.Equal(t, "idem:order.events:0:42", key)

	seen, err := s.Seen(context.Background(), key)
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = s.Seen(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, s.Forget(context.Background(), key))
	seen, _ = s.Seen(context.Background(), key)
	assert.False(t, seen)
}

func TestMiddlewareReplaysFirstResponse(t *testing.T) {
	calls := 0
	h := NewMiddleware(discard(), newFakeRedis(), time.Hour).Handler(func(*http.Request) string { return "u1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"orderNumber":"FUR-1"}`))
		}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/orders", nil)
		req.Header.Set(HeaderKey, "abc")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusCreated, rec.Code)
		assert.JSONEq(t, `{"orderNumber":"FUR-1"}`, rec.Body.String())
	}
	assert.Equal(t, 1, calls)
}

func TestMiddlewareRejectsInflightDuplicate(t *testing.T) {
	rdb := newFakeRedis()
	rdb.data["idem:http:u1:POST:/orders:abc"] = inflight
	h := NewMiddleware(discard(), rdb, time.Hour).Handler(func(*http.Request) string { return "u1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("handler must not run")
		}))

	req := httptest.NewRequest(http.MethodPost, "/orders", nil)
	req.Header.Set(HeaderKey, "abc")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestMiddlewareForgetsServerErrors(t *testing.T) {
	rdb := newFakeRedis()
	calls := 0
	h := NewMiddleware(discard(), rdb, time.Hour).Handler(func(*http.Request) string { return "u1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.WriteHeader(http.StatusBadGateway)
		}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/payments", nil)
		req.Header.Set(HeaderKey, "k")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
	assert.Empty(t, rdb.data)
}
