package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmehra2102/furniture-store/pkg/apperr"
	"github.com/dmehra2102/furniture-store/pkg/httpx"
)

const (
	HeaderKey = "Idempotency-Key"
	inflight  = "inflight"
)

type redisClient interface {
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store dedupes consumed kafka messages.
type Store struct {
	rdb redisClient
	ttl time.Duration
}

func NewStore(rdb redisClient, ttl time.Duration) *Store {
	return &Store{rdb: rdb, ttl: ttl}
}

func (s *Store) Key(topic string, partition int, offset int64) string {
	return fmt.Sprintf("idem:%s:%d:%d", topic, partition, offset)
}

func (s *Store) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := s.rdb.SetNX(ctx, key, "1", s.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// Forget drops a key so the message is handled again on redelivery.
func (s *Store) Forget(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}

type storedResponse struct {
	Status      int    `json:"status"`
	ContentType string `json:"contentType"`
	Body        []byte `json:"body"`
}

// Middleware replays the first completed response for a repeated
// Idempotency-Key. Requests without the header pass through.
type Middleware struct {
	log *slog.Logger
	rdb redisClient
	ttl time.Duration
}

func NewMiddleware(log *slog.Logger, rdb redisClient, ttl time.Duration) *Middleware {
	return &Middleware{log: log, rdb: rdb, ttl: ttl}
}

// Handler scopes keys by the value scope returns, normally the caller's user id.
func (m *Middleware) Handler(scope func(*http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(HeaderKey)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			rkey := fmt.Sprintf("idem:http:%s:%s:%s:%s", scope(r), r.Method, r.URL.Path, key)

			ok, err := m.rdb.SetNX(ctx, rkey, inflight, m.ttl).Result()
			if err != nil {
				m.log.Warn("idempotency store unavailable", "err", err)
				next.ServeHTTP(w, r)
				return
			}
			if !ok {
				m.replay(w, r, rkey)
				return
			}

			rec := &recorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			if rec.status >= http.StatusInternalServerError {
				_ = m.rdb.Del(ctx, rkey).Err()
				return
			}
			payload, _ := json.Marshal(storedResponse{
				Status:      rec.status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			})
			if err := m.rdb.Set(ctx, rkey, payload, m.ttl).Err(); err != nil {
				m.log.Warn("idempotency store write failed", "key", rkey, "err", err)
			}
		})
	}
}

func (m *Middleware) replay(w http.ResponseWriter, r *http.Request, rkey string) {
	val, err := m.rdb.Get(r.Context(), rkey).Result()
	if errors.Is(err, redis.Nil) || val == inflight {
		httpx.Error(w, m.log, apperr.New(apperr.ConcurrencyConflict, "request with this idempotency key is in progress"))
		return
	}
	if err != nil {
		httpx.Error(w, m.log, err)
		return
	}
	var stored storedResponse
	if err := json.Unmarshal([]byte(val), &stored); err != nil {
		httpx.Error(w, m.log, err)
		return
	}
	if stored.ContentType != "" {
		w.Header().Set("Content-Type", stored.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(stored.Status)
	_, _ = w.Write(stored.Body)
}

type recorder struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (r *recorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *recorder) Write(b []byte) (int, error) {
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
