package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedRedis answers INCR, EXPIRE, TTL and DEL from memory through a
// client hook, so no command ever reaches a server.
type scriptedRedis struct {
	mu         sync.Mutex
	counts     map[string]int64
	ttl        time.Duration
	failExpire bool
	expired    []string
	deleted    []string
}

func newScriptedRedis(t *testing.T, ttl time.Duration) (*redis.Client, *scriptedRedis) {
	t.Helper()
	s := &scriptedRedis{counts: make(map[string]int64), ttl: ttl}
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	rdb.AddHook(s)
	t.Cleanup(func() { rdb.Close() })
	return rdb, s
}

func (s *scriptedRedis) DialHook(next redis.DialHook) redis.DialHook { return next }

func (s *scriptedRedis) ProcessPipelineHook(next redis.ProcessPipelineHook) redis.ProcessPipelineHook {
	return next
}

func (s *scriptedRedis) ProcessHook(_ redis.ProcessHook) redis.ProcessHook {
	return func(_ context.Context, cmd redis.Cmder) error {
		s.mu.Lock()
		defer s.mu.Unlock()

		key, _ := cmd.Args()[1].(string)
		switch c := cmd.(type) {
		case *redis.IntCmd:
			if cmd.Name() == "del" {
				delete(s.counts, key)
				s.deleted = append(s.deleted, key)
				c.SetVal(1)
				return nil
			}
			s.counts[key]++
			c.SetVal(s.counts[key])
		case *redis.BoolCmd:
			if s.failExpire {
				err := errors.New("READONLY You can't write against a read only replica.")
				c.SetErr(err)
				return err
			}
			s.expired = append(s.expired, key)
			c.SetVal(true)
		case *redis.DurationCmd:
			c.SetVal(s.ttl)
		}
		return nil
	}
}

func limitedRouter(rdb *redis.Client, limit int, window time.Duration) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RateLimiterMiddleware(rdb, limit, window))
	r.GET("/habits", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func hit(r *gin.Engine, ip string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/habits", nil)
	req.Header.Set("X-Forwarded-For", ip)
	r.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_CountsPerClient(t *testing.T) {
	rdb, fake := newScriptedRedis(t, 40*time.Second)
	r := limitedRouter(rdb, 2, time.Minute)

	first := hit(r, "10.0.0.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "2", first.Header().Get("X-RateLimit-Limit"))
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, hit(r, "10.0.0.2").Code, "other clients have their own window")

	blocked := hit(r, "10.0.0.1")
	require.Equal(t, http.StatusTooManyRequests, blocked.Code)
	assert.Equal(t, "0", blocked.Header().Get("X-RateLimit-Remaining"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(blocked.Body.Bytes(), &body))
	assert.EqualValues(t, 40, body["retry_in_s"])

	assert.ElementsMatch(t, []string{"rate_limit:10.0.0.1", "rate_limit:10.0.0.2"}, fake.expired,
		"the window starts once, on the first request of each client")
}

func TestRateLimiter_CounterWithoutTTLUsesWindow(t *testing.T) {
	// TTL answers -1 for a key that has no expiry.
	rdb, _ := newScriptedRedis(t, -1)
	r := limitedRouter(rdb, 5, time.Minute)

	before := time.Now()
	w := hit(r, "10.0.0.3")
	require.Equal(t, http.StatusOK, w.Code)

	reset, err := strconv.ParseInt(w.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	assert.InDelta(t, before.Add(time.Minute).Unix(), reset, 2)
}

func TestRateLimiter_ExpireFailureDropsCounter(t *testing.T) {
	rdb, fake := newScriptedRedis(t, time.Minute)
	fake.failExpire = true
	r := limitedRouter(rdb, 1, time.Minute)

	for i := 0; i < 3; i++ {
		w := hit(r, "10.0.0.4")
		assert.Equal(t, http.StatusOK, w.Code, "request %d", i+1)
		assert.Empty(t, w.Header().Get("X-RateLimit-Limit"))
	}
	assert.Equal(t, []string{"rate_limit:10.0.0.4", "rate_limit:10.0.0.4", "rate_limit:10.0.0.4"}, fake.deleted)
}

func TestRateLimiter_FailsOpenWhenRedisIsDown(t *testing.T) {
	down := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	defer down.Close()

	w := hit(limitedRouter(down, 1, time.Minute), "10.0.0.5")
	assert.Equal(t, http.StatusOK, w.Code)
}
