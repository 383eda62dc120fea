package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func TestKeyByParamOrIP(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")
	c.Request = req

	key := KeyByParamOrIP("token")(c)
	if key != "ip:203.0.113.9" {
		t.Fatalf("expected ip-based key; got %q", key)
	}

	c.Params = gin.Params{{Key: "token", Value: "secret-token"}}
	key = KeyByParamOrIP("token")(c)
	if !strings.HasPrefix(key, "param:") || strings.Contains(key, "secret-token") {
		t.Fatalf("expected hashed param key; got %q", key)
	}
	if again := KeyByParamOrIP("token")(c); again != key {
		t.Fatalf("key must be stable: %q vs %q", again, key)
	}
}

func TestNewRateLimiter_BurstCoercionAndReuse(t *testing.T) {
	rl := NewRateLimiter(2.0, 0, KeyByParamOrIP("token"))
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}
	lim := rl.getVisitor("k1")
	if got := rl.getVisitor("k1"); got != lim {
		t.Fatalf("expected same limiter instance to be reused")
	}
}

func TestRateLimiter_EvictsIdleBuckets(t *testing.T) {
	rl := NewRateLimiter(1.0, 1, KeyByParamOrIP("token"))
	now := time.Now()
	rl.now = func() time.Time { return now }

	old := rl.getVisitor("old")
	now = now.Add(rl.ttl)
	rl.cleanupN = gcEvery - 1

	if fresh := rl.getVisitor("old"); fresh == old {
		t.Fatalf("idle bucket should have been evicted and recreated")
	}
	if rl.cleanupN != 0 {
		t.Fatalf("cleanup counter should reset, got %d", rl.cleanupN)
	}
}

func TestRateLimiter_PerTokenBuckets(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestID())
	rl := NewRateLimiter(0.0001, 1, KeyByParamOrIP("token"))
	r.POST("/hook/:token", rl.Handler(), func(c *gin.Context) { c.Status(http.StatusOK) })

	do := func(token string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/hook/"+token, nil))
		return w
	}

	if w := do("a"); w.Code != http.StatusOK {
		t.Fatalf("first request for a -> %d", w.Code)
	}
	w := do("a")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request for a -> %d; want 429", w.Code)
	}
	if w.Header().Get("Retry-After") != "1" {
		t.Fatalf("missing Retry-After")
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["code"] != "too_many_requests" || body["request_id"] == "" {
		t.Fatalf("unexpected 429 body: %s (%v)", w.Body.String(), err)
	}

	if w := do("b"); w.Code != http.StatusOK {
		t.Fatalf("token b has its own bucket, got %d", w.Code)
	}
}
