package redisstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/food-facility-search/internal/core/observability"
	"github.com/mohammed-shakir/food-facility-search/internal/metrics"
)

func Test_RedisMetrics_CacheOps(t *testing.T) {
	p := metrics.Init(metrics.Config{})
	observability.Init(p.Registerer())

	rc, _ := newMini(t)
	ctx := context.Background()
	_ = rc.Set(ctx, "k:hit", []byte("v"), time.Minute)
	_, _, _ = rc.Get(ctx, "k:hit")
	_, _ = rc.PurgePrefix(ctx, "k:")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	body := rr.Body.String()

	for _, op := range []string{"get", "set", "purge", "ping"} {
		if !strings.Contains(body, `cache_op_duration_seconds_count{op="`+op+`",result="ok"}`) {
			t.Fatalf("missing cache_op_duration_seconds_count for op=%s\n%s", op, body)
		}
	}
}
