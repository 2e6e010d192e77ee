package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mohammed-shakir/food-facility-search/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer())
	observability.ExposeBuildInfo("test")

	observability.ObserveHTTP("POST", "/search_nearby", 200, 0.01)
	observability.IncCacheHit("redis")
	observability.ObserveCacheOp("get", nil, 0.002)
	observability.ObserveCacheOp("set", errors.New("timeout"), 0.25)
	observability.IncKafkaError("invalidation", "decode")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	body := rr.Body.String()

	assertHasMetricLine(t, body, "http_requests_total", `route="/search_nearby"`, `status="200"`)
	assertHasMetricLine(t, body, "cache_results_total", `driver="redis"`, `outcome="hit"`)
	assertHasMetricLine(t, body, "cache_op_duration_seconds_count", `op="set"`, `result="error"`)
	assertHasMetricLine(t, body, "kafka_errors_total", `component="invalidation"`, `stage="decode"`)
	assertHasMetricLine(t, body, "app_build_info", `version="test"`)
}
