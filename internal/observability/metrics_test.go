package observability

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordLinkLines("decoded", 2)
	RecordSessionEnd("eof")
	RecordOutbound("restartWall", true)
	RecordDispatch("updateStatus", "handled")
	RecordFleetUpdate(1, "success")
	RecordHTTPRequest("cubelink", "GET", "/walls", 200, 12*time.Millisecond)

	if got := testutil.ToFloat64(linkLines.WithLabelValues("decoded")); got < 2 {
		t.Fatalf("unexpected decoded count: %v", got)
	}
	if got := testutil.ToFloat64(linkOutbound.WithLabelValues("restartWall", "true")); got < 1 {
		t.Fatalf("unexpected outbound count: %v", got)
	}
}

func TestMiddlewareUsesRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestLogger(zerolog.Nop()), RequestMetricsMiddleware("test-node"))
	r.GET("/walls/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/walls/3", nil))
	if rr.Code != http.StatusNoContent {
		t.Fatalf("unexpected status: %d", rr.Code)
	}

	got := testutil.ToFloat64(httpRequests.WithLabelValues("test-node", "GET", "/walls/:id", "204"))
	if got != 1 {
		t.Fatalf("expected one request under route template, got %v", got)
	}
}

func TestUnknownDispatchMethodsShareOneSeries(t *testing.T) {
	RegisterMetrics()
	RecordDispatch("warmup", "unknown")
	before := testutil.CollectAndCount(dispatchInbound)
	for i := 0; i < 200; i++ {
		RecordDispatch("noise"+strconv.Itoa(i), "unknown")
	}
	if after := testutil.CollectAndCount(dispatchInbound); after != before {
		t.Fatalf("unknown methods added series: before=%d after=%d", before, after)
	}
	if got := testutil.ToFloat64(dispatchInbound.WithLabelValues(UnknownMethodLabel, "unknown")); got < 201 {
		t.Fatalf("unexpected unknown count: %v", got)
	}
}
