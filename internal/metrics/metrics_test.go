package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandlerExposesCollectors(t *testing.T) {
	ChatBootstraps.WithLabelValues("created").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "rollermate_chat_bootstraps_total") {
		t.Error("expected chat bootstrap counter in output")
	}
}

func TestCounterIncrements(t *testing.T) {
	before := testutil.ToFloat64(RealtimeEvents.WithLabelValues("notifications"))
	RealtimeEvents.WithLabelValues("notifications").Inc()
	after := testutil.ToFloat64(RealtimeEvents.WithLabelValues("notifications"))

	if after-before != 1 {
		t.Errorf("delta = %v, want 1", after-before)
	}
}
