package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveUploadCountsByResult(t *testing.T) {
	before := testutil.ToFloat64(UploadsTotal.WithLabelValues("scan", "success"))
	ObserveUpload("scan", true, 0.2)
	ObserveUpload("scan", false, 0.1)
	after := testutil.ToFloat64(UploadsTotal.WithLabelValues("scan", "success"))
	if after-before != 1 {
		t.Fatalf("expected one success, got %v", after-before)
	}
}

func TestGauges(t *testing.T) {
	SetPendingRecords(7)
	if got := testutil.ToFloat64(PendingRecords); got != 7 {
		t.Fatalf("expected 7 pending, got %v", got)
	}
	SetBatteryPercent(42.5)
	if got := testutil.ToFloat64(BatteryPercent); got != 42.5 {
		t.Fatalf("expected 42.5, got %v", got)
	}
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObserveCycle(true)
	ObserveConnect(false)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"bike_duty_cycles_total", "bike_base_connects_total", "bike_pending_records"} {
		if !strings.Contains(string(body), name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}
