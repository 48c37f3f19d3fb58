package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("correlatrd", "GET", "/health", 200, 12*time.Millisecond)
	RecordDispatch("ping", OutcomeOK, time.Millisecond)
	RecordFrameError("short_header")

	if got := testutil.ToFloat64(dispatchRequests.WithLabelValues("ping", OutcomeOK)); got < 1 {
		t.Fatalf("dispatch counter not recorded: %v", got)
	}
	if got := testutil.ToFloat64(frameErrors.WithLabelValues("short_header")); got < 1 {
		t.Fatalf("frame error counter not recorded: %v", got)
	}
}

func TestConnectionGaugeBalances(t *testing.T) {
	before := testutil.ToFloat64(activeConns)
	ConnOpened()
	ConnOpened()
	if got := testutil.ToFloat64(activeConns); got != before+2 {
		t.Fatalf("active connections: got %v want %v", got, before+2)
	}
	ConnClosed()
	ConnClosed()
	if got := testutil.ToFloat64(activeConns); got != before {
		t.Fatalf("active connections: got %v want %v", got, before)
	}
}
