package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/poi/nearby", "200"))
	RecordAPIRequest("GET", "/poi/nearby", 200, 15*time.Millisecond)
	after := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/poi/nearby", "200"))

	if after-before != 1 {
		t.Errorf("api_requests_total delta = %v, want 1", after-before)
	}
}

func TestRecordCollaboratorCall(t *testing.T) {
	c := CollaboratorCalls.WithLabelValues("amap", "direction", "ok")
	before := testutil.ToFloat64(c)
	RecordCollaboratorCall("amap", "direction", "ok", time.Second)
	if got := testutil.ToFloat64(c) - before; got != 1 {
		t.Errorf("collaborator_calls_total delta = %v, want 1", got)
	}
}

func TestCircuitBreakerState(t *testing.T) {
	CircuitBreakerState.WithLabelValues("test").Set(2)
	if got := testutil.ToFloat64(CircuitBreakerState.WithLabelValues("test")); got != 2 {
		t.Errorf("circuit_breaker_state = %v, want 2", got)
	}
}
