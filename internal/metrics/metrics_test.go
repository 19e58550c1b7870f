package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestStatusClass(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{200, "2xx"},
		{201, "2xx"},
		{404, "4xx"},
		{429, "4xx"},
		{503, "5xx"},
		{0, "error"},
		{-1, "error"},
	}

	for _, tt := range tests {
		if got := StatusClass(tt.code); got != tt.want {
			t.Errorf("StatusClass(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestGatewayEventsCounter(t *testing.T) {
	before := testutil.ToFloat64(GatewayEvents.WithLabelValues("ready"))
	GatewayEvents.WithLabelValues("ready").Inc()
	after := testutil.ToFloat64(GatewayEvents.WithLabelValues("ready"))

	if after-before != 1 {
		t.Errorf("ready events delta = %v, want 1", after-before)
	}
}
