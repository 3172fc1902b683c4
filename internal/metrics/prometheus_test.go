package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestPrometheusCollector_CollectsCounters(t *testing.T) {
	reg := NewRegistry()
	reg.Connection.ConnectAttempts.Store(3)
	reg.Connection.ConnectSuccesses.Store(2)
	reg.Connection.ActiveConnections.Store(1)
	reg.Error.Record(CategoryPublish, "sensors/a", "boom", time.Now())
	reg.Validation.RecordSuccess("publish")
	reg.Validation.RecordFailure("publish", "bad topic")

	c := NewPrometheusCollector(reg)

	promReg := prometheus.NewPedanticRegistry()
	if err := promReg.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	families, err := promReg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	seen := make(map[string]*dto.MetricFamily)
	for _, f := range families {
		seen[f.GetName()] = f
	}
	if _, ok := seen["mqttpool_connect_attempts_total"]; !ok {
		t.Fatalf("expected connect attempts family, got families %v", familyNames(families))
	}
	if _, ok := seen["mqttpool_validation_total"]; !ok {
		t.Fatalf("expected validation family, got families %v", familyNames(families))
	}
}

func familyNames(families []*dto.MetricFamily) []string {
	out := make([]string, 0, len(families))
	for _, f := range families {
		out = append(out, f.GetName())
	}
	return out
}
