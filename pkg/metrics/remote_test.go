package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestRemoteCallMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewRemoteCallMetrics(reg)

	started := time.Now().Add(-250 * time.Millisecond)
	m.Observe("cart.list", started, nil)
	m.Observe("cart.list", started, errors.New("offline"))
	m.Observe("", started, nil)
	m.IncMerged(nil)
	m.IncMerged(errors.New("rejected"))
	m.IncMerged(errors.New("rejected"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "storefront_backend_calls_total", map[string]string{"operation": "cart.list", "outcome": OutcomeFailure}); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "storefront_backend_calls_total", map[string]string{"operation": "unknown", "outcome": OutcomeSuccess}); err != nil {
		t.Fatalf("fetch unknown: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown success=1, got %f", got)
	}
	if got, err := fetchCounterValue(mfs, "storefront_cart_merge_items_total", map[string]string{"outcome": OutcomeFailure}); err != nil {
		t.Fatalf("fetch merged: %v", err)
	} else if got != 2 {
		t.Fatalf("expected merge failures=2, got %f", got)
	}

	mf := findMetricFamily(mfs, "storefront_backend_call_duration_seconds")
	if mf == nil {
		t.Fatalf("histogram missing")
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), map[string]string{"operation": "cart.list"}) && metric.GetHistogram().GetSampleSum() <= 0 {
			t.Fatalf("expected duration sum > 0")
		}
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var m *RemoteCallMetrics
	m.Observe("cart.list", time.Now(), nil)
	m.IncMerged(nil)
	NewRemoteCallMetrics(nil).Observe("cart.list", time.Now(), nil)
}

func fetchCounterValue(mfs []*dto.MetricFamily, name string, labels map[string]string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabels(metric.GetLabel(), labels) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing labels %v", name, labels)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabels(pairs []*dto.LabelPair, want map[string]string) bool {
	matched := 0
	for _, pair := range pairs {
		if v, ok := want[pair.GetName()]; ok && v == pair.GetValue() {
			matched++
		}
	}
	return matched == len(want)
}
