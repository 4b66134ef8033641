package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

// counterValue gathers the registry and returns the summed value of the named
// counter family.
func counterValue(t *testing.T, m *Metrics, name string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gathering: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != name {
			continue
		}
		var total float64
		for _, metric := range fam.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
		return total
	}
	return 0
}

func labelValue(metric *dto.Metric, name string) string {
	for _, l := range metric.GetLabel() {
		if l.GetName() == name {
			return l.GetValue()
		}
	}
	return ""
}

func TestRecorderMethodsIncrement(t *testing.T) {
	m := New()

	m.IncRequest("search", "success")
	m.IncRequest("search", "success")
	m.IncRequest("trends", "transport_error")
	m.IncCacheHit("search")
	m.IncBudgetRejection()
	m.AddSpend(0.25)
	m.AddSpend(0.05)
	m.IncPollTick("success")
	m.IncItemDelivered("stdout")
	m.IncSinkFailure("webhook")

	if got := counterValue(t, m, "spyglass_requests_total"); got != 3 {
		t.Errorf("requests total: got %v, want 3", got)
	}
	if got := counterValue(t, m, "spyglass_cache_hits_total"); got != 1 {
		t.Errorf("cache hits: got %v, want 1", got)
	}
	if got := counterValue(t, m, "spyglass_budget_rejections_total"); got != 1 {
		t.Errorf("budget rejections: got %v, want 1", got)
	}
	if got := counterValue(t, m, "spyglass_spend_committed_dollars_total"); got != 0.30 {
		t.Errorf("spend committed: got %v, want 0.30", got)
	}
	if got := counterValue(t, m, "spyglass_poll_ticks_total"); got != 1 {
		t.Errorf("poll ticks: got %v, want 1", got)
	}
	if got := counterValue(t, m, "spyglass_sink_failures_total"); got != 1 {
		t.Errorf("sink failures: got %v, want 1", got)
	}
}

func TestRequestOutcomeLabels(t *testing.T) {
	m := New()
	m.IncRequest("search", "budget_denied")

	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("gathering: %v", err)
	}
	for _, fam := range families {
		if fam.GetName() != "spyglass_requests_total" {
			continue
		}
		if len(fam.GetMetric()) != 1 {
			t.Fatalf("metric count: got %d", len(fam.GetMetric()))
		}
		metric := fam.GetMetric()[0]
		if got := labelValue(metric, "kind"); got != "search" {
			t.Errorf("kind label: got %q", got)
		}
		if got := labelValue(metric, "outcome"); got != "budget_denied" {
			t.Errorf("outcome label: got %q", got)
		}
		return
	}
	t.Fatal("spyglass_requests_total family not found")
}
