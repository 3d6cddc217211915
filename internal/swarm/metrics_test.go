package swarm

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("0.1.0", "go1.26.0")
	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.Registry == nil {
		t.Fatal("Registry is nil")
	}
}

func TestMetricsIsolation(t *testing.T) {
	m1 := NewMetrics("0.1.0", "go1.26.0")
	m2 := NewMetrics("0.2.0", "go1.26.0")

	m1.SwarmCommands.WithLabelValues("dial").Inc()

	families, err := m2.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() == "owlnest_swarm_commands_total" {
			for _, metric := range f.GetMetric() {
				if metric.GetCounter().GetValue() != 0 {
					t.Error("m2 registry saw m1 counter value; registries are not isolated")
				}
			}
		}
	}
}

func TestMetricsFamiliesPresent(t *testing.T) {
	m := NewMetrics("test", "go1.26.0")

	m.ConnectedPeers.Set(3)
	m.SwarmEventLag.Set(1)
	m.SwarmCommands.WithLabelValues("dial").Inc()
	m.MessagesSent.WithLabelValues("ok").Inc()
	m.AdvertiseQueries.WithLabelValues("ok").Inc()
	m.BlobBytesTotal.WithLabelValues("send").Add(1024)
	m.BlobTransfers.WithLabelValues("send", "finished").Inc()

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}

	expected := map[string]bool{
		"owlnest_connected_peers":        false,
		"owlnest_swarm_event_lag":        false,
		"owlnest_swarm_commands_total":   false,
		"owlnest_messages_sent_total":    false,
		"owlnest_advertise_queries_total": false,
		"owlnest_blob_bytes_total":       false,
		"owlnest_blob_transfers_total":   false,
		"owlnest_info":                   false,
	}
	for _, f := range families {
		if _, ok := expected[f.GetName()]; ok {
			expected[f.GetName()] = true
		}
	}
	for name, found := range expected {
		if !found {
			t.Errorf("metric family %q not found in gathered output", name)
		}
	}
}

func TestMetricsBuildInfo(t *testing.T) {
	m := NewMetrics("1.2.3", "go1.26.0")

	families, err := m.Registry.Gather()
	if err != nil {
		t.Fatalf("Gather failed: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "owlnest_info" {
			continue
		}
		for _, metric := range f.GetMetric() {
			if metric.GetGauge().GetValue() != 1 {
				t.Errorf("build info gauge value = %f, want 1", metric.GetGauge().GetValue())
			}
			labels := make(map[string]string)
			for _, lp := range metric.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			if labels["version"] != "1.2.3" {
				t.Errorf("version label = %q, want %q", labels["version"], "1.2.3")
			}
		}
	}
}

func TestMetricsHandler(t *testing.T) {
	m := NewMetrics("0.1.0", "go1.26.0")
	m.SwarmCommands.WithLabelValues("dial").Inc()

	handler := m.Handler()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("handler returned status %d, want 200", rec.Code)
	}

	body, _ := io.ReadAll(rec.Body)
	output := string(body)
	if !strings.Contains(output, "owlnest_swarm_commands_total") {
		t.Error("handler output missing owlnest_swarm_commands_total")
	}
	if !strings.Contains(output, "go_goroutines") {
		t.Error("handler output missing go_goroutines (Go runtime collector)")
	}
}

func TestMetricsRegistryDoesNotUseGlobal(t *testing.T) {
	m := NewMetrics("test", "go1.26.0")
	if m.Registry == prometheus.DefaultRegisterer {
		t.Error("Metrics registry is the global DefaultRegisterer; should be isolated")
	}
}
