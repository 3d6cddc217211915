package swarm

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every owlnest Prometheus collector. It uses an isolated
// prometheus.Registry so these metrics never collide with the default
// global registry, and so each test can construct its own instance.
// Within this module only the swarm Task updates collectors
// (ConnectedPeers, SwarmEventLag, SwarmCommands); MessagesSent,
// AdvertiseQueries, BlobBytesTotal and BlobTransfers are registered but no
// protocol Behaviour increments them.
type Metrics struct {
	Registry *prometheus.Registry

	ConnectedPeers  prometheus.Gauge
	SwarmEventLag   prometheus.Gauge
	SwarmCommands   *prometheus.CounterVec
	MessagesSent    *prometheus.CounterVec
	AdvertiseQueries *prometheus.CounterVec
	BlobBytesTotal  *prometheus.CounterVec
	BlobTransfers   *prometheus.CounterVec

	BuildInfo *prometheus.GaugeVec
}

// NewMetrics creates a Metrics instance with every collector registered on
// an isolated registry.
func NewMetrics(version, goVersion string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,

		ConnectedPeers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "owlnest_connected_peers",
			Help: "Number of peers with a live connection.",
		}),
		SwarmEventLag: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "owlnest_swarm_event_lag",
			Help: "Backlog depth of the slowest swarm event broadcast subscriber.",
		}),
		SwarmCommands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "owlnest_swarm_commands_total",
			Help: "Total number of generic swarm commands handled, by kind.",
		}, []string{"kind"}),
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "owlnest_messages_sent_total",
			Help: "Total number of messaging-protocol sends, by result.",
		}, []string{"result"}),
		AdvertiseQueries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "owlnest_advertise_queries_total",
			Help: "Total number of advertise-protocol queries, by result.",
		}, []string{"result"}),
		BlobBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "owlnest_blob_bytes_total",
			Help: "Total bytes transferred by the blob protocol, by direction.",
		}, []string{"direction"}),
		BlobTransfers: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "owlnest_blob_transfers_total",
			Help: "Total number of blob transfers, by direction and outcome.",
		}, []string{"direction", "outcome"}),

		BuildInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "owlnest_info",
			Help: "Build information for the running owlnest instance.",
		}, []string{"version", "go_version"}),
	}

	reg.MustRegister(
		m.ConnectedPeers,
		m.SwarmEventLag,
		m.SwarmCommands,
		m.MessagesSent,
		m.AdvertiseQueries,
		m.BlobBytesTotal,
		m.BlobTransfers,
		m.BuildInfo,
	)

	m.BuildInfo.WithLabelValues(version, goVersion).Set(1)

	return m
}

// Handler returns an http.Handler serving this Metrics instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
