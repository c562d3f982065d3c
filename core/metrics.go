package core

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the coordinator's operational counters and gauges on a
// private registry so multiple instances can coexist in tests.
type Metrics struct {
	registry *prometheus.Registry

	QuestsStarted   prometheus.Counter
	QuestsCompleted prometheus.Counter
	QuestsFailed    *prometheus.CounterVec
	ConnectedAgents prometheus.Gauge
	ActiveQuests    prometheus.Gauge
	DroppedEvents   prometheus.Counter
}

// NewMetrics creates and registers the coordinator metric set.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		QuestsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swarm_quests_started_total",
			Help: "Quests accepted from the intake queue.",
		}),
		QuestsCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swarm_quests_completed_total",
			Help: "Quests that reached the complete state.",
		}),
		QuestsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "swarm_quests_failed_total",
			Help: "Quests that reached the failed state, by reason.",
		}, []string{"reason"}),
		ConnectedAgents: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swarm_connected_agents",
			Help: "Currently connected agents.",
		}),
		ActiveQuests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "swarm_active_quests",
			Help: "Quests currently in a non-terminal phase.",
		}),
		DroppedEvents: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "swarm_completion_events_dropped_total",
			Help: "Downstream events dropped because the queue buffer was full.",
		}),
	}
	m.registry.MustRegister(
		m.QuestsStarted,
		m.QuestsCompleted,
		m.QuestsFailed,
		m.ConnectedAgents,
		m.ActiveQuests,
		m.DroppedEvents,
	)
	return m
}

// Handler serves the metric set in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
