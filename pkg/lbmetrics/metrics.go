// Prometheus collectors for the heartbeat engine
package lbmetrics

import (
	"runtime"

	"github.com/function61/gokit/dynversion"
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	TriggersTotal        *prometheus.CounterVec
	TxConflictsTotal     prometheus.Counter
	IncidentsOpenedTotal *prometheus.CounterVec
	AgentResultsTotal    *prometheus.CounterVec
	ServiceStatus        *prometheus.GaugeVec
	BuildInfo            *prometheus.GaugeVec
}

type Bundle struct {
	Registry *prometheus.Registry
	Metrics  *Metrics
}

func NewBundle() *Bundle {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TriggersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lovebeat_triggers_total",
				Help: "Heartbeats received, labeled by service.",
			},
			[]string{"service_id"},
		),

		TxConflictsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "lovebeat_tx_conflicts_total",
				Help: "Optimistic transactions that lost a race and were retried.",
			},
		),

		IncidentsOpenedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lovebeat_incident_phases_opened_total",
				Help: "Incident phases opened, labeled by alert status.",
			},
			[]string{"status"},
		),

		AgentResultsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lovebeat_agent_results_total",
				Help: "Outcomes of agent claims and confirms.",
			},
			[]string{"action", "result"},
		),

		ServiceStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lovebeat_service_status",
				Help: "1 for the status a service was last evaluated to, 0 for the others.",
			},
			[]string{"service_id", "status"},
		),

		BuildInfo: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "lovebeat_build_info",
				Help: "Build/runtime info exposed as a gauge set to 1.",
			},
			[]string{"version", "go_version"},
		),
	}

	reg.MustRegister(
		m.TriggersTotal,
		m.TxConflictsTotal,
		m.IncidentsOpenedTotal,
		m.AgentResultsTotal,
		m.ServiceStatus,
		m.BuildInfo,
	)

	m.BuildInfo.WithLabelValues(dynversion.Version, runtime.Version()).Set(1)

	return &Bundle{Registry: reg, Metrics: m}
}

var statuses = []string{"ok", "warning", "error", "maint"}

// one-hot over the known statuses so queries can match status="error" == 1
func (m *Metrics) ObserveStatus(serviceId string, status string) {
	for _, candidate := range statuses {
		value := 0.0
		if candidate == status {
			value = 1
		}

		m.ServiceStatus.WithLabelValues(serviceId, candidate).Set(value)
	}
}

func (m *Metrics) ForgetService(serviceId string) {
	m.TriggersTotal.DeleteLabelValues(serviceId)

	for _, status := range statuses {
		m.ServiceStatus.DeleteLabelValues(serviceId, status)
	}
}
