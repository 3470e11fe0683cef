// Package metrics exposes the monitoring loop's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/minewatch/emergency/internal/model"
)

// riskLevelValues maps the closed risk levels onto a gauge scale.
var riskLevelValues = map[model.RiskLevel]float64{
	model.RiskNormal:    0,
	model.RiskWarning:   1,
	model.RiskCritical:  2,
	model.RiskEmergency: 3,
}

type Metrics struct {
	Ticks                prometheus.Counter
	TickDuration         prometheus.Histogram
	TickErrors           prometheus.Counter
	RiskLevel            prometheus.Gauge
	DataQuality          prometheus.Gauge
	AlertsIngested       prometheus.Counter
	ProtocolExecutions   prometheus.Counter
	CollaboratorFailures prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Ticks: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_ticks_total",
			Help: "Completed monitoring cycles.",
		}),
		TickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "monitor_tick_duration_seconds",
			Help:    "Wall time of one monitoring cycle.",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		TickErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_tick_errors_total",
			Help: "Monitoring cycles that ended in an error.",
		}),
		RiskLevel: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_risk_level",
			Help: "Current risk level (0=NORMAL 1=WARNING 2=CRITICAL 3=EMERGENCY).",
		}),
		DataQuality: factory.NewGauge(prometheus.GaugeOpts{
			Name: "monitor_data_quality_score",
			Help: "Sensor data quality score of the latest assessment.",
		}),
		AlertsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_alerts_ingested_total",
			Help: "Alerts accepted into the bounded history.",
		}),
		ProtocolExecutions: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_protocol_executions_total",
			Help: "Emergency protocol executions triggered by the loop.",
		}),
		CollaboratorFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "monitor_analysis_failures_total",
			Help: "Failed or degraded analysis collaborator calls.",
		}),
	}
}

// ObserveAssessment records the gauges derived from one assessment.
func (m *Metrics) ObserveAssessment(a model.RiskAssessment) {
	if m == nil {
		return
	}
	m.RiskLevel.Set(riskLevelValues[a.CurrentLevel])
	m.DataQuality.Set(a.DataQuality)
	if a.Degraded {
		m.CollaboratorFailures.Inc()
	}
}
