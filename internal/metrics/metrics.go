// Package metrics exposes oven telemetry as Prometheus metrics.
package metrics

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"reflow_oven"
	"reflow_oven/internal/engine"
)

const namespace = "reflow"

// Metrics is a telemetry sink backed by its own registry.
type Metrics struct {
	registry *prometheus.Registry

	temperature prometheus.Gauge
	target      prometheus.Gauge
	heater      prometheus.Gauge
	mode        *prometheus.GaugeVec
	stages      prometheus.Counter
	messages    *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "temperature_celsius",
			Help: "Latest oven temperature.",
		}),
		target: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "target_celsius",
			Help: "Setpoint in force for the latest reading.",
		}),
		heater: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "heater_on",
			Help: "1 while the heater output is on.",
		}),
		mode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "mode",
			Help: "1 for the active mode, 0 otherwise.",
		}, []string{"mode"}),
		stages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "stage_entries_total",
			Help: "Profile stages entered.",
		}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_total",
			Help: "Operator messages emitted, by level.",
		}, []string{"level"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.temperature, m.target, m.heater, m.mode, m.stages, m.messages,
	)
	for _, md := range engine.Modes {
		m.mode.WithLabelValues(md.String()).Set(0)
	}
	m.mode.WithLabelValues(engine.ModeOff.String()).Set(1)
	return m
}

// GaugeFunc registers a gauge whose value is read on scrape.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: name, Help: help,
	}, fn))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Publish implements telemetry.Sink.
func (m *Metrics) Publish(kind string, payload any) {
	switch p := payload.(type) {
	case reflow_oven.ReadingsPayload:
		if n := len(p.Readings); n > 0 {
			m.temperature.Set(p.Readings[n-1])
			m.target.Set(p.Targets[n-1])
		}
	case reflow_oven.HeaterPayload:
		if p.Heater {
			m.heater.Set(1)
		} else {
			m.heater.Set(0)
		}
	case reflow_oven.ModePayload:
		m.mode.Reset()
		for _, md := range engine.Modes {
			v := 0.0
			if md.String() == p.Mode {
				v = 1
			}
			m.mode.WithLabelValues(md.String()).Set(v)
		}
	case reflow_oven.StagePayload:
		m.stages.Inc()
	case reflow_oven.MessagePayload:
		m.messages.WithLabelValues(messageLevel(p.Message)).Inc()
	}
}

// messageLevel extracts the "ERROR:"/"INFO:" style prefix of a message.
func messageLevel(text string) string {
	if i := strings.Index(text, ":"); i > 0 {
		return strings.ToLower(text[:i])
	}
	return "info"
}
