// Package metrics exposes Prometheus collectors for the dashboard shell.
//
// A Metrics value owns its own prometheus.Registry so that several shells
// (and tests) can coexist in one process. All recording methods are safe to
// call on a nil *Metrics.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all dashboard collectors.
type Metrics struct {
	reg *prometheus.Registry

	// Registry metrics
	Registrations   prometheus.Counter
	Deregistrations *prometheus.CounterVec
	RegistryApps    prometheus.Gauge

	// Render metrics
	RenderTasks   prometheus.Counter
	RenderSkipped prometheus.Counter
	IconsRendered prometheus.Gauge
	TaskFaults    *prometheus.CounterVec
	TaskDuration  *prometheus.HistogramVec

	// View metrics
	ViewSwitches *prometheus.CounterVec
	Ready        prometheus.Gauge
}

// New creates a Metrics value registered on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		Registrations: f.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_registrations_total",
			Help: "Total number of app registrations received",
		}),
		Deregistrations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_deregistrations_total",
			Help: "Total number of app deregistrations received",
		}, []string{"result"}),
		RegistryApps: f.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_registry_apps",
			Help: "Number of apps in the registry",
		}),

		RenderTasks: f.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_render_tasks_total",
			Help: "Total number of icon render tasks executed",
		}),
		RenderSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "dashboard_render_skipped_total",
			Help: "Render tasks skipped because the app was no longer current",
		}),
		IconsRendered: f.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_icons_rendered",
			Help: "Number of icons currently on the home grid",
		}),
		TaskFaults: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_task_faults_total",
			Help: "Total number of render goroutine tasks that panicked",
		}, []string{"task"}),
		TaskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dashboard_task_duration_seconds",
			Help:    "Render goroutine task duration in seconds",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
		}, []string{"task"}),

		ViewSwitches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_view_switches_total",
			Help: "Total number of view switches by target view",
		}, []string{"view"}),
		Ready: f.NewGauge(prometheus.GaugeOpts{
			Name: "dashboard_ready",
			Help: "1 while the dashboard UI is ready, 0 otherwise",
		}),
	}
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler returns an HTTP handler serving the collectors in text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

// RecordRegistration counts a registration and updates the registry size.
func (m *Metrics) RecordRegistration(registrySize int) {
	if m == nil {
		return
	}
	m.Registrations.Inc()
	m.RegistryApps.Set(float64(registrySize))
}

// RecordDeregistration counts a deregistration with its result
// ("removed" or "not_found") and updates the registry size.
func (m *Metrics) RecordDeregistration(result string, registrySize int) {
	if m == nil {
		return
	}
	m.Deregistrations.WithLabelValues(result).Inc()
	m.RegistryApps.Set(float64(registrySize))
}

// RecordRender counts an executed render task and the resulting icon count.
func (m *Metrics) RecordRender(icons int) {
	if m == nil {
		return
	}
	m.RenderTasks.Inc()
	m.IconsRendered.Set(float64(icons))
}

// RecordRenderSkipped counts a render task dropped as stale.
func (m *Metrics) RecordRenderSkipped() {
	if m == nil {
		return
	}
	m.RenderSkipped.Inc()
}

// SetIcons sets the rendered icon gauge.
func (m *Metrics) SetIcons(n int) {
	if m == nil {
		return
	}
	m.IconsRendered.Set(float64(n))
}

// RecordTask observes a finished render goroutine task. Task names of the
// form "<kind>:<app>" are labelled by kind only, so the series count does
// not grow with the set of app names.
func (m *Metrics) RecordTask(name string, took time.Duration, faulted bool) {
	if m == nil {
		return
	}
	kind, _, _ := strings.Cut(name, ":")
	m.TaskDuration.WithLabelValues(kind).Observe(took.Seconds())
	if faulted {
		m.TaskFaults.WithLabelValues(kind).Inc()
	}
}

// RecordViewSwitch counts a switch to view ("grid" or "app").
func (m *Metrics) RecordViewSwitch(view string) {
	if m == nil {
		return
	}
	m.ViewSwitches.WithLabelValues(view).Inc()
}

// SetReady records the readiness flag.
func (m *Metrics) SetReady(ready bool) {
	if m == nil {
		return
	}
	if ready {
		m.Ready.Set(1)
	} else {
		m.Ready.Set(0)
	}
}
