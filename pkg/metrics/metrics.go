// Package metrics exports scenario and step outcomes as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"dev/bravebird/login-scenarios/pkg/models"
)

const namespace = "login_scenarios"

// Recorder observes runner results. A nil *Recorder ignores everything.
type Recorder struct {
	scenarios        *prometheus.CounterVec
	scenarioDuration *prometheus.HistogramVec
	steps            *prometheus.CounterVec
	stepDuration     *prometheus.HistogramVec
	failures         *prometheus.CounterVec
	activeRuns       prometheus.Gauge
}

// New registers the collectors on reg. Pass prometheus.DefaultRegisterer to
// serve them from promhttp.Handler().
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		scenarios: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scenarios_total",
			Help:      "Completed scenarios by name and status.",
		}, []string{"scenario", "status"}),
		scenarioDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scenario_duration_seconds",
			Help:      "Wall time of a scenario from first to last executed step.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"scenario"}),
		steps: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_total",
			Help:      "Executed steps by type and status.",
		}, []string{"type", "status"}),
		stepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of a single step.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		failures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_failures_total",
			Help:      "Failed steps by error kind.",
		}, []string{"kind"}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Suite runs currently executing.",
		}),
	}
}

func (r *Recorder) StepCompleted(res models.StepResult) {
	if r == nil {
		return
	}
	r.steps.WithLabelValues(string(res.Type), string(res.Status)).Inc()
	r.stepDuration.WithLabelValues(string(res.Type)).Observe(seconds(res.Duration))
	if res.Status == models.StatusFailed {
		r.failures.WithLabelValues(res.ErrorKind).Inc()
	}
}

func (r *Recorder) ScenarioCompleted(res models.ScenarioResult) {
	if r == nil {
		return
	}
	r.scenarios.WithLabelValues(res.ScenarioName, string(res.Status)).Inc()
	r.scenarioDuration.WithLabelValues(res.ScenarioName).Observe(seconds(res.TotalDuration))
}

// RunStarted and RunFinished bracket a suite run
func (r *Recorder) RunStarted() {
	if r != nil {
		r.activeRuns.Inc()
	}
}

func (r *Recorder) RunFinished() {
	if r != nil {
		r.activeRuns.Dec()
	}
}

func seconds(ms int64) float64 {
	return (time.Duration(ms) * time.Millisecond).Seconds()
}
