package repository

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// lastSuccessTimestamp is a Gauge that captures the timestamp of the last
	// update where all steps succeeded
	lastSuccessTimestamp *prometheus.GaugeVec
	// stepCount is a Counter vector of update steps
	stepCount *prometheus.CounterVec
	// stepLatency is a Histogram vector that keeps track of step durations
	stepLatency *prometheus.HistogramVec
	// syncRestartCount counts svn2git restarts after git-svn died of signal 13
	syncRestartCount *prometheus.CounterVec
)

// EnableMetrics will enable metrics collection for mirror updates.
// Available metrics are...
//   - last_success_timestamp - (tags: repo)
//     A Gauge that captures the Timestamp of the last successful update per repo.
//   - step_count - (tags: repo,step,success)
//     A Counter for each step (sync|strip|push) tagged with the result (success=true|false)
//   - step_latency_seconds - (tags: repo,step)
//     A Histogram that keeps track of the step latency per repo.
//   - sync_restart_count - (tags: repo)
//     A Counter of svn2git restarts.
func EnableMetrics(metricsNamespace string, registerer prometheus.Registerer) {
	lastSuccessTimestamp = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "last_success_timestamp",
		Help:      "Timestamp of the last successful mirror update",
	},
		[]string{
			// name of the repository
			"repo",
		},
	)

	stepCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "step_count",
		Help:      "Count of mirror update steps",
	},
		[]string{
			// name of the repository
			"repo",
			// name of the step
			"step",
			// Whether the step was successful or not
			"success",
		},
	)

	// svn2git and bfg on big repositories take minutes
	stepLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "step_latency_seconds",
		Help:      "Latency for mirror update steps",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800, 3600},
	},
		[]string{
			"repo",
			"step",
		},
	)

	syncRestartCount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "sync_restart_count",
		Help:      "Count of svn2git restarts after git-svn died of signal 13",
	},
		[]string{
			"repo",
		},
	)

	registerer.MustRegister(
		lastSuccessTimestamp,
		stepCount,
		stepLatency,
		syncRestartCount,
	)
}

// recordUpdate sets last success timestamp if all steps succeeded
func recordUpdate(repo string, success bool) {
	// if metrics not enabled return
	if lastSuccessTimestamp == nil || !success {
		return
	}
	lastSuccessTimestamp.With(prometheus.Labels{
		"repo": repo,
	}).Set(float64(time.Now().Unix()))
}

// SetLastSuccess sets last success timestamp of the repository, it is used
// to carry timestamps of the previous runs over to the current one
func SetLastSuccess(repo string, ts time.Time) {
	if lastSuccessTimestamp == nil {
		return
	}
	lastSuccessTimestamp.With(prometheus.Labels{
		"repo": repo,
	}).Set(float64(ts.Unix()))
}

func recordStep(repo, step string, success bool) {
	if stepCount == nil {
		return
	}
	stepCount.With(prometheus.Labels{
		"repo":    repo,
		"step":    step,
		"success": strconv.FormatBool(success),
	}).Inc()
}

func updateStepLatency(repo, step string, start time.Time) {
	if stepLatency == nil {
		return
	}
	stepLatency.WithLabelValues(repo, step).Observe(time.Since(start).Seconds())
}

func recordSyncRestart(repo string) {
	if syncRestartCount == nil {
		return
	}
	syncRestartCount.WithLabelValues(repo).Inc()
}
