package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/covid-projections/covid-data-public/internal/domain/job"
)

const namespace = "covid_data_update"

// allStatuses lists the job statuses exported as a one-hot gauge.
var allStatuses = []job.Status{
	job.StatusSucceeded,
	job.StatusFailed,
	job.StatusTolerated,
	job.StatusSkipped,
	job.StatusNotRun,
}

// Recorder holds the gauges describing one run.
type Recorder struct {
	registry *prometheus.Registry

	runSuccess   prometheus.Gauge
	runTimestamp prometheus.Gauge
	runDuration  prometheus.Gauge
	jobStatus    *prometheus.GaugeVec
	jobDuration  *prometheus.GaugeVec
	jobExitCode  *prometheus.GaugeVec
}

// NewRecorder registers the run gauges on a fresh registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		runSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_success",
			Help:      "1 if the last update run completed, 0 if it aborted.",
		}),
		runTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_finished_timestamp_seconds",
			Help:      "Unix time the last update run finished.",
		}),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last update run.",
		}),
		jobStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_status",
			Help:      "1 for the status each job ended with in the last run.",
		}, []string{"job", "status"}),
		jobDuration: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of each job in the last run.",
		}, []string{"job"}),
		jobExitCode: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "job_exit_code",
			Help:      "Exit code of each job that ran in the last run.",
		}, []string{"job"}),
	}

	r.registry.MustRegister(
		r.runSuccess,
		r.runTimestamp,
		r.runDuration,
		r.jobStatus,
		r.jobDuration,
		r.jobExitCode,
	)

	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Observe sets every gauge from the finished run.
func (r *Recorder) Observe(run *job.Run) {
	if run.Succeeded() {
		r.runSuccess.Set(1)
	} else {
		r.runSuccess.Set(0)
	}

	if !run.FinishedAt.IsZero() {
		r.runTimestamp.Set(float64(run.FinishedAt.UnixNano()) / 1e9)
	}

	r.runDuration.Set(run.Duration().Seconds())

	for _, result := range run.Results {
		for _, status := range allStatuses {
			value := 0.0
			if result.Status == status {
				value = 1
			}

			r.jobStatus.WithLabelValues(result.Name, string(status)).Set(value)
		}

		if result.StartedAt.IsZero() {
			continue
		}

		r.jobDuration.WithLabelValues(result.Name).Set(result.Duration().Seconds())
		r.jobExitCode.WithLabelValues(result.Name).Set(float64(result.ExitCode))
	}
}

// WriteTextfile writes the gathered metrics to path in text exposition format.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics file: %w", err)
	}

	return nil
}
