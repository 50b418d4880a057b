package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// CommandsRouted counts text commands by the flow the router produced.
	CommandsRouted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "commands_routed_total",
			Help: "Text commands routed, by flow",
		},
		[]string{"flow"},
	)

	ExtractionFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "command_extraction_failures_total",
			Help: "Extraction calls that produced no usable result",
		},
	)

	GenAIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "genai_request_duration_seconds",
			Help:    "Latency of chat completion calls",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30},
		},
		[]string{"purpose", "outcome"},
	)

	// VisualizationFallbacks counts charts served by the deterministic
	// builder, labelled by why the generated config was rejected.
	VisualizationFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "visualization_fallbacks_total",
			Help: "Visualizations built by the fallback path",
		},
		[]string{"chart_type", "reason"},
	)

	BeneficiaryLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "beneficiary_lookups_total",
			Help: "Beneficiary searches by number of matches",
		},
		[]string{"result"},
	)
)

// Outcome labels shared by the histograms above.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)
