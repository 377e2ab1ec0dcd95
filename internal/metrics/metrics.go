package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for the webhook, the state machine and the sync pipeline.
var (
	WebhookEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wash_webhook_events_total",
			Help: "Device webhook deliveries by wash status and result code",
		},
		[]string{"wash_status", "result"},
	)

	WebhookDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wash_webhook_duration_seconds",
			Help:    "Time spent handling one device webhook",
			Buckets: prometheus.DefBuckets,
		},
	)

	TransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wash_transitions_total",
			Help: "Wash events applied to orders by outcome (applied, skipped, failed)",
		},
		[]string{"event", "outcome"},
	)

	HookFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wash_post_commit_hook_failures_total",
			Help: "Post-commit signals that a hook failed to handle",
		},
		[]string{"signal"},
	)

	JobsEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wash_sync_jobs_enqueued_total",
			Help: "Sync enqueue requests by queue and result (enqueued, collapsed)",
		},
		[]string{"queue", "result"},
	)

	JobsProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wash_sync_jobs_processed_total",
			Help: "Sync jobs handled by workers by queue and outcome",
		},
		[]string{"queue", "outcome"},
	)

	SyncOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wash_crm_sync_total",
			Help: "CRM push attempts by record type and result (synced, failed)",
		},
		[]string{"type", "result"},
	)

	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wash_sync_queue_depth",
			Help: "Pending jobs per sync queue",
		},
		[]string{"queue"},
	)

	ReconcileEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wash_reconcile_enqueued_total",
			Help: "Jobs re-driven by the reconciliation sweep per task",
		},
		[]string{"task"},
	)
)

var registerOnce sync.Once

// Register registers all Prometheus metrics
func Register() {
	registerOnce.Do(register)
}

func register() {
	prometheus.MustRegister(WebhookEventsTotal)
	prometheus.MustRegister(WebhookDuration)
	prometheus.MustRegister(TransitionsTotal)
	prometheus.MustRegister(HookFailuresTotal)
	prometheus.MustRegister(JobsEnqueuedTotal)
	prometheus.MustRegister(JobsProcessedTotal)
	prometheus.MustRegister(SyncOutcomesTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(ReconcileEnqueuedTotal)
}
