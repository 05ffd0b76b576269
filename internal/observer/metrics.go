package observer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricsEnabled = true

// InitMetrics toggles metric collection. Registration happens at package
// init either way; disabled mode just stops observations.
func InitMetrics(enabled bool) {
	metricsEnabled = enabled
}

var (
	eventLabels  = []string{"event_type"}
	dbLabels     = []string{"operation", "entity", "status"}
	actionLabels = []string{"action_type", "status"}

	// Webhook surface
	WebhookRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_webhook_requests_total",
			Help: "Total webhook requests, labeled by endpoint and outcome.",
		},
		[]string{"endpoint", "outcome"},
	)

	// Ingestion stream
	EventsReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_events_received_total",
			Help: "Total events received from the ingestion stream.",
		},
		eventLabels,
	)
	EventsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_events_processed_total",
			Help: "Total events successfully processed and acknowledged.",
		},
		eventLabels,
	)
	EventsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_events_failed_total",
			Help: "Total events that failed processing (resulting in NAK or DLQ).",
		},
		eventLabels,
	)
	EventProcessingDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_pipeline_event_processing_duration_seconds",
			Help:    "Histogram of event processing durations.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~20s
		},
		eventLabels,
	)

	// Database
	DbOperationDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crm_pipeline_db_operation_duration_seconds",
			Help:    "Histogram of database operation durations.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		dbLabels,
	)

	// Bot
	BotRepliesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_bot_replies_total",
			Help: "Total bot replies issued, labeled by reply kind.",
		},
		[]string{"kind"},
	)

	// Automation engine
	AutomationTasksSubmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_automation_tasks_submitted_total",
			Help: "Total automation fire tasks submitted to the worker pool.",
		},
		[]string{"trigger"},
	)
	AutomationTasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_automation_tasks_processed_total",
			Help: "Total automation fire tasks processed, labeled by final status.",
		},
		[]string{"trigger", "status"},
	)
	AutomationQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crm_pipeline_automation_queue_length",
		Help: "Approximate number of automation tasks waiting in the pool queue.",
	})
	AutomationActionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_automation_actions_total",
			Help: "Total automation actions executed, labeled by action type and status.",
		},
		actionLabels,
	)

	// Campaign dispatch
	CampaignSegmentSendsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_campaign_segment_sends_total",
			Help: "Total per-segment campaign submissions, labeled by outcome.",
		},
		[]string{"outcome"},
	)
	DispatchDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "crm_pipeline_dispatch_duration_seconds",
		Help:    "Histogram of full multi-segment dispatch durations.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
	})

	// Delivery counter updater
	CounterUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_counter_updates_total",
			Help: "Total delivery counter updates, labeled by event type and path taken.",
		},
		[]string{"event_type", "path"},
	)

	// DLQ worker
	DLQTasksProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_dlq_tasks_processed_total",
			Help: "Total DLQ messages processed, labeled by final status.",
		},
		[]string{"status"},
	)
	DLQQueueLength = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "crm_pipeline_dlq_queue_length",
		Help: "Current number of messages waiting in the internal DLQ worker channel.",
	})
	DeadLetterEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_pipeline_dead_letter_events_total",
			Help: "Total events persisted to the dead letter table, labeled by source.",
		},
		[]string{"source"},
	)
)

// ObserveDbOperationDuration records the duration of a database operation.
func ObserveDbOperationDuration(operation, entity string, duration time.Duration, err error) {
	if !metricsEnabled {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	DbOperationDurationSeconds.WithLabelValues(operation, entity, status).Observe(duration.Seconds())
}

// IncEventReceived records receipt of one stream event.
func IncEventReceived(eventType string) {
	if !metricsEnabled {
		return
	}
	EventsReceivedTotal.WithLabelValues(eventType).Inc()
}

// IncEventProcessed records successful processing of one stream event.
func IncEventProcessed(eventType string, duration time.Duration) {
	if !metricsEnabled {
		return
	}
	EventsProcessedTotal.WithLabelValues(eventType).Inc()
	EventProcessingDurationSeconds.WithLabelValues(eventType).Observe(duration.Seconds())
}

// IncEventFailed records a failed stream event.
func IncEventFailed(eventType string) {
	if !metricsEnabled {
		return
	}
	EventsFailedTotal.WithLabelValues(eventType).Inc()
}

// IncWebhookRequest records one webhook request outcome.
func IncWebhookRequest(endpoint, outcome string) {
	if !metricsEnabled {
		return
	}
	WebhookRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
}

// IncBotReply records one bot reply.
func IncBotReply(kind string) {
	if !metricsEnabled {
		return
	}
	BotRepliesTotal.WithLabelValues(kind).Inc()
}

// IncAutomationSubmitted records one automation task submission.
func IncAutomationSubmitted(trigger string) {
	if !metricsEnabled {
		return
	}
	AutomationTasksSubmittedTotal.WithLabelValues(trigger).Inc()
}

// IncAutomationProcessed records one finished automation task.
func IncAutomationProcessed(trigger, status string) {
	if !metricsEnabled {
		return
	}
	AutomationTasksProcessedTotal.WithLabelValues(trigger, status).Inc()
}

// SetAutomationQueueLength updates the pool queue gauge.
func SetAutomationQueueLength(n int) {
	if !metricsEnabled {
		return
	}
	AutomationQueueLength.Set(float64(n))
}

// IncAutomationAction records one executed automation action.
func IncAutomationAction(actionType, status string) {
	if !metricsEnabled {
		return
	}
	AutomationActionsTotal.WithLabelValues(actionType, status).Inc()
}

// IncSegmentSend records one per-segment campaign submission outcome.
func IncSegmentSend(outcome string) {
	if !metricsEnabled {
		return
	}
	CampaignSegmentSendsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDispatchDuration records a full dispatch duration.
func ObserveDispatchDuration(duration time.Duration) {
	if !metricsEnabled {
		return
	}
	DispatchDurationSeconds.Observe(duration.Seconds())
}

// IncCounterUpdate records one delivery counter update and the path taken
// (atomic, degraded, dropped, failed).
func IncCounterUpdate(eventType, path string) {
	if !metricsEnabled {
		return
	}
	CounterUpdatesTotal.WithLabelValues(eventType, path).Inc()
}

// IncDLQProcessed records one DLQ message outcome.
func IncDLQProcessed(status string) {
	if !metricsEnabled {
		return
	}
	DLQTasksProcessedTotal.WithLabelValues(status).Inc()
}

// SetDLQQueueLength updates the DLQ channel gauge.
func SetDLQQueueLength(n int) {
	if !metricsEnabled {
		return
	}
	DLQQueueLength.Set(float64(n))
}

// IncDeadLetterEvent records one persisted dead letter row.
func IncDeadLetterEvent(source string) {
	if !metricsEnabled {
		return
	}
	DeadLetterEventsTotal.WithLabelValues(source).Inc()
}
