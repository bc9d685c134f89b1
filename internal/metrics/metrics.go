package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Ingest metrics
	EventsIngested = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odo_events_ingested_total",
			Help: "Playback events accepted, by event type",
		},
		[]string{"event_type"},
	)

	EventsRejected = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "odo_events_rejected_total",
			Help: "Playback events rejected by validation",
		},
	)

	// Listening record state machine
	RecordsOpened = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "odo_listening_records_opened_total",
			Help: "Listening records opened by start events",
		},
	)

	RecordsClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odo_listening_records_closed_total",
			Help: "Listening records closed, by close reason",
		},
		[]string{"reason"},
	)

	CloseNoops = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "odo_listening_close_noops_total",
			Help: "Finish/skip events that matched no open record",
		},
	)

	// Session arbitration
	SessionRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odo_session_rejections_total",
			Help: "Session validations rejected, by classified reason",
		},
		[]string{"reason"},
	)

	SessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odo_sessions_created_total",
			Help: "Login sessions created, by device class",
		},
		[]string{"device_class"},
	)

	// Aggregation
	AggregateUpdateFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odo_aggregate_update_failures_total",
			Help: "Aggregate counter updates that failed after a record closure",
		},
		[]string{"table"},
	)

	// Background jobs
	JobsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "odo_worker_jobs_processed_total",
			Help: "Background jobs processed, by type and outcome",
		},
		[]string{"type", "outcome"},
	)
)

func Register() {
	prometheus.MustRegister(
		EventsIngested,
		EventsRejected,
		RecordsOpened,
		RecordsClosed,
		CloseNoops,
		SessionRejections,
		SessionsCreated,
		AggregateUpdateFailures,
		JobsProcessed,
	)
}

// Handler returns the /metrics endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
