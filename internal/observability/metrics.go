package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	apiRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_api_requests_total",
			Help: "Total number of REST calls made to the chat backend.",
		},
		[]string{"op", "status"},
	)
	apiRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_client_api_request_duration_seconds",
			Help:    "REST call latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_client_ws_active_connections",
			Help: "Number of open socket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_ws_events_total",
			Help: "Total number of socket events.",
		},
		[]string{"direction", "event"},
	)
	messagesMergedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_messages_merged_total",
			Help: "Messages offered to a conversation store, by source and outcome.",
		},
		[]string{"source", "result"},
	)
	rollbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_client_rollbacks_total",
			Help: "Optimistic mutations rolled back after a failed REST call.",
		},
		[]string{"op"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_client_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		apiRequestsTotal,
		apiRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		messagesMergedTotal,
		rollbacksTotal,
		amqpPublishErrorsTotal,
	)
}

// ObserveAPIRequest records one REST call. Status 0 means no response was received.
func ObserveAPIRequest(op string, status int, elapsed time.Duration) {
	apiRequestsTotal.WithLabelValues(op, strconv.Itoa(status)).Inc()
	apiRequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

// IncWSEvent counts a socket frame; direction is "in" or "out".
func IncWSEvent(direction, event string) {
	wsEventsTotal.WithLabelValues(direction, event).Inc()
}

// IncMerge counts a merge attempt.
func IncMerge(source string, inserted bool) {
	result := "duplicate"
	if inserted {
		result = "inserted"
	}
	messagesMergedTotal.WithLabelValues(source, result).Inc()
}

func IncRollback(op string) {
	rollbacksTotal.WithLabelValues(op).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
