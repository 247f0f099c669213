package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveConnections tracks websocket connections currently open.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pollroom_active_connections",
			Help: "Number of open websocket connections",
		},
	)

	// RegisteredParticipants tracks students currently on the roster.
	RegisteredParticipants = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pollroom_registered_participants",
			Help: "Number of registered participants",
		},
	)

	// InboundEvents counts received events by name.
	InboundEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollroom_inbound_events_total",
			Help: "Total number of inbound websocket events",
		},
		[]string{"event"},
	)

	// PollsCreated counts polls that reached the active state.
	PollsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pollroom_polls_created_total",
			Help: "Total number of polls started",
		},
	)

	// AnswersRecorded counts accepted answer submissions.
	AnswersRecorded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pollroom_answers_recorded_total",
			Help: "Total number of accepted answers",
		},
	)

	// EventErrors counts domain errors relayed back to clients.
	EventErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pollroom_event_errors_total",
			Help: "Total number of error events sent to clients",
		},
		[]string{"event"},
	)
)
