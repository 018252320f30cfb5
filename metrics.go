package redis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pipelineDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "respipe",
			Name:      "pipeline_depth",
			Help:      "Number of commands awaiting a reply across all clients.",
		},
	)

	reconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "respipe",
			Name:      "reconnects_total",
			Help:      "Successful reconnects after a dropped connection.",
		},
	)

	reconnectFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "respipe",
			Name:      "reconnect_failures_total",
			Help:      "Reconnect attempts abandoned after exhausting the retry policy or failing auth replay.",
		},
	)

	consumerPoolDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "respipe",
			Name:      "consumer_pool_depth",
			Help:      "Queued tasks in a consumer's worker pool.",
		},
		[]string{"group", "session"},
	)

	consumerAcksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "respipe",
			Name:      "consumer_acks_total",
			Help:      "Stream entries acknowledged after a successful handler.",
		},
		[]string{"stream", "group"},
	)

	consumerFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "respipe",
			Name:      "consumer_handler_failures_total",
			Help:      "Stream entries whose handler returned an error and were left unacknowledged.",
		},
		[]string{"stream", "group"},
	)
)
