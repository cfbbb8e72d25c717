package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// StoreOperations counts blob store calls by backend, operation and outcome.
	StoreOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postboard_store_operations_total",
		Help: "Total number of blob store operations",
	}, []string{"backend", "operation", "result"})

	// StoreConflicts counts optimistic transaction retries.
	StoreConflicts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postboard_store_conflicts_total",
		Help: "Total number of read-modify-write conflicts that were retried",
	}, []string{"backend"})

	// RemoteFetches counts remote post list fetches by outcome.
	RemoteFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "postboard_remote_fetches_total",
		Help: "Total number of remote post list fetches",
	}, []string{"result"})

	// StreamDrops counts events dropped because a subscriber buffer was full.
	StreamDrops = promauto.NewCounter(prometheus.CounterOpts{
		Name: "postboard_stream_dropped_events_total",
		Help: "Total number of events dropped for slow websocket subscribers",
	})
)
