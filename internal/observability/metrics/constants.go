// Package metrics provides constants used across metric definitions.
package metrics

// Operation names recorded by the datastore collector.
const (
	OpHistorySave  = "history_save"
	OpHistoryList  = "history_list"
	OpHistoryCount = "history_count"
	OpPetCreate    = "pet_create"
	OpPetGet       = "pet_get"
	OpPing         = "ping"
)

// Status label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// latency buckets from 1ms to ~4s
var defaultLatencyBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 4}
