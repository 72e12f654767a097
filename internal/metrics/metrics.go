// Package metrics provides Prometheus metrics for version allocation
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Allocation paths
const (
	PathNew      = "new"
	PathContinue = "continue"
	PathUpgrade  = "upgrade"
)

// Head election outcomes
const (
	HeadElected = "elected"
	HeadCleared = "cleared"
)

// Metrics holds the versioning counters and histograms
type Metrics struct {
	VersionAllocationsTotal *prometheus.CounterVec
	VersionConflictsTotal   prometheus.Counter
	AllocationRetriesTotal  prometheus.Counter
	HeadElectionsTotal      *prometheus.CounterVec
	ForksTotal              prometheus.Counter
	AllocationDuration      prometheus.Histogram
}

// NewMetrics creates the metrics and registers them with reg.
// Pass prometheus.DefaultRegisterer in production and a fresh
// prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		VersionAllocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_version_allocations_total",
				Help: "Resolved intents by allocation path",
			},
			[]string{"path"},
		),
		VersionConflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lineage_version_conflicts_total",
				Help: "Unique (family_id, version_number) violations; non-zero means locking is broken",
			},
		),
		AllocationRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lineage_allocation_retries_total",
				Help: "Allocation transactions retried after a conflict or lock timeout",
			},
		),
		HeadElectionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "lineage_head_elections_total",
				Help: "HEAD re-elections after the HEAD entity was deleted",
			},
			[]string{"outcome"},
		),
		ForksTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "lineage_forks_total",
				Help: "Families created by forking an entity",
			},
		),
		AllocationDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "lineage_allocation_duration_seconds",
				Help:    "Time from transaction start to commit for version allocation, retries included",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

// RecordAllocation counts one resolved intent
func (m *Metrics) RecordAllocation(path string) {
	m.VersionAllocationsTotal.WithLabelValues(path).Inc()
}

// RecordHeadElection counts one HEAD re-election
func (m *Metrics) RecordHeadElection(outcome string) {
	m.HeadElectionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveAllocation records how long an allocation took
func (m *Metrics) ObserveAllocation(start time.Time) {
	m.AllocationDuration.Observe(time.Since(start).Seconds())
}
