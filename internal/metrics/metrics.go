// Package metrics holds the Prometheus collectors for project persistence.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// No project or user ids in labels.
var (
	// AutosaveWritesTotal counts persistence writes issued by the autosave
	// pipeline, by result (ok/error).
	AutosaveWritesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_autosave_writes_total",
		Help: "Total number of autosave writes, by result.",
	}, []string{"result"})

	// AutosaveCoalescedTotal counts documents replaced by a newer one
	// before they were written.
	AutosaveCoalescedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "editor_autosave_coalesced_total",
		Help: "Total number of queued project documents superseded before being written.",
	})

	AutosaveWriteSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "editor_autosave_write_seconds",
		Help:    "Duration of autosave writes.",
		Buckets: prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	// ProjectLoadsTotal counts project loads by result (ok/not_found/error).
	ProjectLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_project_loads_total",
		Help: "Total number of project loads, by result.",
	}, []string{"result"})

	// ProjectCacheTotal counts project cache lookups by result (hit/miss).
	ProjectCacheTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "editor_project_cache_total",
		Help: "Total number of project cache lookups, by result.",
	}, []string{"result"})
)

const (
	ResultOK       = "ok"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultHit      = "hit"
	ResultMiss     = "miss"
)
