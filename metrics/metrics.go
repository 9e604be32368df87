// Package metrics exposes the per-subsystem Prometheus instrumentation the
// world storage and kernel-dispatch core emits: slot allocations,
// evictions, terrain/modify/light dispatches, edit-queue depth, and
// lighting iterations run per frame. Grounded on the arx-os-arxos
// monitoring-middleware shape (promauto.NewCounterVec/NewGaugeVec against
// an explicit registry) since the donor repo itself carries no metrics
// layer; unlike that middleware's package-global collector, every
// Registry here is constructed explicitly and handed to the orchestrator
// at construction, never reached through a package-level variable.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric this module emits, all registered against a
// caller-supplied *prometheus.Registry rather than the global default
// registerer.
type Registry struct {
	SlotAllocations   *prometheus.CounterVec
	SlotEvictions     prometheus.Counter
	TerrainDispatches prometheus.Counter
	ModifyDispatches  prometheus.Counter
	LightDispatches   prometheus.Counter
	EditQueueDepth    prometheus.Gauge
	LightIterations   prometheus.Histogram
	ResidentSlots     prometheus.Gauge
	CapacityExhausted prometheus.Counter
}

// New creates a Registry and registers all of its metrics against reg.
// Passing a fresh prometheus.NewRegistry() keeps this core's metrics out
// of any process-wide default registry.
func New(reg *prometheus.Registry) *Registry {
	m := &Registry{
		SlotAllocations: promNewCounterVec(reg, prometheus.CounterOpts{
			Name: "voxelcore_slot_allocations_total",
			Help: "Total number of slot allocator Allocate calls, partitioned by outcome.",
		}, []string{"outcome"}),
		SlotEvictions: promNewCounter(reg, prometheus.CounterOpts{
			Name: "voxelcore_slot_evictions_total",
			Help: "Total number of LRU slot evictions performed under capacity pressure.",
		}),
		TerrainDispatches: promNewCounter(reg, prometheus.CounterOpts{
			Name: "voxelcore_terrain_dispatches_total",
			Help: "Total number of terrain generator kernel dispatches.",
		}),
		ModifyDispatches: promNewCounter(reg, prometheus.CounterOpts{
			Name: "voxelcore_modify_dispatches_total",
			Help: "Total number of modification kernel dispatches.",
		}),
		LightDispatches: promNewCounter(reg, prometheus.CounterOpts{
			Name: "voxelcore_light_dispatches_total",
			Help: "Total number of lighting kernel dispatch batches (one per RunLighting call, covering up to K iterations each).",
		}),
		EditQueueDepth: promNewGauge(reg, prometheus.GaugeOpts{
			Name: "voxelcore_edit_queue_depth",
			Help: "Number of edit commands queued for the next modification dispatch.",
		}),
		LightIterations: promNewHistogram(reg, prometheus.HistogramOpts{
			Name:    "voxelcore_light_iterations_per_dispatch",
			Help:    "Number of lighting propagation iterations actually run per dispatch before quiescence or budget.",
			Buckets: prometheus.LinearBuckets(1, 2, 8),
		}),
		ResidentSlots: promNewGauge(reg, prometheus.GaugeOpts{
			Name: "voxelcore_resident_slots",
			Help: "Number of world buffer slots currently holding a resident chunk.",
		}),
		CapacityExhausted: promNewCounter(reg, prometheus.CounterOpts{
			Name: "voxelcore_capacity_exhausted_total",
			Help: "Total number of allocations that failed with ErrCapacityExhausted.",
		}),
	}
	return m
}

func promNewCounter(reg *prometheus.Registry, opts prometheus.CounterOpts) prometheus.Counter {
	c := prometheus.NewCounter(opts)
	reg.MustRegister(c)
	return c
}

func promNewCounterVec(reg *prometheus.Registry, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	c := prometheus.NewCounterVec(opts, labels)
	reg.MustRegister(c)
	return c
}

func promNewGauge(reg *prometheus.Registry, opts prometheus.GaugeOpts) prometheus.Gauge {
	g := prometheus.NewGauge(opts)
	reg.MustRegister(g)
	return g
}

func promNewHistogram(reg *prometheus.Registry, opts prometheus.HistogramOpts) prometheus.Histogram {
	h := prometheus.NewHistogram(opts)
	reg.MustRegister(h)
	return h
}

// Nop returns a Registry backed by a private, never-exposed registry — for
// callers (tests, headless tools) that want the Registry surface without
// wiring a Prometheus HTTP endpoint.
func Nop() *Registry {
	return New(prometheus.NewRegistry())
}
