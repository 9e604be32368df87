// Package slotstore implements the slot allocator and chunk metadata table
// that bind world-space chunk coordinates to world-buffer slots. It is
// grounded on the donor's GpuBufferManager slot
// bookkeeping in voxelrt/rt/gpu/manager.go (the free-stack SlotAllocator
// primitive, Alloc/FreeSlot) and on manager_compression.go's per-slot
// dirty-bit tracking, extended here with LRU eviction subject to a keep
// set — a behavior the donor's append-only allocator never needed because
// it had no fixed capacity.
package slotstore

import (
	"fmt"

	"github.com/brackenworld/voxelcore/addressing"
	"github.com/brackenworld/voxelcore/metrics"
	"github.com/brackenworld/voxelcore/voxelerr"
)

// CPU-only bookkeeping bits, distinct from ChunkMeta.Flags (see metadata.go
// for why the wire field cannot also carry these).
const (
	FlagGenerated       uint32 = 1 << 0
	FlagDirtyMesh       uint32 = 1 << 1
	FlagDirtyLight      uint32 = 1 << 2
	FlagPendingEviction uint32 = 1 << 3
)

// DirtyKind selects which dirty bit MarkDirty/ClearDirty operates on.
type DirtyKind int

const (
	DirtyMesh DirtyKind = iota
	DirtyLight
)

// AllocateResult reports the outcome of Allocate: a bare new slot, or one
// recovered by evicting a previously resident chunk.
type AllocateResult struct {
	Slot         uint32
	Evicted      bool
	EvictedCoord addressing.ChunkCoord
}

// Logger is the minimal logging surface the allocator needs; satisfied by
// *voxelcore.DefaultLogger or voxelcore.NewNopLogger().
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Infof(string, ...any)  {}

// Allocator owns the CPU-local mapping between chunk coordinates and world
// buffer slots, the free-slot stack, and the per-slot metadata mirror. It
// is touched only from the orchestrator's main thread; no internal
// locking is performed.
type Allocator struct {
	capacity uint32
	coordOf  []addressing.ChunkCoord
	occupied []bool
	slotOf   map[addressing.ChunkCoord]uint32
	meta     []ChunkMeta
	state    []uint32

	free []uint32
	tail uint32

	log Logger
	met *metrics.Registry
}

// SetMetrics attaches a metrics.Registry the allocator reports allocation,
// eviction, and residency counts to. Optional; a nil registry (the
// default) disables reporting. Set once, before the allocator is used
// concurrently with readers of the registry.
func (a *Allocator) SetMetrics(m *metrics.Registry) {
	a.met = m
}

// New creates an Allocator with a fixed capacity of N slots, chosen at
// startup and never resized, matching the world buffer's fixed size.
func New(capacity uint32, log Logger) *Allocator {
	if log == nil {
		log = noopLogger{}
	}
	return &Allocator{
		capacity: capacity,
		coordOf:  make([]addressing.ChunkCoord, capacity),
		occupied: make([]bool, capacity),
		slotOf:   make(map[addressing.ChunkCoord]uint32, capacity),
		meta:     make([]ChunkMeta, capacity),
		state:    make([]uint32, capacity),
		log:      log,
	}
}

// Capacity returns N, the fixed slot count.
func (a *Allocator) Capacity() uint32 { return a.capacity }

// Lookup returns the slot currently holding coord, if resident.
func (a *Allocator) Lookup(coord addressing.ChunkCoord) (uint32, bool) {
	s, ok := a.slotOf[coord]
	return s, ok
}

// Meta returns the metadata entry currently recorded for slot s.
func (a *Allocator) Meta(s uint32) ChunkMeta { return a.meta[s] }

// StateFlags returns the CPU-only bookkeeping bitmask for slot s.
func (a *Allocator) StateFlags(s uint32) uint32 { return a.state[s] }

// IterResident calls fn once for every currently resident (coord, slot)
// pair. Iteration order is unspecified.
func (a *Allocator) IterResident(fn func(coord addressing.ChunkCoord, slot uint32)) {
	for coord, slot := range a.slotOf {
		fn(coord, slot)
	}
}

// Allocate assigns a slot to coord, or returns its existing slot if coord
// is already resident (touching it). If no free slot exists, the
// least-recently-touched resident chunk outside keepSet is evicted and its
// slot reused; ties are broken by lowest slot index for determinism.
// Returns voxelerr.ErrCapacityExhausted if every resident slot is
// protected by keepSet.
func (a *Allocator) Allocate(coord addressing.ChunkCoord, frame uint32, keepSet map[addressing.ChunkCoord]bool) (AllocateResult, error) {
	if s, ok := a.slotOf[coord]; ok {
		a.Touch(s, frame)
		a.reportAllocation("already_resident")
		return AllocateResult{Slot: s}, nil
	}

	slot, evicted, evictedCoord, err := a.reserveSlot(keepSet)
	if err != nil {
		a.reportAllocation("capacity_exhausted")
		if a.met != nil {
			a.met.CapacityExhausted.Inc()
		}
		return AllocateResult{}, err
	}

	a.occupied[slot] = true
	a.coordOf[slot] = coord
	a.slotOf[coord] = slot
	a.meta[slot] = ChunkMeta{
		Flags:     packCxCz(coord.X, coord.Z),
		YPosition: coord.Y,
		SlotIndex: slot,
		Timestamp: frame,
	}
	a.state[slot] = 0

	a.log.Debugf("slotstore: allocated slot %d for chunk %+v (evicted=%v)", slot, coord, evicted)
	if evicted {
		a.reportAllocation("evicted_reused")
		if a.met != nil {
			a.met.SlotEvictions.Inc()
		}
	} else {
		a.reportAllocation("fresh")
	}
	a.reportResidency()
	return AllocateResult{Slot: slot, Evicted: evicted, EvictedCoord: evictedCoord}, nil
}

func (a *Allocator) reportAllocation(outcome string) {
	if a.met != nil {
		a.met.SlotAllocations.WithLabelValues(outcome).Inc()
	}
}

func (a *Allocator) reportResidency() {
	if a.met != nil {
		a.met.ResidentSlots.Set(float64(len(a.slotOf)))
	}
}

func (a *Allocator) reserveSlot(keepSet map[addressing.ChunkCoord]bool) (slot uint32, evicted bool, evictedCoord addressing.ChunkCoord, err error) {
	if n := len(a.free); n > 0 {
		slot = a.free[n-1]
		a.free = a.free[:n-1]
		return slot, false, addressing.ChunkCoord{}, nil
	}
	if a.tail < a.capacity {
		slot = a.tail
		a.tail++
		return slot, false, addressing.ChunkCoord{}, nil
	}

	victim, ok := a.pickEvictionCandidate(keepSet)
	if !ok {
		return 0, false, addressing.ChunkCoord{}, fmt.Errorf("slotstore.Allocate: %w", voxelerr.ErrCapacityExhausted)
	}
	victimCoord := a.coordOf[victim]
	a.freeSlot(victimCoord)
	// freeSlot pushed victim onto the free stack; take it back off, since
	// it is handed straight to the caller.
	a.free = a.free[:len(a.free)-1]
	return victim, true, victimCoord, nil
}

// pickEvictionCandidate selects the resident slot with the smallest
// timestamp among slots whose chunk is absent from keepSet, breaking ties
// by lowest slot index.
func (a *Allocator) pickEvictionCandidate(keepSet map[addressing.ChunkCoord]bool) (uint32, bool) {
	var best uint32
	var bestTimestamp uint32
	found := false
	for slot := uint32(0); slot < a.capacity; slot++ {
		if !a.occupied[slot] {
			continue
		}
		coord := a.coordOf[slot]
		if keepSet != nil && keepSet[coord] {
			continue
		}
		ts := a.meta[slot].Timestamp
		if !found || ts < bestTimestamp {
			best, bestTimestamp, found = slot, ts, true
		}
	}
	return best, found
}

// Free releases coord's slot, if resident. Silently succeeds otherwise.
func (a *Allocator) Free(coord addressing.ChunkCoord) {
	a.freeSlot(coord)
}

func (a *Allocator) freeSlot(coord addressing.ChunkCoord) {
	slot, ok := a.slotOf[coord]
	if !ok {
		return
	}
	delete(a.slotOf, coord)
	a.occupied[slot] = false
	a.meta[slot] = ChunkMeta{}
	a.state[slot] = 0
	a.free = append(a.free, slot)
	a.log.Debugf("slotstore: freed slot %d (was chunk %+v)", slot, coord)
	a.reportResidency()
}

// MarkDirty sets the mesh- or light-dirty bit for slot.
func (a *Allocator) MarkDirty(slot uint32, which DirtyKind) {
	switch which {
	case DirtyMesh:
		a.state[slot] |= FlagDirtyMesh
	case DirtyLight:
		a.state[slot] |= FlagDirtyLight
	}
}

// ClearDirty clears the mesh- or light-dirty bit for slot.
func (a *Allocator) ClearDirty(slot uint32, which DirtyKind) {
	switch which {
	case DirtyMesh:
		a.state[slot] &^= FlagDirtyMesh
	case DirtyLight:
		a.state[slot] &^= FlagDirtyLight
	}
}

// IsDirty reports whether slot's mesh- or light-dirty bit is set.
func (a *Allocator) IsDirty(slot uint32, which DirtyKind) bool {
	switch which {
	case DirtyMesh:
		return a.state[slot]&FlagDirtyMesh != 0
	case DirtyLight:
		return a.state[slot]&FlagDirtyLight != 0
	}
	return false
}

// MarkGenerated sets the generated bit for slot. Called by the
// orchestrator once terrain generation's submission fence has resolved,
// never by the shader itself.
func (a *Allocator) MarkGenerated(slot uint32) {
	a.state[slot] |= FlagGenerated
}

// IsGenerated reports whether slot's generated bit is set. Only generated
// slots are renderable.
func (a *Allocator) IsGenerated(slot uint32) bool {
	return a.state[slot]&FlagGenerated != 0
}

// Touch updates slot's timestamp to frame, the basis for LRU eviction
// ordering.
func (a *Allocator) Touch(slot uint32, frame uint32) {
	a.meta[slot].Timestamp = frame
}
