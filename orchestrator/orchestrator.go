// Package orchestrator implements the CPU-side component that decides
// which chunks to stream in/out, submits the per-frame unified dispatch,
// and reads back voxels for queries that cannot run on the GPU. It is
// the single component permitted to mutate chunk metadata and the only
// owner of the allocator and the per-frame command queues; it borrows,
// but does not own, the world buffer.
//
// Grounded on the donor's App/AppBuilder construction shape
// (app_builder.go: a Config-like struct of constructor parameters, no
// global state) and on its per-frame schedule loop in schedule.go, which
// this package's Update mirrors without the ECS scheduling machinery.
// This core has no systems or components, only allocate/edit/dispatch.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/time/rate"

	"github.com/brackenworld/voxelcore/addressing"
	"github.com/brackenworld/voxelcore/kernels"
	"github.com/brackenworld/voxelcore/metrics"
	"github.com/brackenworld/voxelcore/slotstore"
	"github.com/brackenworld/voxelcore/voxelerr"
)

// Logger is the minimal logging surface the orchestrator needs.
type Logger interface {
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
}

// Config bundles the orchestrator's constructor parameters.
// Configuration is always passed this way; no file or flag parsing
// happens in this package.
type Config struct {
	// Capacity is N, the fixed world buffer slot count.
	Capacity uint32
	// ViewRadius is how many chunks (Chebyshev distance) around the camera
	// are streamed in by Update.
	ViewRadius int32
	// KeepRadius is the protected radius within which chunks may never be
	// evicted.
	KeepRadius int32
	// Seed drives deterministic terrain generation.
	Seed uint32
	// MaxEditsPerFrame bounds the per-frame edit queue.
	MaxEditsPerFrame int
	// LightIterationsPerFrame is K, the lighting propagation step count a
	// normal frame runs.
	LightIterationsPerFrame int
	// FirstLightIterations is K for a chunk's very first lighting pass.
	// The orchestrator does not read it or schedule that pass: Update does
	// not mark newly allocated chunks light-dirty, so the caller runs it.
	FirstLightIterations int
}

// DefaultConfig returns reasonable defaults (N in 2,048-8,192; K 4-8
// incremental, 15+ on first generation).
func DefaultConfig() Config {
	return Config{
		Capacity:                4096,
		ViewRadius:              8,
		KeepRadius:              2,
		MaxEditsPerFrame:        10000,
		LightIterationsPerFrame: 6,
		FirstLightIterations:    16,
	}
}

// Event is an outward-facing notification the orchestrator emits for the
// owning application to consume: BlockBroken/BlockPlaced style hooks,
// replacing the donor's trait-object callbacks with a plain event queue
// game code drains each frame.
type Event struct {
	Kind     EventKind
	Position addressing.ChunkCoord
	BlockID  uint16
}

// EventKind enumerates the orchestrator's outward event types.
type EventKind int

const (
	EventBlockPlaced EventKind = iota
	EventBlockBroken
	EventChunkEvicted
)

// BlockAccessor is the narrow world-read surface query_voxel and the
// software edit/light fallback use; backed by a real GPU readback in
// production, and by an in-memory mirror in headless/test configurations.
type BlockAccessor = kernels.VoxelAccessor

// Orchestrator sequences per-frame allocation, edit, and lighting work
// against a slot allocator and a caller-provided BlockAccessor. It holds
// no GPU handles directly and does not own the raw GPU buffer; callers
// wire it to the real world buffer through BlockAccessor and to the
// unified dispatch through the chunks Update returns, DrainEdits, and
// DirtyLightChunks.
type Orchestrator struct {
	cfg   Config
	alloc *slotstore.Allocator
	log   Logger
	met   *metrics.Registry

	mu       sync.Mutex
	frame    uint32
	edits    []kernels.EditCommand
	events   []Event
	keepSet  map[addressing.ChunkCoord]bool
	dirtyLit map[addressing.ChunkCoord]bool

	editLimiter   *rate.Limiter
	radiusBackoff int32

	shuttingDown bool
}

// New constructs an Orchestrator. met may be nil (metrics disabled).
func New(cfg Config, log Logger, met *metrics.Registry) *Orchestrator {
	alloc := slotstore.New(cfg.Capacity, adaptLogger{log})
	if met != nil {
		alloc.SetMetrics(met)
	}
	return &Orchestrator{
		cfg:         cfg,
		alloc:       alloc,
		log:         log,
		met:         met,
		keepSet:     make(map[addressing.ChunkCoord]bool),
		dirtyLit:    make(map[addressing.ChunkCoord]bool),
		editLimiter: rate.NewLimiter(rate.Limit(cfg.MaxEditsPerFrame), cfg.MaxEditsPerFrame),
	}
}

// adaptLogger narrows Logger to slotstore.Logger (Debugf/Infof only).
type adaptLogger struct{ l Logger }

func (a adaptLogger) Debugf(format string, args ...any) {
	if a.l != nil {
		a.l.Debugf(format, args...)
	}
}
func (a adaptLogger) Infof(format string, args ...any) {
	if a.l != nil {
		a.l.Infof(format, args...)
	}
}

// Allocator exposes the underlying slot allocator for callers that need
// direct lookup/residency queries (e.g. a mesher deciding what to render).
func (o *Orchestrator) Allocator() *slotstore.Allocator { return o.alloc }

// DrainEvents returns and clears the accumulated outward event queue.
func (o *Orchestrator) DrainEvents() []Event {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.events
	o.events = nil
	return out
}

// Update computes the set of chunks within view radius of cameraPos,
// allocates a slot for every chunk not yet resident, and schedules terrain
// generation for newly allocated slots, handling eviction by clearing the
// evicted chunk from this orchestrator's own bookkeeping. The caller's
// mesh/render layer is responsible for dropping any per-chunk resources
// for the evicted coordinate itself; this orchestrator only owns
// allocator state.
//
// If capacity is exhausted partway through, Update stops issuing further
// allocations this frame, shrinks its effective streaming radius for the
// next call, and returns the chunks it did manage to schedule for
// generation alongside the error.
func (o *Orchestrator) Update(cameraPos mgl32.Vec3) ([]addressing.ChunkCoord, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.frame++
	center, _, _, _ := addressing.WorldToChunk(int32(cameraPos.X()), int32(cameraPos.Y()), int32(cameraPos.Z()))

	effectiveRadius := o.cfg.ViewRadius - o.radiusBackoff
	if effectiveRadius < 1 {
		effectiveRadius = 1
	}

	o.rebuildKeepSet(center)

	var toGenerate []addressing.ChunkCoord
	for dx := -effectiveRadius; dx <= effectiveRadius; dx++ {
		for dy := -effectiveRadius; dy <= effectiveRadius; dy++ {
			for dz := -effectiveRadius; dz <= effectiveRadius; dz++ {
				coord := addressing.ChunkCoord{X: center.X + dx, Y: center.Y + dy, Z: center.Z + dz}
				if slot, ok := o.alloc.Lookup(coord); ok {
					o.alloc.Touch(slot, o.frame)
					continue
				}
				result, err := o.alloc.Allocate(coord, o.frame, o.keepSet)
				if err != nil {
					o.radiusBackoff++
					o.log.Warnf("orchestrator: capacity exhausted at radius %d, backing off to %d next frame", effectiveRadius, effectiveRadius-1)
					return toGenerate, fmt.Errorf("orchestrator.Update: %w", err)
				}
				if result.Evicted {
					delete(o.dirtyLit, result.EvictedCoord)
					o.events = append(o.events, Event{Kind: EventChunkEvicted, Position: result.EvictedCoord})
				}
				toGenerate = append(toGenerate, coord)
			}
		}
	}

	if o.radiusBackoff > 0 {
		o.radiusBackoff--
	}
	return toGenerate, nil
}

// rebuildKeepSet recomputes the protected keep set as every chunk within
// KeepRadius of center.
func (o *Orchestrator) rebuildKeepSet(center addressing.ChunkCoord) {
	for k := range o.keepSet {
		delete(o.keepSet, k)
	}
	for dx := -o.cfg.KeepRadius; dx <= o.cfg.KeepRadius; dx++ {
		for dy := -o.cfg.KeepRadius; dy <= o.cfg.KeepRadius; dy++ {
			for dz := -o.cfg.KeepRadius; dz <= o.cfg.KeepRadius; dz++ {
				o.keepSet[addressing.ChunkCoord{X: center.X + dx, Y: center.Y + dy, Z: center.Z + dz}] = true
			}
		}
	}
}

// QueueEdit pushes an edit command into the per-frame edit list, applied
// during the frame's modification dispatch. It is rate-limited to
// MaxEditsPerFrame; callers issuing edits faster than the frame cadence
// can sustain should check the returned error and retry later rather
// than growing the queue unbounded.
func (o *Orchestrator) QueueEdit(cmd kernels.EditCommand) error {
	if !o.editLimiter.Allow() {
		return fmt.Errorf("orchestrator.QueueEdit: per-frame edit budget of %d exceeded", o.cfg.MaxEditsPerFrame)
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.edits = append(o.edits, cmd)
	for _, coord := range kernels.AffectedChunks(cmd) {
		o.dirtyLit[coord] = true
		if slot, ok := o.alloc.Lookup(coord); ok {
			o.alloc.MarkDirty(slot, slotstore.DirtyMesh)
			o.alloc.MarkDirty(slot, slotstore.DirtyLight)
		}
	}
	if o.met != nil {
		o.met.EditQueueDepth.Set(float64(len(o.edits)))
	}
	return nil
}

// DrainEdits returns and clears the queued edit commands for this frame's
// modification dispatch.
func (o *Orchestrator) DrainEdits() []kernels.EditCommand {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := o.edits
	o.edits = nil
	if o.met != nil {
		o.met.EditQueueDepth.Set(0)
	}
	return out
}

// DirtyLightChunks returns the chunk coordinates whose dirty-light flag is
// still set, the third source the unified dispatch's per-frame work list
// is built from.
func (o *Orchestrator) DirtyLightChunks() []addressing.ChunkCoord {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]addressing.ChunkCoord, 0, len(o.dirtyLit))
	for c, dirty := range o.dirtyLit {
		if dirty {
			out = append(out, c)
		}
	}
	return out
}

// ClearLightDirty marks coord's dirty-light bit cleared after a lighting
// dispatch has run against it, avoiding redundant re-dispatch for chunks
// that settle between frames. Grounded on the donor's
// manager_compression.go TrackDirtyBrick/FlushCompression bookkeeping.
func (o *Orchestrator) ClearLightDirty(coord addressing.ChunkCoord) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.dirtyLit, coord)
	if slot, ok := o.alloc.Lookup(coord); ok {
		o.alloc.ClearDirty(slot, slotstore.DirtyLight)
	}
}

// QueryVoxel resolves world position's owning chunk, fails with
// ErrChunkNotResident if it has no slot, and otherwise issues an async
// read against acc (a real GPU readback in production, an in-memory
// mirror in tests), blocking until ctx is done or the value resolves.
// This path is for rare uses such as save games and debug queries;
// hot-path queries like physics raycasts are expected to run on the GPU
// directly against the world buffer.
func (o *Orchestrator) QueryVoxel(ctx context.Context, acc BlockAccessor, x, y, z int32) (uint32, error) {
	coord, _, _, _ := addressing.WorldToChunk(x, y, z)
	o.mu.Lock()
	_, resident := o.alloc.Lookup(coord)
	shuttingDown := o.shuttingDown
	o.mu.Unlock()

	if !resident {
		return 0, fmt.Errorf("orchestrator.QueryVoxel: chunk %+v: %w", coord, voxelerr.ErrChunkNotResident)
	}
	if shuttingDown {
		return 0, fmt.Errorf("orchestrator.QueryVoxel: %w", voxelerr.ErrCancelled)
	}

	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("orchestrator.QueryVoxel: %w", ctx.Err())
	default:
	}

	v, ok := acc.Get(x, y, z)
	if !ok {
		return 0, fmt.Errorf("orchestrator.QueryVoxel: chunk %+v: %w", coord, voxelerr.ErrChunkNotResident)
	}
	return v, nil
}

// Shutdown marks the orchestrator as shutting down; subsequent
// QueryVoxel calls resolve with ErrCancelled.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.shuttingDown = true
	o.mu.Unlock()
}

// RunTerrainGeneration fills out with the given chunk coordinate's
// terrain via the CPU reference terrain kernel, incrementing
// TerrainDispatches. out must have length addressing.VoxelsPerChunk.
func (o *Orchestrator) RunTerrainGeneration(p kernels.TerrainParams, coord addressing.ChunkCoord, out []uint32) {
	p.GenerateSlot(coord, out)
	if o.met != nil {
		o.met.TerrainDispatches.Inc()
	}
}

// RunModification applies a batch of edit commands against acc via the
// CPU reference modification kernel, incrementing ModifyDispatches once
// per batch.
func (o *Orchestrator) RunModification(acc BlockAccessor, cmds []kernels.EditCommand, seed uint32) {
	for _, cmd := range cmds {
		kernels.ApplyEdit(acc, cmd, seed)
	}
	if o.met != nil {
		o.met.ModifyDispatches.Inc()
	}
}

// RunLighting advances the lighting kernel's CPU reference implementation
// K steps for field f over positions, reporting how many iterations
// actually ran before quiescence or budget. Production callers instead
// issue kernels.DispatchLightIteration against the GPU buffer; this path
// exists for the headless/test configuration and for any region too
// small to justify a GPU round-trip.
func (o *Orchestrator) RunLighting(acc BlockAccessor, f kernels.LightField, positions [][3]int32, k int) int {
	ran := kernels.PropagateK(acc, f, positions, k)
	if o.met != nil {
		o.met.LightDispatches.Inc()
		o.met.LightIterations.Observe(float64(ran))
	}
	return ran
}
