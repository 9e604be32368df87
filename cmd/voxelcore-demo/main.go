// Command voxelcore-demo runs a headless driver of the world storage and
// kernel-dispatch core: it advances a fixed number of frames, moving a
// synthetic camera in a straight line, generating terrain for newly
// streamed chunks and logging the orchestrator's allocation/eviction/
// dispatch decisions each frame. It owns no window, no input, and no
// renderer, the same per-frame advance-and-log shape as the donor's
// rt_main.go `for !window.ShouldClose() { ... }` loop, with the
// windowing half removed.
package main

import (
	"flag"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/prometheus/client_golang/prometheus"

	voxelcore "github.com/brackenworld/voxelcore"
	"github.com/brackenworld/voxelcore/addressing"
	"github.com/brackenworld/voxelcore/kernels"
	"github.com/brackenworld/voxelcore/metrics"
	"github.com/brackenworld/voxelcore/orchestrator"
)

// memWorld is an in-memory VoxelAccessor standing in for the real GPU
// world buffer readback path, sufficient for a headless demo that never
// creates a wgpu.Device. Production callers back orchestrator.Orchestrator
// with worldbuffer.Buffer's readback instead.
type memWorld struct {
	voxels map[[3]int32]uint32
}

func newMemWorld() *memWorld { return &memWorld{voxels: make(map[[3]int32]uint32)} }

func (w *memWorld) Get(x, y, z int32) (uint32, bool) {
	v, ok := w.voxels[[3]int32{x, y, z}]
	return v, ok
}

func (w *memWorld) Set(x, y, z int32, v uint32) {
	w.voxels[[3]int32{x, y, z}] = v
}

func (w *memWorld) storeSlot(origin addressing.ChunkCoord, data []uint32) {
	ox, oy, oz := origin.X*addressing.ChunkSize, origin.Y*addressing.ChunkSize, origin.Z*addressing.ChunkSize
	for lx := uint32(0); lx < addressing.ChunkSize; lx++ {
		for ly := uint32(0); ly < addressing.ChunkSize; ly++ {
			for lz := uint32(0); lz < addressing.ChunkSize; lz++ {
				idx := addressing.Morton3D(lx, ly, lz)
				w.voxels[[3]int32{ox + int32(lx), oy + int32(ly), oz + int32(lz)}] = data[idx]
			}
		}
	}
}

func main() {
	seed := flag.Uint("seed", 1, "terrain generation seed")
	capacity := flag.Uint("capacity", 4096, "world buffer slot capacity (N)")
	viewRadius := flag.Int("view-radius", 4, "streaming view radius in chunks")
	keepRadius := flag.Int("keep-radius", 2, "eviction-protected radius in chunks")
	frames := flag.Int("frames", 120, "number of frames to advance before exiting")
	debug := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	log := voxelcore.NewDefaultLogger("voxelcore-demo", *debug)
	reg := metrics.New(prometheus.NewRegistry())

	cfg := orchestrator.DefaultConfig()
	cfg.Seed = uint32(*seed)
	cfg.Capacity = uint32(*capacity)
	cfg.ViewRadius = int32(*viewRadius)
	cfg.KeepRadius = int32(*keepRadius)

	orch := orchestrator.New(cfg, log, reg)
	defer orch.Shutdown()

	params := kernels.TerrainParams{Seed: cfg.Seed, SeaLevel: 64, TerrainScale: 0.01, CaveThreshold: 0.6}
	if err := params.Validate(); err != nil {
		log.Errorf("invalid terrain params: %v", err)
		return
	}

	world := newMemWorld()
	scratch := make([]uint32, addressing.VoxelsPerChunk)

	camera := mgl32.Vec3{0, 80, 0}
	for frame := 0; frame < *frames; frame++ {
		camera = camera.Add(mgl32.Vec3{32, 0, 0})

		generated, err := orch.Update(camera)
		if err != nil {
			log.Warnf("frame %d: Update: %v", frame, err)
			continue
		}

		for _, coord := range generated {
			orch.RunTerrainGeneration(params, coord, scratch)
			world.storeSlot(coord, scratch)
			if slot, ok := orch.Allocator().Lookup(coord); ok {
				orch.Allocator().MarkGenerated(slot)
			}
		}
		if len(generated) > 0 {
			log.Infof("frame %d: generated %d chunks", frame, len(generated))
		}

		if frame%30 == 0 {
			cmd := kernels.EditCommand{WorldX: int32(camera.X()), WorldY: 63, WorldZ: int32(camera.Z()), ModType: kernels.ModBreak}
			if err := orch.QueueEdit(cmd); err != nil {
				log.Warnf("frame %d: QueueEdit: %v", frame, err)
			}
		}
		if edits := orch.DrainEdits(); len(edits) > 0 {
			orch.RunModification(world, edits, cfg.Seed)
		}

		for _, coord := range orch.DirtyLightChunks() {
			positions := chunkPositions(coord)
			orch.RunLighting(world, kernels.SkyLightField, positions, cfg.LightIterationsPerFrame)
			orch.ClearLightDirty(coord)
		}
	}

	events := orch.DrainEvents()
	log.Infof("demo finished after %d frames: %d outward events queued for the owning application", *frames, len(events))
}

func chunkPositions(coord addressing.ChunkCoord) [][3]int32 {
	ox, oy, oz := coord.X*addressing.ChunkSize, coord.Y*addressing.ChunkSize, coord.Z*addressing.ChunkSize
	out := make([][3]int32, 0, addressing.VoxelsPerChunk)
	for lx := int32(0); lx < addressing.ChunkSize; lx++ {
		for ly := int32(0); ly < addressing.ChunkSize; ly++ {
			for lz := int32(0); lz < addressing.ChunkSize; lz++ {
				out = append(out, [3]int32{ox + lx, oy + ly, oz + lz})
			}
		}
	}
	return out
}
